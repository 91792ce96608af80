package ports

import (
	"context"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
)

// DefaultMaxAge is the age past which Cleanup prunes active snapshots.
const DefaultMaxAge = 24 * time.Hour

// ExecutionStore defines the interface for persisting active executions and their history.
// Implementations assume a single writer; there is no cross-process locking.
type ExecutionStore interface {
	// Save upserts the snapshot keyed by its ID.
	Save(ctx context.Context, snap domain.Snapshot) error

	// Load returns every active snapshot, in insertion order.
	Load(ctx context.Context) ([]domain.Snapshot, error)

	// Complete moves an active snapshot to the history log, stamping the completion
	// time and outcome. It is a no-op when the ID is not active.
	Complete(ctx context.Context, id string, success bool) error

	// History returns the archived records, oldest first.
	History(ctx context.Context) ([]domain.HistoryRecord, error)

	// Statistics derives aggregate counts from the active set and the history log.
	Statistics(ctx context.Context) (domain.Statistics, error)

	// Cleanup removes active snapshots started more than maxAge ago and returns their IDs.
	Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error)

	// RecordPattern notes that an input pattern selected a protocol.
	// Adapters may treat it as a no-op.
	RecordPattern(ctx context.Context, pattern, protocolID string) error
}
