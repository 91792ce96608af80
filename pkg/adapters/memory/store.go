package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
)

// Store implements ports.ExecutionStore in memory.
// Safe for concurrent use.
type Store struct {
	active  []domain.Snapshot
	history []domain.HistoryRecord
	mu      sync.RWMutex

	// Now stamps completion times. Defaults to time.Now.
	Now func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{Now: time.Now}
}

// Save upserts the snapshot.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	// Copy to ensure isolation, similar to serialization
	copied := snap.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.active {
		if s.active[i].ID == snap.ID {
			s.active[i] = copied
			return nil
		}
	}
	s.active = append(s.active, copied)
	return nil
}

// Load returns copies of the active snapshots.
func (s *Store) Load(ctx context.Context) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Snapshot, len(s.active))
	for i, snap := range s.active {
		out[i] = snap.Clone()
	}
	return out, nil
}

// Complete moves the snapshot to history.
func (s *Store) Complete(ctx context.Context, id string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, snap := range s.active {
		if snap.ID != id {
			continue
		}
		s.active = append(s.active[:i], s.active[i+1:]...)
		s.history = append(s.history, domain.Archive(snap, s.Now(), success))
		return nil
	}
	return nil
}

// History returns copies of the archived records.
func (s *Store) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HistoryRecord, len(s.history))
	for i, h := range s.history {
		out[i] = h
		out[i].Snapshot = h.Snapshot.Clone()
	}
	return out, nil
}

// Statistics computes aggregates over both collections.
func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	history, _ := s.History(ctx)
	s.mu.RLock()
	active := len(s.active)
	s.mu.RUnlock()
	return domain.ComputeStatistics(active, history), nil
}

// Cleanup drops snapshots started before now-maxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := s.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	kept := s.active[:0]
	for _, snap := range s.active {
		if snap.StartedBefore(cutoff) {
			removed = append(removed, snap.ID)
			continue
		}
		kept = append(kept, snap)
	}
	s.active = kept
	return removed, nil
}

// RecordPattern is a no-op.
func (s *Store) RecordPattern(ctx context.Context, pattern, protocolID string) error {
	return nil
}
