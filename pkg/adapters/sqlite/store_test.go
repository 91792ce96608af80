package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/playbook/pkg/adapters/sqlite"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ExecutionStore = (*sqlite.Store)(nil)

func newStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunExecutionStoreContract(t, func(t *testing.T) ports.ExecutionStore {
		return newStore(t, filepath.Join(t.TempDir(), "playbook.db"))
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.db")
	ctx := context.Background()

	first, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, domain.Snapshot{
		ID:             "p_1",
		ProtocolID:     "p",
		Context:        domain.Context{"k": domain.StringValue("v")},
		StartedAt:      time.Now(),
		CompletedSteps: []string{"a"},
	}))
	require.NoError(t, first.Close())

	second := newStore(t, path)
	snaps, err := second.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	v, _ := snaps[0].Context.Text("k")
	assert.Equal(t, "v", v)
}

func TestSQLiteStore_RecordPattern(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "playbook.db"))
	ctx := context.Background()

	require.NoError(t, store.RecordPattern(ctx, "where is", "find-location"))
	require.NoError(t, store.RecordPattern(ctx, "where is", "find-location"))

	counts, err := store.Patterns(ctx, "find-location")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"where is": 2}, counts)
}
