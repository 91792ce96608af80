package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSnapshot(id string, startedAt time.Time) domain.Snapshot {
	return domain.Snapshot{
		ID:             id,
		ProtocolID:     "contract",
		Context:        domain.Context{"who": domain.StringValue("tester"), "n": domain.NumberValue(2)},
		StartedAt:      startedAt,
		CompletedSteps: []string{"a"},
		StepResults:    map[string]any{"a": "ok"},
	}
}

// RunExecutionStoreContract runs a suite of tests to verify that an ExecutionStore
// implementation adheres to the interface contract. newStore must return an empty store.
func RunExecutionStoreContract(t *testing.T, newStore func(t *testing.T) ExecutionStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("Save and Load", func(t *testing.T) {
		store := newStore(t)
		snap := contractSnapshot("contract_1", now)
		require.NoError(t, store.Save(ctx, snap))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, snap.ID, loaded[0].ID)
		assert.Equal(t, snap.ProtocolID, loaded[0].ProtocolID)
		assert.True(t, snap.StartedAt.Equal(loaded[0].StartedAt))
		assert.Equal(t, []string{"a"}, loaded[0].CompletedSteps)
		assert.Equal(t, "ok", loaded[0].StepResults["a"])
		who, _ := loaded[0].Context.Text("who")
		assert.Equal(t, "tester", who)
	})

	t.Run("Save Upserts", func(t *testing.T) {
		store := newStore(t)
		snap := contractSnapshot("contract_1", now)
		require.NoError(t, store.Save(ctx, snap))
		require.NoError(t, store.Save(ctx, contractSnapshot("contract_2", now)))

		snap.CompletedSteps = []string{"a", "b"}
		require.NoError(t, store.Save(ctx, snap))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, "contract_1", loaded[0].ID, "upsert keeps position")
		assert.Equal(t, []string{"a", "b"}, loaded[0].CompletedSteps)
	})

	t.Run("Load Empty", func(t *testing.T) {
		store := newStore(t)
		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, loaded)

		history, err := store.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("Complete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, contractSnapshot("contract_1", now)))
		require.NoError(t, store.Save(ctx, contractSnapshot("contract_2", now)))

		require.NoError(t, store.Complete(ctx, "contract_1", true))
		require.NoError(t, store.Complete(ctx, "contract_2", false))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, loaded)

		history, err := store.History(ctx)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "contract_1", history[0].ID)
		assert.True(t, history[0].Success)
		assert.False(t, history[0].CompletedAt.IsZero())
		assert.Equal(t, "contract_2", history[1].ID)
		assert.False(t, history[1].Success)
	})

	t.Run("Complete Unknown Is No-Op", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, contractSnapshot("contract_1", now)))
		require.NoError(t, store.Complete(ctx, "missing", true))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, loaded, 1)
		history, err := store.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("Statistics", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"s1", "s2", "s3", "s4"} {
			require.NoError(t, store.Save(ctx, contractSnapshot(id, now)))
		}
		require.NoError(t, store.Complete(ctx, "s1", true))
		require.NoError(t, store.Complete(ctx, "s2", true))
		require.NoError(t, store.Complete(ctx, "s3", false))

		stats, err := store.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalExecutions)
		assert.Equal(t, 1, stats.ActiveProtocols)
		assert.Equal(t, 66.7, stats.SuccessRate)
		require.Len(t, stats.RecentProtocols, 3)
		assert.Equal(t, "s3", stats.RecentProtocols[0].ID)
	})

	t.Run("Cleanup", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, contractSnapshot("old", now.Add(-48*time.Hour))))
		require.NoError(t, store.Save(ctx, contractSnapshot("fresh", now.Add(-time.Hour))))

		removed, err := store.Cleanup(ctx, DefaultMaxAge)
		require.NoError(t, err)
		assert.Equal(t, []string{"old"}, removed)

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "fresh", loaded[0].ID)

		removed, err = store.Cleanup(ctx, DefaultMaxAge)
		require.NoError(t, err)
		assert.Empty(t, removed)
	})

	t.Run("RecordPattern", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.RecordPattern(ctx, "update repo", "repo-update"))
	})
}

// RunCatalogLoaderContract verifies that a CatalogLoader returns valid definitions
// including every ID in wantIDs.
func RunCatalogLoaderContract(t *testing.T, loader CatalogLoader, wantIDs ...string) {
	t.Helper()
	ctx := context.Background()

	protocols, err := loader.Load(ctx)
	require.NoError(t, err)

	got := make(map[string]bool, len(protocols))
	for _, p := range protocols {
		assert.NoError(t, p.Validate(), "protocol %q", p.ID)
		got[p.ID] = true
	}
	for _, id := range wantIDs {
		assert.True(t, got[id], "missing protocol %q", id)
	}
}
