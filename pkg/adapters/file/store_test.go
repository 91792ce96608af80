package file_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/playbook/pkg/adapters/file"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements ExecutionStore
var _ ports.ExecutionStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunExecutionStoreContract(t, func(t *testing.T) ports.ExecutionStore {
		return file.New(t.TempDir(), nil)
	})
}

func TestFileStore_Init(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store := file.New(dir, nil)
	require.NoError(t, store.Init())
	require.NoError(t, store.Init())

	for _, name := range []string{file.ActiveFile, file.HistoryFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(data))
	}
}

func TestFileStore_InitKeepsExistingDocuments(t *testing.T) {
	dir := t.TempDir()
	existing := `[{"id":"x_1","protocolId":"x","context":{},"startedAt":"2024-01-01T00:00:00Z","completedSteps":[],"stepResults":{}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, file.ActiveFile), []byte(existing), 0o644))

	snaps, err := file.New(dir, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "x", snaps[0].ProtocolID)
}

func TestFileStore_DocumentShape(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir, nil)
	ctx := context.Background()

	snap := domain.Snapshot{
		ID:             "repo-update_1",
		ProtocolID:     "repo-update",
		Context:        domain.Context{"commit_message": domain.StringValue("fix bug")},
		StartedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CompletedSteps: []string{"status"},
		StepResults:    map[string]any{"status": "clean"},
	}
	require.NoError(t, store.Save(ctx, snap))
	require.NoError(t, store.Complete(ctx, snap.ID, true))

	data, err := os.ReadFile(filepath.Join(dir, file.HistoryFile))
	require.NoError(t, err)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(data, &docs))
	require.Len(t, docs, 1)
	for _, key := range []string{"id", "protocolId", "context", "startedAt", "completedSteps", "stepResults", "completedAt", "success"} {
		assert.Contains(t, docs[0], key)
	}
	assert.Equal(t, "fix bug", docs[0]["context"].(map[string]any)["commit_message"])
}

func TestFileStore_MalformedDocumentReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file.ActiveFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file.HistoryFile), []byte(`{"wrong":"shape"}`), 0o644))

	store := file.New(dir, nil)
	ctx := context.Background()

	snaps, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	history, err := store.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, store.Save(ctx, domain.Snapshot{ID: "fresh", ProtocolID: "p", StartedAt: time.Now()}))
	snaps, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestFileStore_CleanupRewritesOnlyOnChange(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, domain.Snapshot{ID: "fresh", ProtocolID: "p", StartedAt: time.Now()}))

	path := filepath.Join(dir, file.ActiveFile)
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	custom := append([]byte("\n\n"), before...)
	require.NoError(t, os.WriteFile(path, custom, 0o644))

	removed, err := store.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, removed)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, after)
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := file.New(dir, nil)
	require.NoError(t, first.Save(ctx, domain.Snapshot{ID: "a_1", ProtocolID: "a", StartedAt: time.Now(), CompletedSteps: []string{"x"}}))

	second := file.New(dir, nil)
	snaps, err := second.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, []string{"x"}, snaps[0].CompletedSteps)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestFileStore_CompleteAfterInterruptedArchive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir, nil)

	snap := domain.Snapshot{ID: "p_1", ProtocolID: "p", StartedAt: time.Now(), Context: domain.Context{}}
	require.NoError(t, store.Save(ctx, snap))

	// History already holds the record but the active document still lists it.
	data, err := json.Marshal([]domain.HistoryRecord{domain.Archive(snap, time.Now(), true)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file.HistoryFile), data, 0o644))

	require.NoError(t, store.Complete(ctx, "p_1", true))

	history, err := store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	active, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
