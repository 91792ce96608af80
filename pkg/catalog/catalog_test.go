package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/catalog"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	ports.RunCatalogLoaderContract(t, catalog.BuiltinLoader{},
		"repo-update", "session-init", "auto-continuation", "error-recovery",
		"find-location", "create-project", "todo-management")

	protocols, err := catalog.Builtin()
	require.NoError(t, err)
	require.Len(t, protocols, 7)

	byID := make(map[string]domain.Protocol)
	for _, p := range protocols {
		byID[p.ID] = p
	}
	assert.Equal(t, domain.PriorityCritical, byID["session-init"].Metadata.Priority)
	assert.Equal(t, domain.FileExists{}, byID["session-init"].Steps[4].Condition)
	assert.Equal(t, domain.ContextKey{Name: "includeTests"}, byID["repo-update"].Steps[1].Condition)
	assert.Equal(t, `git:git_commit(message="${commit_message}")`, byID["repo-update"].Steps[3].Command)
	assert.IsType(t, domain.ErrorTrigger{}, byID["error-recovery"].Triggers[0])
	assert.Equal(t, []string{"todo", "tasks", "planning"}, byID["todo-management"].Metadata.Tags)
}

func TestDecode_Shapes(t *testing.T) {
	single := `
id: one
steps:
  - id: s
    name: S
`
	list := `[{"id": "a", "priority": "HIGH", "category": "ops"}, {"id": "b"}]`

	got, err := catalog.Decode([]byte(single))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Name, "name defaults to id")
	assert.Equal(t, domain.PriorityMedium, got[0].Metadata.Priority)

	got, err = catalog.Decode([]byte(list))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.PriorityHigh, got[0].Metadata.Priority)
	assert.Equal(t, "ops", got[0].Metadata.Category)

	got, err = catalog.Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecode_Errors(t *testing.T) {
	_, err := catalog.Decode([]byte(`{"id": "r", "triggers": [{"type": "phrase", "pattern": "(", "regex": true}]}`))
	assert.Error(t, err)

	_, err = catalog.Decode([]byte(`{"id": "d", "steps": [{"id": "x"}, {"id": "x"}]}`))
	assert.ErrorIs(t, err, domain.ErrInvalidProtocol)

	_, err = catalog.Decode([]byte(`"just a string"`))
	assert.Error(t, err)
}

func TestDecode_RegexAndUnknownTriggers(t *testing.T) {
	got, err := catalog.Decode([]byte(`
id: rx
triggers:
  - {type: phrase, pattern: "deploy (now|today)", regex: true}
  - {type: cron, pattern: "0 * * * *"}
`))
	require.NoError(t, err)
	require.Len(t, got[0].Triggers, 2)
	assert.True(t, got[0].Triggers[0].Matches("deploy today", nil))
	assert.False(t, got[0].Triggers[1].Matches("0 * * * *", nil))
}

func TestFileLoader_And_Merge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
protocols:
  - id: repo-update
    name: Custom Repo Update
  - id: deploy
    name: Deploy
`), 0o644))

	merged := catalog.Merge(nil, catalog.BuiltinLoader{}, catalog.NewFileLoader(path),
		memory.NewFromProtocols(domain.Protocol{ID: "inline", Name: "Inline"}))
	protocols, err := merged.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, protocols, 9)
	assert.Equal(t, "Custom Repo Update", protocols[0].Name)
	assert.Equal(t, "deploy", protocols[7].ID)
	assert.Equal(t, "inline", protocols[8].ID)

	_, err = catalog.NewFileLoader(filepath.Join(dir, "missing.yaml")).Load(context.Background())
	assert.Error(t, err)
}
