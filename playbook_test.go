package playbook_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/pkg/adapters/file"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToBuiltins(t *testing.T) {
	ctx := context.Background()
	eng, err := playbook.New(ctx)
	require.NoError(t, err)

	assert.Len(t, eng.Protocols(), 7)
	matches := eng.Detect(ctx, "please update repo", nil)
	require.NotEmpty(t, matches)
	assert.Equal(t, "repo-update", matches[0].ID)
}

func TestNew_WithoutBuiltinsAndCustomLoader(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewFromProtocols(domain.Protocol{
		ID:       "deploy",
		Name:     "Deploy",
		Triggers: []domain.Trigger{domain.PhraseTrigger{Literal: "ship it"}},
		Steps:    []domain.Step{{ID: "build", Name: "Build", Command: "make build"}},
	})

	eng, err := playbook.New(ctx, playbook.WithoutBuiltins(), playbook.WithLoader(loader))
	require.NoError(t, err)

	require.Len(t, eng.Protocols(), 1)
	_, ok := eng.Protocol("repo-update")
	assert.False(t, ok)

	exec, err := eng.Start(ctx, "deploy", nil)
	require.NoError(t, err)
	action, err := eng.Next(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, "make build", action.Command)
}

func TestEngine_DefaultContextIsOverridable(t *testing.T) {
	ctx := context.Background()
	eng, err := playbook.New(ctx, playbook.WithDefaultContext(domain.Context{
		"code_root":    domain.StringValue("/src"),
		"project_name": domain.StringValue("fallback"),
	}))
	require.NoError(t, err)

	exec, err := eng.Start(ctx, "create-project", domain.Context{"project_name": domain.StringValue("demo")})
	require.NoError(t, err)

	_, err = eng.Next(ctx, exec.ID)
	require.NoError(t, err)
	require.NoError(t, eng.CompleteStep(ctx, exec.ID, "create_structure", nil))

	action, err := eng.Next(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, `git:git_init(path="/src/demo")`, action.Command)
}

func TestEngine_RestoresActiveProtocolsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	first, err := playbook.New(ctx, playbook.WithStore(file.New(dir, nil)), playbook.WithClock(clock))
	require.NoError(t, err)
	exec, err := first.Start(ctx, "repo-update", nil)
	require.NoError(t, err)
	require.NoError(t, first.CompleteStep(ctx, exec.ID, "status", "clean"))

	second, err := playbook.New(ctx, playbook.WithStore(file.New(dir, nil)), playbook.WithClock(clock))
	require.NoError(t, err)

	active := second.ListActive(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, exec.ID, active[0].ID)
	assert.Equal(t, 1, active[0].Progress.Completed)

	require.NoError(t, second.Finish(ctx, exec.ID, true))
	stats, err := second.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalExecutions)
	assert.Equal(t, 0, stats.ActiveProtocols)
}

func TestEngine_HooksChain(t *testing.T) {
	ctx := context.Background()
	var order []string
	hook := func(name string) domain.LifecycleHooks {
		return domain.LifecycleHooks{
			OnProtocolStart: func(context.Context, *domain.ExecutionEvent) { order = append(order, name) },
		}
	}

	eng, err := playbook.New(ctx,
		playbook.WithLifecycleHooks(hook("metrics")),
		playbook.WithLifecycleHooks(hook("stream")),
	)
	require.NoError(t, err)

	_, err = eng.Start(ctx, "session-init", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"metrics", "stream"}, order)
}

func TestEngine_Errors(t *testing.T) {
	ctx := context.Background()
	eng, err := playbook.New(ctx)
	require.NoError(t, err)

	_, err = eng.Start(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrProtocolNotFound)

	_, err = eng.DisplayProgress(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)

	assert.ErrorIs(t, eng.Register(domain.Protocol{}), domain.ErrInvalidProtocol)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, playbook.Version)
}
