package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	var engine *runtime.Engine
	metrics := NewMetrics(reg, func() float64 {
		return float64(len(engine.ListActive(context.Background())))
	})
	engine = runtime.NewEngine(memory.NewStore(), runtime.WithLifecycleHooks(metrics.Hooks()))

	require.NoError(t, engine.Register(domain.Protocol{
		ID:   "deploy",
		Name: "Deploy",
		Triggers: []domain.Trigger{
			domain.PhraseTrigger{Literal: "ship it"},
		},
		Steps: []domain.Step{
			{ID: "build", Name: "Build"},
			{ID: "notes", Name: "Notes", Condition: domain.ContextKey{Name: "changelog"}},
		},
	}))

	ctx := context.Background()
	engine.Detect(ctx, "ship it now", nil)
	engine.Detect(ctx, "nothing here", nil)

	exec, err := engine.Start(ctx, "deploy", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Starts.WithLabelValues("deploy")))

	require.NoError(t, engine.CompleteStep(ctx, exec.ID, "build", nil))
	_, err = engine.Next(ctx, exec.ID)
	require.NoError(t, err)
	require.NoError(t, engine.Finish(ctx, exec.ID, true))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Detections.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Detections.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepsCompleted.WithLabelValues("deploy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepsSkipped.WithLabelValues("deploy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Finishes.WithLabelValues("deploy", "true")))

	count, err := testutil.GatherAndCount(reg, "playbook_active_protocols")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, nil)
	metrics.Starts.WithLabelValues("deploy").Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.Starts))
}
