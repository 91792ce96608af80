package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/catalog"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (http.Handler, *runtime.Engine) {
	t.Helper()
	streams := NewStreamManager(nil)
	engine := runtime.NewEngine(memory.NewStore(),
		runtime.WithLifecycleHooks(streams.Hooks()),
		runtime.WithIDGenerator(func(protocolID string, _ time.Time) string {
			return protocolID + "_1"
		}),
	)
	protocols, err := catalog.Builtin()
	require.NoError(t, err)
	for _, p := range protocols {
		require.NoError(t, engine.Register(p))
	}
	handler, err := NewHandler(engine, WithStreams(streams))
	require.NoError(t, err)
	return handler, engine
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "Playbook API", doc.Info.Title)
	assert.NotNil(t, doc.Paths.Find("/active/{activeId}/next"))
}

func TestHealthAndInfo(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.0.0", info["api_version"])
}

func TestDetect(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/detect", map[string]any{"input": "I need to commit changes"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var matches []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matches))
	require.NotEmpty(t, matches)
	assert.Equal(t, "repo-update", matches[0]["id"])
}

func TestDetect_RejectsMissingInput(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/detect", map[string]any{"context": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestListProtocols_FiltersByCategory(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/protocols?category=development", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []domain.ProtocolSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.NotEmpty(t, summaries)
	for _, s := range summaries {
		assert.Equal(t, "development", s.Category)
	}
}

func TestExecutionLifecycle(t *testing.T) {
	h, engine := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/protocols/repo-update/start", map[string]any{
		"context": map[string]any{"commit_message": "ship it"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started domain.Started
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, "repo-update_1", started.ID)
	assert.Equal(t, 6, started.Progress.Total)

	w = do(t, h, http.MethodPost, "/active/repo-update_1/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var action domain.NextAction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &action))
	assert.Equal(t, domain.ActionExecute, action.Type)
	assert.Equal(t, "status", action.Step.ID)

	w = do(t, h, http.MethodPost, "/active/repo-update_1/steps/status/complete", map[string]any{"result": "clean"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var progress progressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &progress))
	assert.Contains(t, progress.Display, "✅ Step 1: Check Git Status")

	w = do(t, h, http.MethodGet, "/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []domain.ActiveSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Progress.Completed)

	w = do(t, h, http.MethodPost, "/active/repo-update_1/finish", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, engine.ListActive(context.Background()))

	w = do(t, h, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats domain.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalExecutions)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		method, path string
	}{
		{http.MethodPost, "/protocols/missing/start"},
		{http.MethodPost, "/active/missing/next"},
		{http.MethodGet, "/active/missing/progress"},
		{http.MethodPost, "/active/missing/finish"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := do(t, h, tc.method, tc.path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}

	w := do(t, h, http.MethodPost, "/protocols/repo-update/start", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, h, http.MethodPost, "/active/repo-update_1/steps/bogus/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanup(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/cleanup?maxAgeHours=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":[]}`, w.Body.String())
}

func TestSubscribeEvents(t *testing.T) {
	h, engine := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?activeId=repo-update_1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}
	assert.Equal(t, "connected", readData())

	_, err = engine.Start(ctx, "repo-update", nil)
	require.NoError(t, err)

	var ev domain.ExecutionEvent
	require.NoError(t, json.Unmarshal([]byte(readData()), &ev))
	assert.Equal(t, domain.EventProtocolStart, ev.Type)
	assert.Equal(t, "repo-update_1", ev.ExecutionID)
}

func TestStreamManager_GlobalSubscribersSeeEverything(t *testing.T) {
	sm := NewStreamManager(nil)
	all, cancelAll := sm.Subscribe("")
	defer cancelAll()
	one, cancelOne := sm.Subscribe("a")

	sm.Broadcast("a", "first")
	sm.Broadcast("b", "second")

	assert.Equal(t, "first", <-all)
	assert.Equal(t, "second", <-all)
	assert.Equal(t, "first", <-one)
	assert.Empty(t, one)

	cancelOne()
	cancelOne()
}
