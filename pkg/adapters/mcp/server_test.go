package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/catalog"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := runtime.NewEngine(store,
		runtime.WithIDGenerator(func(protocolID string, _ time.Time) string {
			return protocolID + "_1"
		}),
	)
	protocols, err := catalog.Builtin()
	require.NoError(t, err)
	for _, p := range protocols {
		require.NoError(t, engine.Register(p))
	}
	return NewServer(engine), store
}

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestServer_Detect(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleDetect(ctx, newCallToolRequest("protocol_detect", map[string]any{
		"input": "Please UPDATE REPO now",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var matches []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &matches))
	require.NotEmpty(t, matches)
	assert.Equal(t, "repo-update", matches[0]["id"])
}

func TestServer_DetectRequiresInput(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleDetect(context.Background(), newCallToolRequest("protocol_detect", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_Walkthrough(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleStart(ctx, newCallToolRequest("protocol_start", map[string]any{
		"protocolId": "repo-update",
		"context":    map[string]any{"commit_message": "fix bug"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var started domain.Started
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &started))
	assert.Equal(t, "repo-update_1", started.ID)
	assert.Equal(t, "Repository Update Protocol", started.ProtocolName)

	result, err = s.handleNext(ctx, newCallToolRequest("protocol_next", map[string]any{
		"activeProtocolId": "repo-update_1",
	}))
	require.NoError(t, err)
	var action domain.NextAction
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &action))
	assert.Equal(t, domain.ActionExecute, action.Type)
	assert.Equal(t, "git:git_status()", action.Command)

	result, err = s.handleCompleteStep(ctx, newCallToolRequest("protocol_complete_step", map[string]any{
		"activeProtocolId": "repo-update_1",
		"stepId":           "status",
		"result":           map[string]any{"clean": true},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	display := resultText(t, result)
	assert.Contains(t, display, "✅ Step 1: Check Git Status")

	snaps, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, map[string]any{"clean": true}, snaps[0].StepResults["status"])

	result, err = s.handleActive(ctx, newCallToolRequest("protocol_active", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"protocolName": "Repository Update Protocol"`)

	result, err = s.handleFinish(ctx, newCallToolRequest("protocol_finish", map[string]any{
		"activeProtocolId": "repo-update_1",
		"success":          false,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = s.handleStats(ctx, newCallToolRequest("protocol_stats", nil))
	require.NoError(t, err)
	var stats domain.Statistics
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &stats))
	assert.Equal(t, 1, stats.TotalExecutions)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestServer_UnknownIDsAreToolErrors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleStart(ctx, newCallToolRequest("protocol_start", map[string]any{"protocolId": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Error: ")

	result, err = s.handleStatus(ctx, newCallToolRequest("protocol_status", map[string]any{"activeProtocolId": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleCompleteStep(ctx, newCallToolRequest("protocol_complete_step", map[string]any{
		"activeProtocolId": "missing",
		"stepId":           "status",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_ListByCategory(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleList(context.Background(), newCallToolRequest("protocol_list", map[string]any{
		"category": "development",
	}))
	require.NoError(t, err)

	var summaries []domain.ProtocolSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summaries))
	require.NotEmpty(t, summaries)
	for _, p := range summaries {
		assert.Equal(t, "development", p.Category)
	}
}

func TestServer_Cleanup(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, domain.Snapshot{
		ID:         "stale",
		ProtocolID: "repo-update",
		StartedAt:  time.Now().Add(-3 * time.Hour),
	}))

	result, err := s.handleCleanup(ctx, newCallToolRequest("protocol_cleanup", map[string]any{"maxAgeHours": 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"removed":["stale"]}`, resultText(t, result))
}

func TestServer_Help(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleHelp(context.Background(), newCallToolRequest("protocol_help", map[string]any{"topic": "commands"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "# Protocol Commands")

	result, err = s.handleHelp(context.Background(), newCallToolRequest("protocol_help", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "## Available Topics:")
}
