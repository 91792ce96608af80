package middleware_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/persistence/middleware"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func encrypted(t *testing.T, inner ports.ExecutionStore, cfg middleware.EncryptionConfig) ports.ExecutionStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(inner)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunExecutionStoreContract(t, func(t *testing.T) ports.ExecutionStore {
		return encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: testKey(7)})
	})
}

func TestEncryptionMiddleware_SealsPayload(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	store := encrypted(t, inner, middleware.EncryptionConfig{ActiveKey: testKey(1)})

	require.NoError(t, store.Save(ctx, domain.Snapshot{
		ID:             "p_1",
		ProtocolID:     "p",
		StartedAt:      time.Now(),
		Context:        domain.Context{"api_key": domain.StringValue("plain")},
		CompletedSteps: []string{"a"},
		StepResults:    map[string]any{"a": "output"},
	}))

	raw, err := inner.Load(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Len(t, raw[0].Context, 1)
	_, leaked := raw[0].Context.Text("api_key")
	assert.False(t, leaked)
	assert.Empty(t, raw[0].StepResults)
	assert.Equal(t, []string{"a"}, raw[0].CompletedSteps)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	v, _ := loaded[0].Context.Text("api_key")
	assert.Equal(t, "plain", v)
	assert.Equal(t, "output", loaded[0].StepResults["a"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	oldKey, newKey := testKey(1), testKey(2)

	require.NoError(t, encrypted(t, inner, middleware.EncryptionConfig{ActiveKey: oldKey}).Save(ctx, domain.Snapshot{
		ID:         "p_1",
		ProtocolID: "p",
		StartedAt:  time.Now(),
		Context:    domain.Context{"k": domain.StringValue("v")},
	}))

	_, err := encrypted(t, inner, middleware.EncryptionConfig{ActiveKey: newKey}).Load(ctx)
	assert.Error(t, err, "new key alone cannot open old data")

	rotated := encrypted(t, inner, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx)
	require.NoError(t, err)
	v, _ := loaded[0].Context.Text("k")
	assert.Equal(t, "v", v)
}

func TestEncryptionMiddleware_RejectsPlainData(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	require.NoError(t, inner.Save(ctx, domain.Snapshot{ID: "p_1", ProtocolID: "p", StartedAt: time.Now(), Context: domain.Context{}}))

	_, err := encrypted(t, inner, middleware.EncryptionConfig{ActiveKey: testKey(1)}).Load(ctx)
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)
}

func TestEncryptionMiddleware_HistoryIsDecrypted(t *testing.T) {
	ctx := context.Background()
	store := encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: testKey(3)})
	require.NoError(t, store.Save(ctx, domain.Snapshot{
		ID:         "p_1",
		ProtocolID: "p",
		StartedAt:  time.Now(),
		Context:    domain.Context{"k": domain.StringValue("v")},
	}))
	require.NoError(t, store.Complete(ctx, "p_1", true))

	history, err := store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	v, _ := history[0].Context.Text("k")
	assert.Equal(t, "v", v)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats.RecentProtocols, 1)
	v, _ = stats.RecentProtocols[0].Context.Text("k")
	assert.Equal(t, "v", v)
}

func TestNewEncryptionMiddleware_KeyLength(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    testKey(1),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}
