package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeStatistics(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var history []HistoryRecord
	for i := 0; i < 7; i++ {
		history = append(history, Archive(Snapshot{ID: string(rune('a' + i))}, base.Add(time.Duration(i)*time.Minute), i%3 != 0))
	}

	stats := ComputeStatistics(2, history)
	assert.Equal(t, 7, stats.TotalExecutions)
	assert.Equal(t, 2, stats.ActiveProtocols)
	assert.Equal(t, 57.1, stats.SuccessRate)
	assert.Len(t, stats.RecentProtocols, RecentLimit)
	assert.Equal(t, "g", stats.RecentProtocols[0].ID)
	assert.Equal(t, "c", stats.RecentProtocols[4].ID)
}

func TestComputeStatistics_Empty(t *testing.T) {
	stats := ComputeStatistics(0, nil)
	assert.Zero(t, stats.SuccessRate)
	assert.NotNil(t, stats.RecentProtocols)
}

func TestChain(t *testing.T) {
	var calls []string
	h := Chain(
		LifecycleHooks{OnStepComplete: func(context.Context, *ExecutionEvent) { calls = append(calls, "first") }},
		LifecycleHooks{},
		LifecycleHooks{OnStepComplete: func(context.Context, *ExecutionEvent) { calls = append(calls, "second") }},
	)
	h.OnStepComplete(context.Background(), &ExecutionEvent{})
	h.OnProtocolStart(context.Background(), &ExecutionEvent{})
	h.OnDetect(context.Background(), &DetectEvent{})

	assert.Equal(t, []string{"first", "second"}, calls)
}
