package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/playbook/pkg/domain"
)

// allExecutions is the subscription key that receives every event.
const allExecutions = ""

// StreamManager fans lifecycle events out to SSE subscribers, keyed by active execution ID.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for activeID, or for every execution when activeID is empty.
// The returned function unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(activeID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[activeID]; !ok {
		sm.subscribers[activeID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[activeID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[activeID]; ok {
			if _, present := subs[ch]; !present {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, activeID)
			}
		}
	}
}

// Broadcast delivers msg to the subscribers of activeID and to global subscribers.
// Slow subscribers drop messages rather than block the engine.
func (sm *StreamManager) Broadcast(activeID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := []string{allExecutions}
	if activeID != allExecutions {
		keys = append(keys, activeID)
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE: Client buffer full, dropping message", "active_id", activeID)
			}
		}
	}
}

// Hooks returns lifecycle hooks that publish execution events to subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	publish := func(_ context.Context, ev *domain.ExecutionEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			sm.logger.Error("SSE: Failed to encode event", "err", err)
			return
		}
		sm.Broadcast(ev.ExecutionID, string(data))
	}
	return domain.LifecycleHooks{
		OnProtocolStart:  publish,
		OnStepComplete:   publish,
		OnStepSkip:       publish,
		OnProtocolFinish: publish,
	}
}
