package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDetect         EventType = "detect"
	EventProtocolStart  EventType = "protocol_start"
	EventStepComplete   EventType = "step_complete"
	EventStepSkip       EventType = "step_skip"
	EventProtocolFinish EventType = "protocol_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// DetectEvent reports the outcome of trigger detection.
type DetectEvent struct {
	EventBase
	Input   string   `json:"input"`
	Matches []string `json:"matches"`
}

// ExecutionEvent reports a transition of an active execution.
type ExecutionEvent struct {
	EventBase
	ExecutionID string `json:"execution_id"`
	ProtocolID  string `json:"protocol_id"`
	StepID      string `json:"step_id,omitempty"`
	// Success is set on EventProtocolFinish only.
	Success bool `json:"success,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil fields are ignored.
type LifecycleHooks struct {
	OnDetect         func(context.Context, *DetectEvent)
	OnProtocolStart  func(context.Context, *ExecutionEvent)
	OnStepComplete   func(context.Context, *ExecutionEvent)
	OnStepSkip       func(context.Context, *ExecutionEvent)
	OnProtocolFinish func(context.Context, *ExecutionEvent)
}

// Chain merges several hook sets; each callback fires in order.
func Chain(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDetect: func(ctx context.Context, e *DetectEvent) {
			for _, h := range hooks {
				if h.OnDetect != nil {
					h.OnDetect(ctx, e)
				}
			}
		},
		OnProtocolStart:  chainExec(hooks, func(h LifecycleHooks) func(context.Context, *ExecutionEvent) { return h.OnProtocolStart }),
		OnStepComplete:   chainExec(hooks, func(h LifecycleHooks) func(context.Context, *ExecutionEvent) { return h.OnStepComplete }),
		OnStepSkip:       chainExec(hooks, func(h LifecycleHooks) func(context.Context, *ExecutionEvent) { return h.OnStepSkip }),
		OnProtocolFinish: chainExec(hooks, func(h LifecycleHooks) func(context.Context, *ExecutionEvent) { return h.OnProtocolFinish }),
	}
}

func chainExec(hooks []LifecycleHooks, pick func(LifecycleHooks) func(context.Context, *ExecutionEvent)) func(context.Context, *ExecutionEvent) {
	return func(ctx context.Context, e *ExecutionEvent) {
		for _, h := range hooks {
			if fn := pick(h); fn != nil {
				fn(ctx, e)
			}
		}
	}
}
