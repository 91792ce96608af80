package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// Engine is the protocol orchestrator. It owns the catalog and the active set and
// mirrors every mutation of the active set into the ExecutionStore.
type Engine struct {
	store      ports.ExecutionStore
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	now        func() time.Time
	newID      func(protocolID string, at time.Time) string
	fileExists domain.FileChecker

	mu        sync.Mutex
	protocols map[string]*domain.Protocol
	order     []string
	active    map[string]*domain.Execution
	started   []string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source used for start/complete stamps and ${today}.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how active execution IDs are minted.
func WithIDGenerator(gen func(protocolID string, at time.Time) string) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithFileChecker installs the predicate behind the file_exists condition.
func WithFileChecker(fc domain.FileChecker) EngineOption {
	return func(e *Engine) {
		e.fileExists = fc
	}
}

// NewEngine creates an engine persisting to store. The catalog starts empty.
func NewEngine(store ports.ExecutionStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		newID:     NewIDGenerator().Next,
		protocols: make(map[string]*domain.Protocol),
		active:    make(map[string]*domain.Execution),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register inserts p into the catalog. Re-registering an ID overwrites the previous
// definition but keeps its position in the catalog order.
func (e *Engine) Register(p domain.Protocol) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.protocols[p.ID]; !exists {
		e.order = append(e.order, p.ID)
	} else {
		e.logger.Debug("Protocol redefined", "protocol_id", p.ID)
	}
	def := p
	e.protocols[p.ID] = &def
	return nil
}

// Protocol returns a registered definition.
func (e *Engine) Protocol(id string) (domain.Protocol, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.protocols[id]
	if !ok {
		return domain.Protocol{}, false
	}
	return *p, true
}

// Protocols returns the catalog in registration order.
func (e *Engine) Protocols() []domain.Protocol {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Protocol, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.protocols[id])
	}
	return out
}

// Reload re-populates the active set from the store, binding each snapshot to the
// registered protocol with the same ID. Snapshots of unknown protocols are skipped,
// and executions already in the active set are left as they are.
// It returns the number of executions restored.
func (e *Engine) Reload(ctx context.Context) (int, error) {
	snaps, err := e.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load active protocols: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	restored := 0
	for _, s := range snaps {
		if _, live := e.active[s.ID]; live {
			continue
		}
		p, ok := e.protocols[s.ProtocolID]
		if !ok {
			e.logger.Warn("Skipping active protocol with unknown definition", "active_id", s.ID, "protocol_id", s.ProtocolID)
			continue
		}
		exec := domain.Restore(s, p)
		exec.SetFileChecker(e.fileExists)
		e.track(exec)
		restored++
	}
	e.logger.Debug("Active protocols reloaded", "restored", restored, "stored", len(snaps))
	return restored, nil
}

func (e *Engine) track(exec *domain.Execution) {
	if _, exists := e.active[exec.ID]; !exists {
		e.started = append(e.started, exec.ID)
	}
	e.active[exec.ID] = exec
}

func (e *Engine) untrack(id string) {
	delete(e.active, id)
	for i, sid := range e.started {
		if sid == id {
			e.started = append(e.started[:i], e.started[i+1:]...)
			break
		}
	}
}

// lookup must be called with mu held.
func (e *Engine) lookup(activeID string) (*domain.Execution, error) {
	exec, ok := e.active[activeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrExecutionNotFound, activeID)
	}
	return exec, nil
}

// Active returns a detached copy of an execution in the active set.
func (e *Engine) Active(activeID string) (*domain.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exec, err := e.lookup(activeID)
	if err != nil {
		return nil, err
	}
	return e.detach(exec), nil
}

// detach copies exec so callers can read or mutate it without touching the active set.
func (e *Engine) detach(exec *domain.Execution) *domain.Execution {
	cp := domain.Restore(exec.Snapshot(), exec.Protocol)
	cp.SetFileChecker(e.fileExists)
	return cp
}

// Start creates an execution of protocolID, persists it and adds it to the active set.
// Nothing is registered when the store rejects the snapshot. The returned execution
// is a detached copy.
func (e *Engine) Start(ctx context.Context, protocolID string, c domain.Context) (*domain.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.protocols[protocolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProtocolNotFound, protocolID)
	}

	startedAt := e.now()
	exec := domain.NewExecution(e.newID(p.ID, startedAt), p, c.Clone(), startedAt)
	exec.SetFileChecker(e.fileExists)

	if err := e.store.Save(ctx, exec.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to persist active protocol %s: %w", exec.ID, err)
	}
	e.track(exec)

	e.logger.Info("Protocol started", "active_id", exec.ID, "protocol_id", p.ID)
	if e.hooks.OnProtocolStart != nil {
		e.hooks.OnProtocolStart(ctx, e.event(domain.EventProtocolStart, exec, ""))
	}
	return e.detach(exec), nil
}

// Next reports the next action for an active execution. Conditional steps that do not
// hold are auto-completed on the way and the updated snapshot is persisted.
func (e *Engine) Next(ctx context.Context, activeID string) (*domain.NextAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.lookup(activeID)
	if err != nil {
		return nil, err
	}

	// Skips are applied to a copy that replaces the live execution once persisted.
	exec := e.detach(current)
	step, skipped := exec.NextStep()
	if len(skipped) > 0 {
		if err := e.store.Save(ctx, exec.Snapshot()); err != nil {
			return nil, fmt.Errorf("failed to persist skipped steps for %s: %w", exec.ID, err)
		}
		e.active[exec.ID] = exec
		for _, id := range skipped {
			e.logger.Debug("Step skipped", "active_id", exec.ID, "step_id", id)
			if e.hooks.OnStepSkip != nil {
				e.hooks.OnStepSkip(ctx, e.event(domain.EventStepSkip, exec, id))
			}
		}
	}

	now := e.now()
	if step == nil {
		return &domain.NextAction{
			Type:    domain.ActionComplete,
			Message: fmt.Sprintf("✅ Protocol %q completed!", exec.Protocol.Name),
			Summary: renderSummary(exec, now),
			Skipped: skipped,
		}, nil
	}

	progress := exec.Progress()
	return &domain.NextAction{
		Type:     domain.ActionExecute,
		Step:     step,
		Command:  RenderCommand(step.Command, exec.Context, now),
		Progress: &progress,
		Display:  renderStep(*step, exec.Context, now),
		Skipped:  skipped,
	}, nil
}

// CompleteStep marks stepID completed on the execution and persists the snapshot.
// Step IDs that do not belong to the protocol are rejected.
func (e *Engine) CompleteStep(ctx context.Context, activeID, stepID string, result any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.lookup(activeID)
	if err != nil {
		return err
	}
	if _, _, ok := current.Protocol.Step(stepID); !ok {
		return fmt.Errorf("%w: %s in protocol %s", domain.ErrStepNotFound, stepID, current.Protocol.ID)
	}

	exec := e.detach(current)
	exec.CompleteStep(stepID, result)
	if err := e.store.Save(ctx, exec.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist step %s of %s: %w", stepID, exec.ID, err)
	}
	e.active[exec.ID] = exec

	e.logger.Info("Step completed", "active_id", exec.ID, "step_id", stepID)
	if e.hooks.OnStepComplete != nil {
		e.hooks.OnStepComplete(ctx, e.event(domain.EventStepComplete, exec, stepID))
	}
	return nil
}

// DisplayProgress renders the status block of an active execution.
func (e *Engine) DisplayProgress(_ context.Context, activeID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exec, err := e.lookup(activeID)
	if err != nil {
		return "", err
	}
	return renderProgress(exec, e.now()), nil
}

// ListProtocols summarizes the catalog, optionally restricted to one category.
func (e *Engine) ListProtocols(_ context.Context, category string) []domain.ProtocolSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := []domain.ProtocolSummary{}
	for _, id := range e.order {
		p := e.protocols[id]
		if category != "" && p.Metadata.Category != category {
			continue
		}
		out = append(out, p.Summary())
	}
	return out
}

// ListActive summarizes the active set in start order.
func (e *Engine) ListActive(_ context.Context) []domain.ActiveSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.ActiveSummary, 0, len(e.started))
	for _, id := range e.started {
		exec := e.active[id]
		current := domain.StepComplete
		if step := exec.PeekStep(); step != nil {
			current = step.Name
		}
		out = append(out, domain.ActiveSummary{
			ID:          exec.ID,
			Protocol:    exec.Protocol.Name,
			ProtocolID:  exec.Protocol.ID,
			StartedAt:   exec.StartedAt,
			Progress:    exec.Progress(),
			CurrentStep: current,
		})
	}
	return out
}

// Finish archives an active execution into the history log and drops it from the active set.
func (e *Engine) Finish(ctx context.Context, activeID string, success bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exec, err := e.lookup(activeID)
	if err != nil {
		return err
	}
	if err := e.store.Complete(ctx, activeID, success); err != nil {
		return fmt.Errorf("failed to archive %s: %w", activeID, err)
	}
	e.untrack(activeID)

	e.logger.Info("Protocol finished", "active_id", activeID, "success", success)
	if e.hooks.OnProtocolFinish != nil {
		ev := e.event(domain.EventProtocolFinish, exec, "")
		ev.Success = success
		e.hooks.OnProtocolFinish(ctx, ev)
	}
	return nil
}

// Statistics delegates to the store.
func (e *Engine) Statistics(ctx context.Context) (domain.Statistics, error) {
	return e.store.Statistics(ctx)
}

// Cleanup prunes stale executions from the store and from the active set.
// A non-positive maxAge selects the default of 24 hours.
func (e *Engine) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	if maxAge <= 0 {
		maxAge = ports.DefaultMaxAge
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.store.Cleanup(ctx, maxAge)
	if err != nil {
		return nil, fmt.Errorf("cleanup failed: %w", err)
	}
	for _, id := range removed {
		e.untrack(id)
	}
	if len(removed) > 0 {
		e.logger.Info("Stale protocols removed", "count", len(removed))
	}
	return removed, nil
}

func (e *Engine) event(t domain.EventType, exec *domain.Execution, stepID string) *domain.ExecutionEvent {
	return &domain.ExecutionEvent{
		EventBase:   domain.EventBase{Timestamp: e.now(), Type: t},
		ExecutionID: exec.ID,
		ProtocolID:  exec.Protocol.ID,
		StepID:      stepID,
	}
}
