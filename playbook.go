package playbook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/catalog"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// Engine is the high-level entry point for the Playbook library.
// It wraps the internal runtime, loads the catalog and restores the active set.
type Engine struct {
	runtime *runtime.Engine

	store       ports.ExecutionStore
	loaders     []ports.CatalogLoader
	noBuiltin   bool
	defaults    domain.Context
	hooks       []domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
}

var _ ports.ProtocolEngine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the execution store. Defaults to an in-memory store.
func WithStore(store ports.ExecutionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLoader adds a catalog source. Sources are merged after the built-ins,
// in the order given; later definitions replace earlier ones with the same ID.
func WithLoader(l ports.CatalogLoader) Option {
	return func(e *Engine) {
		e.loaders = append(e.loaders, l)
	}
}

// WithoutBuiltins skips the built-in catalog.
func WithoutBuiltins() Option {
	return func(e *Engine) {
		e.noBuiltin = true
	}
}

// WithDefaultContext seeds every Detect and Start context. Caller values win.
func WithDefaultContext(c domain.Context) Option {
	return func(e *Engine) {
		e.defaults = c.Clone()
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls chain.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// WithIDGenerator overrides how active execution IDs are minted.
func WithIDGenerator(gen func(protocolID string, at time.Time) string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithIDGenerator(gen))
	}
}

// WithFileChecker resolves the file_exists condition.
func WithFileChecker(fc domain.FileChecker) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithFileChecker(fc))
	}
}

// New builds an engine, registers the catalog and restores persisted executions.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	runtimeOpts := []runtime.EngineOption{runtime.WithLogger(eng.logger)}
	if len(eng.hooks) > 0 {
		runtimeOpts = append(runtimeOpts, runtime.WithLifecycleHooks(domain.Chain(eng.hooks...)))
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(eng.store, runtimeOpts...)

	if _, err := eng.Refresh(ctx); err != nil {
		return nil, err
	}

	restored, err := eng.runtime.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore active protocols: %w", err)
	}
	eng.logger.Debug("Engine ready", "protocols", len(eng.runtime.Protocols()), "restored", restored)
	return eng, nil
}

// Refresh reloads every catalog source and registers the result.
// Definitions removed from a source stay registered until restart.
func (e *Engine) Refresh(ctx context.Context) (int, error) {
	sources := make([]ports.CatalogLoader, 0, len(e.loaders)+1)
	if !e.noBuiltin {
		sources = append(sources, catalog.BuiltinLoader{})
	}
	sources = append(sources, e.loaders...)

	protocols, err := catalog.Merge(e.logger, sources...).Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog: %w", err)
	}
	for _, p := range protocols {
		if err := e.runtime.Register(p); err != nil {
			return 0, fmt.Errorf("failed to register protocol %q: %w", p.ID, err)
		}
	}
	return len(protocols), nil
}

// Register adds a single definition to the catalog.
func (e *Engine) Register(p domain.Protocol) error {
	return e.runtime.Register(p)
}

// Protocol returns a registered definition.
func (e *Engine) Protocol(id string) (domain.Protocol, bool) {
	return e.runtime.Protocol(id)
}

// Protocols returns the catalog in registration order.
func (e *Engine) Protocols() []domain.Protocol {
	return e.runtime.Protocols()
}

// Active returns a detached copy of an active execution.
func (e *Engine) Active(activeID string) (*domain.Execution, error) {
	return e.runtime.Active(activeID)
}

// Store exposes the configured execution store.
func (e *Engine) Store() ports.ExecutionStore {
	return e.store
}

func (e *Engine) withDefaults(c domain.Context) domain.Context {
	if len(e.defaults) == 0 {
		return c
	}
	merged := e.defaults.Clone()
	for k, v := range c {
		merged[k] = v
	}
	return merged
}

// Detect returns the protocols triggered by input, highest priority first.
func (e *Engine) Detect(ctx context.Context, input string, c domain.Context) []domain.Protocol {
	return e.runtime.Detect(ctx, input, e.withDefaults(c))
}

// Start begins a new execution of protocolID.
func (e *Engine) Start(ctx context.Context, protocolID string, c domain.Context) (*domain.Execution, error) {
	return e.runtime.Start(ctx, protocolID, e.withDefaults(c))
}

// Next advances to the next runnable step.
func (e *Engine) Next(ctx context.Context, activeID string) (*domain.NextAction, error) {
	return e.runtime.Next(ctx, activeID)
}

// CompleteStep records stepID as done with an optional result.
func (e *Engine) CompleteStep(ctx context.Context, activeID, stepID string, result any) error {
	return e.runtime.CompleteStep(ctx, activeID, stepID, result)
}

// DisplayProgress renders the markdown progress view.
func (e *Engine) DisplayProgress(ctx context.Context, activeID string) (string, error) {
	return e.runtime.DisplayProgress(ctx, activeID)
}

// ListProtocols summarizes the catalog, optionally filtered by category.
func (e *Engine) ListProtocols(ctx context.Context, category string) []domain.ProtocolSummary {
	return e.runtime.ListProtocols(ctx, category)
}

// ListActive summarizes the executions in progress.
func (e *Engine) ListActive(ctx context.Context) []domain.ActiveSummary {
	return e.runtime.ListActive(ctx)
}

// Finish archives an execution into the history.
func (e *Engine) Finish(ctx context.Context, activeID string, success bool) error {
	return e.runtime.Finish(ctx, activeID, success)
}

// Statistics aggregates active and archived executions.
func (e *Engine) Statistics(ctx context.Context) (domain.Statistics, error) {
	return e.runtime.Statistics(ctx)
}

// Cleanup drops executions started more than maxAge ago.
func (e *Engine) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	return e.runtime.Cleanup(ctx, maxAge)
}
