package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/internal/config"
	"github.com/aretw0/playbook/pkg/adapters/file"
	httpAdapter "github.com/aretw0/playbook/pkg/adapters/http"
	loamAdapter "github.com/aretw0/playbook/pkg/adapters/loam"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/adapters/redis"
	"github.com/aretw0/playbook/pkg/adapters/sqlite"
	"github.com/aretw0/playbook/pkg/catalog"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/observability"
	"github.com/aretw0/playbook/pkg/persistence/middleware"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// App bundles the engine with the adapters a command may need.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Engine  *playbook.Engine
	Streams *httpAdapter.StreamManager

	// Registry is nil unless metrics are enabled.
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Catalog is the Loam source, when a catalog dir is configured.
	Catalog *loamAdapter.Loader

	closers []func() error
}

// NewApp wires store, catalog sources and hooks from cfg.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Streams: httpAdapter.NewStreamManager(logger),
	}

	store, err := app.openStore()
	if err != nil {
		return nil, err
	}
	store, err = secure(store, cfg.Security)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []playbook.Option{
		playbook.WithStore(store),
		playbook.WithLogger(logger),
		playbook.WithLifecycleHooks(debugHooks(logger)),
		playbook.WithLifecycleHooks(app.Streams.Hooks()),
	}

	if cfg.Metrics {
		app.Registry = prometheus.NewRegistry()
		app.Metrics = observability.NewMetrics(app.Registry, func() float64 {
			if app.Engine == nil {
				return 0
			}
			return float64(len(app.Engine.ListActive(context.Background())))
		})
		opts = append(opts, playbook.WithLifecycleHooks(app.Metrics.Hooks()))
	}

	if cfg.Catalog.NoBuiltin {
		opts = append(opts, playbook.WithoutBuiltins())
	}
	if cfg.Catalog.File != "" {
		opts = append(opts, playbook.WithLoader(catalog.NewFileLoader(cfg.Catalog.File)))
	}
	if cfg.Catalog.Dir != "" {
		app.Catalog, err = loamAdapter.Open(cfg.Catalog.Dir)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		opts = append(opts, playbook.WithLoader(app.Catalog))
	}
	if len(cfg.Vars) > 0 {
		vars := make(domain.Context, len(cfg.Vars))
		for k, v := range cfg.Vars {
			vars[k] = domain.StringValue(v)
		}
		opts = append(opts, playbook.WithDefaultContext(vars))
	}

	app.Engine, err = playbook.New(ctx, opts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return app, nil
}

func (a *App) openStore() (ports.ExecutionStore, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil
	case config.StoreRedis:
		opts := []redis.Option{redis.WithLogger(a.Logger)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		s := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.StoreFile, "":
		s := file.New(cfg.DataDir, a.Logger)
		if err := s.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize data dir: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// secure wraps store with redaction and then encryption, as configured.
// Redaction runs first so masked values are what gets sealed.
func secure(store ports.ExecutionStore, cfg config.SecurityConfig) (ports.ExecutionStore, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDetect: func(_ context.Context, e *domain.DetectEvent) {
			logger.Debug("Detect", "input", e.Input, "matches", e.Matches)
		},
		OnProtocolStart: func(_ context.Context, e *domain.ExecutionEvent) {
			logger.Debug("Protocol Start", "active_id", e.ExecutionID, "protocol_id", e.ProtocolID)
		},
		OnStepComplete: func(_ context.Context, e *domain.ExecutionEvent) {
			logger.Debug("Step Complete", "active_id", e.ExecutionID, "step_id", e.StepID)
		},
		OnStepSkip: func(_ context.Context, e *domain.ExecutionEvent) {
			logger.Debug("Step Skip", "active_id", e.ExecutionID, "step_id", e.StepID)
		},
		OnProtocolFinish: func(_ context.Context, e *domain.ExecutionEvent) {
			logger.Debug("Protocol Finish", "active_id", e.ExecutionID, "success", e.Success)
		},
	}
}
