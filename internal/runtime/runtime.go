// Package runtime wires configuration, the dispatch engine, the request
// journal and the HTTP server into one lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tjfontaine/stagehand/internal/auth"
	"github.com/tjfontaine/stagehand/internal/config"
	"github.com/tjfontaine/stagehand/internal/engine"
	"github.com/tjfontaine/stagehand/internal/journal"
	"github.com/tjfontaine/stagehand/internal/journal/memory"
	"github.com/tjfontaine/stagehand/internal/journal/sqlite"
	"github.com/tjfontaine/stagehand/internal/server"
)

// Runtime is the main entry point for running a stagehand service. Routes
// and middlewares are added to Engine() before Start.
type Runtime struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger
	journal    journal.Store
	engineOpts []engine.Option

	engine *engine.Engine
	server *server.Server
	auth   *auth.Authenticator

	mu      sync.Mutex
	addr    string
	started bool
	cancel  context.CancelFunc
}

// New creates a Runtime. Without WithConfig or WithFileConfig the
// configuration comes from the environment and defaults.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if r.config == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		r.config = cfg
	}

	if keys := authKeys(r.config); len(keys) > 0 {
		r.auth = auth.NewAuthenticator(keys)
	}

	if r.journal == nil {
		store, err := openJournal(r.config.Journal)
		if err != nil {
			return nil, err
		}
		r.journal = store
	}

	engineOpts := []engine.Option{
		engine.WithLogger(r.logger),
		engine.WithRouting(engine.RoutingOptions{
			IgnoreCase:          r.config.Routing.IgnoreCase,
			IgnoreMultiSlash:    r.config.Routing.IgnoreMultiSlash,
			IgnoreTrailingSlash: r.config.Routing.IgnoreTrailingSlash,
			InternalRedirect:    r.config.Routing.InternalRedirect,
		}),
	}
	if len(r.config.Pipeline.Stages) > 0 {
		engineOpts = append(engineOpts, engine.WithStages(r.config.Pipeline.Stages...))
	}
	eng, err := engine.New(append(engineOpts, r.engineOpts...)...)
	if err != nil {
		r.closeJournal()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	r.engine = eng

	serverOpts := []server.Option{server.WithLogger(r.logger)}
	if r.journal != nil {
		if err := eng.AddMiddleware(journal.NewRecorder(r.journal, r.logger, eng.Mapping()).Middleware()); err != nil {
			r.closeJournal()
			return nil, fmt.Errorf("add journal recorder: %w", err)
		}
		serverOpts = append(serverOpts, server.WithJournal(r.journal))
	}

	s := r.config.Server
	r.server = server.New(eng, server.Options{
		Addr:           s.Addr(),
		KeepAlive:      s.KeepAlive,
		TLSCertFile:    s.TLS.CertFile,
		TLSKeyFile:     s.TLS.KeyFile,
		AdminPath:      s.AdminPath,
		ServiceName:    r.config.Telemetry.ServiceName,
		ReadTimeout:    s.ReadTimeout,
		WriteTimeout:   s.WriteTimeout,
		RequestTimeout: s.RequestTimeout,
	}, serverOpts...)

	return r, nil
}

func authKeys(cfg *config.Config) []auth.Key {
	keys := make([]auth.Key, len(cfg.Auth.APIKeys))
	for i, k := range cfg.Auth.APIKeys {
		keys[i] = auth.Key{Hash: k.KeyHash, Principal: k.Principal}
	}
	return keys
}

func openJournal(cfg config.JournalConfig) (journal.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("create sqlite journal: %w", err)
		}
		return store, nil
	case "none":
		return nil, nil
	default:
		return memory.New(cfg.Capacity), nil
	}
}

// Engine returns the dispatch engine for route and middleware registration.
func (r *Runtime) Engine() *engine.Engine {
	return r.engine
}

// Authenticator returns the API key authenticator built from the auth
// configuration, or nil when no keys are configured.
func (r *Runtime) Authenticator() *auth.Authenticator {
	return r.auth
}

// Server returns the HTTP server.
func (r *Runtime) Server() *server.Server {
	return r.server
}

// Config returns the effective configuration.
func (r *Runtime) Config() *config.Config {
	return r.config
}

// Addr returns the bound address once started.
func (r *Runtime) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

// Start seals the engine and starts serving.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runtime already started")
	}

	if err := r.engine.Seal(); err != nil {
		return fmt.Errorf("seal engine: %w", err)
	}

	addr, err := r.server.Start()
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	r.addr = addr
	r.started = true

	if r.configPath != "" {
		watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		if err := config.Watch(watchCtx, r.configPath, r.logger, r.reload); err != nil {
			cancel()
			r.logger.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		} else {
			r.cancel = cancel
		}
	}

	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Int("routes", len(r.engine.Routes())),
		slog.Int("stages", len(r.engine.Stages())),
		slog.String("journal", r.config.Journal.Driver))
	return nil
}

// reload applies the parts of a changed configuration that can change at
// run time. Everything else needs a restart.
func (r *Runtime) reload(cfg *config.Config) {
	if r.auth == nil {
		if len(cfg.Auth.APIKeys) > 0 {
			r.logger.Warn("api keys added to a runtime started without auth, restart to enable")
		}
		return
	}
	r.auth.SetKeys(authKeys(cfg))
	r.logger.Info("api keys reloaded", slog.Int("keys", len(cfg.Auth.APIKeys)))
}

// Shutdown gracefully stops the server and closes the journal.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("shutting down runtime")

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	if r.started {
		if err := r.server.Shutdown(ctx); err != nil {
			r.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
		r.started = false
	}

	r.closeJournal()

	r.logger.Info("runtime shutdown complete")
	return nil
}

func (r *Runtime) closeJournal() {
	if r.journal == nil {
		return
	}
	if err := r.journal.Close(); err != nil {
		r.logger.Error("failed to close journal", slog.String("error", err.Error()))
	}
	r.journal = nil
}
