package runtime

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/stagehand/internal/config"
	"github.com/tjfontaine/stagehand/internal/engine"
	"github.com/tjfontaine/stagehand/internal/journal"
	"github.com/tjfontaine/stagehand/internal/journal/memory"
	"github.com/tjfontaine/stagehand/internal/journal/sqlite"
)

// Option is a functional option for configuring a Runtime.
type Option func(*Runtime) error

// WithFileConfig loads configuration from a YAML file overlaid with the
// environment. A missing file leaves only the environment and defaults.
// While running, API keys are reloaded whenever the file changes.
func WithFileConfig(path string) Option {
	return func(r *Runtime) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		r.config = cfg
		r.configPath = path
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(r *Runtime) error {
		if cfg == nil {
			return errors.New("config must not be nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		r.config = cfg
		return nil
	}
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) error {
		r.logger = logger
		return nil
	}
}

// WithSQLiteJournal records requests in a SQLite database at path.
func WithSQLiteJournal(path string) Option {
	return func(r *Runtime) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite journal: %w", err)
		}
		r.journal = store
		return nil
	}
}

// WithMemoryJournal keeps the most recent capacity requests in memory.
func WithMemoryJournal(capacity int) Option {
	return func(r *Runtime) error {
		r.journal = memory.New(capacity)
		return nil
	}
}

// WithJournalStore records requests in a custom store.
func WithJournalStore(store journal.Store) Option {
	return func(r *Runtime) error {
		r.journal = store
		return nil
	}
}

// WithEngineOptions passes extra options to the engine. They are applied
// after the options derived from the configuration.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(r *Runtime) error {
		r.engineOpts = append(r.engineOpts, opts...)
		return nil
	}
}
