package engine

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
)

// CatchFunc maps a dispatch error to a response. A CatchFunc that fails,
// panics or returns no response is replaced by a generic 500.
type CatchFunc func(ctx context.Context, err error) (*httpmsg.Response, error)

// DefaultCatch is the CatchFunc used unless WithCatch overrides it.
func DefaultCatch(ctx context.Context, err error) (*httpmsg.Response, error) {
	return Convert(err), nil
}

// RoutingOptions controls path normalization.
type RoutingOptions struct {
	// IgnoreCase matches static path segments case-insensitively.
	IgnoreCase bool
	// IgnoreMultiSlash treats duplicate slashes, dot segments and wrong
	// case as correctable.
	IgnoreMultiSlash bool
	// IgnoreTrailingSlash treats a missing or extra trailing slash as
	// correctable.
	IgnoreTrailingSlash bool
	// InternalRedirect serves corrected paths directly instead of
	// answering with a 301.
	InternalRedirect bool
}

// DefaultRoutingOptions ignores case and serves corrected paths in place.
func DefaultRoutingOptions() RoutingOptions {
	return RoutingOptions{IgnoreCase: true, IgnoreMultiSlash: true, IgnoreTrailingSlash: true, InternalRedirect: true}
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine) error

// WithScope sets the application scope every request scope derives from.
func WithScope(s *di.Scope) Option {
	return func(e *Engine) error {
		if s == nil {
			return errors.New("scope must not be nil")
		}
		e.root = s
		return nil
	}
}

// WithLogger sets the logger. It is also bound as "logger" in the
// application scope.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		e.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used for dispatch and step spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) error {
		e.tracer = t
		return nil
	}
}

// WithNameMapping rewrites every name the engine binds in a scope.
func WithNameMapping(m di.Mapping) Option {
	return func(e *Engine) error {
		if m != nil {
			e.mapping = m
		}
		return nil
	}
}

// WithRouting sets path normalization options.
func WithRouting(opts RoutingOptions) Option {
	return func(e *Engine) error {
		e.routing = opts
		return nil
	}
}

// WithCatch overrides the error-to-response hook.
func WithCatch(fn CatchFunc) Option {
	return func(e *Engine) error {
		if fn == nil {
			return errors.New("catch function must not be nil")
		}
		e.catch = fn
		return nil
	}
}

// WithStages replaces the default stage order.
func WithStages(names ...string) Option {
	return func(e *Engine) error {
		return e.SetStages(names...)
	}
}
