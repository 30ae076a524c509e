// Package engine dispatches requests through routes and stage-ordered
// middleware pipelines and guarantees a response for every request.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/middleware"
	"github.com/tjfontaine/stagehand/internal/pipeline"
	"github.com/tjfontaine/stagehand/internal/route"
	"github.com/tjfontaine/stagehand/internal/router"
	"github.com/tjfontaine/stagehand/internal/stage"
)

const tracerName = "github.com/tjfontaine/stagehand/internal/engine"

// Names bound in every request scope before the pipeline runs.
const (
	RequestName = "request"
	AllowedName = "allowed"
	LoggerName  = "logger"
)

// DefaultStages is the stage order used unless SetStages replaces it.
var DefaultStages = []string{"incoming", "validation", "authentication", "authorization", "general"}

// prepared is a registered route and, once sealed, its pipeline.
type prepared struct {
	route    route.Route
	pipeline *pipeline.Pipeline
}

// Engine owns the routing table, the stage order and the global
// middlewares. Configure it, then call Dispatch from any number of
// goroutines.
type Engine struct {
	root    *di.Scope
	logger  *slog.Logger
	tracer  trace.Tracer
	mapping di.Mapping
	routing RoutingOptions
	catch   CatchFunc

	mu     sync.Mutex
	stages []string
	always []middleware.Middleware
	staged map[*middleware.Kind][]middleware.Middleware
	routes []*prepared
	trie   *router.Trie[*prepared]

	sealOnce sync.Once
	sealErr  error
	sealed   atomic.Bool
	defaults map[int]*pipeline.Pipeline
}

// New creates an Engine with the default stage order.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		root:    di.NewScope(),
		logger:  slog.Default(),
		mapping: di.Identity,
		routing: DefaultRoutingOptions(),
		catch:   DefaultCatch,
		stages:  slices.Clone(DefaultStages),
		staged:  make(map[*middleware.Kind][]middleware.Middleware),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	e.trie = router.New[*prepared](router.Options{
		IgnoreCase:            e.routing.IgnoreCase,
		FixedPathRedirect:     e.routing.IgnoreMultiSlash,
		TrailingSlashRedirect: e.routing.IgnoreTrailingSlash,
	})
	e.root.RegisterValue(e.mapping(LoggerName), e.logger)
	return e, nil
}

// Scope returns the application scope.
func (e *Engine) Scope() *di.Scope {
	return e.root
}

// Mapping returns the name mapping applied to every binding. Middlewares
// built outside the engine use it to declare their parameters.
func (e *Engine) Mapping() di.Mapping {
	return e.mapping
}

// SetStages replaces the stage order.
func (e *Engine) SetStages(names ...string) error {
	order, err := stage.Order(names...)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed.Load() {
		return ErrSealed
	}
	e.stages = order
	return nil
}

// Stages returns the stage order.
func (e *Engine) Stages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.stages)
}

// AddMiddleware registers global middlewares. Always-middlewares run
// first in registration order; the others run with their stage. Nothing
// is registered when any middleware names an unknown stage.
func (e *Engine) AddMiddleware(mws ...middleware.Middleware) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed.Load() {
		return ErrSealed
	}
	for _, mw := range mws {
		if k := mw.Kind(); !k.IsAlways() && !slices.Contains(e.stages, k.Name()) {
			return &UnknownMiddlewareTypeError{Type: k.Name()}
		}
	}
	for _, mw := range mws {
		k := mw.Kind()
		if k.IsAlways() {
			e.always = append(e.always, mw)
			continue
		}
		e.staged[k] = append(e.staged[k], mw)
	}
	return nil
}

// AddRoute registers routes. A method and path pair may be registered
// once.
func (e *Engine) AddRoute(routes ...route.Route) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed.Load() {
		return ErrSealed
	}
	for _, r := range routes {
		for _, mw := range r.Middlewares() {
			k := mw.Kind()
			if k.IsAlways() || !slices.Contains(e.stages, k.Name()) {
				return &UnknownMiddlewareTypeError{Type: k.String()}
			}
		}
		node, err := e.trie.Define(r.Path())
		if err != nil {
			return err
		}
		p := &prepared{route: r}
		if err := node.Handle(r.Method(), p); err != nil {
			return err
		}
		e.routes = append(e.routes, p)
	}
	return nil
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Middlewares int    `json:"middlewares"`
}

// Routes lists registered routes in registration order.
func (e *Engine) Routes() []RouteInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RouteInfo, 0, len(e.routes))
	for _, p := range e.routes {
		out = append(out, RouteInfo{
			Method:      p.route.Method(),
			Path:        p.route.Path(),
			Middlewares: len(p.route.Middlewares()),
		})
	}
	return out
}

// Seal finishes configuration and builds every pipeline. It runs once;
// later calls return the first result. Dispatch seals implicitly.
func (e *Engine) Seal() error {
	e.sealOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sealed.Store(true)
		e.sealErr = e.build()
		if e.sealErr != nil {
			e.logger.Error("engine configuration failed", slog.String("error", e.sealErr.Error()))
			return
		}
		e.logger.Info("engine sealed",
			slog.Int("routes", len(e.routes)),
			slog.String("stages", strings.Join(e.stages, ",")),
		)
	})
	return e.sealErr
}

func (e *Engine) build() error {
	for k := range e.staged {
		if !slices.Contains(e.stages, k.Name()) {
			return &UnknownMiddlewareTypeError{Type: k.Name()}
		}
	}
	for _, p := range e.routes {
		steps, err := e.assemble(p.route.Middlewares())
		if err != nil {
			return fmt.Errorf("route %s %s: %w", p.route.Method(), p.route.Path(), err)
		}
		p.pipeline = pipeline.New(steps, p.route.Handle(), pipeline.WithTracer(e.tracer))
	}

	e.defaults = make(map[int]*pipeline.Pipeline)
	for _, status := range []int{http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusMovedPermanently} {
		steps, _ := e.assemble(nil)
		e.defaults[status] = pipeline.New(steps, route.Default(status).Handle(), pipeline.WithTracer(e.tracer))
	}
	return nil
}

// assemble orders always-middlewares first, then each stage's global
// middlewares followed by the route's own.
func (e *Engine) assemble(own []middleware.Middleware) ([]middleware.Middleware, error) {
	steps := slices.Clone(e.always)
	byKind := make(map[*middleware.Kind][]middleware.Middleware)
	for _, mw := range own {
		k := mw.Kind()
		if k.IsAlways() || !slices.Contains(e.stages, k.Name()) {
			return nil, &UnknownMiddlewareTypeError{Type: k.String()}
		}
		byKind[k] = append(byKind[k], mw)
	}
	for _, name := range e.stages {
		k := middleware.KindOf(name)
		steps = append(steps, e.staged[k]...)
		steps = append(steps, byKind[k]...)
	}
	return steps, nil
}

// target is what routing selected for a request.
type target struct {
	pipeline *pipeline.Pipeline
	location string
	allowed  []string
}

// Dispatch runs req through the engine. It always returns a response:
// errors and panics are handed to the catch hook, and a failing hook is
// replaced by a generic 500. Extra entries are bound in the request scope
// next to the request itself.
func (e *Engine) Dispatch(ctx context.Context, req *httpmsg.Request, extra ...di.Entry) *httpmsg.Response {
	ctx, span := e.tracer.Start(ctx, "stagehand.dispatch")
	defer span.End()
	if req != nil {
		span.SetAttributes(
			attribute.String("http.method", req.Method()),
			attribute.String("http.path", req.Path()),
		)
	}

	res, err := e.dispatch(ctx, req, extra)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res = e.handleError(ctx, req, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode()))
	return res
}

// Inject dispatches a request built in-process, without a transport.
func (e *Engine) Inject(ctx context.Context, req *httpmsg.Request) *httpmsg.Response {
	return e.Dispatch(ctx, req)
}

func (e *Engine) dispatch(ctx context.Context, req *httpmsg.Request, extra []di.Entry) (res *httpmsg.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	if err := e.Seal(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNilRequest
	}

	scope := e.root.Child()
	scope.RegisterValue(e.mapping(RequestName), req)
	scope.Register(e.mapping, extra...)

	t := e.resolve(scope, req)
	res, err = t.pipeline.Run(ctx, scope, e.mapping)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &MissingResponseError{Method: req.Method(), Path: req.Path()}
	}

	if t.location != "" {
		res.SetHeader("Location", t.location)
	}
	if res.StatusCode() == http.StatusMethodNotAllowed && len(t.allowed) > 0 && res.HeaderMap().First("Allow") == "" {
		res.SetHeader("Allow", strings.Join(t.allowed, ", "))
	}
	return res, nil
}

// resolve matches req, following a redirect hint at most once.
func (e *Engine) resolve(scope *di.Scope, req *httpmsg.Request) target {
	m := e.trie.Match(req.Path())
	if m.Node == nil {
		if hint := m.Redirect(); hint != "" {
			if !e.routing.InternalRedirect {
				location := hint
				if q := req.Query(); len(q) > 0 {
					location += "?" + q.Encode()
				}
				return target{pipeline: e.defaults[http.StatusMovedPermanently], location: location}
			}
			req.SetPath(hint)
			m = e.trie.Match(hint)
		}
	}
	if m.Node == nil {
		return target{pipeline: e.defaults[http.StatusNotFound]}
	}

	allowed := m.Node.Allow()
	scope.RegisterValue(e.mapping(AllowedName), allowed)
	req.SetParams(m.Params)

	p, ok := m.Node.Handler(req.Method())
	if !ok {
		return target{pipeline: e.defaults[http.StatusMethodNotAllowed], allowed: allowed}
	}
	return target{pipeline: p.pipeline}
}

// handleError runs the catch hook for err.
func (e *Engine) handleError(ctx context.Context, req *httpmsg.Request, err error) *httpmsg.Response {
	var method, path string
	if req != nil {
		method, path = req.Method(), req.Path()
	}
	e.logger.Error("dispatch failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)

	res, catchErr := e.runCatch(ctx, err)
	if catchErr == nil && res == nil {
		catchErr = &MissingResponseError{Method: method, Path: path}
	}
	if catchErr != nil {
		e.logger.Error("catch failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
			slog.String("catch_error", catchErr.Error()),
		)
		return httpmsg.NewResponse(http.StatusInternalServerError)
	}
	return res
}

func (e *Engine) runCatch(ctx context.Context, err error) (res *httpmsg.Response, catchErr error) {
	defer func() {
		if r := recover(); r != nil {
			res, catchErr = nil, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return e.catch(ctx, err)
}
