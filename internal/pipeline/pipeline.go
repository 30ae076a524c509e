package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/middleware"
)

const tracerName = "github.com/tjfontaine/stagehand/internal/pipeline"

// ResponseName is the scope entry under which the current response is
// bound whenever a step produces one.
const ResponseName = "response"

// Phase names the part of the protocol a step belongs to.
type Phase string

const (
	PhaseEnter  Phase = "enter"
	PhaseHandle Phase = "handle"
	PhaseLeave  Phase = "leave"
)

type state int

const (
	entering state = iota
	handling
	leaving
	done
)

// Pipeline runs an ordered list of middlewares around a handler. It holds
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	steps  []middleware.Middleware
	handle di.Injectable
	tracer trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTracer sets the tracer used for step spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New returns a pipeline entering steps in the given order before calling
// handle.
func New(steps []middleware.Middleware, handle di.Injectable, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  steps,
		handle: handle,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Len returns the number of middlewares in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// run is the per-request context: the current response and the stack of
// middlewares whose Enter completed.
type run struct {
	scope    *di.Scope
	mapping  di.Mapping
	response *httpmsg.Response
	entered  []middleware.Middleware
}

// Run executes the pipeline once against scope. Step results are bound
// through mapping. An error from an enter step or the handler aborts the
// run immediately. Errors from leave steps are collected and returned
// joined once every entered middleware has been left.
func (p *Pipeline) Run(ctx context.Context, scope *di.Scope, mapping di.Mapping) (*httpmsg.Response, error) {
	if mapping == nil {
		mapping = di.Identity
	}
	r := &run{scope: scope, mapping: mapping}
	var leaveErrs []error

	for st := entering; st != done; {
		switch st {
		case entering:
			for _, mw := range p.steps {
				stop, err := p.step(ctx, r, PhaseEnter, mw.Kind().String(), mw.Enter())
				if err != nil {
					return nil, err
				}
				r.entered = append(r.entered, mw)
				if stop {
					break
				}
			}
			st = handling

		case handling:
			if r.response == nil {
				if _, err := p.step(ctx, r, PhaseHandle, "handler", p.handle); err != nil {
					return nil, err
				}
			}
			st = leaving

		case leaving:
			for i := len(r.entered) - 1; i >= 0; i-- {
				mw := r.entered[i]
				if _, err := p.step(ctx, r, PhaseLeave, mw.Kind().String(), mw.Leave()); err != nil {
					leaveErrs = append(leaveErrs, err)
				}
			}
			st = done
		}
	}

	if err := errors.Join(leaveErrs...); err != nil {
		return nil, err
	}
	return r.response, nil
}

// step invokes fn against the run scope and applies its result. It reports
// whether the step produced a response.
func (p *Pipeline) step(ctx context.Context, r *run, phase Phase, stage string, fn di.Injectable) (bool, error) {
	if fn.IsZero() {
		return false, nil
	}

	ctx, span := p.tracer.Start(ctx, "stagehand."+string(phase),
		trace.WithAttributes(attribute.String("stagehand.stage", stage)))
	defer span.End()

	v, err := r.scope.Inject(fn)(ctx)
	if err == nil {
		var produced bool
		produced, err = r.apply(v, phase, stage)
		if err == nil {
			return produced, nil
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return false, err
}

func (r *run) apply(v any, phase Phase, stage string) (bool, error) {
	switch res := v.(type) {
	case nil:
		return false, nil
	case *httpmsg.Response:
		if res == nil {
			return false, nil
		}
		r.response = res
		r.scope.RegisterValue(r.mapping(ResponseName), res)
		return true, nil
	case di.Entry:
		r.scope.Register(r.mapping, res)
		return false, nil
	case []di.Entry:
		r.scope.Register(r.mapping, res...)
		return false, nil
	default:
		return false, &InvalidStageResultError{Value: v, Phase: phase, Stage: stage}
	}
}

// InvalidStageResultError is returned when a step yields something other
// than a response, scope entries or nil.
type InvalidStageResultError struct {
	Value any
	Phase Phase
	Stage string
}

func (e *InvalidStageResultError) Error() string {
	return fmt.Sprintf("invalid %s result from %s: %T", e.Phase, e.Stage, e.Value)
}
