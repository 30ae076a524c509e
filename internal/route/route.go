// Package route defines request handlers and the built-in default routes.
package route

import (
	"context"
	"strings"
	"sync"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/middleware"
)

// Route binds a handler and its own middlewares to a method and path
// pattern.
type Route interface {
	Method() string
	Path() string
	Middlewares() []middleware.Middleware
	Handle() di.Injectable
}

// Definition is the plain struct implementation of Route.
type Definition struct {
	Verb     string
	Pattern  string
	Wrappers []middleware.Middleware
	Handler  di.Injectable
}

// New returns a route. The method is upper-cased.
func New(method, path string, handle di.Injectable, mws ...middleware.Middleware) *Definition {
	return &Definition{
		Verb:     strings.ToUpper(method),
		Pattern:  path,
		Wrappers: mws,
		Handler:  handle,
	}
}

func (d *Definition) Method() string                       { return d.Verb }
func (d *Definition) Path() string                         { return d.Pattern }
func (d *Definition) Middlewares() []middleware.Middleware { return d.Wrappers }
func (d *Definition) Handle() di.Injectable                { return d.Handler }

var (
	defaultsMu sync.Mutex
	defaults   = map[int]*Definition{}
)

// Default returns the pseudo-route answering with a bare status, such as
// 404 for unmatched paths. Calls with the same status return the same
// route.
func Default(status int) Route {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	if d, ok := defaults[status]; ok {
		return d
	}
	d := &Definition{
		Handler: di.Fn(func(ctx context.Context, args di.Args) (any, error) {
			return httpmsg.NewResponse(status), nil
		}),
	}
	defaults[status] = d
	return d
}
