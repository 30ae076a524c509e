// Package middleware defines the stage-bound middlewares that wrap every
// route handler.
package middleware

import (
	"sync"

	"github.com/tjfontaine/stagehand/internal/di"
)

// Kind identifies the stage a middleware belongs to. Kinds are interned, so
// two kinds with the same name are the same pointer.
type Kind struct {
	name string
}

// Name returns the stage name. It is empty for Always.
func (k *Kind) Name() string { return k.name }

// IsAlways reports whether middlewares of this kind run on every request
// ahead of the staged ones.
func (k *Kind) IsAlways() bool { return k == nil || k.name == "" }

func (k *Kind) String() string {
	if k.IsAlways() {
		return "always"
	}
	return k.name
}

var (
	kindsMu sync.Mutex
	kinds   = map[string]*Kind{}
)

// Always is the kind of middlewares that run regardless of stage order.
var Always = KindOf("")

// KindOf returns the interned kind for a stage name.
func KindOf(name string) *Kind {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if k, ok := kinds[name]; ok {
		return k
	}
	k := &Kind{name: name}
	kinds[name] = k
	return k
}

// Middleware is a two-phase step run around a route handler. Enter runs on
// the way in, Leave in reverse order on the way out. Either may be the zero
// Injectable.
type Middleware interface {
	Kind() *Kind
	Enter() di.Injectable
	Leave() di.Injectable
}

// Definition is the plain struct implementation of Middleware.
type Definition struct {
	Stage   *Kind
	OnEnter di.Injectable
	OnLeave di.Injectable
}

// New returns a middleware for the named stage. An empty stage makes an
// always-middleware.
func New(stage string, enter, leave di.Injectable) *Definition {
	return &Definition{Stage: KindOf(stage), OnEnter: enter, OnLeave: leave}
}

// Kind returns the stage kind.
func (d *Definition) Kind() *Kind {
	if d.Stage == nil {
		return Always
	}
	return d.Stage
}

// Enter returns the enter step.
func (d *Definition) Enter() di.Injectable { return d.OnEnter }

// Leave returns the leave step.
func (d *Definition) Leave() di.Injectable { return d.OnLeave }
