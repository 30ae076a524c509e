// Package stagehand provides the public API for embedding the dispatch
// runtime. This is the stable API for external consumers.
package stagehand

import (
	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/engine"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/middleware"
	"github.com/tjfontaine/stagehand/internal/route"
	"github.com/tjfontaine/stagehand/internal/runtime"
)

// Runtime is the main entry point for running a stagehand service.
// See internal/runtime.Runtime for full documentation.
type Runtime = runtime.Runtime

// Option is a functional option for configuring a Runtime.
type Option = runtime.Option

// New creates a new Runtime with the given options.
// Example:
//
//	rt, err := stagehand.New(
//	    stagehand.WithFileConfig("config.yaml"),
//	    stagehand.WithSQLiteJournal("./data/journal.db"),
//	)
var New = runtime.New

// Runtime options
var (
	WithFileConfig    = runtime.WithFileConfig
	WithConfig        = runtime.WithConfig
	WithLogger        = runtime.WithLogger
	WithSQLiteJournal = runtime.WithSQLiteJournal
	WithMemoryJournal = runtime.WithMemoryJournal
	WithJournalStore  = runtime.WithJournalStore
	WithEngineOptions = runtime.WithEngineOptions
)

// Building blocks for routes and middlewares.
type (
	Engine     = engine.Engine
	Request    = httpmsg.Request
	Response   = httpmsg.Response
	Middleware = middleware.Middleware
	Route      = route.Route
	Args       = di.Args
	Param      = di.Param
	Injectable = di.Injectable
	Value      = di.Value
	Factory    = di.Factory
)

var (
	NewRoute        = route.New
	NewMiddleware   = middleware.New
	NewResponse     = httpmsg.NewResponse
	NewBody         = httpmsg.NewBody
	WithBody        = httpmsg.WithBody
	KindOf          = middleware.KindOf
	Always          = middleware.Always
	Fn              = di.Fn
	Named           = di.Named
	Defaulted       = di.Defaulted
	WithCatch       = engine.WithCatch
	WithNameMapping = engine.WithNameMapping
)
