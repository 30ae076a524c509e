// Package server bridges net/http to the dispatch engine and exposes a
// small admin API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/engine"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/journal"
)

// StatusMessageHeader carries a reason phrase that differs from the
// standard text, since net/http always writes the standard one.
const StatusMessageHeader = "X-Status-Message"

// Dispatcher is the part of the engine the server needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *httpmsg.Request, extra ...di.Entry) *httpmsg.Response
	Routes() []engine.RouteInfo
	Stages() []string
}

// Options configures the HTTP listener.
type Options struct {
	Addr           string
	KeepAlive      bool
	TLSCertFile    string
	TLSKeyFile     string
	AdminPath      string
	ServiceName    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithJournal exposes store through the admin API.
func WithJournal(store journal.Store) Option {
	return func(s *Server) { s.journal = store }
}

// Server serves every request through a Dispatcher.
type Server struct {
	Router  *chi.Mux
	opts    Options
	logger  *slog.Logger
	engine  Dispatcher
	journal journal.Store

	mu      sync.Mutex
	srv     *http.Server
	stopped bool
}

// New builds the HTTP handler stack around d.
func New(d Dispatcher, opts Options, options ...Option) *Server {
	s := &Server{opts: opts, engine: d, logger: slog.Default()}
	for _, o := range options {
		o(s)
	}
	if s.opts.ServiceName == "" {
		s.opts.ServiceName = "stagehand"
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	if opts.RequestTimeout > 0 {
		r.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, s.opts.ServiceName)
	})

	if opts.AdminPath != "" {
		r.Route(opts.AdminPath, func(r chi.Router) {
			r.Get("/routes", s.handleRoutes)
			r.Get("/stages", s.handleStages)
			r.Get("/journal", s.handleJournal)
		})
	}

	r.NotFound(s.serveDispatch)
	r.MethodNotAllowed(s.serveDispatch)
	r.Handle("/*", http.HandlerFunc(s.serveDispatch))

	s.Router = r
	return s
}

// TimeoutMiddleware bounds the request context. Dispatch steps observe the
// deadline through their context; nothing is forcibly interrupted.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Start listens on the configured address and serves in the background.
// It returns the bound address.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return "", errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return "", err
	}

	srv := &http.Server{
		Handler:      s.Router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	srv.SetKeepAlivesEnabled(s.opts.KeepAlive)
	s.srv = srv

	tls := s.opts.TLSCertFile != "" && s.opts.TLSKeyFile != ""
	go func() {
		var err error
		if tls {
			err = srv.ServeTLS(ln, s.opts.TLSCertFile, s.opts.TLSKeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", slog.String("error", err.Error()))
		}
	}()

	addr := ln.Addr().String()
	s.logger.Info("starting server", slog.String("addr", addr), slog.Bool("tls", tls))
	return addr, nil
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil || s.stopped {
		return errors.New("server already stopped")
	}
	s.stopped = true
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveDispatch(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	req := ToRequest(r)
	res := s.engine.Dispatch(r.Context(), req, di.Value{Name: journal.RequestIDName, Value: requestID})
	if res.StatusMessage() != http.StatusText(res.StatusCode()) {
		AddLogField(r.Context(), "status_message", res.StatusMessage())
	}
	s.write(w, r, res)
}

// ToRequest converts an inbound net/http request. Headers are added in
// sorted name order since http.Header does not keep arrival order.
func ToRequest(r *http.Request) *httpmsg.Request {
	headers := httpmsg.NewHeaders()
	for _, name := range slices.Sorted(maps.Keys(r.Header)) {
		headers.Add(name, r.Header[name]...)
	}
	trailers := httpmsg.NewHeaders()
	for name, values := range r.Trailer {
		trailers.Add(name, values...)
	}

	opts := []httpmsg.Option{httpmsg.WithHeaders(headers), httpmsg.WithTrailers(trailers)}
	if r.Body != nil && r.Body != http.NoBody {
		opts = append(opts, httpmsg.WithBody(httpmsg.NewBodyReader(r.Body)))
	}
	return httpmsg.NewRequest(r.Method, r.URL.Path, r.URL.Query(), opts...)
}

// write sends res. Trailers cannot be sent to HTTP/1.0 clients, so such
// responses are replaced by a 505.
func (s *Server) write(w http.ResponseWriter, r *http.Request, res *httpmsg.Response) {
	if res.TrailerMap().Len() > 0 && !r.ProtoAtLeast(1, 1) {
		res = httpmsg.NewResponse(http.StatusHTTPVersionNotSupported)
	}

	h := w.Header()
	res.HeaderMap().Each(func(name string, values []string) {
		h[name] = values
	})
	if s.opts.KeepAlive {
		h.Set("Connection", "keep-alive")
	} else {
		h.Set("Connection", "close")
	}
	if msg := res.StatusMessage(); msg != http.StatusText(res.StatusCode()) {
		h.Set(StatusMessageHeader, msg)
	}
	w.WriteHeader(res.StatusCode())

	if body := res.Body(); body != nil {
		if _, err := io.Copy(w, body); err != nil {
			s.logger.Warn("failed to write response body",
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("error", err.Error()),
			)
		}
		body.Close()
	}

	res.TrailerMap().Each(func(name string, values []string) {
		h[name] = values
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Routes())
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stages())
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	entries, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list journal", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list journal"})
		return
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
