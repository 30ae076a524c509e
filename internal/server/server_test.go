package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"

	"github.com/google/uuid"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/engine"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/journal"
	"github.com/tjfontaine/stagehand/internal/journal/memory"
	"github.com/tjfontaine/stagehand/internal/route"
	"github.com/tjfontaine/stagehand/internal/testutil"
)

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(
		engine.WithLogger(logger),
		engine.WithRouting(engine.RoutingOptions{IgnoreMultiSlash: true, IgnoreTrailingSlash: true}),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	store := memory.New(0)
	if err := eng.AddMiddleware(journal.NewRecorder(store, logger, nil).Middleware()); err != nil {
		t.Fatalf("AddMiddleware: %v", err)
	}

	echo := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
		req := di.MustGet[*httpmsg.Request](args, "request")
		var body []byte
		if b := req.Body(); b != nil {
			var err error
			if body, err = b.Bytes(); err != nil {
				return nil, err
			}
		}
		res := httpmsg.NewResponse(http.StatusCreated, httpmsg.WithBody(httpmsg.NewBody(body)))
		res.SetHeader("Content-Type", req.HeaderMap().First("Content-Type"))
		return res, nil
	}, di.Named("request"))
	withTrailer := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
		res := httpmsg.NewResponse(http.StatusOK, httpmsg.WithBody(httpmsg.NewBody([]byte("ok"))))
		res.AddTrailer("X-Checksum", "abc")
		return res, nil
	})
	failing := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
		return nil, io.ErrUnexpectedEOF
	})

	if err := eng.AddRoute(
		route.New(http.MethodPost, "/news", echo),
		route.New(http.MethodGet, "/trailer", withTrailer),
		route.New(http.MethodGet, "/fail", failing),
	); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}
	return New(eng, opts, WithLogger(logger), WithJournal(store)), store
}

func TestServer_EndToEnd(t *testing.T) {
	s, store := newTestServer(t, Options{AdminPath: "/_admin"})
	ts := httptest.NewServer(s.Router)
	defer ts.Close()

	rec, stop := testutil.NewVCRRecorder(t, "end_to_end")
	client := testutil.VCRHTTPClient(rec)

	resp, err := client.Post(ts.URL+"/news", "application/json", strings.NewReader(`{"title":"hi"}`))
	if err != nil {
		t.Fatalf("POST /news: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || string(body) != `{"title":"hi"}` {
		t.Errorf("POST /news = %d %q", resp.StatusCode, body)
	}
	if _, err := uuid.Parse(resp.Header.Get(RequestIDHeader)); err != nil {
		t.Errorf("expected a UUID request ID, got %q", resp.Header.Get(RequestIDHeader))
	}

	resp, err = client.Get(ts.URL + "/news/")
	if err != nil {
		t.Fatalf("GET /news/: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMovedPermanently || resp.Header.Get("Location") != "/news" {
		t.Errorf("GET /news/ = %d Location %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(ts.URL + "/news")
	if err != nil {
		t.Fatalf("GET /news: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != "POST" {
		t.Errorf("GET /news = %d Allow %q", resp.StatusCode, resp.Header.Get("Allow"))
	}

	resp, err = client.Get(ts.URL + "/fail")
	if err != nil {
		t.Fatalf("GET /fail: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || resp.Header.Get(StatusMessageHeader) != "unexpected EOF" {
		t.Errorf("GET /fail = %d message %q", resp.StatusCode, resp.Header.Get(StatusMessageHeader))
	}

	cas, err := cassette.Load(stop())
	if err != nil {
		t.Fatalf("cassette.Load: %v", err)
	}
	if len(cas.Interactions) != 4 {
		t.Fatalf("expected 4 recorded interactions, got %d", len(cas.Interactions))
	}
	if got := cas.Interactions[0].Response.Code; got != http.StatusCreated {
		t.Errorf("recorded first status = %d", got)
	}

	entries, _ := store.List(context.Background(), 0)
	if len(entries) != 4 {
		t.Fatalf("expected 4 journal entries, got %d", len(entries))
	}
	if entries[len(entries)-1].RequestID == "" {
		t.Error("journal entry should carry the transport request ID")
	}
}

func TestServer_KeepsClientRequestID(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, id)
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if got := rr.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request ID = %q, want %q", got, id)
	}

	req = httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got == "not-a-uuid" {
		t.Error("invalid client request IDs should be replaced")
	}
}

func TestServer_Trailers(t *testing.T) {
	s, _ := newTestServer(t, Options{KeepAlive: true})

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/trailer", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Result().Trailer.Get("X-Checksum"); got != "abc" {
		t.Errorf("trailer = %q", got)
	}
	if got := rr.Header().Get("Connection"); got != "keep-alive" {
		t.Errorf("Connection = %q", got)
	}

	old := httptest.NewRequest(http.MethodGet, "/trailer", nil)
	old.Proto, old.ProtoMajor, old.ProtoMinor = "HTTP/1.0", 1, 0
	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, old)
	if rr.Code != http.StatusHTTPVersionNotSupported {
		t.Errorf("HTTP/1.0 with trailers: expected 505, got %d", rr.Code)
	}
}

func TestServer_ConnectionClose(t *testing.T) {
	s, _ := newTestServer(t, Options{KeepAlive: false})
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if got := rr.Header().Get("Connection"); got != "close" {
		t.Errorf("Connection = %q", got)
	}
}

func TestServer_Admin(t *testing.T) {
	s, _ := newTestServer(t, Options{AdminPath: "/_admin"})

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/_admin/routes", nil))
	var routes []engine.RouteInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &routes); err != nil {
		t.Fatalf("decode routes: %v", err)
	}
	if len(routes) != 3 || routes[0].Path != "/news" {
		t.Errorf("routes = %+v", routes)
	}

	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/_admin/stages", nil))
	var stages []string
	if err := json.Unmarshal(rr.Body.Bytes(), &stages); err != nil {
		t.Fatalf("decode stages: %v", err)
	}
	if len(stages) != len(engine.DefaultStages) {
		t.Errorf("stages = %v", stages)
	}

	s.Router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/_admin/journal?limit=1", nil))
	var entries []journal.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode journal: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/missing" {
		t.Errorf("journal = %+v", entries)
	}

	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/_admin/journal?limit=x", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: expected 400, got %d", rr.Code)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	s, _ := newTestServer(t, Options{Addr: "127.0.0.1:0"})

	if err := s.Shutdown(context.Background()); err == nil {
		t.Error("Shutdown before Start should fail")
	}
	addr, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Start(); err == nil {
		t.Error("second Start should fail")
	}

	resp, err := http.Get("http://" + addr + "/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := s.Shutdown(context.Background()); err == nil {
		t.Error("second Shutdown should fail")
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "route", "/x")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "request completed" || line["status"] != float64(http.StatusTeapot) {
		t.Errorf("unexpected log line %v", line)
	}
	if line["bytes"] != float64(len("short and stout")) || line["route"] != "/x" {
		t.Errorf("missing fields in %v", line)
	}
	if line["request_id"] == "" {
		t.Error("expected request_id")
	}
}
