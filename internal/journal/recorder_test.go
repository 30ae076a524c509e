package journal_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/engine"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/journal"
	"github.com/tjfontaine/stagehand/internal/journal/memory"
	"github.com/tjfontaine/stagehand/internal/route"
)

type failingStore struct {
	journal.Store
}

func (failingStore) Record(ctx context.Context, e *journal.Entry) error {
	return errors.New("disk full")
}

func newEngine(t *testing.T, rec *journal.Recorder) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := e.AddMiddleware(rec.Middleware()); err != nil {
		t.Fatalf("AddMiddleware: %v", err)
	}
	handle := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
		return httpmsg.NewResponse(http.StatusCreated), nil
	})
	if err := e.AddRoute(route.New(http.MethodPost, "/news", handle)); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}
	return e
}

func TestRecorder_RecordsDispatch(t *testing.T) {
	store := memory.New(0)
	e := newEngine(t, journal.NewRecorder(store, nil, nil))

	ctx := context.Background()
	e.Dispatch(ctx, httpmsg.NewRequest(http.MethodPost, "/news", nil), di.Value{Name: journal.RequestIDName, Value: "req-1"})
	e.Dispatch(ctx, httpmsg.NewRequest(http.MethodGet, "/missing", nil))

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	latest, first := entries[0], entries[1]
	if latest.Path != "/missing" || latest.Status != http.StatusNotFound || latest.RequestID != "" {
		t.Errorf("unexpected latest entry %+v", latest)
	}
	if first.Method != http.MethodPost || first.Status != http.StatusCreated || first.RequestID != "req-1" {
		t.Errorf("unexpected first entry %+v", first)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Errorf("expected ID and CreatedAt to be set: %+v", first)
	}
	if first.Duration < 0 {
		t.Errorf("negative duration %v", first.Duration)
	}
}

func TestRecorder_StoreErrorIsLogged(t *testing.T) {
	var logs bytes.Buffer
	rec := journal.NewRecorder(failingStore{}, slog.New(slog.NewTextHandler(&logs, nil)), nil)
	e := newEngine(t, rec)

	res := e.Dispatch(context.Background(), httpmsg.NewRequest(http.MethodPost, "/news", nil))
	if res.StatusCode() != http.StatusCreated {
		t.Errorf("store failure must not change the response, got %d", res.StatusCode())
	}
	if !strings.Contains(logs.String(), "disk full") {
		t.Errorf("expected store error to be logged, got %q", logs.String())
	}
}
