package route

import (
	"context"
	"net/http"
	"testing"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/middleware"
)

func TestNew(t *testing.T) {
	mw := middleware.New("general", di.Injectable{}, di.Injectable{})
	r := New("patch", "/news/:id", di.Injectable{}, mw)
	if r.Method() != http.MethodPatch || r.Path() != "/news/:id" {
		t.Errorf("got %s %s", r.Method(), r.Path())
	}
	if len(r.Middlewares()) != 1 {
		t.Errorf("expected 1 middleware, got %d", len(r.Middlewares()))
	}
}

func TestDefault(t *testing.T) {
	if Default(http.StatusNotFound) != Default(http.StatusNotFound) {
		t.Error("default routes should be reused per status")
	}

	v, err := di.NewScope().Inject(Default(http.StatusMethodNotAllowed).Handle())(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, ok := v.(*httpmsg.Response)
	if !ok || res.StatusCode() != http.StatusMethodNotAllowed {
		t.Errorf("unexpected default result %#v", v)
	}
}
