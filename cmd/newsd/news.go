package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/stagehand/pkg/stagehand"
)

type article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type newsStore struct {
	mu       sync.RWMutex
	articles []article
}

func (s *newsStore) add(a article) article {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	s.articles = append(s.articles, a)
	return a
}

func (s *newsStore) list() []article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]article, len(s.articles))
	copy(out, s.articles)
	return out
}

func (s *newsStore) get(id string) (article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.articles {
		if a.ID == id {
			return a, true
		}
	}
	return article{}, false
}

func jsonResponse(status int, v any) (*stagehand.Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	res := stagehand.NewResponse(status, stagehand.WithBody(stagehand.NewBody(b)))
	res.SetHeader("Content-Type", "application/json")
	return res, nil
}

// requireJSON rejects POST bodies that are not declared as JSON.
var requireJSON = stagehand.NewMiddleware("validation",
	stagehand.Fn(func(ctx context.Context, args stagehand.Args) (any, error) {
		req, _ := args.Value("request")
		ct := req.(*stagehand.Request).HeaderMap().First("Content-Type")
		if !strings.HasPrefix(ct, "application/json") {
			return stagehand.NewResponse(http.StatusUnsupportedMediaType), nil
		}
		return nil, nil
	}, stagehand.Named("request")),
	stagehand.Injectable{},
)

// poweredBy stamps every response that leaves the pipeline.
var poweredBy = stagehand.NewMiddleware("incoming",
	stagehand.Injectable{},
	stagehand.Fn(func(ctx context.Context, args stagehand.Args) (any, error) {
		if res, ok := args.Value("response"); ok && res != nil {
			res.(*stagehand.Response).SetHeader("X-Powered-By", "stagehand")
		}
		return nil, nil
	}, stagehand.Defaulted("response", func() any { return nil })),
)

// newsRoutes returns the news API. guards run on the write route only.
func newsRoutes(store *newsStore, guards ...stagehand.Middleware) []stagehand.Route {
	list := stagehand.Fn(func(ctx context.Context, args stagehand.Args) (any, error) {
		return jsonResponse(http.StatusOK, store.list())
	})

	show := stagehand.Fn(func(ctx context.Context, args stagehand.Args) (any, error) {
		req, _ := args.Value("request")
		a, ok := store.get(req.(*stagehand.Request).Param("id"))
		if !ok {
			return stagehand.NewResponse(http.StatusNotFound), nil
		}
		return jsonResponse(http.StatusOK, a)
	}, stagehand.Named("request"))

	create := stagehand.Fn(func(ctx context.Context, args stagehand.Args) (any, error) {
		req, _ := args.Value("request")
		var a article
		body := req.(*stagehand.Request).Body()
		if body == nil {
			return stagehand.NewResponse(http.StatusBadRequest), nil
		}
		if err := json.NewDecoder(body).Decode(&a); err != nil || a.Title == "" {
			return stagehand.NewResponse(http.StatusBadRequest), nil
		}
		return jsonResponse(http.StatusCreated, store.add(a))
	}, stagehand.Named("request"))

	return []stagehand.Route{
		stagehand.NewRoute(http.MethodGet, "/news", list),
		stagehand.NewRoute(http.MethodPost, "/news", create, append([]stagehand.Middleware{requireJSON}, guards...)...),
		stagehand.NewRoute(http.MethodGet, "/news/:id", show),
	}
}
