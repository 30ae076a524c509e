package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/stagehand/internal/di"
	"github.com/tjfontaine/stagehand/internal/httpmsg"
	"github.com/tjfontaine/stagehand/internal/middleware"
)

// Scope names read by the recorder.
const (
	StartName     = "journal.start"
	RequestIDName = "requestID"
)

// Recorder turns a Store into an always-middleware.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	mapping di.Mapping
	now     func() time.Time
}

// NewRecorder returns a recorder writing to store. Names it reads and
// binds pass through mapping, which should match the engine's.
func NewRecorder(store Store, logger *slog.Logger, mapping di.Mapping) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if mapping == nil {
		mapping = di.Identity
	}
	return &Recorder{store: store, logger: logger, mapping: mapping, now: time.Now}
}

// Store returns the backing store.
func (r *Recorder) Store() Store {
	return r.store
}

// Middleware returns the always-middleware. Enter notes the start time;
// Leave records the outcome. Store failures are logged and never change
// the response.
func (r *Recorder) Middleware() middleware.Middleware {
	m := r.mapping
	enter := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
		return di.Value{Name: StartName, Value: r.now()}, nil
	})
	leave := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
		req, _ := di.Get[*httpmsg.Request](args, m("request"))
		res, _ := di.Get[*httpmsg.Response](args, m("response"))
		requestID, _ := di.Get[string](args, m(RequestIDName))
		start, _ := di.Get[time.Time](args, m(StartName))
		if req == nil {
			return nil, nil
		}

		e := &Entry{
			RequestID: requestID,
			Method:    req.Method(),
			Path:      req.Path(),
		}
		if res != nil {
			e.Status = res.StatusCode()
		}
		if !start.IsZero() {
			e.Duration = r.now().Sub(start)
		}
		if err := r.store.Record(ctx, e); err != nil {
			r.logger.Error("failed to record journal entry",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
		}
		return nil, nil
	},
		di.Defaulted(m("request"), nilValue),
		di.Defaulted(m("response"), nilValue),
		di.Defaulted(m(RequestIDName), func() any { return "" }),
		di.Defaulted(m(StartName), func() any { return time.Time{} }),
	)
	return middleware.New("", enter, leave)
}

func nilValue() any { return nil }
