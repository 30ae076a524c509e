package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/stagehand/internal/httpmsg"
)

// ErrSealed is returned by configuration calls made after the engine
// started dispatching.
var ErrSealed = errors.New("engine configuration is sealed")

// ErrNilRequest is handed to the catch hook when Dispatch gets no request.
var ErrNilRequest = errors.New("nil request")

// UnknownMiddlewareTypeError is returned when a middleware names a stage
// that is not part of the configured order.
type UnknownMiddlewareTypeError struct {
	Type string
}

func (e *UnknownMiddlewareTypeError) Error() string {
	return fmt.Sprintf("unknown middleware type %q", e.Type)
}

// MissingResponseError is returned when a pipeline finished without any
// step producing a response.
type MissingResponseError struct {
	Method string
	Path   string
}

func (e *MissingResponseError) Error() string {
	return fmt.Sprintf("no response for %s %s", e.Method, e.Path)
}

// PanicError wraps a value recovered from a panicking step or catch hook.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Convert maps an error to a response: 501 for a missing response, 500
// otherwise with the first line of the error as the status message.
func Convert(err error) *httpmsg.Response {
	var missing *MissingResponseError
	if errors.As(err, &missing) {
		return httpmsg.NewResponse(http.StatusNotImplemented)
	}
	msg := err.Error()
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		msg = msg[:i]
	}
	return httpmsg.NewResponse(http.StatusInternalServerError, httpmsg.WithStatusMessage(msg))
}
