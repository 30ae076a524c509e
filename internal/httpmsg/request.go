package httpmsg

import (
	"maps"
	"net/url"
	"strings"
)

// Request is an inbound request as seen by middlewares and handlers.
type Request struct {
	message

	method string
	path   string
	query  url.Values
	params map[string]string
}

// NewRequest builds a request. The method is upper-cased; query may be nil.
func NewRequest(method, path string, query url.Values, opts ...Option) *Request {
	o := buildOptions(opts)
	if query == nil {
		query = url.Values{}
	}
	return &Request{
		message: newMessage(o),
		method:  strings.ToUpper(method),
		path:    path,
		query:   query,
	}
}

// Method returns the upper-case request method.
func (r *Request) Method() string { return r.method }

// Path returns the request path. After an internal redirect it holds the
// corrected path.
func (r *Request) Path() string { return r.path }

// Query returns a copy of the query parameters.
func (r *Request) Query() url.Values {
	out := make(url.Values, len(r.query))
	for k, v := range r.query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Params returns a copy of the route parameters.
func (r *Request) Params() map[string]string {
	if r.params == nil {
		return map[string]string{}
	}
	return maps.Clone(r.params)
}

// Param returns a single route parameter.
func (r *Request) Param(name string) string {
	return r.params[name]
}

// SetPath rewrites the request path. The dispatcher uses it when routing
// corrects a malformed path.
func (r *Request) SetPath(path string) {
	r.path = path
}

// SetParams replaces the route parameters. The dispatcher calls it after
// matching.
func (r *Request) SetParams(params map[string]string) {
	r.params = maps.Clone(params)
}
