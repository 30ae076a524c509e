package httpmsg

import "slices"

const trailerHeader = "Trailer"

// Message is implemented by Request and Response.
type Message interface {
	HeaderMap() *Headers
	TrailerMap() *Headers
}

// Option configures a Request or Response at construction.
type Option func(*options)

type options struct {
	headers       *Headers
	trailers      *Headers
	body          *Body
	statusMessage string
}

// WithHeaders sets the initial headers.
func WithHeaders(h *Headers) Option {
	return func(o *options) { o.headers = h }
}

// WithTrailers sets the initial trailers.
func WithTrailers(h *Headers) Option {
	return func(o *options) { o.trailers = h }
}

// WithBody sets the body.
func WithBody(b *Body) Option {
	return func(o *options) { o.body = b }
}

// WithStatusMessage overrides the reason phrase of a Response.
func WithStatusMessage(msg string) Option {
	return func(o *options) { o.statusMessage = msg }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.headers == nil {
		o.headers = NewHeaders()
	}
	if o.trailers == nil {
		o.trailers = NewHeaders()
	}
	return o
}

// message is the header, trailer and body state shared by requests and
// responses.
type message struct {
	headers  *Headers
	trailers *Headers
	body     *Body
}

func newMessage(o options) message {
	return message{headers: o.headers, trailers: o.trailers, body: o.body}
}

// HeaderMap returns the live header set.
func (m *message) HeaderMap() *Headers { return m.headers }

// TrailerMap returns the live trailer set.
func (m *message) TrailerMap() *Headers { return m.trailers }

// Headers returns a copy of every header.
func (m *message) Headers() map[string][]string { return m.headers.All() }

// Trailers returns a copy of every trailer.
func (m *message) Trailers() map[string][]string { return m.trailers.All() }

// Body returns the body, or nil.
func (m *message) Body() *Body { return m.body }

// Header returns the values of name found in both headers and trailers.
func (m *message) Header(name string) []string {
	return append(m.headers.Get(name), m.trailers.Get(name)...)
}

// AddHeader appends header values.
func (m *message) AddHeader(name string, values ...string) {
	m.headers.Add(name, values...)
}

// SetHeader replaces header values.
func (m *message) SetHeader(name string, values ...string) {
	m.headers.Set(name, values...)
}

// AddTrailer appends trailer values and announces the trailer in the
// Trailer header.
func (m *message) AddTrailer(name string, values ...string) {
	m.trailers.Add(name, values...)
	m.announce(name)
}

// SetTrailer replaces trailer values and announces the trailer in the
// Trailer header.
func (m *message) SetTrailer(name string, values ...string) {
	m.trailers.Set(name, values...)
	m.announce(name)
}

// UnsetHeader removes name from headers and, when present, from trailers
// along with its Trailer announcement.
func (m *message) UnsetHeader(name string) {
	m.headers.Unset(name)
	if len(m.trailers.Get(name)) == 0 {
		return
	}
	key := CanonicalName(name)
	m.trailers.Unset(name)
	rest := slices.DeleteFunc(m.headers.Get(trailerHeader), func(v string) bool { return v == key })
	if len(rest) > 0 {
		m.headers.Set(trailerHeader, rest...)
	} else {
		m.headers.Unset(trailerHeader)
	}
}

// ImportHeaders merges the headers and trailers of other.
func (m *message) ImportHeaders(other Message) {
	m.headers.Import(other.HeaderMap())
	m.trailers.Import(other.TrailerMap())
}

func (m *message) announce(name string) {
	key := CanonicalName(name)
	announced := m.headers.Get(trailerHeader)
	if !slices.Contains(announced, key) {
		m.headers.Set(trailerHeader, append(announced, key)...)
	}
}
