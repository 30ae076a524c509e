// Package httpmsg holds the request and response values handed to
// middlewares and handlers, along with their header and body collaborators.
package httpmsg

import (
	"fmt"
	"net/textproto"
	"slices"
)

// CanonicalName returns the canonical form of a header name
// ("content-type" becomes "Content-Type").
func CanonicalName(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}

// Headers is an ordered multi-map keyed by canonical header name. The zero
// value is ready to use.
type Headers struct {
	names  []string
	values map[string][]string
}

// NewHeaders returns an empty header set.
func NewHeaders() *Headers {
	return &Headers{}
}

// Len returns the number of distinct header names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// Names returns header names in first-insertion order.
func (h *Headers) Names() []string {
	if h == nil {
		return nil
	}
	return slices.Clone(h.names)
}

// Get returns a copy of the values of name.
func (h *Headers) Get(name string) []string {
	if h == nil {
		return nil
	}
	return slices.Clone(h.values[CanonicalName(name)])
}

// First returns the first value of name, or "".
func (h *Headers) First(name string) string {
	if h == nil {
		return ""
	}
	if v := h.values[CanonicalName(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// All returns a copy of every header.
func (h *Headers) All() map[string][]string {
	out := make(map[string][]string, h.Len())
	if h == nil {
		return out
	}
	for _, name := range h.names {
		out[name] = slices.Clone(h.values[name])
	}
	return out
}

// Each calls fn for every header in insertion order.
func (h *Headers) Each(fn func(name string, values []string)) {
	if h == nil {
		return
	}
	for _, name := range h.names {
		fn(name, slices.Clone(h.values[name]))
	}
}

// Add appends values to name.
func (h *Headers) Add(name string, values ...string) *Headers {
	key := CanonicalName(name)
	h.touch(key)
	h.values[key] = append(h.values[key], values...)
	return h
}

// Set replaces the values of name.
func (h *Headers) Set(name string, values ...string) *Headers {
	key := CanonicalName(name)
	h.touch(key)
	h.values[key] = slices.Clone(values)
	return h
}

// Unset removes name.
func (h *Headers) Unset(name string) *Headers {
	key := CanonicalName(name)
	if _, ok := h.values[key]; !ok {
		return h
	}
	delete(h.values, key)
	h.names = slices.DeleteFunc(h.names, func(n string) bool { return n == key })
	return h
}

// Import merges other into h. Values already present for a name are not
// duplicated.
func (h *Headers) Import(other *Headers) *Headers {
	other.Each(func(name string, values []string) {
		h.touch(name)
		for _, v := range values {
			if !slices.Contains(h.values[name], v) {
				h.values[name] = append(h.values[name], v)
			}
		}
	})
	return h
}

// ParsePairs adds a flat name, value, name, value... list, as delivered by
// raw header parsers.
func (h *Headers) ParsePairs(pairs ...string) error {
	if len(pairs)%2 != 0 {
		return fmt.Errorf("invalid header pair count: %d", len(pairs))
	}
	for i := 0; i < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return nil
}

func (h *Headers) touch(key string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, key)
		h.values[key] = nil
	}
}
