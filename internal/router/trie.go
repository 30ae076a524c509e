// Package router maps request paths to per-method handlers with a segment
// trie. Misses that differ from a registered path only by case, duplicate
// slashes, dot segments or a trailing slash are reported as redirect hints.
package router

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Options controls matching.
type Options struct {
	// IgnoreCase matches static segments case-insensitively.
	IgnoreCase bool
	// FixedPathRedirect reports cleaned or case-corrected paths as hints.
	FixedPathRedirect bool
	// TrailingSlashRedirect reports paths differing only by a trailing
	// slash as hints.
	TrailingSlashRedirect bool
}

// DefaultOptions enables both redirect hints and case-sensitive matching.
func DefaultOptions() Options {
	return Options{FixedPathRedirect: true, TrailingSlashRedirect: true}
}

type segmentKind int

const (
	staticSegment segmentKind = iota
	paramSegment
	catchAllSegment
)

// Node is one segment of a registered path. Defined nodes carry handlers
// per method.
type Node[H any] struct {
	text     string
	kind     segmentKind
	statics  []*Node[H]
	param    *Node[H]
	catchAll *Node[H]

	pattern  string
	defined  bool
	methods  []string
	handlers map[string]H
}

// Pattern returns the pattern the node was defined with.
func (n *Node[H]) Pattern() string { return n.pattern }

// Handle registers h for method. A method may be registered once per node.
func (n *Node[H]) Handle(method string, h H) error {
	method = strings.ToUpper(method)
	if _, ok := n.handlers[method]; ok {
		return fmt.Errorf("route %s %s already registered", method, n.pattern)
	}
	if n.handlers == nil {
		n.handlers = make(map[string]H)
	}
	n.handlers[method] = h
	n.methods = append(n.methods, method)
	return nil
}

// Handler returns the handler registered for method.
func (n *Node[H]) Handler(method string) (H, bool) {
	h, ok := n.handlers[strings.ToUpper(method)]
	return h, ok
}

// Allow returns the registered methods in registration order.
func (n *Node[H]) Allow() []string {
	return slices.Clone(n.methods)
}

// Trie is a path trie. It is not safe for concurrent Define calls; Match
// is safe once definition is finished.
type Trie[H any] struct {
	opts  Options
	root  *Node[H]
	nodes []*Node[H]
}

// New returns an empty trie.
func New[H any](opts Options) *Trie[H] {
	return &Trie[H]{opts: opts, root: &Node[H]{}}
}

// Define returns the node for pattern, creating it if needed. Patterns
// start with "/" and may contain ":name" segments and a final "*name"
// segment.
func (t *Trie[H]) Define(pattern string) (*Node[H], error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("route pattern %q must start with /", pattern)
	}
	segs := strings.Split(pattern[1:], "/")
	n := t.root
	for i, seg := range segs {
		var err error
		switch {
		case strings.HasPrefix(seg, ":"):
			n, err = t.defineParam(n, seg)
		case strings.HasPrefix(seg, "*"):
			if i != len(segs)-1 {
				return nil, fmt.Errorf("route pattern %q: catch-all must be the last segment", pattern)
			}
			n, err = t.defineCatchAll(n, seg)
		default:
			n = t.defineStatic(n, seg)
		}
		if err != nil {
			return nil, fmt.Errorf("route pattern %q: %w", pattern, err)
		}
	}
	if !n.defined {
		n.defined = true
		n.pattern = pattern
		t.nodes = append(t.nodes, n)
	}
	return n, nil
}

// Nodes returns the defined nodes in definition order.
func (t *Trie[H]) Nodes() []*Node[H] {
	return slices.Clone(t.nodes)
}

func (t *Trie[H]) defineStatic(n *Node[H], seg string) *Node[H] {
	for _, c := range n.statics {
		if t.equal(c.text, seg) {
			return c
		}
	}
	c := &Node[H]{text: seg, kind: staticSegment}
	n.statics = append(n.statics, c)
	return c
}

func (t *Trie[H]) defineParam(n *Node[H], seg string) (*Node[H], error) {
	name := seg[1:]
	if name == "" {
		return nil, fmt.Errorf("empty parameter name")
	}
	if n.param == nil {
		n.param = &Node[H]{text: name, kind: paramSegment}
	} else if n.param.text != name {
		return nil, fmt.Errorf("parameter %q conflicts with %q", name, n.param.text)
	}
	return n.param, nil
}

func (t *Trie[H]) defineCatchAll(n *Node[H], seg string) (*Node[H], error) {
	name := seg[1:]
	if name == "" {
		return nil, fmt.Errorf("empty catch-all name")
	}
	if n.catchAll == nil {
		n.catchAll = &Node[H]{text: name, kind: catchAllSegment}
	} else if n.catchAll.text != name {
		return nil, fmt.Errorf("catch-all %q conflicts with %q", name, n.catchAll.text)
	}
	return n.catchAll, nil
}

func (t *Trie[H]) equal(a, b string) bool {
	if t.opts.IgnoreCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Match is the outcome of a lookup. Exactly one of Node,
// FixedPathRedirect and TrailingSlashRedirect is set on success; all are
// zero on a miss.
type Match[H any] struct {
	Node                  *Node[H]
	Params                map[string]string
	FixedPathRedirect     string
	TrailingSlashRedirect string
}

// Redirect returns whichever redirect hint is set.
func (m Match[H]) Redirect() string {
	if m.FixedPathRedirect != "" {
		return m.FixedPathRedirect
	}
	return m.TrailingSlashRedirect
}

// Match looks up p.
func (t *Trie[H]) Match(p string) Match[H] {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if h, ok := t.find(p, t.opts.IgnoreCase); ok {
		return Match[H]{Node: h.node, Params: h.paramMap()}
	}

	var m Match[H]
	if !t.opts.FixedPathRedirect && !t.opts.TrailingSlashRedirect {
		return m
	}

	fold := t.opts.IgnoreCase || t.opts.FixedPathRedirect
	base := p
	var candidates []string
	if t.opts.FixedPathRedirect {
		base = cleanPath(p)
		candidates = append(candidates, base)
	}
	if t.opts.TrailingSlashRedirect {
		if toggled := toggleSlash(base); toggled != "" {
			candidates = append(candidates, toggled)
		}
	}

	for _, c := range candidates {
		h, ok := t.find(c, fold)
		if !ok {
			continue
		}
		fixed := h.path()
		switch {
		case fixed == p:
			continue
		case t.opts.TrailingSlashRedirect && fixed == toggleSlash(p):
			m.TrailingSlashRedirect = fixed
		case t.opts.FixedPathRedirect:
			m.FixedPathRedirect = fixed
		default:
			continue
		}
		return m
	}
	return m
}

type paramValue struct {
	name  string
	value string
}

type hit[H any] struct {
	node   *Node[H]
	params []paramValue
	fixed  []string
}

func (h *hit[H]) paramMap() map[string]string {
	out := make(map[string]string, len(h.params))
	for _, p := range h.params {
		out[p.name] = p.value
	}
	return out
}

func (h *hit[H]) path() string {
	return "/" + strings.Join(h.fixed, "/")
}

func (t *Trie[H]) find(p string, fold bool) (*hit[H], bool) {
	h := &hit[H]{}
	if t.walk(t.root, strings.Split(p[1:], "/"), fold, h) {
		return h, true
	}
	return nil, false
}

// walk descends n with backtracking. Static segments are tried before the
// parameter, which is tried before the catch-all.
func (t *Trie[H]) walk(n *Node[H], segs []string, fold bool, h *hit[H]) bool {
	if len(segs) == 0 {
		if n.defined {
			h.node = n
			return true
		}
		return false
	}

	seg := segs[0]
	for _, c := range n.statics {
		if c.text != seg && !(fold && strings.EqualFold(c.text, seg)) {
			continue
		}
		text := c.text
		if t.opts.IgnoreCase {
			text = seg
		}
		h.fixed = append(h.fixed, text)
		if t.walk(c, segs[1:], fold, h) {
			return true
		}
		h.fixed = h.fixed[:len(h.fixed)-1]
	}

	if n.param != nil && seg != "" {
		h.fixed = append(h.fixed, seg)
		h.params = append(h.params, paramValue{name: n.param.text, value: seg})
		if t.walk(n.param, segs[1:], fold, h) {
			return true
		}
		h.fixed = h.fixed[:len(h.fixed)-1]
		h.params = h.params[:len(h.params)-1]
	}

	if n.catchAll != nil && n.catchAll.defined {
		rest := strings.Join(segs, "/")
		h.fixed = append(h.fixed, rest)
		h.params = append(h.params, paramValue{name: n.catchAll.text, value: rest})
		h.node = n.catchAll
		return true
	}
	return false
}

// cleanPath collapses duplicate slashes and resolves dot segments while
// keeping a trailing slash.
func cleanPath(p string) string {
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func toggleSlash(p string) string {
	switch {
	case p == "/":
		return ""
	case strings.HasSuffix(p, "/"):
		return strings.TrimSuffix(p, "/")
	default:
		return p + "/"
	}
}
