// Package di implements the hierarchical dependency scope used to feed
// middlewares and route handlers.
//
// A Scope maps names to either immediate values or factories. Child scopes
// fall back to their parent for unknown names and never write to it, so an
// application-wide root can be shared by every request while each request
// works in its own child.
//
// Functions declare what they need with Param values instead of relying on
// parameter-name reflection:
//
//	handle := di.Fn(func(ctx context.Context, args di.Args) (any, error) {
//		req := di.MustGet[*httpmsg.Request](args, "request")
//		return httpmsg.NewResponse(http.StatusOK), nil
//	}, di.Named("request"))
package di

import (
	"context"
	"slices"
	"sync"
)

// Policy controls factory memoization.
type Policy int

const (
	// Transient invokes the factory on every resolution.
	Transient Policy = iota
	// Scoped memoizes the result in the scope that resolves it.
	Scoped
	// Singleton memoizes the result in the scope that owns the registration,
	// so every descendant scope shares it.
	Singleton
)

func (p Policy) String() string {
	switch p {
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	case Singleton:
		return "singleton"
	default:
		return "unknown"
	}
}

type factory struct {
	params []Param
	fn     Func
	policy Policy

	mu     sync.Mutex
	done   bool
	cached any
}

type binding struct {
	value   any
	factory *factory
}

// Scope is a name -> value/factory registry with parent fallback.
type Scope struct {
	parent *Scope

	mu       sync.RWMutex
	bindings map[string]*binding
	memo     map[*factory]any
}

// NewScope returns an empty root scope.
func NewScope() *Scope {
	return &Scope{bindings: make(map[string]*binding)}
}

// Child returns a scope whose lookups fall back to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, bindings: make(map[string]*binding)}
}

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// RegisterValue binds a constant, replacing any binding of the same name in s.
func (s *Scope) RegisterValue(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[name] = &binding{value: value}
}

// RegisterFactory binds a computed value. The factory's own parameters are
// resolved like any injectable.
func (s *Scope) RegisterFactory(name string, params []Param, fn Func, policy Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[name] = &binding{factory: &factory{params: params, fn: fn, policy: policy}}
}

// Register binds entries in order, passing every name through mapping.
// A nil mapping leaves names untouched.
func (s *Scope) Register(mapping Mapping, entries ...Entry) {
	if mapping == nil {
		mapping = Identity
	}
	for _, e := range entries {
		switch e := e.(type) {
		case Value:
			s.RegisterValue(mapping(e.Name), e.Value)
		case *Value:
			s.RegisterValue(mapping(e.Name), e.Value)
		case Factory:
			s.RegisterFactory(mapping(e.Name), e.Params, e.Fn, e.Policy)
		case *Factory:
			s.RegisterFactory(mapping(e.Name), e.Params, e.Fn, e.Policy)
		}
	}
}

// Has reports whether name is bound in s or an ancestor.
func (s *Scope) Has(name string) bool {
	_, owner := s.lookup(name)
	return owner != nil
}

// Names returns every bound name visible from s, sorted.
func (s *Scope) Names() []string {
	seen := make(map[string]struct{})
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		for name := range cur.bindings {
			seen[name] = struct{}{}
		}
		cur.mu.RUnlock()
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the value bound to name.
func (s *Scope) Resolve(ctx context.Context, name string) (any, error) {
	return s.resolve(ctx, name, nil)
}

// Inject binds fn to s. Each call of the returned function resolves the
// declared parameters afresh, so it observes entries registered since the
// binding was made.
func (s *Scope) Inject(fn Injectable) Bound {
	return func(ctx context.Context) (any, error) {
		args, err := s.resolveParams(ctx, fn.Params, nil)
		if err != nil {
			return nil, err
		}
		if fn.Fn == nil {
			return nil, nil
		}
		return fn.Fn(ctx, args)
	}
}

func (s *Scope) lookup(name string) (*binding, *Scope) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		b, ok := cur.bindings[name]
		cur.mu.RUnlock()
		if ok {
			return b, cur
		}
	}
	return nil, nil
}

func (s *Scope) resolve(ctx context.Context, name string, path []string) (any, error) {
	if slices.Contains(path, name) {
		return nil, &UnresolvedDependencyError{Name: name, Path: slices.Clone(path), Cycle: true}
	}

	b, owner := s.lookup(name)
	if b == nil {
		return nil, &UnresolvedDependencyError{Name: name, Path: slices.Clone(path)}
	}
	if b.factory == nil {
		return b.value, nil
	}

	f := b.factory
	path = append(path, name)

	switch f.policy {
	case Scoped:
		s.mu.RLock()
		v, ok := s.memo[f]
		s.mu.RUnlock()
		if ok {
			return v, nil
		}
		v, err := s.invoke(ctx, name, f, path)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.memo == nil {
			s.memo = make(map[*factory]any)
		}
		s.memo[f] = v
		s.mu.Unlock()
		return v, nil

	case Singleton:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.done {
			return f.cached, nil
		}
		// Resolved against the owner so request-private values never leak
		// into the shared result.
		v, err := owner.invoke(ctx, name, f, path)
		if err != nil {
			return nil, err
		}
		f.done = true
		f.cached = v
		return v, nil

	default:
		return s.invoke(ctx, name, f, path)
	}
}

func (s *Scope) invoke(ctx context.Context, name string, f *factory, path []string) (any, error) {
	args, err := s.resolveParams(ctx, f.params, path)
	if err != nil {
		return nil, err
	}
	v, err := f.fn(ctx, args)
	if err != nil {
		return nil, &ResolveError{Name: name, Cause: err}
	}
	return v, nil
}

func (s *Scope) resolveParams(ctx context.Context, params []Param, path []string) (Args, error) {
	args := Args{
		names:  make([]string, len(params)),
		values: make([]any, len(params)),
	}
	for i, p := range params {
		args.names[i] = p.Name
		if !s.Has(p.Name) && p.Default != nil {
			args.values[i] = p.Default()
			continue
		}
		v, err := s.resolve(ctx, p.Name, path)
		if err != nil {
			return Args{}, err
		}
		args.values[i] = v
	}
	return args, nil
}
