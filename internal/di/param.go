package di

import "context"

// Param declares a named dependency of an injectable function.
// Default, when set, supplies a value if the name is not bound in the scope.
type Param struct {
	Name    string
	Default func() any
}

// Named declares a required dependency.
func Named(name string) Param {
	return Param{Name: name}
}

// Defaulted declares a dependency that falls back to fn when unbound.
func Defaulted(name string, fn func() any) Param {
	return Param{Name: name, Default: fn}
}

// Func is the body of an injectable function. Args holds the resolved
// values of the declared parameters.
type Func func(ctx context.Context, args Args) (any, error)

// Injectable pairs a function with the dependencies it declares.
// The zero value is a no-op that resolves nothing and returns nil.
type Injectable struct {
	Params []Param
	Fn     Func
}

// Fn builds an Injectable from a function and its declared parameters.
func Fn(fn Func, params ...Param) Injectable {
	return Injectable{Params: params, Fn: fn}
}

// IsZero reports whether the injectable has no function.
func (i Injectable) IsZero() bool {
	return i.Fn == nil
}

// Bound is an Injectable whose parameters will be resolved against a scope
// when called.
type Bound func(ctx context.Context) (any, error)

// Args are resolved parameter values, in declaration order.
type Args struct {
	names  []string
	values []any
}

// NewArgs builds Args from parallel name and value slices. It is mostly
// useful for calling a Func directly in tests.
func NewArgs(names []string, values []any) Args {
	return Args{names: names, values: values}
}

// Len returns the number of resolved parameters.
func (a Args) Len() int {
	return len(a.values)
}

// At returns the i-th resolved parameter.
func (a Args) At(i int) any {
	return a.values[i]
}

// Value returns the resolved value of the named parameter.
func (a Args) Value(name string) (any, bool) {
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return nil, false
}

// Get returns the named parameter as T. It reports false when the
// parameter was not declared or holds a value of another type. A nil value
// yields the zero T and true.
func Get[T any](a Args, name string) (T, bool) {
	var zero T
	v, ok := a.Value(name)
	if !ok {
		return zero, false
	}
	if v == nil {
		return zero, true
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MustGet is like Get but panics when the parameter is missing or mistyped.
func MustGet[T any](a Args, name string) T {
	v, ok := Get[T](a, name)
	if !ok {
		raw, _ := a.Value(name)
		panic(&TypeError{Name: name, Want: typeName[T](), Got: raw})
	}
	return v
}
