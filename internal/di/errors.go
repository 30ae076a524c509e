package di

import (
	"fmt"
	"strings"
)

// UnresolvedDependencyError is returned when a declared parameter has
// neither a scope binding nor a default. Path lists the resolution chain
// that led to the failure, outermost first.
type UnresolvedDependencyError struct {
	Name  string
	Path  []string
	Cycle bool
}

func (e *UnresolvedDependencyError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("dependency cycle: %s -> %s", strings.Join(e.Path, " -> "), e.Name)
	}
	if len(e.Path) > 0 {
		return fmt.Sprintf("unresolved dependency %q (via %s)", e.Name, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("unresolved dependency %q", e.Name)
}

// ResolveError wraps a failure returned by a factory.
type ResolveError struct {
	Name  string
	Cause error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Name, e.Cause)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// TypeError reports a resolved value that does not have the requested type.
type TypeError struct {
	Name string
	Want string
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("dependency %q: expected %s, got %T", e.Name, e.Want, e.Got)
}

func typeName[T any]() string {
	var zero T
	if s := fmt.Sprintf("%T", zero); s != "<nil>" {
		return s
	}
	return fmt.Sprintf("%T", (*T)(nil))[1:]
}
