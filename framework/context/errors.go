package context

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ── Error taxonomy ────────────────────────────────────────────────────────────

// BindingNotFoundError is returned when a key cannot be located at the
// requesting context or anywhere up its parent chain.
type BindingNotFoundError struct {
	Key     string
	Context string // name of the context the lookup started from
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("context: no binding for key [%s] in context [%s] or its ancestors", e.Key, e.Context)
}

// CyclicDependencyError is returned when an eager resolution re-enters a key
// that is already being resolved on the same resolution path. Cycles are only
// legal when at least one edge is a deferred getter/setter handle.
type CyclicDependencyError struct {
	Key  string
	Path []string // resolution path, outermost first, ending at Key
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("context: cyclic dependency on key [%s] (path: %s)",
		e.Key, strings.Join(append(e.Path, e.Key), " -> "))
}

// ResolutionError wraps an error raised by a constructor or a provider
// computation while producing a value.
type ResolutionError struct {
	Key string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("context: resolving key [%s]: %v", e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// DuplicateBindingError is returned by BindStrict when the key is already
// bound at the same context level. Non-strict Bind shadows instead.
type DuplicateBindingError struct {
	Key     string
	Context string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("context: key [%s] is already bound in context [%s]", e.Key, e.Context)
}

// TypeMismatchError is returned when a binding declares an expected value type
// and the bound or produced value is not assignable to it.
type TypeMismatchError struct {
	Key  string
	Want reflect.Type
	Got  reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("context: key [%s] expects %v, got %v", e.Key, e.Want, e.Got)
}

// ── errors.As shorthands ──────────────────────────────────────────────────────

func IsBindingNotFound(err error) bool {
	var target *BindingNotFoundError
	return errors.As(err, &target)
}

func IsCyclicDependency(err error) bool {
	var target *CyclicDependencyError
	return errors.As(err, &target)
}

func IsDuplicateBinding(err error) bool {
	var target *DuplicateBindingError
	return errors.As(err, &target)
}

func IsTypeMismatch(err error) bool {
	var target *TypeMismatchError
	return errors.As(err, &target)
}
