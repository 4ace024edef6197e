package context

import (
	gocontext "context"
	"reflect"
)

// ── Deferred handles ──────────────────────────────────────────────────────────

// Getter defers a lookup: invoking it performs Get on the context the handle
// was built on, at call time rather than at injection time. It tolerates the
// key being bound only later in the context's lifetime; invoked before the
// key is ever bound it fails with BindingNotFoundError. Ordering is the
// caller's responsibility — the container guarantees none.
type Getter func(ctx gocontext.Context) (any, error)

// Setter defers a write: invoking it binds a constant for the key on the
// context the handle was built on (never on parents), making the value
// visible to later Get and Getter calls in that scope.
type Setter func(value any) error

// GetterFor builds a Getter for key on c. The key's own binding is not
// touched — no resolution happens until the handle is invoked, which is what
// lets sibling pipeline actions reference each other's output without
// forming an eager cycle.
func (c *Context) GetterFor(key string) Getter {
	return func(ctx gocontext.Context) (any, error) {
		return c.Get(ctx, key)
	}
}

// SetterFor builds a Setter for key on c.
func (c *Context) SetterFor(key string) Setter {
	return func(value any) error {
		return c.Bind(Constant(key, value))
	}
}

// GetterTo is a typed convenience over a raw Getter.
//
//	route, err := context.GetterTo[*rest.Route](g)(ctx)
func GetterTo[T any](g Getter) func(gocontext.Context) (T, error) {
	return func(ctx gocontext.Context) (T, error) {
		var zero T
		v, err := g(ctx)
		if err != nil {
			return zero, err
		}
		typed, ok := v.(T)
		if !ok {
			return zero, &TypeMismatchError{
				Want: reflect.TypeOf((*T)(nil)).Elem(),
				Got:  reflect.TypeOf(v),
			}
		}
		return typed, nil
	}
}
