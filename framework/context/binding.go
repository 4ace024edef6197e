package context

import (
	gocontext "context"
	"reflect"
)

// ── Binding model ─────────────────────────────────────────────────────────────

// Kind classifies how a binding produces its value.
type Kind int

const (
	// KindConstant stores a pre-built value.
	KindConstant Kind = iota
	// KindClass constructs an instance through a Constructor whose arguments
	// are resolved from the container.
	KindClass
	// KindProvider constructs a Provider (itself a class binding) and then
	// invokes its Value computation.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindClass:
		return "class"
	case KindProvider:
		return "provider"
	}
	return "unknown"
}

// Scope is the lifetime/sharing policy of a resolved value.
type Scope int

const (
	// ScopeTransient builds a new instance on every resolution.
	ScopeTransient Scope = iota
	// ScopeSingleton caches the instance on the context that defines the
	// binding, so descendants observing the binding share one instance.
	ScopeSingleton
	// ScopeContext caches one instance per resolving context: each context
	// that needs the value gets its own, reused within that context.
	ScopeContext
)

func (s Scope) String() string {
	switch s {
	case ScopeTransient:
		return "transient"
	case ScopeSingleton:
		return "singleton"
	case ScopeContext:
		return "context"
	}
	return "unknown"
}

// Mode selects how a dependency slot is satisfied.
type Mode int

const (
	// ModeDirect resolves the key eagerly before construction.
	ModeDirect Mode = iota
	// ModeGetter injects a Getter handle; the key is looked up only when the
	// handle is invoked.
	ModeGetter
	// ModeSetter injects a Setter handle that writes a constant binding for
	// the key into the requesting context when invoked.
	ModeSetter
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeGetter:
		return "getter"
	case ModeSetter:
		return "setter"
	}
	return "unknown"
}

// Dep is one dependency slot of a class or provider binding.
type Dep struct {
	Key  string
	Mode Mode
}

// On declares an eagerly resolved dependency on key.
func On(key string) Dep { return Dep{Key: key, Mode: ModeDirect} }

// GetterOf declares a deferred-getter dependency on key. The slot receives a
// Getter; key's own binding is never touched while the handle is built.
func GetterOf(key string) Dep { return Dep{Key: key, Mode: ModeGetter} }

// SetterOf declares a deferred-setter dependency on key.
func SetterOf(key string) Dep { return Dep{Key: key, Mode: ModeSetter} }

// Constructor builds a value from its resolved dependencies, passed in the
// order the binding declared them. Getter/setter slots arrive as Getter and
// Setter values.
type Constructor func(deps ...any) (any, error)

// Provider is an injectable object whose sole behavior is producing a value,
// possibly after blocking on I/O. A slow Value suspends only the resolution
// chain awaiting it, never the whole scheduler.
type Provider interface {
	Value(ctx gocontext.Context) (any, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx gocontext.Context) (any, error)

func (f ProviderFunc) Value(ctx gocontext.Context) (any, error) { return f(ctx) }

// Binding is a named, typed slot in a Context describing how to produce a
// value. Keys are plain strings; by convention each component prefixes its
// keys ("greeter.service", "sequence.route") — the container does not enforce
// the convention, so unprefixed keys from two components can collide and
// shadow each other.
type Binding struct {
	Key   string
	Kind  Kind
	Scope Scope
	Deps  []Dep

	// ValueType, when non-nil, is checked against the bound constant at Bind
	// time and against every produced value at resolution time.
	ValueType reflect.Type

	value     any
	construct Constructor
}

// Constant creates a binding for a pre-built value.
func Constant(key string, value any) *Binding {
	return &Binding{Key: key, Kind: KindConstant, Scope: ScopeSingleton, value: value}
}

// Class creates a transient class binding. Constructor arguments are resolved
// relative to the context the binding is declared in, not the requesting one.
func Class(key string, ctor Constructor, deps ...Dep) *Binding {
	return &Binding{Key: key, Kind: KindClass, Scope: ScopeTransient, construct: ctor, Deps: deps}
}

// Provide creates a provider binding: ctor builds the Provider with injected
// deps, then Value is invoked to produce the binding's value.
func Provide(key string, ctor func(deps ...any) (Provider, error), deps ...Dep) *Binding {
	return &Binding{
		Key:   key,
		Kind:  KindProvider,
		Scope: ScopeTransient,
		Deps:  deps,
		construct: func(resolved ...any) (any, error) {
			return ctor(resolved...)
		},
	}
}

// ProvideFunc is shorthand for a dependency-free provider.
func ProvideFunc(key string, fn ProviderFunc) *Binding {
	return Provide(key, func(...any) (Provider, error) { return fn, nil })
}

// In sets the binding's scope and returns the binding for chaining.
//
//	ctx.Bind(context.Class("db", newDB).In(context.ScopeSingleton))
func (b *Binding) In(scope Scope) *Binding {
	b.Scope = scope
	return b
}

// Typed attaches an expected value type to a binding; resolution of a value
// not assignable to T fails with TypeMismatchError.
//
//	ctx.Bind(context.Typed[*zap.Logger](context.Constant("core.logger", log)))
func Typed[T any](b *Binding) *Binding {
	b.ValueType = reflect.TypeOf((*T)(nil)).Elem()
	return b
}
