// Package context provides a LoopBack-style hierarchical Inversion of Control
// container for Go.
//
// # Overview
//
// A Context is a registry of named Bindings with an optional parent. Contexts
// form a tree — application, server, request — and a lookup that misses
// locally falls through to the parent chain. Children may shadow a parent's
// key by re-binding it; ancestors are never mutated.
//
// It mirrors the public model of LoopBack 4's @loopback/context as closely as
// Go allows: string binding keys, constant/class/provider binding kinds,
// transient/singleton/context scopes, and deferred getter/setter handles.
// Because Go has no decorators, dependencies are declared as explicit Dep
// slots on each binding rather than via @inject annotations.
//
// # Binding and resolving
//
//	app := context.New("application")
//
//	// Constant — a pre-built value
//	app.MustBind(context.Constant("core.config", cfg))
//
//	// Class — constructed with injected arguments
//	app.MustBind(context.Class("greeter.service", func(deps ...any) (any, error) {
//	    return &Greeter{Log: deps[0].(*zap.Logger)}, nil
//	}, context.On("core.logger")).In(context.ScopeSingleton))
//
//	// Provider — an injectable object producing the value, possibly slowly
//	app.MustBind(context.ProvideFunc("greeter.message", func(ctx gocontext.Context) (any, error) {
//	    return fetchMessage(ctx)
//	}))
//
//	svc, err := context.Resolve[*Greeter](ctx, app, "greeter.service")
//
// Constructor dependencies resolve relative to the context the binding was
// declared in; the requesting context only decides where the lookup starts
// and where handle slots read and write.
//
// # Scopes
//
// Transient bindings rebuild on every resolution. Singleton bindings cache on
// the defining context, so a descendant resolving the key sees the same
// instance. Context-scoped bindings cache per requesting context. Concurrent
// first access to a cached binding constructs the instance at most once.
//
// # Deferred handles
//
// Requesting a getter or setter for key K is distinct from requesting K: the
// handle is built without resolving K at all, and performs the lookup (or
// write) when invoked. This is the only supported way for two values to
// reference each other cyclically — an eager cycle fails with
// CyclicDependencyError.
//
//	g := requestCtx.GetterFor("sequence.route") // safe before the route exists
//	s := requestCtx.SetterFor("auth.user")
//
// # Asynchrony
//
// Provider computations take a context.Context and may block; Get runs them
// inline and suspends only the calling goroutine. GetAsync returns a Future
// for callers that must not block; a chain of asynchronous providers awaits
// fully, never surfacing an intermediate Future.
package context
