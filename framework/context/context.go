package context

import (
	gocontext "context"
	"fmt"
	"reflect"
	"sync"
)

// ── Context ───────────────────────────────────────────────────────────────────

// Context is a hierarchical registry of Bindings. Lookups that miss locally
// fall through to the parent chain; a child may shadow a parent's key by
// re-binding it, which never mutates the ancestor. A Context references its
// parent for lookup only — it does not own it.
type Context struct {
	name   string
	parent *Context

	mu       sync.RWMutex
	bindings map[string]*Binding
	cache    map[string]any
	inflight map[string]*inflightCall
}

// inflightCall coordinates concurrent first resolutions of a cached binding
// so the instance is constructed at most once.
type inflightCall struct {
	done  chan struct{}
	owner *resolution
	val   any
	err   error
}

// New creates a root Context.
func New(name string) *Context {
	return &Context{
		name:     name,
		bindings: make(map[string]*Binding),
		cache:    make(map[string]any),
		inflight: make(map[string]*inflightCall),
	}
}

// NewChild creates a child Context whose lookups fall through to c.
func (c *Context) NewChild(name string) *Context {
	child := New(name)
	child.parent = c
	return child
}

// Name returns the context's name (scope label, e.g. "application",
// "server.rest", "request.<id>").
func (c *Context) Name() string { return c.name }

// Parent returns the enclosing Context, or nil for a root.
func (c *Context) Parent() *Context { return c.parent }

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers b at this context level, last-write-wins: re-binding an
// existing key shadows the old binding and drops any cached instance for it.
// Ancestor bindings are never touched.
func (c *Context) Bind(b *Binding) error {
	return c.bind(b, false)
}

// BindStrict is Bind, failing with DuplicateBindingError when the key is
// already bound at this level. Parent bindings do not count as duplicates —
// shadowing across levels is always allowed.
func (c *Context) BindStrict(b *Binding) error {
	return c.bind(b, true)
}

// MustBind is Bind, panicking on error. For bootstrap wiring only.
func (c *Context) MustBind(b *Binding) {
	if err := c.Bind(b); err != nil {
		panic(err)
	}
}

func (c *Context) bind(b *Binding, strict bool) error {
	if b.Key == "" {
		return fmt.Errorf("context: binding with empty key")
	}
	if b.Kind == KindConstant && b.ValueType != nil {
		got := reflect.TypeOf(b.value)
		if got == nil || !got.AssignableTo(b.ValueType) {
			return &TypeMismatchError{Key: b.Key, Want: b.ValueType, Got: got}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.bindings[b.Key]; exists && strict {
		return &DuplicateBindingError{Key: b.Key, Context: c.name}
	}
	delete(c.cache, b.Key)
	c.bindings[b.Key] = b
	return nil
}

// Contains reports whether key is bound here or anywhere up the chain.
func (c *Context) Contains(key string) bool {
	_, b := c.lookup(key)
	return b != nil
}

// ContainsLocal reports whether key is bound at this level.
func (c *Context) ContainsLocal(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[key]
	return ok
}

// Keys returns the keys bound at this level (not ancestors).
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings))
	for k := range c.bindings {
		out = append(out, k)
	}
	return out
}

// Lookup returns the binding registered for key and the context defining it,
// walking the parent chain. Unlike Get it performs no resolution, so it is
// safe for static inspection of a dependency graph.
func (c *Context) Lookup(key string) (*Context, *Binding, bool) {
	owner, b := c.lookup(key)
	return owner, b, b != nil
}

// lookup walks the parent chain and returns the defining context and binding.
func (c *Context) lookup(key string) (*Context, *Binding) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		b := cur.bindings[key]
		cur.mu.RUnlock()
		if b != nil {
			return cur, b
		}
	}
	return nil, nil
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Get resolves key starting at c and walking up the parent chain. Class and
// provider dependencies resolve relative to the binding's defining context;
// getter/setter handle slots are built on c, the requesting context. Provider
// computations run inline, so an asynchronous provider suspends only this
// call — use GetAsync to resolve without blocking.
func (c *Context) Get(ctx gocontext.Context, key string) (any, error) {
	rs := &resolution{origin: c, active: make(map[string]struct{})}
	return c.resolve(ctx, key, rs)
}

// Resolve is a generic helper that calls Get and type-asserts the result.
//
//	log, err := context.Resolve[*zap.Logger](ctx, requestCtx, "core.logger")
func Resolve[T any](ctx gocontext.Context, c *Context, key string) (T, error) {
	var zero T
	v, err := c.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Key:  key,
			Want: reflect.TypeOf((*T)(nil)).Elem(),
			Got:  reflect.TypeOf(v),
		}
	}
	return typed, nil
}

// resolution tracks one top-level Get call: the requesting context handles
// are built on, and the set of keys currently being constructed on this path
// (eager cycle detection).
type resolution struct {
	origin *Context
	path   []string
	active map[string]struct{}
}

func (rs *resolution) isActive(key string) bool {
	_, ok := rs.active[key]
	return ok
}

func (rs *resolution) enter(key string) {
	rs.active[key] = struct{}{}
	rs.path = append(rs.path, key)
}

func (rs *resolution) exit(key string) {
	delete(rs.active, key)
	rs.path = rs.path[:len(rs.path)-1]
}

func (c *Context) resolve(ctx gocontext.Context, key string, rs *resolution) (any, error) {
	owner, b := c.lookup(key)
	if b == nil {
		return nil, &BindingNotFoundError{Key: key, Context: rs.origin.name}
	}
	if b.Kind == KindConstant {
		return b.value, nil
	}
	if rs.isActive(key) {
		return nil, &CyclicDependencyError{Key: key, Path: append([]string(nil), rs.path...)}
	}

	switch b.Scope {
	case ScopeSingleton:
		// Cached on the defining context; descendants share the instance.
		return owner.produceCached(ctx, owner, b, rs)
	case ScopeContext:
		// Cached on the requesting context; each context gets its own.
		return rs.origin.produceCached(ctx, owner, b, rs)
	default:
		return c.build(ctx, owner, b, rs)
	}
}

// produceCached resolves b with its instance cached on host, constructing at
// most once under concurrent first access. Waiting on another goroutine's
// construction goes through awaitInflight, so two resolutions whose eager
// graphs depend on each other fail with CyclicDependencyError instead of
// deadlocking on each other's in-flight entries.
func (host *Context) produceCached(ctx gocontext.Context, owner *Context, b *Binding, rs *resolution) (any, error) {
	host.mu.Lock()
	if v, ok := host.cache[b.Key]; ok {
		host.mu.Unlock()
		return v, nil
	}
	if call, ok := host.inflight[b.Key]; ok {
		host.mu.Unlock()
		return awaitInflight(ctx, rs, b.Key, call)
	}
	call := &inflightCall{done: make(chan struct{}), owner: rs}
	host.inflight[b.Key] = call
	host.mu.Unlock()

	val, err := host.build(ctx, owner, b, rs)

	host.mu.Lock()
	delete(host.inflight, b.Key)
	if err == nil {
		host.cache[b.Key] = val
	}
	host.mu.Unlock()

	call.val, call.err = val, err
	close(call.done)
	return val, err
}

// The wait graph: which in-flight construction each resolution is currently
// blocked on. Checked before a resolution blocks, so a cycle of waits across
// goroutines is refused up front.
var (
	waitMu  sync.Mutex
	waiting = make(map[*resolution]*inflightCall)
)

// awaitInflight blocks rs until call completes. It first follows the chain
// of builders (call's owner, whatever that owner is blocked on, and so on):
// a chain leading back to rs means the goroutines would wait on each other
// forever, which is the cross-goroutine form of an eager dependency cycle
// and fails the same way.
func awaitInflight(ctx gocontext.Context, rs *resolution, key string, call *inflightCall) (any, error) {
	waitMu.Lock()
	visited := make(map[*inflightCall]bool)
	for c := call; c != nil && !visited[c]; c = waiting[c.owner] {
		visited[c] = true
		if c.owner == rs {
			waitMu.Unlock()
			return nil, &CyclicDependencyError{Key: key, Path: append([]string(nil), rs.path...)}
		}
	}
	waiting[rs] = call
	waitMu.Unlock()
	defer func() {
		waitMu.Lock()
		delete(waiting, rs)
		waitMu.Unlock()
	}()

	select {
	case <-call.done:
		return call.val, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build constructs b's value: dependencies first (direct slots against the
// defining context, handle slots against the requesting context), then the
// constructor, then — for providers — the Value computation.
func (c *Context) build(ctx gocontext.Context, owner *Context, b *Binding, rs *resolution) (any, error) {
	rs.enter(b.Key)
	defer rs.exit(b.Key)

	args := make([]any, len(b.Deps))
	for i, d := range b.Deps {
		switch d.Mode {
		case ModeGetter:
			args[i] = rs.origin.GetterFor(d.Key)
		case ModeSetter:
			args[i] = rs.origin.SetterFor(d.Key)
		default:
			v, err := owner.resolve(ctx, d.Key, rs)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
	}

	out, err := b.construct(args...)
	if err != nil {
		return nil, &ResolutionError{Key: b.Key, Err: err}
	}

	if b.Kind == KindProvider {
		p, ok := out.(Provider)
		if !ok {
			return nil, &ResolutionError{Key: b.Key, Err: fmt.Errorf("provider constructor returned %T, not a Provider", out)}
		}
		out, err = p.Value(ctx)
		if err != nil {
			return nil, &ResolutionError{Key: b.Key, Err: err}
		}
	}

	if b.ValueType != nil {
		got := reflect.TypeOf(out)
		if got == nil || !got.AssignableTo(b.ValueType) {
			return nil, &TypeMismatchError{Key: b.Key, Want: b.ValueType, Got: got}
		}
	}
	return out, nil
}
