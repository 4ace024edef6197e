package component

import (
	gocontext "context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	dicontext "github.com/km-arc/go-loopback/framework/context"
)

// ── Mount hooks ───────────────────────────────────────────────────────────────

// MountHook is an extension point invoked for every mounted component. It
// returns bindings to add at the application's root context; the bindings
// commit atomically with the rest of the mount. A hook that does not care
// about a component returns (nil, nil).
type MountHook interface {
	Contribute(c Component) ([]*dicontext.Binding, error)
}

// RepositoryHook registers the repositories of components implementing
// ContributesRepositories at the root context, so they are visible
// application-wide rather than only within the component's own scope.
type RepositoryHook struct{}

func (RepositoryHook) Contribute(c Component) ([]*dicontext.Binding, error) {
	cr, ok := c.(ContributesRepositories)
	if !ok {
		return nil, nil
	}
	var out []*dicontext.Binding
	for _, ref := range cr.Repositories() {
		if ref.Binding == nil {
			return nil, fmt.Errorf("component: repository [%s] has no binding", ref.Key)
		}
		b := ref.Binding
		b.Key = ref.Key
		out = append(out, b)
	}
	return out, nil
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry mounts components and tracks what has been mounted. It plays the
// role Laravel-style provider registries play in our sibling framework:
// registration is the mount, and the application's Boot phase later verifies
// everything resolves.
type Registry struct {
	root        *dicontext.Context
	controllers ControllerRegistry
	log         *zap.Logger
	hooks       []MountHook
	mounted     []Mounted
}

// Mounted pairs a mounted component with the context its providers and
// controllers were bound on. Repository contributions always land at the
// root regardless of the target.
type Mounted struct {
	Component Component
	Target    *dicontext.Context
}

// NewRegistry creates a registry rooted at the application context. The
// RepositoryHook is installed by default.
func NewRegistry(root *dicontext.Context, controllers ControllerRegistry, log *zap.Logger) *Registry {
	return &Registry{
		root:        root,
		controllers: controllers,
		log:         log,
		hooks:       []MountHook{RepositoryHook{}},
	}
}

// AddHook installs an additional mount extension point. Hooks run for
// components mounted after the call.
func (r *Registry) AddHook(h MountHook) {
	r.hooks = append(r.hooks, h)
}

// Mounted returns the mounted components in mount order, each with its mount
// target.
func (r *Registry) Mounted() []Mounted { return r.mounted }

// staged is one binding ready to commit to a target context.
type staged struct {
	target  *dicontext.Context
	binding *dicontext.Binding
}

// Mount registers a component's providers on target and its controllers with
// the application, and runs mount hooks against the root context.
//
// Mounting is atomic with respect to the context: every contribution is
// staged and validated first, and no binding becomes visible if any part
// fails. The controller registry is an external collaborator, so when it
// rejects a controller the mount aborts with no bindings committed, but
// controllers it accepted earlier in the same mount stay registered with it.
// Two components mounting the same provider key at the same level shadow
// last-mount-wins — that is the documented collision behavior for unprefixed
// keys, not an error.
func (r *Registry) Mount(target *dicontext.Context, c Component) error {
	var stage []staged

	provs := c.Providers()
	keys := make([]string, 0, len(provs))
	for key := range provs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		pc := provs[key]
		if pc.New == nil {
			return fmt.Errorf("component: provider [%s] has no constructor", key)
		}
		b := dicontext.Provide(key, pc.New, pc.Deps...).In(pc.Scope)
		stage = append(stage, staged{target: target, binding: b})
	}

	ctrls := c.Controllers()
	for _, ref := range ctrls {
		if ref.Binding == nil {
			return fmt.Errorf("component: controller [%s] has no binding", ref.Key)
		}
		ref.Binding.Key = ref.Key
		stage = append(stage, staged{target: target, binding: ref.Binding})
	}

	for _, h := range r.hooks {
		contributed, err := h.Contribute(c)
		if err != nil {
			return fmt.Errorf("component: mount hook: %w", err)
		}
		for _, b := range contributed {
			stage = append(stage, staged{target: r.root, binding: b})
		}
	}

	for _, s := range stage {
		if err := validate(s.binding); err != nil {
			return err
		}
	}

	for _, ref := range ctrls {
		if err := r.controllers.RegisterController(ref); err != nil {
			return fmt.Errorf("component: registering controller [%s]: %w", ref.Key, err)
		}
	}

	// Commit. validate() mirrors Bind's own checks, so this cannot fail
	// halfway and leave a partial mount visible.
	for _, s := range stage {
		if err := s.target.Bind(s.binding); err != nil {
			return err
		}
	}

	r.mounted = append(r.mounted, Mounted{Component: c, Target: target})
	r.log.Info("component mounted",
		zap.String("component", fmt.Sprintf("%T", c)),
		zap.Int("providers", len(provs)),
		zap.Int("controllers", len(ctrls)))
	return nil
}

// MountClass binds a component class at target, resolves it with injection
// (so the component may receive configuration through its own constructor),
// and mounts the instance.
func (r *Registry) MountClass(ctx gocontext.Context, target *dicontext.Context, key string, ctor dicontext.Constructor, deps ...dicontext.Dep) (Component, error) {
	b := dicontext.Class(key, ctor, deps...).In(dicontext.ScopeSingleton)
	if err := target.Bind(b); err != nil {
		return nil, err
	}
	v, err := target.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c, ok := v.(Component)
	if !ok {
		return nil, fmt.Errorf("component: [%s] resolved to %T, not a Component", key, v)
	}
	if err := r.Mount(target, c); err != nil {
		return nil, err
	}
	return c, nil
}

// validate mirrors the checks Bind performs so commits cannot fail partway.
func validate(b *dicontext.Binding) error {
	if b == nil || b.Key == "" {
		return fmt.Errorf("component: binding with empty key")
	}
	if b.Kind == dicontext.KindConstant && b.ValueType != nil {
		// Constant type mismatches surface at bind time; check them here so
		// they abort before anything commits.
		if err := probeBind(b); err != nil {
			return err
		}
	}
	return nil
}

// probeBind binds b into a throwaway context to reuse Bind's validation.
func probeBind(b *dicontext.Binding) error {
	return dicontext.New("mount-probe").Bind(b)
}
