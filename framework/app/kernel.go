package app

import (
	gocontext "context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-loopback/framework/component"
	"github.com/km-arc/go-loopback/framework/config"
	dicontext "github.com/km-arc/go-loopback/framework/context"
	"github.com/km-arc/go-loopback/framework/rest"
)

// Well-known root bindings.
const (
	KeyConfig = "core.config"
	KeyLogger = "core.logger"
)

// Server is any transport the application owns: it holds a child Context and
// a start/stop lifecycle.
type Server interface {
	Name() string
	Context() *dicontext.Context
	Start(ctx gocontext.Context) error
	Stop(ctx gocontext.Context) error
}

// Application is the top-level scope: the root Context, the component
// registry, and the servers. User code mounts components, registers routes,
// then calls Run.
type Application struct {
	root       *dicontext.Context
	cfg        *config.Config
	log        *zap.Logger
	components *component.Registry

	mu          sync.Mutex
	servers     map[string]Server
	serverOrder []string
	controllers []component.ControllerRef
	booted      bool
}

// New creates and bootstraps the application: configuration and logger are
// bound at the root so every later binding can inject them.
func New(cfg *config.Config, log *zap.Logger) *Application {
	root := dicontext.New("application")
	root.MustBind(dicontext.Typed[*config.Config](dicontext.Constant(KeyConfig, cfg)))
	root.MustBind(dicontext.Typed[*zap.Logger](dicontext.Constant(KeyLogger, log)))

	a := &Application{
		root:    root,
		cfg:     cfg,
		log:     log,
		servers: make(map[string]Server),
	}
	a.components = component.NewRegistry(root, a, log)
	return a
}

// Root returns the application's root Context.
func (a *Application) Root() *dicontext.Context { return a.root }

// Config returns the loaded configuration.
func (a *Application) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.log }

// ── Components ────────────────────────────────────────────────────────────────

// Mount registers a component's bindings at the application root.
func (a *Application) Mount(c component.Component) error {
	return a.components.Mount(a.root, c)
}

// MountOn registers a component's providers on a server scope instead of the
// root; repository contributions still land at the root.
func (a *Application) MountOn(s Server, c component.Component) error {
	return a.components.Mount(s.Context(), c)
}

// MountClass constructs the component through injection and mounts it.
func (a *Application) MountClass(ctx gocontext.Context, key string, ctor dicontext.Constructor, deps ...dicontext.Dep) (component.Component, error) {
	return a.components.MountClass(ctx, a.root, key, ctor, deps...)
}

// AddMountHook installs an extension point consulted on every later mount.
func (a *Application) AddMountHook(h component.MountHook) {
	a.components.AddHook(h)
}

// RegisterController implements component.ControllerRegistry: mounted
// controllers are recorded so Boot can verify each one resolves.
func (a *Application) RegisterController(ref component.ControllerRef) error {
	if ref.Key == "" {
		return fmt.Errorf("app: controller with empty key")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.controllers = append(a.controllers, ref)
	return nil
}

// ── Servers ───────────────────────────────────────────────────────────────────

// RestServer creates a REST server scoped under the root and registers it.
func (a *Application) RestServer(name string) (*rest.Server, error) {
	s, err := rest.NewServer(name, a.root, a.cfg.Server, a.log)
	if err != nil {
		return nil, err
	}
	if err := a.AddServer(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddServer registers a server under its name.
func (a *Application) AddServer(s Server) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.servers[s.Name()]; exists {
		return fmt.Errorf("app: server [%s] already registered", s.Name())
	}
	a.servers[s.Name()] = s
	a.serverOrder = append(a.serverOrder, s.Name())
	return nil
}

// GetServer returns a registered server by name.
func (a *Application) GetServer(name string) (Server, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.servers[name]
	if !ok {
		return nil, fmt.Errorf("app: no server [%s]", name)
	}
	return s, nil
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Boot verifies the application wires: every mounted controller must resolve
// from the context it was mounted on, and every mounted provider's eager
// dependency graph must be statically reachable from there. An unresolvable
// dependency fails startup here rather than surfacing on the first request
// that needs it; getter/setter slots are exempt since their targets may
// legitimately be bound only at request time.
func (a *Application) Boot(ctx gocontext.Context) error {
	a.mu.Lock()
	if a.booted {
		a.mu.Unlock()
		return nil
	}
	controllers := len(a.controllers)
	a.mu.Unlock()

	for _, m := range a.components.Mounted() {
		for _, ref := range m.Component.Controllers() {
			if _, err := m.Target.Get(ctx, ref.Key); err != nil {
				return fmt.Errorf("app: boot: controller [%s]: %w", ref.Key, err)
			}
		}
		for key, pc := range m.Component.Providers() {
			if err := checkEagerDeps(m.Target, pc.Deps, make(map[string]bool)); err != nil {
				return fmt.Errorf("app: boot: provider [%s]: %w", key, err)
			}
		}
	}

	a.mu.Lock()
	a.booted = true
	a.mu.Unlock()
	a.log.Info("application booted",
		zap.String("name", a.cfg.App.Name),
		zap.String("env", a.cfg.App.Env),
		zap.Int("controllers", controllers))
	return nil
}

// checkEagerDeps walks a dependency list transitively through the bindings
// reachable from start, keys only, constructing nothing. Each dependency is
// looked up from the context that defines the binding declaring it, matching
// how resolution will later walk the graph.
func checkEagerDeps(start *dicontext.Context, deps []dicontext.Dep, seen map[string]bool) error {
	for _, d := range deps {
		if d.Mode != dicontext.ModeDirect || seen[d.Key] {
			continue
		}
		seen[d.Key] = true
		owner, b, ok := start.Lookup(d.Key)
		if !ok {
			return fmt.Errorf("needs unbound key [%s]", d.Key)
		}
		if err := checkEagerDeps(owner, b.Deps, seen); err != nil {
			return err
		}
	}
	return nil
}

// Booted reports whether Boot has completed.
func (a *Application) Booted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.booted
}

// Start boots (if needed) and starts every registered server.
func (a *Application) Start(ctx gocontext.Context) error {
	if err := a.Boot(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	order := append([]string(nil), a.serverOrder...)
	a.mu.Unlock()
	for _, name := range order {
		s, err := a.GetServer(name)
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("app: starting server [%s]: %w", name, err)
		}
	}
	return nil
}

// Stop stops every server in reverse start order, draining within the
// configured shutdown timeout.
func (a *Application) Stop(ctx gocontext.Context) error {
	a.mu.Lock()
	order := append([]string(nil), a.serverOrder...)
	a.mu.Unlock()

	timeout := time.Duration(a.cfg.Server.ShutdownTimeout) * time.Second
	if timeout > 0 {
		var cancel gocontext.CancelFunc
		ctx, cancel = gocontext.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		s, err := a.GetServer(order[i])
		if err != nil {
			continue
		}
		if err := s.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run starts the application and blocks until ctx is cancelled, then stops.
func (a *Application) Run(ctx gocontext.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	a.log.Info("application running", zap.String("name", a.cfg.App.Name))
	<-ctx.Done()
	return a.Stop(gocontext.Background())
}

// Environment helpers, matching the configuration's App.Env values.
func (a *Application) Environment() string { return a.cfg.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
