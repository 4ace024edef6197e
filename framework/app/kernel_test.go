package app_test

import (
	gocontext "context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-loopback/framework/app"
	"github.com/km-arc/go-loopback/framework/component"
	"github.com/km-arc/go-loopback/framework/config"
	dicontext "github.com/km-arc/go-loopback/framework/context"
	"github.com/km-arc/go-loopback/framework/rest"
)

func newApp(t *testing.T) *app.Application {
	t.Helper()
	cfg := &config.Config{
		App:    config.AppConfig{Name: "test", Env: "testing"},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "0", ShutdownTimeout: 2},
		Log:    config.LogConfig{Level: "error"},
	}
	return app.New(cfg, zap.NewNop())
}

// ── Test components ───────────────────────────────────────────────────────────

type clockComponent struct {
	component.Base
	controllerDeps []dicontext.Dep
	providerDeps   []dicontext.Dep
}

func (c *clockComponent) Controllers() []component.ControllerRef {
	return []component.ControllerRef{{
		Key: "clock.controller",
		Binding: dicontext.Class("clock.controller", func(deps ...any) (any, error) {
			return &clockController{}, nil
		}, c.controllerDeps...),
	}}
}

func (c *clockComponent) Providers() map[string]component.ProviderClass {
	return map[string]component.ProviderClass{
		"clock.now": {
			New: func(...any) (dicontext.Provider, error) {
				return dicontext.ProviderFunc(func(gocontext.Context) (any, error) {
					return time.Now(), nil
				}), nil
			},
			Deps: c.providerDeps,
		},
	}
}

type clockController struct{}

func (*clockController) Now(_ gocontext.Context, _ *rest.Args) (any, error) {
	return time.Now().Format(time.RFC3339), nil
}

// ── Bootstrap bindings ────────────────────────────────────────────────────────

func TestNew_BindsConfigAndLoggerAtRoot(t *testing.T) {
	a := newApp(t)
	ctx := gocontext.Background()

	cfg, err := dicontext.Resolve[*config.Config](ctx, a.Root(), app.KeyConfig)
	require.NoError(t, err)
	assert.Same(t, a.Config(), cfg)

	log, err := dicontext.Resolve[*zap.Logger](ctx, a.Root(), app.KeyLogger)
	require.NoError(t, err)
	assert.Same(t, a.Logger(), log)
}

// ── Boot ──────────────────────────────────────────────────────────────────────

func TestBoot_ResolvesMountedControllers(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.Mount(&clockComponent{}))

	require.NoError(t, a.Boot(gocontext.Background()))
	assert.True(t, a.Booted())
}

func TestBoot_FailsOnControllerWithUnboundDep(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.Mount(&clockComponent{
		controllerDeps: []dicontext.Dep{dicontext.On("missing.service")},
	}))

	err := a.Boot(gocontext.Background())
	require.Error(t, err)
	assert.True(t, dicontext.IsBindingNotFound(err))
	assert.False(t, a.Booted())
}

func TestBoot_FailsOnProviderWithUnboundDirectDep(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.Mount(&clockComponent{
		providerDeps: []dicontext.Dep{dicontext.On("missing.tz")},
	}))

	err := a.Boot(gocontext.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.tz")
}

func TestBoot_IgnoresDeferredProviderDeps(t *testing.T) {
	// Getter and setter deps are handles; the target key may be bound later,
	// so boot must not insist on it.
	a := newApp(t)
	require.NoError(t, a.Mount(&clockComponent{
		providerDeps: []dicontext.Dep{dicontext.GetterOf("bound.later")},
	}))

	require.NoError(t, a.Boot(gocontext.Background()))
}

func TestBoot_AcceptsControllersMountedOnServerScope(t *testing.T) {
	a := newApp(t)
	s, err := a.RestServer("rest")
	require.NoError(t, err)
	require.NoError(t, a.MountOn(s, &clockComponent{}))

	ctx := gocontext.Background()
	require.NoError(t, a.Boot(ctx))

	// The controller lives on the server scope, not the root.
	_, err = s.Context().Get(ctx, "clock.controller")
	require.NoError(t, err)
	assert.False(t, a.Root().Contains("clock.controller"))
}

func TestBoot_ServerScopedMountStillFailFast(t *testing.T) {
	a := newApp(t)
	s, err := a.RestServer("rest")
	require.NoError(t, err)
	require.NoError(t, a.MountOn(s, &clockComponent{
		controllerDeps: []dicontext.Dep{dicontext.On("missing.service")},
	}))

	err = a.Boot(gocontext.Background())
	require.Error(t, err)
	assert.True(t, dicontext.IsBindingNotFound(err))
}

func TestBoot_WalksProviderDependencyGraph(t *testing.T) {
	// The provider's direct dep exists, but that binding's own eager graph
	// dead-ends; boot reports the broken inner key instead of deferring the
	// failure to the first request.
	a := newApp(t)
	require.NoError(t, a.Root().Bind(dicontext.Class("chain.outer", func(...any) (any, error) {
		return "outer", nil
	}, dicontext.On("chain.missing"))))
	require.NoError(t, a.Mount(&clockComponent{
		providerDeps: []dicontext.Dep{dicontext.On("chain.outer")},
	}))

	err := a.Boot(gocontext.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain.missing")
}

func TestBoot_SecondCallIsNoOp(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.Boot(gocontext.Background()))
	require.NoError(t, a.Boot(gocontext.Background()))
}

// ── Servers ───────────────────────────────────────────────────────────────────

func TestAddServer_RejectsDuplicateName(t *testing.T) {
	a := newApp(t)
	_, err := a.RestServer("rest")
	require.NoError(t, err)

	_, err = a.RestServer("rest")
	assert.Error(t, err)
}

func TestGetServer(t *testing.T) {
	a := newApp(t)
	s, err := a.RestServer("rest")
	require.NoError(t, err)

	got, err := a.GetServer("rest")
	require.NoError(t, err)
	assert.Same(t, app.Server(s), got)

	_, err = a.GetServer("nope")
	assert.Error(t, err)
}

func TestStartStop_ServesMountedControllerRoute(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.Mount(&clockComponent{}))

	s, err := a.RestServer("rest")
	require.NoError(t, err)
	require.NoError(t, s.Route("GET", "/now", "clock.controller", "Now"))

	ctx := gocontext.Background()
	require.NoError(t, a.Start(ctx))
	defer a.Stop(ctx)

	resp, err := http.Get("http://" + s.Addr() + "/now")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(ctx))
	_, err = http.Get("http://" + s.Addr() + "/now")
	assert.Error(t, err)
}

// ── Environment helpers ───────────────────────────────────────────────────────

func TestEnvironmentHelpers(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, "testing", a.Environment())
	assert.True(t, a.IsTesting())
	assert.False(t, a.IsLocal())
	assert.False(t, a.IsProduction())
}
