package context_test

import (
	gocontext "context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-loopback/framework/context"
)

type widget struct {
	n int
}

func newWidgetBinding(key string, counter *int32) *context.Binding {
	return context.Class(key, func(deps ...any) (any, error) {
		n := atomic.AddInt32(counter, 1)
		return &widget{n: int(n)}, nil
	})
}

// ── Scopes ────────────────────────────────────────────────────────────────────

func TestSingleton_SameInstanceFromSameContext(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	var built int32
	require.NoError(t, app.Bind(newWidgetBinding("w", &built).In(context.ScopeSingleton)))

	a, err := app.Get(ctx, "w")
	require.NoError(t, err)
	b, err := app.Get(ctx, "w")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.EqualValues(t, 1, built)
}

func TestSingleton_SharedWithDescendantContext(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	var built int32
	require.NoError(t, app.Bind(newWidgetBinding("w", &built).In(context.ScopeSingleton)))
	req := app.NewChild("request")

	fromApp, err := app.Get(ctx, "w")
	require.NoError(t, err)
	fromReq, err := req.Get(ctx, "w")
	require.NoError(t, err)

	assert.Same(t, fromApp, fromReq)
}

func TestTransient_DistinctInstances(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	var built int32
	require.NoError(t, app.Bind(newWidgetBinding("w", &built)))

	a, err := app.Get(ctx, "w")
	require.NoError(t, err)
	b, err := app.Get(ctx, "w")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.EqualValues(t, 2, built)
}

func TestContextScope_OneInstancePerRequestingContext(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	var built int32
	require.NoError(t, app.Bind(newWidgetBinding("w", &built).In(context.ScopeContext)))

	reqA := app.NewChild("request-a")
	reqB := app.NewChild("request-b")

	a1, err := reqA.Get(ctx, "w")
	require.NoError(t, err)
	a2, err := reqA.Get(ctx, "w")
	require.NoError(t, err)
	b1, err := reqB.Get(ctx, "w")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b1)
}

func TestSingleton_ConcurrentFirstAccessBuildsOnce(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	var built int32
	require.NoError(t, app.Bind(context.Class("slow", func(deps ...any) (any, error) {
		atomic.AddInt32(&built, 1)
		time.Sleep(10 * time.Millisecond)
		return &widget{}, nil
	}).In(context.ScopeSingleton)))

	const goroutines = 16
	results := make([]any, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := app.Get(ctx, "slow")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, built)
	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestSingleton_ConcurrentEagerCycleFailsInsteadOfDeadlocking(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")

	// Both goroutines hold their own in-flight entry before needing the
	// other's; the barrier forces that interleaving every run.
	var barrier sync.WaitGroup
	barrier.Add(2)
	rendezvous := func(deps ...any) (any, error) {
		barrier.Done()
		barrier.Wait()
		return "go", nil
	}
	require.NoError(t, app.Bind(context.Class("barrier.a", rendezvous)))
	require.NoError(t, app.Bind(context.Class("barrier.b", rendezvous)))

	require.NoError(t, app.Bind(context.Class("a", func(deps ...any) (any, error) {
		return "a", nil
	}, context.On("barrier.a"), context.On("b")).In(context.ScopeSingleton)))
	require.NoError(t, app.Bind(context.Class("b", func(deps ...any) (any, error) {
		return "b", nil
	}, context.On("barrier.b"), context.On("a")).In(context.ScopeSingleton)))

	errs := make(chan error, 2)
	go func() { _, err := app.Get(ctx, "a"); errs <- err }()
	go func() { _, err := app.Get(ctx, "b"); errs <- err }()

	for i := 0; i < 2; i++ {
		err := <-errs
		require.Error(t, err)
		assert.True(t, context.IsCyclicDependency(err))
	}
}

// ── Parent chain & shadowing ──────────────────────────────────────────────────

func TestShadowing_ChildWinsParentUnaffected(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	require.NoError(t, app.Bind(context.Constant("greeting", "hello")))
	req := app.NewChild("request")
	require.NoError(t, req.Bind(context.Constant("greeting", "hi")))

	fromReq, err := req.Get(ctx, "greeting")
	require.NoError(t, err)
	fromApp, err := app.Get(ctx, "greeting")
	require.NoError(t, err)

	assert.Equal(t, "hi", fromReq)
	assert.Equal(t, "hello", fromApp)
}

func TestGet_MissingKeyFailsWithBindingNotFound(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	req := app.NewChild("request")

	_, err := req.Get(ctx, "nope")
	require.Error(t, err)
	assert.True(t, context.IsBindingNotFound(err))

	var nf *context.BindingNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Key)
}

func TestBindStrict_DuplicateAtSameLevelFails(t *testing.T) {
	app := context.New("application")
	require.NoError(t, app.BindStrict(context.Constant("k", 1)))

	err := app.BindStrict(context.Constant("k", 2))
	assert.True(t, context.IsDuplicateBinding(err))
}

func TestBindStrict_ShadowingParentIsNotADuplicate(t *testing.T) {
	app := context.New("application")
	require.NoError(t, app.Bind(context.Constant("k", 1)))
	req := app.NewChild("request")

	assert.NoError(t, req.BindStrict(context.Constant("k", 2)))
}

func TestBind_RebindDropsCachedSingleton(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	var built int32
	require.NoError(t, app.Bind(newWidgetBinding("w", &built).In(context.ScopeSingleton)))

	first, err := app.Get(ctx, "w")
	require.NoError(t, err)

	require.NoError(t, app.Bind(newWidgetBinding("w", &built).In(context.ScopeSingleton)))
	second, err := app.Get(ctx, "w")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

// ── Dependency resolution ─────────────────────────────────────────────────────

func TestClass_DepsResolveAgainstDefiningContext(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	require.NoError(t, app.Bind(context.Constant("prefix", "app")))
	require.NoError(t, app.Bind(context.Class("label", func(deps ...any) (any, error) {
		return deps[0].(string) + "-label", nil
	}, context.On("prefix"))))

	// The request context shadows "prefix", but "label" was defined at the
	// application level, so its dependency resolves there.
	req := app.NewChild("request")
	require.NoError(t, req.Bind(context.Constant("prefix", "req")))

	v, err := req.Get(ctx, "label")
	require.NoError(t, err)
	assert.Equal(t, "app-label", v)
}

func TestClass_ConstructorErrorWrappedInResolutionError(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	boom := errors.New("boom")
	require.NoError(t, app.Bind(context.Class("bad", func(deps ...any) (any, error) {
		return nil, boom
	})))

	_, err := app.Get(ctx, "bad")
	var re *context.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, boom)
}

func TestCycle_EagerCycleFails(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	require.NoError(t, app.Bind(context.Class("a", func(deps ...any) (any, error) {
		return "a", nil
	}, context.On("b"))))
	require.NoError(t, app.Bind(context.Class("b", func(deps ...any) (any, error) {
		return "b", nil
	}, context.On("a"))))

	_, err := app.Get(ctx, "a")
	require.Error(t, err)
	assert.True(t, context.IsCyclicDependency(err))
}

func TestCycle_BrokenByDeferredGetterEdge(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	// a -> b eagerly, b -> a via getter: legal, because the getter edge is
	// only followed when invoked.
	require.NoError(t, app.Bind(context.Class("a", func(deps ...any) (any, error) {
		return "a:" + deps[0].(string), nil
	}, context.On("b"))))
	require.NoError(t, app.Bind(context.Class("b", func(deps ...any) (any, error) {
		_ = deps[0].(context.Getter)
		return "b", nil
	}, context.GetterOf("a"))))

	v, err := app.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a:b", v)
}

// ── Deferred handles ──────────────────────────────────────────────────────────

func TestGetter_BeforeAnyWriteFailsWithBindingNotFound(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	req := app.NewChild("request")

	g := req.GetterFor("sequence.route")
	_, err := g(ctx)
	assert.True(t, context.IsBindingNotFound(err))
}

func TestSetterThenGetter_RoundTripsIdenticalValue(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	req := app.NewChild("request")

	g := req.GetterFor("sequence.route")
	s := req.SetterFor("sequence.route")

	route := &widget{n: 42}
	require.NoError(t, s(route))

	got, err := g(ctx)
	require.NoError(t, err)
	assert.Same(t, route, got)
}

func TestSetter_WritesToOwnContextNotParent(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	req := app.NewChild("request")

	require.NoError(t, req.SetterFor("k")("v"))

	_, err := app.Get(ctx, "k")
	assert.True(t, context.IsBindingNotFound(err))

	v, err := req.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestHandleSlots_InjectedWithoutResolvingTarget(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	req := app.NewChild("request")

	// consumer depends on a getter and a setter for keys that do not exist
	// yet; construction must succeed anyway.
	require.NoError(t, app.Bind(context.Class("consumer", func(deps ...any) (any, error) {
		return [2]any{deps[0], deps[1]}, nil
	}, context.GetterOf("late"), context.SetterOf("late"))))

	v, err := req.Get(ctx, "consumer")
	require.NoError(t, err)
	pair := v.([2]any)
	set := pair[1].(context.Setter)
	get := pair[0].(context.Getter)

	require.NoError(t, set("produced-later"))
	got, err := get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "produced-later", got)
}

// ── Providers & async ─────────────────────────────────────────────────────────

func TestProvider_ValueComputedOnResolution(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	require.NoError(t, app.Bind(context.ProvideFunc("now", func(gocontext.Context) (any, error) {
		return "computed", nil
	})))

	v, err := app.Get(ctx, "now")
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
}

func TestProvider_AsyncChainFullyAwaited(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")

	// inner provider is slow; outer provider depends on inner's value.
	require.NoError(t, app.Bind(context.ProvideFunc("inner", func(gocontext.Context) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "inner-value", nil
	})))
	require.NoError(t, app.Bind(context.Provide("outer", func(deps ...any) (context.Provider, error) {
		inner := deps[0].(string)
		return context.ProviderFunc(func(gocontext.Context) (any, error) {
			return "outer(" + inner + ")", nil
		}), nil
	}, context.On("inner"))))

	f := app.GetAsync(ctx, "outer")
	v, err := f.Await(ctx)
	require.NoError(t, err)

	// The awaited result is the final value, never an unresolved Future.
	assert.Equal(t, "outer(inner-value)", v)
	_, isFuture := v.(*context.Future)
	assert.False(t, isFuture)
}

func TestGetAsync_ConstantCompletesImmediately(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	require.NoError(t, app.Bind(context.Constant("k", 7)))

	f := app.GetAsync(ctx, "k")
	assert.True(t, f.Done())
	v, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestProvider_ErrorSurfacesToCaller(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	boom := errors.New("upstream down")
	require.NoError(t, app.Bind(context.ProvideFunc("flaky", func(gocontext.Context) (any, error) {
		return nil, boom
	})))

	_, err := app.Get(ctx, "flaky")
	assert.ErrorIs(t, err, boom)

	_, err = app.GetAsync(ctx, "flaky").Await(ctx)
	assert.ErrorIs(t, err, boom)
}

// ── Type checking ─────────────────────────────────────────────────────────────

func TestTyped_ConstantCheckedAtBindTime(t *testing.T) {
	app := context.New("application")

	err := app.Bind(context.Typed[string](context.Constant("k", 123)))
	assert.True(t, context.IsTypeMismatch(err))

	assert.NoError(t, app.Bind(context.Typed[string](context.Constant("k", "ok"))))
}

func TestTyped_ProducedValueCheckedAtResolution(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	require.NoError(t, app.Bind(context.Typed[*widget](context.Class("w", func(deps ...any) (any, error) {
		return "not a widget", nil
	}))))

	_, err := app.Get(ctx, "w")
	assert.True(t, context.IsTypeMismatch(err))
}

func TestResolve_GenericTypeMismatch(t *testing.T) {
	ctx := gocontext.Background()
	app := context.New("application")
	require.NoError(t, app.Bind(context.Constant("k", "string-value")))

	_, err := context.Resolve[int](ctx, app, "k")
	assert.True(t, context.IsTypeMismatch(err))

	s, err := context.Resolve[string](ctx, app, "k")
	require.NoError(t, err)
	assert.Equal(t, "string-value", s)
}
