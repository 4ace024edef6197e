package context

import gocontext "context"

// ── Async resolution ──────────────────────────────────────────────────────────

// Future is the asynchronous result of a resolution. Await blocks until the
// value is produced or the context is done.
type Future struct {
	done chan struct{}
	val  any
	err  error
}

// Await returns the resolved value, blocking until resolution completes.
func (f *Future) Await(ctx gocontext.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports whether the future has completed without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func completedFuture(val any, err error) *Future {
	f := &Future{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// GetAsync resolves key without blocking the caller. Constants and
// already-cached instances complete immediately; anything that needs
// construction — in particular a dependency graph containing an asynchronous
// provider — resolves on its own goroutine, suspending only that chain.
// A nested asynchronous provider is fully awaited: the future completes with
// the final value, never an intermediate Future.
func (c *Context) GetAsync(ctx gocontext.Context, key string) *Future {
	if owner, b := c.lookup(key); b != nil {
		if b.Kind == KindConstant {
			return completedFuture(b.value, nil)
		}
		host := owner
		if b.Scope == ScopeContext {
			host = c
		}
		host.mu.RLock()
		v, cached := host.cache[b.Key]
		host.mu.RUnlock()
		if cached {
			return completedFuture(v, nil)
		}
	}

	f := &Future{done: make(chan struct{})}
	go func() {
		f.val, f.err = c.Get(ctx, key)
		close(f.done)
	}()
	return f
}
