package rest

import (
	gocontext "context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// ── Route model ───────────────────────────────────────────────────────────────

// HandlerFunc is the invocation signature for both free-standing route
// handlers and controller methods.
type HandlerFunc func(ctx gocontext.Context, args *Args) (any, error)

// Args is what parse-args produces for the invoke step: the matched path
// parameters plus the wrapped request for body binding.
type Args struct {
	Params  map[string]string
	Request *Request
}

// Bind decodes the request body into v.
func (a *Args) Bind(v any) error { return a.Request.Bind(v) }

// Param returns a path parameter.
func (a *Args) Param(key string) string { return a.Params[key] }

// Route describes one operation: either a direct Handler, or a controller
// binding key plus an exported method of that controller with the HandlerFunc
// signature. Controller routes resolve the controller from the per-request
// context, so a request-scoped shadow of the controller binding takes effect.
type Route struct {
	Method  string
	Pattern string

	Handler          HandlerFunc
	ControllerKey    string
	ControllerMethod string

	// Params is populated on the matched copy handed to the pipeline.
	Params map[string]string
}

func (r *Route) String() string {
	return r.Method + " " + r.Pattern
}

// RouteNotFoundError is the failure find-route reports for an unmatched
// request; the reject action maps it to a 404.
type RouteNotFoundError struct {
	Method string
	Path   string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("rest: no route for %s %s", e.Method, e.Path)
}

// ── Route table ───────────────────────────────────────────────────────────────

// RouteTable is the server's registry of routes, backed by chi's routing tree
// for pattern matching. It is the concrete RouteSource behind the find-route
// action's narrow contract; the pipeline never sees chi.
type RouteTable struct {
	mu     sync.RWMutex
	mux    *chi.Mux
	routes map[string]*Route
}

func NewRouteTable() *RouteTable {
	return &RouteTable{
		mux:    chi.NewRouter(),
		routes: make(map[string]*Route),
	}
}

// Add registers a route. Patterns use chi syntax ("/users/{id}").
func (t *RouteTable) Add(r *Route) error {
	if r.Handler == nil && r.ControllerKey == "" {
		return fmt.Errorf("rest: route %s has neither handler nor controller", r)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// chi needs a handler per node; matching never invokes it.
	t.mux.Method(r.Method, r.Pattern, http.NotFoundHandler())
	t.routes[r.String()] = r
	return nil
}

// Match locates the route for method+path and returns a copy carrying the
// extracted path parameters.
func (t *RouteTable) Match(method, path string) (*Route, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, method, path) {
		return nil, &RouteNotFoundError{Method: method, Path: path}
	}
	r, ok := t.routes[method+" "+rctx.RoutePattern()]
	if !ok {
		return nil, &RouteNotFoundError{Method: method, Path: path}
	}

	matched := *r
	matched.Params = make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" {
			continue
		}
		matched.Params[k] = rctx.URLParams.Values[i]
	}
	return &matched, nil
}
