package rest

import (
	gocontext "context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	dicontext "github.com/km-arc/go-loopback/framework/context"
)

// The sequence collaborator implementations the server binds under the
// sequence.Key* contract keys. The pipeline's built-in actions drive these;
// nothing here knows about action ordering.

// HTTPError lets an operation choose its response status; anything else
// rejects as a 500 (or 404 for an unmatched route).
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rest: %d %s", e.Status, e.Message)
}

// ── RouteFinder ───────────────────────────────────────────────────────────────

type routeFinder struct {
	table *RouteTable
}

func (f *routeFinder) FindRoute(_ gocontext.Context, request any) (any, error) {
	req, ok := request.(*Request)
	if !ok {
		return nil, fmt.Errorf("rest: find-route got %T, want *rest.Request", request)
	}
	return f.table.Match(req.Method(), req.Path())
}

// ── ArgsParser ────────────────────────────────────────────────────────────────

type argsParser struct{}

func (argsParser) ParseArgs(_ gocontext.Context, request, route any) (any, error) {
	req, ok := request.(*Request)
	if !ok {
		return nil, fmt.Errorf("rest: parse-args got request %T", request)
	}
	r, ok := route.(*Route)
	if !ok {
		return nil, fmt.Errorf("rest: parse-args got route %T", route)
	}
	return &Args{Params: r.Params, Request: req}, nil
}

// ── Invoker ───────────────────────────────────────────────────────────────────

// invoker runs the matched operation. Controller routes resolve the
// controller from the request context, reached through a deferred getter for
// the context's self-binding — the invoker itself is wired before the request
// exists.
type invoker struct {
	requestContext dicontext.Getter
}

func newInvoker(deps ...any) (any, error) {
	return &invoker{requestContext: deps[0].(dicontext.Getter)}, nil
}

func (inv *invoker) Invoke(ctx gocontext.Context, route, args any) (any, error) {
	r, ok := route.(*Route)
	if !ok {
		return nil, fmt.Errorf("rest: invoke got route %T", route)
	}
	a, ok := args.(*Args)
	if !ok {
		return nil, fmt.Errorf("rest: invoke got args %T", args)
	}

	if r.Handler != nil {
		return r.Handler(ctx, a)
	}

	rcAny, err := inv.requestContext(ctx)
	if err != nil {
		return nil, err
	}
	rc := rcAny.(*dicontext.Context)
	ctrl, err := rc.Get(ctx, r.ControllerKey)
	if err != nil {
		return nil, err
	}
	return callMethod(ctx, ctrl, r.ControllerMethod, a)
}

// callMethod invokes an exported controller method with the HandlerFunc
// signature: func(context.Context, *rest.Args) (any, error).
func callMethod(ctx gocontext.Context, ctrl any, name string, args *Args) (any, error) {
	m := reflect.ValueOf(ctrl).MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("rest: controller %T has no method %s", ctrl, name)
	}
	fn, ok := m.Interface().(func(gocontext.Context, *Args) (any, error))
	if !ok {
		return nil, fmt.Errorf("rest: method %T.%s has signature %s, want func(context.Context, *rest.Args) (any, error)",
			ctrl, name, m.Type())
	}
	return fn(ctx, args)
}

// ── ResponseWriter ────────────────────────────────────────────────────────────

type responseWriter struct {
	log *zap.Logger
}

func (w *responseWriter) Send(_ gocontext.Context, response, result any) error {
	res, ok := response.(*Response)
	if !ok {
		return fmt.Errorf("rest: send got response %T", response)
	}
	if result == nil {
		res.NoContent()
		return nil
	}
	res.Success(result)
	return nil
}

func (w *responseWriter) Reject(_ gocontext.Context, response any, cause error) error {
	res, ok := response.(*Response)
	if !ok {
		return fmt.Errorf("rest: reject got response %T", response)
	}

	var nf *RouteNotFoundError
	var he *HTTPError
	switch {
	case errors.As(cause, &nf):
		res.NotFound(nf.Error())
	case errors.As(cause, &he):
		res.Error(he.Status, he.Message)
	default:
		w.log.Error("request failed", zap.Error(cause))
		res.ServerError("")
	}
	return nil
}
