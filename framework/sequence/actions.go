package sequence

import (
	gocontext "context"
	"fmt"

	"go.uber.org/zap"

	dicontext "github.com/km-arc/go-loopback/framework/context"
)

// ── Built-in actions ──────────────────────────────────────────────────────────
//
// Each built-in action injects its transport collaborator directly (those
// bindings exist before the pipeline runs) and reaches pipeline elements
// through deferred handles: at wiring time none of the elements exist yet,
// and direct injection of KeyRoute into parse-args would either fail or
// demand the actions run out of order.

// FindRouteAction matches the request to a route and publishes it.
type FindRouteAction struct {
	finder   RouteFinder
	request  dicontext.Getter
	setRoute dicontext.Setter
}

func NewFindRouteAction(deps ...any) (any, error) {
	return &FindRouteAction{
		finder:   deps[0].(RouteFinder),
		request:  deps[1].(dicontext.Getter),
		setRoute: deps[2].(dicontext.Setter),
	}, nil
}

func (a *FindRouteAction) Invoke(ctx gocontext.Context) error {
	req, err := a.request(ctx)
	if err != nil {
		return err
	}
	route, err := a.finder.FindRoute(ctx, req)
	if err != nil {
		return err
	}
	return a.setRoute(route)
}

// ParseArgsAction turns the matched route and raw request into invocation
// arguments.
type ParseArgsAction struct {
	parser  ArgsParser
	request dicontext.Getter
	route   dicontext.Getter
	setArgs dicontext.Setter
}

func NewParseArgsAction(deps ...any) (any, error) {
	return &ParseArgsAction{
		parser:  deps[0].(ArgsParser),
		request: deps[1].(dicontext.Getter),
		route:   deps[2].(dicontext.Getter),
		setArgs: deps[3].(dicontext.Setter),
	}, nil
}

func (a *ParseArgsAction) Invoke(ctx gocontext.Context) error {
	req, err := a.request(ctx)
	if err != nil {
		return err
	}
	route, err := a.route(ctx)
	if err != nil {
		return err
	}
	args, err := a.parser.ParseArgs(ctx, req, route)
	if err != nil {
		return err
	}
	return a.setArgs(args)
}

// InvokeAction runs the routed operation and publishes its result.
type InvokeAction struct {
	invoker   Invoker
	route     dicontext.Getter
	args      dicontext.Getter
	setResult dicontext.Setter
}

func NewInvokeAction(deps ...any) (any, error) {
	return &InvokeAction{
		invoker:   deps[0].(Invoker),
		route:     deps[1].(dicontext.Getter),
		args:      deps[2].(dicontext.Getter),
		setResult: deps[3].(dicontext.Setter),
	}, nil
}

func (a *InvokeAction) Invoke(ctx gocontext.Context) error {
	route, err := a.route(ctx)
	if err != nil {
		return err
	}
	args, err := a.args(ctx)
	if err != nil {
		return err
	}
	result, err := a.invoker.Invoke(ctx, route, args)
	if err != nil {
		return err
	}
	return a.setResult(result)
}

// SendAction writes the result to the transport response.
type SendAction struct {
	writer   ResponseWriter
	response dicontext.Getter
	result   dicontext.Getter
}

func NewSendAction(deps ...any) (any, error) {
	return &SendAction{
		writer:   deps[0].(ResponseWriter),
		response: deps[1].(dicontext.Getter),
		result:   deps[2].(dicontext.Getter),
	}, nil
}

func (a *SendAction) Invoke(ctx gocontext.Context) error {
	res, err := a.response(ctx)
	if err != nil {
		return err
	}
	result, err := a.result(ctx)
	if err != nil {
		return err
	}
	return a.writer.Send(ctx, res, result)
}

// RejectAction writes the failure representation for the pipeline error.
type RejectAction struct {
	writer   ResponseWriter
	log      *zap.Logger
	response dicontext.Getter
	cause    dicontext.Getter
}

func NewRejectAction(deps ...any) (any, error) {
	return &RejectAction{
		writer:   deps[0].(ResponseWriter),
		log:      deps[1].(*zap.Logger),
		response: deps[2].(dicontext.Getter),
		cause:    deps[3].(dicontext.Getter),
	}, nil
}

func (a *RejectAction) Invoke(ctx gocontext.Context) error {
	res, err := a.response(ctx)
	if err != nil {
		return err
	}
	v, err := a.cause(ctx)
	if err != nil {
		return err
	}
	cause, ok := v.(error)
	if !ok {
		cause = fmt.Errorf("sequence: non-error rejection value %v", v)
	}
	a.log.Debug("writing rejection", zap.Error(cause))
	return a.writer.Reject(ctx, res, cause)
}

// ── Registration ──────────────────────────────────────────────────────────────

// RegisterDefaults binds the default handler and the five built-in actions on
// ctx, typically a server context. Actions stay transient: each unit of work
// wires its own instances from its request context, so handle slots read and
// write that request's scope.
func RegisterDefaults(ctx *dicontext.Context, log *zap.Logger) error {
	bindings := []*dicontext.Binding{
		dicontext.Class(KeyHandler, func(...any) (any, error) {
			return NewDefault(log), nil
		}),
		dicontext.Class(KeyFindRoute, NewFindRouteAction,
			dicontext.On(KeyRouteFinder),
			dicontext.GetterOf(KeyRequest),
			dicontext.SetterOf(KeyRoute)),
		dicontext.Class(KeyParseArgs, NewParseArgsAction,
			dicontext.On(KeyArgsParser),
			dicontext.GetterOf(KeyRequest),
			dicontext.GetterOf(KeyRoute),
			dicontext.SetterOf(KeyArgs)),
		dicontext.Class(KeyInvoke, NewInvokeAction,
			dicontext.On(KeyInvoker),
			dicontext.GetterOf(KeyRoute),
			dicontext.GetterOf(KeyArgs),
			dicontext.SetterOf(KeyResult)),
		dicontext.Class(KeySend, NewSendAction,
			dicontext.On(KeyResponseWriter),
			dicontext.GetterOf(KeyResponse),
			dicontext.GetterOf(KeyResult)),
		dicontext.Class(KeyReject, NewRejectAction,
			dicontext.On(KeyResponseWriter),
			dicontext.On("core.logger"),
			dicontext.GetterOf(KeyResponse),
			dicontext.GetterOf(KeyError)),
	}
	for _, b := range bindings {
		if err := ctx.Bind(b); err != nil {
			return err
		}
	}
	return nil
}
