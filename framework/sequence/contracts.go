package sequence

import gocontext "context"

// The transport-facing contracts. Request, response, route, args and result
// values are opaque here — the transport binds implementations of these four
// interfaces and the built-in actions drive them.

// RouteFinder locates the route for a request.
type RouteFinder interface {
	FindRoute(ctx gocontext.Context, request any) (route any, err error)
}

// ArgsParser produces the invocation arguments for a matched route.
type ArgsParser interface {
	ParseArgs(ctx gocontext.Context, request, route any) (args any, err error)
}

// Invoker runs the routed operation with parsed args and returns its result.
type Invoker interface {
	Invoke(ctx gocontext.Context, route, args any) (result any, err error)
}

// ResponseWriter finalizes the unit of work: Send writes a success result,
// Reject writes the failure representation for err. The pipeline guarantees
// exactly one of the two runs once per unit of work.
type ResponseWriter interface {
	Send(ctx gocontext.Context, response, result any) error
	Reject(ctx gocontext.Context, response any, err error) error
}
