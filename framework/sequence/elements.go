package sequence

// Element keys: the well-known per-request bindings actions communicate
// through. Each is written by exactly one built-in action and read by later
// ones through deferred getters.
const (
	// KeyRequest and KeyResponse carry the transport's request/response
	// objects, opaque to this package. The owning server binds them when the
	// request context is created.
	KeyRequest  = "sequence.request"
	KeyResponse = "sequence.response"

	// KeyRequestID carries the unit-of-work id used in logs.
	KeyRequestID = "sequence.request-id"

	// KeyRoute is written by find-route.
	KeyRoute = "sequence.route"
	// KeyArgs is written by parse-args.
	KeyArgs = "sequence.args"
	// KeyResult is written by invoke.
	KeyResult = "sequence.result"
	// KeyError is written by the engine before the reject action runs.
	KeyError = "sequence.error"

	// keyFinished is the terminal-action idempotency flag.
	keyFinished = "sequence.finished"
)

// Action binding keys. The defaults are registered by RegisterDefaults; a
// custom sequence re-binds a key to replace a step, or binds new keys and
// lists them in its action order.
const (
	KeyFindRoute = "sequence.actions.find-route"
	KeyParseArgs = "sequence.actions.parse-args"
	KeyInvoke    = "sequence.actions.invoke"
	KeySend      = "sequence.actions.send"
	KeyReject    = "sequence.actions.reject"

	// KeyHandler is the binding the server resolves per request to run the
	// pipeline.
	KeyHandler = "sequence.handler"
)

// Collaborator binding keys: the narrow contracts the built-in actions
// consume. The transport layer binds its implementations under these.
const (
	KeyRouteFinder    = "sequence.route-finder"
	KeyArgsParser     = "sequence.args-parser"
	KeyInvoker        = "sequence.invoker"
	KeyResponseWriter = "sequence.response-writer"
)

// State labels one unit of work's position in the pipeline.
type State int

const (
	StateCreated State = iota
	StateRouteResolved
	StateArgsParsed
	StateInvoked
	StateResponded
	StateErrored
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRouteResolved:
		return "route-resolved"
	case StateArgsParsed:
		return "args-parsed"
	case StateInvoked:
		return "invoked"
	case StateResponded:
		return "responded"
	case StateErrored:
		return "errored"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}
