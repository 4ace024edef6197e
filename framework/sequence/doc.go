// Package sequence provides the ordered, extensible request pipeline that
// turns one incoming request into one response.
//
// # Model
//
// A sequence is a list of named actions executed in document order inside a
// per-request Context. Actions never call each other: each one consumes
// elements earlier actions published into the request scope and publishes its
// own, so splicing a new action in (or replacing a built-in) needs no change
// to its neighbours. The contract keys:
//
//	sequence.request     the transport request, bound by the server
//	sequence.response    the transport response, bound by the server
//	sequence.route       published by find-route
//	sequence.args        published by parse-args
//	sequence.result      published by invoke
//	sequence.error       published when the pipeline rejects
//
// # Default pipeline
//
//	find-route → parse-args → invoke → send
//
// Any action error is routed to the reject action, which writes exactly one
// error response — a request never ends with both a success and an error
// write, and a failing action never leaves the client hanging.
//
// # Wiring
//
// Actions are Class bindings resolved from the request scope, so their
// dependencies go through ordinary injection. All actions are resolved before
// any runs; a direct dependency between two actions that forms a cycle is
// rejected at wiring time. An action that needs an element a later action
// publishes declares a getter slot instead:
//
//	dicontext.Class("sequence.actions.audit", newAuditAction,
//	    dicontext.On("core.logger"),
//	    dicontext.GetterOf(sequence.KeyResult))
//
//	seq.InsertBefore(sequence.KeySend, "sequence.actions.audit")
//
// # Custom sequences
//
// Rebinding sequence.handler on a server's Context replaces the whole
// pipeline. A custom Handler that responds early calls Terminate so the
// built-in terminal actions refuse a second write.
package sequence
