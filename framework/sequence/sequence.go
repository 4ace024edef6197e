package sequence

import (
	gocontext "context"
	"fmt"

	"go.uber.org/zap"

	dicontext "github.com/km-arc/go-loopback/framework/context"
)

// ── Action & Handler ──────────────────────────────────────────────────────────

// Action is one named step of the pipeline. Actions are ordinary class
// bindings resolved fresh from the per-request context before any step runs,
// so they may hold request-scoped state; everything they read from or write
// to the request context goes through dependency slots — direct for values
// that exist at wiring time, getter/setter handles for elements produced by
// sibling actions.
type Action interface {
	Invoke(ctx gocontext.Context) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx gocontext.Context) error

func (f ActionFunc) Invoke(ctx gocontext.Context) error { return f(ctx) }

// Handler runs one unit of work against its request context. The server
// resolves a Handler from each request context under KeyHandler.
type Handler interface {
	Handle(ctx gocontext.Context, rc *dicontext.Context) error
}

// ── Default sequence ──────────────────────────────────────────────────────────

// Default is the built-in pipeline: find-route, parse-args, invoke, send,
// with any error routed to reject. A custom sequence either re-binds
// individual action keys, or constructs a Default with extra action keys
// spliced into the order.
type Default struct {
	log *zap.Logger

	// Actions is the document order of the unit of work, excluding reject.
	// The last entry is expected to be the terminal send action.
	Actions []string

	state State
}

// NewDefault creates the standard pipeline.
func NewDefault(log *zap.Logger) *Default {
	return &Default{
		log:     log,
		Actions: []string{KeyFindRoute, KeyParseArgs, KeyInvoke, KeySend},
	}
}

// InsertBefore splices an action key into the order ahead of anchor.
//
//	seq.InsertBefore(sequence.KeyParseArgs, "auth.actions.authenticate")
func (s *Default) InsertBefore(anchor, key string) {
	for i, k := range s.Actions {
		if k == anchor {
			s.Actions = append(s.Actions[:i], append([]string{key}, s.Actions[i:]...)...)
			return
		}
	}
	s.Actions = append(s.Actions, key)
}

// Handle executes the pipeline for one unit of work.
//
// Phase 1 resolves every action in document order from the request context.
// All direct dependencies are satisfied here, before anything runs, so a
// direct dependency cycle between actions is rejected at wiring time — the
// only legal way for an action to reference a not-yet-produced element is a
// deferred handle. Phase 2 invokes the actions in order; any error, including
// a wiring error, transitions to the reject action instead of propagating to
// the transport raw.
func (s *Default) Handle(ctx gocontext.Context, rc *dicontext.Context) error {
	s.state = StateCreated

	acts, err := s.wire(ctx, rc)
	if err != nil {
		return s.reject(ctx, rc, err)
	}

	for i, key := range s.Actions {
		if key == KeySend {
			if err := markTerminal(rc, KeySend); err != nil {
				return err
			}
			// Once send holds the terminal mark, a failure inside it cannot
			// be routed to reject without risking a double-written response;
			// it surfaces to the transport's logger instead.
			if err := acts[i].Invoke(ctx); err != nil {
				s.state = StateErrored
				return fmt.Errorf("sequence: send failed after terminal mark: %w", err)
			}
			s.advance(rc, key)
			continue
		}
		if err := acts[i].Invoke(ctx); err != nil {
			s.state = StateErrored
			return s.reject(ctx, rc, err)
		}
		s.advance(rc, key)
	}
	return nil
}

// wire is phase 1: resolve all actions before any executes.
func (s *Default) wire(ctx gocontext.Context, rc *dicontext.Context) ([]Action, error) {
	acts := make([]Action, len(s.Actions))
	for i, key := range s.Actions {
		a, err := dicontext.Resolve[Action](ctx, rc, key)
		if err != nil {
			return nil, fmt.Errorf("sequence: wiring action [%s]: %w", key, err)
		}
		acts[i] = a
	}
	return acts, nil
}

// advance moves the state machine past a completed built-in step.
func (s *Default) advance(rc *dicontext.Context, key string) {
	switch key {
	case KeyFindRoute:
		s.state = StateRouteResolved
	case KeyParseArgs:
		s.state = StateArgsParsed
	case KeyInvoke:
		s.state = StateInvoked
	case KeySend:
		s.state = StateResponded
	default:
		return
	}
	if ce := s.log.Check(zap.DebugLevel, "sequence state"); ce != nil {
		ce.Write(zap.String("context", rc.Name()), zap.Stringer("state", s.state))
	}
}

// reject routes err to the reject action. The error is bound under KeyError
// so the action reads it through its getter handle.
func (s *Default) reject(ctx gocontext.Context, rc *dicontext.Context, cause error) error {
	if err := markTerminal(rc, KeyReject); err != nil {
		return err
	}
	if err := rc.Bind(dicontext.Constant(KeyError, cause)); err != nil {
		return err
	}
	act, err := dicontext.Resolve[Action](ctx, rc, KeyReject)
	if err != nil {
		return fmt.Errorf("sequence: wiring reject action: %w", err)
	}
	if err := act.Invoke(ctx); err != nil {
		return fmt.Errorf("sequence: reject action failed: %w", err)
	}
	s.state = StateRejected
	s.log.Warn("unit of work rejected",
		zap.String("context", rc.Name()),
		zap.Error(cause))
	return nil
}

// markTerminal flips the per-request idempotency flag guarding the terminal
// actions. A second terminal invocation in the same unit of work fails with
// TerminationError instead of double-writing the response.
func markTerminal(rc *dicontext.Context, action string) error {
	if rc.ContainsLocal(keyFinished) {
		finished := action
		if v, err := rc.Get(gocontext.Background(), keyFinished); err == nil {
			if prev, ok := v.(string); ok {
				finished = prev
			}
		}
		return &TerminationError{Action: action, Finished: finished}
	}
	return rc.Bind(dicontext.Constant(keyFinished, action))
}

// Terminate exposes the terminal guard to custom sequences that invoke send
// or reject through their own control flow.
func Terminate(rc *dicontext.Context, action string) error {
	return markTerminal(rc, action)
}
