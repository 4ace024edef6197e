package rest

import (
	gocontext "context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/km-arc/go-loopback/framework/config"
	dicontext "github.com/km-arc/go-loopback/framework/context"
	"github.com/km-arc/go-loopback/framework/sequence"
)

// KeyRequestContext is the per-request context's self-binding, the same trick
// our container plays binding itself under "container": collaborators wired
// before the request exists reach the request scope through a deferred getter
// for this key.
const KeyRequestContext = "rest.request-context"

// Server is the REST transport: it owns a child Context of the application,
// a route table, and the per-request lifecycle. Every incoming request gets
// its own child Context, so concurrent units of work share nothing but the
// server scope above them.
type Server struct {
	name string
	cfg  config.ServerConfig
	log  *zap.Logger

	ctx   *dicontext.Context
	table *RouteTable

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewServer creates a server scoped under parent and wires the pipeline
// collaborators and default sequence actions into the server context. The
// default sequence handler binding (sequence.KeyHandler) can be re-bound on
// Context() to install a custom sequence.
func NewServer(name string, parent *dicontext.Context, cfg config.ServerConfig, log *zap.Logger) (*Server, error) {
	s := &Server{
		name:   name,
		cfg:    cfg,
		log:    log.Named("rest." + name),
		ctx:    parent.NewChild("server." + name),
		table:  NewRouteTable(),
		stopCh: make(chan struct{}),
	}

	bindings := []*dicontext.Binding{
		dicontext.Constant(sequence.KeyRouteFinder, &routeFinder{table: s.table}),
		dicontext.Constant(sequence.KeyArgsParser, argsParser{}),
		dicontext.Class(sequence.KeyInvoker, newInvoker, dicontext.GetterOf(KeyRequestContext)),
		dicontext.Constant(sequence.KeyResponseWriter, &responseWriter{log: s.log}),
	}
	for _, b := range bindings {
		if err := s.ctx.Bind(b); err != nil {
			return nil, err
		}
	}
	if err := sequence.RegisterDefaults(s.ctx, s.log); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the server's registration name.
func (s *Server) Name() string { return s.name }

// Context returns the server-scoped Context.
func (s *Server) Context() *dicontext.Context { return s.ctx }

// Stopping is closed when Stop begins; background work owned by components
// mounted on this server observes it and winds down cooperatively.
func (s *Server) Stopping() <-chan struct{} { return s.stopCh }

// ── Route registration ────────────────────────────────────────────────────────

// Handle registers a free-standing handler route.
func (s *Server) Handle(method, pattern string, h HandlerFunc) error {
	return s.table.Add(&Route{Method: method, Pattern: pattern, Handler: h})
}

// Route registers a controller route: controllerKey is resolved from the
// request context at invoke time and method must have the HandlerFunc
// signature.
func (s *Server) Route(method, pattern, controllerKey, controllerMethod string) error {
	return s.table.Add(&Route{
		Method:           method,
		Pattern:          pattern,
		ControllerKey:    controllerKey,
		ControllerMethod: controllerMethod,
	})
}

// ── Request lifecycle ─────────────────────────────────────────────────────────

// ServeHTTP runs one unit of work: child Context, element bindings, then the
// sequence handler resolved fresh from that request scope.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	rc := s.ctx.NewChild("request." + id)
	req := NewRequest(r)
	res := NewResponse(w)

	bindings := []*dicontext.Binding{
		dicontext.Constant(sequence.KeyRequest, req),
		dicontext.Constant(sequence.KeyResponse, res),
		dicontext.Constant(sequence.KeyRequestID, id),
		dicontext.Constant(KeyRequestContext, rc),
	}
	for _, b := range bindings {
		if err := rc.Bind(b); err != nil {
			s.log.Error("request context setup failed", zap.String("request", id), zap.Error(err))
			res.ServerError("")
			return
		}
	}

	h, err := dicontext.Resolve[sequence.Handler](r.Context(), rc, sequence.KeyHandler)
	if err != nil {
		s.log.Error("resolving sequence handler failed", zap.String("request", id), zap.Error(err))
		res.ServerError("")
		return
	}

	if err := h.Handle(r.Context(), rc); err != nil {
		// The pipeline only returns what it could not route to reject.
		s.log.Error("sequence failed",
			zap.String("request", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if !res.Written() {
			res.ServerError("")
		}
	}
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Start binds the listener and serves in the background; it returns once the
// listener is accepting.
func (s *Server) Start(_ gocontext.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return errors.New("rest: server already started")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, s.cfg.Port))
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpSrv = &http.Server{Handler: s}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", zap.Error(err))
		}
	}()

	s.log.Info("server started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop signals owned background work and drains in-flight requests.
func (s *Server) Stop(ctx gocontext.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.log.Info("server stopping")
	return srv.Shutdown(ctx)
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
