package main

import (
	gocontext "context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-loopback/framework/app"
	"github.com/km-arc/go-loopback/framework/component"
	"github.com/km-arc/go-loopback/framework/config"
	dicontext "github.com/km-arc/go-loopback/framework/context"
	"github.com/km-arc/go-loopback/framework/logging"
	"github.com/km-arc/go-loopback/framework/rest"
	"github.com/km-arc/go-loopback/framework/sequence"
)

// ── Greeting component ────────────────────────────────────────────────────────

// greetingRepository is the component's data-access object, contributed to
// the root context so it is visible application-wide.
type greetingRepository struct {
	greetings map[string]string
}

func newGreetingRepository() *greetingRepository {
	return &greetingRepository{greetings: map[string]string{
		"en": "Hello",
		"fr": "Bonjour",
		"ja": "こんにちは",
	}}
}

func (r *greetingRepository) Find(lang string) (string, bool) {
	g, ok := r.greetings[lang]
	return g, ok
}

// GreetingController handles the /greet routes. It is resolved from the
// per-request context, so a request-scoped shadow can replace it.
type GreetingController struct {
	repo *greetingRepository
	motd string
}

func newGreetingController(deps ...any) (any, error) {
	return &GreetingController{
		repo: deps[0].(*greetingRepository),
		motd: deps[1].(string),
	}, nil
}

func (c *GreetingController) Greet(_ gocontext.Context, args *rest.Args) (any, error) {
	name := args.Param("name")
	lang := args.Request.Query("lang", "en")
	greeting, ok := c.repo.Find(lang)
	if !ok {
		return nil, &rest.HTTPError{Status: 400, Message: "unsupported language: " + lang}
	}
	return map[string]any{
		"greeting": greeting + ", " + name + "!",
		"motd":     c.motd,
	}, nil
}

// GreetingComponent bundles the controller, a message-of-the-day provider,
// and the repository contribution.
type GreetingComponent struct {
	component.Base
}

func (GreetingComponent) Providers() map[string]component.ProviderClass {
	return map[string]component.ProviderClass{
		// Simulates a slow upstream lookup: the provider blocks only the
		// resolution chain awaiting it, and its value is cached once resolved.
		"greeting.motd": {
			Scope: dicontext.ScopeSingleton,
			New: func(...any) (dicontext.Provider, error) {
				return dicontext.ProviderFunc(func(ctx gocontext.Context) (any, error) {
					select {
					case <-time.After(50 * time.Millisecond):
						return "have a pleasant unit of work", nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}), nil
			},
		},
	}
}

func (GreetingComponent) Controllers() []component.ControllerRef {
	return []component.ControllerRef{{
		Key: "greeting.controller",
		Binding: dicontext.Class("greeting.controller", newGreetingController,
			dicontext.On("repositories.greetings"),
			dicontext.On("greeting.motd")),
	}}
}

func (GreetingComponent) Repositories() []component.RepositoryRef {
	return []component.RepositoryRef{{
		Key:     "repositories.greetings",
		Binding: dicontext.Constant("repositories.greetings", newGreetingRepository()),
	}}
}

// ── Custom sequence action ────────────────────────────────────────────────────

// auditAction logs each unit of work's result before it is sent. It reads
// pipeline elements through deferred getters: at wiring time neither the
// request id nor the result exists yet.
type auditAction struct {
	log       *zap.Logger
	requestID dicontext.Getter
	result    dicontext.Getter
}

func newAuditAction(deps ...any) (any, error) {
	return &auditAction{
		log:       deps[0].(*zap.Logger),
		requestID: deps[1].(dicontext.Getter),
		result:    deps[2].(dicontext.Getter),
	}, nil
}

func (a *auditAction) Invoke(ctx gocontext.Context) error {
	id, err := a.requestID(ctx)
	if err != nil {
		return err
	}
	result, err := a.result(ctx)
	if err != nil {
		return err
	}
	a.log.Info("audit", zap.Any("request", id), zap.Any("result", result))
	return nil
}

func installAuditSequence(server *rest.Server, logger *zap.Logger) error {
	if err := server.Context().Bind(dicontext.Class("audit.actions.log-result", newAuditAction,
		dicontext.On("core.logger"),
		dicontext.GetterOf(sequence.KeyRequestID),
		dicontext.GetterOf(sequence.KeyResult))); err != nil {
		return err
	}
	return server.Context().Bind(dicontext.Class(sequence.KeyHandler, func(...any) (any, error) {
		seq := sequence.NewDefault(logger)
		seq.InsertBefore(sequence.KeySend, "audit.actions.log-result")
		return seq, nil
	}))
}

// ── Bootstrap ─────────────────────────────────────────────────────────────────

func main() {
	cfg := config.Load() // reads .env when present
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	application := app.New(cfg, logger)
	if err := application.Mount(GreetingComponent{}); err != nil {
		logger.Fatal("mount failed", zap.Error(err))
	}

	server, err := application.RestServer("rest")
	if err != nil {
		logger.Fatal("server setup failed", zap.Error(err))
	}
	if err := server.Route("GET", "/greet/{name}", "greeting.controller", "Greet"); err != nil {
		logger.Fatal("route setup failed", zap.Error(err))
	}
	if err := server.Handle("GET", "/health", func(gocontext.Context, *rest.Args) (any, error) {
		return map[string]string{"status": "up"}, nil
	}); err != nil {
		logger.Fatal("route setup failed", zap.Error(err))
	}
	if err := installAuditSequence(server, logger); err != nil {
		logger.Fatal("sequence setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(gocontext.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		logger.Fatal("application failed", zap.Error(err))
	}
}
