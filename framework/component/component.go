package component

import (
	dicontext "github.com/km-arc/go-loopback/framework/context"
)

// ── Component interface ───────────────────────────────────────────────────────

// Component is a bundle of controllers and providers mounted into a Context
// as a unit — the analog of a LoopBack component class.
//
// Every component must implement Controllers() and Providers(); embed Base
// and only override what you contribute.
//
//	type GreetingComponent struct{ component.Base }
//
//	func (c *GreetingComponent) Providers() map[string]component.ProviderClass {
//	    return map[string]component.ProviderClass{
//	        "greeting.message": {New: newMessageProvider},
//	    }
//	}
type Component interface {
	// Controllers returns controller bindings to register with the owning
	// application's controller registry.
	Controllers() []ControllerRef

	// Providers returns provider classes keyed by the binding key they are
	// mounted under. Keys should carry the component's prefix
	// ("greeting.message", not "message") — the container does not enforce
	// this, and an unprefixed key silently shadows a same-level key from a
	// component mounted earlier.
	Providers() map[string]ProviderClass
}

// ControllerRef names a controller and carries the class binding that
// constructs it.
type ControllerRef struct {
	Key     string
	Binding *dicontext.Binding
}

// RepositoryRef names an application-wide data-access binding contributed by
// a component.
type RepositoryRef struct {
	Key     string
	Binding *dicontext.Binding
}

// ProviderClass describes one provider contribution: a constructor building
// the Provider from injected deps, plus the scope its value is cached under.
type ProviderClass struct {
	New   func(deps ...any) (dicontext.Provider, error)
	Deps  []dicontext.Dep
	Scope dicontext.Scope
}

// ContributesRepositories is the capability a component implements to have
// its repositories registered on the application's root context by the
// repository mount hook. This is an explicit extension point — mounting
// itself knows nothing about repositories.
type ContributesRepositories interface {
	Repositories() []RepositoryRef
}

// ── Base ──────────────────────────────────────────────────────────────────────

// Base is an embeddable no-op Component. Embed it and override the methods
// your component actually contributes.
type Base struct{}

func (Base) Controllers() []ControllerRef       { return nil }
func (Base) Providers() map[string]ProviderClass { return nil }

// ── External collaborators ────────────────────────────────────────────────────

// ControllerRegistry is the narrow contract mounting uses to hand controllers
// to the owning application. Route wiring is the transport layer's business.
type ControllerRegistry interface {
	RegisterController(ref ControllerRef) error
}
