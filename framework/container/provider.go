package container

import (
	"context"
	"errors"
	"fmt"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the definitions of one feature.
//
// Definitions is read before the container starts. Boot is called after Start,
// so every bean can be resolved inside it.
//
//	type OrderProvider struct{ container.BaseProvider }
//
//	func (p *OrderProvider) Definitions() ([]*container.Definition, error) {
//	    return []*container.Definition{
//	        container.Define[MemberRepository]("memberRepository",
//	            container.Constructor(NewMemoryMemberRepository)),
//	        container.Define[OrderService]("orderService",
//	            container.Constructor(NewOrderService)),
//	    }, nil
//	}
//
//	func (p *OrderProvider) Boot(ctx context.Context, c *container.Container) error {
//	    svc, err := container.Resolve[OrderService](ctx, c)
//	    ...
//	}
type ServiceProvider interface {
	DefinitionSource

	// Boot runs after the container has started.
	Boot(ctx context.Context, c *Container) error
}

// Terminator is implemented by providers that need a callback before the
// container stops.
type Terminator interface {
	Terminate(ctx context.Context, c *Container) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no definitions and a no-op Boot.
// Embed it and override what you need.
type BaseProvider struct{}

func (p *BaseProvider) Definitions() ([]*Definition, error)       { return nil, nil }
func (p *BaseProvider) Boot(_ context.Context, _ *Container) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry loads providers into a container and drives their boot and
// shutdown around the container's own Start and Stop.
type ProviderRegistry struct {
	app        *Container
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register loads the provider's definitions. Registering the same provider
// twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if r.booted {
		return ErrAlreadyStarted
	}
	if err := r.app.Load(provider); err != nil {
		return fmt.Errorf("provider %T: %w", provider, err)
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)
	return nil
}

// Boot starts the container and then boots every provider in registration
// order. A failing provider boot stops the container again.
func (r *ProviderRegistry) Boot(ctx context.Context) error {
	if r.booted {
		return nil
	}
	if err := r.app.Start(ctx); err != nil {
		return err
	}
	for _, p := range r.providers {
		if err := p.Boot(ctx, r.app); err != nil {
			err = fmt.Errorf("booting provider %T: %w", p, err)
			return errors.Join(err, r.app.Stop(ctx))
		}
	}
	r.booted = true
	return nil
}

// Shutdown terminates providers in reverse registration order and stops the
// container. Every step runs; failures are joined.
func (r *ProviderRegistry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(r.providers) - 1; i >= 0; i-- {
		t, ok := r.providers[i].(Terminator)
		if !ok {
			continue
		}
		if err := t.Terminate(ctx, r.app); err != nil {
			errs = append(errs, fmt.Errorf("terminating provider %T: %w", r.providers[i], err))
		}
	}
	errs = append(errs, r.app.Stop(ctx))
	r.booted = false
	return errors.Join(errs...)
}

// Booted returns true once Boot has succeeded.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }
