package container_test

import (
	"context"
	"errors"
	"testing"

	"github.com/km-arc/go-beans/framework/container"
)

// ── stub providers ────────────────────────────────────────────────────────────

type greetingProvider struct {
	container.BaseProvider
	listed     int
	bootCalled bool
}

func (p *greetingProvider) Definitions() ([]*container.Definition, error) {
	p.listed++
	return []*container.Definition{greeterDef("greeting", "hello")}, nil
}

func (p *greetingProvider) Boot(ctx context.Context, c *container.Container) error {
	g, err := container.Resolve[Greeter](ctx, c)
	if err != nil {
		return err
	}
	p.bootCalled = g.Greet() == "hello"
	return nil
}

// multiProvider registers several beans and records termination.
type multiProvider struct {
	container.BaseProvider
	rec *recorder
}

func (p *multiProvider) Definitions() ([]*container.Definition, error) {
	return []*container.Definition{
		container.Instance("alpha", "α"),
		container.Instance("beta", "β", container.Qualifier("b")),
	}, nil
}

func (p *multiProvider) Terminate(context.Context, *container.Container) error {
	p.rec.add("terminate multi")
	return nil
}

type failingBootProvider struct{ container.BaseProvider }

func (p *failingBootProvider) Boot(context.Context, *container.Container) error {
	return errors.New("no database")
}

type brokenProvider struct{ container.BaseProvider }

func (p *brokenProvider) Definitions() ([]*container.Definition, error) {
	return nil, errors.New("cannot read manifest")
}

// ── ProviderRegistry ──────────────────────────────────────────────────────────

func TestRegistry_Register_LoadsDefinitions(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &greetingProvider{}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !c.ContainsBean("greeting") {
		t.Error("provider definitions should be registered immediately")
	}
}

func TestRegistry_Boot_StartsContainerThenBootsProviders(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &greetingProvider{}
	_ = reg.Register(p)
	if p.bootCalled {
		t.Error("Boot() should NOT be called before registry.Boot()")
	}

	if err := reg.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if !p.bootCalled {
		t.Error("Boot() should resolve beans of the started container")
	}
}

func TestRegistry_Boot_IdempotentCallsAreIgnored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&greetingProvider{})

	if err := reg.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := reg.Boot(context.Background()); err != nil {
		t.Errorf("second Boot should be a no-op, got %v", err)
	}
	if !reg.Booted() {
		t.Error("Booted() should be true after Boot()")
	}
}

func TestRegistry_Booted_FalseBeforeBoot(t *testing.T) {
	reg := container.NewProviderRegistry(container.New())
	if reg.Booted() {
		t.Error("Booted() should be false before Boot()")
	}
}

func TestRegistry_DuplicateRegister_Ignored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &greetingProvider{}
	_ = reg.Register(p)
	if err := reg.Register(p); err != nil {
		t.Errorf("second Register of the same provider should be ignored, got %v", err)
	}
	if p.listed != 1 {
		t.Errorf("Definitions() called %d times, want 1", p.listed)
	}
}

func TestRegistry_RegisterAfterBoot_Fails(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Boot(context.Background())

	if err := reg.Register(&greetingProvider{}); !errors.Is(err, container.ErrAlreadyStarted) {
		t.Errorf("Register after Boot: got %v, want ErrAlreadyStarted", err)
	}
}

func TestRegistry_BrokenDefinitions(t *testing.T) {
	reg := container.NewProviderRegistry(container.New())
	if err := reg.Register(&brokenProvider{}); err == nil {
		t.Error("Register should surface the provider's listing error")
	}
	if len(reg.Providers()) != 0 {
		t.Error("a provider that failed to load should not be kept")
	}
}

func TestRegistry_FailingBoot_StopsContainer(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&failingBootProvider{})

	if err := reg.Boot(context.Background()); err == nil {
		t.Fatal("Boot should fail")
	}
	if reg.Booted() {
		t.Error("Booted() should be false after a failed Boot")
	}
	if _, err := c.GetBean(context.Background(), "anything"); !errors.Is(err, container.ErrStopped) {
		t.Errorf("container should be stopped, got %v", err)
	}
}

// ── Multiple providers ────────────────────────────────────────────────────────

func TestRegistry_MultipleProviders_AllServicesResolvable(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&multiProvider{rec: &recorder{}})
	_ = reg.Register(&greetingProvider{})
	if err := reg.Boot(ctx); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if got, _ := container.ResolveNamed[string](ctx, c, "alpha"); got != "α" {
		t.Errorf("alpha: got %q, want 'α'", got)
	}
	if got, _ := container.Resolve[string](ctx, c, "b"); got != "β" {
		t.Errorf("beta: got %q, want 'β'", got)
	}
	if len(reg.Providers()) != 2 {
		t.Errorf("Providers(): got %d, want 2", len(reg.Providers()))
	}
}

func TestRegistry_Shutdown_TerminatesThenStops(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&multiProvider{rec: rec})
	_ = reg.Boot(ctx)

	if err := reg.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := rec.list(); len(got) != 1 || got[0] != "terminate multi" {
		t.Errorf("terminate events: got %v", got)
	}
	if _, err := c.GetBean(ctx, "alpha"); !errors.Is(err, container.ErrStopped) {
		t.Errorf("container should be stopped, got %v", err)
	}
}

// ── BaseProvider defaults ─────────────────────────────────────────────────────

func TestBaseProvider_Defaults(t *testing.T) {
	var p container.BaseProvider

	if err := p.Boot(context.Background(), container.New()); err != nil {
		t.Errorf("BaseProvider.Boot should be a no-op, got %v", err)
	}
	defs, err := p.Definitions()
	if err != nil || len(defs) != 0 {
		t.Error("BaseProvider.Definitions() should return nothing")
	}
}
