package container

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// ── Options ───────────────────────────────────────────────────────────────────

type options struct {
	log    *zap.Logger
	scopes []Scope
}

// Option configures a Container.
type Option func(*options)

// WithLogger sets the logger used for bean creation, scope boundaries and
// destroy-hook failures. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithScopes registers additional custom scopes next to ScopeRequest.
func WithScopes(scopes ...Scope) Option {
	return func(o *options) { o.scopes = append(o.scopes, scopes...) }
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container owns bean definitions, their instances and their teardown.
//
// Lifecycle:
//
//  1. c := container.New()
//  2. c.Register(...) / c.Load(source)
//  3. c.Start(ctx) validates the graph and builds singletons
//  4. GetBean / Resolve, BeginScope / EndScope per unit of work
//  5. c.Stop(ctx) destroys singletons, dependents first
type Container struct {
	mu sync.RWMutex

	registry  *Registry
	resolver  *resolver
	scopes    *scopeManager
	lifecycle *lifecycle
	log       *zap.Logger

	// bean name → forwarding wrapper, built at registration
	proxies map[string]any

	starting bool // Start is building singletons; c.mu is not held meanwhile
	started  bool
	stopped  bool
}

// New creates an empty container with ScopeRequest registered.
func New(opts ...Option) *Container {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	reg := NewRegistry()
	c := &Container{
		registry: reg,
		resolver: newResolver(reg),
		scopes:   newScopeManager(),
		log:      o.log,
		proxies:  make(map[string]any),
	}
	c.lifecycle = newLifecycle(c, o.log)

	_ = c.scopes.register(ScopeRequest)
	for _, s := range o.scopes {
		if err := c.scopes.register(s); err != nil {
			c.log.Warn("ignoring scope", zap.String("scope", string(s)), zap.Error(err))
		}
	}
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register adds a definition. Names are unique across beans and aliases.
//
//	c.Register(container.Define[MemberRepository]("memberRepository",
//	    container.Constructor(NewMemoryMemberRepository)))
func (c *Container) Register(def *Definition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.mutable(); err != nil {
		return err
	}
	if def != nil && !c.scopes.known(def.scope) {
		return fmt.Errorf("%w: bean %q uses %q", ErrUnknownScope, def.name, def.scope)
	}
	if err := c.registry.Register(def); err != nil {
		return err
	}
	def, _ = c.registry.LookupByName(def.name)
	if def.proxy != nil {
		c.proxies[def.name] = c.buildProxy(def)
	}
	return nil
}

// Load registers every definition listed by sources, stopping at the first
// error.
func (c *Container) Load(sources ...DefinitionSource) error {
	for _, src := range sources {
		defs, err := src.Definitions()
		if err != nil {
			return fmt.Errorf("listing definitions: %w", err)
		}
		for _, def := range defs {
			if err := c.Register(def); err != nil {
				return err
			}
		}
	}
	return nil
}

// RegisterScope makes a custom scope available to definitions and BeginScope.
func (c *Container) RegisterScope(scope Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	return c.scopes.register(scope)
}

// Alias registers an alternative name for a bean.
func (c *Container) Alias(name, alias string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutable(); err != nil {
		return err
	}
	return c.registry.Alias(name, alias)
}

// Extend decorates the named bean after it is initialized. The extender may
// look up other beans but not the one it decorates, which is not cached yet.
//
//	c.Extend("discountPolicy", func(bean any, c *container.Container) any {
//	    return &cappedPolicy{inner: bean.(DiscountPolicy)}
//	})
func (c *Container) Extend(name string, ext Extender) {
	c.lifecycle.extend(name, ext)
}

// AfterInitializing registers a callback fired after any bean reaches
// Initialized.
func (c *Container) AfterInitializing(cb func(name string, bean any)) {
	c.lifecycle.onResolved(cb)
}

func (c *Container) mutable() error {
	if c.stopped {
		return ErrStopped
	}
	if c.started || c.starting {
		return ErrAlreadyStarted
	}
	return nil
}

// ── Start / Stop ──────────────────────────────────────────────────────────────

// Start plans every definition (surfacing missing, ambiguous and cyclic
// dependencies) and then builds all non-lazy singletons in dependency order.
// If a singleton fails, the ones already built are destroyed and the error is
// returned.
//
// Factories, hooks, extenders and callbacks run without the container lock:
// they may look beans up, but registration is closed from here on.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.mutable(); err != nil {
		c.mu.Unlock()
		return err
	}
	order, err := c.resolver.plan(c.registry.Definitions())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.starting = true
	c.mu.Unlock()

	for _, def := range order {
		if def.scope != ScopeSingleton || def.lazy {
			continue
		}
		if _, err := c.instance(ctx, def); err != nil {
			c.rollback(ctx)
			c.mu.Lock()
			c.starting = false
			c.mu.Unlock()
			return err
		}
	}

	c.mu.Lock()
	c.starting = false
	c.started = true
	c.mu.Unlock()

	c.log.Info("container started",
		zap.Int("definitions", c.registry.Len()),
		zap.Int("singletons", len(c.scopes.singletons.names())))
	return nil
}

func (c *Container) rollback(ctx context.Context) {
	built := c.scopes.singletons.reset()
	if err := c.lifecycle.destroyAll(ctx, built); err != nil {
		c.log.Error("startup rollback", zap.Error(err))
	}
}

// Stop refuses new scope contexts and destroys every singleton, dependents
// before their dependencies. Destroy-hook failures are logged and joined into
// the returned error; they never stop the sweep. Prototype and custom-scoped
// instances are not touched.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted // also while Start is still running
	}
	c.stopped = true
	c.mu.Unlock()

	c.scopes.close()
	insts := c.scopes.singletons.drain()
	err := c.lifecycle.destroyAll(ctx, insts)

	c.log.Info("container stopped", zap.Int("destroyed", len(insts)), zap.Bool("clean", err == nil))
	return err
}

// ── Lookup ────────────────────────────────────────────────────────────────────

// GetBean returns the bean registered under name (or alias). Custom-scoped
// beans need their scope context in ctx.
func (c *Container) GetBean(ctx context.Context, name string) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	def, ok := c.registry.LookupByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchBeanDefinition, name)
	}
	inst, err := c.instance(ctx, def)
	if err != nil {
		return nil, err
	}
	return inst.value, nil
}

// GetBeanOfType returns the single bean satisfying t, narrowed by qualifier
// when it is not empty. Multiple candidates fall back to the primary bean.
func (c *Container) GetBeanOfType(ctx context.Context, t reflect.Type, qualifier string) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	def, err := c.resolver.choose("", Dependency{typ: t, valueType: t, qualifier: qualifier, required: true})
	if err != nil {
		return nil, err
	}
	inst, err := c.instance(ctx, def)
	if err != nil {
		return nil, err
	}
	return inst.value, nil
}

// BeansOfType returns every bean satisfying t keyed by bean name.
func (c *Container) BeansOfType(ctx context.Context, t reflect.Type) (map[string]any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, def := range c.registry.LookupAllByType(t) {
		inst, err := c.instance(ctx, def)
		if err != nil {
			return nil, err
		}
		out[def.name] = inst.value
	}
	return out, nil
}

// BeanNames returns every registered bean name in registration order.
func (c *Container) BeanNames() []string { return c.registry.Names() }

// Definition returns a copy of the definition registered under name or alias.
func (c *Container) Definition(name string) (*Definition, bool) {
	def, ok := c.registry.LookupByName(name)
	if !ok {
		return nil, false
	}
	return def.Derive(), true
}

// ContainsBean reports whether name or alias is registered.
func (c *Container) ContainsBean(name string) bool {
	_, ok := c.registry.LookupByName(name)
	return ok
}

// SingletonNames returns the singletons built so far, in creation order.
func (c *Container) SingletonNames() []string { return c.scopes.singletons.names() }

// ready allows lookups once Start has begun building, so factories and hooks
// running inside Start can resolve their collaborators.
func (c *Container) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return ErrStopped
	}
	if !c.started && !c.starting {
		return ErrNotStarted
	}
	return nil
}

// ── Scope boundaries ──────────────────────────────────────────────────────────

// BeginScope opens the context id of scope and returns ctx carrying it.
// Resolution of beans in that scope must use the returned context.
//
//	ctx, err := c.BeginScope(r.Context(), container.ScopeRequest, requestID)
//	defer c.EndScope(ctx, container.ScopeRequest, requestID)
func (c *Container) BeginScope(ctx context.Context, scope Scope, id string) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scoped, _, err := c.scopes.begin(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	c.log.Debug("scope begin", zap.String("scope", string(scope)), zap.String("id", id))
	return scoped, nil
}

// EndScope closes the context id of scope and destroys every instance created
// in it, in reverse creation order. Each instance is destroyed exactly once.
func (c *Container) EndScope(ctx context.Context, scope Scope, id string) error {
	insts, err := c.scopes.end(scope, id)
	if err != nil {
		return err
	}
	err = c.lifecycle.destroyAll(ctx, insts)
	c.log.Debug("scope end",
		zap.String("scope", string(scope)),
		zap.String("id", id),
		zap.Int("destroyed", len(insts)))
	return err
}

// DestroyBean runs the destroy hook of a prototype bean obtained from this
// container. Prototypes are never destroyed by the container itself. The
// container does not track bean values, so every call runs the hook; callers
// that need at-most-once teardown use GetInstance and DestroyInstance.
func (c *Container) DestroyBean(ctx context.Context, name string, bean any) error {
	def, ok := c.registry.LookupByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchBeanDefinition, name)
	}
	if err := callerOwned(def); err != nil {
		return err
	}
	inst := &BeanInstance{def: def, raw: bean, value: bean, state: StateInitialized}
	return c.lifecycle.destroy(ctx, inst)
}

// GetInstance is GetBean returning the instance together with its lifecycle
// state.
//
//	inst, _ := c.GetInstance(ctx, "prototypeCounter")
//	defer c.DestroyInstance(ctx, inst)
func (c *Container) GetInstance(ctx context.Context, name string) (*BeanInstance, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	def, ok := c.registry.LookupByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchBeanDefinition, name)
	}
	return c.instance(ctx, def)
}

// DestroyInstance tears down a prototype instance from GetInstance. The hook
// runs once; later calls are no-ops.
func (c *Container) DestroyInstance(ctx context.Context, inst *BeanInstance) error {
	if inst == nil {
		return fmt.Errorf("%w: nil instance", ErrInvalidDefinition)
	}
	if err := callerOwned(inst.def); err != nil {
		return err
	}
	return c.lifecycle.destroy(ctx, inst)
}

func callerOwned(def *Definition) error {
	if def.scope != ScopePrototype {
		return fmt.Errorf("%w: bean %q is %s scoped; only prototypes are destroyed by callers",
			ErrInvalidDefinition, def.name, def.scope)
	}
	return nil
}

// ── Internal resolution ───────────────────────────────────────────────────────

// instance resolves def through its scope. It never takes c.mu. A bean asked
// for again while its own construction is in progress fails with a CycleError
// before any per-bean lock is taken.
func (c *Container) instance(ctx context.Context, def *Definition) (*BeanInstance, error) {
	if err := reentry(ctx, def.name); err != nil {
		return nil, err
	}
	return c.scopes.resolve(ctx, def,
		func() (*BeanInstance, error) { return c.lifecycle.create(ctx, def, c.dependency) },
		func(inst *BeanInstance) { _ = c.lifecycle.destroy(ctx, inst) },
	)
}

// dependency produces the value injected for dep into consumer.
func (c *Container) dependency(ctx context.Context, consumer *Definition, dep Dependency) (any, bool, error) {
	switch dep.wrapping {
	case WrapCollection:
		targets := c.resolver.all(dep)
		if len(targets) == 0 && dep.required {
			return nil, false, fmt.Errorf("%w: no bean of type %s%s", ErrNoSuchBeanDefinition, dep.typ, neededBy(consumer.name))
		}
		vals := make([]any, 0, len(targets))
		for _, t := range targets {
			v, err := c.injectable(ctx, consumer, t)
			if err != nil {
				return nil, false, err
			}
			vals = append(vals, v)
		}
		return dep.collect(vals), true, nil

	case WrapHandle:
		target, err := c.resolver.choose(consumer.name, dep)
		if err != nil {
			return nil, false, err
		}
		if target == nil {
			return dep.handle(nil), true, nil
		}
		owner := creationFrom(ctx)
		return dep.handle(func(ctx context.Context) (any, error) {
			inst, err := c.instance(owner.bind(ctx), target)
			if err != nil {
				return nil, err
			}
			return inst.value, nil
		}), true, nil
	}

	target, err := c.resolver.choose(consumer.name, dep)
	if err != nil {
		return nil, false, err
	}
	if target == nil {
		if dep.wrapping == WrapOptional {
			return dep.optional(nil, false), true, nil
		}
		return nil, false, nil
	}
	v, err := c.injectable(ctx, consumer, target)
	if err != nil {
		return nil, false, err
	}
	if dep.wrapping == WrapOptional {
		return dep.optional(v, true), true, nil
	}
	return v, true, nil
}

// injectable returns target's instance, or its scoped proxy when consumer
// outlives target's scope.
func (c *Container) injectable(ctx context.Context, consumer, target *Definition) (any, error) {
	if needsProxy(consumer, target) {
		return c.proxies[target.name], nil
	}
	inst, err := c.instance(ctx, target)
	if err != nil {
		return nil, err
	}
	return inst.value, nil
}

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolve returns the single bean of type T, optionally narrowed by a
// qualifier:
//
//	orders, err := container.Resolve[OrderService](ctx, c)
//	fix, err := container.Resolve[DiscountPolicy](ctx, c, "fix")
func Resolve[T any](ctx context.Context, c *Container, qualifier ...string) (T, error) {
	var zero T
	q := ""
	if len(qualifier) > 0 {
		q = qualifier[0]
	}
	v, err := c.GetBeanOfType(ctx, TypeOf[T](), q)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s", v, TypeOf[T]())
	}
	return out, nil
}

// ResolveNamed returns the bean registered under name as T.
func ResolveNamed[T any](ctx context.Context, c *Container, name string) (T, error) {
	var zero T
	v, err := c.GetBean(ctx, name)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("bean %q: cannot convert %T to %s", name, v, TypeOf[T]())
	}
	return out, nil
}

// ResolveAll returns every bean of type T, primary beans first, then in
// registration order.
func ResolveAll[T any](ctx context.Context, c *Container) ([]T, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	defs := c.resolver.all(Dependency{typ: TypeOf[T]()})
	out := make([]T, 0, len(defs))
	for _, def := range defs {
		inst, err := c.instance(ctx, def)
		if err != nil {
			return nil, err
		}
		out = append(out, inst.value.(T))
	}
	return out, nil
}

// MustResolve is Resolve that panics on error. Meant for wiring code in main.
func MustResolve[T any](ctx context.Context, c *Container, qualifier ...string) T {
	v, err := Resolve[T](ctx, c, qualifier...)
	if err != nil {
		panic(fmt.Sprintf("container: Resolve[%s]: %v", TypeOf[T](), err))
	}
	return v
}
