// Package container is a typed dependency-injection container with scopes and
// bean lifecycles.
//
// # Overview
//
// Beans are described by Definitions: a name, a declared capability type, a
// factory, dependency descriptors, a scope and optional lifecycle hooks. The
// container resolves descriptors against the registry, builds beans in
// dependency order and tears them down in reverse.
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithLogger(log))
//  2. Register: c.Register(def) or c.Load(provider, manifestSource, ...)
//  3. Start: c.Start(ctx) validates the graph, builds singletons
//  4. Serve: GetBean / Resolve, BeginScope / EndScope per request
//  5. Stop: c.Stop(ctx) destroys singletons, dependents first
//
// # Definitions
//
//	// Singleton built by a constructor whose parameters are injected by type
//	container.Define[MemberRepository]("memberRepository",
//	    container.Constructor(NewMemoryMemberRepository))
//
//	// Explicit descriptors
//	container.Define[OrderService]("orderService",
//	    container.Constructor(NewOrderService,
//	        container.Ref[MemberRepository](),
//	        container.Ref[DiscountPolicy](container.Qualified("fix")),
//	    ))
//
//	// Prototype: a new instance per lookup, never destroyed by the container
//	container.Define[*Counter]("counter",
//	    container.Constructor(NewCounter),
//	    container.WithScope(container.ScopePrototype))
//
//	// Pre-built value
//	container.Instance[*config.Config]("config", cfg)
//
// # Choosing between candidates
//
// When several beans satisfy a descriptor the container tries, in order: a
// contextual binding for the consumer, the qualifier, the single primary bean,
// and a bean whose name equals the descriptor name. Anything left is an
// AmbiguousError.
//
// # Descriptor wrappings
//
//	container.Ref[T]()        // T, required
//	container.OptionalOf[T]() // Optional[T], empty when nothing matches
//	container.ProviderOf[T]() // Provider[T], resolves again on every Get
//	container.All[T]()        // []T, primary beans first
//
// Provider and scoped-proxy edges are resolved lazily and do not count as
// construction dependencies, so they may close a loop that a direct
// dependency could not.
//
// # Custom scopes
//
// ScopeRequest is registered by default; RegisterScope adds others. A scope
// context is opened with BeginScope, which returns a context.Context that must
// be passed to every lookup inside it, and closed with EndScope, which destroys
// the beans created in it.
//
//	ctx, _ := c.BeginScope(ctx, container.ScopeRequest, "req-1")
//	defer c.EndScope(ctx, container.ScopeRequest, "req-1")
//
// A singleton that depends on a request bean receives the bean's ScopedProxy,
// which looks the real bean up in whatever request context the call carries.
//
// # Service Providers
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&OrderProvider{})
//	registry.Boot(ctx)       // starts the container, then boots providers
//	registry.Shutdown(ctx)   // terminates providers, then stops the container
package container
