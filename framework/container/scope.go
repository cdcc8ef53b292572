package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// errCacheClosed is returned by a closed instanceCache; callers translate it.
var errCacheClosed = errors.New("instance cache closed")

// ── instanceCache ─────────────────────────────────────────────────────────────

// instanceCache holds at most one instance per bean name. Construction runs
// under a per-bean lock with a re-check after acquiring it, so concurrent
// first lookups build once. Locks follow dependency order, which the planner
// guarantees is acyclic.
type instanceCache struct {
	mu        sync.Mutex
	instances map[string]*BeanInstance
	locks     map[string]*sync.Mutex
	order     []*BeanInstance // completion order: dependencies before dependents
	closed    bool
}

func newInstanceCache() *instanceCache {
	return &instanceCache{
		instances: make(map[string]*BeanInstance),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (c *instanceCache) getOrCreate(name string, create func() (*BeanInstance, error)) (*BeanInstance, bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, false, errCacheClosed
	}
	if inst, ok := c.instances[name]; ok {
		c.mu.Unlock()
		return inst, false, nil
	}
	lock, ok := c.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[name] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	if inst, ok := c.instances[name]; ok {
		c.mu.Unlock()
		return inst, false, nil
	}
	c.mu.Unlock()

	inst, err := create()
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// closed while we were building: hand the instance back for teardown
		return inst, true, errCacheClosed
	}
	c.instances[name] = inst
	c.order = append(c.order, inst)
	return inst, false, nil
}

func (c *instanceCache) get(name string) (*BeanInstance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.instances[name]
	return inst, ok
}

func (c *instanceCache) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	for i, inst := range c.order {
		out[i] = inst.def.name
	}
	return out
}

// drain closes the cache and returns its instances in reverse completion
// order, i.e. dependents before their dependencies.
func (c *instanceCache) drain() []*BeanInstance {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.reset()
}

// reset empties the cache without closing it and returns what it held in
// reverse completion order. Start uses it to roll back.
func (c *instanceCache) reset() []*BeanInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*BeanInstance, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		out = append(out, c.order[i])
	}
	c.instances = make(map[string]*BeanInstance)
	c.order = nil
	return out
}

// ── ScopeContext ──────────────────────────────────────────────────────────────

// ScopeContext is one bracketed lifetime of a custom scope, e.g. one request.
// It is created by BeginScope, carried in a context.Context and ended by
// EndScope.
type ScopeContext struct {
	scope Scope
	id    string
	cache *instanceCache

	mu     sync.RWMutex
	active bool
}

func (s *ScopeContext) Scope() Scope { return s.scope }
func (s *ScopeContext) ID() string   { return s.id }

// Active reports whether EndScope has not yet been called for this context.
func (s *ScopeContext) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Beans returns the names of beans cached in this context, in creation order.
func (s *ScopeContext) Beans() []string { return s.cache.names() }

type scopeKey struct{ scope Scope }

// ActiveScope returns the active context of scope carried by ctx.
func ActiveScope(ctx context.Context, scope Scope) (*ScopeContext, bool) {
	if ctx == nil {
		return nil, false
	}
	sc, ok := ctx.Value(scopeKey{scope}).(*ScopeContext)
	if !ok || !sc.Active() {
		return nil, false
	}
	return sc, true
}

// ── Scope manager ─────────────────────────────────────────────────────────────

// scopeManager owns the singleton cache and the live contexts of every
// registered custom scope. Prototypes are never cached here.
type scopeManager struct {
	singletons *instanceCache

	mu     sync.Mutex
	scopes map[Scope]map[string]*ScopeContext // scope → context id → context
	closed bool
}

func newScopeManager() *scopeManager {
	return &scopeManager{
		singletons: newInstanceCache(),
		scopes:     make(map[Scope]map[string]*ScopeContext),
	}
}

func (m *scopeManager) register(scope Scope) error {
	if !scope.IsCustom() || scope == "" {
		return fmt.Errorf("%w: %q cannot be registered as a custom scope", ErrInvalidDefinition, scope)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scopes[scope]; !ok {
		m.scopes[scope] = make(map[string]*ScopeContext)
	}
	return nil
}

func (m *scopeManager) known(scope Scope) bool {
	if !scope.IsCustom() {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.scopes[scope]
	return ok
}

func (m *scopeManager) begin(ctx context.Context, scope Scope, id string) (context.Context, *ScopeContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrStopped
	}
	live, ok := m.scopes[scope]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	if _, ok := live[id]; ok {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrScopeAlreadyActive, scope, id)
	}
	sc := &ScopeContext{scope: scope, id: id, cache: newInstanceCache(), active: true}
	live[id] = sc
	return context.WithValue(ctx, scopeKey{scope}, sc), sc, nil
}

// end deactivates the context and returns its instances for teardown.
func (m *scopeManager) end(scope Scope, id string) ([]*BeanInstance, error) {
	m.mu.Lock()
	live, ok := m.scopes[scope]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	sc, ok := live[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s/%s", ErrScopeNotActive, scope, id)
	}
	delete(live, id)
	m.mu.Unlock()

	sc.mu.Lock()
	sc.active = false
	sc.mu.Unlock()
	return sc.cache.drain(), nil
}

// close stops accepting new contexts.
func (m *scopeManager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// liveContexts counts open contexts of scope.
func (m *scopeManager) liveContexts(scope Scope) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scopes[scope])
}

// resolve returns the instance of def for the scope rules. create builds a new
// Initialized instance; destroy tears down one built after its cache closed.
func (m *scopeManager) resolve(
	ctx context.Context,
	def *Definition,
	create func() (*BeanInstance, error),
	destroy func(*BeanInstance),
) (*BeanInstance, error) {
	switch def.scope {
	case ScopePrototype:
		return create()

	case ScopeSingleton:
		inst, orphan, err := m.singletons.getOrCreate(def.name, create)
		if errors.Is(err, errCacheClosed) {
			if orphan {
				destroy(inst)
			}
			return nil, ErrStopped
		}
		return inst, err

	default:
		sc, ok := ActiveScope(ctx, def.scope)
		if !ok {
			return nil, fmt.Errorf("%w: bean %q needs an active %q scope", ErrScopeNotActive, def.name, def.scope)
		}
		inst, orphan, err := sc.cache.getOrCreate(def.name, create)
		if errors.Is(err, errCacheClosed) {
			if orphan {
				destroy(inst)
			}
			return nil, fmt.Errorf("%w: %s/%s ended while resolving %q", ErrScopeNotActive, sc.scope, sc.id, def.name)
		}
		return inst, err
	}
}
