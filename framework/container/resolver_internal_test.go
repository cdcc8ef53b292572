package container

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct{ name string }

func partDef(name string, deps ...string) *Definition {
	opts := []BeanOption{
		Supply(func(context.Context) (*part, error) { return &part{name: name}, nil }),
		Qualifier(name),
	}
	for _, d := range deps {
		opts = append(opts, Inject(Ref[*part](Qualified(d)), func(*part, *part) {}))
	}
	return Define[*part](name, opts...)
}

func registryOf(t *testing.T, defs ...*Definition) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, d := range defs {
		require.NoError(t, reg.Register(d))
	}
	return reg
}

func TestPlan_DependenciesBeforeDependents(t *testing.T) {
	reg := registryOf(t,
		partDef("car", "engine", "wheel"),
		partDef("engine", "piston"),
		partDef("wheel"),
		partDef("piston"),
	)
	order, err := newResolver(reg).plan(reg.Definitions())
	require.NoError(t, err)
	assert.Equal(t, []string{"piston", "engine", "wheel", "car"}, names(order))
}

func TestPlan_SelfCycle(t *testing.T) {
	reg := registryOf(t, partDef("ouroboros", "ouroboros"), partDef("other"))
	_, err := newResolver(reg).plan(reg.Definitions())

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"ouroboros", "ouroboros"}, cycle.Path)
}

func TestPlan_CyclePathStartsAtRepeatedBean(t *testing.T) {
	reg := registryOf(t,
		partDef("entry", "x"),
		partDef("x", "y"),
		partDef("y", "x"),
	)
	_, err := newResolver(reg).plan(reg.Definitions())

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"x", "y", "x"}, cycle.Path)
}

func TestChoose_SingleCandidateIgnoresQualifier(t *testing.T) {
	reg := registryOf(t, partDef("only"))
	def, err := newResolver(reg).choose("", Ref[*part](Qualified("something-else")))
	require.NoError(t, err)
	assert.Equal(t, "only", def.Name())
}

func TestChoose_QualifierValueAsBeanName(t *testing.T) {
	reg := registryOf(t,
		Define[*part]("left", Supply(func(context.Context) (*part, error) { return &part{}, nil })),
		Define[*part]("right", Supply(func(context.Context) (*part, error) { return &part{}, nil })),
	)
	def, err := newResolver(reg).choose("", Ref[*part](Qualified("right")))
	require.NoError(t, err)
	assert.Equal(t, "right", def.Name())
}

func TestChoose_SeveralQualifiedNarrowedByPrimary(t *testing.T) {
	mk := func(name string, opts ...BeanOption) *Definition {
		opts = append(opts, Supply(func(context.Context) (*part, error) { return &part{}, nil }), Qualifier("fast"))
		return Define[*part](name, opts...)
	}
	reg := registryOf(t, mk("a"), mk("b", Primary()), Define[*part]("c",
		Supply(func(context.Context) (*part, error) { return &part{}, nil }), Primary()))

	def, err := newResolver(reg).choose("", Ref[*part](Qualified("fast")))
	require.NoError(t, err)
	assert.Equal(t, "b", def.Name())
}

func TestChoose_TwoPrimariesAreAmbiguous(t *testing.T) {
	reg := registryOf(t,
		Define[*part]("a", Supply(func(context.Context) (*part, error) { return &part{}, nil }), Primary()),
		Define[*part]("b", Supply(func(context.Context) (*part, error) { return &part{}, nil }), Primary()),
	)
	_, err := newResolver(reg).choose("consumer", Ref[*part]())
	assert.ErrorIs(t, err, ErrAmbiguousDefinition)
}

func TestNeedsProxy(t *testing.T) {
	proxied := Define[*part]("p", WithScope(ScopeRequest),
		ScopedProxy(func(Target[*part]) *part { return &part{} }))
	plain := Define[*part]("q", WithScope(ScopeRequest))
	single := Define[*part]("s")
	sameScope := Define[*part]("r", WithScope(ScopeRequest))

	assert.True(t, needsProxy(single, proxied))
	assert.False(t, needsProxy(sameScope, proxied))
	assert.False(t, needsProxy(single, plain))
}

// ── instanceCache ─────────────────────────────────────────────────────────────

func TestInstanceCache_ConcurrentCreateOnce(t *testing.T) {
	cache := newInstanceCache()
	def := partDef("shared")

	var mu sync.Mutex
	calls := 0
	create := func() (*BeanInstance, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &BeanInstance{def: def, value: &part{}}, nil
	}

	var wg sync.WaitGroup
	got := make([]*BeanInstance, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _, _ = cache.getOrCreate("shared", create)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	for _, inst := range got {
		assert.Same(t, got[0], inst)
	}
}

func TestInstanceCache_DrainReversesAndCloses(t *testing.T) {
	cache := newInstanceCache()
	for _, n := range []string{"first", "second", "third"} {
		def := partDef(n)
		_, _, err := cache.getOrCreate(n, func() (*BeanInstance, error) {
			return &BeanInstance{def: def}, nil
		})
		require.NoError(t, err)
	}

	drained := cache.drain()
	var order []string
	for _, inst := range drained {
		order = append(order, inst.def.name)
	}
	assert.Equal(t, []string{"third", "second", "first"}, order)

	_, _, err := cache.getOrCreate("late", func() (*BeanInstance, error) { return nil, nil })
	assert.ErrorIs(t, err, errCacheClosed)
}

func TestInstanceCache_ClosedWhileBuildingReturnsOrphan(t *testing.T) {
	cache := newInstanceCache()
	def := partDef("slow")

	inst, orphan, err := cache.getOrCreate("slow", func() (*BeanInstance, error) {
		cache.drain()
		return &BeanInstance{def: def}, nil
	})
	assert.ErrorIs(t, err, errCacheClosed)
	assert.True(t, orphan)
	require.NotNil(t, inst)
}

func TestBeanInstance_StateOnlyMovesForward(t *testing.T) {
	inst := &BeanInstance{def: partDef("x"), state: StateInitialized}
	assert.Error(t, inst.advance(StateInjected))
	assert.NoError(t, inst.advance(StateDestroyed))
	assert.Equal(t, "destroyed", inst.State().String())
}
