package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is a bean instance's position in its lifecycle. Transitions only move
// forward.
type State int

const (
	StateConstructed State = iota
	StateInjected
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateInjected:
		return "injected"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Initializer is implemented by beans that need a callback once their
// dependencies are injected. It is used when the definition has no InitWith.
type Initializer interface {
	Init(ctx context.Context) error
}

// Disposer is implemented by beans that release resources on teardown. It is
// used when the definition has no DestroyWith; io.Closer is the fallback.
type Disposer interface {
	Destroy(ctx context.Context) error
}

// ── BeanInstance ──────────────────────────────────────────────────────────────

// BeanInstance is one constructed bean together with its definition and
// lifecycle state.
type BeanInstance struct {
	def   *Definition
	raw   any // as returned by the factory; hooks run against it
	value any // raw after Extend decorators; what callers receive

	mu    sync.Mutex
	state State
}

func (b *BeanInstance) Definition() *Definition { return b.def }
func (b *BeanInstance) Value() any              { return b.value }

// State returns the current lifecycle state.
func (b *BeanInstance) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// advance moves the instance to a later state (must hold mu).
func (b *BeanInstance) advance(to State) error {
	if to <= b.state {
		return fmt.Errorf("bean %q: illegal lifecycle transition %s -> %s", b.def.name, b.state, to)
	}
	b.state = to
	return nil
}

// ── Lifecycle coordinator ─────────────────────────────────────────────────────

// Extender decorates an initialized bean. The result must still satisfy the
// bean's declared type.
type Extender func(bean any, c *Container) any

// dependencyFunc resolves one descriptor for consumer. present is false when a
// non-required direct dependency has no candidate.
type dependencyFunc func(ctx context.Context, consumer *Definition, dep Dependency) (value any, present bool, err error)

type lifecycle struct {
	c   *Container
	log *zap.Logger

	mu             sync.RWMutex
	extenders      map[string][]Extender
	afterResolving []func(name string, bean any)
}

func newLifecycle(c *Container, log *zap.Logger) *lifecycle {
	return &lifecycle{
		c:         c,
		log:       log,
		extenders: make(map[string][]Extender),
	}
}

// create drives a new instance through construct → inject → init and returns
// it Initialized. On error nothing is returned and nothing is tracked.
func (l *lifecycle) create(ctx context.Context, def *Definition, resolve dependencyFunc) (*BeanInstance, error) {
	ctx, fr := enterCreation(ctx, def.name)
	defer fr.done.Store(true)

	raw, err := l.construct(ctx, def, resolve)
	if err != nil {
		return nil, err
	}
	inst := &BeanInstance{def: def, raw: raw, value: raw, state: StateConstructed}

	for _, inj := range def.injections {
		v, present, err := resolve(ctx, def, inj.dep)
		if err != nil {
			return nil, fmt.Errorf("bean %q: %w", def.name, err)
		}
		if !present {
			continue
		}
		if err := inj.set(raw, v); err != nil {
			return nil, &LifecycleError{Bean: def.name, Phase: PhaseInject, Err: err}
		}
	}
	inst.mu.Lock()
	_ = inst.advance(StateInjected)
	inst.mu.Unlock()

	if err := l.initialize(ctx, inst); err != nil {
		return nil, err
	}

	l.mu.RLock()
	exts := l.extenders[def.name]
	callbacks := l.afterResolving
	l.mu.RUnlock()

	for _, ext := range exts {
		inst.value = ext(inst.value, l.c)
		if inst.value == nil || !reflect.TypeOf(inst.value).AssignableTo(def.typ) {
			return nil, &LifecycleError{Bean: def.name, Phase: PhaseInit,
				Err: fmt.Errorf("extender returned %T, not assignable to %s", inst.value, def.typ)}
		}
	}

	inst.mu.Lock()
	_ = inst.advance(StateInitialized)
	inst.mu.Unlock()

	for _, cb := range callbacks {
		cb(def.name, inst.value)
	}
	l.log.Debug("bean created",
		zap.String("bean", def.name),
		zap.String("scope", string(def.scope)),
		zap.Stringer("type", def.typ))
	return inst, nil
}

func (l *lifecycle) construct(ctx context.Context, def *Definition, resolve dependencyFunc) (any, error) {
	if def.factory.supply != nil {
		v, err := def.factory.supply(ctx)
		if err != nil {
			return nil, &LifecycleError{Bean: def.name, Phase: PhaseConstruct, Err: err}
		}
		return v, nil
	}

	fnType := def.factory.ctor.Type()
	args := make([]reflect.Value, fnType.NumIn())
	for i, dep := range def.factory.args {
		v, present, err := resolve(ctx, def, dep)
		if err != nil {
			return nil, fmt.Errorf("bean %q: %w", def.name, err)
		}
		if !present || v == nil {
			args[i] = reflect.Zero(fnType.In(i))
			continue
		}
		args[i] = reflect.ValueOf(v)
	}

	results := def.factory.ctor.Call(args)
	if len(results) == 2 && !results[1].IsNil() {
		return nil, &LifecycleError{Bean: def.name, Phase: PhaseConstruct, Err: results[1].Interface().(error)}
	}
	return results[0].Interface(), nil
}

func (l *lifecycle) initialize(ctx context.Context, inst *BeanInstance) error {
	var err error
	switch {
	case inst.def.init != nil:
		err = inst.def.init.fn(ctx, inst.raw)
	default:
		if i, ok := inst.raw.(Initializer); ok {
			err = i.Init(ctx)
		}
	}
	if err != nil {
		return &LifecycleError{Bean: inst.def.name, Phase: PhaseInit, Err: err}
	}
	return nil
}

// destroy runs the destroy hook at most once per instance. The instance is
// Destroyed afterwards even when the hook fails.
func (l *lifecycle) destroy(ctx context.Context, inst *BeanInstance) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.state == StateDestroyed {
		return nil
	}
	_ = inst.advance(StateDestroyed)

	var err error
	switch {
	case inst.def.destroy != nil:
		err = inst.def.destroy.fn(ctx, inst.raw)
	default:
		if d, ok := inst.raw.(Disposer); ok {
			err = d.Destroy(ctx)
		} else if cl, ok := inst.raw.(io.Closer); ok {
			err = cl.Close()
		}
	}
	if err != nil {
		l.log.Error("destroy hook failed",
			zap.String("bean", inst.def.name),
			zap.String("scope", string(inst.def.scope)),
			zap.Error(err))
		return &LifecycleError{Bean: inst.def.name, Phase: PhaseDestroy, Err: err}
	}
	return nil
}

// destroyAll tears down insts in the given order, continuing past failures.
func (l *lifecycle) destroyAll(ctx context.Context, insts []*BeanInstance) error {
	var errs []error
	for _, inst := range insts {
		if err := l.destroy(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *lifecycle) extend(name string, ext Extender) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extenders[name] = append(l.extenders[name], ext)
}

func (l *lifecycle) onResolved(cb func(name string, bean any)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.afterResolving = append(l.afterResolving, cb)
}

// ── In-creation chain ─────────────────────────────────────────────────────────

// creation marks a bean under construction. Frames travel in the context
// handed to factories, hooks and dependency lookups, each linked to the bean
// whose construction triggered it.
type creation struct {
	name   string
	parent *creation
	done   atomic.Bool
}

type creationKey struct{}

func creationFrom(ctx context.Context) *creation {
	if ctx == nil {
		return nil
	}
	fr, _ := ctx.Value(creationKey{}).(*creation)
	return fr
}

func enterCreation(ctx context.Context, name string) (context.Context, *creation) {
	if ctx == nil {
		ctx = context.Background()
	}
	fr := &creation{name: name, parent: creationFrom(ctx)}
	return context.WithValue(ctx, creationKey{}, fr), fr
}

// bind carries fr into ctx while its bean is still being built. Handles use it
// so a lookup made from inside a constructor sees the chain.
func (fr *creation) bind(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if fr == nil || fr.done.Load() || creationFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, creationKey{}, fr)
}

// reentry fails with a CycleError when name is still under construction on
// the chain carried by ctx. Finished frames are skipped.
func reentry(ctx context.Context, name string) error {
	var path []string
	for fr := creationFrom(ctx); fr != nil; fr = fr.parent {
		if fr.done.Load() {
			continue
		}
		path = append(path, fr.name)
		if fr.name == name {
			slices.Reverse(path)
			return &CycleError{Path: append(path, name)}
		}
	}
	return nil
}
