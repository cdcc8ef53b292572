package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Scope names the lifetime policy of a bean.
type Scope string

const (
	// ScopeSingleton keeps one instance for the lifetime of the container.
	ScopeSingleton Scope = "singleton"
	// ScopePrototype builds a new instance on every lookup and never tracks it.
	ScopePrototype Scope = "prototype"
	// ScopeRequest is the conventional per-request custom scope. New registers it.
	ScopeRequest Scope = "request"
)

// IsCustom reports whether s is neither singleton nor prototype.
func (s Scope) IsCustom() bool { return s != ScopeSingleton && s != ScopePrototype }

// Role separates application beans from framework plumbing when listing.
type Role int

const (
	RoleApplication Role = iota
	RoleInfrastructure
)

func (r Role) String() string {
	switch r {
	case RoleApplication:
		return "application"
	case RoleInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// hook is a named lifecycle callback.
type hook struct {
	name string
	fn   func(ctx context.Context, bean any) error
}

// injection is a setter/field style dependency applied after construction.
type injection struct {
	dep Dependency
	set func(bean, value any) error
}

// factory builds the raw instance. Exactly one of ctor and supply is set.
type factory struct {
	ctor   reflect.Value
	args   []Dependency
	supply func(ctx context.Context) (any, error)
}

// Definition is the immutable metadata describing how to build, wire and scope
// one bean. Create it with Define or Instance; it cannot be changed once
// registered.
type Definition struct {
	name       string
	typ        reflect.Type
	scope      Scope
	role       Role
	factory    factory
	injections []injection
	init       *hook
	destroy    *hook
	primary    bool
	lazy       bool
	qualifiers []string
	proxy      func(target func(context.Context) (any, error)) any

	errs []error
}

// BeanOption configures a Definition.
type BeanOption func(*Definition)

// Define starts a definition named name whose declared capability type is T.
// Scope defaults to singleton.
//
//	container.Define[OrderService]("orderService",
//	    container.Constructor(NewOrderService),
//	)
func Define[T any](name string, opts ...BeanOption) *Definition {
	d := &Definition{
		name:  name,
		typ:   TypeOf[T](),
		scope: ScopeSingleton,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Instance defines a singleton around an already-built value.
func Instance[T any](name string, value T, opts ...BeanOption) *Definition {
	return Define[T](name, append([]BeanOption{Supply(func(context.Context) (T, error) {
		return value, nil
	})}, opts...)...)
}

// Derive returns a copy of d with opts applied on top. Definition producers use
// it to override metadata before registration.
func (d *Definition) Derive(opts ...BeanOption) *Definition {
	cp := *d
	cp.injections = slices.Clone(d.injections)
	cp.qualifiers = slices.Clone(d.qualifiers)
	cp.factory.args = slices.Clone(d.factory.args)
	cp.errs = slices.Clone(d.errs)
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// ── Factories ─────────────────────────────────────────────────────────────────

// Constructor sets a constructor-style factory: fn must be func(deps...) R or
// func(deps...) (R, error) with R assignable to the declared type. Each
// parameter is paired with the descriptor at the same position; when no
// descriptors are given they are inferred as required Refs of the parameter
// types.
func Constructor(fn any, deps ...Dependency) BeanOption {
	return func(d *Definition) {
		v := reflect.ValueOf(fn)
		if !v.IsValid() || v.Kind() != reflect.Func {
			d.fail("constructor must be a function, got %T", fn)
			return
		}
		t := v.Type()
		if t.NumOut() == 0 || t.NumOut() > 2 {
			d.fail("constructor must return (T) or (T, error)")
			return
		}
		if t.NumOut() == 2 && !t.Out(1).Implements(errorType) {
			d.fail("second return value must implement error")
			return
		}
		if t.IsVariadic() {
			d.fail("variadic constructors are not supported")
			return
		}
		if len(deps) == 0 {
			for i := 0; i < t.NumIn(); i++ {
				in := t.In(i)
				deps = append(deps, Dependency{typ: in, valueType: in, required: true, wrapping: WrapDirect})
			}
		}
		if len(deps) != t.NumIn() {
			d.fail("constructor takes %d parameters but %d dependencies were declared", t.NumIn(), len(deps))
			return
		}
		for i, dep := range deps {
			if !dep.valueType.AssignableTo(t.In(i)) {
				d.fail("dependency %d (%s) is not assignable to parameter type %s", i, dep.valueType, t.In(i))
				return
			}
		}
		d.factory = factory{ctor: v, args: deps}
	}
}

// Supply sets a provider-function factory. The function receives the
// resolution context and declares no dependencies of its own.
func Supply[T any](fn func(ctx context.Context) (T, error)) BeanOption {
	return func(d *Definition) {
		if fn == nil {
			d.fail("supply function is nil")
			return
		}
		if !TypeOf[T]().AssignableTo(d.typ) {
			d.fail("supplied type %s is not assignable to %s", TypeOf[T](), d.typ)
			return
		}
		d.factory = factory{supply: func(ctx context.Context) (any, error) { return fn(ctx) }}
	}
}

// ── Metadata options ──────────────────────────────────────────────────────────

// WithScope sets the bean scope.
func WithScope(s Scope) BeanOption {
	return func(d *Definition) { d.scope = s }
}

// Primary marks the bean as the preferred candidate for its type.
func Primary() BeanOption {
	return func(d *Definition) { d.primary = true }
}

// NotPrimary clears the primary flag. Useful with Derive.
func NotPrimary() BeanOption {
	return func(d *Definition) { d.primary = false }
}

// Qualifier adds qualifier tags.
func Qualifier(tags ...string) BeanOption {
	return func(d *Definition) {
		for _, tag := range tags {
			if !slices.Contains(d.qualifiers, tag) {
				d.qualifiers = append(d.qualifiers, tag)
			}
		}
	}
}

// Lazy excludes a singleton from eager instantiation at Start. The definition
// is still validated at Start.
func Lazy() BeanOption {
	return func(d *Definition) { d.lazy = true }
}

// WithRole sets the bean role.
func WithRole(r Role) BeanOption {
	return func(d *Definition) { d.role = r }
}

// InitWith runs fn once dependencies are injected. It replaces Initializer
// inference.
func InitWith[T any](name string, fn func(ctx context.Context, bean T) error) BeanOption {
	return func(d *Definition) {
		d.init = &hook{name: name, fn: typedHook(name, fn)}
	}
}

// DestroyWith runs fn when the bean is torn down. It replaces Disposer and
// io.Closer inference.
func DestroyWith[T any](name string, fn func(ctx context.Context, bean T) error) BeanOption {
	return func(d *Definition) {
		d.destroy = &hook{name: name, fn: typedHook(name, fn)}
	}
}

func typedHook[T any](name string, fn func(context.Context, T) error) func(context.Context, any) error {
	return func(ctx context.Context, bean any) error {
		b, ok := bean.(T)
		if !ok {
			return fmt.Errorf("hook %s: bean is %T, not %s", name, bean, TypeOf[T]())
		}
		return fn(ctx, b)
	}
}

// Inject adds a setter-style injection applied after construction and before
// the init hook. An absent, non-required Ref skips the setter entirely.
//
//	container.Inject(container.OptionalOf[Member](), func(b *TestBean, m container.Optional[Member]) {
//	    b.member = m
//	})
func Inject[B any, D any](dep Dependency, set func(bean B, value D)) BeanOption {
	return func(d *Definition) {
		if !dep.valueType.AssignableTo(TypeOf[D]()) {
			d.fail("injection of %s is not assignable to setter parameter %s", dep.valueType, TypeOf[D]())
			return
		}
		d.injections = append(d.injections, injection{
			dep: dep,
			set: func(bean, value any) error {
				b, ok := bean.(B)
				if !ok {
					return fmt.Errorf("setter expects %s, bean is %T", TypeOf[B](), bean)
				}
				v, _ := value.(D)
				set(b, v)
				return nil
			},
		})
	}
}

// ScopedProxy declares the forwarding wrapper used when this bean is injected
// into a consumer that outlives one context of the bean's scope. wrap is
// called once, at registration, and must return a T whose methods resolve the
// real bean through target on every call.
func ScopedProxy[T any](wrap func(target Target[T]) T) BeanOption {
	return func(d *Definition) {
		if TypeOf[T]() != d.typ {
			d.fail("scoped proxy type %s does not match declared type %s", TypeOf[T](), d.typ)
			return
		}
		d.proxy = func(get func(context.Context) (any, error)) any {
			return wrap(Target[T]{bean: d.name, get: get})
		}
	}
}

func (d *Definition) fail(format string, args ...any) {
	d.errs = append(d.errs, fmt.Errorf(format, args...))
}

// validate reports option errors and structural problems.
func (d *Definition) validate() error {
	if d.name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if len(d.errs) > 0 {
		return fmt.Errorf("%w: bean %q: %w", ErrInvalidDefinition, d.name, errors.Join(d.errs...))
	}
	if !d.factory.ctor.IsValid() && d.factory.supply == nil {
		return fmt.Errorf("%w: bean %q has no factory", ErrInvalidDefinition, d.name)
	}
	if d.factory.ctor.IsValid() && !d.factory.ctor.Type().Out(0).AssignableTo(d.typ) {
		return fmt.Errorf("%w: bean %q: constructor returns %s, not assignable to %s",
			ErrInvalidDefinition, d.name, d.factory.ctor.Type().Out(0), d.typ)
	}
	if d.scope == "" {
		return fmt.Errorf("%w: bean %q has no scope", ErrInvalidDefinition, d.name)
	}
	if d.proxy != nil && !d.scope.IsCustom() {
		return fmt.Errorf("%w: bean %q: scoped proxy requires a custom scope, got %s",
			ErrInvalidDefinition, d.name, d.scope)
	}
	return nil
}

// ── Accessors ─────────────────────────────────────────────────────────────────

func (d *Definition) Name() string       { return d.name }
func (d *Definition) Type() reflect.Type { return d.typ }
func (d *Definition) Scope() Scope       { return d.scope }
func (d *Definition) Role() Role         { return d.role }
func (d *Definition) IsPrimary() bool    { return d.primary }
func (d *Definition) IsLazy() bool       { return d.lazy }
func (d *Definition) HasProxy() bool     { return d.proxy != nil }

// Qualifiers returns a copy of the qualifier tags.
func (d *Definition) Qualifiers() []string { return slices.Clone(d.qualifiers) }

// HasQualifier reports whether tag is among the qualifiers.
func (d *Definition) HasQualifier(tag string) bool { return slices.Contains(d.qualifiers, tag) }

// Dependencies returns constructor descriptors followed by setter descriptors.
func (d *Definition) Dependencies() []Dependency {
	out := slices.Clone(d.factory.args)
	for _, inj := range d.injections {
		out = append(out, inj.dep)
	}
	return out
}

// InitHook returns the explicit init hook name, or "".
func (d *Definition) InitHook() string {
	if d.init == nil {
		return ""
	}
	return d.init.name
}

// DestroyHook returns the explicit destroy hook name, or "".
func (d *Definition) DestroyHook() string {
	if d.destroy == nil {
		return ""
	}
	return d.destroy.name
}

// satisfies reports whether the bean can be injected where t is expected.
func (d *Definition) satisfies(t reflect.Type) bool {
	return d.typ == t || d.typ.AssignableTo(t)
}

func (d *Definition) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bean %q [type=%s scope=%s role=%s", d.name, d.typ, d.scope, d.role)
	if d.primary {
		b.WriteString(" primary")
	}
	if d.lazy {
		b.WriteString(" lazy")
	}
	if len(d.qualifiers) > 0 {
		fmt.Fprintf(&b, " qualifiers=%v", d.qualifiers)
	}
	if h := d.InitHook(); h != "" {
		fmt.Fprintf(&b, " init=%s", h)
	}
	if h := d.DestroyHook(); h != "" {
		fmt.Fprintf(&b, " destroy=%s", h)
	}
	b.WriteString("]")
	return b.String()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
