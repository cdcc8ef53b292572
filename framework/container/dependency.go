package container

import (
	"context"
	"fmt"
	"reflect"
)

// Wrapping controls what a DependencyDescriptor injects for its resolved target.
type Wrapping int

const (
	// WrapDirect injects the resolved bean itself (or a scoped proxy).
	WrapDirect Wrapping = iota
	// WrapOptional injects an Optional[T] that is empty when nothing matched.
	WrapOptional
	// WrapHandle injects a Provider[T] that re-resolves on every Get.
	WrapHandle
	// WrapCollection injects []T holding every candidate.
	WrapCollection
)

func (w Wrapping) String() string {
	switch w {
	case WrapDirect:
		return "direct"
	case WrapOptional:
		return "optional"
	case WrapHandle:
		return "handle"
	case WrapCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Dependency describes one injection point of a bean: the capability type it
// needs, how candidates are narrowed and how the result is wrapped.
//
// Build descriptors with Ref, OptionalOf, ProviderOf and All.
type Dependency struct {
	typ       reflect.Type
	valueType reflect.Type
	qualifier string
	name      string
	required  bool
	wrapping  Wrapping

	optional func(v any, ok bool) any
	handle   func(get func(context.Context) (any, error)) any
	collect  func(vs []any) any
}

// DependencyOption tunes a Dependency.
type DependencyOption func(*Dependency)

// Qualified narrows candidates to beans carrying the qualifier tag.
func Qualified(tag string) DependencyOption {
	return func(d *Dependency) { d.qualifier = tag }
}

// Named sets the parameter/field name used as the last-resort tie-break:
// a candidate whose bean name equals it wins.
func Named(name string) DependencyOption {
	return func(d *Dependency) { d.name = name }
}

// NotRequired resolves a dependency with no candidates to "absent" instead of
// failing with ErrNoSuchBeanDefinition.
func NotRequired() DependencyOption {
	return func(d *Dependency) { d.required = false }
}

// Required makes a missing dependency fail resolution.
func Required() DependencyOption {
	return func(d *Dependency) { d.required = true }
}

// Ref injects the bean of type T directly. Required unless NotRequired is
// given; an absent non-required Ref leaves the parameter at its zero value and
// skips setter injection.
//
//	container.Ref[DiscountPolicy](container.Qualified("fix"))
func Ref[T any](opts ...DependencyOption) Dependency {
	t := TypeOf[T]()
	return newDependency(Dependency{typ: t, valueType: t, required: true, wrapping: WrapDirect}, opts)
}

// OptionalOf injects Optional[T]. Not required by default.
func OptionalOf[T any](opts ...DependencyOption) Dependency {
	return newDependency(Dependency{
		typ:       TypeOf[T](),
		valueType: TypeOf[Optional[T]](),
		wrapping:  WrapOptional,
		optional: func(v any, ok bool) any {
			if !ok {
				return None[T]()
			}
			return Some(v.(T))
		},
	}, opts)
}

// ProviderOf injects a Provider[T] that looks the bean up on every Get. Not
// required by default. Handle edges do not take part in cycle detection.
func ProviderOf[T any](opts ...DependencyOption) Dependency {
	return newDependency(Dependency{
		typ:       TypeOf[T](),
		valueType: TypeOf[Provider[T]](),
		wrapping:  WrapHandle,
		handle: func(get func(context.Context) (any, error)) any {
			return Provider[T]{get: get}
		},
	}, opts)
}

// All injects []T with every bean of type T, primary beans first, then in
// registration order. Required unless NotRequired is given.
func All[T any](opts ...DependencyOption) Dependency {
	return newDependency(Dependency{
		typ:       TypeOf[T](),
		valueType: TypeOf[[]T](),
		required:  true,
		wrapping:  WrapCollection,
		collect: func(vs []any) any {
			out := make([]T, 0, len(vs))
			for _, v := range vs {
				out = append(out, v.(T))
			}
			return out
		},
	}, opts)
}

func newDependency(d Dependency, opts []DependencyOption) Dependency {
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Type returns the capability type the descriptor targets.
func (d Dependency) Type() reflect.Type { return d.typ }

// Qualifier returns the requested qualifier tag, or "".
func (d Dependency) Qualifier() string { return d.qualifier }

// Name returns the parameter/field name used for name matching, or "".
func (d Dependency) Name() string { return d.name }

// IsRequired reports whether a missing candidate fails resolution.
func (d Dependency) IsRequired() bool { return d.required }

// Wrapping returns the injection mode.
func (d Dependency) Wrapping() Wrapping { return d.wrapping }

func (d Dependency) String() string {
	s := fmt.Sprintf("%s %s", d.wrapping, d.typ)
	if d.qualifier != "" {
		s += fmt.Sprintf(" qualifier=%q", d.qualifier)
	}
	if d.name != "" {
		s += fmt.Sprintf(" name=%q", d.name)
	}
	return s
}

// ── Injected wrappers ─────────────────────────────────────────────────────────

// Optional is the value injected for OptionalOf descriptors.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, ok: true} }

// None returns the absent marker.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// Present reports whether a bean was injected.
func (o Optional[T]) Present() bool { return o.ok }

// OrElse returns the value, or fallback when absent.
func (o Optional[T]) OrElse(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}

// Provider is the deferred handle injected for ProviderOf descriptors. Each Get
// resolves again through the container, so a prototype target yields a new
// instance per call and a custom-scoped target follows the scope carried by ctx.
type Provider[T any] struct {
	get func(context.Context) (any, error)
}

// Available reports whether a target bean was found when the handle was built.
func (p Provider[T]) Available() bool { return p.get != nil }

// Get resolves the target bean.
func (p Provider[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if p.get == nil {
		return zero, fmt.Errorf("%w: %s", ErrNoSuchBeanDefinition, TypeOf[T]())
	}
	v, err := p.get(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s", v, TypeOf[T]())
	}
	return out, nil
}
