package container

import (
	"context"
	"fmt"
)

// Target is handed to a ScopedProxy wrapper. It resolves the real bean against
// whichever scope context ctx carries, so the wrapper itself holds no state
// and can be embedded once into a longer-lived bean.
//
//	type loggerProxy struct{ target container.Target[RequestLogger] }
//
//	func (p loggerProxy) Log(ctx context.Context, msg string) {
//	    p.target.MustGet(ctx).Log(ctx, msg)
//	}
type Target[T any] struct {
	bean string
	get  func(context.Context) (any, error)
}

// Bean returns the name of the proxied bean.
func (t Target[T]) Bean() string { return t.bean }

// Get resolves the bean in the scope context carried by ctx, creating it on
// first use within that context. It fails with ErrScopeNotActive outside one.
func (t Target[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if t.get == nil {
		return zero, fmt.Errorf("%w: proxy for %q is not bound", ErrNoSuchBeanDefinition, t.bean)
	}
	v, err := t.get(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("proxy %q: cannot convert %T to %s", t.bean, v, TypeOf[T]())
	}
	return out, nil
}

// MustGet is Get for capability methods that cannot return an error. It
// panics when resolution fails.
func (t Target[T]) MustGet(ctx context.Context) T {
	v, err := t.Get(ctx)
	if err != nil {
		panic(fmt.Sprintf("container: scoped proxy %q: %v", t.bean, err))
	}
	return v
}

// buildProxy creates the single forwarding wrapper for def. It is called at
// registration.
func (c *Container) buildProxy(def *Definition) any {
	return def.proxy(func(ctx context.Context) (any, error) {
		inst, err := c.instance(ctx, def)
		if err != nil {
			return nil, err
		}
		return inst.value, nil
	})
}
