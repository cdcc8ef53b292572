package container

import (
	"fmt"
	"reflect"
)

// ContextualBuilder implements the fluent contextual binding API. A contextual
// binding pins which bean a single consumer receives for a type and wins over
// qualifier, primary and name matching.
//
//	c.When("orderService").Needs(container.TypeOf[DiscountPolicy]()).Give("fixDiscountPolicy")
type ContextualBuilder struct {
	container *Container
	consumer  string
	needs     reflect.Type
}

// When starts a contextual binding for the consumer bean.
func (c *Container) When(consumer string) *ContextualBuilder {
	return &ContextualBuilder{container: c, consumer: consumer}
}

// Needs specifies the dependency type being overridden.
func (b *ContextualBuilder) Needs(t reflect.Type) *ContextualBuilder {
	b.needs = t
	return b
}

// Give names the bean injected into the consumer for the needed type. The
// target is checked when the container starts.
func (b *ContextualBuilder) Give(bean string) error {
	if b.needs == nil {
		return fmt.Errorf("%w: contextual binding for %q has no Needs type", ErrInvalidDefinition, b.consumer)
	}
	c := b.container
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutable(); err != nil {
		return err
	}
	c.resolver.bindContextual(b.consumer, b.needs, bean)
	return nil
}
