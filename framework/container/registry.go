package container

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry stores bean definitions by name, in registration order. It only
// stores and looks up; choosing among several candidates is the resolver's job.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Definition
	aliases map[string]string
	order   []*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Definition),
		aliases: make(map[string]string),
	}
}

// Register validates and stores a copy of def, so options applied to def
// afterwards do not reach the registered definition. A name already used by a
// definition or an alias fails with ErrDuplicateDefinition.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	def = def.Derive()
	if err := def.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(def.name) {
		return fmt.Errorf("%w: %q", ErrDuplicateDefinition, def.name)
	}
	r.byName[def.name] = def
	r.order = append(r.order, def)
	return nil
}

// Alias registers an alternative name for an existing bean.
//
//	// Spring: <alias name="memberService" alias="members"/>
//	reg.Alias("memberService", "members")
func (r *Registry) Alias(name, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == alias {
		return fmt.Errorf("%w: %q is aliased to itself", ErrInvalidDefinition, name)
	}
	if _, ok := r.byName[r.canonical(name)]; !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchBeanDefinition, name)
	}
	if r.taken(alias) {
		return fmt.Errorf("%w: alias %q", ErrDuplicateDefinition, alias)
	}
	r.aliases[alias] = r.canonical(name)
	return nil
}

// LookupByName returns the definition registered under name or one of its
// aliases.
func (r *Registry) LookupByName(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[r.canonical(name)]
	return def, ok
}

// LookupAllByType returns every definition whose declared type satisfies t,
// in registration order.
func (r *Registry) LookupAllByType(t reflect.Type) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Definition
	for _, def := range r.order {
		if def.satisfies(t) {
			out = append(out, def)
		}
	}
	return out
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns all bean names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	for i, def := range r.order {
		out[i] = def.name
	}
	return out
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) taken(name string) bool {
	_, isBean := r.byName[name]
	_, isAlias := r.aliases[name]
	return isBean || isAlias
}

// canonical resolves an alias to its bean name (must hold mu).
func (r *Registry) canonical(name string) string {
	if target, ok := r.aliases[name]; ok {
		return target
	}
	return name
}
