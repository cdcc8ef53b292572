package container

import (
	"fmt"
	"reflect"
	"sync"
)

// resolver picks the definitions that satisfy dependency descriptors and plans
// construction order. It never instantiates anything.
type resolver struct {
	registry *Registry

	mu sync.RWMutex
	// contextual: consumer bean → needed type → bean name
	contextual map[string]map[reflect.Type]string
}

func newResolver(reg *Registry) *resolver {
	return &resolver{
		registry:   reg,
		contextual: make(map[string]map[reflect.Type]string),
	}
}

// ── Candidate selection ───────────────────────────────────────────────────────

// choose returns the single definition satisfying dep for consumer (which may
// be "" for top-level lookups). A nil definition with a nil error means the
// dependency is absent and not required.
func (r *resolver) choose(consumer string, dep Dependency) (*Definition, error) {
	if def, ok, err := r.contextualTarget(consumer, dep.typ); ok || err != nil {
		return def, err
	}

	cands := r.registry.LookupAllByType(dep.typ)
	switch len(cands) {
	case 0:
		if dep.required {
			return nil, fmt.Errorf("%w: no bean of type %s%s", ErrNoSuchBeanDefinition, dep.typ, neededBy(consumer))
		}
		return nil, nil
	case 1:
		return cands[0], nil
	}

	if dep.qualifier != "" {
		qualified := filter(cands, func(d *Definition) bool { return d.HasQualifier(dep.qualifier) })
		switch len(qualified) {
		case 0:
			if def := byName(cands, dep.name); def != nil {
				return def, nil
			}
			if def := byName(cands, dep.qualifier); def != nil {
				return def, nil
			}
			return nil, fmt.Errorf("%w: no bean of type %s with qualifier %q%s",
				ErrNoSuchBeanDefinition, dep.typ, dep.qualifier, neededBy(consumer))
		case 1:
			return qualified[0], nil
		}
		cands = qualified
	}

	if primaries := filter(cands, (*Definition).IsPrimary); len(primaries) == 1 {
		return primaries[0], nil
	}
	if def := byName(cands, dep.name); def != nil {
		return def, nil
	}
	return nil, &AmbiguousError{Type: dep.typ, Candidates: names(cands)}
}

// all returns every definition satisfying dep, primary beans first and then in
// registration order. No disambiguation is applied.
func (r *resolver) all(dep Dependency) []*Definition {
	cands := r.registry.LookupAllByType(dep.typ)
	out := make([]*Definition, 0, len(cands))
	out = append(out, filter(cands, (*Definition).IsPrimary)...)
	out = append(out, filter(cands, func(d *Definition) bool { return !d.primary })...)
	return out
}

// contextualTarget applies a When/Needs/Give override for consumer.
func (r *resolver) contextualTarget(consumer string, t reflect.Type) (*Definition, bool, error) {
	if consumer == "" {
		return nil, false, nil
	}
	r.mu.RLock()
	name, ok := r.contextual[consumer][t]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	def, found := r.registry.LookupByName(name)
	if !found {
		return nil, true, fmt.Errorf("%w: %q (contextual binding for %s%s)", ErrNoSuchBeanDefinition, name, t, neededBy(consumer))
	}
	if !def.satisfies(t) {
		return nil, true, fmt.Errorf("%w: contextual binding %q has type %s, not assignable to %s",
			ErrInvalidDefinition, name, def.typ, t)
	}
	return def, true, nil
}

func (r *resolver) bindContextual(consumer string, t reflect.Type, bean string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contextual[consumer]; !ok {
		r.contextual[consumer] = make(map[reflect.Type]string)
	}
	r.contextual[consumer][t] = bean
}

// ── Planning ──────────────────────────────────────────────────────────────────

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// needsProxy reports whether target must be injected into consumer through its
// scoped proxy: the target lives in a custom scope the consumer outlives.
func needsProxy(consumer, target *Definition) bool {
	return target.proxy != nil && target.scope.IsCustom() && consumer.scope != target.scope
}

// constructionEdges returns the beans that must be built before def. Handle and
// proxied edges are resolved lazily and are left out; they are still selected
// here so that missing or ambiguous targets surface during planning.
func (r *resolver) constructionEdges(def *Definition) ([]*Definition, error) {
	var edges []*Definition
	for _, dep := range def.Dependencies() {
		if dep.wrapping == WrapCollection {
			targets := r.all(dep)
			if len(targets) == 0 && dep.required {
				return nil, fmt.Errorf("%w: no bean of type %s%s", ErrNoSuchBeanDefinition, dep.typ, neededBy(def.name))
			}
			for _, t := range targets {
				if !needsProxy(def, t) {
					edges = append(edges, t)
				}
			}
			continue
		}

		target, err := r.choose(def.name, dep)
		if err != nil {
			return nil, err
		}
		if target == nil || dep.wrapping == WrapHandle || needsProxy(def, target) {
			continue
		}
		edges = append(edges, target)
	}
	return edges, nil
}

// planner walks the dependency graph depth-first. A bean met again while it is
// still on the stack closes a cycle.
type planner struct {
	r     *resolver
	state map[string]visitState
	stack []string
	order []*Definition
}

// plan validates defs and everything they reach, returning a construction
// order in which every bean follows its dependencies.
func (r *resolver) plan(defs []*Definition) ([]*Definition, error) {
	p := &planner{r: r, state: make(map[string]visitState)}
	for _, def := range defs {
		if err := p.visit(def); err != nil {
			return nil, err
		}
	}
	return p.order, nil
}

func (p *planner) visit(def *Definition) error {
	switch p.state[def.name] {
	case visiting:
		return p.cycle(def.name)
	case visited:
		return nil
	}

	p.state[def.name] = visiting
	p.stack = append(p.stack, def.name)

	edges, err := p.r.constructionEdges(def)
	if err != nil {
		return fmt.Errorf("bean %q: %w", def.name, err)
	}
	for _, dep := range edges {
		if err := p.visit(dep); err != nil {
			return err
		}
	}

	p.stack = p.stack[:len(p.stack)-1]
	p.state[def.name] = visited
	p.order = append(p.order, def)
	return nil
}

func (p *planner) cycle(name string) error {
	start := 0
	for i, n := range p.stack {
		if n == name {
			start = i
			break
		}
	}
	path := make([]string, 0, len(p.stack)-start+1)
	path = append(path, p.stack[start:]...)
	path = append(path, name)
	return &CycleError{Path: path}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func filter(defs []*Definition, keep func(*Definition) bool) []*Definition {
	var out []*Definition
	for _, d := range defs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func byName(defs []*Definition, name string) *Definition {
	if name == "" {
		return nil
	}
	for _, d := range defs {
		if d.name == name {
			return d
		}
	}
	return nil
}

func names(defs []*Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.name
	}
	return out
}

func neededBy(consumer string) string {
	if consumer == "" {
		return ""
	}
	return fmt.Sprintf(" (needed by %q)", consumer)
}
