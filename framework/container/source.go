package container

import "slices"

// DefinitionSource produces bean definitions for Container.Load. Service
// providers, manifests and plain slices all satisfy it.
type DefinitionSource interface {
	Definitions() ([]*Definition, error)
}

// Definitions is a fixed list of definitions.
//
//	c.Load(container.Definitions{
//	    container.Define[Clock]("clock", container.Constructor(NewClock)),
//	})
type Definitions []*Definition

func (d Definitions) Definitions() ([]*Definition, error) { return slices.Clone(d), nil }

// Filter decides whether a definition is kept.
type Filter func(*Definition) bool

// ByName matches definitions whose name is one of names.
func ByName(names ...string) Filter {
	return func(d *Definition) bool { return slices.Contains(names, d.name) }
}

// ByQualifier matches definitions carrying tag.
func ByQualifier(tag string) Filter {
	return func(d *Definition) bool { return d.HasQualifier(tag) }
}

// ByRole matches definitions with role r.
func ByRole(r Role) Filter {
	return func(d *Definition) bool { return d.role == r }
}

type filtered struct {
	source           DefinitionSource
	include, exclude Filter
}

// Filtered narrows source: a definition is kept when include is nil or
// matches, and exclude is nil or does not match.
func Filtered(source DefinitionSource, include, exclude Filter) DefinitionSource {
	return filtered{source: source, include: include, exclude: exclude}
}

func (f filtered) Definitions() ([]*Definition, error) {
	defs, err := f.source.Definitions()
	if err != nil {
		return nil, err
	}
	out := defs[:0:0]
	for _, d := range defs {
		if f.include != nil && !f.include(d) {
			continue
		}
		if f.exclude != nil && f.exclude(d) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
