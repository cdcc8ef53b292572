// Package manifest reads a YAML bean manifest: component filters that decide
// which definitions are registered, per-bean metadata overrides and aliases.
//
//	include:
//	  qualifiers: [web]
//	exclude:
//	  names: [legacyClient]
//	beans:
//	  rateDiscountPolicy:
//	    primary: false
//	  fixDiscountPolicy:
//	    primary: true
//	    qualifiers: [default]
//	aliases:
//	  orderService: [orders]
//
// A manifest only produces definitions; it never touches instances.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-beans/framework/container"
)

// Manifest is the decoded YAML document.
type Manifest struct {
	Include Selector            `yaml:"include"`
	Exclude Selector            `yaml:"exclude"`
	Beans   map[string]Override `yaml:"beans"`
	Aliases map[string][]string `yaml:"aliases"`
}

// Selector matches definitions by name, qualifier or role. An empty selector
// matches nothing and is ignored.
type Selector struct {
	Names      []string `yaml:"names"`
	Qualifiers []string `yaml:"qualifiers"`
	Roles      []string `yaml:"roles"`
}

// Override changes metadata of one definition before it is registered. Nil
// fields keep the definition's value.
type Override struct {
	Scope      string   `yaml:"scope"`
	Primary    *bool    `yaml:"primary"`
	Lazy       *bool    `yaml:"lazy"`
	Qualifiers []string `yaml:"qualifiers"`
}

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return Parse(data)
}

func (m *Manifest) validate() error {
	for _, sel := range []Selector{m.Include, m.Exclude} {
		for _, r := range sel.Roles {
			if _, err := parseRole(r); err != nil {
				return err
			}
		}
	}
	for name, o := range m.Beans {
		if name == "" {
			return errors.New("manifest: bean override with empty name")
		}
		if o.Lazy != nil && !*o.Lazy {
			return fmt.Errorf("manifest: bean %q: lazy can only be switched on", name)
		}
	}
	return nil
}

// Apply wraps source so its definitions pass through the manifest's filters
// and overrides.
func (m *Manifest) Apply(source container.DefinitionSource) container.DefinitionSource {
	return overridden{
		source:   container.Filtered(source, m.Include.filter(), m.Exclude.filter()),
		manifest: m,
	}
}

// RegisterAliases registers every alias of the manifest in c.
func (m *Manifest) RegisterAliases(c *container.Container) error {
	names := make([]string, 0, len(m.Aliases))
	for name := range m.Aliases {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for _, alias := range m.Aliases[name] {
			if err := c.Alias(name, alias); err != nil {
				return fmt.Errorf("manifest alias %q -> %q: %w", alias, name, err)
			}
		}
	}
	return nil
}

type overridden struct {
	source   container.DefinitionSource
	manifest *Manifest
}

func (o overridden) Definitions() ([]*container.Definition, error) {
	defs, err := o.source.Definitions()
	if err != nil {
		return nil, err
	}
	out := make([]*container.Definition, len(defs))
	for i, def := range defs {
		if ov, ok := o.manifest.Beans[def.Name()]; ok {
			def = def.Derive(ov.options()...)
		}
		out[i] = def
	}
	return out, nil
}

func (o Override) options() []container.BeanOption {
	var opts []container.BeanOption
	if o.Scope != "" {
		opts = append(opts, container.WithScope(container.Scope(o.Scope)))
	}
	if o.Primary != nil {
		if *o.Primary {
			opts = append(opts, container.Primary())
		} else {
			opts = append(opts, container.NotPrimary())
		}
	}
	if o.Lazy != nil && *o.Lazy {
		opts = append(opts, container.Lazy())
	}
	if len(o.Qualifiers) > 0 {
		opts = append(opts, container.Qualifier(o.Qualifiers...))
	}
	return opts
}

func (s Selector) filter() container.Filter {
	if len(s.Names) == 0 && len(s.Qualifiers) == 0 && len(s.Roles) == 0 {
		return nil
	}
	return func(d *container.Definition) bool {
		if slices.Contains(s.Names, d.Name()) {
			return true
		}
		for _, q := range s.Qualifiers {
			if d.HasQualifier(q) {
				return true
			}
		}
		for _, r := range s.Roles {
			if role, _ := parseRole(r); role == d.Role() {
				return true
			}
		}
		return false
	}
}

func parseRole(s string) (container.Role, error) {
	switch s {
	case "application":
		return container.RoleApplication, nil
	case "infrastructure":
		return container.RoleInfrastructure, nil
	default:
		return 0, fmt.Errorf("manifest: unknown role %q", s)
	}
}
