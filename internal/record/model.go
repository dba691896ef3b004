package record

import (
	"fmt"
	"regexp"
	"sync"
)

// Model is the record schema: a root record type, the record types keyed by
// id, and the value types keyed by id.
type Model interface {
	RootType() string
	RecordTypes() map[string]*RecordType
	ValueTypes() map[string]*ValueType
}

// RecordType is a node kind in the output tree schema.
type RecordType struct {
	Label        string   `yaml:"label" json:"label"`
	Children     []string `yaml:"children" json:"children,omitempty"`
	ValueTypes   []string `yaml:"valueTypes" json:"valueTypes,omitempty"`
	PagePriority int      `yaml:"pagePriority" json:"pagePriority,omitempty"`
	Filter       string   `yaml:"filter" json:"filter,omitempty"`
}

// ValueType is a named scalar field with its aggregation rules.
type ValueType struct {
	Label        string               `yaml:"label" json:"label,omitempty"`
	Unrepeat     bool                 `yaml:"unrepeat" json:"unrepeat,omitempty"`
	Separator    *string              `yaml:"separator" json:"separator,omitempty"`
	Replacements []PatternReplacement `yaml:"replacements" json:"replacements,omitempty"`
	Include      *bool                `yaml:"include" json:"include,omitempty"`
	Attribute    string               `yaml:"attribute" json:"attribute,omitempty"`
	Type         string               `yaml:"type" json:"type,omitempty"`
}

// DefaultSeparator joins values when a value type does not set one.
const DefaultSeparator = " "

// Sep returns the join separator.
func (vt *ValueType) Sep() string {
	if vt == nil || vt.Separator == nil {
		return DefaultSeparator
	}
	return *vt.Separator
}

// Included reports whether the value type is emitted in output.
func (vt *ValueType) Included() bool {
	return vt == nil || vt.Include == nil || *vt.Include
}

// LabelOr returns the label, or id when no label is set.
func (vt *ValueType) LabelOr(id string) string {
	if vt == nil || vt.Label == "" {
		return id
	}
	return vt.Label
}

// PatternReplacement is a regex and its replacement template. The template
// uses Go regexp expansion ($1, ${name}).
type PatternReplacement struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`

	once sync.Once
	re   *regexp.Regexp
	err  error
}

// Regexp returns the compiled pattern, compiling it on first use.
func (p *PatternReplacement) Regexp() (*regexp.Regexp, error) {
	p.once.Do(func() {
		p.re, p.err = regexp.Compile(p.Pattern)
		if p.err != nil {
			p.err = fmt.Errorf("invalid replacement pattern %q: %w", p.Pattern, p.err)
		}
	})
	return p.re, p.err
}

// OwnerIndex maps each value type id to the id of the record type owning it.
func OwnerIndex(m Model) map[string]string {
	idx := map[string]string{}
	for typeID, rt := range m.RecordTypes() {
		for _, vt := range rt.ValueTypes {
			idx[vt] = typeID
		}
	}
	return idx
}

// Routes computes, for every record type A, the map from each descendant type
// B of A to the direct child of A through which B is reached.
//
// For A with children B and C, where B has child D, the routes of A are
// {B: B, D: B, C: C}.
func Routes(m Model) (map[string]map[string]string, error) {
	types := m.RecordTypes()
	routes := make(map[string]map[string]string, len(types))

	for typeID, rt := range types {
		dest := map[string]string{}
		var add func(child, descendant string, depth int) error
		add = func(child, descendant string, depth int) error {
			if depth > len(types) {
				return fmt.Errorf("record type %q: cycle through %q", typeID, descendant)
			}
			dt, ok := types[descendant]
			if !ok {
				return fmt.Errorf("missing record type %q (child of %q)", descendant, typeID)
			}
			dest[descendant] = child
			for _, next := range dt.Children {
				if err := add(child, next, depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		for _, child := range rt.Children {
			if err := add(child, child, 0); err != nil {
				return nil, err
			}
		}
		routes[typeID] = dest
	}
	return routes, nil
}

// Schema is a plain Model.
type Schema struct {
	Root    string
	Records map[string]*RecordType
	Values  map[string]*ValueType
}

func (s *Schema) RootType() string                    { return s.Root }
func (s *Schema) RecordTypes() map[string]*RecordType { return s.Records }
func (s *Schema) ValueTypes() map[string]*ValueType   { return s.Values }
