package output

import (
	"fmt"
	"slices"

	"github.com/a3tai/textricator/internal/record"
)

// column is one value type in a flattened row.
type column struct {
	recordType string
	valueType  string
	label      string
	attribute  string
}

// layout flattens record trees into one row per root-to-leaf path. Columns
// follow the record type tree depth first from the root, keeping each
// type's value type order and skipping excluded value types.
type layout struct {
	model record.Model
	types []string
	cols  []column
}

func newLayout(m record.Model) (*layout, error) {
	l := &layout{model: m}
	seen := map[string]bool{}
	var walk func(typeID string) error
	walk = func(typeID string) error {
		if seen[typeID] {
			return fmt.Errorf("record type %q appears twice in the type tree", typeID)
		}
		seen[typeID] = true
		rt, ok := m.RecordTypes()[typeID]
		if !ok {
			return fmt.Errorf("missing record type %q", typeID)
		}
		l.types = append(l.types, typeID)
		for _, vtID := range rt.ValueTypes {
			vt := m.ValueTypes()[vtID]
			if !vt.Included() {
				continue
			}
			attr := ""
			if vt != nil {
				attr = vt.Attribute
			}
			l.cols = append(l.cols, column{recordType: typeID, valueType: vtID, label: vt.LabelOr(vtID), attribute: attr})
		}
		for _, child := range rt.Children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(m.RootType()); err != nil {
		return nil, err
	}
	return l, nil
}

// labels returns the column headers.
func (l *layout) labels() []string {
	out := make([]string, len(l.cols))
	for i, c := range l.cols {
		out[i] = c.label
	}
	return out
}

type flatRow struct {
	page   int
	values []string
	// ids pairs each value with its value type id.
	ids []string
}

// rows returns one row per leaf of root.
func (l *layout) rows(root *record.Record) []flatRow {
	var (
		out  []flatRow
		path = map[string]*record.Record{}
	)
	var walk func(rec *record.Record)
	walk = func(rec *record.Record) {
		path[rec.TypeID] = rec
		defer delete(path, rec.TypeID)
		if rec.IsLeaf() {
			out = append(out, l.row(path))
			return
		}
		for _, child := range l.children(rec) {
			walk(child)
		}
	}
	walk(root)
	return out
}

// children returns the children of rec in record type order, then any
// undeclared child types by name.
func (l *layout) children(rec *record.Record) []*record.Record {
	var order []string
	if rt, ok := l.model.RecordTypes()[rec.TypeID]; ok {
		order = slices.Clone(rt.Children)
	}
	var extra []string
	for typeID := range rec.Children {
		if !slices.Contains(order, typeID) {
			extra = append(extra, typeID)
		}
	}
	slices.Sort(extra)

	var out []*record.Record
	for _, typeID := range append(order, extra...) {
		out = append(out, rec.Children[typeID]...)
	}
	return out
}

// row picks the page of the path record whose type has the highest page
// priority, the first one on ties.
func (l *layout) row(path map[string]*record.Record) flatRow {
	r := flatRow{page: 0, values: make([]string, len(l.cols)), ids: make([]string, len(l.cols))}
	priority, found := 0, false
	for _, typeID := range l.types {
		rec, ok := path[typeID]
		if !ok {
			continue
		}
		p := l.model.RecordTypes()[typeID].PagePriority
		if !found || p > priority {
			r.page, priority, found = rec.Page, p, true
		}
	}
	for i, c := range l.cols {
		r.ids[i] = c.valueType
		if rec, ok := path[c.recordType]; ok {
			r.values[i] = rec.Value(c.valueType, c.attribute)
		}
	}
	return r
}
