// Package record defines the output record tree, the record/value type
// schema it conforms to, value aggregation and record filtering.
package record

import "maps"

// Value is a piece of extracted content: text plus an optional link.
type Value struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Attribute names accepted by Value.Get.
const (
	AttrText = "text"
	AttrLink = "link"
)

// Get returns the facet of the value selected by attribute. A blank attribute
// selects the text.
func (v Value) Get(attribute string) string {
	if attribute == AttrLink {
		return v.Link
	}
	return v.Text
}

// Record is a node of the output tree.
type Record struct {
	Page     int
	TypeID   string
	Values   map[string]Value
	Children map[string][]*Record
}

// New returns an empty record of the given type.
func New(page int, typeID string) *Record {
	return &Record{
		Page:     page,
		TypeID:   typeID,
		Values:   map[string]Value{},
		Children: map[string][]*Record{},
	}
}

// AddChild appends child to the list for its type.
func (r *Record) AddChild(child *Record) {
	r.Children[child.TypeID] = append(r.Children[child.TypeID], child)
}

// IsLeaf reports whether the record has no children in any child list.
func (r *Record) IsLeaf() bool {
	for _, list := range r.Children {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// Value returns the attribute facet of a value, or "" if absent.
func (r *Record) Value(valueTypeID, attribute string) string {
	v, ok := r.Values[valueTypeID]
	if !ok {
		return ""
	}
	return v.Get(attribute)
}

// Equal reports structural equality: page, type, values and children.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Page != other.Page || r.TypeID != other.TypeID {
		return false
	}
	if !maps.Equal(r.Values, other.Values) {
		return false
	}
	if len(r.Children) != len(other.Children) {
		return false
	}
	for typeID, list := range r.Children {
		otherList, ok := other.Children[typeID]
		if !ok || len(list) != len(otherList) {
			return false
		}
		for i := range list {
			if !list[i].Equal(otherList[i]) {
				return false
			}
		}
	}
	return true
}
