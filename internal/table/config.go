// Package table parses positioned text into flat records by assigning each
// fragment to a column and merging nearby rows.
package table

import (
	_ "embed"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/textricator/internal/confload"
	"github.com/a3tai/textricator/internal/record"
)

// RowType is the record type of every table row.
const RowType = "row"

// Config is a table parse configuration.
type Config struct {
	Extractor      string   `yaml:"extractor"`
	Pages          string   `yaml:"pages"`
	MaxRowDistance *float64 `yaml:"maxRowDistance"`

	Top    *float64 `yaml:"top"`
	Bottom *float64 `yaml:"bottom"`
	Right  *float64 `yaml:"right"`

	PageConfigs map[int]PageConfig `yaml:"pageConfigs"`

	Cols   Columns                      `yaml:"cols"`
	Types  map[string]*record.ValueType `yaml:"types"`
	Filter string                       `yaml:"filter"`
}

// PageConfig overrides bounds for one page, or skips it.
type PageConfig struct {
	Top    *float64 `yaml:"top"`
	Bottom *float64 `yaml:"bottom"`
	Right  *float64 `yaml:"right"`
	Skip   bool     `yaml:"skip"`
}

// Column is a column id and the x position where it starts.
type Column struct {
	ID string
	X  float64
}

// Columns keeps the document order of the cols mapping.
type Columns []Column

// UnmarshalYAML reads a {id: x} mapping in order.
func (c *Columns) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: cols must be a mapping of column id to x position", node.Line)
	}
	cols := make(Columns, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		var x float64
		if err := node.Content[i+1].Decode(&x); err != nil {
			return fmt.Errorf("column %q: %w", node.Content[i].Value, err)
		}
		cols = append(cols, Column{ID: node.Content[i].Value, X: x})
	}
	*c = cols
	return nil
}

type bounds struct {
	top, bottom, left, right float64
}

// bounds returns the area of page that fragments must start in.
func (c *Config) bounds(page int) bounds {
	b := bounds{top: 0, bottom: math.Inf(1), right: math.Inf(1)}
	if len(c.Cols) > 0 {
		b.left = c.Cols[0].X
	}
	pick := func(dst *float64, vals ...*float64) {
		for _, v := range vals {
			if v != nil {
				*dst = *v
				return
			}
		}
	}
	pc := c.PageConfigs[page]
	pick(&b.top, pc.Top, c.Top)
	pick(&b.bottom, pc.Bottom, c.Bottom)
	pick(&b.right, pc.Right, c.Right)
	return b
}

// RootType implements record.Model.
func (c *Config) RootType() string { return RowType }

// RecordTypes implements record.Model: a single row type owning every column.
func (c *Config) RecordTypes() map[string]*record.RecordType {
	ids := make([]string, len(c.Cols))
	for i, col := range c.Cols {
		ids[i] = col.ID
	}
	return map[string]*record.RecordType{
		RowType: {Label: RowType, ValueTypes: ids, Filter: c.Filter},
	}
}

// ValueTypes implements record.Model. Columns without a type get a default.
func (c *Config) ValueTypes() map[string]*record.ValueType {
	out := make(map[string]*record.ValueType, len(c.Cols))
	for _, col := range c.Cols {
		vt := c.Types[col.ID]
		if vt == nil {
			vt = &record.ValueType{}
		}
		out[col.ID] = vt
	}
	return out
}

//go:embed schema.json
var schemaJSON []byte

var configSchema = confload.MustCompile("table.schema.json", schemaJSON)

// Parse decodes a YAML table configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := configSchema.Decode(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a YAML table configuration.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := configSchema.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
