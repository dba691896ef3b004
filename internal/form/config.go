// Package form parses positioned text into record trees using a finite state
// machine configuration.
package form

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/textricator/internal/record"
)

// DefaultInitialState is used when a configuration names no initial state.
const DefaultInitialState = "INITIAL"

// DefaultRootRecordType is used when a configuration names no root type.
const DefaultRootRecordType = "root"

// Config is a form parse configuration.
type Config struct {
	Extractor      string   `yaml:"extractor"`
	Pages          string   `yaml:"pages"`
	MaxRowDistance *float64 `yaml:"maxRowDistance"`

	Header Limit `yaml:"header"`
	Footer Limit `yaml:"footer"`
	Left   Limit `yaml:"left"`
	Right  Limit `yaml:"right"`

	Conditions    map[string]string `yaml:"conditions"`
	Exclude       []string          `yaml:"exclude"`
	InitialState  string            `yaml:"initialState"`
	NewPageState  string            `yaml:"newPageState"`
	States        map[string]*State `yaml:"states"`
	StateDefaults *State            `yaml:"stateDefaults"`

	RootRecordType string                        `yaml:"rootRecordType"`
	Records        map[string]*record.RecordType `yaml:"recordTypes"`
	Values         map[string]*record.ValueType  `yaml:"valueTypes"`
}

// RootType implements record.Model.
func (c *Config) RootType() string { return c.RootRecordType }

// RecordTypes implements record.Model.
func (c *Config) RecordTypes() map[string]*record.RecordType { return c.Records }

// ValueTypes implements record.Model.
func (c *Config) ValueTypes() map[string]*record.ValueType { return c.Values }

// ApplyDefaults fills unset top-level fields.
func (c *Config) ApplyDefaults() {
	if c.InitialState == "" {
		c.InitialState = DefaultInitialState
	}
	if c.RootRecordType == "" {
		c.RootRecordType = DefaultRootRecordType
	}
	if c.States == nil {
		c.States = map[string]*State{}
	}
	if c.Conditions == nil {
		c.Conditions = map[string]string{}
	}
	if c.Records == nil {
		c.Records = map[string]*record.RecordType{}
	}
	if c.Values == nil {
		c.Values = map[string]*record.ValueType{}
	}
}

// State returns the state with the given id.
func (c *Config) State(id string) (*State, error) {
	s, ok := c.States[id]
	if !ok || s == nil {
		return nil, &ConfigError{Kind: "state", ID: id}
	}
	return s, nil
}

// combineLimit returns the state's combine limit, or the state defaults'.
func (c *Config) combineLimit(s *State) *float64 {
	if s.CombineLimit != nil {
		return s.CombineLimit
	}
	if c.StateDefaults != nil {
		return c.StateDefaults.CombineLimit
	}
	return nil
}

// Limit is a page boundary with optional per-page overrides.
type Limit struct {
	Default *float64        `yaml:"default"`
	Pages   map[int]float64 `yaml:"pages"`
}

// For returns the boundary for page, if one is set.
func (l Limit) For(page int) (float64, bool) {
	if v, ok := l.Pages[page]; ok {
		return v, true
	}
	if l.Default != nil {
		return *l.Default, true
	}
	return 0, false
}

// State is one classification bucket of the FSM.
type State struct {
	// Include false keeps the state in record processing, where it can split
	// neighbours and satisfy StartRecordRequiredState, without output.
	Include                  *bool         `yaml:"include"`
	Skip                     bool          `yaml:"skip"`
	Transitions              []Transition  `yaml:"transitions"`
	StartRecord              bool          `yaml:"startRecord"`
	StartRecordRequiredState string        `yaml:"startRecordRequiredState"`
	StartRecordForEachValue  bool          `yaml:"startRecordForEachValue"`
	ValueTypes               []string      `yaml:"valueTypes"`
	CombineLimit             *float64      `yaml:"combineLimit"`
	SetVariables             []VariableSet `yaml:"setVariables"`
}

// Included reports whether the state's content is emitted in records.
func (s *State) Included() bool { return s.Include == nil || *s.Include }

// Transition moves the FSM to NextState when Condition matches.
type Transition struct {
	Condition string `yaml:"condition"`
	NextState string `yaml:"nextState"`
	Message   string `yaml:"message"`
}

// UnmarshalYAML accepts the long form {condition, nextState, message} and the
// short form {condition: nextState}.
func (t *Transition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: transition must be a mapping", node.Line)
	}

	long := false
	for i := 0; i < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "condition", "nextState", "message":
			long = true
		}
	}

	if long {
		type plain Transition
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*t = Transition(p)
		return nil
	}

	if len(node.Content) != 2 {
		return fmt.Errorf("line %d: short transition must have exactly one condition", node.Line)
	}
	t.Condition = node.Content[0].Value
	t.NextState = node.Content[1].Value
	return nil
}

// VariableSet assigns a FSM variable when text is accepted into a state.
// A Value written "{name}" copies the variable or built-in called name.
type VariableSet struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}
