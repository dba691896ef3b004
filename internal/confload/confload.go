// Package confload decodes YAML parse configurations after validating them
// against a JSON schema.
package confload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Schema is a compiled JSON schema for one configuration kind.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// MustCompile compiles an embedded schema document. It panics on a malformed
// schema.
func MustCompile(name string, doc []byte) *Schema {
	s, err := Compile(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Compile compiles a JSON schema document.
func Compile(name string, doc []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: schema}, nil
}

// Validate checks a YAML document against the schema.
func (s *Schema) Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round trip through JSON so map keys are strings and numbers float64.
	b, err := json.Marshal(normalize(doc))
	if err != nil {
		return fmt.Errorf("convert yaml: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("convert yaml: %w", err)
	}
	if err := s.schema.Validate(v); err != nil {
		return fmt.Errorf("config does not match schema %s: %w", s.name, err)
	}
	return nil
}

// Decode validates data and unmarshals it into out.
func (s *Schema) Decode(data []byte, out any) error {
	if err := s.Validate(data); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// DecodeFile reads path and decodes it with Decode.
func (s *Schema) DecodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.Decode(data, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// normalize converts the map[any]any values yaml produces for non-string
// keys into map[string]any.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}
