package form

import (
	_ "embed"

	"github.com/a3tai/textricator/internal/confload"
)

//go:embed schema.json
var schemaJSON []byte

var configSchema = confload.MustCompile("form.schema.json", schemaJSON)

// Parse decodes a YAML form configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := configSchema.Decode(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadFile reads a YAML form configuration.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := configSchema.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
