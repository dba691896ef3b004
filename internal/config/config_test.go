package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}
	if cfg.ServerName != "textricator" {
		t.Errorf("Expected default server name to be 'textricator', got '%s'", cfg.ServerName)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}
	if cfg.Output != Stdout || cfg.OutputFormat != "csv" {
		t.Errorf("Expected output to default to csv on stdout, got %s %s", cfg.OutputFormat, cfg.Output)
	}
	if cfg.MaxRowDistance != nil {
		t.Errorf("Expected no default max row distance, got %v", *cfg.MaxRowDistance)
	}

	currentDir, _ := os.Getwd()
	if cfg.Directory != currentDir {
		t.Errorf("Expected default directory to be '%s', got '%s'", currentDir, cfg.Directory)
	}
}

func TestConfigValidate(t *testing.T) {
	tempDir := t.TempDir()

	server := func(edit func(*Config)) *Config {
		cfg := DefaultConfig()
		cfg.Command = CommandServe
		cfg.Directory = tempDir
		edit(cfg)
		return cfg
	}
	parse := func(command string, edit func(*Config)) *Config {
		cfg := DefaultConfig()
		cfg.Command = command
		cfg.Input = "in.pdf"
		cfg.ParseConfig = "form.yml"
		edit(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{"valid stdio server", server(func(*Config) {}), ""},
		{"valid http server", server(func(c *Config) { c.Mode = ModeServer }), ""},
		{"invalid mode", server(func(c *Config) { c.Mode = "invalid" }), "mode must be"},
		{"port too low", server(func(c *Config) { c.Mode = ModeServer; c.Port = 0 }), "port must be"},
		{"port too high", server(func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }), "port must be"},
		{"port ignored in stdio mode", server(func(c *Config) { c.Port = 0 }), ""},
		{"empty directory", server(func(c *Config) { c.Directory = "" }), "directory cannot be empty"},
		{"invalid max file size", server(func(c *Config) { c.MaxFileSize = 0 }), "must be positive"},
		{"invalid log level", server(func(c *Config) { c.LogLevel = "invalid" }), "invalid log level"},
		{"valid form", parse(CommandForm, func(*Config) {}), ""},
		{"valid table xlsx", parse(CommandTable, func(c *Config) { c.OutputFormat = "xlsx" }), ""},
		{"form without config", parse(CommandForm, func(c *Config) { c.ParseConfig = "" }), "needs a config file"},
		{"unknown record format", parse(CommandForm, func(c *Config) { c.OutputFormat = "yaml" }), "invalid output format"},
		{"sqlite to stdout", parse(CommandTable, func(c *Config) { c.OutputFormat = "sqlite" }), "sqlite output needs a file"},
		{"sqlite to file", parse(CommandTable, func(c *Config) { c.OutputFormat = "sqlite"; c.Output = "out.db" }), ""},
		{"sqlite batch", parse(CommandForms, func(c *Config) { c.OutputFormat = "sqlite" }), ""},
		{"text json", parse(CommandText, func(c *Config) { c.OutputFormat = "json" }), ""},
		{"text xml", parse(CommandText, func(c *Config) { c.OutputFormat = "xml" }), "for text"},
		{"unknown command", parse("scan", func(*Config) {}), "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "docs")
	cfg := DefaultConfig()
	cfg.Command = CommandServe
	cfg.Directory = dir

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() unexpected error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected %s to be created, got %v", dir, err)
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{
		Host: "192.168.1.1",
		Port: 9090,
	}

	expected := "192.168.1.1:9090"
	if got := cfg.Address(); got != expected {
		t.Errorf("Config.Address() = %v, want %v", got, expected)
	}
}

func TestConfigLogLevels(t *testing.T) {
	tests := []struct {
		logLevel  string
		wantDebug bool
		wantLevel slog.Level
	}{
		{"debug", true, slog.LevelDebug},
		{"info", false, slog.LevelInfo},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.wantDebug {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.wantDebug)
			}
			if got := cfg.SlogLevel(); got != tt.wantLevel {
				t.Errorf("Config.SlogLevel() = %v, want %v", got, tt.wantLevel)
			}
		})
	}
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeServer}
	if !cfg.IsServerMode() || cfg.IsStdioMode() {
		t.Errorf("Expected server mode for %q", cfg.Mode)
	}
	cfg.Mode = ModeStdio
	if cfg.IsServerMode() || !cfg.IsStdioMode() {
		t.Errorf("Expected stdio mode for %q", cfg.Mode)
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Command = CommandServe
	cfg.Directory = "/docs"
	want := "Config{Command: serve, Mode: stdio, Host: 127.0.0.1, Port: 8080, Directory: /docs, LogLevel: info, MaxFileSize: 104857600}"
	if got := cfg.String(); got != want {
		t.Errorf("Config.String() = %v, want %v", got, want)
	}

	cfg.Command = CommandForm
	cfg.Input = "a.pdf"
	cfg.ParseConfig = "form.yml"
	for _, part := range []string{"Command: form", "Input: a.pdf", "Config: form.yml", "OutputFormat: csv"} {
		if !strings.Contains(cfg.String(), part) {
			t.Errorf("Config.String() = %v, missing %q", cfg.String(), part)
		}
	}
}

func TestUsage(t *testing.T) {
	var b strings.Builder
	Usage(&b, "textricator")
	for _, want := range append(Commands, "TEXTRICATOR_LOGLEVEL", "Usage: textricator <command>") {
		if !strings.Contains(b.String(), want) {
			t.Errorf("Usage() missing %q", want)
		}
	}
}
