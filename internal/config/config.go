package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/textricator/internal/output"
)

const (
	// Commands
	CommandText  = "text"
	CommandForm  = "form"
	CommandForms = "forms"
	CommandTable = "table"
	CommandServe = "serve"

	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultFormat      = "csv"

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix prefixes every environment variable, e.g. TEXTRICATOR_LOGLEVEL.
	EnvPrefix = "TEXTRICATOR"

	// Stdout as an output path writes to standard output.
	Stdout = "-"
)

// Commands lists the subcommands in usage order.
var Commands = []string{CommandText, CommandForm, CommandForms, CommandTable, CommandServe}

// TextFormats are the output formats of the text command.
var TextFormats = []string{"csv", "json"}

// ErrVersionRequested is returned by Load when --version is given.
var ErrVersionRequested = errors.New("version requested")

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Config holds the settings of one textricator invocation.
type Config struct {
	Command string

	// Document processing
	Input          string // file, or directory for forms
	InputFormat    string // blank: from the file extension
	Output         string // file, "-" for stdout, or directory for forms
	OutputFormat   string
	ParseConfig    string // form or table YAML
	Pages          string
	MaxRowDistance *float64

	// MCP server
	Mode        string
	Host        string
	Port        int
	Directory   string
	MaxFileSize int64

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Output:       Stdout,
		OutputFormat: DefaultFormat,
		Mode:         ModeStdio,
		Host:         DefaultHost,
		Port:         DefaultPort,
		Directory:    currentDir,
		MaxFileSize:  DefaultMaxFileSize,
		Version:      "1.0.0",
		ServerName:   "textricator",
		LogLevel:     DefaultLogLevel,
	}
}

// Load parses a command line without the program name: the subcommand, its
// flags and its positional input. Environment variables fill in flags that
// were not given.
func Load(args []string) (*Config, error) {
	if checkVersionFlag(args) {
		return nil, ErrVersionRequested
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command, expected one of %s", strings.Join(Commands, ", "))
	}
	cfg := DefaultConfig()
	cfg.Command = args[0]
	if !slices.Contains(Commands, cfg.Command) {
		return nil, fmt.Errorf("unknown command %q, expected one of %s", cfg.Command, strings.Join(Commands, ", "))
	}

	fs := NewFlagSet(cfg)
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	v := newViper(cfg)
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	populateConfigFromViper(v, cfg)

	switch rest := fs.Args(); {
	case cfg.Command == CommandServe:
		if len(rest) > 0 {
			return nil, fmt.Errorf("serve takes no arguments, got %q", rest)
		}
	case len(rest) != 1:
		return nil, fmt.Errorf("%s needs exactly one input path, got %d", cfg.Command, len(rest))
	default:
		cfg.Input = rest[0]
	}

	if cfg.Directory != "" {
		if expandedPath, err := filepath.Abs(cfg.Directory); err == nil {
			cfg.Directory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewFlagSet defines the flags of cfg.Command with cfg's values as defaults.
func NewFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(cfg.Command, pflag.ContinueOnError)
	fs.SortFlags = false
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")

	switch cfg.Command {
	case CommandServe:
		fs.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP (SSE)")
		fs.String("host", cfg.Host, "Server host address (server mode only)")
		fs.Int("port", cfg.Port, "Server port (server mode only)")
		fs.String("dir", cfg.Directory, "Directory that documents and configs are read from")
		fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum document size in bytes")
		return fs
	case CommandText:
		fs.String("pages", cfg.Pages, "Pages to extract, e.g. 1,3-5,10-")
		fs.Float64("max-row-distance", 0, "Group text into rows before writing")
	default:
		fs.StringP("config", "c", cfg.ParseConfig, "Form or table config file (YAML)")
	}
	fs.String("input-format", cfg.InputFormat, "Input format: pdf, pdf.ledongthuc, csv or json (default from extension)")
	fs.StringP("output", "o", cfg.Output, "Output file, '-' for stdout (a directory for forms)")
	fs.String("output-format", cfg.OutputFormat, "Output format")
	return fs
}

// newViper layers environment variables under the flags.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.Directory)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("output-format", cfg.OutputFormat)
	return v
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.LogLevel = v.GetString("loglevel")
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.Directory = v.GetString("dir")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.ParseConfig = v.GetString("config")
	cfg.InputFormat = v.GetString("input-format")
	cfg.Output = v.GetString("output")
	cfg.OutputFormat = strings.ToLower(v.GetString("output-format"))
	cfg.Pages = v.GetString("pages")
	if v.IsSet("max-row-distance") {
		d := v.GetFloat64("max-row-distance")
		cfg.MaxRowDistance = &d
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	switch c.Command {
	case CommandServe:
		return c.validateServer()
	case CommandText:
		if !slices.Contains(TextFormats, c.OutputFormat) {
			return fmt.Errorf("invalid output format %q for text (must be one of: %s)", c.OutputFormat, strings.Join(TextFormats, ", "))
		}
	case CommandForm, CommandForms, CommandTable:
		if c.ParseConfig == "" {
			return fmt.Errorf("%s needs a config file (--config)", c.Command)
		}
		if !slices.Contains(output.Formats, c.OutputFormat) {
			return fmt.Errorf("invalid output format %q (must be one of: %s)", c.OutputFormat, strings.Join(output.Formats, ", "))
		}
		if c.Command != CommandForms && c.OutputFormat == output.FormatSQLite && c.Output == Stdout {
			return errors.New("sqlite output needs a file (--output)")
		}
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}
	return nil
}

func (c *Config) validateServer() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Directory == "" {
		return errors.New("directory cannot be empty")
	}
	if _, err := os.Stat(c.Directory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.Directory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", c.Directory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", c.Directory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// SlogLevel returns the log level as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	return logLevels[c.LogLevel]
}

// IsServerMode returns true if the MCP server runs over HTTP
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP server runs over standard I/O
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	if c.Command == CommandServe {
		return fmt.Sprintf("Config{Command: %s, Mode: %s, Host: %s, Port: %d, Directory: %s, LogLevel: %s, MaxFileSize: %d}",
			c.Command, c.Mode, c.Host, c.Port, c.Directory, c.LogLevel, c.MaxFileSize)
	}
	return fmt.Sprintf("Config{Command: %s, Input: %s, InputFormat: %s, Output: %s, OutputFormat: %s, Config: %s, LogLevel: %s}",
		c.Command, c.Input, c.InputFormat, c.Output, c.OutputFormat, c.ParseConfig, c.LogLevel)
}

// Usage writes the command overview.
func Usage(w io.Writer, program string) {
	fmt.Fprintf(w, "Usage: %s <command> [flags] <input>\n", program)
	fmt.Fprintf(w, "\nTextricator - extract text and records from documents\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  text   INPUT             Extract positioned text as CSV or JSON\n")
	fmt.Fprintf(w, "  form   -c CONFIG INPUT   Parse a form document into records\n")
	fmt.Fprintf(w, "  forms  -c CONFIG DIR     Parse every document in a directory\n")
	fmt.Fprintf(w, "  table  -c CONFIG INPUT   Parse a table document into rows\n")
	fmt.Fprintf(w, "  serve                    Run the MCP server\n")
	fmt.Fprintf(w, "\nRun '%s <command> --help' for the flags of a command.\n", program)
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  %s text --max-row-distance=2 report.pdf\n", program)
	fmt.Fprintf(w, "  %s form -c court.yml -o court.csv docket.pdf\n", program)
	fmt.Fprintf(w, "  %s forms -c court.yml --output-format=json -o out/ dockets/\n", program)
	fmt.Fprintf(w, "  %s serve --mode=server --dir=/path/to/docs\n", program)
	fmt.Fprintf(w, "\nEnvironment Variables:\n")
	fmt.Fprintf(w, "  %s_LOGLEVEL        Log level\n", EnvPrefix)
	fmt.Fprintf(w, "  %s_OUTPUT_FORMAT   Output format\n", EnvPrefix)
	fmt.Fprintf(w, "  %s_MODE            Server mode\n", EnvPrefix)
	fmt.Fprintf(w, "  %s_HOST            Server host\n", EnvPrefix)
	fmt.Fprintf(w, "  %s_PORT            Server port\n", EnvPrefix)
	fmt.Fprintf(w, "  %s_DIR             Server directory\n", EnvPrefix)
	fmt.Fprintf(w, "  %s_MAXFILESIZE     Maximum file size\n", EnvPrefix)
}
