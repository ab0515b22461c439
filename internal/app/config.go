package app

import (
	"io"

	"alpacon-mcp/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the settings file.
	Debug bool

	// ConfigPath is the YAML settings file (optional).
	ConfigPath string

	// EnvFiles are loaded into the environment before anything reads it
	// (default: .env).
	EnvFiles []string

	// TokenFile overrides credential location resolution.
	TokenFile string
	// BaseDir is where the config/ and .config/ credential directories are
	// looked up (default: working directory).
	BaseDir string

	// Overrides applied on top of the settings file when non-zero.
	Transport string
	Host      string
	Port      int

	Version string

	// LogOutput receives logs (default: stderr, stdout carries stdio MCP).
	LogOutput io.Writer
	// Stdin and Stdout are used by the stdio transport.
	Stdin  io.Reader
	Stdout io.Writer

	// Settings is filled by NewApplication; when preset, loading is skipped.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath, tokenFile string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		TokenFile:  tokenFile,
	}
}

// applyOverrides copies flag overrides into the loaded settings.
func (c *Config) applyOverrides() {
	if c.Transport != "" {
		c.Settings.Server.Transport = c.Transport
	}
	if c.Host != "" {
		c.Settings.Server.Host = c.Host
	}
	if c.Port != 0 {
		c.Settings.Server.Port = c.Port
	}
	if c.Debug {
		c.Settings.Logging.Level = "debug"
	}
}
