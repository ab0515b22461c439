package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"alpacon-mcp/pkg/logging"
)

// Environment variables consulted during startup.
const (
	EnvDevMode    = "ALPACON_DEV"
	EnvTokenFile  = "ALPACON_MCP_TOKEN_FILE"
	EnvConfigFile = "ALPACON_MCP_CONFIG"
)

// LoadEnv loads .env files into the process environment. Variables that are
// already set are not overridden. Missing files are skipped.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logging.Warn("ConfigLoader", "Failed to load %s: %v", f, err)
			continue
		}
		logging.Debug("ConfigLoader", "Loaded environment overrides from %s", f)
	}
}

// LoadConfig loads the YAML settings file at path on top of the defaults.
// An empty path falls back to $ALPACON_MCP_CONFIG; when neither is set, or
// the file does not exist, the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := GetDefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		return cfg, nil
	}

	// #nosec G304 -- path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config found at %s, using defaults", path)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return cfg, nil
}

// applyDefaults fills zero values left by a partial settings file.
func (c *Config) applyDefaults() {
	d := GetDefaultConfig()
	if c.Server.Transport == "" {
		c.Server.Transport = d.Server.Transport
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = d.Server.MetricsPath
	}
	if c.Remote.BaseURLTemplate == "" {
		c.Remote.BaseURLTemplate = d.Remote.BaseURLTemplate
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = d.Remote.Timeout
	}
	if c.Remote.DNSCacheRefresh == 0 {
		c.Remote.DNSCacheRefresh = d.Remote.DNSCacheRefresh
	}
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = d.Remote.UserAgent
	}
	if c.Commands.PollInterval == 0 {
		c.Commands.PollInterval = d.Commands.PollInterval
	}
	if c.Commands.SyncTimeout == 0 {
		c.Commands.SyncTimeout = d.Commands.SyncTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if len(c.Regions) == 0 {
		c.Regions = d.Regions
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = d.DefaultRegion
	}
}

var transports = []string{MCPTransportStdio, MCPTransportSSE, MCPTransportStreamableHTTP}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	var errs ValidationErrors

	if ValidateOneOf("server.transport", c.Server.Transport, transports) != nil {
		errs.Add("server.transport", fmt.Sprintf("unsupported transport %q", c.Server.Transport), c.Server.Transport)
	}
	errs.AddIf(ValidateRange("server.port", c.Server.Port, 0, 65535))
	if c.Remote.Timeout < 0 {
		errs.Add("remote.timeout", "must not be negative", c.Remote.Timeout)
	}
	if c.Commands.PollInterval < 0 || c.Commands.SyncTimeout < 0 {
		errs.Add("commands", "durations must not be negative")
	}
	if len(c.Regions) > 0 {
		errs.AddIf(ValidateOneOf("defaultRegion", c.DefaultRegion, c.Regions))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
