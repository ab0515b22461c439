package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"alpacon-mcp/internal/config"
	"alpacon-mcp/pkg/logging"
)

// Application wires configuration, credentials, the Alpacon client, the
// dispatch pipeline, the tool providers and the MCP server together.
//
// Initialization happens in NewApplication; Run starts the server and blocks
// until it is told to stop.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication performs the bootstrap sequence:
//
//  1. Load .env files
//  2. Load settings (defaults, YAML file, flag overrides)
//  3. Configure logging
//  4. Initialize services
func NewApplication(cfg *Config) (*Application, error) {
	config.LoadEnv(cfg.EnvFiles...)

	if cfg.Settings == nil {
		settings, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Settings = &settings
	}
	cfg.applyOverrides()
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	initLogging(cfg)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// initLogging sends logs to stderr by default. With the stdio transport,
// stdout is the protocol stream and must stay clean.
func initLogging(cfg *Config) {
	var out io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		out = cfg.LogOutput
	}
	level := logging.ParseLevel(cfg.Settings.Logging.Level)
	if strings.EqualFold(cfg.Settings.Logging.Format, "json") {
		logging.InitForJSON(level, out)
		return
	}
	logging.InitForCLI(level, out)
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts the MCP server and blocks until ctx is cancelled, a termination
// signal arrives, or the transport exits on its own.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}
