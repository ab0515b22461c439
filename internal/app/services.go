package app

import (
	"fmt"
	"net/http"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/config"
	"alpacon-mcp/internal/credentials"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/internal/metrics"
	"alpacon-mcp/internal/remote"
	"alpacon-mcp/internal/server"
	"alpacon-mcp/internal/tools"
	"alpacon-mcp/pkg/logging"
)

// Services holds every component the server needs at runtime.
//
// Initialization order:
//  1. Credential store (and its watcher when enabled)
//  2. Metrics registry
//  3. Alpacon API client
//  4. Dispatch pipeline
//  5. Tool providers
//  6. MCP server
type Services struct {
	Store     *credentials.Store
	Watcher   *credentials.Watcher
	Metrics   *metrics.Metrics
	Client    *remote.Client
	Pipeline  *dispatch.Pipeline
	Providers []*tools.Provider
	Server    *server.Server
}

// InitializeServices builds the service graph from cfg.Settings.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := cfg.Settings

	override := cfg.TokenFile
	if override == "" {
		override = settings.Credentials.TokenFile
	}
	loc := config.ResolveTokenLocation(override, cfg.BaseDir)
	store, err := credentials.Open(credentials.Options{
		Path:       loc.Path,
		Fallbacks:  loc.Fallbacks,
		DevMode:    loc.DevMode,
		DevModeEnv: loc.DevModeEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	logging.Info("Services", "Using credential file %s (dev mode: %t)", store.Path(), loc.DevMode)

	s := &Services{Store: store}
	if settings.Credentials.Watch {
		s.Watcher = credentials.NewWatcher(store, credentials.WatcherConfig{
			OnReload: func() {
				logging.Info("Services", "Credential file reloaded")
			},
		})
	}

	s.Metrics = metrics.New()
	s.Client = remote.New(remote.Options{
		BaseURLTemplate: settings.Remote.BaseURLTemplate,
		Timeout:         settings.Remote.Timeout,
		UserAgent:       userAgent(settings.Remote.UserAgent, cfg.Version),
		DNSCacheRefresh: settings.Remote.DNSCacheRefresh,
		Metrics:         s.Metrics,
	})
	s.Pipeline = dispatch.New(store, dispatch.Options{
		Regions:       settings.Regions,
		DefaultRegion: settings.DefaultRegion,
		Metrics:       s.Metrics,
	})

	s.Providers = tools.NewProviders(tools.Deps{
		Pipeline:            s.Pipeline,
		Client:              s.Client,
		Store:               store,
		CommandPollInterval: settings.Commands.PollInterval,
		CommandTimeout:      settings.Commands.SyncTimeout,
	})
	providers := make([]api.ToolProvider, 0, len(s.Providers))
	for _, p := range s.Providers {
		providers = append(providers, p)
	}

	var metricsHandler http.Handler
	if settings.Server.Metrics {
		metricsHandler = s.Metrics.Handler()
	}
	s.Server = server.New(server.Config{
		Version:        cfg.Version,
		Transport:      settings.Server.Transport,
		Host:           settings.Server.Host,
		Port:           settings.Server.Port,
		BaseURL:        settings.Server.BaseURL,
		MetricsHandler: metricsHandler,
		MetricsPath:    settings.Server.MetricsPath,
		Stdin:          cfg.Stdin,
		Stdout:         cfg.Stdout,
	}, providers, store)

	return s, nil
}

func userAgent(base, version string) string {
	if version == "" {
		return base
	}
	return base + "/" + version
}

// Close releases background resources. It is safe to call more than once.
func (s *Services) Close() {
	if s.Watcher != nil && s.Watcher.IsRunning() {
		if err := s.Watcher.Stop(); err != nil {
			logging.Warn("Services", "Error stopping credential watcher: %v", err)
		}
	}
	if s.Client != nil {
		s.Client.Close()
	}
}
