package config

import "time"

const (
	DefaultPort            = 8237
	DefaultHost            = "localhost"
	DefaultBaseURLTemplate = "https://{workspace}.{region}.alpacon.io"
	DefaultTimeout         = 30 * time.Second
	DefaultDNSCacheRefresh = 5 * time.Minute
	DefaultUserAgent       = "alpacon-mcp"
	DefaultPollInterval    = time.Second
	DefaultSyncTimeout     = 30 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultRegion          = "ap1"
)

// DefaultRegions is the closed set of regions served by the remote API.
var DefaultRegions = []string{"ap1", "us1", "eu1", "dev"}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Transport:   MCPTransportStdio,
			Host:        DefaultHost,
			Port:        DefaultPort,
			Metrics:     true,
			MetricsPath: DefaultMetricsPath,
		},
		Remote: RemoteConfig{
			BaseURLTemplate: DefaultBaseURLTemplate,
			Timeout:         DefaultTimeout,
			DNSCacheRefresh: DefaultDNSCacheRefresh,
			UserAgent:       DefaultUserAgent,
		},
		Credentials: CredentialsConfig{
			Watch: true,
		},
		Commands: CommandsConfig{
			PollInterval: DefaultPollInterval,
			SyncTimeout:  DefaultSyncTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Regions:       append([]string(nil), DefaultRegions...),
		DefaultRegion: DefaultRegion,
	}
}
