package config

import "time"

// Config is the top-level configuration structure for alpacon-mcp.
type Config struct {
	Server        ServerConfig      `yaml:"server"`
	Remote        RemoteConfig      `yaml:"remote"`
	Credentials   CredentialsConfig `yaml:"credentials"`
	Commands      CommandsConfig    `yaml:"commands"`
	Logging       LoggingConfig     `yaml:"logging"`
	Regions       []string          `yaml:"regions,omitempty"`       // Allowed region codes (default: ap1, us1, eu1, dev)
	DefaultRegion string            `yaml:"defaultRegion,omitempty"` // Region used when a tool call omits it (default: ap1)
}

const (
	// MCPTransportStreamableHTTP is the streamable HTTP transport.
	MCPTransportStreamableHTTP = "streamable-http"
	// MCPTransportSSE is the Server-Sent Events transport.
	MCPTransportSSE = "sse"
	// MCPTransportStdio is the standard I/O transport.
	MCPTransportStdio = "stdio"
)

// ServerConfig defines how the MCP server is exposed.
type ServerConfig struct {
	Transport   string `yaml:"transport,omitempty"`   // Transport to use (default: stdio)
	Host        string `yaml:"host,omitempty"`        // Host to bind to for HTTP transports (default: localhost)
	Port        int    `yaml:"port,omitempty"`        // Port for HTTP transports (default: 8237)
	BaseURL     string `yaml:"baseURL,omitempty"`     // Public base URL advertised by the SSE transport
	Metrics     bool   `yaml:"metrics"`               // Serve Prometheus metrics on HTTP transports
	MetricsPath string `yaml:"metricsPath,omitempty"` // Path for metrics (default: /metrics)
}

// RemoteConfig controls calls to the Alpacon API.
type RemoteConfig struct {
	// BaseURLTemplate may reference {workspace} and {region}.
	BaseURLTemplate string        `yaml:"baseURLTemplate,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	DNSCacheRefresh time.Duration `yaml:"dnsCacheRefresh,omitempty"`
	UserAgent       string        `yaml:"userAgent,omitempty"`
}

// CredentialsConfig controls where API tokens are stored.
type CredentialsConfig struct {
	TokenFile string `yaml:"tokenFile,omitempty"` // Explicit credential file, overrides dev/prod resolution
	Watch     bool   `yaml:"watch"`               // Reload the credential file when it changes on disk
}

// CommandsConfig tunes synchronous command execution.
type CommandsConfig struct {
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	SyncTimeout  time.Duration `yaml:"syncTimeout,omitempty"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}
