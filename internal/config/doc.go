// Package config loads alpacon-mcp settings.
//
// Settings come from three layers, later ones winning:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. An optional YAML file (--config or $ALPACON_MCP_CONFIG)
//  3. Command line flags applied by cmd/serve
//
// Environment variables may be supplied through a .env file, loaded with
// LoadEnv before anything reads the environment.
//
// # Example
//
//	server:
//	  transport: streamable-http
//	  host: 0.0.0.0
//	  port: 8237
//	remote:
//	  timeout: 20s
//	commands:
//	  syncTimeout: 60s
//	regions: [ap1, us1, eu1, dev]
//	defaultRegion: ap1
//
// # Credential location
//
// ResolveTokenLocation picks the credential file: an explicit path wins,
// then the development directory (.config, used when it exists or
// ALPACON_DEV=true), then the production directory (config).
package config
