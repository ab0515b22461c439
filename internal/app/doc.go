// Package app wires alpacon-mcp together and runs it.
//
// NewApplication loads .env files and the YAML settings, applies flag
// overrides, configures logging and builds the Services graph: credential
// store and watcher, metrics, the Alpacon API client, the dispatch pipeline,
// the tool providers and the MCP server. Run starts the configured
// transport and blocks until a termination signal, context cancellation, or
// the transport closing (stdin EOF in stdio mode).
//
// Logs always go to stderr unless Config.LogOutput says otherwise, because
// stdout carries the protocol stream in stdio mode.
package app
