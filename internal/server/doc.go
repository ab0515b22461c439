// Package server exposes the alpacon-mcp tool providers over MCP.
//
// It registers every provider's tools with an mcp-go server, adds the
// auth://status and auth://config resources and the websh/webftp session
// resource templates, and serves them over one of three transports:
//
//   - stdio: the default, for clients that spawn the process
//   - sse: GET /sse and POST /message
//   - streamable-http: /mcp
//
// The HTTP transports share a mux that also serves /healthz and, when
// enabled, Prometheus metrics.
package server
