// Package tools implements the MCP tools exposed by alpacon-mcp.
//
// Tools are grouped into providers by remote area (servers, commands,
// metrics, events, iam, system, workspace, websh, webftp, auth). Each tool
// is declared as metadata plus a dispatch.Operation, so input validation
// and credential resolution happen in the shared pipeline before the tool's
// own function talks to the Alpacon API.
package tools
