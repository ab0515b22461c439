package api

import (
	"context"
)

// CallToolResult represents the result of a tool call before it is converted
// to the MCP wire type.
type CallToolResult struct {
	Content []interface{} `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ToolMetadata describes a tool that can be exposed over MCP.
type ToolMetadata struct {
	Name        string // e.g., "list_servers", "execute_command_sync"
	Description string
	Parameters  []ParameterMetadata
}

// ParameterMetadata describes a tool parameter.
type ParameterMetadata struct {
	Name        string
	Type        string // "string", "number", "integer", "boolean", "object", "array"
	Required    bool
	Description string
	Default     interface{}
	// Items is the element type for "array" parameters.
	Items string
}

// ToolProvider is implemented by every group of tools (servers, commands,
// metrics, ...). The MCP server asks each provider for its metadata and
// routes calls back by name.
type ToolProvider interface {
	// Returns all tools this provider offers
	GetTools() []ToolMetadata

	// Executes a tool by name
	ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (*CallToolResult, error)
}

// Common parameters shared by every remote-backed tool.
var (
	WorkspaceParam = ParameterMetadata{
		Name:        "workspace",
		Type:        "string",
		Required:    true,
		Description: "Workspace name (e.g. 'mycompany')",
	}
	RegionParam = ParameterMetadata{
		Name:        "region",
		Type:        "string",
		Description: "Region code (ap1, us1, eu1, dev)",
		Default:     "ap1",
	}
)

// TargetParams returns the workspace and region parameters followed by extra.
func TargetParams(extra ...ParameterMetadata) []ParameterMetadata {
	params := make([]ParameterMetadata, 0, len(extra)+2)
	params = append(params, WorkspaceParam, RegionParam)
	return append(params, extra...)
}
