package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/pkg/logging"
)

// createToolsFromProviders converts every provider's tool metadata into MCP
// server tools whose handlers route back to the owning provider.
func (s *Server) createToolsFromProviders() []mcpserver.ServerTool {
	var tools []mcpserver.ServerTool
	for _, provider := range s.providers {
		for _, toolMeta := range provider.GetTools() {
			tools = append(tools, mcpserver.ServerTool{
				Tool: mcp.Tool{
					Name:        toolMeta.Name,
					Description: toolMeta.Description,
					InputSchema: convertToMCPSchema(toolMeta.Parameters),
				},
				Handler: s.createToolHandler(provider, toolMeta.Name),
			})
		}
	}
	return tools
}

// createToolHandler wraps provider.ExecuteTool in an MCP handler. Provider
// errors (unknown tool, encoding failures) become MCP error results;
// everything else already arrives as a rendered envelope.
func (s *Server) createToolHandler(provider api.ToolProvider, toolName string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			}
		}

		result, err := provider.ExecuteTool(ctx, toolName, args)
		if err != nil {
			logging.Error("Server", err, "Tool execution failed for %s with args %v", toolName, logging.RedactArgs(args))
			return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %v", err)), nil
		}
		return convertToMCPResult(result), nil
	}
}

// convertToMCPSchema builds the JSON schema advertised for a tool's input.
func convertToMCPSchema(params []api.ParameterMetadata) mcp.ToolInputSchema {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range params {
		propSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Type == "array" {
			items := param.Items
			if items == "" {
				items = "string"
			}
			propSchema["items"] = map[string]interface{}{"type": items}
		}
		if param.Default != nil {
			propSchema["default"] = param.Default
		}
		properties[param.Name] = propSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// convertToMCPResult turns provider content into MCP text content. Strings
// pass through; anything else is marshaled to JSON.
func convertToMCPResult(result *api.CallToolResult) *mcp.CallToolResult {
	mcpContent := make([]mcp.Content, len(result.Content))

	for i, content := range result.Content {
		if text, ok := content.(string); ok {
			mcpContent[i] = mcp.NewTextContent(text)
			continue
		}
		jsonBytes, err := json.Marshal(content)
		if err != nil {
			jsonBytes = []byte(fmt.Sprintf("%q", fmt.Sprint(content)))
		}
		mcpContent[i] = mcp.NewTextContent(string(jsonBytes))
	}

	return &mcp.CallToolResult{
		Content: mcpContent,
		IsError: result.IsError,
	}
}
