package tools

import (
	"context"
	"net/http"
	"net/url"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
)

// NewServerProvider exposes server inventory and notes.
func NewServerProvider(deps Deps) *Provider {
	c := deps.Client
	serverID := []dispatch.IdentifierRule{{Field: "server_id", Required: true}}

	return newProvider("servers", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "list_servers",
				Description: "Get list of servers",
				Parameters:  api.TargetParams(),
			},
			invoke: getCall(c, fixed("/api/servers/servers/"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_server",
				Description: "Get detailed information of a specific server",
				Parameters:  api.TargetParams(idParam("server_id", "Server ID", true)),
			},
			op: dispatch.Operation{Identifiers: serverID},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				data, err := c.Get(ctx, req.Target(), "/api/servers/servers/", url.Values{"id": {req.Identifier("server_id")}})
				if err != nil {
					return nil, err
				}
				server, found := firstResult(data)
				if !found {
					return api.Error("Server not found").With("server_id", req.Identifier("server_id")), nil
				}
				return api.Success(server), nil
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "list_server_notes",
				Description: "Get list of server notes",
				Parameters:  api.TargetParams(idParam("server_id", "Server ID", true)),
			},
			op: dispatch.Operation{Identifiers: serverID},
			invoke: getCall(c, fixed("/api/servers/notes/"), serverFilter),
		},
		{
			meta: api.ToolMetadata{
				Name:        "create_server_note",
				Description: "Create a new note for server",
				Parameters: api.TargetParams(
					idParam("server_id", "Server ID", true),
					stringParam("title", "Note title", true),
					stringParam("content", "Note content", true),
				),
			},
			op: dispatch.Operation{Identifiers: serverID, Required: []string{"title", "content"}},
			invoke: bodyCall(c, http.MethodPost, fixed("/api/servers/notes/"), func(req *dispatch.Request) map[string]interface{} {
				return map[string]interface{}{
					"server":  req.Identifier("server_id"),
					"title":   req.Args.String("title"),
					"content": req.Args.String("content"),
				}
			}),
		},
	})
}

// firstResult unwraps a paginated {"count", "results"} response to its first
// element. A bare object is returned unchanged.
func firstResult(data interface{}) (interface{}, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		if list, isList := data.([]interface{}); isList && len(list) > 0 {
			return list[0], true
		}
		return nil, false
	}
	results, paged := m["results"].([]interface{})
	if !paged {
		return m, len(m) > 0
	}
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}
