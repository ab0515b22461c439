package tools

import (
	"context"

	"golang.org/x/sync/errgroup"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
)

// NewSystemProvider exposes host information collected by the server agent.
func NewSystemProvider(deps Deps) *Provider {
	c := deps.Client
	serverID := dispatch.Operation{Identifiers: []dispatch.IdentifierRule{{Field: "server_id", Required: true}}}
	params := api.TargetParams(idParam("server_id", "Server ID", true))

	proc := func(name, description, endpoint string) tool {
		return tool{
			meta:   api.ToolMetadata{Name: name, Description: description, Parameters: params},
			op:     serverID,
			invoke: getCall(c, fixed(endpoint), serverFilter),
		}
	}

	return newProvider("system", deps.Pipeline, []tool{
		proc("get_system_info", "Get hardware and kernel information of a server", "/api/proc/info/"),
		proc("get_os_version", "Get operating system version of a server", "/api/proc/os/"),
		proc("list_system_users", "List system users of a server", "/api/proc/users/"),
		proc("list_system_packages", "List installed packages of a server", "/api/proc/packages/"),
		proc("get_network_interfaces", "List network interfaces of a server", "/api/proc/interfaces/"),
		{
			meta: api.ToolMetadata{
				Name:        "get_disk_info",
				Description: "Get disks and partitions of a server",
				Parameters:  params,
			},
			op: serverID,
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				endpoints := map[string]string{
					"disks":      "/api/proc/disks/",
					"partitions": "/api/proc/partitions/",
				}
				keys := []string{"disks", "partitions"}
				results := make([]interface{}, len(keys))

				var g errgroup.Group
				for i, key := range keys {
					g.Go(func() error {
						data, err := c.Get(ctx, req.Target(), endpoints[key], serverFilter(req))
						if err != nil {
							results[i] = map[string]interface{}{"error": dispatch.NormalizeError(req.Operation, err).Message}
							return nil
						}
						results[i] = data
						return nil
					})
				}
				_ = g.Wait()

				return api.Success(map[string]interface{}{
					"server_id":  req.Identifier("server_id"),
					"region":     req.Region,
					"workspace":  req.Workspace,
					"disks":      results[0],
					"partitions": results[1],
				}), nil
			},
		},
	})
}
