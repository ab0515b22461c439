package tools

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/internal/remote"
)

// NewWorkspaceProvider exposes locally configured workspaces and the
// current user's settings and profile.
func NewWorkspaceProvider(deps Deps) *Provider {
	c := deps.Client

	return newProvider("workspace", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "list_workspaces",
				Description: "List workspaces that have a stored token in a region",
				Parameters:  []api.ParameterMetadata{api.RegionParam},
			},
			op: dispatch.Operation{RegionOnly: true},
			invoke: func(_ context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return api.Success(map[string]interface{}{
					"workspaces": listWorkspaces(deps, req.Region),
				}), nil
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_user_settings",
				Description: "Get the current user's settings",
				Parameters:  api.TargetParams(),
			},
			invoke: getCall(c, fixed("/api/user/settings/"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "update_user_settings",
				Description: "Update the current user's settings",
				Parameters:  api.TargetParams(objectParam("settings", "Settings to update", true)),
			},
			op: dispatch.Operation{
				Required:   []string{"settings"},
				Validators: []dispatch.Stage{objectArg("settings")},
			},
			invoke: bodyCall(c, http.MethodPut, fixed("/api/user/settings/"), func(req *dispatch.Request) map[string]interface{} {
				return req.Args.Map("settings")
			}),
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_user_profile",
				Description: "Get the current user's profile",
				Parameters:  api.TargetParams(),
			},
			invoke: getCall(c, fixed("/api/user/profile/"), nil),
		},
	})
}

func listWorkspaces(deps Deps, region string) []map[string]interface{} {
	out := []map[string]interface{}{}
	if deps.Store == nil {
		return out
	}
	creds := deps.Store.List()[region]
	names := make([]string, 0, len(creds))
	for name := range creds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		out = append(out, map[string]interface{}{
			"workspace": name,
			"region":    region,
			"has_token": creds[name].Token != "",
			"domain":    workspaceDomain(deps.Client, region, name),
		})
	}
	return out
}

func workspaceDomain(c *remote.Client, region, workspace string) string {
	u, err := url.Parse(c.BaseURL(region, workspace))
	if err != nil || u.Host == "" {
		return workspace + "." + region + ".alpacon.io"
	}
	return u.Host
}

// objectArg rejects a supplied argument that is not a JSON object.
func objectArg(field string) dispatch.Stage {
	return func(_ context.Context, req *dispatch.Request) *api.Envelope {
		if req.Args.Has(field) && req.Args.Map(field) == nil {
			return api.FieldError(field, field+" must be an object")
		}
		return nil
	}
}
