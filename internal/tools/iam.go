package tools

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
)

// userFields are the optional attributes accepted by create and update.
var userFields = []string{"email", "first_name", "last_name"}

// NewIAMProvider exposes workspace users and groups.
func NewIAMProvider(deps Deps) *Provider {
	c := deps.Client
	userID := []dispatch.IdentifierRule{{Field: "user_id", Required: true}}

	return newProvider("iam", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "list_iam_users",
				Description: "List IAM users in the workspace",
				Parameters: api.TargetParams(
					intParam("page", "Page number", 1),
					intParam("page_size", "Users per page", 20),
				),
			},
			invoke: getCall(c, fixed("/api/iam/users/"), func(req *dispatch.Request) url.Values {
				return url.Values{
					"page":      {strconv.Itoa(req.Args.Int("page", 1))},
					"page_size": {strconv.Itoa(req.Args.Int("page_size", 20))},
				}
			}),
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_iam_user",
				Description: "Get details of an IAM user",
				Parameters:  api.TargetParams(idParam("user_id", "User ID", true)),
			},
			op:     dispatch.Operation{Identifiers: userID},
			invoke: getCall(c, byID("/api/iam/users/%s/", "user_id"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "create_iam_user",
				Description: "Create an IAM user",
				Parameters: api.TargetParams(
					stringParam("username", "Username", true),
					stringParam("email", "Email address", true),
					stringParam("first_name", "First name", false),
					stringParam("last_name", "Last name", false),
					boolParam("is_active", "Whether the user is active", true),
					arrayParam("groups", "Group IDs to add the user to", false),
				),
			},
			op: dispatch.Operation{Required: []string{"username", "email"}, Echo: []string{"username"}},
			invoke: bodyCall(c, http.MethodPost, fixed("/api/iam/users/"), func(req *dispatch.Request) map[string]interface{} {
				body := map[string]interface{}{
					"username":  req.Args.String("username"),
					"is_active": req.Args.Bool("is_active", true),
				}
				copyStrings(body, req, userFields...)
				if groups, ok := req.Args.StringSlice("groups"); ok && len(groups) > 0 {
					body["groups"] = groups
				}
				return body
			}),
		},
		{
			meta: api.ToolMetadata{
				Name:        "update_iam_user",
				Description: "Update an IAM user (only supplied fields change)",
				Parameters: api.TargetParams(
					idParam("user_id", "User ID", true),
					stringParam("email", "Email address", false),
					stringParam("first_name", "First name", false),
					stringParam("last_name", "Last name", false),
					api.ParameterMetadata{Name: "is_active", Type: "boolean", Description: "Whether the user is active"},
				),
			},
			op: dispatch.Operation{Identifiers: userID},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				body := map[string]interface{}{}
				copyStrings(body, req, userFields...)
				if req.Args.Has("is_active") {
					body["is_active"] = req.Args.Bool("is_active", true)
				}
				data, err := c.Patch(ctx, req.Target(), "/api/iam/users/"+req.Identifier("user_id")+"/", body)
				if err != nil {
					return nil, err
				}
				return api.Success(data), nil
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "delete_iam_user",
				Description: "Delete an IAM user",
				Parameters:  api.TargetParams(idParam("user_id", "User ID", true)),
			},
			op:     dispatch.Operation{Identifiers: userID},
			invoke: bodyCall(c, http.MethodDelete, byID("/api/iam/users/%s/", "user_id"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "list_iam_groups",
				Description: "List IAM groups in the workspace",
				Parameters:  api.TargetParams(),
			},
			invoke: getCall(c, fixed("/api/iam/groups/"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "create_iam_group",
				Description: "Create an IAM group",
				Parameters: api.TargetParams(
					stringParam("name", "Group name", true),
					stringParam("description", "Group description", false),
					arrayParam("permissions", "Permissions granted to the group", false),
				),
			},
			op: dispatch.Operation{Required: []string{"name"}, Echo: []string{"name"}},
			invoke: bodyCall(c, http.MethodPost, fixed("/api/iam/groups/"), func(req *dispatch.Request) map[string]interface{} {
				body := map[string]interface{}{"name": req.Args.String("name")}
				copyStrings(body, req, "description")
				if perms, ok := req.Args.StringSlice("permissions"); ok && len(perms) > 0 {
					body["permissions"] = perms
				}
				return body
			}),
		},
	})
}

// copyStrings copies non-empty string arguments into body.
func copyStrings(body map[string]interface{}, req *dispatch.Request, names ...string) {
	for _, name := range names {
		if v := req.Args.String(name); v != "" {
			body[name] = v
		}
	}
}
