package tools

import (
	"context"
	"errors"
	"fmt"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/credentials"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/pkg/logging"
)

// NewAuthProvider exposes credential management. These tools only touch
// the local store and need no stored token to run.
func NewAuthProvider(deps Deps) *Provider {
	return newProvider("auth", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "auth_set_token",
				Description: "Store an API token for a workspace in a region",
				Parameters:  api.TargetParams(stringParam("token", "API token", true)),
			},
			op: dispatch.Operation{Local: true, Required: []string{"token"}},
			invoke: func(_ context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return setToken(deps.Store, req)
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "auth_remove_token",
				Description: "Remove the stored API token for a workspace in a region",
				Parameters:  api.TargetParams(),
			},
			op: dispatch.Operation{Local: true},
			invoke: func(_ context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return removeToken(deps.Store, req)
			},
		},
	})
}

func setToken(store *credentials.Store, req *dispatch.Request) (*api.Envelope, error) {
	if store == nil {
		return nil, errors.New("credential store is not configured")
	}
	token := req.Args.String("token")
	if err := store.Set(req.Region, req.Workspace, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	return api.Success(map[string]interface{}{
		"message": fmt.Sprintf("Token saved for %s.%s", req.Workspace, req.Region),
		"token":   logging.MaskToken(token),
		"path":    store.Path(),
	}), nil
}

func removeToken(store *credentials.Store, req *dispatch.Request) (*api.Envelope, error) {
	if store == nil {
		return nil, errors.New("credential store is not configured")
	}
	err := store.Remove(req.Region, req.Workspace)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		return api.Error(fmt.Sprintf("No token found for %s.%s", req.Workspace, req.Region)), nil
	case err != nil:
		return nil, fmt.Errorf("failed to remove token: %w", err)
	}

	return api.Success(map[string]interface{}{
		"message": fmt.Sprintf("Token removed for %s.%s", req.Workspace, req.Region),
	}), nil
}
