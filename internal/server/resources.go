package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/credentials"
	"alpacon-mcp/pkg/logging"
)

const (
	// AuthStatusResourceURI reports which workspaces hold a stored token.
	AuthStatusResourceURI = "auth://status"
	// AuthConfigResourceURI reports where credentials are read from.
	AuthConfigResourceURI = "auth://config"

	webshSessionsTemplate  = "websh://sessions/{region}/{workspace}"
	webftpSessionsTemplate = "webftp://sessions/{region}/{workspace}"

	jsonMIME = "application/json"
)

// CredentialStatus is the part of the credential store exposed as resources.
type CredentialStatus interface {
	Status() credentials.Status
	ConfigInfo() credentials.ConfigInfo
}

// envelopeCaller is implemented by providers that can return a raw envelope.
type envelopeCaller interface {
	Call(ctx context.Context, toolName string, args map[string]interface{}) (*api.Envelope, error)
}

func (s *Server) registerResources() {
	if s.credentials != nil {
		s.mcpServer.AddResource(
			mcp.NewResource(AuthStatusResourceURI, "Authentication status",
				mcp.WithResourceDescription("Stored tokens per region and workspace"),
				mcp.WithMIMEType(jsonMIME)),
			s.handleAuthStatus,
		)
		s.mcpServer.AddResource(
			mcp.NewResource(AuthConfigResourceURI, "Authentication configuration",
				mcp.WithResourceDescription("Credential file location and candidates"),
				mcp.WithMIMEType(jsonMIME)),
			s.handleAuthConfig,
		)
	}

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(webshSessionsTemplate, "WebSH sessions",
			mcp.WithTemplateDescription("Active WebSH sessions of a workspace"),
			mcp.WithTemplateMIMEType(jsonMIME)),
		s.sessionsHandler("websh", "websh_sessions_list"),
	)
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(webftpSessionsTemplate, "WebFTP sessions",
			mcp.WithTemplateDescription("Active WebFTP sessions of a workspace"),
			mcp.WithTemplateMIMEType(jsonMIME)),
		s.sessionsHandler("webftp", "webftp_sessions_list"),
	)
	logging.Debug("Server", "Registered auth and session resources")
}

func (s *Server) handleAuthStatus(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, s.credentials.Status())
}

func (s *Server) handleAuthConfig(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, s.credentials.ConfigInfo())
}

// sessionsHandler serves <scheme>://sessions/{region}/{workspace} by running
// the list tool through the normal pipeline, so validation and credential
// rules are identical to a tool call.
func (s *Server) sessionsHandler(scheme, toolName string) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		region, workspace, err := parseSessionsURI(scheme, req.Params.URI)
		if err != nil {
			return nil, err
		}
		caller, ok := s.callers[toolName]
		if !ok {
			return nil, fmt.Errorf("tool %s is not available", toolName)
		}
		env, err := caller.Call(ctx, toolName, map[string]interface{}{
			"region":    region,
			"workspace": workspace,
		})
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, env)
	}
}

// parseSessionsURI extracts region and workspace from
// <scheme>://sessions/<region>/<workspace>.
func parseSessionsURI(scheme, uri string) (region, workspace string, err error) {
	prefix := scheme + "://sessions/"
	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return "", "", fmt.Errorf("invalid resource URI %q: expected %s{region}/{workspace}", uri, prefix)
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid resource URI %q: expected %s{region}/{workspace}", uri, prefix)
	}
	return parts[0], parts[1], nil
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: string(b)},
	}, nil
}
