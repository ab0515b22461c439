package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/credentials"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/internal/remote"
)

// Deps are the collaborators shared by every provider.
type Deps struct {
	Pipeline *dispatch.Pipeline
	Client   *remote.Client
	Store    *credentials.Store

	// CommandPollInterval and CommandTimeout bound execute_command_sync.
	CommandPollInterval time.Duration
	CommandTimeout      time.Duration

	// Dialer is used by websh_websocket_execute (default websocket.DefaultDialer).
	Dialer *websocket.Dialer
	// WebsocketCollect is how long output is collected after a command is sent.
	WebsocketCollect time.Duration
}

// tool pairs the metadata exposed over MCP with the operation that
// validates its input and the function that performs it.
type tool struct {
	meta   api.ToolMetadata
	op     dispatch.Operation
	invoke dispatch.InvokeFunc
}

// Provider is an api.ToolProvider backed by the dispatch pipeline.
type Provider struct {
	name     string
	tools    []tool
	handlers map[string]func(context.Context, map[string]interface{}) *api.Envelope
}

func newProvider(name string, pipeline *dispatch.Pipeline, tools []tool) *Provider {
	p := &Provider{
		name:     name,
		tools:    tools,
		handlers: make(map[string]func(context.Context, map[string]interface{}) *api.Envelope, len(tools)),
	}
	for _, t := range tools {
		op := t.op
		if op.Name == "" {
			op.Name = t.meta.Name
		}
		p.handlers[t.meta.Name] = pipeline.Wrap(op, t.invoke)
	}
	return p
}

// Name returns the provider's group name (e.g. "servers").
func (p *Provider) Name() string {
	return p.name
}

// GetTools returns metadata for every tool in the group.
func (p *Provider) GetTools() []api.ToolMetadata {
	out := make([]api.ToolMetadata, 0, len(p.tools))
	for _, t := range p.tools {
		out = append(out, t.meta)
	}
	return out
}

// Call runs a tool and returns its envelope.
func (p *Provider) Call(ctx context.Context, toolName string, args map[string]interface{}) (*api.Envelope, error) {
	h, ok := p.handlers[toolName]
	if !ok {
		return nil, fmt.Errorf("unknown %s tool: %s", p.name, toolName)
	}
	return h(ctx, args), nil
}

// ExecuteTool runs a tool and renders its envelope as tool content.
func (p *Provider) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (*api.CallToolResult, error) {
	env, err := p.Call(ctx, toolName, args)
	if err != nil {
		return nil, err
	}
	return EnvelopeResult(env)
}

// EnvelopeResult renders env as a single JSON text content item. Any
// non-success status marks the result as an error.
func EnvelopeResult(env *api.Envelope) (*api.CallToolResult, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &api.CallToolResult{
		Content: []interface{}{string(b)},
		IsError: !env.IsSuccess(),
	}, nil
}

// NewProviders builds every tool group.
func NewProviders(deps Deps) []*Provider {
	if deps.Dialer == nil {
		deps.Dialer = websocket.DefaultDialer
	}
	if deps.CommandPollInterval <= 0 {
		deps.CommandPollInterval = time.Second
	}
	if deps.CommandTimeout <= 0 {
		deps.CommandTimeout = 30 * time.Second
	}
	if deps.WebsocketCollect <= 0 {
		deps.WebsocketCollect = 3 * time.Second
	}

	return []*Provider{
		NewServerProvider(deps),
		NewCommandProvider(deps),
		NewMetricsProvider(deps),
		NewEventProvider(deps),
		NewIAMProvider(deps),
		NewSystemProvider(deps),
		NewWorkspaceProvider(deps),
		NewWebshProvider(deps),
		NewWebftpProvider(deps),
		NewAuthProvider(deps),
	}
}

// Parameter helpers.

func stringParam(name, description string, required bool) api.ParameterMetadata {
	return api.ParameterMetadata{Name: name, Type: "string", Required: required, Description: description}
}

func idParam(name, description string, required bool) api.ParameterMetadata {
	return stringParam(name, description+" (UUID)", required)
}

func intParam(name, description string, def int) api.ParameterMetadata {
	return api.ParameterMetadata{Name: name, Type: "integer", Description: description, Default: def}
}

func boolParam(name, description string, def bool) api.ParameterMetadata {
	return api.ParameterMetadata{Name: name, Type: "boolean", Description: description, Default: def}
}

func objectParam(name, description string, required bool) api.ParameterMetadata {
	return api.ParameterMetadata{Name: name, Type: "object", Required: required, Description: description}
}

func arrayParam(name, description string, required bool) api.ParameterMetadata {
	return api.ParameterMetadata{Name: name, Type: "array", Items: "string", Required: required, Description: description}
}

// Invoke helpers for the common pass-through shapes.

type endpointFunc func(req *dispatch.Request) string
type paramsFunc func(req *dispatch.Request) url.Values
type bodyFunc func(req *dispatch.Request) map[string]interface{}

func fixed(endpoint string) endpointFunc {
	return func(*dispatch.Request) string { return endpoint }
}

// byID formats endpoint with the validated identifier in field.
func byID(format, field string) endpointFunc {
	return func(req *dispatch.Request) string {
		return fmt.Sprintf(format, req.Identifier(field))
	}
}

func getCall(c *remote.Client, endpoint endpointFunc, params paramsFunc) dispatch.InvokeFunc {
	return func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
		var q url.Values
		if params != nil {
			q = params(req)
		}
		data, err := c.Get(ctx, req.Target(), endpoint(req), q)
		if err != nil {
			return nil, err
		}
		return api.Success(data), nil
	}
}

func bodyCall(c *remote.Client, method string, endpoint endpointFunc, body bodyFunc) dispatch.InvokeFunc {
	return func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
		var b interface{}
		if body != nil {
			b = body(req)
		}
		data, err := c.Do(ctx, remote.Call{Method: method, Target: req.Target(), Endpoint: endpoint(req), Body: b})
		if err != nil {
			return nil, err
		}
		return api.Success(data), nil
	}
}

// serverFilter returns ?server=<server_id> when a server_id was supplied.
func serverFilter(req *dispatch.Request) url.Values {
	q := url.Values{}
	if id := req.Identifier("server_id"); id != "" {
		q.Set("server", id)
	}
	return q
}

// setIf sets key when the string argument name is non-empty.
func setIf(q url.Values, key string, req *dispatch.Request, name string) {
	if v := req.Args.String(name); v != "" {
		q.Set(key, v)
	}
}
