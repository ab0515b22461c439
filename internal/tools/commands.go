package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/internal/remote"
	"alpacon-mcp/pkg/logging"
)

const (
	defaultShell     = "internal"
	defaultSyncShell = "bash"
	defaultGroupname = "alpacon"
)

// NewCommandProvider exposes command execution on one or many servers.
func NewCommandProvider(deps Deps) *Provider {
	c := deps.Client
	serverID := []dispatch.IdentifierRule{{Field: "server_id", Required: true}}

	execParams := func(shell string, extra ...api.ParameterMetadata) []api.ParameterMetadata {
		params := []api.ParameterMetadata{
			stringParam("command", "Command line to execute", true),
			{Name: "shell", Type: "string", Description: "Shell type (internal, bash, sh)", Default: shell},
			stringParam("username", "Optional username for the command execution", false),
			{Name: "groupname", Type: "string", Description: "Group name for the command execution", Default: defaultGroupname},
			objectParam("env", "Optional environment variables as key-value pairs", false),
		}
		return append(params, extra...)
	}

	return newProvider("commands", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "execute_command",
				Description: "Execute a command on a server",
				Parameters:  api.TargetParams(append([]api.ParameterMetadata{idParam("server_id", "Server ID", true)}, execParams(defaultShell)...)...),
			},
			op: dispatch.Operation{Identifiers: serverID, Required: []string{"command"}, Echo: []string{"command"}},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				data, err := submitCommand(ctx, c, req, req.Identifier("server_id"), defaultShell)
				if err != nil {
					return nil, err
				}
				return api.Success(data), nil
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_command_result",
				Description: "Get the result of an executed command",
				Parameters:  api.TargetParams(idParam("command_id", "Command ID", true)),
			},
			op:     dispatch.Operation{Identifiers: []dispatch.IdentifierRule{{Field: "command_id", Required: true}}},
			invoke: getCall(c, byID("/api/events/commands/%s/", "command_id"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "list_commands",
				Description: "List recent commands",
				Parameters: api.TargetParams(
					idParam("server_id", "Optional server ID to filter commands", false),
					intParam("limit", "Maximum number of commands to return", 20),
				),
			},
			op: dispatch.Operation{Identifiers: []dispatch.IdentifierRule{{Field: "server_id"}}, Echo: []string{"limit"}},
			invoke: getCall(c, fixed("/api/events/commands/"), func(req *dispatch.Request) url.Values {
				q := serverFilter(req)
				q.Set("page_size", strconv.Itoa(req.Args.Int("limit", 20)))
				q.Set("ordering", "-added_at")
				return q
			}),
		},
		{
			meta: api.ToolMetadata{
				Name:        "execute_command_sync",
				Description: "Execute a command and wait for the result",
				Parameters: api.TargetParams(append([]api.ParameterMetadata{idParam("server_id", "Server ID", true)},
					execParams(defaultSyncShell, intParam("timeout", "Seconds to wait for the result", int(deps.CommandTimeout.Seconds())))...)...),
			},
			op: dispatch.Operation{
				Identifiers: serverID,
				Required:    []string{"command"},
				Validators:  []dispatch.Stage{positiveInt("timeout")},
				Echo:        []string{"command"},
			},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return executeSync(ctx, c, req, deps.CommandPollInterval, deps.CommandTimeout)
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "execute_command_multi_server",
				Description: "Execute a command on multiple servers (Deploy Shell)",
				Parameters: api.TargetParams(append([]api.ParameterMetadata{arrayParam("server_ids", "Server IDs to execute the command on", true)},
					execParams(defaultShell, boolParam("parallel", "Run on all servers concurrently", true))...)...),
			},
			op: dispatch.Operation{
				IdentifierLists: []dispatch.ListRule{{Field: "server_ids", Required: true, NonEmpty: true}},
				Required:        []string{"command"},
				Echo:            []string{"command"},
			},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				mode := dispatch.ModeParallel
				if !req.Args.Bool("parallel", true) {
					mode = dispatch.ModeSequential
				}
				batch := deps.Pipeline.FanOut(ctx, req, req.IdentifierLists["server_ids"], mode,
					func(ctx context.Context, req *dispatch.Request, serverID string) (*api.Envelope, error) {
						data, err := submitCommand(ctx, c, req, serverID, defaultShell)
						if err != nil {
							return nil, err
						}
						return api.Success(data), nil
					})
				logging.Info("Commands", "Deploy shell %q finished: %d/%d succeeded", req.Args.String("command"), batch.Successful, batch.Total)
				return api.Success(batch), nil
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "list_command_acl",
				Description: "Get ACL-approved commands for Deploy Shell",
				Parameters:  api.TargetParams(),
			},
			invoke: getCall(c, fixed("/api/events/commands/acl/"), nil),
		},
	})
}

func submitCommand(ctx context.Context, c *remote.Client, req *dispatch.Request, serverID, defShell string) (interface{}, error) {
	body := map[string]interface{}{
		"server":    serverID,
		"shell":     req.Args.StringDefault("shell", defShell),
		"line":      req.Args.String("command"),
		"groupname": req.Args.StringDefault("groupname", defaultGroupname),
	}
	if u := req.Args.String("username"); u != "" {
		body["username"] = u
	}
	if env := req.Args.Map("env"); len(env) > 0 {
		body["env"] = env
	}
	return c.Post(ctx, req.Target(), "/api/events/commands/", body)
}

// executeSync submits a command and polls its result until finished_at is set.
func executeSync(ctx context.Context, c *remote.Client, req *dispatch.Request, interval, defTimeout time.Duration) (*api.Envelope, error) {
	data, err := submitCommand(ctx, c, req, req.Identifier("server_id"), defaultSyncShell)
	if err != nil {
		return nil, err
	}
	commandID := commandIDOf(data)
	if commandID == "" {
		return api.Error("No command data returned from execute_command"), nil
	}

	timeout := defTimeout
	if req.Args.Has("timeout") {
		timeout = time.Duration(req.Args.Int("timeout", int(defTimeout.Seconds()))) * time.Second
	}
	endpoint := fmt.Sprintf("/api/events/commands/%s/", commandID)

	result, err := dispatch.Poll(ctx, interval, timeout, "Command execution", func(ctx context.Context) (bool, interface{}, error) {
		res, err := c.Get(ctx, req.Target(), endpoint, nil)
		if err != nil {
			// The command keeps running remotely; transient lookup failures are retried.
			logging.Debug("Commands", "Polling command %s failed: %v", commandID, err)
			return false, nil, nil
		}
		m, _ := res.(map[string]interface{})
		return m != nil && m["finished_at"] != nil, res, nil
	})
	if err != nil {
		return dispatch.NormalizeError(req.Operation, err).
			With("command_id", commandID).
			With("server_id", req.Identifier("server_id")).
			With("command", req.Args.String("command")), nil
	}

	return api.Success(result).
		With("command_id", commandID).
		With("shell", req.Args.StringDefault("shell", defaultSyncShell)), nil
}

// commandIDOf extracts the command ID from a submit response, which is either
// an object or a list of objects.
func commandIDOf(data interface{}) string {
	switch t := data.(type) {
	case map[string]interface{}:
		if id, ok := t["id"]; ok && id != nil {
			return fmt.Sprint(id)
		}
	case []interface{}:
		if len(t) > 0 {
			return commandIDOf(t[0])
		}
	}
	return ""
}

// positiveInt rejects a supplied argument that is not a positive integer.
func positiveInt(field string) dispatch.Stage {
	return func(_ context.Context, req *dispatch.Request) *api.Envelope {
		if !req.Args.Has(field) {
			return nil
		}
		if req.Args.Int(field, 0) <= 0 {
			return api.FieldError(field, fmt.Sprintf("%s must be a positive integer", field))
		}
		return nil
	}
}
