package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/pkg/logging"
)

const (
	websocketMaxMessages  = 50
	websocketHandshakeMax = 10 * time.Second
)

// NewWebshProvider exposes web shell sessions.
func NewWebshProvider(deps Deps) *Provider {
	c := deps.Client
	sessionID := []dispatch.IdentifierRule{{Field: "session_id", Required: true}}

	return newProvider("websh", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "websh_session_create",
				Description: "Create a new WebSH session on a server",
				Parameters: api.TargetParams(
					idParam("server_id", "Server ID", true),
					stringParam("username", "Username for the session", true),
					intParam("rows", "Terminal rows", 24),
					intParam("cols", "Terminal columns", 80),
				),
			},
			op: dispatch.Operation{
				Identifiers: []dispatch.IdentifierRule{{Field: "server_id", Required: true}},
				Required:    []string{"username"},
				Echo:        []string{"username"},
			},
			invoke: bodyCall(c, http.MethodPost, fixed("/api/websh/sessions/"), func(req *dispatch.Request) map[string]interface{} {
				return map[string]interface{}{
					"server":   req.Identifier("server_id"),
					"username": req.Args.String("username"),
					"rows":     req.Args.Int("rows", 24),
					"cols":     req.Args.Int("cols", 80),
				}
			}),
		},
		{
			meta: api.ToolMetadata{
				Name:        "websh_sessions_list",
				Description: "List WebSH sessions",
				Parameters:  api.TargetParams(idParam("server_id", "Optional server ID to filter sessions", false)),
			},
			op:     dispatch.Operation{Identifiers: []dispatch.IdentifierRule{{Field: "server_id"}}},
			invoke: getCall(c, fixed("/api/websh/sessions/"), serverFilter),
		},
		{
			meta: api.ToolMetadata{
				Name:        "websh_command_execute",
				Description: "Execute a command in a WebSH session",
				Parameters: api.TargetParams(
					idParam("session_id", "WebSH session ID", true),
					stringParam("command", "Command to execute", true),
				),
			},
			op: dispatch.Operation{Identifiers: sessionID, Required: []string{"command"}, Echo: []string{"command"}},
			invoke: bodyCall(c, http.MethodPost, byID("/api/websh/sessions/%s/execute/", "session_id"), func(req *dispatch.Request) map[string]interface{} {
				return map[string]interface{}{"command": req.Args.String("command")}
			}),
		},
		{
			meta: api.ToolMetadata{
				Name:        "websh_session_terminate",
				Description: "Close a WebSH session",
				Parameters:  api.TargetParams(idParam("session_id", "WebSH session ID", true)),
			},
			op:     dispatch.Operation{Identifiers: sessionID},
			invoke: bodyCall(c, http.MethodPost, byID("/api/websh/sessions/%s/close/", "session_id"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "websh_websocket_execute",
				Description: "Execute a command in a WebSH session over its WebSocket and collect the output",
				Parameters: api.TargetParams(
					idParam("session_id", "WebSH session ID", true),
					stringParam("websocket_url", "WebSocket URL returned by websh_session_create", true),
					stringParam("command", "Command to execute", true),
				),
			},
			op: dispatch.Operation{
				Identifiers: sessionID,
				Required:    []string{"websocket_url", "command"},
				Validators:  []dispatch.Stage{websocketURLStage},
				Echo:        []string{"command"},
			},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return websocketExecute(ctx, deps, req)
			},
		},
	})
}

func websocketURLStage(_ context.Context, req *dispatch.Request) *api.Envelope {
	raw := req.Args.String("websocket_url")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return api.FieldError("websocket_url", fmt.Sprintf("Invalid websocket_url: %q. Must be a ws:// or wss:// URL", raw))
	}
	return nil
}

// websocketExecute sends one command line to the session socket and gathers
// whatever the terminal prints until the collect window closes or the
// message cap is reached.
func websocketExecute(ctx context.Context, deps Deps, req *dispatch.Request) (*api.Envelope, error) {
	dialer := *deps.Dialer
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = websocketHandshakeMax
	}

	header := http.Header{}
	header.Set("Origin", deps.Client.BaseURL(req.Region, req.Workspace))
	header.Set("User-Agent", "alpacon-mcp")

	wsURL := req.Args.String("websocket_url")
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("WebSocket connection error: %w", err)
	}
	defer conn.Close()

	command := req.Args.String("command")
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte(command+"\n")); err != nil {
		return nil, fmt.Errorf("WebSocket write failed: %w", err)
	}

	deadline := time.Now().Add(deps.WebsocketCollect)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var out strings.Builder
	count := 0
	for count < websocketMaxMessages {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !isTimeout(err) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Websh", "WebSocket read ended for session %s: %v", req.Identifier("session_id"), err)
			}
			break
		}
		out.Write(msg)
		count++
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

	return api.Success(map[string]interface{}{
		"response":        strings.ToValidUTF8(out.String(), ""),
		"responses_count": count,
	}).With("session_id", req.Identifier("session_id")), nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
