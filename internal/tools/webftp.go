package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/internal/remote"
)

// maxUploadBytes bounds files read from local disk for upload.
const maxUploadBytes = 10 << 20

// NewWebftpProvider exposes file transfer sessions.
func NewWebftpProvider(deps Deps) *Provider {
	c := deps.Client
	sessionID := []dispatch.IdentifierRule{{Field: "session_id", Required: true}}
	remotePath := dispatch.PathRule{Field: "remote_file_path", Required: true, Absolute: true, ForbidTraversal: true}

	return newProvider("webftp", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "webftp_session_create",
				Description: "Create a new WebFTP session on a server",
				Parameters: api.TargetParams(
					idParam("server_id", "Server ID", true),
					stringParam("username", "Username for the session", true),
				),
			},
			op: dispatch.Operation{
				Identifiers: []dispatch.IdentifierRule{{Field: "server_id", Required: true}},
				Required:    []string{"username"},
				Echo:        []string{"username"},
			},
			invoke: bodyCall(c, http.MethodPost, fixed("/api/webftp/sessions/"), func(req *dispatch.Request) map[string]interface{} {
				return map[string]interface{}{
					"server":   req.Identifier("server_id"),
					"username": req.Args.String("username"),
				}
			}),
		},
		{
			meta: api.ToolMetadata{
				Name:        "webftp_sessions_list",
				Description: "List WebFTP sessions",
				Parameters:  api.TargetParams(idParam("server_id", "Optional server ID to filter sessions", false)),
			},
			op:     dispatch.Operation{Identifiers: []dispatch.IdentifierRule{{Field: "server_id"}}},
			invoke: getCall(c, fixed("/api/webftp/sessions/"), serverFilter),
		},
		{
			meta: api.ToolMetadata{
				Name:        "webftp_upload_file",
				Description: "Upload a file to a server through a WebFTP session",
				Parameters: api.TargetParams(
					idParam("session_id", "WebFTP session ID", true),
					stringParam("remote_file_path", "Absolute destination path on the server", true),
					stringParam("local_file_path", "Absolute path of a local file to upload", false),
					stringParam("file_data", "Base64 file content, used when local_file_path is not given", false),
				),
			},
			op: dispatch.Operation{
				Identifiers: sessionID,
				Paths: []dispatch.PathRule{
					remotePath,
					{Field: "local_file_path", Absolute: true, ForbidTraversal: true},
				},
				Validators: []dispatch.Stage{uploadSourceStage},
				Echo:       []string{"remote_file_path", "local_file_path"},
			},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return uploadFile(ctx, c, req)
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "webftp_download_file",
				Description: "Download a file from a server through a WebFTP session",
				Parameters: api.TargetParams(
					idParam("session_id", "WebFTP session ID", true),
					stringParam("remote_file_path", "Absolute path of the file on the server", true),
					stringParam("local_file_path", "Absolute local destination path", true),
				),
			},
			op: dispatch.Operation{
				Identifiers: sessionID,
				Paths: []dispatch.PathRule{
					remotePath,
					{Field: "local_file_path", Required: true, Absolute: true, ForbidTraversal: true},
				},
				Echo: []string{"remote_file_path", "local_file_path"},
			},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return downloadFile(ctx, c, req)
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "webftp_downloads_list",
				Description: "List downloads prepared in a WebFTP session",
				Parameters:  api.TargetParams(idParam("session_id", "WebFTP session ID", true)),
			},
			op:     dispatch.Operation{Identifiers: sessionID},
			invoke: getCall(c, byID("/api/webftp/sessions/%s/downloads/", "session_id"), nil),
		},
	})
}

func uploadSourceStage(_ context.Context, req *dispatch.Request) *api.Envelope {
	hasLocal := req.Args.String("local_file_path") != ""
	hasData := req.Args.String("file_data") != ""
	switch {
	case hasLocal && hasData:
		return api.FieldError("file_data", "Provide either local_file_path or file_data, not both")
	case !hasLocal && !hasData:
		return api.FieldError("local_file_path", "local_file_path parameter is required")
	case hasData:
		if _, err := base64.StdEncoding.DecodeString(req.Args.String("file_data")); err != nil {
			return api.FieldError("file_data", "Invalid file_data: must be base64 encoded")
		}
	}
	return nil
}

func uploadFile(ctx context.Context, c *remote.Client, req *dispatch.Request) (*api.Envelope, error) {
	data := req.Args.String("file_data")
	size := 0
	if local := req.Args.String("local_file_path"); local != "" {
		info, err := os.Stat(local)
		if err != nil {
			return nil, fmt.Errorf("cannot read local file: %w", err)
		}
		if info.Size() > maxUploadBytes {
			return nil, fmt.Errorf("local file is %d bytes; the limit is %d", info.Size(), maxUploadBytes)
		}
		raw, err := os.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("cannot read local file: %w", err)
		}
		size = len(raw)
		data = base64.StdEncoding.EncodeToString(raw)
	} else {
		size = base64.StdEncoding.DecodedLen(len(data))
	}

	endpoint := fmt.Sprintf("/api/webftp/sessions/%s/upload/", req.Identifier("session_id"))
	result, err := c.Post(ctx, req.Target(), endpoint, map[string]interface{}{
		"file_path": req.Args.String("remote_file_path"),
		"file_data": data,
	})
	if err != nil {
		return nil, err
	}
	return api.Success(result).With("bytes", size), nil
}

func downloadFile(ctx context.Context, c *remote.Client, req *dispatch.Request) (*api.Envelope, error) {
	remotePath := req.Args.String("remote_file_path")
	local := req.Args.String("local_file_path")

	body, contentType, err := c.Download(ctx, remote.Call{
		Method:   http.MethodGet,
		Target:   req.Target(),
		Endpoint: fmt.Sprintf("/api/webftp/sessions/%s/download/", req.Identifier("session_id")),
		Params:   url.Values{"path": {remotePath}},
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create local directory: %w", err)
	}
	if err := os.WriteFile(local, body, 0o644); err != nil {
		return nil, fmt.Errorf("cannot write local file: %w", err)
	}

	return api.Success(map[string]interface{}{
		"bytes":        len(body),
		"content_type": contentType,
	}), nil
}
