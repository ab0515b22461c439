package dispatch

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/credentials"
	"alpacon-mcp/internal/remote"
)

const (
	validID   = "550e8400-e29b-41d4-a716-446655440000"
	validID2  = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	validID3  = "6ba7b811-9dad-11d1-80b4-00c04fd430c8"
	testToken = "tok-123"
)

type fakeStore map[string]credentials.Credential

func (f fakeStore) Get(region, workspace string) (credentials.Credential, bool) {
	c, ok := f[region+"/"+workspace]
	return c, ok
}

func newPipeline() *Pipeline {
	return New(fakeStore{
		"ap1/prod": {Region: "ap1", Workspace: "prod", Token: testToken},
	}, Options{})
}

// countingInvoke records how many times the handler ran.
func countingInvoke(calls *atomic.Int32, env *api.Envelope, err error) InvokeFunc {
	return func(ctx context.Context, req *Request) (*api.Envelope, error) {
		calls.Add(1)
		return env, err
	}
}

var serverOp = Operation{
	Name:            "get_server",
	Identifiers:     []IdentifierRule{{Field: "server_id"}},
	IdentifierLists: []ListRule{{Field: "server_ids"}},
}

func TestValidationOrder(t *testing.T) {
	p := newPipeline()

	tests := []struct {
		name  string
		args  map[string]interface{}
		field string
	}{
		{"region beats workspace", map[string]interface{}{"region": "zzz", "workspace": "bad workspace!"}, "region"},
		{"empty region is invalid", map[string]interface{}{"region": "", "workspace": "prod"}, "region"},
		{"non-string region", map[string]interface{}{"region": 1.0, "workspace": "prod"}, "region"},
		{"missing workspace", map[string]interface{}{"region": "ap1"}, "workspace"},
		{"invalid workspace beats identifier", map[string]interface{}{"workspace": "ws@#$!", "server_id": "nope"}, "workspace"},
		{"identifier beats list", map[string]interface{}{"workspace": "prod", "server_id": "not-a-uuid", "server_ids": []interface{}{"bad"}}, "server_id"},
		{"mixed list fails", map[string]interface{}{"workspace": "prod", "server_ids": []interface{}{validID, "not-a-uuid"}}, "server_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			env := p.Execute(context.Background(), serverOp, tt.args, countingInvoke(&calls, api.Success(nil), nil))
			assert.Equal(t, api.StatusError, env.Status)
			assert.Equal(t, tt.field, env.Field)
			assert.NotEmpty(t, env.Message)
			assert.Equal(t, int32(0), calls.Load(), "handler must not run after a validation failure")
		})
	}
}

func TestListValidationNamesAllOffenders(t *testing.T) {
	p := newPipeline()
	env := p.Execute(context.Background(), serverOp, map[string]interface{}{
		"workspace":  "prod",
		"server_ids": []interface{}{"bad-1", validID, "bad-2"},
	}, countingInvoke(new(atomic.Int32), nil, nil))

	require.Equal(t, "server_ids", env.Field)
	invalid, ok := env.Get("invalid_values")
	require.True(t, ok)
	assert.Equal(t, []string{"bad-1", "bad-2"}, invalid)
	hint, _ := env.Get("hint")
	assert.Equal(t, DefaultUUIDHint, hint)
}

func TestAbsentOptionalIdentifierPasses(t *testing.T) {
	p := newPipeline()
	var calls atomic.Int32

	for _, args := range []map[string]interface{}{
		{"workspace": "prod"},
		{"workspace": "prod", "server_id": nil},
		{"workspace": "prod", "server_id": ""},
	} {
		env := p.Execute(context.Background(), serverOp, args, countingInvoke(&calls, api.Success("ok"), nil))
		assert.Equal(t, api.StatusSuccess, env.Status)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequiredIdentifier(t *testing.T) {
	p := newPipeline()
	op := Operation{Name: "get_server", Identifiers: []IdentifierRule{{Field: "server_id", Required: true}}}

	env := p.Execute(context.Background(), op, map[string]interface{}{"workspace": "prod"}, countingInvoke(new(atomic.Int32), nil, nil))
	assert.Equal(t, "server_id", env.Field)
	assert.Equal(t, "server_id parameter is required", env.Message)
}

func TestCredentialMissingShortCircuits(t *testing.T) {
	p := newPipeline()
	var calls atomic.Int32

	env := p.Execute(context.Background(), serverOp, map[string]interface{}{
		"workspace": "staging",
		"region":    "us1",
	}, countingInvoke(&calls, api.Success(nil), nil))

	assert.Equal(t, api.StatusError, env.Status)
	assert.Empty(t, env.Field)
	assert.Equal(t, "No token found for staging.us1. Please set token first.", env.Message)
	assert.Equal(t, int32(0), calls.Load())
}

func TestLocalOperationSkipsCredential(t *testing.T) {
	p := newPipeline()
	var calls atomic.Int32
	op := Operation{Name: "list_workspaces", Local: true}

	env := p.Execute(context.Background(), op, map[string]interface{}{"workspace": "nobody"}, countingInvoke(&calls, api.Success(nil), nil))
	assert.Equal(t, api.StatusSuccess, env.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSuccessEchoesContext(t *testing.T) {
	p := newPipeline()
	op := Operation{
		Name:        "get_server",
		Identifiers: []IdentifierRule{{Field: "server_id", Required: true}},
		Echo:        []string{"limit"},
	}

	var seen *Request
	env := p.Execute(context.Background(), op, map[string]interface{}{
		"workspace": "prod",
		"server_id": validID,
		"limit":     10.0,
	}, func(ctx context.Context, req *Request) (*api.Envelope, error) {
		seen = req
		return api.Success(map[string]interface{}{"id": validID}).With("region", "handler-set"), nil
	})

	require.Equal(t, api.StatusSuccess, env.Status)
	assert.Equal(t, testToken, seen.Token)
	assert.Equal(t, "ap1", seen.Region)
	assert.Equal(t, validID, seen.Identifier("server_id"))

	region, _ := env.Get("region")
	ws, _ := env.Get("workspace")
	id, _ := env.Get("server_id")
	limit, _ := env.Get("limit")
	assert.Equal(t, "handler-set", region, "handler supplied context wins")
	assert.Equal(t, "prod", ws)
	assert.Equal(t, validID, id)
	assert.Equal(t, 10.0, limit)
}

func TestInvokeErrorsAreNormalized(t *testing.T) {
	p := newPipeline()

	tests := []struct {
		name    string
		err     error
		status  api.Status
		message string
	}{
		{"plain error", errors.New("boom"), api.StatusError, "Failed in get_server: boom"},
		{"network error verbatim", &remote.Error{Kind: remote.KindNetwork, Err: errors.New("dial tcp: connection refused")}, api.StatusError, "Failed in get_server: dial tcp: connection refused"},
		{"404", &remote.Error{Kind: remote.KindStatus, StatusCode: http.StatusNotFound}, api.StatusError, "Failed in get_server: resource not found (HTTP 404)"},
		{"401", &remote.Error{Kind: remote.KindStatus, StatusCode: http.StatusUnauthorized}, api.StatusError, "Failed in get_server: authentication failed (HTTP 401); no valid credential found, set a new token"},
		{"503", &remote.Error{Kind: remote.KindStatus, StatusCode: http.StatusServiceUnavailable}, api.StatusError, "Failed in get_server: remote server error (HTTP 503)"},
		{"remote timeout", &remote.Error{Kind: remote.KindTimeout, Method: "GET", URL: "/api/x/"}, api.StatusTimeout, "Failed in get_server: request to GET /api/x/ timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := p.Execute(context.Background(), serverOp, map[string]interface{}{"workspace": "prod"},
				countingInvoke(new(atomic.Int32), nil, tt.err))
			assert.Equal(t, tt.status, env.Status)
			assert.Equal(t, tt.message, env.Message)
			ws, _ := env.Get("workspace")
			assert.Equal(t, "prod", ws)
		})
	}
}

func TestStatusErrorCarriesDiagnostics(t *testing.T) {
	env := NormalizeError("op", &remote.Error{Kind: remote.KindStatus, StatusCode: 400, Body: `{"line":["required"]}`})
	code, _ := env.Get("status_code")
	body, _ := env.Get("response")
	assert.Equal(t, 400, code)
	assert.Equal(t, `{"line":["required"]}`, body)
	assert.Equal(t, "Failed in op: request rejected by the remote API (HTTP 400)", env.Message)
}

func TestPanicIsRecovered(t *testing.T) {
	p := newPipeline()
	env := p.Execute(context.Background(), serverOp, map[string]interface{}{"workspace": "prod"},
		func(ctx context.Context, req *Request) (*api.Envelope, error) {
			panic("kaboom")
		})
	assert.Equal(t, api.StatusError, env.Status)
	assert.Equal(t, "Failed in get_server: panic: kaboom", env.Message)
}

func TestValidatorPanicIsRecovered(t *testing.T) {
	p := newPipeline()
	calls := new(atomic.Int32)
	op := Operation{
		Name: "get_top_servers",
		Validators: []Stage{func(ctx context.Context, req *Request) *api.Envelope {
			var m map[string]string
			m["boom"] = "x"
			return nil
		}},
	}
	env := p.Execute(context.Background(), op, map[string]interface{}{"workspace": "prod"}, countingInvoke(calls, nil, nil))
	require.NotNil(t, env)
	assert.Equal(t, api.StatusError, env.Status)
	assert.Contains(t, env.Message, "Failed in get_top_servers: panic:")
	ws, _ := env.Get("workspace")
	assert.Equal(t, "prod", ws)
	assert.Zero(t, calls.Load())
}

func TestValidatorsRunBeforeCredential(t *testing.T) {
	p := newPipeline()
	var ran bool
	op := Operation{
		Name: "get_top_servers",
		Validators: []Stage{func(ctx context.Context, req *Request) *api.Envelope {
			ran = true
			return api.FieldError("metric_types", "Invalid metric types: foo")
		}},
	}
	// Unknown workspace: credential would fail, but the validator answers first.
	env := p.Execute(context.Background(), op, map[string]interface{}{"workspace": "other"}, countingInvoke(new(atomic.Int32), nil, nil))
	assert.True(t, ran)
	assert.Equal(t, "metric_types", env.Field)
}

func TestPathRules(t *testing.T) {
	p := newPipeline()
	op := Operation{
		Name:     "webftp_upload_file",
		Paths:    []PathRule{{Field: "local_file_path", Required: true, Absolute: true, ForbidTraversal: true}},
		Required: []string{"session_id"},
	}

	tests := []struct {
		path  interface{}
		field string
	}{
		{"relative/file", "local_file_path"},
		{"/tmp/../etc/passwd", "local_file_path"},
		{"/tmp/a\x00b", "local_file_path"},
		{42.0, "local_file_path"},
	}
	for _, tt := range tests {
		env := p.Execute(context.Background(), op, map[string]interface{}{"workspace": "prod", "local_file_path": tt.path, "session_id": "s"},
			countingInvoke(new(atomic.Int32), nil, nil))
		assert.Equal(t, tt.field, env.Field, "path %q", tt.path)
	}

	env := p.Execute(context.Background(), op, map[string]interface{}{"workspace": "prod", "local_file_path": "/tmp/ok"},
		countingInvoke(new(atomic.Int32), nil, nil))
	assert.Equal(t, "session_id", env.Field)
}

func TestWrapReusesStages(t *testing.T) {
	p := newPipeline()
	var calls atomic.Int32
	h := p.Wrap(serverOp, countingInvoke(&calls, api.Success(nil), nil))

	assert.Equal(t, api.StatusSuccess, h(context.Background(), map[string]interface{}{"workspace": "prod"}).Status)
	assert.Equal(t, api.StatusError, h(context.Background(), nil).Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestArgs(t *testing.T) {
	a := Args{
		"s":     "x",
		"n":     3.0,
		"ns":    "7",
		"b":     true,
		"bs":    "false",
		"list":  []interface{}{"a", 1.0},
		"csv":   "a, b,,c",
		"empty": "",
		"obj":   map[string]interface{}{"k": "v"},
	}
	assert.Equal(t, "x", a.String("s"))
	assert.Equal(t, "def", a.StringDefault("empty", "def"))
	assert.Equal(t, "def", a.StringDefault("missing", "def"))
	assert.Equal(t, 3, a.Int("n", 0))
	assert.Equal(t, 7, a.Int("ns", 0))
	assert.Equal(t, 5, a.Int("s", 5))
	assert.True(t, a.Bool("b", false))
	assert.False(t, a.Bool("bs", true))
	assert.Equal(t, map[string]interface{}{"k": "v"}, a.Map("obj"))

	list, ok := a.StringSlice("list")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "1"}, list)
	csv, _ := a.StringSlice("csv")
	assert.Equal(t, []string{"a", "b", "c"}, csv)
	_, ok = a.StringSlice("missing")
	assert.False(t, ok)
}

func TestRegionOnlyOperation(t *testing.T) {
	p := newPipeline()
	op := Operation{Name: "list_workspaces", RegionOnly: true}

	env := p.Execute(context.Background(), op, map[string]interface{}{}, func(ctx context.Context, req *Request) (*api.Envelope, error) {
		assert.Empty(t, req.Token)
		return api.Success(nil), nil
	})
	require.Equal(t, api.StatusSuccess, env.Status)
	region, _ := env.Get("region")
	assert.Equal(t, "ap1", region)
	_, hasWorkspace := env.Get("workspace")
	assert.False(t, hasWorkspace)

	env = p.Execute(context.Background(), op, map[string]interface{}{"region": "mars"}, countingInvoke(new(atomic.Int32), nil, nil))
	assert.Equal(t, "region", env.Field)
}
