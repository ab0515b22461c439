package tools

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacon-mcp/internal/api"
)

func TestGetServer(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == serverA {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"count":   1,
				"results": []interface{}{map[string]interface{}{"id": serverA, "name": "web-1"}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": 0, "results": []interface{}{}})
	})

	env := h.call("get_server", target(map[string]interface{}{"server_id": serverA}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	server, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "web-1", server["name"])
	assert.Equal(t, serverA, ctxValue(t, env, "server_id"))

	req := h.last()
	assert.Equal(t, "/api/servers/servers/", req.Path)
	assert.Equal(t, "Bearer "+testToken, req.Auth)

	env = h.call("get_server", target(map[string]interface{}{"server_id": serverB}))
	assert.Equal(t, api.StatusError, env.Status)
	assert.Equal(t, "Server not found", env.Message)
	assert.Equal(t, serverB, ctxValue(t, env, "server_id"))
}

func TestGetServer_InvalidID(t *testing.T) {
	h := newHarness(t, nil)

	env := h.call("get_server", target(map[string]interface{}{"server_id": "web-1"}))
	assert.Equal(t, api.StatusError, env.Status)
	assert.Equal(t, "server_id", env.Field)
	assert.Empty(t, h.seen())
}

func TestCreateServerNote(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": "n1"})
	})

	env := h.call("create_server_note", target(map[string]interface{}{
		"server_id": serverA,
		"title":     "maintenance",
		"content":   "reboot on friday",
	}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)

	req := h.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/servers/notes/", req.Path)
	assert.Equal(t, serverA, req.Body["server"])
	assert.Equal(t, "maintenance", req.Body["title"])

	env = h.call("create_server_note", target(map[string]interface{}{"server_id": serverA, "title": "x"}))
	assert.Equal(t, "content", env.Field)
}

func TestListServerNotes_FiltersByServer(t *testing.T) {
	h := newHarness(t, nil)

	env := h.call("list_server_notes", target(map[string]interface{}{"server_id": serverA}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, []string{serverA}, h.last().Query["server"])
}

func TestRemoteStatusError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"detail": "denied"})
	})

	env := h.call("list_servers", target(nil))
	assert.Equal(t, api.StatusError, env.Status)
	assert.Contains(t, env.Message, "403")
	assert.Equal(t, "prod", ctxValue(t, env, "workspace"))
	assert.Equal(t, "ap1", ctxValue(t, env, "region"))
}
