package tools

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacon-mcp/internal/api"
)

func TestEvents(t *testing.T) {
	h := newHarness(t, nil)

	env := h.call("list_events", target(map[string]interface{}{"server_id": serverA, "reporter": "agent"}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	q := h.last().Query
	assert.Equal(t, []string{"50"}, q["page_size"])
	assert.Equal(t, []string{"agent"}, q["reporter"])
	assert.Equal(t, []string{serverA}, q["server"])

	env = h.call("search_events", target(map[string]interface{}{"search_query": "disk full"}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, []string{"disk full"}, h.last().Query["search"])
	assert.Equal(t, "disk full", ctxValue(t, env, "search_query"))

	env = h.call("search_events", target(nil))
	assert.Equal(t, "search_query", env.Field)
}

func TestIAMUsers(t *testing.T) {
	h := newHarness(t, nil)

	env := h.call("create_iam_user", target(map[string]interface{}{
		"username": "alice",
		"email":    "alice@example.com",
		"groups":   []interface{}{"ops"},
	}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	req := h.last()
	assert.Equal(t, "/api/iam/users/", req.Path)
	assert.Equal(t, true, req.Body["is_active"])
	assert.Equal(t, []interface{}{"ops"}, req.Body["groups"])
	assert.NotContains(t, req.Body, "first_name")

	env = h.call("update_iam_user", target(map[string]interface{}{"user_id": serverA, "is_active": false}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	req = h.last()
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/api/iam/users/"+serverA+"/", req.Path)
	assert.Equal(t, map[string]interface{}{"is_active": false}, req.Body)

	env = h.call("delete_iam_user", target(map[string]interface{}{"user_id": serverA}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, http.MethodDelete, h.last().Method)

	env = h.call("create_iam_user", target(map[string]interface{}{"username": "bob"}))
	assert.Equal(t, "email", env.Field)
}

func TestGetDiskInfo_SectionErrors(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/partitions/") {
			writeJSON(w, http.StatusNotFound, nil)
			return
		}
		writeJSON(w, http.StatusOK, []interface{}{map[string]interface{}{"name": "sda"}})
	})

	env := h.call("get_disk_info", target(map[string]interface{}{"server_id": serverA}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)

	data := env.Data.(map[string]interface{})
	assert.Equal(t, serverA, data["server_id"])
	assert.IsType(t, []interface{}{}, data["disks"])
	partitions := data["partitions"].(map[string]interface{})
	assert.Contains(t, partitions["error"], "404")
}

func TestListWorkspaces(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.Set("ap1", "dev-team", "tok-2"))
	require.NoError(t, h.store.Set("us1", "other", "tok-3"))

	env := h.call("list_workspaces", map[string]interface{}{"region": "ap1"})
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)

	list := env.Data.(map[string]interface{})["workspaces"].([]map[string]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "dev-team", list[0]["workspace"])
	assert.Equal(t, "prod", list[1]["workspace"])
	assert.Equal(t, true, list[1]["has_token"])
	assert.NotEmpty(t, list[1]["domain"])
	assert.Empty(t, h.seen(), "listing workspaces is local")

	env = h.call("list_workspaces", map[string]interface{}{"region": "mars"})
	assert.Equal(t, "region", env.Field)
}

func TestUpdateUserSettings(t *testing.T) {
	h := newHarness(t, nil)

	env := h.call("update_user_settings", target(map[string]interface{}{"settings": map[string]interface{}{"theme": "dark"}}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, http.MethodPut, h.last().Method)
	assert.Equal(t, "dark", h.last().Body["theme"])

	env = h.call("update_user_settings", target(map[string]interface{}{"settings": "dark"}))
	assert.Equal(t, "settings", env.Field)
}
