package tools

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacon-mcp/internal/api"
)

func usageSeries(values ...float64) map[string]interface{} {
	results := make([]interface{}, 0, len(values))
	for _, v := range values {
		results = append(results, map[string]interface{}{"usage": v})
	}
	return map[string]interface{}{"results": results}
}

func TestGetCPUUsage_Statistics(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usageSeries(10, 30, 20))
	})

	env := h.call("get_cpu_usage", target(map[string]interface{}{"server_id": serverA}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, "cpu_usage", ctxValue(t, env, "metric_type"))

	stats := ctxValue(t, env, "statistics").(map[string]interface{})
	assert.Equal(t, 3, stats["data_points"])
	assert.InDelta(t, 20.0, stats["average"], 0.001)
	assert.Equal(t, 10.0, stats["min"])
	assert.Equal(t, 30.0, stats["max"])

	req := h.last()
	assert.Equal(t, "/api/metrics/realtime/cpu/", req.Path)
	assert.Equal(t, []string{serverA}, req.Query["server"])
	assert.NotEmpty(t, req.Query["start"], "start defaults to 24 hours ago")
}

func TestGetDiskUsage_ForwardsFilters(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usageSeries())
	})

	env := h.call("get_disk_usage", target(map[string]interface{}{
		"server_id":  serverA,
		"partition":  "/",
		"start_date": "2024-01-01T00:00:00Z",
	}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, "/", ctxValue(t, env, "partition"))

	req := h.last()
	assert.Equal(t, "/api/metrics/realtime/disk-usage/", req.Path)
	assert.Equal(t, []string{"/"}, req.Query["partition"])
	assert.Equal(t, []string{"2024-01-01T00:00:00Z"}, req.Query["start"])
	assert.Empty(t, req.Query["device"])
}

func TestGetTopServers(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/disk-usage/") {
			writeJSON(w, http.StatusBadGateway, nil)
			return
		}
		writeJSON(w, http.StatusOK, []interface{}{map[string]interface{}{"server": serverA}})
	})

	t.Run("single type", func(t *testing.T) {
		env := h.call("get_top_servers", target(map[string]interface{}{"metric_types": "cpu"}))
		require.Equal(t, api.StatusSuccess, env.Status, env.Message)
		assert.Equal(t, "cpu_top", ctxValue(t, env, "metric_type"))
		assert.Equal(t, "/api/metrics/realtime/cpu/top/", h.last().Path)
	})

	t.Run("all types keep partial results", func(t *testing.T) {
		env := h.call("get_top_servers", target(nil))
		require.Equal(t, api.StatusSuccess, env.Status, env.Message)
		data := env.Data.(map[string]interface{})
		assert.Len(t, data, 4)
		assert.Contains(t, data["disk"], "error")
		assert.IsType(t, []interface{}{}, data["cpu"])
	})

	t.Run("single failing type errors", func(t *testing.T) {
		env := h.call("get_top_servers", target(map[string]interface{}{"metric_types": "disk"}))
		assert.Equal(t, api.StatusError, env.Status)
	})

	t.Run("invalid type", func(t *testing.T) {
		before := len(h.seen())
		env := h.call("get_top_servers", target(map[string]interface{}{"metric_types": "cpu, gpu"}))
		assert.Equal(t, "metric_types", env.Field)
		assert.Contains(t, env.Message, "gpu")
		assert.Len(t, h.seen(), before)
	})

	t.Run("only separators", func(t *testing.T) {
		before := len(h.seen())
		env := h.call("get_top_servers", target(map[string]interface{}{"metric_types": " , ,"}))
		assert.Equal(t, "metric_types", env.Field)
		assert.Equal(t, "metric_types must name at least one type", env.Message)
		assert.Len(t, h.seen(), before)
	})
}

func TestParseMetricTypes(t *testing.T) {
	types, invalid := parseMetricTypes("")
	assert.Equal(t, []string{"cpu", "memory", "disk", "traffic"}, types)
	assert.Empty(t, invalid)

	types, invalid = parseMetricTypes(" CPU,cpu , traffic,,bogus")
	assert.Equal(t, []string{"cpu", "traffic"}, types)
	assert.Equal(t, []string{"bogus"}, invalid)
}

func TestServerMetricsSummary(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/memory/") {
			writeJSON(w, http.StatusInternalServerError, nil)
			return
		}
		writeJSON(w, http.StatusOK, usageSeries(1, 2))
	})

	env := h.call("get_server_metrics_summary", target(map[string]interface{}{"server_id": serverA, "hours": 1000.0}))
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)

	data := env.Data.(map[string]interface{})
	assert.Equal(t, 168, data["time_range"].(map[string]interface{})["hours"])

	metrics := data["metrics"].(map[string]interface{})
	require.Len(t, metrics, 4)
	assert.Equal(t, true, metrics["cpu"].(map[string]interface{})["available"])
	assert.Equal(t, 2, metrics["network"].(map[string]interface{})["data_points"])
	assert.Equal(t, false, metrics["memory"].(map[string]interface{})["available"])
	assert.Len(t, h.seen(), 4)
}
