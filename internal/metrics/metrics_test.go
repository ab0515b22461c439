package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "unknown", sanitizeLabel(""))
	assert.Equal(t, "a_b", sanitizeLabel("a b"))
	assert.Len(t, sanitizeLabel(strings.Repeat("x", 100)), maxLabelLen)
}

func TestRecordToolCall(t *testing.T) {
	m := New()
	m.RecordToolCall("list_servers", "success", 10*time.Millisecond)
	m.RecordToolCall("list_servers", "success", 10*time.Millisecond)
	m.RecordToolCall("list_servers", "error", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("list_servers", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("list_servers", "error")))
}

func TestRecordRemoteAndFanOut(t *testing.T) {
	m := New()
	m.RecordRemoteRequest("GET", "ok", time.Millisecond)
	m.RecordRemoteRequest("POST", "status", time.Millisecond)
	m.RecordFanOutTarget("parallel", "success")
	m.RecordFanOutTarget("parallel", "error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteRequests.WithLabelValues("POST", "status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fanoutTargets.WithLabelValues("parallel", "error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordToolCall("x", "success", 0)
	m.RecordRemoteRequest("GET", "ok", 0)
	m.RecordFanOutTarget("parallel", "success")
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordToolCall("get_server", "success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `alpacon_mcp_tool_calls_total{operation="get_server",status="success"} 1`)
}
