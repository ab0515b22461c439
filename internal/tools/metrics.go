package tools

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
	"alpacon-mcp/internal/remote"
)

const (
	defaultMetricsWindow = 24 * time.Hour
	maxSummaryHours      = 168
)

// metricKind describes one realtime metric endpoint.
type metricKind struct {
	endpoint   string
	metricType string
	// filters are optional arguments forwarded as query parameters.
	filters []string
}

var metricKinds = map[string]metricKind{
	"cpu":     {endpoint: "/api/metrics/realtime/cpu/", metricType: "cpu_usage"},
	"memory":  {endpoint: "/api/metrics/realtime/memory/", metricType: "memory_usage"},
	"disk":    {endpoint: "/api/metrics/realtime/disk-usage/", metricType: "disk_usage", filters: []string{"device", "partition"}},
	"traffic": {endpoint: "/api/metrics/realtime/traffic/", metricType: "network_traffic", filters: []string{"interface"}},
}

// topMetricOrder is the order used when metric_types is empty.
var topMetricOrder = []string{"cpu", "memory", "disk", "traffic"}

// NewMetricsProvider exposes realtime server metrics and alert rules.
func NewMetricsProvider(deps Deps) *Provider {
	c := deps.Client
	serverID := []dispatch.IdentifierRule{{Field: "server_id", Required: true}}
	dateParams := []api.ParameterMetadata{
		stringParam("start_date", "Start date in ISO format (e.g. 2024-01-01T00:00:00Z); defaults to 24 hours ago", false),
		stringParam("end_date", "End date in ISO format", false),
	}

	series := func(name, description, kind string, extra ...api.ParameterMetadata) tool {
		params := append([]api.ParameterMetadata{idParam("server_id", "Server ID", true)}, extra...)
		params = append(params, dateParams...)
		return tool{
			meta: api.ToolMetadata{Name: name, Description: description, Parameters: api.TargetParams(params...)},
			op:   dispatch.Operation{Identifiers: serverID, Echo: metricKinds[kind].filters},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				data, err := fetchSeries(ctx, c, req, kind, req.Args.String("start_date"), req.Args.String("end_date"))
				if err != nil {
					return nil, err
				}
				env := api.Success(data).With("metric_type", metricKinds[kind].metricType)
				if stats, ok := seriesStatistics(data); ok {
					env.With("statistics", stats)
				}
				return env, nil
			},
		}
	}

	return newProvider("metrics", deps.Pipeline, []tool{
		series("get_cpu_usage", "Get server CPU usage metrics", "cpu"),
		series("get_memory_usage", "Get server memory usage metrics", "memory"),
		series("get_disk_usage", "Get server disk usage metrics", "disk",
			stringParam("device", "Optional device path (e.g. /dev/sda1)", false),
			stringParam("partition", "Optional partition path (e.g. /)", false)),
		series("get_network_traffic", "Get server network traffic metrics", "traffic",
			stringParam("interface", "Optional network interface (e.g. eth0)", false)),
		{
			meta: api.ToolMetadata{
				Name:        "get_top_servers",
				Description: "Get top servers by resource usage in the last 24 hours",
				Parameters: api.TargetParams(stringParam("metric_types",
					"Comma-separated metric types (cpu, memory, disk, traffic); empty means all", false)),
			},
			op: dispatch.Operation{Validators: []dispatch.Stage{metricTypesStage}},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return topServers(ctx, c, req)
			},
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_alert_rules",
				Description: "Get alert rules",
				Parameters:  api.TargetParams(idParam("server_id", "Optional server ID to filter rules", false)),
			},
			op:     dispatch.Operation{Identifiers: []dispatch.IdentifierRule{{Field: "server_id"}}},
			invoke: getCall(c, fixed("/api/metrics/alert-rules/"), serverFilter),
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_server_metrics_summary",
				Description: "Get a compact metrics summary for a server",
				Parameters: api.TargetParams(
					idParam("server_id", "Server ID", true),
					intParam("hours", "Hours of history to summarize (max 168)", 24),
				),
			},
			op: dispatch.Operation{Identifiers: serverID},
			invoke: func(ctx context.Context, req *dispatch.Request) (*api.Envelope, error) {
				return metricsSummary(ctx, c, req), nil
			},
		},
	})
}

func fetchSeries(ctx context.Context, c *remote.Client, req *dispatch.Request, kind, start, end string) (interface{}, error) {
	mk := metricKinds[kind]
	q := url.Values{"server": {req.Identifier("server_id")}}
	for _, f := range mk.filters {
		setIf(q, f, req, f)
	}
	if start == "" {
		start = time.Now().UTC().Add(-defaultMetricsWindow).Format(time.RFC3339)
	}
	q.Set("start", start)
	if end != "" {
		q.Set("end", end)
	}
	return c.Get(ctx, req.Target(), mk.endpoint, q)
}

// seriesStatistics summarizes the "usage" values of a results list.
func seriesStatistics(data interface{}) (map[string]interface{}, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return nil, false
	}
	results, ok := m["results"].([]interface{})
	if !ok {
		return nil, false
	}

	var sum, lo, hi float64
	n := 0
	for _, r := range results {
		point, _ := r.(map[string]interface{})
		v, ok := point["usage"].(float64)
		if !ok {
			continue
		}
		if n == 0 || v < lo {
			lo = v
		}
		if n == 0 || v > hi {
			hi = v
		}
		sum += v
		n++
	}
	stats := map[string]interface{}{"data_points": len(results)}
	if n > 0 {
		stats["average"] = sum / float64(n)
		stats["min"] = lo
		stats["max"] = hi
	}
	return stats, true
}

func parseMetricTypes(raw string) (types []string, invalid []string) {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), topMetricOrder...), nil
	}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		t := strings.ToLower(strings.TrimSpace(part))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		if _, ok := metricKinds[t]; !ok {
			invalid = append(invalid, t)
			continue
		}
		types = append(types, t)
	}
	return types, invalid
}

func metricTypesStage(_ context.Context, req *dispatch.Request) *api.Envelope {
	types, invalid := parseMetricTypes(req.Args.String("metric_types"))
	if len(invalid) == 0 && len(types) == 0 {
		return api.FieldError("metric_types", "metric_types must name at least one type")
	}
	if len(invalid) > 0 {
		return api.FieldError("metric_types", fmt.Sprintf("Invalid metric types: %s. Must be one of: %s",
			strings.Join(invalid, ", "), strings.Join(topMetricOrder, ", ")))
	}
	return nil
}

// topServers queries each requested /top/ endpoint concurrently. A single
// type returns that endpoint's data; several types are keyed by type, with a
// failed type carrying its error message.
func topServers(ctx context.Context, c *remote.Client, req *dispatch.Request) (*api.Envelope, error) {
	types, _ := parseMetricTypes(req.Args.String("metric_types"))

	results := make([]interface{}, len(types))
	errs := make([]error, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			results[i], errs[i] = c.Get(gctx, req.Target(), metricKinds[t].endpoint+"top/", nil)
			return nil
		})
	}
	_ = g.Wait()

	if len(types) == 1 {
		if errs[0] != nil {
			return nil, errs[0]
		}
		return api.Success(results[0]).With("metric_type", types[0]+"_top"), nil
	}

	data := make(map[string]interface{}, len(types))
	failed := 0
	for i, t := range types {
		if errs[i] != nil {
			failed++
			data[t] = map[string]interface{}{"error": dispatch.NormalizeError(req.Operation, errs[i]).Message}
			continue
		}
		data[t] = results[i]
	}
	if failed == len(types) {
		return nil, errs[0]
	}
	return api.Success(data).With("metric_types", types), nil
}

// metricsSummary fetches the four series concurrently and reports only their
// availability and size. Individual failures do not fail the summary.
func metricsSummary(ctx context.Context, c *remote.Client, req *dispatch.Request) *api.Envelope {
	hours := req.Args.Int("hours", 24)
	if hours < 1 {
		hours = 1
	}
	if hours > maxSummaryHours {
		hours = maxSummaryHours
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	startS, endS := start.Format(time.RFC3339), end.Format(time.RFC3339)

	sections := map[string]string{"cpu": "cpu", "memory": "memory", "disk": "disk", "network": "traffic"}
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]map[string]interface{}, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			data, err := fetchSeries(ctx, c, req, sections[name], startS, endS)
			summaries[i] = summarizeSection(name, data, err)
			return nil
		})
	}
	_ = g.Wait()

	metrics := make(map[string]interface{}, len(names))
	for i, name := range names {
		metrics[name] = summaries[i]
	}
	return api.Success(map[string]interface{}{
		"server_id": req.Identifier("server_id"),
		"time_range": map[string]interface{}{
			"start": startS,
			"end":   endS,
			"hours": hours,
		},
		"metrics": metrics,
		"note":    "This is a summary. Use individual metric tools for full data.",
	})
}

func summarizeSection(name string, data interface{}, err error) map[string]interface{} {
	if err != nil {
		return map[string]interface{}{"available": false, "error": err.Error()}
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		return map[string]interface{}{"available": false, "error": "Unexpected data format"}
	}
	results, ok := m["results"].([]interface{})
	if !ok {
		return map[string]interface{}{"available": false, "error": "No data available"}
	}
	return map[string]interface{}{
		"available":   true,
		"data_points": len(results),
		"note":        fmt.Sprintf("Full %s data available via dedicated tool", name),
	}
}
