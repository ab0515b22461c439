package tools

import (
	"net/url"
	"strconv"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/dispatch"
)

// NewEventProvider exposes the workspace event log.
func NewEventProvider(deps Deps) *Provider {
	c := deps.Client
	optionalServer := []dispatch.IdentifierRule{{Field: "server_id"}}

	eventQuery := func(defLimit int) paramsFunc {
		return func(req *dispatch.Request) url.Values {
			q := serverFilter(req)
			q.Set("page_size", strconv.Itoa(req.Args.Int("limit", defLimit)))
			q.Set("ordering", "-added_at")
			setIf(q, "reporter", req, "reporter")
			setIf(q, "search", req, "search_query")
			return q
		}
	}

	return newProvider("events", deps.Pipeline, []tool{
		{
			meta: api.ToolMetadata{
				Name:        "list_events",
				Description: "List recent events",
				Parameters: api.TargetParams(
					idParam("server_id", "Optional server ID to filter events", false),
					stringParam("reporter", "Optional reporter to filter events", false),
					intParam("limit", "Maximum number of events to return", 50),
				),
			},
			op:     dispatch.Operation{Identifiers: optionalServer, Echo: []string{"reporter", "limit"}},
			invoke: getCall(c, fixed("/api/events/events/"), eventQuery(50)),
		},
		{
			meta: api.ToolMetadata{
				Name:        "get_event",
				Description: "Get details of a specific event",
				Parameters:  api.TargetParams(idParam("event_id", "Event ID", true)),
			},
			op:     dispatch.Operation{Identifiers: []dispatch.IdentifierRule{{Field: "event_id", Required: true}}},
			invoke: getCall(c, byID("/api/events/events/%s/", "event_id"), nil),
		},
		{
			meta: api.ToolMetadata{
				Name:        "search_events",
				Description: "Search events by text",
				Parameters: api.TargetParams(
					stringParam("search_query", "Text to search for", true),
					idParam("server_id", "Optional server ID to filter events", false),
					intParam("limit", "Maximum number of events to return", 20),
				),
			},
			op: dispatch.Operation{
				Identifiers: optionalServer,
				Required:    []string{"search_query"},
				Echo:        []string{"search_query", "limit"},
			},
			invoke: getCall(c, fixed("/api/events/events/"), eventQuery(20)),
		},
	})
}
