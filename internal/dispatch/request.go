package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"alpacon-mcp/internal/remote"
)

// Request is the per-call context threaded through every stage and handed to
// the operation handler. It is never persisted.
type Request struct {
	Operation string
	Region    string
	Workspace string
	// Token is set by the credential stage; empty for local operations.
	Token string

	Args Args

	// Identifiers holds validated single identifiers by argument name.
	Identifiers map[string]string
	// IdentifierLists holds validated identifier lists by argument name,
	// duplicates removed, in input order.
	IdentifierLists map[string][]string
}

// Target returns the remote target for this request.
func (r *Request) Target() remote.Target {
	return remote.Target{Region: r.Region, Workspace: r.Workspace, Token: r.Token}
}

// Identifier returns a validated identifier, or "" when it was not supplied.
func (r *Request) Identifier(field string) string {
	return r.Identifiers[field]
}

// Args wraps the raw tool arguments with typed accessors. Numbers decoded
// from JSON arrive as float64; the accessors accept any numeric form.
type Args map[string]interface{}

// Has reports whether name is present with a non-nil value.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns the argument as a string, or "" when absent.
func (a Args) String(name string) string {
	return a.StringDefault(name, "")
}

// StringDefault returns the argument as a string, or def when absent or empty.
func (a Args) StringDefault(name, def string) string {
	v, ok := a[name]
	if !ok || v == nil {
		return def
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return def
	}
	return s
}

// Int returns the argument as an int, or def when absent or not numeric.
func (a Args) Int(name string, def int) int {
	v, ok := a[name]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the argument as a bool, or def when absent.
func (a Args) Bool(name string, def bool) bool {
	v, ok := a[name]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// Map returns an object argument, or nil.
func (a Args) Map(name string) map[string]interface{} {
	if m, ok := a[name].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// StringSlice returns a list argument. A comma separated string is split.
// Non-string elements are formatted with fmt.Sprint.
func (a Args) StringSlice(name string) ([]string, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(e))
			}
		}
		return out, true
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}, true
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	default:
		return []string{fmt.Sprint(t)}, true
	}
}
