package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// AuditEvent describes a security-relevant action such as storing or
// removing a workspace credential.
type AuditEvent struct {
	Action    string
	Outcome   string
	Region    string
	Workspace string
	Target    string
	Error     string
}

// Audit logs an event at INFO level with an [AUDIT] prefix.
// Token values must never be placed in an AuditEvent.
func Audit(event AuditEvent) {
	logger := current()
	if logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("subsystem", "audit"),
		slog.String("action", event.Action),
		slog.String("outcome", event.Outcome),
	}
	if event.Region != "" {
		attrs = append(attrs, slog.String("region", event.Region))
	}
	if event.Workspace != "" {
		attrs = append(attrs, slog.String("workspace", event.Workspace))
	}
	if event.Target != "" {
		attrs = append(attrs, slog.String("target", event.Target))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}

	logger.LogAttrs(context.Background(), slog.LevelInfo, fmt.Sprintf("[AUDIT] %s", event.Action), attrs...)
}

const redacted = "***REDACTED***"

var sensitiveKeyFragments = []string{"token", "password", "secret", "key", "file_data", "content"}

// IsSensitiveKey reports whether an argument name looks like it carries a secret
// or bulk payload that should not reach the logs.
func IsSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// RedactArgs returns a copy of args with sensitive values replaced, at any
// depth of nested maps and slices. args is not modified.
func RedactArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if IsSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return RedactArgs(val)
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, s := range val {
			if IsSensitiveKey(k) {
				out[k] = redacted
				continue
			}
			out[k] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

// MaskToken keeps the first and last four characters of a token.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
