// Package logging provides subsystem-tagged structured logging for
// alpacon-mcp, built on log/slog.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Server", "listening on %s", addr)
//	logging.Debug("Dispatch", "invoking %s", op)
//	logging.Error("Remote", err, "request to %s failed", endpoint)
//
// When the MCP server runs on the stdio transport, stdout carries protocol
// frames, so logs must go to stderr.
//
// # Audit Logging
//
// Credential mutations are recorded with Audit:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:    "credential_set",
//	    Outcome:   "success",
//	    Region:    "ap1",
//	    Workspace: "prod",
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix.
//
// # Redaction
//
// RedactArgs masks tool arguments whose names look like secrets
// (token, password, secret, key) or bulk payloads before they are logged.
package logging
