// Package api holds the types shared by the dispatch pipeline, the tool
// providers and the MCP server.
//
// Every tool call produces an Envelope: a status of success, error or
// timeout, with the payload under data, a human readable message on
// failure, the offending field for validation errors, and context echoed
// at the top level (server_id, command_id and so on). ToolProvider is the
// contract between tool groups and the server; ToolMetadata and
// ParameterMetadata describe tools for MCP schema generation.
//
// Validation and credential failures are typed (ValidationError,
// CredentialMissingError) so that error normalization can turn them into
// field errors and the credential-missing message without string matching.
package api
