package api

import (
	"errors"
	"fmt"
)

// ValidationError reports an argument that failed an input check before any
// credential lookup or remote call happened.
//
// Field names the offending argument (e.g. "region", "server_ids") so tool
// callers can correct the specific input.
type ValidationError struct {
	// Field is the name of the argument that failed validation
	Field string

	// Message is the human readable reason
	Message string

	// Hint is an optional example of a valid value
	Hint string

	// Invalid lists the offending elements when Field is a list argument
	Invalid []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for field.
//
// Example:
//
//	return api.NewValidationError("region", "Invalid region: xx1")
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// CredentialMissingError is returned when no token is stored for the
// requested (region, workspace) pair.
type CredentialMissingError struct {
	Region    string
	Workspace string
}

// Error implements the error interface for CredentialMissingError.
//
// The message is part of the tool contract and is returned verbatim to callers.
func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("No token found for %s.%s. Please set token first.", e.Workspace, e.Region)
}

// IsCredentialMissing checks if an error is or wraps a CredentialMissingError.
//
// Example:
//
//	if api.IsCredentialMissing(err) {
//	    // prompt the user to run `alpacon-mcp auth set`
//	}
func IsCredentialMissing(err error) bool {
	var c *CredentialMissingError
	return errors.As(err, &c)
}
