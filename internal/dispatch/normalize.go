package dispatch

import (
	"errors"
	"fmt"
	"net/http"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/remote"
)

// NormalizeError converts an invoke failure into the envelope returned to the
// caller. Validation and credential errors keep their own shape; everything
// else is reported as "Failed in <operation>: <cause>".
func NormalizeError(operation string, err error) *api.Envelope {
	var verr *api.ValidationError
	if errors.As(err, &verr) {
		return api.FromValidationError(verr)
	}
	if api.IsCredentialMissing(err) {
		return api.Error(err.Error())
	}

	var terr *TimeoutError
	if errors.As(err, &terr) {
		return api.Timeout(terr.Error())
	}

	if re, ok := remote.AsError(err); ok {
		switch re.Kind {
		case remote.KindTimeout:
			return api.Timeout(fmt.Sprintf("Failed in %s: %s", operation, re.Error()))
		case remote.KindStatus:
			env := api.Error(fmt.Sprintf("Failed in %s: %s", operation, statusMessage(re.StatusCode)))
			env.With("status_code", re.StatusCode)
			if re.Body != "" {
				env.With("response", re.Body)
			}
			return env
		}
	}

	return api.Error(fmt.Sprintf("Failed in %s: %s", operation, err.Error()))
}

// statusMessage maps an HTTP status to a stable, human readable phrase.
func statusMessage(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return fmt.Sprintf("authentication failed (HTTP %d); no valid credential found, set a new token", code)
	case code == http.StatusForbidden:
		return fmt.Sprintf("permission denied (HTTP %d); the token is not allowed to perform this action", code)
	case code == http.StatusNotFound:
		return fmt.Sprintf("resource not found (HTTP %d)", code)
	case code == http.StatusTooManyRequests:
		return fmt.Sprintf("rate limited by the remote API (HTTP %d)", code)
	case code >= 500:
		return fmt.Sprintf("remote server error (HTTP %d)", code)
	default:
		return fmt.Sprintf("request rejected by the remote API (HTTP %d)", code)
	}
}
