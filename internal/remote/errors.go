package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a failed remote call.
type Kind string

const (
	// KindNetwork covers connection failures, DNS errors and resets.
	KindNetwork Kind = "network"
	// KindTimeout means the call exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindStatus means the API answered with a non-2xx status.
	KindStatus Kind = "status"
	// KindDecode means a 2xx response body was not valid JSON.
	KindDecode Kind = "decode"
	// KindTooLarge means the response body exceeded the size limit.
	KindTooLarge Kind = "too_large"
)

// Error is returned by every Client method on failure.
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("HTTP %d from %s %s", e.StatusCode, e.Method, e.URL)
	case KindTimeout:
		return fmt.Sprintf("request to %s %s timed out", e.Method, e.URL)
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s error calling %s %s", e.Kind, e.Method, e.URL)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsStatus reports whether err is a status error with the given code.
func IsStatus(err error, code int) bool {
	re, ok := AsError(err)
	return ok && re.Kind == KindStatus && re.StatusCode == code
}
