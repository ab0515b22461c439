package api

import (
	"encoding/json"
	"maps"
)

// Status is the outcome carried by every Envelope.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Envelope is the single response shape returned by every tool.
//
// On the wire the core fields (status, data, message, field) sit next to the
// echoed request context (region, workspace, server_id, ...), which is kept
// separately in Context so that it can never overwrite a core field.
type Envelope struct {
	Status  Status
	Data    interface{}
	Message string
	Field   string
	Context map[string]interface{}
}

var coreKeys = map[string]struct{}{
	"status":  {},
	"data":    {},
	"message": {},
	"field":   {},
}

// Success wraps data in a success envelope.
func Success(data interface{}) *Envelope {
	return &Envelope{Status: StatusSuccess, Data: data}
}

// Error creates an error envelope with the given message.
func Error(message string) *Envelope {
	return &Envelope{Status: StatusError, Message: message}
}

// FieldError creates an error envelope that names the offending argument.
func FieldError(field, message string) *Envelope {
	return &Envelope{Status: StatusError, Field: field, Message: message}
}

// Timeout creates a timeout envelope. Timeouts are not errors; the operation
// may still complete remotely and can be re-queried.
func Timeout(message string) *Envelope {
	return &Envelope{Status: StatusTimeout, Message: message}
}

// FromValidationError converts a ValidationError into a field-tagged envelope.
func FromValidationError(err *ValidationError) *Envelope {
	env := FieldError(err.Field, err.Message)
	if err.Hint != "" {
		env.With("hint", err.Hint)
	}
	if len(err.Invalid) > 0 {
		env.With("invalid_values", err.Invalid)
	}
	return env
}

// With adds an echoed context field and returns the envelope for chaining.
// Keys that collide with core fields are ignored.
func (e *Envelope) With(key string, value interface{}) *Envelope {
	if _, core := coreKeys[key]; core {
		return e
	}
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAll merges ctx into the envelope's context, keeping existing values.
func (e *Envelope) WithAll(ctx map[string]interface{}) *Envelope {
	for k, v := range ctx {
		if _, exists := e.Context[k]; exists {
			continue
		}
		e.With(k, v)
	}
	return e
}

// Get returns an echoed context value.
func (e *Envelope) Get(key string) (interface{}, bool) {
	v, ok := e.Context[key]
	return v, ok
}

// IsSuccess reports whether the envelope carries a success status.
func (e *Envelope) IsSuccess() bool {
	return e != nil && e.Status == StatusSuccess
}

// MarshalJSON flattens the context fields next to the core fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Context)+4)
	maps.Copy(out, e.Context)
	for k := range coreKeys {
		delete(out, k)
	}
	out["status"] = e.Status
	if e.Data != nil {
		out["data"] = e.Data
	}
	if e.Message != "" {
		out["message"] = e.Message
	}
	if e.Field != "" {
		out["field"] = e.Field
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Envelope{}
	if s, ok := raw["status"].(string); ok {
		e.Status = Status(s)
	}
	e.Data = raw["data"]
	if m, ok := raw["message"].(string); ok {
		e.Message = m
	}
	if f, ok := raw["field"].(string); ok {
		e.Field = f
	}
	for k, v := range raw {
		if _, core := coreKeys[k]; core {
			continue
		}
		e.With(k, v)
	}
	return nil
}
