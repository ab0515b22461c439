package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOneOf(t *testing.T) {
	assert.NoError(t, ValidateOneOf("transport", "sse", transports))

	err := ValidateOneOf("transport", "grpc", transports)
	require.Error(t, err)
	assert.Equal(t, `transport: "grpc" must be one of: stdio, sse, streamable-http`, err.Error())
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange("port", 0, 0, 65535))
	assert.Error(t, ValidateRange("port", 70000, 0, 65535))
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())

	errs.AddIf(nil)
	errs.AddIf(ValidateRange("server.port", -1, 0, 65535))
	errs.Add("remote.timeout", "must not be negative")
	require.Len(t, errs, 2)
	assert.Equal(t, "validation failed: server.port: -1 out of range 0-65535; remote.timeout: must not be negative", errs.Error())
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())

	cfg := GetDefaultConfig()
	cfg.Server.Port = 99999
	cfg.DefaultRegion = "mars"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "defaultRegion")
}
