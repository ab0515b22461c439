package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, MCPTransportStdio, cfg.Server.Transport)
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  transport: streamable-http
  port: 9000
remote:
  timeout: 10s
commands:
  syncTimeout: 1m
regions: [ap1, kr1]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, MCPTransportStreamableHTTP, cfg.Server.Transport)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, DefaultBaseURLTemplate, cfg.Remote.BaseURLTemplate)
	assert.Equal(t, time.Minute, cfg.Commands.SyncTimeout)
	assert.Equal(t, DefaultPollInterval, cfg.Commands.PollInterval)
	assert.Equal(t, []string{"ap1", "kr1"}, cfg.Regions)
	assert.Equal(t, "ap1", cfg.DefaultRegion)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", "server:\n  transport: sse\n")
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, MCPTransportSSE, cfg.Server.Transport)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "server: [unterminated")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", "server:\n  transport: carrier-pigeon\nregions: [us1]\ndefaultRegion: ap1\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
	assert.Contains(t, err.Error(), "defaultRegion")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "ALPACON_MCP_TEST_VAR=from-file\n")

	t.Setenv("ALPACON_MCP_TEST_VAR", "")
	os.Unsetenv("ALPACON_MCP_TEST_VAR")

	LoadEnv(envFile, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "from-file", os.Getenv("ALPACON_MCP_TEST_VAR"))
}

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	envFile := writeFile(t, t.TempDir(), ".env", "ALPACON_MCP_TEST_VAR2=from-file\n")
	t.Setenv("ALPACON_MCP_TEST_VAR2", "from-env")

	LoadEnv(envFile)
	assert.Equal(t, "from-env", os.Getenv("ALPACON_MCP_TEST_VAR2"))
}
