package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVersionCmd(t *testing.T) {
	versionCmd := newVersionCmd()

	assert.Equal(t, "version", versionCmd.Use)
	assert.NotEmpty(t, versionCmd.Short)
	assert.NotEmpty(t, versionCmd.Long)
	assert.NotNil(t, versionCmd.Run)
}

func TestVersionCommandExecution(t *testing.T) {
	originalVersion := rootCmd.Version
	defer SetVersion(originalVersion)
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())

	var buf bytes.Buffer
	root := newRootCmd()
	root.Version = GetVersion()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	assert.NoError(t, root.Execute())

	assert.Equal(t, "alpacon-mcp version 1.2.3-test\n", buf.String())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "auth", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestServeFlags(t *testing.T) {
	serve := newServeCmd()
	for _, name := range []string{"config", "env-file", "transport", "host", "port"} {
		assert.NotNil(t, serve.Flags().Lookup(name), name)
	}
}
