package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes a fresh command tree with args against a temporary credential
// file and returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	t.Cleanup(func() {
		tokenFile = ""
		debug = false
	})
	err := root.Execute()
	return out.String(), err
}

func TestAuthSetListRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	out, err := runCLI(t, "", "auth", "set", "--token-file", path, "-w", "prod", "-r", "ap1", "--token", "abcd1234efgh5678")
	require.NoError(t, err)
	assert.Contains(t, out, "Token saved for prod.ap1")
	assert.Contains(t, out, "abcd********5678")
	assert.NotContains(t, out, "abcd1234efgh5678")

	out, err = runCLI(t, "stdin-token-value\n", "auth", "set", "--token-file", path, "-w", "staging", "-r", "us1")
	require.NoError(t, err)
	assert.Contains(t, out, "staging.us1")

	out, err = runCLI(t, "", "auth", "list", "--token-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "prod")
	assert.Contains(t, out, "staging")
	assert.NotContains(t, out, "stdin-token-value")

	out, err = runCLI(t, "", "auth", "remove", "--token-file", path, "-w", "prod", "-r", "ap1")
	require.NoError(t, err)
	assert.Contains(t, out, "Token removed for prod.ap1")

	_, err = runCLI(t, "", "auth", "remove", "--token-file", path, "-w", "prod", "-r", "ap1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token found for prod.ap1")
}

func TestAuthSet_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	_, err := runCLI(t, "", "auth", "set", "--token-file", path, "-w", "prod", "-r", "xx9", "--token", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid region")

	_, err = runCLI(t, "", "auth", "set", "--token-file", path, "-w", "Bad Name", "--token", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workspace")

	_, err = runCLI(t, "   \n", "auth", "set", "--token-file", path, "-w", "prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestAuthStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	out, err := runCLI(t, "", "auth", "status", "--token-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated")
	assert.Contains(t, out, path)

	_, err = runCLI(t, "", "auth", "set", "--token-file", path, "-w", "prod", "--token", "abcd1234efgh5678")
	require.NoError(t, err)

	out, err = runCLI(t, "", "auth", "status", "--token-file", path, "--json")
	require.NoError(t, err)

	var decoded struct {
		Status struct {
			Authenticated bool `json:"authenticated"`
			TotalTokens   int  `json:"total_tokens"`
		} `json:"status"`
		Config struct {
			TokenFile string `json:"token_file"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.True(t, decoded.Status.Authenticated)
	assert.Equal(t, 1, decoded.Status.TotalTokens)
	assert.Equal(t, path, decoded.Config.TokenFile)
}

func TestReadToken(t *testing.T) {
	token, err := readToken(strings.NewReader("  tok  \nignored"))
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	token, err = readToken(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", token)

	_, err = readToken(strings.NewReader(""))
	assert.Error(t, err)
}
