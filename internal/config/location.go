package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	devConfigDir  = ".config"
	prodConfigDir = "config"
	tokenFileName = "token.json"
)

// TokenLocation is the resolved credential file plus the other candidates
// that may hold credentials from an earlier layout.
type TokenLocation struct {
	Path       string
	Fallbacks  []string
	DevMode    bool
	DevModeEnv string
}

// ResolveTokenLocation decides once per process where credentials live.
//
// Precedence: override, then $ALPACON_MCP_TOKEN_FILE, then <baseDir>/.config
// when it exists or $ALPACON_DEV is "true", then <baseDir>/config.
// An empty baseDir means the working directory.
func ResolveTokenLocation(override, baseDir string) TokenLocation {
	devEnv := os.Getenv(EnvDevMode)
	devPath := filepath.Join(baseDir, devConfigDir, tokenFileName)
	prodPath := filepath.Join(baseDir, prodConfigDir, tokenFileName)

	if override == "" {
		override = os.Getenv(EnvTokenFile)
	}
	if override != "" {
		return TokenLocation{Path: override, DevModeEnv: devEnv}
	}

	devMode := strings.EqualFold(devEnv, "true") || dirExists(filepath.Join(baseDir, devConfigDir))
	if devMode {
		return TokenLocation{Path: devPath, Fallbacks: []string{prodPath}, DevMode: true, DevModeEnv: devEnv}
	}
	return TokenLocation{Path: prodPath, Fallbacks: []string{devPath}, DevModeEnv: devEnv}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
