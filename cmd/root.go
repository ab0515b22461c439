package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// Global flags shared by subcommands.
var (
	tokenFile string
	debug     bool
)

// rootCmd represents the base command for alpacon-mcp.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alpacon-mcp",
		Short: "MCP server for the Alpacon infrastructure API",
		Long: `alpacon-mcp exposes Alpacon server management, monitoring, WebSH,
WebFTP, IAM and event operations as Model Context Protocol tools.

Run 'alpacon-mcp serve' from an MCP client configuration and store API
tokens per workspace with 'alpacon-mcp auth set'.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate(`{{printf "alpacon-mcp version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Credential file (default: ./config/token.json, or ./.config/token.json in dev mode)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAuthCmd())
	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}
