package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"alpacon-mcp/internal/app"
)

type serveOptions struct {
	configPath string
	envFiles   []string
	transport  string
	host       string
	port       int
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Starts the alpacon-mcp server.

Transports:
  stdio            (default) JSON-RPC over stdin/stdout, for MCP clients
                   that launch the server as a subprocess
  sse              Server-Sent Events at /sse and /message
  streamable-http  Streamable HTTP at /mcp

HTTP transports also serve /healthz and, unless disabled in the settings
file, Prometheus metrics at /metrics.

Logs are written to stderr. Stdout is reserved for the stdio transport.

Configuration:
  Settings are read from --config (or $ALPACON_MCP_CONFIG). Values in .env
  files are loaded into the environment first. Tokens are read from
  ./config/token.json, or ./.config/token.json when that directory exists
  or ALPACON_DEV=true.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Settings file (YAML)")
	cmd.Flags().StringSliceVar(&opts.envFiles, "env-file", nil, "Environment files to load (default: .env)")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: stdio, sse or streamable-http")
	cmd.Flags().StringVar(&opts.host, "host", "", "Bind host for HTTP transports")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Bind port for HTTP transports")
	return cmd
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg := app.NewConfig(debug, opts.configPath, tokenFile)
	cfg.EnvFiles = opts.envFiles
	cfg.Transport = opts.transport
	cfg.Host = opts.host
	cfg.Port = opts.port
	cfg.Version = cmd.Root().Version
	cfg.Stdin = cmd.InOrStdin()
	cfg.Stdout = cmd.OutOrStdout()
	cfg.LogOutput = cmd.ErrOrStderr()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}
