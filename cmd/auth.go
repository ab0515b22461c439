package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"alpacon-mcp/internal/config"
	"alpacon-mcp/internal/credentials"
	"alpacon-mcp/internal/validation"
	"alpacon-mcp/pkg/logging"
)

type authTarget struct {
	workspace string
	region    string
}

func (t *authTarget) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.workspace, "workspace", "w", "", "Workspace name")
	cmd.Flags().StringVarP(&t.region, "region", "r", config.DefaultRegion, "Region code")
	_ = cmd.MarkFlagRequired("workspace")
}

func (t *authTarget) validate() error {
	if !validation.ValidRegion(t.region) {
		return fmt.Errorf("invalid region %q: must be one of %s", t.region, strings.Join(validation.KnownRegions, ", "))
	}
	if !validation.ValidWorkspace(t.workspace) {
		return fmt.Errorf("invalid workspace %q", t.workspace)
	}
	return nil
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored Alpacon API tokens",
		Long: `Manage the API tokens alpacon-mcp uses, one per workspace and region.

Examples:
  alpacon-mcp auth set -w prod -r ap1 --token <token>
  echo "$TOKEN" | alpacon-mcp auth set -w prod -r ap1
  alpacon-mcp auth list
  alpacon-mcp auth status
  alpacon-mcp auth remove -w prod -r ap1`,
	}
	cmd.AddCommand(newAuthSetCmd(), newAuthRemoveCmd(), newAuthListCmd(), newAuthStatusCmd())
	return cmd
}

// openStore resolves the credential location the same way the server does.
func openStore(cmd *cobra.Command) (*credentials.Store, error) {
	config.LoadEnv()
	if debug {
		logging.InitForCLI(logging.LevelDebug, cmd.ErrOrStderr())
	}
	loc := config.ResolveTokenLocation(tokenFile, "")
	return credentials.Open(credentials.Options{
		Path:       loc.Path,
		Fallbacks:  loc.Fallbacks,
		DevMode:    loc.DevMode,
		DevModeEnv: loc.DevModeEnv,
	})
}

func newAuthSetCmd() *cobra.Command {
	var target authTarget
	var token string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a token for a workspace",
		Long:  "Store a token for a workspace. Without --token the token is read from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := target.validate(); err != nil {
				return err
			}
			if token == "" {
				var err error
				if token, err = readToken(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.Set(target.region, target.workspace, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved for %s.%s (%s) in %s\n",
				target.workspace, target.region, logging.MaskToken(token), store.Path())
			return nil
		},
	}
	target.register(cmd)
	cmd.Flags().StringVar(&token, "token", "", "API token (read from stdin when omitted)")
	return cmd
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("token is required")
	}
	return token, nil
}

func newAuthRemoveCmd() *cobra.Command {
	var target authTarget
	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Remove the token of a workspace",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := target.validate(); err != nil {
				return err
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.Remove(target.region, target.workspace); err != nil {
				if errors.Is(err, credentials.ErrNotFound) {
					return fmt.Errorf("no token found for %s.%s", target.workspace, target.region)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token removed for %s.%s\n", target.workspace, target.region)
			return nil
		},
	}
	target.register(cmd)
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored tokens",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			status := store.Status()
			if !status.Authenticated {
				fmt.Fprintf(cmd.OutOrStdout(), "No tokens stored in %s\n", store.Path())
				return nil
			}

			creds := store.List()
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Region", "Workspace", "Token"})
			for _, rs := range status.Regions {
				for _, ws := range rs.Workspaces {
					t.AppendRow(table.Row{rs.Region, ws, logging.MaskToken(creds[rs.Region][ws].Token)})
				}
			}
			t.AppendFooter(table.Row{"", "Total", status.TotalTokens})
			t.Render()
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where tokens are stored and which workspaces are authenticated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			status := store.Status()
			info := store.ConfigInfo()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{"status": status, "config": info})
			}

			state := text.FgYellow.Sprint("Not authenticated")
			if status.Authenticated {
				state = text.FgGreen.Sprint("Authenticated")
			}
			fmt.Fprintf(out, "Status:      %s\n", state)
			fmt.Fprintf(out, "Token file:  %s\n", info.TokenFile)
			fmt.Fprintf(out, "Dev mode:    %t\n", info.IsDevMode)
			fmt.Fprintf(out, "Tokens:      %d\n", status.TotalTokens)
			for _, rs := range status.Regions {
				fmt.Fprintf(out, "  %-6s %s\n", rs.Region, strings.Join(rs.Workspaces, ", "))
			}
			if len(info.AvailableConfigs) > 0 {
				fmt.Fprintln(out, "Candidates:")
				for _, loc := range info.AvailableConfigs {
					marker := " "
					if loc.Current {
						marker = "*"
					}
					exists := "missing"
					if loc.Exists {
						exists = "exists"
					}
					fmt.Fprintf(out, "  %s %s (%s)\n", marker, loc.Path, exists)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}
