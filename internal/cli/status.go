package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slackrelay/internal/config"
	"github.com/soyeahso/slackrelay/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show slackrelay status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slackrelay %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults and environment)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Server:    env=%s port=%d bind=%s tls=%v\n",
				cfg.Environment, cfg.Server.Port, cfg.Server.Bind, cfg.Server.TLS.Enabled)
			fmt.Fprintf(out, "Slack:     signature=%s outbound=%s socketMode=%v\n",
				onOff(cfg.Slack.SigningSecret != ""), onOff(cfg.Slack.OutboundEnabled()), cfg.Slack.SocketMode)
			fmt.Fprintf(out, "Dispatch:  async=%v maxConcurrent=%d ledger=%d scope=%s\n",
				cfg.Dispatch.Async, cfg.Dispatch.MaxConcurrent, cfg.Dispatch.LedgerSize, cfg.Dispatch.SessionScope)

			model := cfg.Agent.Model
			if model == "" {
				model = "(provider default)"
			}
			fmt.Fprintf(out, "Agent:     name=%s provider=%s model=%s timeout=%s\n",
				cfg.Agent.Name, cfg.Agent.Provider, model, cfg.Agent.Timeout)
			if len(cfg.Agent.Fallbacks) > 0 {
				fmt.Fprintf(out, "Fallbacks: %s\n", strings.Join(cfg.Agent.Fallbacks, ", "))
			}

			if cfg.Telemetry.Enabled {
				fmt.Fprintf(out, "Telemetry: %s %s\n", cfg.Telemetry.Protocol, cfg.Telemetry.Endpoint)
			} else {
				fmt.Fprintln(out, "Telemetry: disabled")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
