package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slackrelay/internal/dedup"
	"github.com/soyeahso/slackrelay/internal/routing"
)

func newNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify <user> <text...>",
		Short: "Send a direct message to a Slack user",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}

			transport := newTransport(cfg.Slack, newSlackAPI(cfg.Slack), log)
			router := routing.NewRouter(transport, nil, dedup.New(1), routing.Options{}, log)

			user := args[0]
			text := strings.Join(args[1:], " ")
			if err := router.Notify(cmd.Context(), user, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", user)
			return nil
		},
	}
}
