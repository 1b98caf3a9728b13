package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slackrelay/internal/agent"
	"github.com/soyeahso/slackrelay/internal/config"
)

func newAskCmd() *cobra.Command {
	var (
		model  string
		user   string
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a message to the agent and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(c *config.Config) {
				if model != "" {
					c.Agent.Model = model
				}
			})
			if err != nil {
				return err
			}

			runner, err := newRunner(cfg.Agent, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, cfg.Agent.Timeout)
			defer cancel()

			chunks, err := runner.Invoke(ctx, agent.Request{
				Input:     strings.Join(args, " "),
				UserID:    user,
				SessionID: agent.SessionID("cli", "local", user),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !stream {
				reply, err := agent.Collect(ctx, chunks)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, strings.TrimSpace(reply))
				return nil
			}

			var streamErr error
			for c := range chunks {
				if c.Err != nil {
					streamErr = errors.Join(streamErr, c.Err)
					continue
				}
				fmt.Fprint(out, c.Text)
			}
			fmt.Fprintln(out)
			return streamErr
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "LLM model to use")
	cmd.Flags().StringVar(&user, "user", "cli", "user id the conversation is keyed by")
	cmd.Flags().BoolVar(&stream, "stream", false, "print the reply as it arrives")

	return cmd
}
