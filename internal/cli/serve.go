package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slackrelay/internal/config"
	"github.com/soyeahso/slackrelay/internal/dedup"
	"github.com/soyeahso/slackrelay/internal/gateway"
	"github.com/soyeahso/slackrelay/internal/logging"
	"github.com/soyeahso/slackrelay/internal/routing"
	"github.com/soyeahso/slackrelay/internal/slack"
	"github.com/soyeahso/slackrelay/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(c *config.Config) {
				if port != 0 {
					c.Server.Port = port
				}
				if bind != "" {
					c.Server.Bind = bind
				}
			})
			if err != nil {
				return err
			}

			lg, closer, err := logging.Open(logging.Options{
				Level: cfg.Logging.Level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, lg)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
				defer cancel()
				if err := shutdownTelemetry(flushCtx); err != nil {
					lg.Warn().Err(err).Msg("telemetry shutdown incomplete")
				}
			}()

			api := newSlackAPI(cfg.Slack)
			transport := newTransport(cfg.Slack, api, lg)
			botUserID := transport.AuthTest(ctx)

			runner, err := newRunner(cfg.Agent, lg)
			if err != nil {
				return err
			}

			router := routing.NewRouter(transport, runner, dedup.New(cfg.Dispatch.LedgerSize), routing.Options{
				BotUserID:     botUserID,
				AgentTimeout:  cfg.Agent.Timeout,
				Async:         cfg.Dispatch.Async,
				MaxConcurrent: cfg.Dispatch.MaxConcurrent,
				SessionScope:  cfg.Dispatch.SessionScope,
			}, lg)

			verifier := slack.NewVerifier(cfg.Slack.SigningSecret, lg,
				slack.WithTolerance(cfg.Slack.SignatureTolerance))
			if !verifier.Enabled() {
				lg.Warn().Msg("signing secret not configured, inbound requests are not verified")
			}

			srv := gateway.New(cfg, router, verifier, lg, gateway.WithShutdownHook(router.Wait))

			if cfg.Slack.SocketMode {
				receiver := slack.NewSocketReceiver(api, srv.HandleSocketPayload, lg)
				go func() {
					if err := receiver.Run(ctx); err != nil {
						lg.Error().Err(err).Msg("socket mode receiver stopped")
					}
				}()
				lg.Info().Msg("socket mode enabled")
			}

			lg.Info().
				Int("port", cfg.Server.Port).
				Str("scope", cfg.Dispatch.SessionScope).
				Bool("async", cfg.Dispatch.Async).
				Msgf("Server running on port %d", cfg.Server.Port)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}
