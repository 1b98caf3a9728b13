package cli

import (
	"fmt"

	"github.com/soyeahso/slackrelay/internal/agent"
	"github.com/soyeahso/slackrelay/internal/config"
	"github.com/soyeahso/slackrelay/internal/llm"
	"github.com/soyeahso/slackrelay/internal/logging"
	"github.com/soyeahso/slackrelay/internal/slack"
)

// loadConfig reads the config file, lets the caller apply flag overrides,
// and validates the result. Every issue is logged.
func loadConfig(override func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if override != nil {
		override(&cfg)
	}

	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// newSlackAPI returns nil when no Slack token is configured.
func newSlackAPI(cfg config.SlackConfig) *slack.API {
	if cfg.BotToken == "" && cfg.AppToken == "" {
		return nil
	}
	return slack.NewAPI(slack.APIOptions{
		BaseURL:   cfg.APIBaseURL,
		BotToken:  cfg.BotToken,
		AppToken:  cfg.AppToken,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})
}

// newTransport builds the outbound side. Without a bot token the transport
// runs degraded.
func newTransport(cfg config.SlackConfig, api *slack.API, lg *logging.Logger) *slack.Transport {
	if !cfg.OutboundEnabled() {
		api = nil
	}
	return slack.NewTransport(api, slack.TransportOptions{
		Username:  cfg.Username,
		IconEmoji: cfg.IconEmoji,
	}, lg)
}

// newRunner builds the LLM-backed agent from the agent config.
func newRunner(cfg config.AgentConfig, lg *logging.Logger) (*agent.Runner, error) {
	registry, err := llm.NewRegistryFromConfig(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("building LLM registry: %w", err)
	}
	lg.Info().Strs("providers", registry.List()).Str("model", cfg.Model).Msg("LLM providers available")

	return agent.NewRunner(
		agent.RunnerConfig{
			AgentName:    cfg.Name,
			Model:        cfg.Model,
			Fallbacks:    cfg.Fallbacks,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			ExtraPrompt:  cfg.SystemPrompt,
			HistoryLimit: cfg.HistoryLimit,
		},
		registry,
		agent.NewMemorySessionStore(),
		lg,
	), nil
}
