package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort               = 80
	DefaultLedgerSize         = 1000
	DefaultMaxConcurrent      = 16
	DefaultSignatureTolerance = 5 * time.Minute
	DefaultAgentTimeout       = 5 * time.Minute
	DefaultSlackAPIBaseURL    = "https://slack.com/api"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Environment: "dev",
		Server: ServerConfig{
			Port: DefaultPort,
			Bind: "lan",
		},
		Slack: SlackConfig{
			APIBaseURL:         DefaultSlackAPIBaseURL,
			SignatureTolerance: DefaultSignatureTolerance,
			RateLimit:          1,
			RateBurst:          3,
			Username:           "AI Assistant",
			IconEmoji:          ":robot_face:",
		},
		Dispatch: DispatchConfig{
			MaxConcurrent: DefaultMaxConcurrent,
			LedgerSize:    DefaultLedgerSize,
			SessionScope:  "per-sender",
		},
		Agent: AgentConfig{
			Name:         "research_assistant",
			Provider:     "ollama",
			Model:        "llama3",
			MaxTokens:    1024,
			Timeout:      DefaultAgentTimeout,
			HistoryLimit: 40,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "slackrelay",
		},
	}
}
