package config

import "time"

// Config is the root configuration for slackrelay.
type Config struct {
	Environment string          `yaml:"environment,omitempty"` // "dev" | "prod"
	Server      ServerConfig    `yaml:"server,omitempty"`
	Slack       SlackConfig     `yaml:"slack,omitempty"`
	Dispatch    DispatchConfig  `yaml:"dispatch,omitempty"`
	Agent       AgentConfig     `yaml:"agent,omitempty"`
	Logging     LoggingConfig   `yaml:"logging,omitempty"`
	Telemetry   TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ServerConfig controls the inbound HTTP server.
type ServerConfig struct {
	Port           int       `yaml:"port,omitempty"`
	Bind           string    `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string    `yaml:"customBindHost,omitempty"`
	TLS            ServerTLS `yaml:"tls,omitempty"`
	// AllowedOrigins overrides the environment-derived CORS origin when set.
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ServerTLS configures TLS for the inbound server.
type ServerTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// SlackConfig holds Slack credentials and outbound messaging options.
type SlackConfig struct {
	SigningSecret      string        `yaml:"signingSecret,omitempty"` // empty disables signature checks
	BotToken           string        `yaml:"botToken,omitempty"`      // empty disables outbound messaging
	AppToken           string        `yaml:"appToken,omitempty"`      // xapp-... for Socket Mode
	APIBaseURL         string        `yaml:"apiBaseUrl,omitempty"`
	SocketMode         bool          `yaml:"socketMode,omitempty"`
	SignatureTolerance time.Duration `yaml:"signatureTolerance,omitempty"`
	RateLimit          float64       `yaml:"rateLimit,omitempty"` // outbound calls per second; 0 disables pacing
	RateBurst          int           `yaml:"rateBurst,omitempty"`
	Username           string        `yaml:"username,omitempty"`
	IconEmoji          string        `yaml:"iconEmoji,omitempty"`
}

// DispatchConfig tunes how inbound events are processed.
type DispatchConfig struct {
	Async         bool `yaml:"async,omitempty"`
	MaxConcurrent int  `yaml:"maxConcurrent,omitempty"`
	LedgerSize    int  `yaml:"ledgerSize,omitempty"`
	// SessionScope is "per-sender" (one conversation per user per channel)
	// or "channel" (one conversation shared by a channel).
	SessionScope string `yaml:"sessionScope,omitempty"`
}

// AgentConfig selects the conversational backend.
type AgentConfig struct {
	Name         string        `yaml:"name,omitempty"`
	Provider     string        `yaml:"provider,omitempty"` // "claude" | "ollama"
	Model        string        `yaml:"model,omitempty"`
	Fallbacks    []string      `yaml:"fallbacks,omitempty"`
	APIKey       string        `yaml:"apiKey,omitempty"`
	Endpoint     string        `yaml:"endpoint,omitempty"`
	MaxTokens    int           `yaml:"maxTokens,omitempty"`
	Temperature  *float64      `yaml:"temperature,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	SystemPrompt string        `yaml:"systemPrompt,omitempty"`
	HistoryLimit int           `yaml:"historyLimit,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool              `yaml:"enabled,omitempty"`
	Endpoint    string            `yaml:"endpoint,omitempty"` // host:port or URL of the OTLP collector
	Protocol    string            `yaml:"protocol,omitempty"` // "grpc" | "http"
	Insecure    bool              `yaml:"insecure,omitempty"`
	ServiceName string            `yaml:"serviceName,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// IsProduction reports whether the relay runs in the production environment.
func (c Config) IsProduction() bool {
	return c.Environment == "prod"
}

// OutboundEnabled reports whether a bot token is configured.
func (c SlackConfig) OutboundEnabled() bool {
	return c.BotToken != ""
}
