package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so secrets and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Slack.SigningSecret = expandEnvVars(cfg.Slack.SigningSecret)
	cfg.Slack.BotToken = expandEnvVars(cfg.Slack.BotToken)
	cfg.Slack.AppToken = expandEnvVars(cfg.Slack.AppToken)
	cfg.Agent.APIKey = expandEnvVars(cfg.Agent.APIKey)
	for k, v := range cfg.Telemetry.Headers {
		cfg.Telemetry.Headers[k] = expandEnvVars(v)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Environment == "" {
		cfg.Environment = d.Environment
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = d.Server.Bind
	}
	if cfg.Slack.APIBaseURL == "" {
		cfg.Slack.APIBaseURL = d.Slack.APIBaseURL
	}
	if cfg.Slack.SignatureTolerance == 0 {
		cfg.Slack.SignatureTolerance = d.Slack.SignatureTolerance
	}
	if cfg.Slack.RateBurst == 0 {
		cfg.Slack.RateBurst = d.Slack.RateBurst
	}
	if cfg.Dispatch.MaxConcurrent == 0 {
		cfg.Dispatch.MaxConcurrent = d.Dispatch.MaxConcurrent
	}
	if cfg.Dispatch.LedgerSize == 0 {
		cfg.Dispatch.LedgerSize = d.Dispatch.LedgerSize
	}
	if cfg.Dispatch.SessionScope == "" {
		cfg.Dispatch.SessionScope = d.Dispatch.SessionScope
	}
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = d.Agent.Provider
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = d.Agent.Timeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = d.Telemetry.Protocol
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
}

// firstEnv returns the value of the first set, non-empty variable.
func firstEnv(names ...string) (string, bool) {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v, true
		}
	}
	return "", false
}

// applyEnvOverrides reads SLACKRELAY_* environment variables and the
// conventional Slack/hosting aliases and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v, ok := firstEnv("SLACKRELAY_SIGNING_SECRET", "SLACK_SIGNING_SECRET", "SIGNING_SECRET"); ok {
		cfg.Slack.SigningSecret = v
	}
	if v, ok := firstEnv("SLACKRELAY_BOT_TOKEN", "SLACK_BOT_TOKEN", "BOT_TOKEN"); ok {
		cfg.Slack.BotToken = v
	}
	if v, ok := firstEnv("SLACKRELAY_APP_TOKEN", "SLACK_APP_TOKEN"); ok {
		cfg.Slack.AppToken = v
	}
	if v, ok := firstEnv("SLACKRELAY_SERVER_PORT", "SERVER_PORT", "BL_SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := firstEnv("SLACKRELAY_ENVIRONMENT", "ENVIRONMENT", "BL_ENV"); ok {
		cfg.Environment = strings.ToLower(v)
	}
	if v := os.Getenv("SLACKRELAY_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("SLACKRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SLACKRELAY_AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Agent.Timeout = d
		}
	}
	if cfg.Agent.APIKey == "" {
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Agent.Provider == "claude" {
			cfg.Agent.APIKey = v
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
}
