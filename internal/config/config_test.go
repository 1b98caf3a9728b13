package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader consults so host settings
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SLACKRELAY_SIGNING_SECRET", "SLACK_SIGNING_SECRET", "SIGNING_SECRET",
		"SLACKRELAY_BOT_TOKEN", "SLACK_BOT_TOKEN", "BOT_TOKEN",
		"SLACKRELAY_APP_TOKEN", "SLACK_APP_TOKEN",
		"SLACKRELAY_SERVER_PORT", "SERVER_PORT", "BL_SERVER_PORT",
		"SLACKRELAY_ENVIRONMENT", "ENVIRONMENT", "BL_ENV",
		"SLACKRELAY_BIND", "SLACKRELAY_LOG_LEVEL", "SLACKRELAY_AGENT_TIMEOUT",
		"ANTHROPIC_API_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(name, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, 80, cfg.Server.Port)
	assert.Equal(t, "lan", cfg.Server.Bind)
	assert.Equal(t, 5*time.Minute, cfg.Slack.SignatureTolerance)
	assert.Equal(t, "AI Assistant", cfg.Slack.Username)
	assert.Equal(t, ":robot_face:", cfg.Slack.IconEmoji)
	assert.Equal(t, 1000, cfg.Dispatch.LedgerSize)
	assert.Equal(t, "per-sender", cfg.Dispatch.SessionScope)
	assert.Equal(t, 16, cfg.Dispatch.MaxConcurrent)
	assert.False(t, cfg.Dispatch.Async)
	assert.Equal(t, 5*time.Minute, cfg.Agent.Timeout)
	assert.Equal(t, "ollama", cfg.Agent.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "slackrelay", cfg.Telemetry.ServiceName)
	assert.False(t, cfg.Slack.OutboundEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, 80, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
environment: prod
server:
  port: 8080
  bind: loopback
slack:
  signingSecret: shh
  botToken: xoxb-123
  signatureTolerance: 2m
  rateLimit: 5
dispatch:
  async: true
  ledgerSize: 50
agent:
  provider: claude
  model: claude-sonnet-4-5
  apiKey: sk-test
  timeout: 30s
  fallbacks:
    - ollama/llama3
logging:
  level: debug
  consoleStyle: json
telemetry:
  enabled: true
  endpoint: localhost:4317
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "shh", cfg.Slack.SigningSecret)
	assert.True(t, cfg.Slack.OutboundEnabled())
	assert.Equal(t, 2*time.Minute, cfg.Slack.SignatureTolerance)
	assert.Equal(t, float64(5), cfg.Slack.RateLimit)
	assert.True(t, cfg.Dispatch.Async)
	assert.Equal(t, 50, cfg.Dispatch.LedgerSize)
	assert.Equal(t, 16, cfg.Dispatch.MaxConcurrent)
	assert.Equal(t, "claude", cfg.Agent.Provider)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, []string{"ollama/llama3"}, cfg.Agent.Fallbacks)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)

	assert.Empty(t, Validate(&cfg))
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadUnreadableFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACK_SIGNING_SECRET", "from-env")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("BL_SERVER_PORT", "1338")
	t.Setenv("BL_ENV", "PROD")
	t.Setenv("SLACKRELAY_LOG_LEVEL", "WARN")
	t.Setenv("SLACKRELAY_AGENT_TIMEOUT", "45s")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Slack.SigningSecret)
	assert.Equal(t, "xoxb-env", cfg.Slack.BotToken)
	assert.Equal(t, 1338, cfg.Server.Port)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 45*time.Second, cfg.Agent.Timeout)
}

func TestEnvOverridePrefersNamespacedVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACKRELAY_BOT_TOKEN", "xoxb-primary")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-alias")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-primary", cfg.Slack.BotToken)
}

func TestEnvOverrideShortAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIGNING_SECRET", "plain")
	t.Setenv("SERVER_PORT", "8000")
	t.Setenv("ENVIRONMENT", "prod")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "plain", cfg.Slack.SigningSecret)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
}

func TestEnvOverrideBadPortIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("BL_SERVER_PORT", "eighty")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Server.Port)
}

func TestOTLPEndpointEnablesTelemetry(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestExpandSensitiveFields(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_RELAY_SECRET", "expanded-secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
slack:
  signingSecret: ${TEST_RELAY_SECRET}
  botToken: ${TEST_RELAY_UNSET_VAR}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.Slack.SigningSecret)
	assert.Equal(t, "${TEST_RELAY_UNSET_VAR}", cfg.Slack.BotToken)
}

func TestAnthropicKeyOnlyForClaude(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.Agent.APIKey, "default provider is ollama")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  provider: claude\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", cfg.Agent.APIKey)
}

func TestLoadRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	v, ok := GetValueAtPath(raw, []string{"server", "port"})
	require.True(t, ok)
	assert.Equal(t, 9000, v)
}

func TestLoadRawMissingAndEmpty(t *testing.T) {
	raw, err := LoadRaw("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Empty(t, raw)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	raw, err = LoadRaw(path)
	require.NoError(t, err)
	assert.NotNil(t, raw)
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Message: "bad"}
	assert.Equal(t, "config: bad", err.Error())
}
