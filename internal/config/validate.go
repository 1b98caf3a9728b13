package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	validEnvs := []string{"dev", "prod"}
	if cfg.Environment != "" && !slices.Contains(validEnvs, cfg.Environment) {
		issues = append(issues, ValidationIssue{
			Path:    "environment",
			Message: fmt.Sprintf("must be one of %v, got %q", validEnvs, cfg.Environment),
		})
	}

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when bind is custom",
		})
	}
	if cfg.Server.TLS.Enabled && (cfg.Server.TLS.CertPath == "" || cfg.Server.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "server.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	// Slack validation
	if cfg.Slack.SignatureTolerance < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "slack.signatureTolerance",
			Message: "must not be negative",
		})
	}
	if cfg.Slack.RateLimit < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "slack.rateLimit",
			Message: fmt.Sprintf("must not be negative, got %v", cfg.Slack.RateLimit),
		})
	}
	if cfg.Slack.SocketMode && cfg.Slack.AppToken == "" {
		issues = append(issues, ValidationIssue{
			Path:    "slack.appToken",
			Message: "required when socketMode is enabled",
		})
	}
	if cfg.Slack.AppToken != "" && !strings.HasPrefix(cfg.Slack.AppToken, "xapp-") {
		issues = append(issues, ValidationIssue{
			Path:    "slack.appToken",
			Message: "app-level tokens start with xapp-",
		})
	}

	// Dispatch validation
	if cfg.Dispatch.LedgerSize < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "dispatch.ledgerSize",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Dispatch.LedgerSize),
		})
	}
	if cfg.Dispatch.MaxConcurrent < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "dispatch.maxConcurrent",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Dispatch.MaxConcurrent),
		})
	}

	validScopes := []string{"per-sender", "channel"}
	if cfg.Dispatch.SessionScope != "" && !slices.Contains(validScopes, cfg.Dispatch.SessionScope) {
		issues = append(issues, ValidationIssue{
			Path:    "dispatch.sessionScope",
			Message: fmt.Sprintf("must be one of %v, got %q", validScopes, cfg.Dispatch.SessionScope),
		})
	}

	// Agent validation
	validProviders := []string{"claude", "ollama", "echo"}
	if cfg.Agent.Provider != "" && !slices.Contains(validProviders, cfg.Agent.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "agent.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Agent.Provider),
		})
	}
	if cfg.Agent.Provider == "claude" && cfg.Agent.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "agent.apiKey",
			Message: "required when provider is claude",
		})
	}
	if cfg.Agent.Timeout < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.timeout",
			Message: "must not be negative",
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Telemetry validation (only if enabled)
	if cfg.Telemetry.Enabled {
		validProtocols := []string{"grpc", "http"}
		if !slices.Contains(validProtocols, cfg.Telemetry.Protocol) {
			issues = append(issues, ValidationIssue{
				Path:    "telemetry.protocol",
				Message: fmt.Sprintf("must be one of %v, got %q", validProtocols, cfg.Telemetry.Protocol),
			})
		}
		if cfg.Telemetry.Endpoint == "" {
			issues = append(issues, ValidationIssue{
				Path:    "telemetry.endpoint",
				Message: "required when telemetry is enabled",
			})
		}
	}

	return issues
}
