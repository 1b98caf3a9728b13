package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".slackrelay"

// Paths holds resolved filesystem paths for slackrelay data.
type Paths struct {
	Base   string // ~/.slackrelay
	Config string // ~/.slackrelay/config.yaml
	Logs   string // ~/.slackrelay/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If SLACKRELAY_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("SLACKRELAY_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ParseConfigPath splits a dot-separated config path into segments.
// Returns an error if any segment is empty.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// secretKeys are leaf names whose values are masked when printed.
var secretKeys = map[string]bool{
	"signingSecret": true,
	"botToken":      true,
	"appToken":      true,
	"apiKey":        true,
}

// IsSecretPath reports whether the last segment of path names a credential.
func IsSecretPath(path []string) bool {
	return len(path) > 0 && secretKeys[path[len(path)-1]]
}

// Redact masks a credential, keeping a short prefix for identification.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:5] + "********"
}
