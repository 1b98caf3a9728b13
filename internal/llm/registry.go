package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/slackrelay/internal/config"
	"github.com/soyeahso/slackrelay/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.), 0 if not HTTP-level
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Debug().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("sonnet", "claude") means "sonnet" resolves to the "claude" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers the configured provider as the fallback.
// Fallback model references of the form "ollama/<model>" or
// "claude/<model>" register additional providers for failover.
func NewRegistryFromConfig(cfg config.AgentConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	client, err := newProvider(cfg.Provider, cfg.Model, cfg.APIKey, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	reg.Register(cfg.Provider, client)
	reg.SetFallback(cfg.Provider)
	if cfg.Model != "" {
		reg.Alias(cfg.Model, cfg.Provider)
	}

	for _, ref := range cfg.Fallbacks {
		provider, model := splitModelRef(ref)
		fb, err := newProvider(provider, model, cfg.APIKey, "")
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", ref, err)
		}
		reg.Register(ref, fb)
	}
	return reg, nil
}

func newProvider(provider, model, apiKey, endpoint string) (Client, error) {
	switch provider {
	case "claude":
		if apiKey == "" {
			return nil, fmt.Errorf("claude provider requires an API key")
		}
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return NewClaudeAPIClient(apiKey, model, endpoint), nil
	case "ollama":
		if model == "" {
			model = "llama3"
		}
		return NewOllamaAPIClient(endpoint, model), nil
	case "echo":
		return EchoClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

// splitModelRef splits "provider/model" into its parts. A bare reference is
// treated as a provider name.
func splitModelRef(ref string) (provider, model string) {
	provider, model, _ = strings.Cut(ref, "/")
	return provider, model
}
