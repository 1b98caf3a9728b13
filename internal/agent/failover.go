package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/slackrelay/internal/llm"
	"github.com/soyeahso/slackrelay/internal/logging"
)

// FailoverClient wraps an LLM registry to try fallback providers on failure.
// Only errors raised before a stream starts trigger failover; once deltas
// have been delivered to the user a provider is committed.
type FailoverClient struct {
	registry  *llm.Registry
	primary   string
	fallbacks []string
	log       *logging.Logger
}

// NewFailoverClient creates a client that tries the primary model first,
// then falls back through the list on retryable errors (401, 429, 5xx).
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		primary:   primary,
		fallbacks: fallbacks,
		log:       log.Sub("failover"),
	}
}

func (f *FailoverClient) models() []string {
	return append([]string{f.primary}, f.fallbacks...)
}

// Complete tries the primary provider, falling back on retryable errors.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := f.try(ctx, req, func(c llm.Client, r llm.CompletionRequest) error {
		var err error
		resp, err = c.Complete(ctx, r)
		return err
	})
	return resp, err
}

// Stream tries the primary provider for streaming, with failover.
func (f *FailoverClient) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	var ch <-chan llm.StreamEvent
	err := f.try(ctx, req, func(c llm.Client, r llm.CompletionRequest) error {
		var err error
		ch, err = c.Stream(ctx, r)
		return err
	})
	return ch, err
}

func (f *FailoverClient) try(ctx context.Context, req llm.CompletionRequest, call func(llm.Client, llm.CompletionRequest) error) error {
	var lastErr error
	for _, model := range f.models() {
		if err := ctx.Err(); err != nil {
			return err
		}
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		req.Model = model
		err = call(client, req)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		f.log.Warn().
			Str("model", model).
			Str("provider", client.Name()).
			Err(err).
			Msg("retryable error, trying next provider")
	}
	return lastErr
}

// isRetryable checks if the error suggests trying another provider.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403, 429, 500, 502, 503, 529:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused")
}
