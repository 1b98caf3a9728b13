package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/slackrelay/internal/llm"
	"github.com/soyeahso/slackrelay/internal/logging"
)

// stopRefusal is the stop reason a provider reports when the model declines
// to answer. The runner escalates instead of relaying a partial reply.
const stopRefusal = "refusal"

const refusalMessage = "the model declined to answer this request."

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	AgentName    string
	Model        string
	Fallbacks    []string
	MaxTokens    int
	Temperature  *float64
	ExtraPrompt  string
	HistoryLimit int
}

// Runner is the LLM-backed Collaborator. It keeps per-session history in a
// SessionStore and relays the model's reply as chunks once the provider
// stream has finished, so a refusal replaces the reply instead of trailing
// it. The turn is recorded once the reply is delivered.
type Runner struct {
	cfg      RunnerConfig
	client   *FailoverClient
	sessions SessionStore
	log      *logging.Logger
}

// NewRunner creates an agent runner.
func NewRunner(cfg RunnerConfig, registry *llm.Registry, sessions SessionStore, log *logging.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		client:   NewFailoverClient(registry, cfg.Model, cfg.Fallbacks, log),
		sessions: sessions,
		log:      log.Sub("agent"),
	}
}

// Invoke starts a streamed reply to req. Provider failures before the
// stream opens are returned directly; later failures arrive as a chunk
// with Err set.
func (r *Runner) Invoke(ctx context.Context, req Request) (<-chan Chunk, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, errors.New("agent: empty input")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = req.UserID
	}

	history := trimHistory(r.sessions.History(sessionID, r.cfg.HistoryLimit), r.cfg.HistoryLimit)

	r.log.Info().
		Str("sessionId", sessionID).
		Str("user", req.UserID).
		Int("historyLen", len(history)).
		Msg("processing message")

	stream, err := r.client.Stream(ctx, llm.CompletionRequest{
		Model: r.cfg.Model,
		System: BuildSystemPrompt(PromptConfig{
			AgentName:   r.cfg.AgentName,
			UserID:      req.UserID,
			SessionID:   sessionID,
			ExtraPrompt: r.cfg.ExtraPrompt,
		}),
		Messages:    append(history, llm.Message{Role: llm.RoleUser, Content: input}),
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM stream: %w", err)
	}

	out := make(chan Chunk)
	go r.forward(ctx, sessionID, input, stream, out)
	return out, nil
}

func (r *Runner) forward(ctx context.Context, sessionID, input string, stream <-chan llm.StreamEvent, out chan<- Chunk) {
	defer close(out)
	start := time.Now()

	emit := func(c Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var (
		deltas []string
		final  *llm.CompletionResponse
	)
	for ev := range stream {
		switch ev.Type {
		case llm.EventDelta:
			deltas = append(deltas, ev.Content)
		case llm.EventDone:
			final = ev.Response
		case llm.EventError:
			r.log.Error().Str("sessionId", sessionID).Str("error", ev.Error).Msg("stream error")
			emit(Chunk{Err: fmt.Errorf("stream error: %s", ev.Error)})
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	if final == nil {
		final = &llm.CompletionResponse{Model: r.cfg.Model}
	}
	if final.Content == "" {
		final.Content = strings.Join(deltas, "")
	}

	if final.StopReason == stopRefusal {
		r.log.Warn().Str("sessionId", sessionID).Int("discardedChunks", len(deltas)).Msg("model refused, escalating")
		esc := &EscalationError{Message: refusalMessage}
		emit(Chunk{Text: esc.Error()})
		return
	}

	for _, d := range deltas {
		if !emit(Chunk{Text: d}) {
			return
		}
	}

	r.sessions.Append(sessionID, llm.Message{Role: llm.RoleUser, Content: input})
	r.sessions.Append(sessionID, llm.Message{Role: llm.RoleAssistant, Content: final.Content})

	r.log.Info().
		Str("sessionId", sessionID).
		Str("model", final.Model).
		Int("inputTokens", final.Usage.InputTokens).
		Int("outputTokens", final.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("response generated")
}

// trimHistory keeps at most limit-1 messages so the new message fits, and
// never starts the window on an assistant reply whose question was dropped.
func trimHistory(history []llm.Message, limit int) []llm.Message {
	if limit > 0 && len(history) >= limit {
		history = history[len(history)-limit+1:]
	}
	for len(history) > 0 && history[0].Role != llm.RoleUser {
		history = history[1:]
	}
	return history
}
