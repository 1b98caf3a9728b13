// Package agent is the conversational backend the relay forwards messages
// to. A Collaborator turns one user message into a finite stream of text
// chunks; the LLM-backed Runner is the production implementation.
package agent

import (
	"context"
	"errors"
	"fmt"
)

// DefaultEscalationMessage is used when an escalation carries no text.
const DefaultEscalationMessage = "No specific message."

// Request is one message forwarded to the agent.
type Request struct {
	Input     string
	UserID    string
	SessionID string
}

// Chunk is one piece of agent output. A chunk with a non-nil Err ends the
// stream with a failure.
type Chunk struct {
	Text string
	Err  error
}

// Collaborator produces the agent's reply to a Request as a lazily filled,
// finite channel that is closed when the reply is complete.
type Collaborator interface {
	Invoke(ctx context.Context, req Request) (<-chan Chunk, error)
}

// SessionID derives the conversation identity for a user in a channel.
func SessionID(platform, channel, user string) string {
	return fmt.Sprintf("%s_%s_%s", platform, channel, user)
}

// EscalationError reports that the agent handed the conversation off
// instead of answering. Collaborators surface it as a regular reply chunk.
type EscalationError struct {
	Message string
}

func (e *EscalationError) Error() string {
	return EscalationText(e.Message)
}

// EscalationText renders the user-visible escalation notice.
func EscalationText(msg string) string {
	if msg == "" {
		msg = DefaultEscalationMessage
	}
	return "Agent escalated: " + msg
}

// Func adapts a plain function to the Collaborator interface. The whole
// reply is delivered as a single chunk.
type Func func(ctx context.Context, req Request) (string, error)

// Invoke runs f on its own goroutine.
func (f Func) Invoke(ctx context.Context, req Request) (<-chan Chunk, error) {
	ch := make(chan Chunk, 1)
	go func() {
		defer close(ch)
		text, err := f(ctx, req)
		var esc *EscalationError
		switch {
		case errors.As(err, &esc):
			ch <- Chunk{Text: esc.Error()}
		case err != nil:
			ch <- Chunk{Err: err}
		default:
			ch <- Chunk{Text: text}
		}
	}()
	return ch, nil
}

// Collect drains a chunk stream and returns the concatenated text. The
// first chunk error is returned after the stream has been fully consumed.
// A stream cut short by ctx reports ctx.Err().
func Collect(ctx context.Context, ch <-chan Chunk) (string, error) {
	var (
		out      []byte
		firstErr error
	)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				if firstErr == nil {
					// producers close early when ctx ends
					firstErr = ctx.Err()
				}
				return string(out), firstErr
			}
			if c.Err != nil {
				if firstErr == nil {
					firstErr = c.Err
				}
				continue
			}
			out = append(out, c.Text...)
		case <-ctx.Done():
			return string(out), ctx.Err()
		}
	}
}
