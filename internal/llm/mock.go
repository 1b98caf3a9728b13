package llm

import (
	"context"
	"strings"
)

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	StreamFunc   func(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response"}, nil
}

func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	ch := make(chan StreamEvent, 2)
	ch <- StreamEvent{Type: EventDelta, Content: "mock "}
	ch <- StreamEvent{
		Type:     EventDone,
		Response: &CompletionResponse{Content: "mock stream response"},
	}
	close(ch)
	return ch, nil
}

// EchoClient answers every request with the last user message. It needs no
// backend, which makes it useful for checking Slack wiring end to end.
type EchoClient struct{}

func (EchoClient) Name() string { return "echo" }

func (EchoClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Content: lastUserMessage(req.Messages), Model: "echo"}, nil
}

func (EchoClient) Stream(_ context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	text := lastUserMessage(req.Messages)
	ch := make(chan StreamEvent, len(strings.Fields(text))+1)
	for i, w := range strings.Fields(text) {
		if i > 0 {
			w = " " + w
		}
		ch <- StreamEvent{Type: EventDelta, Content: w}
	}
	ch <- StreamEvent{Type: EventDone, Response: &CompletionResponse{Content: text, Model: "echo"}}
	close(ch)
	return ch, nil
}

func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
