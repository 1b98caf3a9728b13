package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaEndpoint is the local Ollama server.
const DefaultOllamaEndpoint = "http://localhost:11434"

// OllamaAPIClient is a direct HTTP client for the Ollama generate API.
type OllamaAPIClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAPIClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434".
func NewOllamaAPIClient(baseURL, model string) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = DefaultOllamaEndpoint
	}
	return &OllamaAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends a non-streaming completion request to Ollama API.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := o.do(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != "" {
		return nil, &ProviderError{Provider: o.Name(), Message: result.Error}
	}

	return &CompletionResponse{
		Content:    result.Response,
		StopReason: result.DoneReason,
		Usage:      Usage{InputTokens: result.PromptEvalCount, OutputTokens: result.EvalCount},
		Model:      o.model,
		Duration:   time.Since(start),
	}, nil
}

// Stream sends a streaming completion request to Ollama API. The response
// is newline-delimited JSON, one object per token batch.
func (o *OllamaAPIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := o.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	eventChan := make(chan StreamEvent)
	go o.readStream(ctx, resp.Body, eventChan)
	return eventChan, nil
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string {
	return "ollama"
}

func (o *OllamaAPIClient) do(ctx context.Context, req CompletionRequest, stream bool) (*http.Response, error) {
	body := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: o.buildPrompt(req),
		Stream: stream,
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &ollamaOptions{Temperature: req.Temperature}
		if req.MaxTokens > 0 {
			body.Options.NumPredict = req.MaxTokens
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, &ProviderError{Provider: o.Name(), Code: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}
	return resp, nil
}

// buildPrompt flattens the conversation into a single prompt.
func (o *OllamaAPIClient) buildPrompt(req CompletionRequest) string {
	var prompt strings.Builder

	if req.System != "" {
		prompt.WriteString("System: ")
		prompt.WriteString(req.System)
		prompt.WriteString("\n\n")
	}

	for _, msg := range req.Messages {
		if msg.Role != RoleUser {
			fmt.Fprintf(&prompt, "%s: ", msg.Role)
		}
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n\n")
	}

	return prompt.String()
}

func (o *OllamaAPIClient) readStream(ctx context.Context, body io.ReadCloser, eventChan chan<- StreamEvent) {
	defer close(eventChan)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	var fullContent strings.Builder
	var usage Usage

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event ollamaGenerateResponse
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event.Error != "" {
			send(ctx, eventChan, StreamEvent{Type: EventError, Error: event.Error})
			return
		}

		if event.Response != "" {
			fullContent.WriteString(event.Response)
			if !send(ctx, eventChan, StreamEvent{Type: EventDelta, Content: event.Response}) {
				return
			}
		}
		if event.Done {
			usage = Usage{InputTokens: event.PromptEvalCount, OutputTokens: event.EvalCount}
			send(ctx, eventChan, StreamEvent{
				Type: EventDone,
				Response: &CompletionResponse{
					Content:    fullContent.String(),
					StopReason: event.DoneReason,
					Usage:      usage,
					Model:      o.model,
				},
			})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, eventChan, StreamEvent{Type: EventError, Error: fmt.Sprintf("reading stream: %v", err)})
		return
	}
	if ctx.Err() != nil {
		send(ctx, eventChan, StreamEvent{Type: EventError, Error: ctx.Err().Error()})
		return
	}
	send(ctx, eventChan, StreamEvent{Type: EventError, Error: "stream ended before done"})
}

// API structures

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}
