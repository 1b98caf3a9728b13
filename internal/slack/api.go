package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/soyeahso/slackrelay/internal/version"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// ErrNotConfigured is returned when a call needs a token that was not set.
var ErrNotConfigured = errors.New("slack: client not configured")

// APIError is a failed Slack Web API call, either an HTTP-level failure
// (Status set) or an "ok": false response (Code set).
type APIError struct {
	Method string
	Code   string // Slack error code, e.g. "channel_not_found"
	Status int    // HTTP status code
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slack %s failed: %s", e.Method, e.Code)
	}
	return fmt.Sprintf("slack %s http %d", e.Method, e.Status)
}

// APIOptions configures an API client.
type APIOptions struct {
	BaseURL    string
	BotToken   string
	AppToken   string
	HTTPClient *http.Client
	// RateLimit paces outbound calls per second. Zero disables pacing.
	RateLimit float64
	RateBurst int
}

// API is a minimal Slack Web API client covering the methods the relay
// needs. Calls are never retried; Slack's own redelivery covers inbound
// events and outbound failures are reported to the caller.
type API struct {
	http     *http.Client
	baseURL  string
	botToken string
	appToken string
	limiter  *rate.Limiter
}

// NewAPI creates an API client.
func NewAPI(opts APIOptions) *API {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	burst := opts.RateBurst
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if burst < 1 {
		burst = 1
	}
	return &API{
		http:     httpClient,
		baseURL:  baseURL,
		botToken: strings.TrimSpace(opts.BotToken),
		appToken: strings.TrimSpace(opts.AppToken),
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// AuthTestResult identifies the token's owner.
type AuthTestResult struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id"`
	Team   string `json:"team"`
	User   string `json:"user"`
}

// AuthTest calls auth.test with the bot token.
func (api *API) AuthTest(ctx context.Context) (AuthTestResult, error) {
	if api == nil {
		return AuthTestResult{}, ErrNotConfigured
	}
	var out struct {
		apiResponse
		AuthTestResult
	}
	if err := api.call(ctx, "auth.test", api.botToken, url.Values{}, &out); err != nil {
		return AuthTestResult{}, err
	}
	return out.AuthTestResult, nil
}

// ConversationInfo describes a channel.
type ConversationInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsIM      bool   `json:"is_im"`
	IsMPIM    bool   `json:"is_mpim"`
	IsChannel bool   `json:"is_channel"`
	IsPrivate bool   `json:"is_private"`
}

// ConversationsInfo calls conversations.info.
func (api *API) ConversationsInfo(ctx context.Context, channelID string) (ConversationInfo, error) {
	if api == nil {
		return ConversationInfo{}, ErrNotConfigured
	}
	var out struct {
		apiResponse
		Channel ConversationInfo `json:"channel"`
	}
	form := url.Values{"channel": {channelID}}
	if err := api.call(ctx, "conversations.info", api.botToken, form, &out); err != nil {
		return ConversationInfo{}, err
	}
	return out.Channel, nil
}

// ConversationsOpen calls conversations.open for a single user and returns
// the direct-message channel id.
func (api *API) ConversationsOpen(ctx context.Context, userID string) (string, error) {
	if api == nil {
		return "", ErrNotConfigured
	}
	var out struct {
		apiResponse
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	form := url.Values{"users": {userID}}
	if err := api.call(ctx, "conversations.open", api.botToken, form, &out); err != nil {
		return "", err
	}
	if out.Channel.ID == "" {
		return "", &APIError{Method: "conversations.open", Code: "empty_channel_id"}
	}
	return out.Channel.ID, nil
}

// PostMessageRequest is the chat.postMessage payload.
type PostMessageRequest struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	ThreadTS  string `json:"thread_ts,omitempty"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// Receipt identifies a posted message.
type Receipt struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// PostMessage calls chat.postMessage.
func (api *API) PostMessage(ctx context.Context, msg PostMessageRequest) (Receipt, error) {
	if api == nil {
		return Receipt{}, ErrNotConfigured
	}
	if strings.TrimSpace(msg.Channel) == "" {
		return Receipt{}, fmt.Errorf("channel is required")
	}
	if msg.Text == "" {
		return Receipt{}, fmt.Errorf("text is required")
	}
	var out struct {
		apiResponse
		Receipt
	}
	if err := api.call(ctx, "chat.postMessage", api.botToken, msg, &out); err != nil {
		return Receipt{}, err
	}
	return out.Receipt, nil
}

// OpenSocketURL calls apps.connections.open with the app-level token and
// returns the Socket Mode websocket URL.
func (api *API) OpenSocketURL(ctx context.Context) (string, error) {
	if api == nil {
		return "", ErrNotConfigured
	}
	var out struct {
		apiResponse
		URL string `json:"url"`
	}
	if err := api.call(ctx, "apps.connections.open", api.appToken, url.Values{}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", &APIError{Method: "apps.connections.open", Code: "empty_url"}
	}
	return out.URL, nil
}

// ConnectSocket opens a Socket Mode websocket.
func (api *API) ConnectSocket(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := api.OpenSocketURL(ctx)
	if err != nil {
		return nil, err
	}
	dialer := *websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing socket mode: %w", err)
	}
	return conn, nil
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (r apiResponse) failure() string {
	if r.OK {
		return ""
	}
	if code := strings.TrimSpace(r.Error); code != "" {
		return code
	}
	return "unknown_error"
}

type okChecker interface {
	failure() string
}

// call POSTs to a Web API method. url.Values payloads are form-encoded,
// anything else is sent as JSON.
func (api *API) call(ctx context.Context, method, token string, payload any, out okChecker) error {
	if api == nil || api.http == nil {
		return ErrNotConfigured
	}
	if token == "" {
		return fmt.Errorf("%w: %s needs a token", ErrNotConfigured, method)
	}
	if err := api.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	var contentType string
	switch p := payload.(type) {
	case url.Values:
		body = strings.NewReader(p.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshaling %s payload: %w", method, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json; charset=utf-8"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api.baseURL+"/"+method, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := api.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Status: resp.StatusCode}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if code := out.failure(); code != "" {
		return &APIError{Method: method, Code: code, Status: resp.StatusCode}
	}
	return nil
}
