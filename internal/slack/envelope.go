package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope type discriminators.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// ErrMalformedEnvelope is returned when an inbound body is not a JSON object.
var ErrMalformedEnvelope = errors.New("slack: malformed event envelope")

// Envelope is the outer structure of an Events API delivery.
type Envelope struct {
	Type      string
	Challenge string
	TeamID    string
	EventID   string
	// Event is nil unless the payload carried a JSON object under "event".
	Event *MessageEvent
}

// MessageEvent is the subset of a Slack "message" event the relay uses.
type MessageEvent struct {
	Type        string
	Channel     string
	User        string
	Text        string
	TS          string
	ThreadTS    string
	Subtype     string
	BotID       string
	ChannelType string
}

// ParseEnvelope decodes an Events API body. Only a body that is not a JSON
// object is an error; unknown, missing or mistyped fields decode to their
// zero values so classification can fail closed.
func ParseEnvelope(body []byte) (Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if raw == nil {
		return Envelope{}, fmt.Errorf("%w: body is null", ErrMalformedEnvelope)
	}

	env := Envelope{
		Type:      stringField(raw, "type"),
		Challenge: stringField(raw, "challenge"),
		TeamID:    stringField(raw, "team_id"),
		EventID:   stringField(raw, "event_id"),
	}

	var ev map[string]json.RawMessage
	if data, ok := raw["event"]; ok && json.Unmarshal(data, &ev) == nil && ev != nil {
		env.Event = &MessageEvent{
			Type:        stringField(ev, "type"),
			Channel:     stringField(ev, "channel"),
			User:        stringField(ev, "user"),
			Text:        stringField(ev, "text"),
			TS:          stringField(ev, "ts"),
			ThreadTS:    stringField(ev, "thread_ts"),
			Subtype:     stringField(ev, "subtype"),
			BotID:       stringField(ev, "bot_id"),
			ChannelType: stringField(ev, "channel_type"),
		}
	}
	return env, nil
}

// stringField returns obj[key] if it is a JSON string, else "".
func stringField(obj map[string]json.RawMessage, key string) string {
	data, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	return s
}

// Action is the result of classifying an Envelope. It is one of
// ActionChallenge, ActionMessage or ActionIgnore.
type Action interface {
	action()
}

// ActionChallenge asks the caller to echo Token back to Slack.
type ActionChallenge struct {
	Token string
}

// ActionMessage carries a new message from a human that should be answered.
type ActionMessage struct {
	Event MessageEvent
}

// ActionIgnore means no work is required. Reason is for logging only.
type ActionIgnore struct {
	Reason string
}

func (ActionChallenge) action() {}
func (ActionMessage) action()   {}
func (ActionIgnore) action()    {}

// Classify decides what to do with env. botUserID is the relay's own Slack
// user, whose messages are never answered.
func Classify(env Envelope, botUserID string) Action {
	switch env.Type {
	case TypeURLVerification:
		return ActionChallenge{Token: env.Challenge}
	case TypeEventCallback:
	default:
		return ActionIgnore{Reason: "envelope type " + quoteOrEmpty(env.Type)}
	}

	ev := env.Event
	switch {
	case ev == nil:
		return ActionIgnore{Reason: "no event"}
	case ev.Type != "message":
		return ActionIgnore{Reason: "event type " + quoteOrEmpty(ev.Type)}
	case ev.BotID != "":
		return ActionIgnore{Reason: "bot message"}
	case ev.Subtype != "":
		return ActionIgnore{Reason: "subtype " + ev.Subtype}
	case strings.TrimSpace(ev.Text) == "":
		return ActionIgnore{Reason: "empty text"}
	case ev.User == "":
		return ActionIgnore{Reason: "no user"}
	case ev.User == botUserID:
		return ActionIgnore{Reason: "own message"}
	case ev.Channel == "" || ev.TS == "":
		return ActionIgnore{Reason: "missing channel or ts"}
	}
	return ActionMessage{Event: *ev}
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "<empty>"
	}
	return fmt.Sprintf("%q", s)
}
