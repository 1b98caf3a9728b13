package slack

import (
	"context"

	"github.com/soyeahso/slackrelay/internal/logging"
)

// TransportOptions sets the identity outbound messages are posted under.
type TransportOptions struct {
	Username  string
	IconEmoji string
}

// Transport is the outbound side of the relay. A Transport without an API
// client is in degraded mode: every call logs and returns zero values so
// inbound handling keeps working when no bot token is configured.
type Transport struct {
	api  *API
	opts TransportOptions
	log  *logging.Logger
}

// NewTransport wraps api. A nil api yields a degraded Transport.
func NewTransport(api *API, opts TransportOptions, log *logging.Logger) *Transport {
	t := &Transport{api: api, opts: opts, log: log.Sub("slack")}
	if api == nil {
		t.log.Warn().Msg("bot token not configured, outbound messaging disabled")
	}
	return t
}

// Degraded reports whether outbound messaging is disabled.
func (t *Transport) Degraded() bool {
	return t.api == nil
}

// AuthTest resolves the bot's own user id. Failures are logged and yield "".
func (t *Transport) AuthTest(ctx context.Context) string {
	if t.Degraded() {
		return ""
	}
	res, err := t.api.AuthTest(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("failed to get bot user id")
		return ""
	}
	t.log.Info().Str("bot_user_id", res.UserID).Str("team", res.Team).Msg("authenticated")
	return res.UserID
}

// IsDirectMessage reports whether channelID is a 1:1 DM. Lookup failures
// are logged and treated as "not a DM" so replies go in-thread.
func (t *Transport) IsDirectMessage(ctx context.Context, channelID string) bool {
	if t.Degraded() {
		t.log.Error().Str("channel", channelID).Msg("slack client not initialized")
		return false
	}
	info, err := t.api.ConversationsInfo(ctx, channelID)
	if err != nil {
		t.log.Error().Err(err).Str("channel", channelID).Msg("error checking channel type")
		return false
	}
	return info.IsIM
}

// SendMessage posts text to channelID, in the thread anchored at threadTS
// when it is non-empty. Errors are returned to the caller.
func (t *Transport) SendMessage(ctx context.Context, channelID, text, threadTS string) (*Receipt, error) {
	if t.Degraded() {
		t.log.Error().Str("channel", channelID).Msg("slack client not initialized")
		return nil, nil
	}
	r, err := t.api.PostMessage(ctx, PostMessageRequest{
		Channel:   channelID,
		Text:      text,
		ThreadTS:  threadTS,
		Username:  t.opts.Username,
		IconEmoji: t.opts.IconEmoji,
	})
	if err != nil {
		t.log.Error().Err(err).Str("channel", channelID).Msg("error sending slack message")
		return nil, err
	}
	return &r, nil
}

// OpenDirectChannel returns the DM channel id for userID.
func (t *Transport) OpenDirectChannel(ctx context.Context, userID string) (string, error) {
	if t.Degraded() {
		t.log.Error().Str("user", userID).Msg("slack client not initialized")
		return "", nil
	}
	id, err := t.api.ConversationsOpen(ctx, userID)
	if err != nil {
		t.log.Error().Err(err).Str("user", userID).Msg("error opening direct channel")
		return "", err
	}
	return id, nil
}

// SendDirectMessage opens a DM with userID and posts text there.
func (t *Transport) SendDirectMessage(ctx context.Context, userID, text string) (*Receipt, error) {
	if t.Degraded() {
		t.log.Error().Str("user", userID).Msg("slack client not initialized")
		return nil, nil
	}
	channelID, err := t.OpenDirectChannel(ctx, userID)
	if err != nil {
		return nil, err
	}
	return t.SendMessage(ctx, channelID, text, "")
}
