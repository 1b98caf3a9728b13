package routing

import (
	"github.com/soyeahso/slackrelay/internal/agent"
	"github.com/soyeahso/slackrelay/internal/slack"
)

// Session scopes.
const (
	ScopePerSender = "per-sender"
	ScopeChannel   = "channel"
)

// platform prefixes every session id.
const platform = "slack"

// ResolveSessionID builds the agent session id for a message.
//
// Scopes:
//   - "per-sender": separate session per user per channel (default)
//   - "channel": single session per channel, shared among all users
func ResolveSessionID(ev slack.MessageEvent, scope string) string {
	switch scope {
	case ScopeChannel:
		return platform + "_" + ev.Channel
	default:
		return agent.SessionID(platform, ev.Channel, ev.User)
	}
}
