package agent

import (
	"fmt"
	"strings"
	"time"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AgentName   string
	UserID      string
	SessionID   string
	Now         time.Time
	ExtraPrompt string
}

// BuildSystemPrompt constructs the system prompt for the LLM.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	if cfg.AgentName != "" {
		fmt.Fprintf(&b, "You are %s, an assistant answering messages in Slack.\n\n", cfg.AgentName)
	}

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))
	if cfg.UserID != "" {
		// Slack renders <@U123> as a mention.
		fmt.Fprintf(&b, "User: <@%s>\n", cfg.UserID)
	}
	if cfg.SessionID != "" {
		fmt.Fprintf(&b, "Conversation: %s\n", cfg.SessionID)
	}

	b.WriteString("\nGuidelines:\n")
	b.WriteString("- Replies are posted as Slack messages. Use Slack mrkdwn (*bold*, _italic_, `code`), not HTML.\n")
	b.WriteString("- Keep answers short enough to read in a chat thread.\n")

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}
