// Package routing dispatches verified Slack events to the agent and relays
// the agent's reply back to the conversation it came from.
package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/soyeahso/slackrelay/internal/agent"
	"github.com/soyeahso/slackrelay/internal/dedup"
	"github.com/soyeahso/slackrelay/internal/logging"
	"github.com/soyeahso/slackrelay/internal/slack"
)

// User-visible messages.
const (
	ProcessingMessage = "Our agent is processing your message..."
	ApologyMessage    = "Sorry, I encountered an error processing your message. Please try again."
)

// DefaultAgentTimeout bounds one agent invocation when Options leaves it unset.
const DefaultAgentTimeout = 5 * time.Minute

const tracerName = "github.com/soyeahso/slackrelay/internal/routing"

// Messenger is the outbound side the router needs. *slack.Transport
// satisfies it.
type Messenger interface {
	Degraded() bool
	IsDirectMessage(ctx context.Context, channelID string) bool
	SendMessage(ctx context.Context, channelID, text, threadTS string) (*slack.Receipt, error)
	SendDirectMessage(ctx context.Context, userID, text string) (*slack.Receipt, error)
}

// Options tunes a Router.
type Options struct {
	// BotUserID is the relay's own user id; messages from it are ignored.
	BotUserID string
	// AgentTimeout bounds each agent invocation, including draining its reply.
	AgentTimeout time.Duration
	// Async makes Handle return as soon as an event is accepted; dispatch
	// continues on a tracked goroutine (see Wait).
	Async bool
	// MaxConcurrent caps simultaneous dispatches. Zero means unlimited.
	MaxConcurrent int
	// SessionScope is ScopePerSender (default) or ScopeChannel.
	SessionScope string
	// Tracer overrides the global OpenTelemetry tracer.
	Tracer trace.Tracer
}

// Outcome tells the HTTP layer what to answer.
type Outcome struct {
	// IsChallenge marks a url_verification envelope; Challenge must be
	// echoed even when empty.
	IsChallenge bool
	Challenge   string
	// Duplicate is set when the message had already been seen.
	Duplicate bool
}

// Router classifies inbound envelopes, deduplicates them, and drives the
// processing-ack / agent / reply sequence for actionable messages.
type Router struct {
	transport Messenger
	agent     agent.Collaborator
	ledger    *dedup.Ledger
	opts      Options
	sem       *semaphore.Weighted
	tracer    trace.Tracer
	inflight  sync.WaitGroup
	log       *logging.Logger
}

// NewRouter creates a dispatch router.
func NewRouter(transport Messenger, collaborator agent.Collaborator, ledger *dedup.Ledger, opts Options, log *logging.Logger) *Router {
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = DefaultAgentTimeout
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	r := &Router{
		transport: transport,
		agent:     collaborator,
		ledger:    ledger,
		opts:      opts,
		tracer:    opts.Tracer,
		log:       log.Sub("routing"),
	}
	if opts.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return r
}

// Handle processes one Events API envelope. Errors from the outbound side
// or the agent never surface here; they are answered with an apology in the
// conversation instead.
func (r *Router) Handle(ctx context.Context, env slack.Envelope) (Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "slackrelay.handle",
		trace.WithAttributes(attribute.String("slack.envelope_type", env.Type)))
	defer span.End()

	switch a := slack.Classify(env, r.opts.BotUserID).(type) {
	case slack.ActionChallenge:
		r.log.Info().Msg("answering url verification challenge")
		return Outcome{IsChallenge: true, Challenge: a.Token}, nil

	case slack.ActionIgnore:
		r.log.Debug().Str("reason", a.Reason).Str("eventId", env.EventID).Msg("ignoring event")
		return Outcome{}, nil

	case slack.ActionMessage:
		ev := a.Event
		span.SetAttributes(attribute.String("slack.channel", ev.Channel))

		key := dedup.Key{Channel: ev.Channel, TS: ev.TS}
		if !r.ledger.CheckAndRecord(key) {
			r.log.Info().Str("key", key.String()).Msg("duplicate message ignored")
			span.SetAttributes(attribute.Bool("slack.duplicate", true))
			return Outcome{Duplicate: true}, nil
		}

		if r.transport.Degraded() {
			r.log.Error().Str("channel", ev.Channel).Msg("slack client not initialized")
			return Outcome{}, nil
		}

		// dispatch must survive the inbound request going away
		dctx := context.WithoutCancel(ctx)
		if r.opts.Async {
			r.inflight.Add(1)
			go func() {
				defer r.inflight.Done()
				defer r.recoverDispatch(dctx, ev)
				r.dispatch(dctx, ev)
			}()
			return Outcome{}, nil
		}
		r.dispatch(dctx, ev)
		return Outcome{}, nil

	default:
		err := fmt.Errorf("routing: unexpected action %T", a)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}
}

// Wait blocks until all asynchronous dispatches have finished.
func (r *Router) Wait() {
	r.inflight.Wait()
}

// Notify sends text to userID as a direct message, outside of any inbound
// event.
func (r *Router) Notify(ctx context.Context, userID, text string) error {
	if r.transport.Degraded() {
		return slack.ErrNotConfigured
	}
	_, err := r.transport.SendDirectMessage(ctx, userID, text)
	if err != nil {
		return fmt.Errorf("notify %s: %w", userID, err)
	}
	r.log.Info().Str("user", userID).Msg("notification sent")
	return nil
}

func (r *Router) dispatch(ctx context.Context, ev slack.MessageEvent) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.log.Error().Err(err).Str("channel", ev.Channel).Msg("dispatch slot unavailable")
			return
		}
		defer r.sem.Release(1)
	}

	sessionID := ResolveSessionID(ev, r.opts.SessionScope)
	ctx, span := r.tracer.Start(ctx, "slackrelay.dispatch", trace.WithAttributes(
		attribute.String("slack.channel", ev.Channel),
		attribute.String("slack.user", ev.User),
		attribute.String("agent.session", sessionID),
	))
	defer span.End()

	start := time.Now()
	if err := r.process(ctx, ev, sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Error().Err(err).
			Str("channel", ev.Channel).
			Str("user", ev.User).
			Str("ts", ev.TS).
			Msg("error processing message")
		r.apologize(ctx, ev)
		return
	}
	r.log.Debug().Str("sessionId", sessionID).Dur("duration", time.Since(start)).Msg("dispatch complete")
}

// process acks the message, runs the agent to completion and posts the
// reply. Replies go to the DM itself or into the message's thread.
func (r *Router) process(ctx context.Context, ev slack.MessageEvent, sessionID string) error {
	isDM := r.transport.IsDirectMessage(ctx, ev.Channel)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("slack.dm", isDM))
	threadTS := replyThread(ev, isDM)

	if _, err := r.transport.SendMessage(ctx, ev.Channel, ProcessingMessage, threadTS); err != nil {
		return fmt.Errorf("sending processing notice: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, r.opts.AgentTimeout)
	defer cancel()

	stream, err := r.agent.Invoke(actx, agent.Request{
		Input:     strings.TrimSpace(ev.Text),
		UserID:    ev.User,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("invoking agent: %w", err)
	}
	text, err := agent.Collect(actx, stream)
	if err != nil {
		return fmt.Errorf("agent reply: %w", err)
	}

	reply := strings.TrimSpace(text)
	if reply == "" {
		r.log.Warn().Str("sessionId", sessionID).Msg("agent returned an empty response, nothing sent")
		return nil
	}
	if _, err := r.transport.SendMessage(ctx, ev.Channel, reply, threadTS); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}

	r.log.Info().
		Str("channel", ev.Channel).
		Str("sessionId", sessionID).
		Bool("dm", isDM).
		Int("replyLen", len(reply)).
		Msg("reply sent")
	return nil
}

// recoverDispatch keeps a panicking background dispatch from taking the
// process down and still answers the user.
func (r *Router) recoverDispatch(ctx context.Context, ev slack.MessageEvent) {
	if p := recover(); p != nil {
		r.log.Error().
			Str("channel", ev.Channel).
			Str("ts", ev.TS).
			Str("panic", fmt.Sprint(p)).
			Msg("panic in async dispatch")
		r.apologize(ctx, ev)
	}
}

// apologize posts the fixed error notice. Its own failure is only logged.
func (r *Router) apologize(ctx context.Context, ev slack.MessageEvent) {
	threadTS := replyThread(ev, r.transport.IsDirectMessage(ctx, ev.Channel))
	if _, err := r.transport.SendMessage(ctx, ev.Channel, ApologyMessage, threadTS); err != nil {
		r.log.Error().Err(err).Str("channel", ev.Channel).Msg("failed to send error message")
	}
}

func replyThread(ev slack.MessageEvent, isDM bool) string {
	if isDM {
		return ""
	}
	return ev.TS
}
