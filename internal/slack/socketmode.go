package slack

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/slackrelay/internal/logging"
)

// SocketEnvelope is one frame received over a Socket Mode connection.
type SocketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"` // "hello" | "events_api" | "disconnect" | ...
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// PayloadHandler receives the body of an events_api envelope. The payload
// has the same shape as an Events API HTTP delivery.
type PayloadHandler func(ctx context.Context, payload []byte)

const socketReconnectDelay = 2 * time.Second

// SocketReceiver receives events over Socket Mode instead of HTTP.
type SocketReceiver struct {
	api     *API
	handle  PayloadHandler
	log     *logging.Logger
	backoff time.Duration

	// handlers run off the read loop so one slow event does not stall the
	// socket; Run waits for them before returning.
	inflight sync.WaitGroup
}

// NewSocketReceiver creates a receiver that feeds events_api payloads to
// handle.
func NewSocketReceiver(api *API, handle PayloadHandler, log *logging.Logger) *SocketReceiver {
	return &SocketReceiver{
		api:     api,
		handle:  handle,
		log:     log.Sub("socketmode"),
		backoff: socketReconnectDelay,
	}
}

// Run connects and consumes events until ctx is cancelled, reconnecting
// after connection failures. It returns once in-flight handlers finish.
func (r *SocketReceiver) Run(ctx context.Context) error {
	defer r.inflight.Wait()
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := r.api.ConnectSocket(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrNotConfigured) {
				return err
			}
			r.log.Warn().Err(err).Msg("socket connect failed")
			if !sleepContext(ctx, r.backoff) {
				return nil
			}
			continue
		}

		r.log.Info().Msg("socket connected")
		err = r.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.log.Warn().Err(err).Msg("socket read failed, reconnecting")
		}
		if !sleepContext(ctx, r.backoff) {
			return nil
		}
	}
}

// consume reads frames until the connection fails or Slack asks us to
// reconnect. Every frame carrying an envelope id is acknowledged before it
// is handled.
func (r *SocketReceiver) consume(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env SocketEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			r.log.Debug().Err(err).Msg("skipping undecodable frame")
			continue
		}
		if strings.TrimSpace(env.EnvelopeID) != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": env.EnvelopeID}); err != nil {
				return err
			}
		}

		switch env.Type {
		case "events_api":
			if len(env.Payload) > 0 && r.handle != nil {
				payload := env.Payload
				r.inflight.Add(1)
				go func() {
					defer r.inflight.Done()
					r.handle(ctx, payload)
				}()
			}
		case "disconnect":
			r.log.Info().Msg("server requested reconnect")
			return nil
		case "hello":
			r.log.Debug().Msg("socket hello")
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
