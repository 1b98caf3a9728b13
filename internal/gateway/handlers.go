package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/soyeahso/slackrelay/internal/routing"
	"github.com/soyeahso/slackrelay/internal/slack"
)

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// errorResponse mirrors the {"detail": ...} body Slack tooling expects.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// handleSlackEvents verifies, parses and routes one Events API delivery.
func (s *Server) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error().Interface("panic", p).Msg("error handling slack event")
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request entity too large")
			return
		}
		s.log.Error().Err(err).Msg("error reading slack event body")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	timestamp := r.Header.Get(slack.HeaderTimestamp)
	signature := r.Header.Get(slack.HeaderSignature)
	if !s.verifier.Verify(body, timestamp, signature) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	out, err := s.route(r.Context(), body)
	if err != nil {
		s.log.Error().Err(err).Msg("error handling slack event")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if out.IsChallenge {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": out.Challenge})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) route(ctx context.Context, body []byte) (routing.Outcome, error) {
	env, err := slack.ParseEnvelope(body)
	if err != nil {
		return routing.Outcome{}, err
	}
	return s.router.Handle(ctx, env)
}

// HandleSocketPayload routes an events_api payload received over Socket
// Mode. The socket is authenticated by the app token, so no signature check
// applies.
func (s *Server) HandleSocketPayload(ctx context.Context, payload []byte) {
	if _, err := s.route(ctx, payload); err != nil {
		s.log.Error().Err(err).Msg("error handling socket mode event")
	}
}

func handleBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, Banner)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
