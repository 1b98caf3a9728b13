package gateway

import "net/http"

// Banner is the plain-text answer to POST /.
const Banner = `slackrelay

Relays Slack messages to a conversational agent and posts its replies.

  POST /slack/events   Slack Events API request URL (signed)
  GET  /health         liveness probe
`

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /slack/events", s.handleSlackEvents)
	mux.HandleFunc("POST /{$}", handleBanner)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}
