package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/soyeahso/slackrelay/internal/config"
	"github.com/soyeahso/slackrelay/internal/logging"
)

const requestIDHeader = "X-Request-Id"

// Origins allowed to call the relay from a browser, by environment.
const (
	prodOrigin = "https://app.blaxel.ai"
	devOrigin  = "https://app.blaxel.dev"
)

// withMiddleware wraps a handler with the standard middleware chain.
func withMiddleware(handler http.Handler, log *logging.Logger, corsOrigins []string) http.Handler {
	h := handler
	h = corsMiddleware(h, corsOrigins)
	h = loggingMiddleware(h, log)
	h = requestIDMiddleware(h)
	h = otelhttp.NewHandler(h, "slackrelay.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
	return h
}

// allowedOrigins returns the configured CORS origins, or the
// environment's default origin.
func allowedOrigins(cfg config.Config) []string {
	if len(cfg.Server.AllowedOrigins) > 0 {
		return cfg.Server.AllowedOrigins
	}
	if cfg.IsProduction() {
		return []string{prodOrigin}
	}
	return []string{devOrigin}
}

// loggingMiddleware logs each HTTP request. Failed requests log at error level.
func loggingMiddleware(next http.Handler, log *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		rid := w.Header().Get(requestIDHeader)
		ev := log.Info()
		if sw.status >= 400 {
			ev = log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", elapsed).
			Str("rid", rid).
			Msgf("%s %s %d %.2fms rid=%s",
				r.Method, r.URL.Path, sw.status, float64(elapsed.Microseconds())/1000, rid)
	})
}

// requestIDMiddleware adds a unique request ID to each request/response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
			r.Header.Set(requestIDHeader, reqID)
		}
		w.Header().Set(requestIDHeader, reqID)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers on every response and answers
// preflight requests directly.
func corsMiddleware(next http.Handler, allowed []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", pickOrigin(r.Header.Get("Origin"), allowed))
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS, HEAD")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin, X-Request-Id")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Max-Age", "86400")
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// pickOrigin echoes origin when it is allowed and otherwise answers with
// the first allowed origin, which browsers will reject for other sites.
func pickOrigin(origin string, allowed []string) string {
	if len(allowed) == 0 {
		return ""
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			if a == "*" && origin == "" {
				return "*"
			}
			return origin
		}
	}
	return allowed[0]
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
