package gateway

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/slackrelay/internal/config"
	"github.com/soyeahso/slackrelay/internal/logging"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "info")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := requestIDMiddleware(loggingMiddleware(inner, log))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-Id", "rid-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), "GET /test 200")
	assert.Contains(t, buf.String(), "rid=rid-42")
}

func TestLoggingMiddleware_ErrorLevelForFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "info")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	req := httptest.NewRequest("POST", "/slack/events", nil)
	loggingMiddleware(inner, log).ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "POST /slack/events 401")
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.WriteHeader(http.StatusOK)
	})

	handler := requestIDMiddleware(inner)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Len(t, rr.Header().Get("X-Request-Id"), 36)
}

func TestRequestIDMiddleware_PreservesExisting(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := requestIDMiddleware(inner)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "custom-id-123", rr.Header().Get("X-Request-Id"))
}

func TestAllowedOrigins(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, []string{"https://app.blaxel.dev"}, allowedOrigins(cfg))

	cfg.Environment = "prod"
	assert.Equal(t, []string{"https://app.blaxel.ai"}, allowedOrigins(cfg))

	cfg.Server.AllowedOrigins = []string{"https://example.com"}
	assert.Equal(t, []string{"https://example.com"}, allowedOrigins(cfg))
}

func TestCORSMiddleware_SetsOriginOnEveryResponse(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := corsMiddleware(inner, []string{"https://app.blaxel.ai"})

	req := httptest.NewRequest("POST", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://app.blaxel.ai", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "X-Request-Id", rr.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORSMiddleware_EchoesAllowedOrigin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := corsMiddleware(inner, []string{"https://a.example", "https://b.example"})

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://b.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "https://b.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "https://a.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	handler := corsMiddleware(inner, []string{"https://app.blaxel.dev"})

	req := httptest.NewRequest("OPTIONS", "/slack/events", nil)
	req.Header.Set("Origin", "https://app.blaxel.dev")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, called)
	assert.Equal(t, "https://app.blaxel.dev", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", rr.Header().Get("Access-Control-Max-Age"))
}

func TestPickOrigin(t *testing.T) {
	assert.Equal(t, "", pickOrigin("https://x", nil))
	assert.Equal(t, "*", pickOrigin("", []string{"*"}))
	assert.Equal(t, "https://x", pickOrigin("https://x", []string{"*"}))
}

func TestWithMiddleware_FullChain(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := withMiddleware(inner, logging.New(nil, "silent"), []string{"https://app.blaxel.dev"})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
	assert.Equal(t, "https://app.blaxel.dev", rr.Header().Get("Access-Control-Allow-Origin"))
}
