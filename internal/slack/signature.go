// Package slack implements the Slack side of the relay: request signature
// verification, event envelope classification, a small Web API client and
// the transport the dispatcher replies through.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/slackrelay/internal/logging"
)

const (
	// HeaderTimestamp carries the request timestamp in epoch seconds.
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	// HeaderSignature carries the "v0=<hex>" request signature.
	HeaderSignature = "X-Slack-Signature"

	signatureVersion = "v0"

	// DefaultTolerance is the accepted clock skew between Slack and us.
	DefaultTolerance = 300 * time.Second
)

// Verifier checks Slack request signatures. The zero secret disables
// verification entirely.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
	log       *logging.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the time source used for the replay window.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// WithTolerance overrides the replay window. Non-positive values are ignored.
func WithTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// NewVerifier creates a Verifier for the given signing secret.
func NewVerifier(secret string, log *logging.Logger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		now:       time.Now,
		log:       log.Sub("signature"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enabled reports whether a signing secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify reports whether signature is the valid signature of body sent at
// timestamp. Stale timestamps, malformed input and mismatches all return
// false; nothing here panics or returns an error.
func (v *Verifier) Verify(body []byte, timestamp, signature string) bool {
	if !v.Enabled() {
		v.log.Warn().Msg("signing secret not configured, skipping signature verification")
		return true
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		v.log.Error().Err(err).Msg("invalid request timestamp")
		return false
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(v.tolerance/time.Second) {
		v.log.Warn().Int64("skew_seconds", skew).Msg("request timestamp outside replay window")
		return false
	}

	if !utf8.Valid(body) {
		v.log.Error().Msg("request body is not valid UTF-8")
		return false
	}

	expected := sign(v.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		v.log.Warn().Msg("request signature mismatch")
		return false
	}
	return true
}

// Sign computes the "v0=<hex>" signature Slack would send for body at
// timestamp.
func Sign(secret, timestamp string, body []byte) string {
	return sign([]byte(secret), timestamp, body)
}

func sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
