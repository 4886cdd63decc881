// This file validates Idempotency-Key headers and flags stored replays.
//
// Clients may retry POST /query safely by sending the same Idempotency-Key
// together with the same session. The validator checks the key's shape early
// (length and character set) so junk keys are rejected before any work, and
// optionally consults storage to decide whether this (session, key) pair has
// already been answered. When it has, the request is marked as a replay so the
// rate limiter lets it through for free and the handler can serve the stored
// turn without touching the language model.
//
// The session identifier normally travels in the JSON request body, which
// middleware does not read. Callers that want the early replay marking can
// also supply it via the X-Session-ID header or session_id query parameter;
// the handler performs its own authoritative lookup against the body either way.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client retry key.
const HeaderIdempotencyKey = "Idempotency-Key"

// Gin context keys set by the validator.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// defaultKeyPattern accepts the unreserved URI character set plus ':'.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyLookup reports whether a completed turn is already stored for
// the given session and key. now is passed in so expired records can be
// filtered consistently with the handler's own clock.
type IdempotencyLookup func(ctx context.Context, sessionID, key string, now time.Time) (bool, error)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen bounds the accepted key length; defaults to 200.
	MaxLen int
	// Pattern overrides the accepted key syntax.
	Pattern *regexp.Regexp
	// Lookup, when set, enables early replay detection.
	Lookup IdempotencyLookup
}

// GetIdempotencyKey returns the validated key for this request, or "" when
// the client sent none.
func GetIdempotencyKey(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyIdemKey); ok {
		return asString(v)
	}
	return ""
}

// IsReplay reports whether the validator determined this request repeats a
// stored (session, key) pair.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IsRateBypass reports whether this request should not count against rate
// limits. Set for idempotent replays.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyValidator returns middleware that validates the Idempotency-Key
// header when present. Invalid keys yield a JSON 400; valid keys are stored
// in the context for handlers. When opts.Lookup is set and a session ID is
// available from the X-Session-ID header or session_id query parameter, a
// stored match marks the request as a replay and bypasses rate limiting.
//
// Lookup errors are swallowed: the handler repeats the lookup authoritatively,
// so a transient storage error here only costs the rate-limit bypass.
func IdempotencyValidator(opts IdempotencyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pattern := opts.Pattern
	if pattern == nil {
		pattern = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		if len(key) > maxLen || !pattern.MatchString(key) {
			rid, _ := c.Get(requestIDKey)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": asString(rid),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key header",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if opts.Lookup != nil {
			sessionID := c.GetHeader("X-Session-ID")
			if sessionID == "" {
				sessionID = c.Query("session_id")
			}
			if sessionID != "" {
				if found, err := opts.Lookup(c.Request.Context(), sessionID, key, time.Now().UTC()); err == nil && found {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}
