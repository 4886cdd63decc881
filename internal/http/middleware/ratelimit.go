// This file implements per-client rate limiting backed by golang.org/x/time/rate.
//
// A RateLimiter keeps one token bucket per client key (the client IP by
// default) in an in-memory map. Buckets that have been idle longer than a TTL
// are evicted during periodic sweeps so the map cannot grow without bound.
//
// Requests that exceed the budget receive a JSON 429 with a Retry-After hint.
// Replayed idempotent requests bypass the limiter entirely (see IsRateBypass),
// since they are served from storage and perform no model calls.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc derives the rate-limit bucket key for a request.
type keyFunc func(c *gin.Context) string

// KeyByClientIP buckets requests by the caller's IP address. Gin's ClientIP
// honors trusted proxy headers when configured on the engine.
func KeyByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// visitor tracks a single client's bucket and its last activity.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a concurrency-safe per-key token bucket registry.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	rps   rate.Limit
	burst int
	ttl   time.Duration
	key   keyFunc

	// lookups counts calls since the last sweep; a sweep runs every
	// sweepEvery lookups so idle entries are eventually reclaimed.
	lookups int
}

const sweepEvery = 5000

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst per client key. Idle buckets are evicted after 10 minutes.
// A nil key function defaults to KeyByClientIP.
func NewRateLimiter(rps float64, burst int, key keyFunc) *RateLimiter {
	if key == nil {
		key = KeyByClientIP
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		key:      key,
	}
}

// get returns the bucket for key, creating it on first sight, and opportunistically
// sweeps idle entries.
func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		rl.lookups = 0
		cutoff := time.Now().Add(-rl.ttl)
		for k, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, k)
			}
		}
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Handler returns the Gin middleware enforcing the limiter.
//
// On rejection it writes a standardized JSON 429 envelope and a Retry-After
// header of one second. Idempotent replays marked by the idempotency
// middleware are never counted against the budget.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if !rl.get(rl.key(c)).Allow() {
			rid, _ := c.Get(requestIDKey)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id": asString(rid),
				"code":       "too_many_requests",
				"message":    "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
