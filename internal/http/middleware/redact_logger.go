// This file provides a privacy-aware variant of the access logger.
//
// RedactingLogger behaves like Logger() but scrubs personally identifiable
// information before it ever reaches the log stream:
//
//   - UUIDs, e-mail addresses, and phone-like digit runs found in the request
//     path or query string are replaced with placeholder tokens.
//   - Sensitive headers (Authorization, Cookie, and any operator-configured
//     extras) are masked wholesale.
//
// Use this instead of Logger() when upload filenames or session identifiers
// may carry user data that must not be persisted in logs verbatim.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures the redacting access logger.
type RedactOptions struct {
	// MaskHeaders lists additional request headers (canonical form) whose
	// values are replaced with "***" in logs. Authorization and Cookie are
	// always masked regardless of this list.
	MaskHeaders []string
}

var (
	// Order matters: UUIDs first so their digit groups are not half-eaten by
	// the phone pattern, then e-mails, then loose digit runs.
	reUUID  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	reEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	rePhone = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}\d`)
)

// Redact scrubs UUIDs, e-mail addresses, and phone-like sequences from s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = reUUID.ReplaceAllString(s, "[uuid]")
	s = reEmail.ReplaceAllString(s, "[email]")
	s = rePhone.ReplaceAllString(s, "[phone]")
	return s
}

// RedactingLogger is a drop-in replacement for Logger() that redacts PII from
// the logged path and query string and masks sensitive header values.
//
// Like Logger(), it attaches a request-scoped zerolog.Logger under the
// "logger" context key and picks the log level from the response status.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]bool{
		"Authorization": true,
		"Cookie":        true,
	}
	for _, h := range opts.MaskHeaders {
		masked[strings.TrimSpace(h)] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = Redact(c.Request.URL.Path)
		}

		lc := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", truncate(c.Request.UserAgent(), 256)).
			Str("query", Redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))).
			Int64("bytes_in", c.Request.ContentLength)

		for name := range masked {
			if c.GetHeader(name) != "" {
				lc = lc.Str("header_"+strings.ToLower(name), "***")
			}
		}

		l := lc.Logger()
		c.Set("logger", &l)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		ev := l.With().
			Int("status", status).
			Dur("latency", latency).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", Redact(c.Errors.String())).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}
