// Package middleware contains the shared Gin middleware for the HTTP layer.
//
// This file covers correlation and logging:
//
//   - RequestID() gives every request a stable correlation ID, propagated via
//     the X-Request-ID header and the Gin context.
//   - Logger() emits one structured access log per request and attaches a
//     request-scoped zerolog.Logger to the context. Credential material never
//     reaches the log: sensitive query parameters are masked before the query
//     string is recorded, and request bodies are not logged at all.
//   - Recovery() converts panics into JSON 500 responses carrying the
//     correlation ID, with a stack trace in the logs.
//   - LoggerFrom() fetches the request-scoped logger for handlers.
//
// Install RequestID before Logger and Logger before Recovery so panics are
// logged with full request context.
package middleware

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation ID.
	requestIDKey = "requestID"
	// userIDKey is the Gin context key holding the authenticated user ID (int64).
	userIDKey = "userID"
	// requestIDHeader propagates the correlation ID to clients.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the logged query string.
	maxQueryLogLength = 1024
)

// sensitiveParams lists query parameter names whose values are masked in
// access logs.
var sensitiveParams = map[string]bool{
	"password": true,
	"token":    true,
	"api_key":  true,
	"apikey":   true,
	"secret":   true,
}

// RequestID reuses an incoming X-Request-ID or generates a UUIDv4, stores it
// in the Gin context, and reflects it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID returns the correlation ID for the current request, or "".
func GetRequestID(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	s, _ := v.(string)
	return s
}

// SetUserID records the authenticated user on the Gin context so later
// middleware and the access log can attribute the request.
func SetUserID(c *gin.Context, id int64) {
	c.Set(userIDKey, id)
}

// GetUserID returns the authenticated user recorded by SetUserID, if any.
func GetUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// Logger writes one structured access log per request and stashes a
// request-scoped zerolog.Logger under the "logger" context key.
//
// Level selection: error for 5xx or when Gin collected errors, warn for 4xx,
// info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			// Route not matched (404 and friends).
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(redactQuery(c.Request.URL.Query()), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()
		c.Set("logger", &l)

		c.Next()

		ev := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()
		if uid, ok := GetUserID(c); ok {
			ev = ev.With().Int64("user_id", uid).Logger()
		}

		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case c.Writer.Status() >= 500:
			ev.Error().Msg("request")
		case c.Writer.Status() >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery logs the panic with a stack trace and answers with a JSON 500 that
// still carries the correlation ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := GetRequestID(c)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", rid).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, rid)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": rid,
						"code":       "internal_error",
						"error":      "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger, or the
// global logger when none is present. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// redactQuery re-encodes the query string with sensitive values masked.
func redactQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	masked := make(url.Values, len(q))
	for k, vs := range q {
		if sensitiveParams[strings.ToLower(k)] {
			masked[k] = []string{"[redacted]"}
			continue
		}
		masked[k] = vs
	}
	return masked.Encode()
}

// truncate caps s at max bytes, appending an ellipsis when cut. max <= 0
// disables truncation. Byte-based, which is fine for log output.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// itoa is a tiny helper for building header values.
func itoa(i int) string { return strconv.Itoa(i) }
