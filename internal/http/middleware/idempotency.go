// Package middleware contains the shared Gin middleware for the HTTP layer.
//
// This file implements Idempotency-Key support for the ask endpoint. The
// middleware validates the header, stashes the normalized key in the context,
// and asks a pluggable lookup whether a completed result already exists for
// (user, key). Replays are flagged so the rate limiter can skip them and the
// handler can serve the stored record instead of calling the provider again.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header clients use to deduplicate
// retried asks. The value must be stable across retries of one semantic
// request.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys for idempotency state, read via the accessor helpers.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator. Handlers should use this rather than re-reading the
// header.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for this request's
// (user, key) pair.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation. Expiry is not enforced
// here; the lookup owns the TTL window.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length; values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil uses a conservative token
	// pattern: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a completed, unexpired result exists for
// (userID, key) at now. Lookup failures must not block processing; return an
// error only for diagnostics.
type IdempotencyLookup func(ctx context.Context, userID int64, key string, now time.Time) (exists bool, err error)

// IdentityFunc resolves the caller for replay detection. It runs before the
// handler, so it must not consume the request body.
type IdentityFunc func(*gin.Context) (int64, bool)

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes it, and marks the context when lookup finds a replay. Requests
// without the header pass through untouched; a malformed key is rejected
// with 400 before any handler runs.
func IdempotencyValidator(opts IdempotencyOptions, identity IdentityFunc, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": GetRequestID(c),
				"code":       "bad_idempotency_key",
				"error":      "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil && identity != nil {
			if uid, ok := identity(c); ok {
				now := time.Now().UTC()
				if exists, _ := lookup(c.Request.Context(), uid, key, now); exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}
