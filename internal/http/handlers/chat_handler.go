// Chat HTTP handlers.
//
// This file exposes the relay endpoints:
//   - POST /ask           (relay a prompt, append the exchange)
//   - GET  /chat_history  (paginated transcript, ETag support)
//
// Handlers are transport-thin: they resolve the caller's identity, call
// application services, and translate results into HTTP responses. Identity
// resolution prefers the session cookie and falls back to the caller-supplied
// user_id, so both cookie-based browsers and explicit API clients work.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-backend/internal/config"
	"github.com/tbourn/go-relay-backend/internal/domain"
	"github.com/tbourn/go-relay-backend/internal/http/middleware"
	"github.com/tbourn/go-relay-backend/internal/provider"
	"github.com/tbourn/go-relay-backend/internal/repo"
	"github.com/tbourn/go-relay-backend/internal/services"
	"github.com/tbourn/go-relay-backend/internal/session"
	"github.com/tbourn/go-relay-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService defines the account operations consumed by HTTP handlers.
type AuthService interface {
	// Signup creates an account and returns the stored user.
	Signup(ctx context.Context, username, password string) (*domain.User, error)
	// Login verifies credentials and returns the matching user.
	Login(ctx context.Context, username, password string) (*domain.User, error)
}

// ChatService defines the relay and transcript operations consumed by HTTP
// handlers. Implementations must honor the context for cancellation.
type ChatService interface {
	// Ask relays prompt for userID and appends the completed exchange.
	Ask(ctx context.Context, userID int64, prompt string) (*domain.ChatRecord, error)
	// History returns one transcript page, newest first, plus the total.
	History(ctx context.Context, userID int64, page, pageSize int) ([]domain.ChatRecord, int64, error)
	// Stats returns the record count and latest timestamp for cache validators.
	Stats(ctx context.Context, userID int64) (int64, *time.Time, error)
	// Lookup fetches one record by ID for idempotent replays.
	Lookup(ctx context.Context, id int64) (*domain.ChatRecord, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for accounts and chat relaying.
type Handlers struct {
	authSvc  AuthService
	chatSvc  ChatService
	sessions session.Store
	db       *gorm.DB
	cookie   config.SessionConfig

	// idemTTL bounds how long a completed (user, key) result can be replayed.
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services, session
// store, and database handle (used for idempotency bookkeeping). An idemTTL
// of zero defaults to 24 hours.
func New(authSvc AuthService, chatSvc ChatService, sessions session.Store, db *gorm.DB, cookie config.SessionConfig, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		authSvc:  authSvc,
		chatSvc:  chatSvc,
		sessions: sessions,
		db:       db,
		cookie:   cookie,
		idemTTL:  idemTTL,
	}
}

// SessionIdentity returns the identity resolver used by the idempotency
// middleware: session cookie only, since it runs before the body is read.
func (h *Handlers) SessionIdentity() middleware.IdentityFunc {
	return func(c *gin.Context) (int64, bool) {
		return h.sessionUser(c)
	}
}

// IdempotencyLookup returns the replay detector for the idempotency
// middleware, backed by the idempotency table.
func (h *Handlers) IdempotencyLookup() middleware.IdempotencyLookup {
	return func(ctx context.Context, userID int64, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, h.db, userID, key, now)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return rec != nil, nil
	}
}

// sessionUser resolves the caller from the session cookie.
func (h *Handlers) sessionUser(c *gin.Context) (int64, bool) {
	token, err := c.Cookie(h.cookie.CookieName)
	if err != nil || token == "" {
		return 0, false
	}
	return h.sessions.Resolve(token)
}

//
// DTOs
//

// flexibleID accepts a JSON number or a numeric string, since browser
// clients persist user_id in storage and send it back as either.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("user_id must be an integer: %w", err)
	}
	*f = flexibleID(n)
	return nil
}

// AskRequest is the JSON payload for the ask endpoint.
type AskRequest struct {
	Prompt string     `json:"prompt"`
	UserID flexibleID `json:"user_id"`
}

// Pagination carries paging metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ChatHistoryResponse wraps one transcript page.
type ChatHistoryResponse struct {
	Chats      []domain.ChatRecord `json:"chats"`
	Pagination Pagination          `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 100
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// Ask relays a prompt to the model provider and appends the exchange to the
// caller's transcript.
//
// Identity: the session cookie wins; without one the body's user_id is used;
// with neither the request is rejected as unauthenticated. With an
// Idempotency-Key that already completed, the stored response is returned
// without a second provider call.
//
// Responses:
//   - 200 {"response": "..."}
//   - 400 when the prompt is missing, blank, or too long
//   - 401 when no identity can be resolved or the user does not exist
//   - 500 provider failure or internal error; nothing is persisted
func (h *Handlers) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "No prompt provided.")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "No prompt provided.")
		return
	}

	uid, authed := h.sessionUser(c)
	if !authed {
		uid = int64(req.UserID)
	}
	if uid == 0 {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "User not authenticated.")
		return
	}
	middleware.SetUserID(c, uid)

	ctx := c.Request.Context()

	// Serve a stored result instead of re-asking the provider.
	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey {
		if rec, found := h.replay(ctx, uid, key); found {
			ok(c, http.StatusOK, gin.H{"response": rec.Response})
			return
		}
		rec, err := h.chatSvc.Ask(ctx, uid, req.Prompt)
		if err != nil {
			h.failAsk(c, err)
			return
		}
		// Best effort: losing the race to a concurrent retry is fine, the
		// winner's record answers future replays.
		_, _ = repo.CreateIdempotency(ctx, h.db, uid, key, rec.ID, http.StatusOK, h.idemTTL)
		ok(c, http.StatusOK, gin.H{"response": rec.Response})
		return
	}

	rec, err := h.chatSvc.Ask(ctx, uid, req.Prompt)
	if err != nil {
		h.failAsk(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"response": rec.Response})
}

// replay fetches the chat record recorded for (uid, key), when one exists.
func (h *Handlers) replay(ctx context.Context, uid int64, key string) (*domain.ChatRecord, bool) {
	idem, err := repo.GetIdempotency(ctx, h.db, uid, key, time.Now().UTC())
	if err != nil {
		return nil, false
	}
	rec, err := h.chatSvc.Lookup(ctx, idem.RecordID)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// failAsk maps service and provider errors onto the ask contract.
func (h *Handlers) failAsk(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyPrompt), errors.Is(err, services.ErrPromptTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "No prompt provided.")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "User not authenticated.")
	case errors.Is(err, provider.ErrUnavailable):
		fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed,
			"Failed to get response from AI model. Please try again later.")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal,
			"An internal server error occurred. Please try again later.")
	}
}

// ChatHistory returns the caller's transcript, newest first, with pagination
// metadata and a weak ETag so unchanged transcripts answer 304.
//
// Identity: the session cookie wins; without one the user_id query parameter
// is required.
//
// Responses:
//   - 200 {"chats": [...], "pagination": {...}}
//   - 304 when If-None-Match matches the current ETag
//   - 400 when no identity can be resolved
func (h *Handlers) ChatHistory(c *gin.Context) {
	ctx := c.Request.Context()

	uid, authed := h.sessionUser(c)
	if !authed {
		raw := strings.TrimSpace(c.Query("user_id"))
		if raw == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "User ID required.")
			return
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "User ID required.")
			return
		}
		uid = n
	}
	middleware.SetUserID(c, uid)

	page, pageSize := clampPagination(c)

	// Cache validator: count plus latest timestamp uniquely describe the
	// transcript for ETag purposes.
	if count, maxTS, err := h.chatSvc.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"chats:%d:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.chatSvc.History(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeHistoryFailed,
			"An internal server error occurred. Please try again later.")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ChatHistoryResponse{
		Chats: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
