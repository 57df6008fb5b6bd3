// Account HTTP handlers.
//
// This file exposes the authentication endpoints:
//   - POST /signup  (create account)
//   - POST /login   (verify credentials, start a session)
//   - POST /logout  (end the session; always succeeds)
//
// Handlers are transport-thin: they validate input, call the auth service,
// and translate results into HTTP responses. The session token travels in an
// HttpOnly cookie; the login body additionally returns user_id for clients
// that prefer explicit identity.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-relay-backend/internal/services"
)

// CredentialsRequest is the JSON payload for signup and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup creates a new account.
//
// Responses:
//   - 201 {"message": "Signup successful."}
//   - 400 when username or password is missing or unusable
//   - 409 when the username is already taken
func (h *Handlers) Signup(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Username and password required.")
		return
	}

	_, err := h.authSvc.Signup(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, gin.H{"message": "Signup successful."})
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Username and password required.")
	case errors.Is(err, services.ErrDuplicateUsername):
		fail(c, http.StatusConflict, ErrCodeConflict, "Username already exists.")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSignupFailed,
			"An internal server error occurred. Please try again later.")
	}
}

// Login verifies credentials, starts a session, and sets the session cookie.
//
// Responses:
//   - 200 {"message": "Login successful.", "user_id": 1, "username": "alice"}
//   - 400 when username or password is missing
//   - 401 when the pair does not verify (same body for unknown username and
//     wrong password)
func (h *Handlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Username and password required.")
		return
	}

	u, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		token := h.sessions.Start(u.ID)
		h.setSessionCookie(c, token, int(h.cookie.TTL.Seconds()))
		ok(c, http.StatusOK, gin.H{
			"message":  "Login successful.",
			"user_id":  u.ID,
			"username": u.Username,
		})
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Username and password required.")
	case errors.Is(err, services.ErrAuthFailed):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid username or password.")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal,
			"An internal server error occurred. Please try again later.")
	}
}

// Logout ends the current session, if any, and clears the cookie. Always
// answers 200, with or without a live session.
func (h *Handlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cookie.CookieName); err == nil && token != "" {
		h.sessions.End(token)
	}
	h.setSessionCookie(c, "", -1)
	ok(c, http.StatusOK, gin.H{"message": "Logged out."})
}

// setSessionCookie writes the session cookie. maxAge < 0 deletes it.
func (h *Handlers) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.CookieName, token, maxAge, "/", "", h.cookie.Secure, true)
}
