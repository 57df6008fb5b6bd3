// Package handlers defines the HTTP-layer error codes used across endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them, while
// the human-readable message may change. Generic codes mirror HTTP status
// semantics; domain codes cover failures a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeConflict     = "conflict"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeSignupFailed     = "signup_failed"
	ErrCodeAnswerFailed     = "answer_failed"
	ErrCodeHistoryFailed    = "history_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
