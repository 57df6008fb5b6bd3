// Package services implements the business logic for accounts and chat
// relaying. This file centralizes the service-level error values so they can
// be consistently returned by service methods and checked by callers.
//
// These errors are internal to the service layer; translation into
// user-facing messages and HTTP status codes happens in the handlers.
package services

import "errors"

// Account-related errors.
var (
	// ErrInvalidInput is returned when a username or password fails basic
	// validation (empty after trimming, or over the length caps).
	ErrInvalidInput = errors.New("invalid username or password input")

	// ErrDuplicateUsername is returned when signup targets a username that
	// already exists.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrAuthFailed is returned for BOTH an unknown username and a wrong
	// password, so callers cannot distinguish the two cases.
	ErrAuthFailed = errors.New("invalid credentials")

	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Chat-related errors.
var (
	// ErrEmptyPrompt is returned when an ask request contains an empty or
	// whitespace-only prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrPromptTooLong is returned when a prompt exceeds the configured
	// maximum rune length.
	ErrPromptTooLong = errors.New("prompt too long")
)
