// Package services – AuthService
//
// This file implements AuthService, which owns account creation and
// credential verification. Usernames are Unicode-normalized (NFC) and matched
// exactly and case-sensitively; passwords are stored only as bcrypt hashes.
// Duplicate detection is delegated to the database unique index, so exactly
// one of two concurrent signups for the same name succeeds.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-backend/internal/domain"
	"github.com/tbourn/go-relay-backend/internal/repo"
)

const (
	// maxUsernameRunes caps stored usernames by rune length.
	maxUsernameRunes = 64
	// maxPasswordBytes is bcrypt's input limit; longer passwords are rejected
	// rather than silently truncated.
	maxPasswordBytes = 72
)

// dummyHash is compared against when the username is unknown, so both failure
// modes take a bcrypt comparison before returning ErrAuthFailed.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// AuthService provides signup and login on top of the users table.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Cost is the bcrypt work factor; zero means bcrypt.DefaultCost.
	Cost int
}

// NewAuthService constructs an AuthService with the default bcrypt cost.
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{DB: db, Cost: bcrypt.DefaultCost}
}

// Signup validates the pair, hashes the password, and inserts the user.
// Returns ErrInvalidInput for unusable input and ErrDuplicateUsername when
// the name is taken.
func (s *AuthService) Signup(ctx context.Context, username, password string) (*domain.User, error) {
	username, err := s.normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if password == "" || len(password) > maxPasswordBytes {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, username, string(hash))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return u, nil
}

// Login verifies the pair and returns the matching user. Unknown usernames
// and wrong passwords both yield ErrAuthFailed.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	username, err := s.normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrInvalidInput
	}

	u, err := repo.GetUserByUsername(ctx, s.DB, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Burn a comparison so the unknown-username path costs the same
			// as a wrong password.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrAuthFailed
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrAuthFailed
	}
	return u, nil
}

// normalizeUsername trims, NFC-normalizes, and length-checks a username.
// Case is preserved; lookups stay case-sensitive.
func (s *AuthService) normalizeUsername(username string) (string, error) {
	username = norm.NFC.String(strings.TrimSpace(username))
	if username == "" || utf8.RuneCountInString(username) > maxUsernameRunes {
		return "", ErrInvalidInput
	}
	return username, nil
}

func (s *AuthService) cost() int {
	if s.Cost <= 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}
