// Package session manages the binding between opaque browser tokens and
// authenticated user identities.
//
// The Store interface is deliberately small so the in-memory implementation
// can be swapped for a distributed store (e.g. Redis) without touching the
// HTTP layer. Tokens are opaque UUIDs; the HTTP layer owns their transport
// (a server-issued cookie) and the store never sees a request.
//
// Lifetime: sessions expire after an idle TTL and all of them die with the
// process. A lost session only forces a new login.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store binds opaque tokens to user identities.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Start creates a new session for userID and returns its token.
	Start(userID int64) string
	// Resolve returns the user bound to token, or ok=false when the token is
	// unknown or expired.
	Resolve(token string) (userID int64, ok bool)
	// End removes the session. Ending an absent session is a no-op.
	End(token string)
}

// entry holds one session binding and its expiry deadline.
type entry struct {
	userID    int64
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-memory Store with per-entry TTL and
// opportunistic eviction of expired entries during lookups, so memory stays
// bounded without a background sweeper.
type MemoryStore struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]entry
	lookupN  uint64

	// now is a clock seam for tests.
	now func() time.Time
}

// NewMemoryStore constructs a MemoryStore whose sessions expire after ttl of
// inactivity. A ttl <= 0 is coerced to one hour.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

// Start creates a fresh session token bound to userID. A new token is issued
// on every login; any prior token held by the same browser is replaced by the
// Set-Cookie the HTTP layer sends, and the old entry ages out via TTL.
func (s *MemoryStore) Start(userID int64) string {
	token := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	s.sessions[token] = entry{userID: userID, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	return token
}

// Resolve returns the identity bound to token and slides its expiry forward.
// Expired or unknown tokens report ok=false.
func (s *MemoryStore) Resolve(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup after a threshold of lookups, then reset the
	// counter. Run it before touching the requested entry so an expired
	// session is evicted even when it is the one being resolved.
	s.lookupN++
	if s.lookupN >= 1000 {
		for k, e := range s.sessions {
			if !now.Before(e.expiresAt) {
				delete(s.sessions, k)
			}
		}
		s.lookupN = 0
	}

	e, ok := s.sessions[token]
	if !ok {
		return 0, false
	}
	if !now.Before(e.expiresAt) {
		delete(s.sessions, token)
		return 0, false
	}
	e.expiresAt = now.Add(s.ttl)
	s.sessions[token] = e
	return e.userID, true
}

// End removes the session for token. Idempotent.
func (s *MemoryStore) End(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Len reports the number of live entries (expired ones may still be counted
// until the next eviction pass). Intended for tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
