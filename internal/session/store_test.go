package session

import (
	"sync"
	"testing"
	"time"
)

func TestStartAndResolve(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	tok := s.Start(7)
	if tok == "" {
		t.Fatalf("Start returned empty token")
	}
	uid, ok := s.Resolve(tok)
	if !ok || uid != 7 {
		t.Fatalf("Resolve: uid=%d ok=%v", uid, ok)
	}
}

func TestResolve_UnknownAndEmpty(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	if _, ok := s.Resolve(""); ok {
		t.Fatalf("empty token must not resolve")
	}
	if _, ok := s.Resolve("not-a-token"); ok {
		t.Fatalf("unknown token must not resolve")
	}
}

func TestEnd_IsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	tok := s.Start(1)

	s.End(tok)
	if _, ok := s.Resolve(tok); ok {
		t.Fatalf("ended session must not resolve")
	}
	// Ending again must not panic or error.
	s.End(tok)
	s.End("never-existed")
}

func TestResolve_ExpiryAndSlidingWindow(t *testing.T) {
	s := NewMemoryStore(10 * time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	tok := s.Start(5)

	// Within TTL: resolves and slides the window.
	now = now.Add(9 * time.Minute)
	if _, ok := s.Resolve(tok); !ok {
		t.Fatalf("session should still be live")
	}

	// 9 more minutes after the slide is still inside the refreshed window.
	now = now.Add(9 * time.Minute)
	if _, ok := s.Resolve(tok); !ok {
		t.Fatalf("sliding expiry should keep session alive")
	}

	// Past TTL with no activity: gone.
	now = now.Add(11 * time.Minute)
	if _, ok := s.Resolve(tok); ok {
		t.Fatalf("expired session must not resolve")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry should be deleted on resolve, len=%d", s.Len())
	}
}

func TestStart_IssuesDistinctTokens(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	a := s.Start(1)
	b := s.Start(1)
	if a == b {
		t.Fatalf("two logins must not share a token")
	}
	// Both resolve independently to the same user.
	if uid, ok := s.Resolve(a); !ok || uid != 1 {
		t.Fatalf("token a: uid=%d ok=%v", uid, ok)
	}
	if uid, ok := s.Resolve(b); !ok || uid != 1 {
		t.Fatalf("token b: uid=%d ok=%v", uid, ok)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tok := s.Start(uid)
				if got, ok := s.Resolve(tok); !ok || got != uid {
					t.Errorf("resolve mismatch: got=%d ok=%v want=%d", got, ok, uid)
					return
				}
				s.End(tok)
			}
		}(int64(i))
	}
	wg.Wait()
}
