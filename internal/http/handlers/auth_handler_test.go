package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSignup_Created(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/signup", gin.H{"username": "alice", "password": "pw"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: %d body %s", w.Code, w.Body.String())
	}
	if got := decodeJSON(t, w)["message"]; got != "Signup successful." {
		t.Fatalf("message: %v", got)
	}
}

func TestSignup_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []gin.H{
		{},
		{"username": "alice"},
		{"password": "pw"},
		{"username": "", "password": "pw"},
	} {
		w := env.postJSON(t, "/signup", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %v: status %d", body, w.Code)
		}
		if got := decodeJSON(t, w)["error"]; got != "Username and password required." {
			t.Fatalf("body %v: error %v", body, got)
		}
	}
}

func TestSignup_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "bob", "pw1")

	w := env.postJSON(t, "/signup", gin.H{"username": "bob", "password": "pw2"}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status: %d", w.Code)
	}
	m := decodeJSON(t, w)
	if m["error"] != "Username already exists." || m["code"] != ErrCodeConflict {
		t.Fatalf("body: %v", m)
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "carol", "hunter2")

	w := env.postJSON(t, "/login", gin.H{"username": "carol", "password": "hunter2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d body %s", w.Code, w.Body.String())
	}
	m := decodeJSON(t, w)
	if m["message"] != "Login successful." || m["username"] != "carol" {
		t.Fatalf("body: %v", m)
	}
	if _, ok := m["user_id"].(float64); !ok {
		t.Fatalf("user_id missing from %v", m)
	}

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "session_token" {
			cookie = ck
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("session cookie not set")
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}
	if uid, ok := env.sessions.Resolve(cookie.Value); !ok || uid == 0 {
		t.Fatalf("cookie token does not resolve: uid=%d ok=%v", uid, ok)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "dave", "right")

	for _, body := range []gin.H{
		{"username": "dave", "password": "wrong"},
		{"username": "nobody", "password": "whatever"},
	} {
		w := env.postJSON(t, "/login", body, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("body %v: status %d", body, w.Code)
		}
		if got := decodeJSON(t, w)["error"]; got != "Invalid username or password." {
			t.Fatalf("body %v: error %v", body, got)
		}
	}
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.postJSON(t, "/login", gin.H{"username": "x"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestLogout_EndsSessionAndAlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "erin", "pw")
	_, cookie := env.login(t, "erin", "pw")

	w := env.postJSON(t, "/logout", gin.H{}, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if got := decodeJSON(t, w)["message"]; got != "Logged out." {
		t.Fatalf("message: %v", got)
	}
	if _, ok := env.sessions.Resolve(cookie.Value); ok {
		t.Fatalf("session still resolves after logout")
	}

	// Without any session: still 200.
	again := env.postJSON(t, "/logout", gin.H{}, nil)
	if again.Code != http.StatusOK {
		t.Fatalf("anonymous logout: status %d", again.Code)
	}
}
