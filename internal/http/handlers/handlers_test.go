package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-backend/internal/config"
	"github.com/tbourn/go-relay-backend/internal/http/middleware"
	"github.com/tbourn/go-relay-backend/internal/repo"
	"github.com/tbourn/go-relay-backend/internal/services"
	"github.com/tbourn/go-relay-backend/internal/session"
)

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(path, false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCompleter is a scripted provider for handler tests.
type fakeCompleter struct {
	answer string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// testEnv bundles the wired handler stack for one test.
type testEnv struct {
	engine    *gin.Engine
	handlers  *Handlers
	db        *gorm.DB
	sessions  *session.MemoryStore
	completer *fakeCompleter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t, filepath.Join(t.TempDir(), "handlers.db"))

	authSvc := services.NewAuthService(db)
	authSvc.Cost = bcrypt.MinCost
	completer := &fakeCompleter{answer: "hello"}
	chatSvc := services.NewChatService(db, completer)
	sessions := session.NewMemoryStore(time.Hour)

	h := New(authSvc, chatSvc, sessions, db, config.SessionConfig{
		CookieName: "session_token",
		TTL:        time.Hour,
	}, time.Hour)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{},
		h.SessionIdentity(),
		h.IdempotencyLookup(),
	))
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/chat_history", h.ChatHistory)
	r.POST("/ask", h.Ask)

	return &testEnv{engine: r, handlers: h, db: db, sessions: sessions, completer: completer}
}

// postJSON performs a request with a JSON body plus optional header tweaks.
func (e *testEnv) postJSON(t *testing.T, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// signup registers a user and returns nothing; fails the test on error.
func (e *testEnv) signup(t *testing.T, username, password string) {
	t.Helper()
	w := e.postJSON(t, "/signup", gin.H{"username": username, "password": password}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %q: status %d body %s", username, w.Code, w.Body.String())
	}
}

// login authenticates and returns (userID, session cookie).
func (e *testEnv) login(t *testing.T, username, password string) (int64, *http.Cookie) {
	t.Helper()
	w := e.postJSON(t, "/login", gin.H{"username": username, "password": password}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login %q: status %d body %s", username, w.Code, w.Body.String())
	}
	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "session_token" && ck.Value != "" {
			return body.UserID, ck
		}
	}
	t.Fatalf("login did not set a session cookie")
	return 0, nil
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %s: %v", w.Body.String(), err)
	}
	return m
}
