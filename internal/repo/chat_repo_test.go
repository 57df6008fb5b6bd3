package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

func newChatRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("chat_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestAppendChat_Error_NoTable(t *testing.T) {
	db := newChatRepoDB(t /* no migrations */)
	rec, err := AppendChat(context.Background(), db, 1, "p", "r")
	if err == nil || rec != nil {
		t.Fatalf("expected error appending without table, got rec=%v err=%v", rec, err)
	}
}

func TestAppendChat_Success_SetsTimestamp(t *testing.T) {
	db := newChatRepoDB(t, &domain.User{}, &domain.ChatRecord{})

	start := time.Now().UTC().Add(-time.Minute)
	rec, err := AppendChat(context.Background(), db, 1, "hi", "hello")
	if err != nil {
		t.Fatalf("AppendChat: %v", err)
	}
	if rec.ID == 0 || rec.UserID != 1 || rec.Prompt != "hi" || rec.Response != "hello" {
		t.Fatalf("unexpected ChatRecord fields: %+v", rec)
	}
	if rec.Timestamp.Before(start) {
		t.Fatalf("Timestamp seems unset/really old: %v", rec.Timestamp)
	}
}

func TestListChats_OrderDescendingAndFilter(t *testing.T) {
	db := newChatRepoDB(t, &domain.User{}, &domain.ChatRecord{})

	// Seed with known timestamps so order is deterministic.
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC) // oldest
	t2 := t1.Add(1 * time.Hour)
	t3 := t2.Add(1 * time.Hour) // newest for user 1
	rows := []domain.ChatRecord{
		{ID: 1, UserID: 1, Prompt: "a", Response: "ra", Timestamp: t1},
		{ID: 2, UserID: 1, Prompt: "b", Response: "rb", Timestamp: t2},
		{ID: 3, UserID: 1, Prompt: "c", Response: "rc", Timestamp: t3},
		{ID: 4, UserID: 2, Prompt: "x", Response: "rx", Timestamp: t2},
	}
	for _, r := range rows {
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed %d: %v", r.ID, err)
		}
	}

	list, err := ListChats(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records for user 1, got %d", len(list))
	}
	// Must be descending by timestamp: 3, 2, 1
	if list[0].ID != 3 || list[1].ID != 2 || list[2].ID != 1 {
		t.Fatalf("unexpected order: %#v", list)
	}
}

func TestListChats_IDBreaksTimestampTies(t *testing.T) {
	db := newChatRepoDB(t, &domain.User{}, &domain.ChatRecord{})

	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		r := domain.ChatRecord{ID: i, UserID: 1, Prompt: "p", Response: "r", Timestamp: ts}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	list, err := ListChats(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if list[0].ID != 3 || list[2].ID != 1 {
		t.Fatalf("later appends must come first on equal timestamps: %#v", list)
	}
}

func TestListChats_EmptyIsNotError(t *testing.T) {
	db := newChatRepoDB(t, &domain.User{}, &domain.ChatRecord{})
	list, err := ListChats(context.Background(), db, 42)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty slice, got %d", len(list))
	}
}

func TestListChatsPage_And_Count(t *testing.T) {
	db := newChatRepoDB(t, &domain.User{}, &domain.ChatRecord{})

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		r := domain.ChatRecord{ID: i, UserID: 1, Prompt: "p", Response: "r", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	total, err := CountChats(context.Background(), db, 1)
	if err != nil || total != 5 {
		t.Fatalf("CountChats: total=%d err=%v", total, err)
	}

	page, err := ListChatsPage(context.Background(), db, 1, 2, 2)
	if err != nil {
		t.Fatalf("ListChatsPage: %v", err)
	}
	// Newest first is 5,4,3,2,1; offset 2 limit 2 -> 3,2
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 2 {
		t.Fatalf("unexpected page: %#v", page)
	}
}

func TestGetChat(t *testing.T) {
	db := newChatRepoDB(t, &domain.User{}, &domain.ChatRecord{})
	rec, err := AppendChat(context.Background(), db, 1, "p", "r")
	if err != nil {
		t.Fatalf("AppendChat: %v", err)
	}
	got, err := GetChat(context.Background(), db, rec.ID)
	if err != nil || got.Prompt != "p" {
		t.Fatalf("GetChat: got=%+v err=%v", got, err)
	}
	if _, err := GetChat(context.Background(), db, rec.ID+99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChatStats(t *testing.T) {
	db := newChatRepoDB(t, &domain.User{}, &domain.ChatRecord{})

	count, maxTS, err := ChatStats(context.Background(), db, 1)
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("empty stats: count=%d maxTS=%v err=%v", count, maxTS, err)
	}

	t1 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	for i, ts := range []time.Time{t2, t1} {
		r := domain.ChatRecord{ID: int64(i + 1), UserID: 1, Prompt: "p", Response: "r", Timestamp: ts}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	count, maxTS, err = ChatStats(context.Background(), db, 1)
	if err != nil || count != 2 || maxTS == nil {
		t.Fatalf("stats: count=%d maxTS=%v err=%v", count, maxTS, err)
	}
	if !maxTS.Equal(t2) {
		t.Fatalf("maxTS: got %v want %v", maxTS, t2)
	}
}
