package repo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "x.db"), false)
	if err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestOpenSQLite_AndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := OpenSQLite(path, false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, table := range []string{"users", "chats", "idempotency"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("missing table %q", table)
		}
	}
}

func TestForeignKey_ChatRequiresUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fk.db")
	db, err := OpenSQLite(path, false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	// No such user: the FK (PRAGMA foreign_keys=ON) must reject the insert.
	if _, err := AppendChat(context.Background(), db, 12345, "p", "r"); err == nil {
		t.Fatalf("expected FK violation appending for missing user")
	}

	u, err := CreateUser(context.Background(), db, "alice", "h")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	rec, err := AppendChat(context.Background(), db, u.ID, "p", "r")
	if err != nil {
		t.Fatalf("AppendChat for existing user: %v", err)
	}
	var got domain.ChatRecord
	if err := db.First(&got, rec.ID).Error; err != nil || got.UserID != u.ID {
		t.Fatalf("round-trip: got=%+v err=%v", got, err)
	}
}
