// Package domain defines the persistence models for users and chat records.
// These types are mapped with GORM and form the core data layer of the
// relay backend.
package domain

import "time"

// User represents a registered account. Users are created on signup and are
// immutable afterwards; this system never deletes them.
//
// Fields:
//   - ID: auto-incrementing integer primary key.
//   - Username: unique, non-empty, case-sensitive login name.
//   - PasswordHash: bcrypt hash of the password. The plaintext is never
//     stored and the hash is never serialized into API responses.
type User struct {
	ID           int64  `json:"id"       gorm:"primaryKey;autoIncrement"`
	Username     string `json:"username" gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	PasswordHash string `json:"-"        gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ChatRecord is one persisted prompt/response exchange. Records are created
// only as a side effect of a successful relay call, are immutable, and are
// listed per user in reverse-chronological order.
//
// Fields:
//   - ID: auto-incrementing integer primary key.
//   - UserID: owner of the record; FK to users.id (enforced, indexed).
//   - Prompt: the user's prompt text (non-empty).
//   - Response: the normalized provider reply.
//   - Timestamp: assigned at append time from the wall clock (UTC).
type ChatRecord struct {
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id"   gorm:"not null;index:idx_user_chats"`
	Prompt    string    `json:"prompt"    gorm:"type:text;not null"`
	Response  string    `json:"response"  gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"column:timestamp;not null;index:idx_user_chats_ts"`

	// User is the owning account. The FK keeps every record pointing at an
	// existing user row.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatRecord.
func (ChatRecord) TableName() string { return "chats" }
