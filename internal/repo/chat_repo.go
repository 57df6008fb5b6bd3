// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for ChatRecord,
// the append-only transcript log.
//
// Records are never updated or deleted; the only mutations are inserts.
// Listing is always per user and descending by timestamp (id breaks ties so
// records appended within the same clock tick keep insertion order).
//
// Functions:
//
//   - AppendChat(ctx, db, userID, prompt, response) -> *domain.ChatRecord, error
//     Inserts a new record with the timestamp assigned at append time (UTC).
//
//   - ListChats(ctx, db, userID) -> []domain.ChatRecord, error
//     Returns all records for a user, newest first.
//
//   - CountChats(ctx, db, userID) -> (int64, error)
//     Returns the total number of records owned by the user.
//
//   - ListChatsPage(ctx, db, userID, offset, limit) -> []domain.ChatRecord, error
//     Returns a paginated slice, newest first.
//
//   - GetChat(ctx, db, id) -> *domain.ChatRecord, error
//     Fetches one record by primary key (used for idempotent replays).
//
//   - ChatStats(ctx, db, userID) -> (count, maxTimestamp, error)
//     Aggregate metadata used for weak ETag generation in the HTTP layer.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

// AppendChat inserts a new transcript record owned by userID. The timestamp
// comes from the wall clock at append time (UTC), which is monotonically
// non-decreasing across appends within one process.
func AppendChat(ctx context.Context, db *gorm.DB, userID int64, prompt, response string) (*domain.ChatRecord, error) {
	rec := &domain.ChatRecord{
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Timestamp: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ListChats returns all records belonging to userID, newest first. It returns
// an empty slice (not an error) when the user has no records.
func ListChats(ctx context.Context, db *gorm.DB, userID int64) ([]domain.ChatRecord, error) {
	var out []domain.ChatRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc, id desc").
		Find(&out).Error
	return out, err
}

// CountChats returns the total number of records owned by userID.
func CountChats(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a paginated slice of records for userID, newest
// first. The caller computes offset and limit (e.g. (page-1)*pageSize).
func ListChatsPage(ctx context.Context, db *gorm.DB, userID int64, offset, limit int) ([]domain.ChatRecord, error) {
	var out []domain.ChatRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetChat fetches a single record by primary key, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.ChatRecord, error) {
	var rec domain.ChatRecord
	err := db.WithContext(ctx).First(&rec, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ChatStats returns aggregate metadata for a user's transcript: the total
// number of rows and the greatest timestamp among them. When the user has no
// records, count is 0 and maxTimestamp is nil.
func ChatStats(ctx context.Context, db *gorm.DB, userID int64) (count int64, maxTimestamp *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatRecord{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		Timestamp time.Time
	}
	if err = q.Select("timestamp").Order("timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Timestamp, nil
}
