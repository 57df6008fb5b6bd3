// Package services – ChatService
//
// This file implements ChatService, which coordinates one ask round trip:
// validate the prompt, verify the user, obtain a completion from the model
// provider, and append the exchange to the transcript. A provider failure
// aborts the round trip before anything is persisted, so the transcript only
// ever contains completed exchanges.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-relay-backend/internal/domain"
	"github.com/tbourn/go-relay-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Completer produces one completion for one prompt. Satisfied by
// *provider.Client; tests substitute a stub.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChatService relays prompts to the provider and owns the transcript.
type ChatService struct {
	DB       *gorm.DB
	Provider Completer

	// MaxPromptRunes caps accepted prompts; zero means the default.
	MaxPromptRunes int
}

// defaultMaxPromptRunes bounds a single prompt.
const defaultMaxPromptRunes = 4000

// History page sizing. page_size only narrows the default, never widens it.
const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// NewChatService constructs a ChatService with the default prompt cap.
func NewChatService(db *gorm.DB, p Completer) *ChatService {
	return &ChatService{DB: db, Provider: p, MaxPromptRunes: defaultMaxPromptRunes}
}

// Ask validates prompt, verifies that userID exists, requests a completion,
// and appends the prompt/response pair to the transcript. On any provider
// error the transcript is left untouched and the error is returned as-is for
// the handler to classify.
func (s *ChatService) Ask(ctx context.Context, userID int64, prompt string) (*domain.ChatRecord, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if max := s.maxPromptRunes(); utf8.RuneCountInString(prompt) > max {
		return nil, ErrPromptTooLong
	}

	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	answer, err := s.Provider.Complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return repo.AppendChat(ctx, s.DB, userID, prompt, answer)
}

// History returns one page of the user's transcript, newest first, plus the
// total record count. An unknown user simply has an empty transcript.
func (s *ChatService) History(ctx context.Context, userID int64, page, pageSize int) ([]domain.ChatRecord, int64, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatRecord{}, 0, nil
	}

	items, err := repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats reports the record count and latest timestamp for the user's
// transcript; handlers derive cache validators from it.
func (s *ChatService) Stats(ctx context.Context, userID int64) (int64, *time.Time, error) {
	return repo.ChatStats(ctx, s.DB, userID)
}

// Lookup fetches a chat record by ID; used by the idempotent replay path.
func (s *ChatService) Lookup(ctx context.Context, id int64) (*domain.ChatRecord, error) {
	return repo.GetChat(ctx, s.DB, id)
}

func (s *ChatService) maxPromptRunes() int {
	if s.MaxPromptRunes <= 0 {
		return defaultMaxPromptRunes
	}
	return s.MaxPromptRunes
}
