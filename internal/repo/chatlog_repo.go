// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatTurn
// model, the append-only log of question/answer exchanges per session.
//
// Error semantics:
//   - When a turn is not found, functions return ErrNotFound.
//   - On DB errors, the raw gorm error is propagated.
//
// Functions:
//
//   - AppendTurn(ctx, db, sessionID, question, answer, model) -> *domain.ChatTurn, error
//     Inserts one completed exchange with a UTC timestamp.
//
//   - ListTurns(ctx, db, sessionID) -> []domain.ChatTurn, error
//     Returns a session's turns oldest first. An unknown session yields an
//     empty slice, not an error.
//
//   - GetTurn(ctx, db, id) -> *domain.ChatTurn, error
//     Fetches a single turn by ID, or ErrNotFound if missing.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/docuchat/rag-backend/internal/domain"
)

// AppendTurn inserts one question/answer exchange for sessionID. The database
// assigns the integer ID; CreatedAt is set to UTC. It is called only after an
// answer was produced, so the log never contains half-finished turns.
//
// On success, it returns the persisted ChatTurn. On failure, it returns a
// DB error.
func AppendTurn(ctx context.Context, db *gorm.DB, sessionID, question, answer, model string) (*domain.ChatTurn, error) {
	t := &domain.ChatTurn{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// ListTurns returns all turns belonging to sessionID, oldest first. The ID
// tie-break keeps turns created within the same clock tick in insertion
// order. It returns an empty slice for a session with no turns. On DB error,
// it returns the error.
func ListTurns(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.ChatTurn, error) {
	var out []domain.ChatTurn
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// GetTurn fetches a single turn by its ID. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetTurn(ctx context.Context, db *gorm.DB, id int64) (*domain.ChatTurn, error) {
	var t domain.ChatTurn
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
