package convo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/intakebot/core/logger"
	"log/slog"
)

const upsertQuery = `
INSERT INTO conversations (chat_id, transcript, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (chat_id) DO UPDATE
SET transcript = EXCLUDED.transcript,
    updated_at = EXCLUDED.updated_at`

const findQuery = `
SELECT transcript FROM conversations WHERE chat_id = $1`

// PostgresStore implements Store on top of a conversations table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert creates or replaces the record for chatID.
func (s *PostgresStore) Upsert(ctx context.Context, chatID int64, transcript Transcript) error {
	payload, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("convo: marshal transcript: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, upsertQuery, chatID, payload, time.Now().UTC())
	if err != nil {
		logger.Convo.LogAttrs(ctx, slog.LevelError, "upsert failed",
			slog.String("event", "upsert"),
			slog.Int64("chat_id", chatID),
			slog.Int("turns", len(transcript)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("convo: upsert chat %d: %w", chatID, err)
	}

	logger.Convo.LogAttrs(ctx, slog.LevelDebug, "upsert ok",
		slog.String("event", "upsert"),
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.Int("turns", len(transcript)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Find returns the stored transcript for chatID, reporting presence.
func (s *PostgresStore) Find(ctx context.Context, chatID int64) (Transcript, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, findQuery, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("convo: find chat %d: %w", chatID, err)
	}

	var transcript Transcript
	if err := json.Unmarshal(payload, &transcript); err != nil {
		return nil, false, fmt.Errorf("convo: decode transcript for chat %d: %w", chatID, err)
	}
	return transcript, true, nil
}
