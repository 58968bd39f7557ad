package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botforge/flowengine/internal/domain"
)

// SessionRepository persists the per-(bot, end-user) flow position.
type SessionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSessionRepository creates a SQL-backed session repository.
func NewSessionRepository(db *sql.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log}
}

// Get returns the session for (bot, user), or nil on first contact.
func (r *SessionRepository) Get(ctx context.Context, botID string, userID int64) (*domain.Session, error) {
	const query = `
		SELECT bot_id, tg_user_id, node_id, awaiting_input, updated_at
		FROM sessions
		WHERE bot_id = $1 AND tg_user_id = $2
	`

	var session domain.Session
	err := r.db.QueryRowContext(ctx, query, botID, userID).Scan(
		&session.BotID,
		&session.UserID,
		&session.NodeID,
		&session.AwaitingInput,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if r.log != nil {
			r.log.Error("failed to fetch session",
				slog.String("bot_id", botID),
				slog.Int64("tg_user_id", userID),
				slog.Any("error", err),
			)
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	return &session, nil
}

// Upsert atomically replaces-or-inserts the session row. Concurrent
// first-contact races resolve to a single surviving row through the
// primary key conflict clause.
func (r *SessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	const query = `
		INSERT INTO sessions (bot_id, tg_user_id, node_id, awaiting_input, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (bot_id, tg_user_id)
		DO UPDATE SET node_id = EXCLUDED.node_id, awaiting_input = EXCLUDED.awaiting_input, updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, session.BotID, session.UserID, session.NodeID, session.AwaitingInput); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert session",
				slog.String("bot_id", session.BotID),
				slog.Int64("tg_user_id", session.UserID),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}
