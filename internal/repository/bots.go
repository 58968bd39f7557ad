// Package repository implements the engine's store contracts on PostgreSQL,
// which the visual editor uses as its system of record.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botforge/flowengine/internal/engine"
)

// BotRepository resolves bot credentials from the bots table.
type BotRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewBotRepository creates a SQL-backed bot repository.
func NewBotRepository(db *sql.DB, log *slog.Logger) *BotRepository {
	return &BotRepository{db: db, log: log}
}

// Token returns the Bot API token for botID. A missing or token-less bot
// maps to engine.ErrBotNotFound so the webhook can answer 404.
func (r *BotRepository) Token(ctx context.Context, botID string) (string, error) {
	const query = `SELECT token FROM bots WHERE id = $1`

	var token string
	if err := r.db.QueryRowContext(ctx, query, botID).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", engine.ErrBotNotFound, botID)
		}

		if r.log != nil {
			r.log.Error("failed to fetch bot token", slog.String("bot_id", botID), slog.Any("error", err))
		}
		return "", fmt.Errorf("select bot token: %w", err)
	}

	if token == "" {
		return "", fmt.Errorf("%w: %s has no token", engine.ErrBotNotFound, botID)
	}

	return token, nil
}
