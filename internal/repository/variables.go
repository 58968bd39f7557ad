package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/botforge/flowengine/internal/flow"
)

// VariableRepository reads the per-user variable snapshot and persists
// captured input values.
type VariableRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewVariableRepository creates a SQL-backed variable repository.
func NewVariableRepository(db *sql.DB, log *slog.Logger) *VariableRepository {
	return &VariableRepository{db: db, log: log}
}

// Snapshot returns declared defaults overlaid with the user's stored
// values, as a name -> text-value map.
func (r *VariableRepository) Snapshot(ctx context.Context, botID string, userID int64) (flow.Vars, error) {
	const query = `
		SELECT v.name, COALESCE(uv.value, v.default_value, '')
		FROM variables v
		LEFT JOIN user_variables uv
			ON uv.bot_id = v.bot_id AND uv.name = v.name AND uv.tg_user_id = $2
		WHERE v.bot_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, botID, userID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to fetch variable snapshot",
				slog.String("bot_id", botID),
				slog.Int64("tg_user_id", userID),
				slog.Any("error", err),
			)
		}
		return nil, fmt.Errorf("select variable snapshot: %w", err)
	}
	defer rows.Close()

	vars := make(flow.Vars)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan variable row: %w", err)
		}
		vars[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variable rows: %w", err)
	}

	return vars, nil
}

// Upsert stores one captured value, keyed uniquely by (bot, user, name).
func (r *VariableRepository) Upsert(ctx context.Context, botID string, userID int64, name, value string) error {
	const query = `
		INSERT INTO user_variables (bot_id, tg_user_id, name, value, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (bot_id, tg_user_id, name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, botID, userID, name, value); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert user variable",
				slog.String("bot_id", botID),
				slog.Int64("tg_user_id", userID),
				slog.String("name", name),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("upsert user variable: %w", err)
	}

	return nil
}
