package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botforge/flowengine/internal/domain"
)

// entryNodeName tags the node the editor designates as the flow entry.
const entryNodeName = "start"

// GraphRepository reads editor-authored nodes and edges. Node content,
// keyboards, and settings are stored as JSONB and normalized into the
// closed domain schema at this boundary.
type GraphRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewGraphRepository creates a SQL-backed graph repository.
func NewGraphRepository(db *sql.DB, log *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, log: log}
}

const nodeColumns = `id, bot_id, name, type, content_blocks, keyboard, settings`

// NodeByID fetches one node. Absent nodes return (nil, nil): editor graphs
// may legitimately reference deleted nodes while being reworked.
func (r *GraphRepository) NodeByID(ctx context.Context, id string) (*domain.Node, error) {
	const query = `SELECT ` + nodeColumns + ` FROM commands WHERE id = $1`
	return r.scanNode(r.db.QueryRowContext(ctx, query, id))
}

// NodeByEntry fetches the bot's designated entry node. Duplicate entry
// nodes are tie-broken by id for determinism.
func (r *GraphRepository) NodeByEntry(ctx context.Context, botID string) (*domain.Node, error) {
	const query = `
		SELECT ` + nodeColumns + `
		FROM commands
		WHERE bot_id = $1 AND name = $2
		ORDER BY id
		LIMIT 1
	`
	return r.scanNode(r.db.QueryRowContext(ctx, query, botID, entryNodeName))
}

// Edge fetches the outgoing edge for (source, handle). The empty handle
// selects the default auto-advance edge (stored as NULL). Duplicate
// (source, handle) rows are tie-broken by id.
func (r *GraphRepository) Edge(ctx context.Context, sourceID, handle string) (*domain.Edge, error) {
	const query = `
		SELECT source_id, COALESCE(handle, ''), target_id
		FROM edges
		WHERE source_id = $1 AND handle IS NOT DISTINCT FROM $2
		ORDER BY id
		LIMIT 1
	`

	handleParam := sql.NullString{String: handle, Valid: handle != domain.HandleDefault}

	var edge domain.Edge
	err := r.db.QueryRowContext(ctx, query, sourceID, handleParam).Scan(
		&edge.SourceID,
		&edge.Handle,
		&edge.TargetID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if r.log != nil {
			r.log.Error("failed to fetch edge",
				slog.String("source_id", sourceID),
				slog.String("handle", handle),
				slog.Any("error", err),
			)
		}
		return nil, fmt.Errorf("select edge: %w", err)
	}

	return &edge, nil
}

func (r *GraphRepository) scanNode(row *sql.Row) (*domain.Node, error) {
	var (
		node     domain.Node
		rawType  string
		blocks   []byte
		keyboard []byte
		settings []byte
	)

	err := row.Scan(&node.ID, &node.BotID, &node.Name, &rawType, &blocks, &keyboard, &settings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select node: %w", err)
	}

	if err := normalizeNode(&node, rawType, blocks, keyboard, settings); err != nil {
		if r.log != nil {
			r.log.Error("failed to decode node payload", slog.String("node_id", node.ID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("decode node %s: %w", node.ID, err)
	}

	return &node, nil
}
