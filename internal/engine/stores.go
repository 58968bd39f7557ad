package engine

import (
	"context"

	"github.com/botforge/flowengine/internal/domain"
	"github.com/botforge/flowengine/internal/flow"
)

// Store contracts consumed by the engine. Postgres implementations live in
// internal/repository; lookups that find nothing return (nil, nil) so that
// broken graphs terminate traversal silently instead of erroring.

// BotStore resolves bot credentials.
type BotStore interface {
	// Token returns the Bot API token for botID, or ErrBotNotFound.
	Token(ctx context.Context, botID string) (string, error)
}

// GraphStore reads the editor-authored flow graph.
type GraphStore interface {
	// NodeByID fetches one node, or nil when absent.
	NodeByID(ctx context.Context, id string) (*domain.Node, error)
	// NodeByEntry fetches the bot's designated entry node, or nil.
	NodeByEntry(ctx context.Context, botID string) (*domain.Node, error)
	// Edge fetches the outgoing edge for (source, handle), or nil. Handle
	// domain.HandleDefault selects the handle-less auto-advance edge.
	Edge(ctx context.Context, sourceID, handle string) (*domain.Edge, error)
}

// VariableStore reads and writes per-user variable values.
type VariableStore interface {
	// Snapshot returns declared defaults overlaid with the user's values.
	Snapshot(ctx context.Context, botID string, userID int64) (flow.Vars, error)
	// Upsert stores one value keyed by (bot, user, name).
	Upsert(ctx context.Context, botID string, userID int64, name, value string) error
}

// SessionStore reads and writes the per-user flow position.
type SessionStore interface {
	// Get returns the session for (bot, user), or nil on first contact.
	Get(ctx context.Context, botID string, userID int64) (*domain.Session, error)
	// Upsert atomically replaces-or-inserts the session.
	Upsert(ctx context.Context, session *domain.Session) error
}

// ProductStore resolves products for invoice issuance.
type ProductStore interface {
	// ByID fetches one product, or nil when absent.
	ByID(ctx context.Context, id string) (*domain.Product, error)
}

// Outbox dispatches outbound content through the messaging platform.
type Outbox interface {
	SendContentBlocks(ctx context.Context, token string, userID int64, blocks []domain.ContentBlock, keyboard []domain.Button) error
	SendInvoice(ctx context.Context, token string, userID int64, product *domain.Product) error
}

// Locker serializes updates per (bot, user) pair. Acquire returns ErrLocked
// when the pair is already being processed past the wait budget.
type Locker interface {
	Acquire(ctx context.Context, botID string, userID int64) (release func(), err error)
}
