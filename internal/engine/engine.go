// Package engine replays editor-authored flow graphs against end-user
// conversations: it classifies inbound updates, resolves the entry node,
// captures input into variables, walks condition branches and auto-advance
// chains, and emits outbound sends.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/botforge/flowengine/internal/domain"
	"github.com/botforge/flowengine/internal/flow"
	"github.com/botforge/flowengine/internal/telegram"
	"github.com/botforge/flowengine/pkg/metrics"
)

// StartCommand is the literal input that (re)enters the flow at its
// designated entry node.
const StartCommand = "/start"

// DefaultMaxHops bounds one update's traversal. A chain longer than this is
// treated as a cyclic graph, not a legitimate flow.
const DefaultMaxHops = 64

// Engine orchestrates one update at a time for a (bot, end-user) pair.
type Engine struct {
	bots      BotStore
	graph     GraphStore
	variables VariableStore
	sessions  SessionStore
	products  ProductStore
	outbox    Outbox
	locker    Locker
	log       *slog.Logger
	maxHops   int
}

// Config carries the engine's collaborators.
type Config struct {
	Bots      BotStore
	Graph     GraphStore
	Variables VariableStore
	Sessions  SessionStore
	Products  ProductStore
	Outbox    Outbox
	Locker    Locker
	Log       *slog.Logger
	// MaxHops overrides DefaultMaxHops when positive.
	MaxHops int
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	maxHops := cfg.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	return &Engine{
		bots:      cfg.Bots,
		graph:     cfg.Graph,
		variables: cfg.Variables,
		sessions:  cfg.Sessions,
		products:  cfg.Products,
		outbox:    cfg.Outbox,
		locker:    cfg.Locker,
		log:       log,
		maxHops:   maxHops,
	}
}

// HandleUpdate processes one inbound update to its first stopping
// condition. A nil return means the update should be acknowledged with
// success regardless of how far traversal proceeded.
func (e *Engine) HandleUpdate(ctx context.Context, botID string, upd Update) error {
	if upd.Kind == UpdateUnknown {
		return nil
	}

	token, err := e.bots.Token(ctx, botID)
	if err != nil {
		return err
	}

	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, botID, upd.UserID)
		if err != nil {
			return err
		}
		defer release()
	}

	vars, err := e.variables.Snapshot(ctx, botID, upd.UserID)
	if err != nil {
		return fmt.Errorf("load variable snapshot: %w", err)
	}

	session, err := e.sessions.Get(ctx, botID, upd.UserID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	target, done, err := e.resolveEntry(ctx, token, botID, upd, session, &vars)
	if err != nil || done || target == "" {
		return err
	}

	return e.traverse(ctx, token, botID, upd.UserID, target, vars)
}

// resolveEntry implements the fixed entry-point priority order: start
// command, navigation callback, payment callback (short-circuits), input
// capture, otherwise nothing to do. done reports that the update is fully
// handled without traversal.
func (e *Engine) resolveEntry(ctx context.Context, token, botID string, upd Update, session *domain.Session, vars *flow.Vars) (target string, done bool, err error) {
	switch {
	case upd.Kind == UpdateMessage && upd.Text == StartCommand:
		entry, err := e.graph.NodeByEntry(ctx, botID)
		if err != nil {
			return "", false, fmt.Errorf("resolve entry node: %w", err)
		}
		if entry == nil {
			e.log.Warn("flow has no entry node", slog.String("bot_id", botID))
			return "", true, nil
		}
		return entry.ID, false, nil

	case upd.Kind == UpdateCallback:
		return e.resolveCallback(ctx, token, botID, upd)

	case upd.Kind == UpdateMessage && upd.Text != "" && session != nil && session.AwaitingInput:
		return e.captureInput(ctx, botID, upd, session, vars)

	default:
		return "", true, nil
	}
}

func (e *Engine) resolveCallback(ctx context.Context, token, botID string, upd Update) (string, bool, error) {
	kind, value := telegram.DecodeCallback(upd.CallbackData)
	switch kind {
	case telegram.CallbackNode:
		return value, false, nil

	case telegram.CallbackPay:
		product, err := e.products.ByID(ctx, value)
		if err != nil {
			return "", false, fmt.Errorf("load product %s: %w", value, err)
		}
		if product == nil {
			e.log.Warn("payment callback for unknown product",
				slog.String("bot_id", botID),
				slog.String("product_id", value),
			)
			return "", true, nil
		}
		return "", true, e.outbox.SendInvoice(ctx, token, upd.UserID, product)

	default:
		return "", true, nil
	}
}

// captureInput stores the raw input text under the variable named by the
// awaited input node, refreshes the snapshot, and advances via the node's
// default edge.
func (e *Engine) captureInput(ctx context.Context, botID string, upd Update, session *domain.Session, vars *flow.Vars) (string, bool, error) {
	node, err := e.graph.NodeByID(ctx, session.NodeID)
	if err != nil {
		return "", false, fmt.Errorf("load awaited node %s: %w", session.NodeID, err)
	}
	if node == nil || node.Type != domain.NodeInput || node.InputVariable == "" {
		return "", true, nil
	}

	if err := e.variables.Upsert(ctx, botID, upd.UserID, node.InputVariable, upd.Text); err != nil {
		return "", false, fmt.Errorf("capture input into %q: %w", node.InputVariable, err)
	}

	refreshed, err := e.variables.Snapshot(ctx, botID, upd.UserID)
	if err != nil {
		return "", false, fmt.Errorf("refresh variable snapshot: %w", err)
	}
	*vars = refreshed

	edge, err := e.graph.Edge(ctx, node.ID, domain.HandleDefault)
	if err != nil {
		return "", false, fmt.Errorf("resolve edge after input: %w", err)
	}
	if edge == nil {
		return "", true, nil
	}
	return edge.TargetID, false, nil
}

// traverse walks the graph iteratively from target. Each visited node gets
// its session state persisted before its content is evaluated; state
// written before a failure stays committed.
func (e *Engine) traverse(ctx context.Context, token, botID string, userID int64, target string, vars flow.Vars) error {
	hops := 0
	defer func() { metrics.RecordHops(hops) }()

	for current := target; current != ""; hops++ {
		if hops >= e.maxHops {
			return fmt.Errorf("%w: %d hops from node %s", ErrTraversalDepthExceeded, hops, target)
		}

		node, err := e.graph.NodeByID(ctx, current)
		if err != nil {
			return fmt.Errorf("load node %s: %w", current, err)
		}
		if node == nil {
			// Broken graph: the editor may legitimately reference a node
			// that no longer exists. Stop this branch silently.
			e.log.Debug("traversal hit missing node",
				slog.String("bot_id", botID),
				slog.String("node_id", current),
			)
			return nil
		}

		session := &domain.Session{
			BotID:         botID,
			UserID:        userID,
			NodeID:        node.ID,
			AwaitingInput: node.Type == domain.NodeInput,
		}
		if err := e.sessions.Upsert(ctx, session); err != nil {
			return fmt.Errorf("persist session at node %s: %w", node.ID, err)
		}

		if node.Type == domain.NodeCondition {
			handle := domain.HandleFalse
			if flow.EvaluateCondition(node.Condition, vars) {
				handle = domain.HandleTrue
			}

			edge, err := e.graph.Edge(ctx, node.ID, handle)
			if err != nil {
				return fmt.Errorf("resolve %s edge of node %s: %w", handle, node.ID, err)
			}
			if edge == nil {
				return nil
			}
			current = edge.TargetID
			continue
		}

		if err := e.outbox.SendContentBlocks(ctx, token, userID, interpolateBlocks(node.Blocks, vars), node.Keyboard); err != nil {
			return err
		}

		// Input nodes pause the chain until the next update captures the
		// reply; everything else auto-advances along the default edge.
		if node.Type == domain.NodeInput {
			return nil
		}

		edge, err := e.graph.Edge(ctx, node.ID, domain.HandleDefault)
		if err != nil {
			return fmt.Errorf("resolve default edge of node %s: %w", node.ID, err)
		}
		if edge == nil {
			return nil
		}
		current = edge.TargetID
	}

	return nil
}

// interpolateBlocks substitutes variables into text blocks; media blocks
// pass through unchanged.
func interpolateBlocks(blocks []domain.ContentBlock, vars flow.Vars) []domain.ContentBlock {
	if len(blocks) == 0 {
		return blocks
	}

	out := make([]domain.ContentBlock, len(blocks))
	copy(out, blocks)
	for i := range out {
		if out[i].Type == domain.BlockText {
			out[i].Content = flow.Interpolate(out[i].Content, vars)
		}
	}
	return out
}
