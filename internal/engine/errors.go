package engine

import "errors"

var (
	// ErrBotNotFound indicates the webhook addressed a bot that does not
	// exist or has no token; the update must be rejected with a not-found
	// signal and no side effects.
	ErrBotNotFound = errors.New("bot not found")

	// ErrTraversalDepthExceeded indicates an auto-advance chain exceeded
	// the hop budget, which means the graph almost certainly contains a
	// cycle of default edges among non-input nodes.
	ErrTraversalDepthExceeded = errors.New("traversal depth exceeded")

	// ErrLocked indicates another update for the same (bot, user) pair is
	// being processed; the update is dropped, not queued.
	ErrLocked = errors.New("user flow is locked by a concurrent update")
)
