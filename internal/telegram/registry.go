// Package telegram wraps the Bot API transport: per-bot client registry,
// content block dispatch, keyboard rendering, and invoices.
package telegram

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	telebot "gopkg.in/telebot.v3"
)

// Sender is the subset of telebot.Bot the dispatcher needs. Tests
// substitute a capturing fake.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// SenderSource resolves a Sender for a stored bot token.
type SenderSource interface {
	Bot(token string) (Sender, error)
}

// Registry caches one telebot instance per bot token. The runtime serves
// many bots, each with its own token owned by the editor's users.
type Registry struct {
	mu     sync.RWMutex
	bots   map[string]*telebot.Bot
	client *http.Client
}

// NewRegistry creates a Registry whose outbound calls are bounded by
// timeout, so a slow Bot API call cannot hold the per-user lock forever.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Registry{
		bots:   make(map[string]*telebot.Bot),
		client: &http.Client{Timeout: timeout},
	}
}

// Bot returns the cached client for token, constructing one on first use.
func (r *Registry) Bot(token string) (Sender, error) {
	r.mu.RLock()
	b, ok := r.bots[token]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bots[token]; ok {
		return b, nil
	}

	b, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Client: r.client,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	r.bots[token] = b
	return b, nil
}
