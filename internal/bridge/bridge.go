package bridge

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/logging"
	"github.com/Iron-Ham/taskbridge/internal/overrides"
	"github.com/Iron-Ham/taskbridge/internal/protocol"
)

// Bridge creates Sessions over conversations owned by a ConversationManager.
// It is safe for concurrent use.
type Bridge struct {
	manager    ConversationManager
	defaults   ConversationConfig
	bufferSize int
	logger     *logging.Logger
}

// New creates a Bridge over manager.
//
// Passing a nil manager panics to surface wiring bugs immediately.
func New(manager ConversationManager, opts ...Option) *Bridge {
	if manager == nil {
		panic("bridge: ConversationManager must not be nil")
	}

	cfg := &config{
		bufferSize: defaultBufferSize,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.bufferSize < 1 {
		cfg.bufferSize = defaultBufferSize
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}

	defaults := cfg.defaults
	if cfg.originator != "" {
		defaults.Originator = cfg.originator
	}

	return &Bridge{
		manager:    manager,
		defaults:   defaults,
		bufferSize: cfg.bufferSize,
		logger:     cfg.logger.WithComponent("bridge"),
	}
}

// CreateSession parses pairs into typed overrides, creates a conversation
// configured with them, and returns a Session whose first event is the
// synthetic session_configured event.
func (b *Bridge) CreateSession(ctx context.Context, pairs []overrides.Pair) (*Session, error) {
	entries, err := overrides.Typed(pairs)
	if err != nil {
		return nil, err
	}

	cfg, err := BuildConversationConfig(b.defaults, entries)
	if err != nil {
		return nil, err
	}

	created, err := b.manager.CreateConversation(ctx, cfg)
	if err != nil {
		return nil, errors.NewSessionError("failed to create conversation", err)
	}
	if created == nil || created.Conversation == nil {
		return nil, errors.NewSessionError("manager returned no conversation", nil)
	}

	seed, err := protocol.NewSessionConfiguredEvent(created.SessionConfigured)
	if err != nil {
		if rmErr := b.manager.RemoveConversation(ctx, created.ID); rmErr != nil {
			b.logger.Warn("failed to remove conversation after seed failure",
				"conversation_id", created.ID, "error", rmErr.Error())
		}
		return nil, fmt.Errorf("build session_configured event: %w", err)
	}

	logger := b.logger.WithConversation(created.ID)
	logger.Info("session created", "overrides", len(entries), "model", cfg.Model)

	return newSession(created.ID, created.Conversation, b.manager, seed, b.bufferSize, logger), nil
}
