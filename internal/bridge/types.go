package bridge

import (
	"context"

	"github.com/Iron-Ham/taskbridge/internal/overrides"
	"github.com/Iron-Ham/taskbridge/internal/protocol"
)

// ConversationManager creates and tears down conversations.
type ConversationManager interface {
	// CreateConversation starts a conversation configured by cfg.
	CreateConversation(ctx context.Context, cfg ConversationConfig) (*NewConversation, error)

	// RemoveConversation forgets the conversation with the given id.
	RemoveConversation(ctx context.Context, id string) error
}

// Conversation is a live conversation handle. It may be shared between the
// session's producer goroutine and callers of Submit.
type Conversation interface {
	// NextEvent blocks for the next event. An error matching
	// protocol.ErrStreamClosed marks the clean end of the stream.
	NextEvent(ctx context.Context) (protocol.Event, error)

	// Submit forwards an operation to the conversation.
	Submit(ctx context.Context, sub protocol.Submission) error
}

// NewConversation is what a manager returns for a freshly created conversation.
type NewConversation struct {
	ID                string
	Conversation      Conversation
	SessionConfigured protocol.SessionConfigured
}

// ConversationConfig is the configuration a conversation is created with:
// defaults merged with caller overrides.
type ConversationConfig struct {
	Model          string `mapstructure:"model"`
	ModelProvider  string `mapstructure:"model_provider"`
	Cwd            string `mapstructure:"cwd"`
	ApprovalPolicy string `mapstructure:"approval_policy"`
	SandboxMode    string `mapstructure:"sandbox_mode"`

	// Originator tags requests the engine makes on the bridge's behalf.
	Originator string `mapstructure:"-"`
	// Overrides are the typed entries the config was built from, in order.
	Overrides []overrides.Entry `mapstructure:"-"`
}
