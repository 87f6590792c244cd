package bridge

import (
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

// defaultBufferSize is how many events a session holds before the producer
// waits for the consumer.
const defaultBufferSize = 64

// Option configures a Bridge.
type Option func(*config)

type config struct {
	bufferSize int
	originator string
	defaults   ConversationConfig
	logger     *logging.Logger
}

// WithBufferSize sets the per-session event buffer. A value below 1 is
// replaced with the default (64).
func WithBufferSize(n int) Option {
	return func(c *config) {
		c.bufferSize = n
	}
}

// WithOriginator sets the originator tag passed to every conversation.
func WithOriginator(originator string) Option {
	return func(c *config) {
		c.originator = originator
	}
}

// WithDefaults sets the configuration overrides are applied on top of.
func WithDefaults(defaults ConversationConfig) Option {
	return func(c *config) {
		c.defaults = defaults
	}
}

// WithLogger sets the logger for the bridge.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
