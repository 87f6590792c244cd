package bridge

import (
	"context"
	"sync"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/logging"
	"github.com/Iron-Ham/taskbridge/internal/protocol"
)

// ErrSessionClosed is returned by Session operations issued after Close.
var ErrSessionClosed = errors.ErrSessionClosed

// pumped is one result forwarded from the conversation stream.
type pumped struct {
	event protocol.Event
	err   error
}

// Session is an ordered, pull-based view of one conversation.
//
// NextEvent is meant for a single consumer. Submit may be called concurrently
// with NextEvent.
type Session struct {
	id           string
	conversation Conversation
	manager      ConversationManager
	logger       *logging.Logger

	// events holds the seed followed by stream results. The producer closes it
	// when the stream ends, fails, or the session is closed.
	events chan pumped
	// done is closed by Close to unblock waiting consumers.
	done       chan struct{}
	stopPump   context.CancelFunc
	pumpExited chan struct{}

	mu     sync.Mutex
	closed bool
}

// newSession seeds the queue before the producer starts, so seed is always
// the first event out.
func newSession(id string, conv Conversation, manager ConversationManager, seed protocol.Event, bufferSize int, logger *logging.Logger) *Session {
	pumpCtx, stop := context.WithCancel(context.Background())
	s := &Session{
		id:           id,
		conversation: conv,
		manager:      manager,
		logger:       logger,
		events:       make(chan pumped, bufferSize),
		done:         make(chan struct{}),
		stopPump:     stop,
		pumpExited:   make(chan struct{}),
	}
	s.events <- pumped{event: seed}

	go s.pump(pumpCtx)
	return s
}

// pump forwards stream results in order. A failure is delivered once and
// ends the stream.
func (s *Session) pump(ctx context.Context) {
	defer close(s.pumpExited)
	defer close(s.events)

	for {
		ev, err := s.conversation.NextEvent(ctx)
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrStreamClosed):
				s.logger.Debug("event stream ended")
			case ctx.Err() != nil:
				// Close cancelled us; the consumer is gone.
			default:
				s.logger.Warn("event stream failed", "error", err.Error())
				s.deliver(ctx, pumped{err: err})
			}
			return
		}
		if !s.deliver(ctx, pumped{event: ev}) {
			return
		}
	}
}

func (s *Session) deliver(ctx context.Context, p pumped) bool {
	select {
	case s.events <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

// ID returns the conversation id.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// NextEvent returns the next event. ok is false once the stream has ended.
// A stream failure is returned as an error carrying the underlying message;
// after Close it returns ErrSessionClosed.
func (s *Session) NextEvent(ctx context.Context) (ev protocol.Event, ok bool, err error) {
	if s.isClosed() {
		return protocol.Event{}, false, ErrSessionClosed
	}

	select {
	case p, open := <-s.events:
		if !open {
			if s.isClosed() {
				return protocol.Event{}, false, ErrSessionClosed
			}
			return protocol.Event{}, false, nil
		}
		if p.err != nil {
			return protocol.Event{}, false,
				errors.NewSessionError("event stream failed", p.err).WithConversationID(s.id)
		}
		return p.event, true, nil
	case <-s.done:
		return protocol.Event{}, false, ErrSessionClosed
	case <-ctx.Done():
		return protocol.Event{}, false, ctx.Err()
	}
}

// NextEventJSON is NextEvent with the event rendered as one line of JSON.
func (s *Session) NextEventJSON(ctx context.Context) (string, bool, error) {
	ev, ok, err := s.NextEvent(ctx)
	if err != nil || !ok {
		return "", ok, err
	}
	text, err := protocol.EncodeEvent(ev)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Submit forwards sub to the conversation unchanged, except that an empty id
// is replaced with a fresh UUID.
func (s *Session) Submit(ctx context.Context, sub protocol.Submission) error {
	if s.isClosed() {
		return ErrSessionClosed
	}

	sub = sub.WithID()
	if err := s.conversation.Submit(ctx, sub); err != nil {
		return errors.NewSessionError("submit failed", err).WithConversationID(s.id)
	}
	s.logger.Debug("submission forwarded", "submission_id", sub.ID, "op", sub.Type())
	return nil
}

// SubmitJSON decodes a submission from JSON text and forwards it.
func (s *Session) SubmitJSON(ctx context.Context, text string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	sub, err := protocol.DecodeSubmission(text)
	if err != nil {
		return err
	}
	return s.Submit(ctx, sub)
}

// Close removes the conversation from its manager and stops the producer.
// It always returns nil and is safe to call more than once; a failure to
// remove the conversation is only logged.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.stopPump()

	if err := s.manager.RemoveConversation(ctx, s.id); err != nil {
		s.logger.Warn("failed to remove conversation", "error", err.Error())
	}
	s.logger.Info("session closed")
	return nil
}

// Done is closed once the producer has stopped, whether because the stream
// ended, failed, or the session was closed.
func (s *Session) Done() <-chan struct{} {
	return s.pumpExited
}
