package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Iron-Ham/taskbridge/internal/errors"
)

// ErrStreamClosed marks the clean end of an event stream. Match it with errors.Is.
var ErrStreamClosed = errors.ErrStreamClosed

// Event types the bridge itself produces or inspects.
const (
	EventSessionConfigured = "session_configured"
	EventTaskComplete      = "task_complete"
	EventError             = "error"
	EventShutdownComplete  = "shutdown_complete"
)

// Operation types the bridge itself produces.
const (
	OpUserInput = "user_input"
	OpInterrupt = "interrupt"
	OpShutdown  = "shutdown"
)

// Event is one message emitted by a conversation.
type Event struct {
	ID  string          `json:"id"`
	Msg json.RawMessage `json:"msg"`
}

// Submission is one operation sent to a conversation.
type Submission struct {
	ID string          `json:"id"`
	Op json.RawMessage `json:"op"`
}

type typed struct {
	Type string `json:"type"`
}

// Type returns the msg discriminator, or "" if msg has none.
func (e Event) Type() string {
	var t typed
	if err := json.Unmarshal(e.Msg, &t); err != nil {
		return ""
	}
	return t.Type
}

// Type returns the op discriminator, or "" if op has none.
func (s Submission) Type() string {
	var t typed
	if err := json.Unmarshal(s.Op, &t); err != nil {
		return ""
	}
	return t.Type
}

// WithID returns s with a fresh UUID when its id is empty.
func (s Submission) WithID() Submission {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return s
}

// NewEvent builds an Event whose msg is payload's JSON object with "type" set.
// payload may be nil for events that carry no fields.
func NewEvent(id, eventType string, payload any) (Event, error) {
	msg, err := withType(eventType, payload)
	if err != nil {
		return Event{}, errors.NewSerializationError("event", err)
	}
	return Event{ID: id, Msg: msg}, nil
}

// NewSubmission builds a Submission whose op is payload's JSON object with
// "type" set. An empty id is replaced with a fresh UUID.
func NewSubmission(id, opType string, payload any) (Submission, error) {
	op, err := withType(opType, payload)
	if err != nil {
		return Submission{}, errors.NewSerializationError("submission", err)
	}
	return Submission{ID: id, Op: op}.WithID(), nil
}

// InputItem is a single piece of user input.
type InputItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Path string `json:"path,omitempty"`
}

// NewUserInput builds a user_input submission carrying text.
func NewUserInput(text string) Submission {
	sub, _ := NewSubmission("", OpUserInput, map[string]any{
		"items": []InputItem{{Type: "text", Text: text}},
	})
	return sub
}

// NewShutdown builds a shutdown submission.
func NewShutdown() Submission {
	sub, _ := NewSubmission("", OpShutdown, nil)
	return sub
}

func withType(kind string, payload any) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("payload must encode as a JSON object: %w", err)
		}
	}
	kindJSON, err := json.Marshal(kind)
	if err != nil {
		return nil, err
	}
	fields["type"] = kindJSON
	return json.Marshal(fields)
}

// SessionConfigured is the payload of the first event of every session.
type SessionConfigured struct {
	SessionID         string `json:"session_id"`
	Model             string `json:"model"`
	ReasoningEffort   string `json:"reasoning_effort,omitempty"`
	HistoryLogID      uint64 `json:"history_log_id"`
	HistoryEntryCount int    `json:"history_entry_count"`
	RolloutPath       string `json:"rollout_path,omitempty"`
}

// NewSessionConfiguredEvent builds the synthetic event that opens a session.
// Its id is always empty.
func NewSessionConfiguredEvent(sc SessionConfigured) (Event, error) {
	return NewEvent("", EventSessionConfigured, sc)
}

// DecodeSessionConfigured extracts the payload of a session_configured event.
func DecodeSessionConfigured(ev Event) (SessionConfigured, error) {
	if t := ev.Type(); t != EventSessionConfigured {
		return SessionConfigured{}, fmt.Errorf("expected %s event, got %q", EventSessionConfigured, t)
	}
	var sc SessionConfigured
	if err := json.Unmarshal(ev.Msg, &sc); err != nil {
		return SessionConfigured{}, errors.NewSerializationError("event", err)
	}
	return sc, nil
}
