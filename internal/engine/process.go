package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/taskbridge/internal/bridge"
	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/logging"
	"github.com/Iron-Ham/taskbridge/internal/overrides"
	"github.com/Iron-Ham/taskbridge/internal/protocol"
)

// OriginatorEnvVar carries the originator tag into the engine process.
const OriginatorEnvVar = "CODEX_INTERNAL_ORIGINATOR_OVERRIDE"

const (
	defaultShutdownGrace = 3 * time.Second
	stderrTailBytes      = 4096
)

// ProcessManager starts one engine process per conversation.
type ProcessManager struct {
	command       string
	args          []string
	env           []string
	shutdownGrace time.Duration
	logger        *logging.Logger

	mu            sync.Mutex
	conversations map[string]*ProcessConversation
}

// Option configures a ProcessManager.
type Option func(*ProcessManager)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *ProcessManager) {
		if logger != nil {
			m.logger = logger.WithComponent("engine")
		}
	}
}

// WithEnv appends KEY=VALUE entries to the engine's environment.
func WithEnv(env ...string) Option {
	return func(m *ProcessManager) {
		m.env = append(m.env, env...)
	}
}

// WithShutdownGrace sets how long RemoveConversation waits for the process to
// exit after a shutdown request before killing it.
func WithShutdownGrace(d time.Duration) Option {
	return func(m *ProcessManager) {
		if d > 0 {
			m.shutdownGrace = d
		}
	}
}

// NewProcessManager creates a manager that runs command with args for every
// conversation. Overrides are appended as "-c key=value" pairs.
func NewProcessManager(command string, args []string, opts ...Option) *ProcessManager {
	m := &ProcessManager{
		command:       command,
		args:          append([]string(nil), args...),
		shutdownGrace: defaultShutdownGrace,
		logger:        logging.NopLogger(),
		conversations: make(map[string]*ProcessConversation),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// modelledKeys are rendered from the merged ConversationConfig rather than
// from the raw override list.
var modelledKeys = map[string]bool{
	"model":           true,
	"model_provider":  true,
	"approval_policy": true,
	"sandbox_mode":    true,
	"cwd":             true,
}

// commandArgs renders cfg as the engine's argument list.
func (m *ProcessManager) commandArgs(cfg bridge.ConversationConfig) ([]string, error) {
	var entries []overrides.Entry
	for _, kv := range []struct{ key, value string }{
		{"model", cfg.Model},
		{"model_provider", cfg.ModelProvider},
		{"approval_policy", cfg.ApprovalPolicy},
		{"sandbox_mode", cfg.SandboxMode},
	} {
		if kv.value != "" {
			entries = append(entries, overrides.Entry{Key: kv.key, Value: kv.value})
		}
	}
	for _, e := range cfg.Overrides {
		if !modelledKeys[strings.ToLower(e.Key)] {
			entries = append(entries, e)
		}
	}

	extra, err := overrides.Args(entries)
	if err != nil {
		return nil, err
	}
	args := append([]string(nil), m.args...)
	return append(args, extra...), nil
}

// CreateConversation starts an engine process and waits for its
// session_configured event.
func (m *ProcessManager) CreateConversation(ctx context.Context, cfg bridge.ConversationConfig) (*bridge.NewConversation, error) {
	args, err := m.commandArgs(cfg)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(m.command, args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = append(os.Environ(), m.env...)
	if cfg.Originator != "" {
		cmd.Env = append(cmd.Env, OriginatorEnvVar+"="+cfg.Originator)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", m.command, err)
	}
	m.logger.Debug("engine started", "command", m.command, "args", strings.Join(args, " "), "pid", cmd.Process.Pid)

	conv := newProcessConversation(cmd, stdin, stdout, stderr, m.logger)

	first, err := conv.NextEvent(ctx)
	if err != nil {
		conv.kill()
		if errors.Is(err, protocol.ErrStreamClosed) {
			return nil, errors.NewSessionError("engine exited before configuring the session", conv.exitErr())
		}
		return nil, err
	}
	sc, err := protocol.DecodeSessionConfigured(first)
	if err != nil {
		conv.kill()
		return nil, fmt.Errorf("engine handshake: %w", err)
	}

	id := sc.SessionID
	if id == "" {
		id = uuid.NewString()
		sc.SessionID = id
	}
	conv.id = id

	m.mu.Lock()
	m.conversations[id] = conv
	m.mu.Unlock()

	m.logger.Info("conversation created", "conversation_id", id, "model", sc.Model)
	return &bridge.NewConversation{
		ID:                id,
		Conversation:      conv,
		SessionConfigured: sc,
	}, nil
}

// RemoveConversation asks the engine to shut down, killing it if it does not
// exit within the grace period.
func (m *ProcessManager) RemoveConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	conv, ok := m.conversations[id]
	delete(m.conversations, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrConversationNotFound, id)
	}
	return conv.shutdown(ctx, m.shutdownGrace)
}

// Conversations returns the ids of live conversations.
func (m *ProcessManager) Conversations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	return ids
}

// ProcessConversation is one engine process.
type ProcessConversation struct {
	id     string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *protocol.Writer
	stderr *tailBuffer
	logger *logging.Logger

	events chan readResult
	exited chan struct{}

	waitOnce sync.Once
	waitErr  error
	stdinMu  sync.Mutex
	stdinOff bool
}

type readResult struct {
	event protocol.Event
	err   error
}

func newProcessConversation(cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, stderr *tailBuffer, logger *logging.Logger) *ProcessConversation {
	c := &ProcessConversation{
		cmd:    cmd,
		stdin:  stdin,
		writer: protocol.NewWriter(stdin),
		stderr: stderr,
		logger: logger,
		events: make(chan readResult),
		exited: make(chan struct{}),
	}
	go c.readLoop(protocol.NewReader(stdout))
	return c
}

// readLoop owns stdout. At end of output it reaps the process and reports a
// non-zero exit as a stream failure. Output that cannot be decoded ends the
// stream and kills the process, since nothing reads stdout afterwards.
func (c *ProcessConversation) readLoop(r *protocol.Reader) {
	defer close(c.events)
	for {
		ev, err := r.ReadEvent()
		if err == nil {
			c.events <- readResult{event: ev}
			continue
		}
		if errors.Is(err, protocol.ErrStreamClosed) {
			if exitErr := c.wait(); exitErr != nil {
				err = exitErr
			}
		} else {
			c.abort(err)
		}
		c.events <- readResult{err: err}
		return
	}
}

// abort kills the process and reaps it in the background.
func (c *ProcessConversation) abort(cause error) {
	c.logger.Warn("unreadable engine output, killing", "conversation_id", c.id, "error", cause.Error())
	c.closeStdin()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	go func() { _ = c.wait() }()
}

func (c *ProcessConversation) wait() error {
	c.waitOnce.Do(func() {
		err := c.cmd.Wait()
		if err != nil {
			tail := strings.TrimSpace(c.stderr.String())
			if tail != "" {
				err = fmt.Errorf("engine exited: %w: %s", err, tail)
			} else {
				err = fmt.Errorf("engine exited: %w", err)
			}
		}
		c.waitErr = err
		close(c.exited)
	})
	return c.waitErr
}

func (c *ProcessConversation) exitErr() error {
	select {
	case <-c.exited:
		return c.waitErr
	default:
		return nil
	}
}

// NextEvent returns the next event from the engine's stdout. It returns
// protocol.ErrStreamClosed once the process has exited cleanly.
func (c *ProcessConversation) NextEvent(ctx context.Context) (protocol.Event, error) {
	select {
	case r, ok := <-c.events:
		if !ok {
			return protocol.Event{}, protocol.ErrStreamClosed
		}
		return r.event, r.err
	case <-ctx.Done():
		return protocol.Event{}, ctx.Err()
	}
}

// Submit writes sub to the engine's stdin.
func (c *ProcessConversation) Submit(_ context.Context, sub protocol.Submission) error {
	c.stdinMu.Lock()
	closed := c.stdinOff
	c.stdinMu.Unlock()
	if closed {
		return errors.NewSessionError("engine input is closed", nil).WithConversationID(c.id)
	}
	if err := c.writer.WriteSubmission(sub); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}
	return nil
}

func (c *ProcessConversation) closeStdin() {
	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()
	if !c.stdinOff {
		c.stdinOff = true
		_ = c.stdin.Close()
	}
}

// shutdown sends a shutdown op, closes stdin, and waits for exit.
func (c *ProcessConversation) shutdown(ctx context.Context, grace time.Duration) error {
	if err := c.Submit(ctx, protocol.NewShutdown()); err != nil {
		c.logger.Debug("shutdown request not delivered", "conversation_id", c.id, "error", err.Error())
	}
	c.closeStdin()

	// Drain so readLoop can reach EOF and reap the process.
	go func() {
		for range c.events {
		}
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-c.exited:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	c.logger.Warn("engine did not exit, killing", "conversation_id", c.id)
	c.kill()
	return nil
}

func (c *ProcessConversation) kill() {
	c.closeStdin()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	go func() {
		for range c.events {
		}
	}()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
