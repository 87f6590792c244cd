package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/taskbridge/internal/bridge"
	"github.com/Iron-Ham/taskbridge/internal/engine"
	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/overrides"
	"github.com/Iron-Ham/taskbridge/internal/protocol"
	"github.com/Iron-Ham/taskbridge/internal/tui/styles"
)

// shutdownWait bounds how long a session waits for the engine to finish
// after stdin closes.
const shutdownWait = 5 * time.Second

func newSessionCmd() *cobra.Command {
	var rawOverrides []string
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Run a conversation with the local engine",
		Long: `Start a conversation with the local engine and bridge it to this terminal.

Events are written to stdout as JSON lines, or pretty-printed when stdout is a
terminal. Each stdin line is a submission: a JSON object is forwarded as is,
any other text is sent as user input. Ctrl-D ends the session.

Overrides use TOML literal syntax for values:
  taskbridge session -c model=o3 -c 'sandbox_permissions=["disk-full-read-access"]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, rawOverrides)
		},
	}
	sessionCmd.Flags().StringArrayVarP(&rawOverrides, "config-override", "c", nil, "key=value override (repeatable)")
	return sessionCmd
}

func runSession(cmd *cobra.Command, rawOverrides []string) error {
	pairs := make([]overrides.Pair, 0, len(rawOverrides))
	for _, raw := range rawOverrides {
		p, err := overrides.SplitPair(raw)
		if err != nil {
			return err
		}
		pairs = append(pairs, p)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	manager := engine.NewProcessManager(a.cfg.Engine.Command, a.cfg.Engine.Args, engine.WithLogger(a.logger))
	br := bridge.New(manager,
		bridge.WithOriginator(a.cfg.Engine.Originator),
		bridge.WithDefaults(bridge.ConversationConfig{Cwd: cwd}),
		bridge.WithLogger(a.logger),
	)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	sess, err := br.CreateSession(ctx, pairs)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(context.Background()) }()

	out := cmd.OutOrStdout()
	return pumpSession(ctx, sess, cmd.InOrStdin(), out, isTerminal(out))
}

// eventSource is the part of a Session that pumpSession drives.
type eventSource interface {
	NextEvent(ctx context.Context) (protocol.Event, bool, error)
	Submit(ctx context.Context, sub protocol.Submission) error
	SubmitJSON(ctx context.Context, text string) error
}

// pumpSession copies events to out and stdin lines to the session until the
// event stream ends. When in reaches EOF a shutdown is submitted and the
// remaining events are drained for up to shutdownWait.
func pumpSession(ctx context.Context, sess eventSource, in io.Reader, out io.Writer, pretty bool) error {
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- copyEvents(ctx, sess, out, pretty)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case err := <-streamErr:
			return err
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return finishSession(ctx, sess, streamErr)
			}
			if err := submitLine(ctx, sess, line); err != nil {
				if errors.Is(err, errors.ErrSessionClosed) {
					return nil
				}
				fmt.Fprintln(os.Stderr, styles.ErrorMsg.Render("submit: "+err.Error()))
			}
		}
	}
}

func finishSession(ctx context.Context, sess eventSource, streamErr <-chan error) error {
	if err := sess.Submit(ctx, protocol.NewShutdown()); err != nil {
		return nil
	}
	select {
	case err := <-streamErr:
		return err
	case <-time.After(shutdownWait):
		return nil
	case <-ctx.Done():
		return nil
	}
}

// submitLine sends one stdin line. JSON objects are submissions; anything
// else is user input. Blank lines are ignored.
func submitLine(ctx context.Context, sess eventSource, line string) error {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "{") {
		return sess.SubmitJSON(ctx, text)
	}
	return sess.Submit(ctx, protocol.NewUserInput(text))
}

func copyEvents(ctx context.Context, sess eventSource, out io.Writer, pretty bool) error {
	for {
		ev, ok, err := sess.NextEvent(ctx)
		if err != nil {
			if errors.Is(err, errors.ErrSessionClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}

		if pretty {
			fmt.Fprintln(out, prettyEvent(ev))
			continue
		}
		line, err := protocol.EncodeEvent(ev)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, line)
	}
}

// prettyEvent renders an event for a human: its type, then the message text
// when there is one, otherwise the compact payload.
func prettyEvent(ev protocol.Event) string {
	kind := ev.Type()
	label := styles.Primary.Bold(true).Render(kind)
	switch kind {
	case protocol.EventError:
		label = styles.ErrorMsg.Render(kind)
	case protocol.EventTaskComplete, protocol.EventSessionConfigured:
		label = styles.SuccessMsg.Render(kind)
	}

	var payload struct {
		Message string `json:"message"`
		Delta   string `json:"delta"`
	}
	if err := json.Unmarshal(ev.Msg, &payload); err == nil {
		switch {
		case payload.Message != "":
			return label + " " + payload.Message
		case payload.Delta != "":
			return label + " " + payload.Delta
		}
	}
	return label + " " + styles.Muted.Render(string(ev.Msg))
}
