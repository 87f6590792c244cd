package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/taskbridge/internal/cloud"
	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/tui/envpicker"
	"github.com/Iron-Ham/taskbridge/internal/tui/styles"
	"github.com/Iron-Ham/taskbridge/internal/util"
)

func newTasksCmd() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with cloud tasks",
	}
	tasksCmd.AddCommand(
		newTasksListCmd(),
		newTasksCreateCmd(),
		newTasksDiffCmd(),
		newTasksMessagesCmd(),
		newTasksTextCmd(),
		newTasksAttemptsCmd(),
		newTasksApplyCmd(),
	)
	return tasksCmd
}

// withBackend loads configuration, builds the task backend and runs fn.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, a *app, backend cloud.Backend) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	backend, err := a.backend(ctx, false)
	if err != nil {
		return err
	}
	return fn(ctx, a, backend)
}

func newTasksListCmd() *cobra.Command {
	var (
		envID  string
		asJSON bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List current tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, _ *app, backend cloud.Backend) error {
				tasks, err := backend.ListTasks(ctx, envID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), tasks)
				}
				renderTasks(cmd.OutOrStdout(), tasks, time.Now())
				return nil
			})
		},
	}
	listCmd.Flags().StringVarP(&envID, "env", "e", "", "only list tasks in this environment")
	addJSONFlag(listCmd, &asJSON)
	return listCmd
}

// maxTitleWidth bounds the title column of the task table.
const maxTitleWidth = 60

func renderTasks(out io.Writer, tasks []cloud.TaskSummary, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No tasks"))
		return
	}

	idW, statusW := len("ID"), len("STATUS")
	for _, t := range tasks {
		idW = max(idW, len(t.ID))
		statusW = max(statusW, lipgloss.Width(styles.Status(string(t.Status))))
	}
	idCol := lipgloss.NewStyle().Width(idW + 2)
	statusCol := lipgloss.NewStyle().Width(statusW + 2)
	updatedCol := lipgloss.NewStyle().Width(10)

	fmt.Fprintln(out, styles.TableHeader.Render(idCol.Render("ID")+statusCol.Render("STATUS")+updatedCol.Render("UPDATED")+"TITLE"))
	for _, t := range tasks {
		title := util.Truncate(t.Title, maxTitleWidth)
		if t.IsReview {
			title = "[review] " + title
		}
		if t.AttemptTotal != nil && *t.AttemptTotal > 1 {
			title += styles.Muted.Render(fmt.Sprintf(" ×%d", *t.AttemptTotal))
		}
		if t.EnvironmentLabel != "" {
			title += styles.Muted.Render(" · " + t.EnvironmentLabel)
		}
		if s := t.Summary; s.FilesChanged > 0 {
			title += " " + styles.DiffAdd.Render(fmt.Sprintf("+%d", s.LinesAdded)) +
				styles.DiffRemove.Render(fmt.Sprintf(" -%d", s.LinesRemoved)) +
				styles.Muted.Render(fmt.Sprintf(" (%d files)", s.FilesChanged))
		}
		fmt.Fprintln(out, idCol.Render(t.ID)+
			statusCol.Render(styles.Status(string(t.Status)))+
			updatedCol.Render(relativeTime(now, t.UpdatedAt))+
			title)
	}
}

// relativeTime renders t as a short age such as "5m" or "3d".
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	default:
		return strconv.Itoa(int(d.Hours()/24)) + "d"
	}
}

func newTasksCreateCmd() *cobra.Command {
	var opts cloud.CreateTaskOptions
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long: `Create a task in an environment.

Without --env the environments for this checkout are offered in a picker when
stdin is a terminal. --prompt - reads the prompt from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Prompt == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read prompt: %w", err)
				}
				opts.Prompt = string(data)
			}
			return withBackend(cmd, func(ctx context.Context, a *app, backend cloud.Backend) error {
				if opts.EnvironmentID == "" {
					envID, err := pickEnvironment(ctx, a, cmd.InOrStdin())
					if err != nil {
						return err
					}
					opts.EnvironmentID = envID
				}
				id, err := backend.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	createCmd.Flags().StringVarP(&opts.Prompt, "prompt", "p", "", "task prompt, or - to read it from stdin")
	createCmd.Flags().StringVarP(&opts.EnvironmentID, "env", "e", "", "environment id")
	createCmd.Flags().StringVar(&opts.GitRef, "ref", "main", "git ref the task starts from")
	createCmd.Flags().BoolVar(&opts.QAMode, "qa", false, "ask a question instead of requesting code changes")
	createCmd.Flags().IntVar(&opts.BestOfN, "best-of", 1, "number of parallel attempts")
	_ = createCmd.MarkFlagRequired("prompt")
	return createCmd
}

func pickEnvironment(ctx context.Context, a *app, in io.Reader) (string, error) {
	if !isTerminal(in) {
		return "", errors.NewValidationError("--env is required when stdin is not a terminal").WithField("env")
	}
	rows, err := a.environments(ctx)
	if err != nil {
		return "", err
	}
	row, err := envpicker.Run(rows, in, os.Stderr)
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

func newTasksDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <task-id>",
		Short: "Print a task's latest diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, _ *app, backend cloud.Backend) error {
				diff, err := backend.GetTaskDiff(ctx, args[0])
				if err != nil {
					return err
				}
				if diff == "" {
					return fmt.Errorf("%s: %w", args[0], errors.ErrNoDiff)
				}
				out := cmd.OutOrStdout()
				if !isTerminal(out) {
					_, err := io.WriteString(out, diff)
					return err
				}
				for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
					fmt.Fprintln(out, styles.DiffLine(line))
				}
				return nil
			})
		},
	}
}

func newTasksMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <task-id>",
		Short: "Print the assistant messages of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, _ *app, backend cloud.Backend) error {
				messages, err := backend.GetTaskMessages(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(messages, "\n\n"))
				return nil
			})
		},
	}
}

func newTasksTextCmd() *cobra.Command {
	var asJSON bool
	textCmd := &cobra.Command{
		Use:   "text <task-id>",
		Short: "Print a task's prompt, messages and attempt state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, _ *app, backend cloud.Backend) error {
				text, err := backend.GetTaskText(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), text)
				}
				renderTaskText(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	addJSONFlag(textCmd, &asJSON)
	return textCmd
}

func renderTaskText(out io.Writer, text *cloud.TaskText) {
	fmt.Fprintln(out, styles.Title.Render("Prompt"))
	fmt.Fprintln(out, text.Prompt)
	fmt.Fprintln(out)

	fmt.Fprintln(out, styles.Title.Render("Messages"))
	if len(text.Messages) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("(none)"))
	}
	for _, m := range text.Messages {
		fmt.Fprintln(out, m)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Attempt: %s", styles.Status(string(text.AttemptStatus)))
	if text.AttemptPlacement != nil {
		fmt.Fprintf(out, " (placement %d)", *text.AttemptPlacement)
	}
	fmt.Fprintln(out)
	if text.TurnID != "" {
		fmt.Fprintf(out, "Turn:     %s\n", text.TurnID)
	}
	if len(text.SiblingTurnIDs) > 0 {
		fmt.Fprintf(out, "Siblings: %s\n", strings.Join(text.SiblingTurnIDs, ", "))
	}
}

func newTasksAttemptsCmd() *cobra.Command {
	var asJSON bool
	attemptsCmd := &cobra.Command{
		Use:   "attempts <task-id> <turn-id>",
		Short: "List the parallel attempts of a turn",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, _ *app, backend cloud.Backend) error {
				attempts, err := backend.ListSiblingAttempts(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), attempts)
				}
				renderAttempts(cmd.OutOrStdout(), attempts)
				return nil
			})
		},
	}
	addJSONFlag(attemptsCmd, &asJSON)
	return attemptsCmd
}

func renderAttempts(out io.Writer, attempts []cloud.TurnAttempt) {
	if len(attempts) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No attempts"))
		return
	}
	for _, at := range attempts {
		placement := "-"
		if at.AttemptPlacement != nil {
			placement = strconv.Itoa(*at.AttemptPlacement)
		}
		diff := styles.Muted.Render("no diff")
		if at.Diff != "" {
			diff = fmt.Sprintf("%d diff lines", strings.Count(at.Diff, "\n"))
		}
		fmt.Fprintf(out, "#%s  %s  %s  %s\n", placement, at.TurnID, styles.Status(string(at.Status)), diff)
	}
}

func newTasksApplyCmd() *cobra.Command {
	var (
		preflight bool
		diffFile  string
		asJSON    bool
	)
	applyCmd := &cobra.Command{
		Use:   "apply <task-id>",
		Short: "Apply a task's diff to this checkout",
		Long: `Apply a task's latest diff to the repository in the current directory
with a three-way merge. --preflight only checks whether the diff applies.
--diff applies the given file instead of the task's diff.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override string
			if diffFile != "" {
				data, err := os.ReadFile(diffFile)
				if err != nil {
					return fmt.Errorf("failed to read diff: %w", err)
				}
				override = string(data)
			}
			return withBackend(cmd, func(ctx context.Context, _ *app, backend cloud.Backend) error {
				outcome, err := backend.ApplyTask(ctx, args[0], override, preflight)
				if err != nil {
					return err
				}
				if asJSON {
					if err := writeJSON(cmd.OutOrStdout(), outcome); err != nil {
						return err
					}
				} else {
					renderOutcome(cmd.OutOrStdout(), outcome)
				}
				if outcome.Status == cloud.ApplyStatusError {
					return fmt.Errorf("apply of %s failed", args[0])
				}
				return nil
			})
		},
	}
	applyCmd.Flags().BoolVar(&preflight, "preflight", false, "check the diff without touching the working tree")
	applyCmd.Flags().StringVar(&diffFile, "diff", "", "apply this diff file instead of the task's diff")
	addJSONFlag(applyCmd, &asJSON)
	return applyCmd
}

func renderOutcome(out io.Writer, outcome *cloud.ApplyOutcome) {
	msg := outcome.Message
	switch outcome.Status {
	case cloud.ApplyStatusSuccess:
		fmt.Fprintln(out, styles.SuccessMsg.Render(msg))
	case cloud.ApplyStatusPartial:
		fmt.Fprintln(out, styles.WarningMsg.Render(msg))
	default:
		fmt.Fprintln(out, styles.ErrorMsg.Render(msg))
	}
	for _, p := range outcome.ConflictPaths {
		fmt.Fprintf(out, "  conflict: %s\n", p)
	}
	for _, p := range outcome.SkippedPaths {
		fmt.Fprintf(out, "  skipped:  %s\n", p)
	}
}
