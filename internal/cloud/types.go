package cloud

import (
	"context"
	"time"
)

// TaskStatus is the coarse state of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusReady   TaskStatus = "ready"
	TaskStatusApplied TaskStatus = "applied"
	TaskStatusError   TaskStatus = "error"
)

// AttemptStatus is the state of a single assistant turn.
type AttemptStatus string

const (
	AttemptStatusPending    AttemptStatus = "pending"
	AttemptStatusInProgress AttemptStatus = "in-progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
	AttemptStatusFailed     AttemptStatus = "failed"
	AttemptStatusCancelled  AttemptStatus = "cancelled"
	AttemptStatusUnknown    AttemptStatus = "unknown"
)

// ApplyStatus summarizes a local apply.
type ApplyStatus string

const (
	ApplyStatusSuccess ApplyStatus = "success"
	ApplyStatusPartial ApplyStatus = "partial"
	ApplyStatusError   ApplyStatus = "error"
)

// DiffSummary counts the changes in a task's latest diff.
type DiffSummary struct {
	FilesChanged int `json:"files_changed"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// TaskSummary is one row of a task listing.
type TaskSummary struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Status           TaskStatus  `json:"status"`
	UpdatedAt        time.Time   `json:"updated_at"`
	EnvironmentID    string      `json:"environment_id,omitempty"`
	EnvironmentLabel string      `json:"environment_label,omitempty"`
	Summary          DiffSummary `json:"summary"`
	IsReview         bool        `json:"is_review"`
	// AttemptTotal is the number of parallel attempts, when known.
	AttemptTotal *int `json:"attempt_total,omitempty"`
}

// CreateTaskOptions describes a new task.
type CreateTaskOptions struct {
	EnvironmentID string
	Prompt        string
	GitRef        string
	QAMode        bool
	// BestOfN requests parallel attempts. Values below 1 mean 1.
	BestOfN int
}

// TaskText is the prompt and assistant output of a task's current turn.
type TaskText struct {
	Prompt           string        `json:"prompt,omitempty"`
	Messages         []string      `json:"messages"`
	TurnID           string        `json:"turn_id,omitempty"`
	SiblingTurnIDs   []string      `json:"sibling_turn_ids"`
	AttemptPlacement *int          `json:"attempt_placement,omitempty"`
	AttemptStatus    AttemptStatus `json:"attempt_status"`
}

// TurnAttempt is one of several parallel attempts at the same turn.
type TurnAttempt struct {
	TurnID           string        `json:"turn_id"`
	AttemptPlacement *int          `json:"attempt_placement,omitempty"`
	CreatedAt        *time.Time    `json:"created_at,omitempty"`
	Status           AttemptStatus `json:"status"`
	Diff             string        `json:"diff,omitempty"`
	Messages         []string      `json:"messages"`
}

// ApplyOutcome reports what happened when a task's diff was applied locally.
type ApplyOutcome struct {
	Applied       bool        `json:"applied"`
	Status        ApplyStatus `json:"status"`
	Message       string      `json:"message"`
	SkippedPaths  []string    `json:"skipped_paths"`
	ConflictPaths []string    `json:"conflict_paths"`
}

// Environment is a backend execution environment as returned by the
// environment listing endpoints.
type Environment struct {
	ID       string  `json:"id"`
	Label    *string `json:"label,omitempty"`
	IsPinned *bool   `json:"is_pinned,omitempty"`
}

// Backend is the set of task operations the CLI needs.
type Backend interface {
	ListTasks(ctx context.Context, environmentID string) ([]TaskSummary, error)
	CreateTask(ctx context.Context, opts CreateTaskOptions) (string, error)
	// GetTaskDiff returns "" when the task has produced no diff.
	GetTaskDiff(ctx context.Context, taskID string) (string, error)
	GetTaskMessages(ctx context.Context, taskID string) ([]string, error)
	GetTaskText(ctx context.Context, taskID string) (*TaskText, error)
	ListSiblingAttempts(ctx context.Context, taskID, turnID string) ([]TurnAttempt, error)
	// ApplyTask applies diffOverride, or the task's own diff when it is empty.
	// With preflight set the working tree is left untouched.
	ApplyTask(ctx context.Context, taskID, diffOverride string, preflight bool) (*ApplyOutcome, error)

	EnvironmentsByRepo(ctx context.Context, owner, repo string) ([]Environment, error)
	Environments(ctx context.Context) ([]Environment, error)
}
