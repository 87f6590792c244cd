package cloud

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"
)

// Wire shapes of the task endpoints. Only the fields taskbridge reads are
// declared; everything else in the payloads is ignored.

type taskListResponse struct {
	Items []taskListItem `json:"items"`
}

type taskListItem struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	UpdatedAt         *float64           `json:"updated_at"`
	EnvironmentID     string             `json:"environment_id"`
	Intent            string             `json:"intent"`
	TaskStatusDisplay *taskStatusDisplay `json:"task_status_display"`
	PullRequests      []pullRequest      `json:"pull_requests"`
}

type taskStatusDisplay struct {
	EnvironmentLabel string             `json:"environment_label"`
	LatestTurn       *turnStatusDisplay `json:"latest_turn_status_display"`
}

type turnStatusDisplay struct {
	TurnStatus     string     `json:"turn_status"`
	SiblingTurnIDs []string   `json:"sibling_turn_ids"`
	DiffStats      *diffStats `json:"diff_stats"`
}

type diffStats struct {
	FilesModified int `json:"files_modified"`
	LinesAdded    int `json:"lines_added"`
	LinesRemoved  int `json:"lines_removed"`
}

type pullRequest struct {
	Merged *bool `json:"merged"`
}

type taskDetails struct {
	CurrentUserTurn      *turn `json:"current_user_turn"`
	CurrentAssistantTurn *turn `json:"current_assistant_turn"`
	CurrentDiffTaskTurn  *turn `json:"current_diff_task_turn"`
}

type siblingTurnsResponse struct {
	SiblingTurns []turn `json:"sibling_turns"`
}

type turn struct {
	ID               string       `json:"id"`
	AttemptPlacement *int         `json:"attempt_placement"`
	TurnStatus       string       `json:"turn_status"`
	SiblingTurnIDs   []string     `json:"sibling_turn_ids"`
	CreatedAt        *float64     `json:"created_at"`
	InputItems       []turnItem   `json:"input_items"`
	OutputItems      []turnItem   `json:"output_items"`
	Error            *turnFailure `json:"error"`
}

type turnItem struct {
	Type       string        `json:"type"`
	Role       string        `json:"role,omitempty"`
	Content    []contentPart `json:"content,omitempty"`
	Diff       string        `json:"diff,omitempty"`
	OutputDiff *outputDiff   `json:"output_diff,omitempty"`
}

type contentPart struct {
	ContentType string `json:"content_type"`
	Text        string `json:"text"`
}

type outputDiff struct {
	Diff string `json:"diff"`
}

type turnFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createTaskRequest struct {
	NewTask    newTask           `json:"new_task"`
	InputItems []turnItem        `json:"input_items"`
	Metadata   *createTaskExtras `json:"metadata,omitempty"`
}

type newTask struct {
	EnvironmentID string `json:"environment_id"`
	Branch        string `json:"branch"`
	QAMode        bool   `json:"run_environment_in_qa_mode"`
}

type createTaskExtras struct {
	BestOfN int `json:"best_of_n"`
}

type createTaskResponse struct {
	Task *struct {
		ID string `json:"id"`
	} `json:"task"`
	ID string `json:"id"`
}

func (r createTaskResponse) taskID() string {
	if r.Task != nil && r.Task.ID != "" {
		return r.Task.ID
	}
	return r.ID
}

// parseTaskStatus maps a backend turn status onto the coarse task status.
// A completed task with a merged pull request counts as applied.
func parseTaskStatus(turnStatus string, prs []pullRequest) TaskStatus {
	switch strings.ToLower(turnStatus) {
	case "completed":
		for _, pr := range prs {
			if pr.Merged != nil && *pr.Merged {
				return TaskStatusApplied
			}
		}
		return TaskStatusReady
	case "failed", "error", "cancelled":
		return TaskStatusError
	default:
		return TaskStatusPending
	}
}

// ParseAttemptStatus maps a backend turn status onto an AttemptStatus.
func ParseAttemptStatus(s string) AttemptStatus {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "-")) {
	case "pending", "queued":
		return AttemptStatusPending
	case "in-progress", "running":
		return AttemptStatusInProgress
	case "completed":
		return AttemptStatusCompleted
	case "failed", "error":
		return AttemptStatusFailed
	case "cancelled", "canceled":
		return AttemptStatusCancelled
	default:
		return AttemptStatusUnknown
	}
}

func epochToTime(secs *float64) *time.Time {
	if secs == nil {
		return nil
	}
	whole, frac := math.Modf(*secs)
	t := time.Unix(int64(whole), int64(frac*1e9)).UTC()
	return &t
}

func (it taskListItem) summary() TaskSummary {
	s := TaskSummary{
		ID:            it.ID,
		Title:         it.Title,
		Status:        TaskStatusPending,
		EnvironmentID: it.EnvironmentID,
		IsReview:      strings.EqualFold(it.Intent, "review"),
	}
	if t := epochToTime(it.UpdatedAt); t != nil {
		s.UpdatedAt = *t
	}
	if d := it.TaskStatusDisplay; d != nil {
		s.EnvironmentLabel = d.EnvironmentLabel
		if lt := d.LatestTurn; lt != nil {
			s.Status = parseTaskStatus(lt.TurnStatus, it.PullRequests)
			if lt.DiffStats != nil {
				s.Summary = DiffSummary{
					FilesChanged: lt.DiffStats.FilesModified,
					LinesAdded:   lt.DiffStats.LinesAdded,
					LinesRemoved: lt.DiffStats.LinesRemoved,
				}
			}
			if len(lt.SiblingTurnIDs) > 0 {
				total := len(lt.SiblingTurnIDs) + 1
				s.AttemptTotal = &total
			}
		}
	}
	return s
}

// diff returns the unified diff carried by the turn's output, or "".
func (t *turn) diff() string {
	if t == nil {
		return ""
	}
	for _, item := range t.OutputItems {
		switch {
		case item.OutputDiff != nil && item.OutputDiff.Diff != "":
			return item.OutputDiff.Diff
		case item.Type == "output_diff" && item.Diff != "":
			return item.Diff
		}
	}
	return ""
}

// messages returns the text of the turn's output messages. A failed turn with
// no messages yields its error message instead.
func (t *turn) messages() []string {
	if t == nil {
		return nil
	}
	msgs := textOf(t.OutputItems)
	if len(msgs) == 0 && t.Error != nil && t.Error.Message != "" {
		msgs = append(msgs, t.Error.Message)
	}
	return msgs
}

func (t *turn) prompt() string {
	if t == nil {
		return ""
	}
	return strings.Join(textOf(t.InputItems), "\n")
}

func (t *turn) attempt() TurnAttempt {
	return TurnAttempt{
		TurnID:           t.ID,
		AttemptPlacement: t.AttemptPlacement,
		CreatedAt:        epochToTime(t.CreatedAt),
		Status:           ParseAttemptStatus(t.TurnStatus),
		Diff:             t.diff(),
		Messages:         nonNil(t.messages()),
	}
}

func textOf(items []turnItem) []string {
	var out []string
	for _, item := range items {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.ContentType == "text" && strings.TrimSpace(part.Text) != "" {
				out = append(out, part.Text)
			}
		}
	}
	return out
}

// sortAttempts orders attempts by placement, then creation time, then id.
// Attempts without a placement sort last.
func sortAttempts(attempts []TurnAttempt) {
	slices.SortStableFunc(attempts, func(a, b TurnAttempt) int {
		if c := cmpOptional(a.AttemptPlacement, b.AttemptPlacement); c != 0 {
			return c
		}
		var at, bt int64 = math.MaxInt64, math.MaxInt64
		if a.CreatedAt != nil {
			at = a.CreatedAt.UnixNano()
		}
		if b.CreatedAt != nil {
			bt = b.CreatedAt.UnixNano()
		}
		if c := cmp.Compare(at, bt); c != 0 {
			return c
		}
		return cmp.Compare(a.TurnID, b.TurnID)
	})
}

func cmpOptional(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*a, *b)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func userMessage(text string) turnItem {
	return turnItem{
		Type:    "message",
		Role:    "user",
		Content: []contentPart{{ContentType: "text", Text: text}},
	}
}

// decodeEnvironments accepts a bare array or an {"environments": [...]} wrapper.
func decodeEnvironments(body []byte) ([]Environment, error) {
	var envs []Environment
	if err := json.Unmarshal(body, &envs); err == nil {
		return envs, nil
	}
	var wrapped struct {
		Environments []Environment `json:"environments"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Environments, nil
}
