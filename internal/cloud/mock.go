package cloud

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/gitops"
	"github.com/Iron-Ham/taskbridge/internal/util"
)

// MockClient is an in-memory Backend with a fixed set of tasks. Created tasks
// are kept for the life of the client.
type MockClient struct {
	git *gitops.Git

	mu      sync.Mutex
	tasks   []mockTask
	nextID  int
	created time.Time
}

type mockTask struct {
	summary  TaskSummary
	prompt   string
	diff     string
	messages []string
	turnID   string
	attempts []TurnAttempt
}

const mockReadmeDiff = `diff --git a/README.md b/README.md
index 0000000..1111111 100644
--- a/README.md
+++ b/README.md
@@ -1 +1,3 @@
 # Test Repository
+
+Edited by a mock task.
`

const mockConfigDiff = `diff --git a/internal/config/load.go b/internal/config/load.go
new file mode 100644
index 0000000..2222222
--- /dev/null
+++ b/internal/config/load.go
@@ -0,0 +1,3 @@
+package config
+
+func load() {}
`

// mockEpoch anchors mock timestamps so output is stable.
var mockEpoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// NewMockClient creates a MockClient that applies diffs to g. A nil g means
// the current directory.
func NewMockClient(g *gitops.Git) *MockClient {
	if g == nil {
		g = gitops.New("")
	}
	one, two := 1, 2
	total := 2
	return &MockClient{
		git:     g,
		created: mockEpoch,
		nextID:  1,
		tasks: []mockTask{
			{
				summary: TaskSummary{
					ID:               "T-1000",
					Title:            "Update README formatting",
					Status:           TaskStatusReady,
					UpdatedAt:        mockEpoch,
					EnvironmentID:    "env-mock-1",
					EnvironmentLabel: "mock-web",
					Summary:          DiffSummary{FilesChanged: 1, LinesAdded: 2},
				},
				prompt:   "Tidy up the README.",
				diff:     mockReadmeDiff,
				messages: []string{"Added a short note to the README."},
				turnID:   "turn-1000",
				attempts: []TurnAttempt{
					{TurnID: "turn-1000", AttemptPlacement: &one, Status: AttemptStatusCompleted, Diff: mockReadmeDiff, Messages: []string{"Added a short note to the README."}},
					{TurnID: "turn-1000-b", AttemptPlacement: &two, Status: AttemptStatusFailed, Messages: []string{"Could not find README."}},
				},
			},
			{
				summary: TaskSummary{
					ID:               "T-1001",
					Title:            "Fix panic in config loader",
					Status:           TaskStatusPending,
					UpdatedAt:        mockEpoch.Add(-time.Hour),
					EnvironmentID:    "env-mock-2",
					EnvironmentLabel: "mock-api",
				},
				prompt: "The config loader panics on an empty file.",
				turnID: "turn-1001",
			},
			{
				summary: TaskSummary{
					ID:               "T-1002",
					Title:            "Review config package",
					Status:           TaskStatusReady,
					UpdatedAt:        mockEpoch.Add(-2 * time.Hour),
					EnvironmentID:    "env-mock-1",
					EnvironmentLabel: "mock-web",
					Summary:          DiffSummary{FilesChanged: 1, LinesAdded: 3},
					IsReview:         true,
					AttemptTotal:     &total,
				},
				prompt:   "Review the config package.",
				diff:     mockConfigDiff,
				messages: []string{"Added a load helper."},
				turnID:   "turn-1002",
			},
		},
	}
}

func (m *MockClient) find(taskID string) (mockTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.summary.ID == taskID {
			return t, nil
		}
	}
	return mockTask{}, fmt.Errorf("task %s: %w", taskID, errors.ErrTaskNotFound)
}

// ListTasks returns the mock tasks, newest first.
func (m *MockClient) ListTasks(_ context.Context, environmentID string) ([]TaskSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []TaskSummary
	for _, t := range m.tasks {
		if environmentID == "" || t.summary.EnvironmentID == environmentID {
			out = append(out, t.summary)
		}
	}
	slices.SortStableFunc(out, func(a, b TaskSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

// CreateTask records a pending task and returns its id.
func (m *MockClient) CreateTask(_ context.Context, opts CreateTaskOptions) (string, error) {
	if err := validateCreate(opts); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("task_local_%d", m.nextID)
	m.nextID++
	s := TaskSummary{
		ID:            id,
		Title:         util.FirstLine(opts.Prompt),
		Status:        TaskStatusPending,
		UpdatedAt:     m.created.Add(time.Duration(m.nextID) * time.Minute),
		EnvironmentID: opts.EnvironmentID,
	}
	if opts.BestOfN > 1 {
		n := opts.BestOfN
		s.AttemptTotal = &n
	}
	m.tasks = append(m.tasks, mockTask{summary: s, prompt: opts.Prompt, turnID: "turn-" + id})
	return id, nil
}

// GetTaskDiff returns the canned diff for taskID.
func (m *MockClient) GetTaskDiff(_ context.Context, taskID string) (string, error) {
	t, err := m.find(taskID)
	if err != nil {
		return "", err
	}
	return t.diff, nil
}

// GetTaskMessages returns the canned assistant messages for taskID.
func (m *MockClient) GetTaskMessages(_ context.Context, taskID string) ([]string, error) {
	t, err := m.find(taskID)
	if err != nil {
		return nil, err
	}
	return nonNil(slices.Clone(t.messages)), nil
}

// GetTaskText returns the canned prompt and messages for taskID.
func (m *MockClient) GetTaskText(_ context.Context, taskID string) (*TaskText, error) {
	t, err := m.find(taskID)
	if err != nil {
		return nil, err
	}

	text := &TaskText{
		Prompt:         t.prompt,
		Messages:       nonNil(slices.Clone(t.messages)),
		TurnID:         t.turnID,
		SiblingTurnIDs: []string{},
		AttemptStatus:  AttemptStatusPending,
	}
	if t.summary.Status != TaskStatusPending {
		text.AttemptStatus = AttemptStatusCompleted
	}
	for _, a := range t.attempts {
		if a.TurnID == t.turnID {
			text.AttemptPlacement = a.AttemptPlacement
			continue
		}
		text.SiblingTurnIDs = append(text.SiblingTurnIDs, a.TurnID)
	}
	return text, nil
}

// ListSiblingAttempts returns the canned attempts for taskID.
func (m *MockClient) ListSiblingAttempts(_ context.Context, taskID, _ string) ([]TurnAttempt, error) {
	t, err := m.find(taskID)
	if err != nil {
		return nil, err
	}
	attempts := slices.Clone(t.attempts)
	sortAttempts(attempts)
	return nonNilAttempts(attempts), nil
}

// ApplyTask applies the canned diff (or diffOverride) to the local checkout.
func (m *MockClient) ApplyTask(ctx context.Context, taskID, diffOverride string, preflight bool) (*ApplyOutcome, error) {
	diff := diffOverride
	if diff == "" {
		var err error
		if diff, err = m.GetTaskDiff(ctx, taskID); err != nil {
			return nil, err
		}
	}
	return applyDiff(ctx, m.git, taskID, diff, preflight)
}

// EnvironmentsByRepo reports one environment per repository.
func (m *MockClient) EnvironmentsByRepo(_ context.Context, owner, repo string) ([]Environment, error) {
	label := owner + "/" + repo
	return []Environment{{ID: "env-" + owner + "-" + repo, Label: &label}}, nil
}

// Environments reports the environments the mock tasks run in.
func (m *MockClient) Environments(_ context.Context) ([]Environment, error) {
	web, api := "mock-web", "mock-api"
	pinned := true
	return []Environment{
		{ID: "env-mock-1", Label: &web, IsPinned: &pinned},
		{ID: "env-mock-2", Label: &api},
	}, nil
}

func nonNilAttempts(a []TurnAttempt) []TurnAttempt {
	if a == nil {
		return []TurnAttempt{}
	}
	return a
}
