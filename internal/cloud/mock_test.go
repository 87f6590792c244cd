package cloud

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/gitops"
	"github.com/Iron-Ham/taskbridge/internal/testutil"
)

func TestMockClient_ListTasks(t *testing.T) {
	m := NewMockClient(nil)
	ctx := context.Background()

	all, err := m.ListTasks(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range all {
		ids = append(ids, s.ID)
	}
	if !slices.Equal(ids, []string{"T-1000", "T-1001", "T-1002"}) {
		t.Errorf("ids = %v", ids)
	}

	env1, _ := m.ListTasks(ctx, "env-mock-1")
	if len(env1) != 2 {
		t.Errorf("env-mock-1 has %d tasks, want 2", len(env1))
	}
}

func TestMockClient_CreateTask(t *testing.T) {
	m := NewMockClient(nil)
	ctx := context.Background()

	id, err := m.CreateTask(ctx, CreateTaskOptions{
		EnvironmentID: "env-x",
		Prompt:        "Write docs\nwith details",
		GitRef:        "main",
		BestOfN:       2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "task_local_") {
		t.Errorf("id = %q", id)
	}

	tasks, _ := m.ListTasks(ctx, "env-x")
	if len(tasks) != 1 || tasks[0].Title != "Write docs" || tasks[0].Status != TaskStatusPending {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].AttemptTotal == nil || *tasks[0].AttemptTotal != 2 {
		t.Errorf("AttemptTotal = %v", tasks[0].AttemptTotal)
	}

	text, err := m.GetTaskText(ctx, id)
	if err != nil || text.Prompt != "Write docs\nwith details" {
		t.Errorf("GetTaskText() = %+v, %v", text, err)
	}

	if _, err := m.CreateTask(ctx, CreateTaskOptions{EnvironmentID: "e", GitRef: "main"}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("empty prompt error = %v", err)
	}
}

func TestMockClient_TaskDetails(t *testing.T) {
	m := NewMockClient(nil)
	ctx := context.Background()

	diff, err := m.GetTaskDiff(ctx, "T-1000")
	if err != nil || !strings.Contains(diff, "README.md") {
		t.Errorf("GetTaskDiff() = %q, %v", diff, err)
	}

	text, err := m.GetTaskText(ctx, "T-1000")
	if err != nil {
		t.Fatal(err)
	}
	if text.AttemptStatus != AttemptStatusCompleted || !slices.Equal(text.SiblingTurnIDs, []string{"turn-1000-b"}) {
		t.Errorf("text = %+v", text)
	}
	if text.AttemptPlacement == nil || *text.AttemptPlacement != 1 {
		t.Errorf("AttemptPlacement = %v", text.AttemptPlacement)
	}

	attempts, err := m.ListSiblingAttempts(ctx, "T-1000", "turn-1000")
	if err != nil || len(attempts) != 2 || attempts[1].Status != AttemptStatusFailed {
		t.Errorf("attempts = %+v, %v", attempts, err)
	}

	if _, err := m.GetTaskMessages(ctx, "nope"); !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("unknown task error = %v", err)
	}
}

func TestMockClient_Environments(t *testing.T) {
	m := NewMockClient(nil)
	ctx := context.Background()

	byRepo, _ := m.EnvironmentsByRepo(ctx, "openai", "codex")
	if len(byRepo) != 1 || *byRepo[0].Label != "openai/codex" {
		t.Errorf("byRepo = %+v", byRepo)
	}
	all, _ := m.Environments(ctx)
	if len(all) != 2 || all[0].IsPinned == nil || !*all[0].IsPinned {
		t.Errorf("all = %+v", all)
	}
}

func TestMockClient_ApplyTask(t *testing.T) {
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepo(t)
	m := NewMockClient(gitops.New(dir))
	ctx := context.Background()

	pre, err := m.ApplyTask(ctx, "T-1000", "", true)
	if err != nil {
		t.Fatalf("preflight error = %v", err)
	}
	if pre.Applied || pre.Status != ApplyStatusSuccess {
		t.Errorf("preflight = %+v", pre)
	}
	if testutil.HasUncommittedChanges(t, dir) {
		t.Fatal("preflight changed the working tree")
	}

	out, err := m.ApplyTask(ctx, "T-1000", "", false)
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	if !out.Applied || out.Status != ApplyStatusSuccess {
		t.Errorf("apply = %+v", out)
	}
	if got := testutil.ReadFile(t, dir, "README.md"); !strings.Contains(got, "Edited by a mock task.") {
		t.Errorf("README.md = %q", got)
	}

	again, err := m.ApplyTask(ctx, "T-1000", "", false)
	if err != nil {
		t.Fatalf("second apply error = %v", err)
	}
	if again.Applied || again.Status != ApplyStatusError {
		t.Errorf("second apply = %+v", again)
	}
}

func TestMockClient_ApplyTaskNoDiff(t *testing.T) {
	m := NewMockClient(nil)
	if _, err := m.ApplyTask(context.Background(), "T-1001", "", true); !errors.Is(err, errors.ErrNoDiff) {
		t.Errorf("error = %v, want ErrNoDiff", err)
	}
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		name        string
		result      gitops.ApplyResult
		wantApplied bool
		wantStatus  ApplyStatus
	}{
		{"clean apply", gitops.ApplyResult{Clean: true, AppliedPaths: []string{"a"}}, true, ApplyStatusSuccess},
		{"clean preflight", gitops.ApplyResult{Clean: true, Checked: true}, false, ApplyStatusSuccess},
		{"partial apply", gitops.ApplyResult{AppliedPaths: []string{"a"}, ConflictPaths: []string{"b"}}, true, ApplyStatusPartial},
		{"partial preflight", gitops.ApplyResult{Checked: true, AppliedPaths: []string{"a"}, SkippedPaths: []string{"b"}}, false, ApplyStatusPartial},
		{"failed", gitops.ApplyResult{SkippedPaths: []string{"b"}}, false, ApplyStatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := outcomeFor("T", &tt.result)
			if out.Applied != tt.wantApplied || out.Status != tt.wantStatus {
				t.Errorf("outcome = %+v", out)
			}
			if out.SkippedPaths == nil || out.ConflictPaths == nil {
				t.Error("path lists should never be nil")
			}
			if out.Message == "" {
				t.Error("message should not be empty")
			}
		})
	}
}
