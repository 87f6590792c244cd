package gitops

import (
	"context"
	stderrors "errors"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/testutil"
)

// -----------------------------------------------------------------------------
// Mock Command Executor for Unit Tests
// -----------------------------------------------------------------------------

// mockCall records a single command invocation
type mockCall struct {
	dir  string
	name string
	args []string
}

// mockExecutor is a test double for CommandExecutor
type mockExecutor struct {
	calls      []mockCall
	runOutputs [][]byte
	runErrors  []error
	callIndex  int
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{}
}

func (m *mockExecutor) addResponse(output string, err error) {
	m.runOutputs = append(m.runOutputs, []byte(output))
	m.runErrors = append(m.runErrors, err)
}

func (m *mockExecutor) Run(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, mockCall{dir: dir, name: name, args: args})
	idx := m.callIndex
	m.callIndex++
	if idx < len(m.runOutputs) {
		return m.runOutputs[idx], m.runErrors[idx]
	}
	return nil, nil
}

func (m *mockExecutor) lastCall() mockCall {
	if len(m.calls) == 0 {
		return mockCall{}
	}
	return m.calls[len(m.calls)-1]
}

var errExit = stderrors.New("exit status 1")

// -----------------------------------------------------------------------------
// RemoteURLs
// -----------------------------------------------------------------------------

func TestRemoteURLs_FromConfig(t *testing.T) {
	mock := newMockExecutor()
	mock.addResponse("remote.upstream.url https://github.com/b/r.git\n"+
		"remote.origin.url git@github.com:a/r.git\n"+
		"remote.mirror.url https://github.com/b/r.git\n", nil)

	urls, err := NewWithExecutor("/repo", mock).RemoteURLs(context.Background())
	if err != nil {
		t.Fatalf("RemoteURLs() error = %v", err)
	}

	want := []string{"git@github.com:a/r.git", "https://github.com/b/r.git"}
	if !slices.Equal(urls, want) {
		t.Errorf("RemoteURLs() = %v, want %v", urls, want)
	}
	if len(mock.calls) != 1 {
		t.Errorf("expected 1 git call, got %d", len(mock.calls))
	}
	if call := mock.calls[0]; call.dir != "/repo" || call.name != "git" || call.args[0] != "config" {
		t.Errorf("unexpected call %+v", call)
	}
}

func TestRemoteURLs_FallsBackToRemoteVerbose(t *testing.T) {
	tests := []struct {
		name      string
		configOut string
		configErr error
	}{
		{name: "config fails", configOut: "", configErr: errExit},
		{name: "config empty", configOut: "\n", configErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockExecutor()
			mock.addResponse(tt.configOut, tt.configErr)
			mock.addResponse("origin\tgit@github.com:a/r.git (fetch)\n"+
				"origin\tgit@github.com:a/r.git (push)\n", nil)

			urls, err := NewWithExecutor("/repo", mock).RemoteURLs(context.Background())
			if err != nil {
				t.Fatalf("RemoteURLs() error = %v", err)
			}
			if !slices.Equal(urls, []string{"git@github.com:a/r.git"}) {
				t.Errorf("RemoteURLs() = %v", urls)
			}
			if got := mock.lastCall().args; !slices.Equal(got, []string{"remote", "-v"}) {
				t.Errorf("fallback args = %v", got)
			}
		})
	}
}

func TestRemoteURLs_BothFail(t *testing.T) {
	mock := newMockExecutor()
	mock.addResponse("", errExit)
	mock.addResponse("fatal: not a git repository", errExit)

	_, err := NewWithExecutor("/tmp", mock).RemoteURLs(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var gitErr *errors.GitError
	if !errors.As(err, &gitErr) {
		t.Fatalf("expected GitError, got %T", err)
	}
	if gitErr.Repository != "/tmp" {
		t.Errorf("Repository = %q", gitErr.Repository)
	}
}

func TestRemoteURLs_RealRepo(t *testing.T) {
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepo(t)
	testutil.AddRemote(t, dir, "origin", "https://github.com/openai/codex.git")
	testutil.AddRemote(t, dir, "fork", "git@github.com:someone/codex.git")

	urls, err := New(dir).RemoteURLs(context.Background())
	if err != nil {
		t.Fatalf("RemoteURLs() error = %v", err)
	}
	want := []string{"git@github.com:someone/codex.git", "https://github.com/openai/codex.git"}
	if !slices.Equal(urls, want) {
		t.Errorf("RemoteURLs() = %v, want %v", urls, want)
	}
}

// -----------------------------------------------------------------------------
// Apply
// -----------------------------------------------------------------------------

func TestApply_EmptyDiff(t *testing.T) {
	mock := newMockExecutor()
	_, err := NewWithExecutor("/repo", mock).Apply(context.Background(), "  \n", false)
	if !errors.Is(err, errors.ErrNoDiff) {
		t.Errorf("Apply() error = %v, want ErrNoDiff", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("expected no git calls, got %d", len(mock.calls))
	}
}

func TestApply_NotARepository(t *testing.T) {
	mock := newMockExecutor()
	mock.addResponse("fatal: not a git repository (or any of the parent directories): .git\n", errExit)

	_, err := NewWithExecutor("/tmp", mock).Apply(context.Background(), "diff", false)
	if !errors.Is(err, errors.ErrNotGitRepository) {
		t.Errorf("Apply() error = %v, want ErrNotGitRepository", err)
	}
}

func TestApply_Args(t *testing.T) {
	tests := []struct {
		name  string
		check bool
		flag  string
	}{
		{name: "apply", check: false, flag: "--3way"},
		{name: "preflight", check: true, flag: "--check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockExecutor()
			mock.addResponse("/root/repo\n", nil)
			mock.addResponse("Applied patch a.txt cleanly.\n", nil)

			result, err := NewWithExecutor("/root/repo/sub", mock).Apply(context.Background(), "diff --git a/a.txt b/a.txt", tt.check)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}

			call := mock.lastCall()
			if call.dir != "/root/repo" {
				t.Errorf("apply ran in %q, want repo root", call.dir)
			}
			if !slices.Contains(call.args, tt.flag) {
				t.Errorf("args %v missing %s", call.args, tt.flag)
			}
			patch := call.args[len(call.args)-1]
			if _, err := os.Stat(patch); !os.IsNotExist(err) {
				t.Errorf("patch file %s was not removed", patch)
			}
			if !result.Clean || result.Checked != tt.check {
				t.Errorf("result = %+v", result)
			}
			if !slices.Equal(result.AppliedPaths, []string{"a.txt"}) {
				t.Errorf("AppliedPaths = %v", result.AppliedPaths)
			}
		})
	}
}

func TestParseApplyOutput(t *testing.T) {
	out := strings.Join([]string{
		"Checking patch a.txt...",
		"Checking patch b.txt...",
		"Checking patch c.txt...",
		"error: patch failed: b.txt:3",
		"Falling back to three-way merge...",
		"Applied patch to 'b.txt' with conflicts.",
		"error: c.txt: does not exist in index",
		"error: d.txt: already exists in working directory",
		"Applied patch a.txt cleanly.",
		"U b.txt",
		"Skipped patch e.txt.",
	}, "\n")

	r := parseApplyOutput(out)

	if !slices.Equal(r.AppliedPaths, []string{"a.txt"}) {
		t.Errorf("AppliedPaths = %v", r.AppliedPaths)
	}
	if !slices.Equal(r.ConflictPaths, []string{"b.txt"}) {
		t.Errorf("ConflictPaths = %v", r.ConflictPaths)
	}
	if !slices.Equal(r.SkippedPaths, []string{"c.txt", "d.txt", "e.txt"}) {
		t.Errorf("SkippedPaths = %v", r.SkippedPaths)
	}
}

func TestParseApplyOutput_ConflictOutranksApplied(t *testing.T) {
	r := parseApplyOutput("U x.go\nApplied patch x.go cleanly.\n")
	if len(r.AppliedPaths) != 0 || !slices.Equal(r.ConflictPaths, []string{"x.go"}) {
		t.Errorf("got applied=%v conflicts=%v", r.AppliedPaths, r.ConflictPaths)
	}
}

func TestApply_RealRepo(t *testing.T) {
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepoWithContent(t, map[string]string{
		"notes.txt": "one\ntwo\nthree\n",
	})
	testutil.WriteFile(t, dir, "notes.txt", "one\n2\nthree\n")
	diff := testutil.Diff(t, dir)

	g := New(dir)
	ctx := context.Background()

	t.Run("preflight leaves tree untouched", func(t *testing.T) {
		result, err := g.Apply(ctx, diff, true)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !result.Clean || !result.Checked {
			t.Errorf("result = %+v", result)
		}
		if testutil.HasUncommittedChanges(t, dir) {
			t.Error("preflight modified the working tree")
		}
	})

	t.Run("apply writes the change", func(t *testing.T) {
		result, err := g.Apply(ctx, diff, false)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !result.Clean {
			t.Fatalf("apply failed: %s", result.Output)
		}
		if got := testutil.ReadFile(t, dir, "notes.txt"); got != "one\n2\nthree\n" {
			t.Errorf("notes.txt = %q", got)
		}
	})

	t.Run("applying twice reports the path", func(t *testing.T) {
		result, err := g.Apply(ctx, diff, true)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if result.Clean {
			t.Fatal("expected second apply to fail")
		}
		if len(result.ConflictPaths)+len(result.SkippedPaths) == 0 {
			t.Errorf("no path reported in %q", result.Output)
		}
	})
}

func TestApply_ThreeWayConflict(t *testing.T) {
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepoWithContent(t, map[string]string{
		"notes.txt": "one\ntwo\nthree\n",
	})
	testutil.WriteFile(t, dir, "notes.txt", "one\n2\nthree\n")
	diff := testutil.Diff(t, dir)
	testutil.CommitFile(t, dir, "notes.txt", "one\nTWO\nthree\n", "Edit the same line")

	result, err := New(dir).Apply(context.Background(), diff, false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Clean {
		t.Fatalf("expected a conflict, got clean apply: %s", result.Output)
	}
	if len(result.ConflictPaths) != 1 || result.ConflictPaths[0] != "notes.txt" {
		t.Errorf("ConflictPaths = %v, output %q", result.ConflictPaths, result.Output)
	}
	if got := testutil.ReadFile(t, dir, "notes.txt"); !strings.Contains(got, "<<<<<<<") {
		t.Errorf("notes.txt has no conflict markers: %q", got)
	}
}
