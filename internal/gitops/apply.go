package gitops

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/taskbridge/internal/errors"
)

// ApplyResult describes what `git apply` did or, for a check, would do.
type ApplyResult struct {
	// Clean is true when git exited successfully.
	Clean bool
	// Checked is true when nothing was written to the working tree.
	Checked       bool
	AppliedPaths  []string
	SkippedPaths  []string
	ConflictPaths []string
	// Output is git's combined output.
	Output string
}

// RepoRoot returns the top-level directory of the working tree.
func (g *Git) RepoRoot(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		if strings.Contains(string(out), "not a git repository") {
			return "", errors.NewGitError("cannot apply outside a repository", errors.ErrNotGitRepository).
				WithRepository(g.dir)
		}
		return "", errors.NewGitError("failed to find repository root", err).
			WithRepository(g.dir).
			WithGitOutput(string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// Apply applies diff at the repository root, falling back to a three-way
// merge for hunks that do not apply cleanly. With check set nothing is
// modified and git only reports whether the diff would apply.
//
// A diff that git rejects is not an error: Clean is false and the affected
// paths are listed. Errors mean git could not be run at all.
func (g *Git) Apply(ctx context.Context, diff string, check bool) (*ApplyResult, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, errors.ErrNoDiff
	}

	root, err := g.RepoRoot(ctx)
	if err != nil {
		return nil, err
	}

	patchPath, err := writePatch(diff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(patchPath) }()

	args := []string{"apply", "--verbose"}
	if check {
		args = append(args, "--check")
	} else {
		args = append(args, "--3way")
	}
	args = append(args, patchPath)

	out, runErr := g.executor.Run(ctx, root, "git", args...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := parseApplyOutput(string(out))
	result.Clean = runErr == nil
	result.Checked = check
	result.Output = string(out)
	return result, nil
}

func writePatch(diff string) (string, error) {
	f, err := os.CreateTemp("", "taskbridge-*.diff")
	if err != nil {
		return "", fmt.Errorf("failed to create patch file: %w", err)
	}
	if !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	if _, err := f.WriteString(diff); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write patch file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write patch file: %w", err)
	}
	return f.Name(), nil
}

type pathState int

const (
	stateApplied pathState = iota + 1
	stateSkipped
	stateConflict
)

// skipSuffixes mark paths git refused to touch at all.
var skipSuffixes = []string{
	": does not exist in index",
	": already exists in working directory",
	": No such file or directory",
	": does not match index",
}

// parseApplyOutput classifies the per-path lines of `git apply --verbose`.
// A path keeps its most severe state: conflict, then skipped, then applied.
func parseApplyOutput(out string) *ApplyResult {
	var order []string
	states := make(map[string]pathState)
	mark := func(path string, s pathState) {
		path = strings.Trim(strings.TrimSpace(path), "'")
		if path == "" {
			return
		}
		prev, seen := states[path]
		if !seen {
			order = append(order, path)
		}
		if s > prev {
			states[path] = s
		}
	}

	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Applied patch to ") && strings.HasSuffix(line, " with conflicts."):
			mark(between(line, "Applied patch to ", " with conflicts."), stateConflict)
		case strings.HasPrefix(line, "Applied patch ") && strings.HasSuffix(line, " cleanly."):
			path := between(line, "Applied patch ", " cleanly.")
			mark(strings.TrimPrefix(path, "to "), stateApplied)
		case strings.HasPrefix(line, "U "):
			mark(strings.TrimPrefix(line, "U "), stateConflict)
		case strings.HasPrefix(line, "error: patch failed: "):
			rest := strings.TrimPrefix(line, "error: patch failed: ")
			if i := strings.LastIndex(rest, ":"); i > 0 {
				rest = rest[:i]
			}
			mark(rest, stateConflict)
		case strings.HasPrefix(line, "Skipped patch "):
			mark(between(line, "Skipped patch ", "."), stateSkipped)
		case strings.HasPrefix(line, "error: "):
			for _, suffix := range skipSuffixes {
				if strings.HasSuffix(line, suffix) {
					mark(between(line, "error: ", suffix), stateSkipped)
					break
				}
			}
		}
	}

	r := &ApplyResult{}
	for _, path := range order {
		switch states[path] {
		case stateApplied:
			r.AppliedPaths = append(r.AppliedPaths, path)
		case stateSkipped:
			r.SkippedPaths = append(r.SkippedPaths, path)
		case stateConflict:
			r.ConflictPaths = append(r.ConflictPaths, path)
		}
	}
	return r
}

func between(s, prefix, suffix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, prefix), suffix)
}
