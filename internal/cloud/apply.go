package cloud

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/gitops"
)

// applyDiff applies diff to the checkout g points at and describes the result.
func applyDiff(ctx context.Context, g *gitops.Git, taskID, diff string, preflight bool) (*ApplyOutcome, error) {
	if diff == "" {
		return nil, fmt.Errorf("task %s: %w", taskID, errors.ErrNoDiff)
	}

	result, err := g.Apply(ctx, diff, preflight)
	if err != nil {
		return nil, err
	}
	return outcomeFor(taskID, result), nil
}

func outcomeFor(taskID string, r *gitops.ApplyResult) *ApplyOutcome {
	out := &ApplyOutcome{
		SkippedPaths:  nonNil(r.SkippedPaths),
		ConflictPaths: nonNil(r.ConflictPaths),
	}

	switch {
	case r.Clean && r.Checked:
		out.Status = ApplyStatusSuccess
		out.Message = fmt.Sprintf("Preflight passed for task %s (applies cleanly)", taskID)
	case r.Clean:
		out.Applied = true
		out.Status = ApplyStatusSuccess
		out.Message = fmt.Sprintf("Applied task %s locally (%d files)", taskID, len(r.AppliedPaths))
	case len(r.AppliedPaths) > 0 && !r.Checked:
		// --3way leaves the clean hunks in place alongside conflict markers.
		out.Applied = true
		out.Status = ApplyStatusPartial
		out.Message = fmt.Sprintf("Applied task %s with conflicts (%d applied, %d skipped, %d conflicts)",
			taskID, len(r.AppliedPaths), len(r.SkippedPaths), len(r.ConflictPaths))
	case len(r.AppliedPaths) > 0:
		out.Status = ApplyStatusPartial
		out.Message = fmt.Sprintf("Preflight found problems for task %s (%d skipped, %d conflicts)",
			taskID, len(r.SkippedPaths), len(r.ConflictPaths))
	default:
		out.Status = ApplyStatusError
		verb := "Apply"
		if r.Checked {
			verb = "Preflight"
		}
		out.Message = fmt.Sprintf("%s failed for task %s (%d skipped, %d conflicts)",
			verb, taskID, len(r.SkippedPaths), len(r.ConflictPaths))
	}
	return out
}
