package environment

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Iron-Ham/taskbridge/internal/cloud"
)

// Row is one environment in an aggregated listing.
type Row struct {
	ID       string  `json:"id"`
	Label    *string `json:"label,omitempty"`
	IsPinned *bool   `json:"is_pinned,omitempty"`
	// RepoHints is "owner/repo" of the repository query that first found
	// this environment.
	RepoHints *string `json:"repo_hints,omitempty"`
}

// Pinned reports whether the row is pinned. A missing flag is false.
func (r Row) Pinned() bool {
	return r.IsPinned != nil && *r.IsPinned
}

// LabelOr returns the label, or def when there is none.
func (r Row) LabelOr(def string) string {
	if r.Label == nil {
		return def
	}
	return *r.Label
}

// FromEnvironments converts backend environments into rows keyed by id,
// tagging each with hint. Duplicate ids within envs are merged.
func FromEnvironments(envs []cloud.Environment, hint *string) map[string]Row {
	out := make(map[string]Row, len(envs))
	for _, e := range envs {
		row := Row{
			ID:        e.ID,
			Label:     clonePtr(e.Label),
			IsPinned:  clonePtr(e.IsPinned),
			RepoHints: clonePtr(hint),
		}
		if prev, ok := out[e.ID]; ok {
			row = mergeRow(prev, row)
		}
		out[e.ID] = row
	}
	return out
}

// Merge returns the union of dst and src. Neither input is modified.
//
// For an id present in both, dst's label and repo hint win when set, and the
// row is pinned if either side is pinned.
func Merge(dst, src map[string]Row) map[string]Row {
	out := make(map[string]Row, len(dst)+len(src))
	for id, row := range dst {
		out[id] = cloneRow(row)
	}
	for id, row := range src {
		if prev, ok := out[id]; ok {
			out[id] = mergeRow(prev, row)
			continue
		}
		out[id] = cloneRow(row)
	}
	return out
}

func mergeRow(existing, incoming Row) Row {
	merged := cloneRow(existing)
	if merged.Label == nil {
		merged.Label = clonePtr(incoming.Label)
	}
	if incoming.IsPinned != nil {
		pinned := existing.Pinned() || *incoming.IsPinned
		merged.IsPinned = &pinned
	}
	if merged.RepoHints == nil {
		merged.RepoHints = clonePtr(incoming.RepoHints)
	}
	return merged
}

// Sort returns rows ordered pinned first, then by label ignoring case (a
// missing label sorts as ""), then by id. rows is not modified.
func Sort(rows []Row) []Row {
	out := slices.Clone(rows)
	slices.SortFunc(out, compareRows)
	return out
}

func compareRows(a, b Row) int {
	if a.Pinned() != b.Pinned() {
		if a.Pinned() {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(strings.ToLower(a.LabelOr("")), strings.ToLower(b.LabelOr(""))); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Rows flattens a merged map into a sorted slice.
func Rows(m map[string]Row) []Row {
	out := make([]Row, 0, len(m))
	for _, row := range m {
		out = append(out, row)
	}
	slices.SortFunc(out, compareRows)
	return out
}

func cloneRow(r Row) Row {
	return Row{
		ID:        r.ID,
		Label:     clonePtr(r.Label),
		IsPinned:  clonePtr(r.IsPinned),
		RepoHints: clonePtr(r.RepoHints),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
