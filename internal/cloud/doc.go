// Package cloud talks to the remote task backend.
//
// Backend is implemented twice: HTTPClient calls the real service, and
// MockClient serves a fixed set of tasks and environments for offline use and
// tests. Both apply task diffs to the local checkout through gitops.
//
// The backend exposes two URL layouts. Bases containing "/backend-api" use
// the /wham/... paths; any other base uses /api/codex/....
package cloud
