package environment

import (
	"context"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/taskbridge/internal/cloud"
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

// RemoteLister reports the URLs of the checkout's git remotes.
type RemoteLister interface {
	RemoteURLs(ctx context.Context) ([]string, error)
}

// Querier fetches environments from the backend.
type Querier interface {
	EnvironmentsByRepo(ctx context.Context, owner, repo string) ([]cloud.Environment, error)
	Environments(ctx context.Context) ([]cloud.Environment, error)
}

// DefaultParallelism bounds concurrent per-repository queries.
const DefaultParallelism = 4

// Aggregator merges environment listings from every available source.
type Aggregator struct {
	remotes     RemoteLister
	querier     Querier
	parallelism int
	logger      *logging.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithParallelism bounds how many per-repository queries run at once.
// Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.parallelism = n
		}
	}
}

// WithLogger sets the logger used to report skipped sources.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger.WithComponent("environment")
		}
	}
}

// NewAggregator creates an Aggregator. Both collaborators are required.
func NewAggregator(remotes RemoteLister, querier Querier, opts ...Option) *Aggregator {
	if remotes == nil {
		panic("environment: NewAggregator called with nil RemoteLister")
	}
	if querier == nil {
		panic("environment: NewAggregator called with nil Querier")
	}
	a := &Aggregator{
		remotes:     remotes,
		querier:     querier,
		parallelism: DefaultParallelism,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type repoRef struct {
	owner, repo string
}

func (r repoRef) String() string {
	return r.owner + "/" + r.repo
}

// List returns every environment found, sorted by Sort's order. It never
// fails: remote discovery errors and failed queries are logged and skipped.
//
// Per-repository results are merged in sorted remote order whatever order the
// queries finish in, so the first repository to report an environment decides
// its label and repository hint.
func (a *Aggregator) List(ctx context.Context) []Row {
	repos := a.repositories(ctx)

	results := make([]map[string]Row, len(repos))
	p := pool.New().WithMaxGoroutines(a.parallelism)
	for i, ref := range repos {
		p.Go(func() {
			envs, err := a.querier.EnvironmentsByRepo(ctx, ref.owner, ref.repo)
			if err != nil {
				a.logger.Debug("repository query failed", "repo", ref.String(), "error", err.Error())
				return
			}
			hint := ref.String()
			results[i] = FromEnvironments(envs, &hint)
		})
	}
	p.Wait()

	merged := map[string]Row{}
	for _, r := range results {
		if r != nil {
			merged = Merge(merged, r)
		}
	}

	if envs, err := a.querier.Environments(ctx); err != nil {
		a.logger.Debug("global environment query failed", "error", err.Error())
	} else {
		merged = Merge(merged, FromEnvironments(envs, nil))
	}

	rows := Rows(merged)
	a.logger.Debug("environments aggregated", "repos", len(repos), "rows", len(rows))
	return rows
}

// repositories lists the distinct GitHub repositories among the remotes, in
// sorted remote order.
func (a *Aggregator) repositories(ctx context.Context) []repoRef {
	urls, err := a.remotes.RemoteURLs(ctx)
	if err != nil {
		a.logger.Debug("remote discovery failed", "error", err.Error())
		return nil
	}

	urls = slices.Clone(urls)
	slices.Sort(urls)

	var refs []repoRef
	seen := make(map[repoRef]bool)
	for _, url := range urls {
		owner, repo, ok := ParseOwnerRepo(url)
		if !ok {
			a.logger.Debug("skipping non-GitHub remote", "url", url)
			continue
		}
		ref := repoRef{owner: owner, repo: repo}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
