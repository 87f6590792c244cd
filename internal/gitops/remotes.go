package gitops

import (
	"context"
	"slices"
	"strings"

	"github.com/Iron-Ham/taskbridge/internal/errors"
)

// RemoteURLs lists the distinct URLs of every configured remote, sorted.
// It reads remote.*.url from git config and falls back to `git remote -v`
// when that yields nothing.
func (g *Git) RemoteURLs(ctx context.Context) ([]string, error) {
	out, configErr := g.run(ctx, "config", "--get-regexp", `remote\..*\.url`)
	if configErr == nil {
		if urls := parseConfigURLs(string(out)); len(urls) > 0 {
			return sortUnique(urls), nil
		}
	}

	out, err := g.run(ctx, "remote", "-v")
	if err != nil {
		return nil, errors.NewGitError("failed to list remotes", err).
			WithRepository(g.dir).
			WithGitOutput(string(out))
	}
	return sortUnique(parseRemoteVerbose(string(out))), nil
}

// parseConfigURLs parses "remote.<name>.url <url>" lines.
func parseConfigURLs(out string) []string {
	var urls []string
	for _, line := range strings.Split(out, "\n") {
		_, url, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		if url = strings.TrimSpace(url); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

// parseRemoteVerbose parses "<name>\t<url> (fetch|push)" lines.
func parseRemoteVerbose(out string) []string {
	var urls []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			urls = append(urls, fields[1])
		}
	}
	return urls
}

func sortUnique(urls []string) []string {
	slices.Sort(urls)
	return slices.Compact(urls)
}
