package environment

import "strings"

var githubPrefixes = []string{
	"https://github.com/",
	"http://github.com/",
	"git://github.com/",
	"github.com/",
}

// ParseOwnerRepo extracts the owner and repository name from a GitHub remote
// URL. It understands scp-style SSH ("git@github.com:owner/repo.git"), the
// ssh:// form of the same, and http(s)://, git:// and bare github.com/ URLs.
// Remotes on any other host are not ok.
func ParseOwnerRepo(url string) (owner, repo string, ok bool) {
	s := strings.TrimSpace(url)
	s = strings.TrimPrefix(s, "ssh://")

	if i := strings.Index(s, "@github.com:"); i >= 0 {
		return splitOwnerRepo(s[i+len("@github.com:"):])
	}
	// ssh://git@github.com/owner/repo
	if i := strings.Index(s, "@github.com/"); i >= 0 {
		return splitOwnerRepo(s[i+len("@github.com/"):])
	}
	for _, prefix := range githubPrefixes {
		if rest, found := strings.CutPrefix(s, prefix); found {
			return splitOwnerRepo(rest)
		}
	}
	return "", "", false
}

func splitOwnerRepo(path string) (string, string, bool) {
	path = strings.TrimLeft(path, "/")
	path = strings.TrimRight(path, "/")
	path = strings.TrimSuffix(path, ".git")
	owner, repo, found := strings.Cut(path, "/")
	if !found || owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
