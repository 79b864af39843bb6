package publish

import (
	"regexp"
	"strings"

	"github.com/teranos/snpm/errors"
)

// HostMarker must appear in every repository URL
const HostMarker = "github.com"

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Reference identifies a repository by owner and name
type Reference struct {
	Owner string
	Repo  string
}

func (r Reference) String() string {
	return r.Owner + "/" + r.Repo
}

// ParseReference extracts owner and repo from an HTTPS
// (https://github.com/owner/repo[.git]) or SSH (git@github.com:owner/repo[.git])
// repository URL. npm-style prefixes such as git+https:// are accepted.
func ParseReference(rawURL string) (Reference, error) {
	if !strings.Contains(rawURL, HostMarker) {
		return Reference{}, invalidReference(rawURL, "missing host "+HostMarker)
	}

	segments := strings.Split(strings.TrimRight(rawURL, "/"), "/")
	if len(segments) < 2 {
		return Reference{}, invalidReference(rawURL, "expected owner/repo")
	}

	owner := segments[len(segments)-2]
	if i := strings.LastIndex(owner, ":"); i >= 0 && i < len(owner)-1 {
		owner = owner[i+1:]
	}
	repo := strings.TrimSuffix(segments[len(segments)-1], ".git")

	if !validToken(owner) || strings.Contains(owner, HostMarker) {
		return Reference{}, invalidReference(rawURL, "invalid owner "+owner)
	}
	if !validToken(repo) {
		return Reference{}, invalidReference(rawURL, "invalid repository name "+repo)
	}

	return Reference{Owner: owner, Repo: repo}, nil
}

// validToken rejects anything that could escape a URL path segment or a directory
func validToken(s string) bool {
	return s != "." && s != ".." && tokenPattern.MatchString(s)
}

func invalidReference(rawURL, reason string) error {
	return errors.Mark(
		errors.WithDetailf(errors.New(MessageInvalidURL), "%q: %s", rawURL, reason),
		errors.ErrInvalidReference,
	)
}
