package publish

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/teranos/snpm/errors"
)

var sha1Pattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Request asks for one version of a repository to be published.
// The checksum is optional for session callers; the manifest supplies it.
type Request struct {
	URL      string `json:"url"`
	Version  string `json:"version"`
	Checksum string `json:"checksum,omitempty"`
}

// Validate checks r without touching the network and normalizes it in
// place: a single leading "v" is dropped from the version and the checksum
// is trimmed. The returned error's message is the caller-facing text.
func (r *Request) Validate(requireChecksum bool) error {
	r.URL = strings.TrimSpace(r.URL)
	if r.URL == "" || !strings.Contains(r.URL, HostMarker) {
		return invalidReference(r.URL, "missing host "+HostMarker)
	}

	r.Version = strings.TrimPrefix(strings.TrimSpace(r.Version), "v")
	if r.Version == "" {
		return errors.WithDetail(errors.NewInputError(MessageInvalidVer), "version is required")
	}
	if _, err := semver.NewVersion(r.Version); err != nil {
		return errors.WithDetailf(errors.NewInputError(MessageInvalidVer), "version %q: %v", r.Version, err)
	}

	r.Checksum = strings.TrimSpace(r.Checksum)
	if r.Checksum == "" {
		if requireChecksum {
			return errors.WithDetail(errors.NewInputError(MessageInvalidSum), "checksum is required")
		}
		return nil
	}
	if !sha1Pattern.MatchString(r.Checksum) {
		return errors.WithDetailf(errors.NewInputError(MessageInvalidSum), "checksum %q is not a hex SHA-1", r.Checksum)
	}
	return nil
}
