package fetch

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/teranos/snpm/errors"
)

// RemoteURL expands the git URL template for owner/repo
func (f *Fetcher) RemoteURL(owner, repo string) string {
	return strings.NewReplacer("{owner}", owner, "{repo}", repo).Replace(f.cfg.GitURLTemplate)
}

// listRemoteTags returns the tag names advertised by remoteURL without cloning
func listRemoteTags(ctx context.Context, remoteURL string) ([]string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return nil, nil
		}
		return nil, err
	}

	var tags []string
	for _, ref := range refs {
		if ref.Name().IsTag() {
			tags = append(tags, ref.Name().Short())
		}
	}
	return tags, nil
}

// verifyTag fails fast when the remote has no v<version> tag, which would
// otherwise surface as an opaque 404 from the archive host
func (f *Fetcher) verifyTag(ctx context.Context, owner, repo, version string) error {
	remoteURL := f.RemoteURL(owner, repo)
	want := "v" + version

	tags, err := f.listTags(ctx, remoteURL)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to list refs of %s", remoteURL), errors.ErrFetch)
	}
	for _, tag := range tags {
		if tag == want {
			return nil
		}
	}

	return errors.Mark(
		errors.WithHintf(errors.Newf("tag %s not found on %s", want, remoteURL), "push the tag with: git push origin %s", want),
		errors.ErrFetch,
	)
}
