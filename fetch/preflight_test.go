package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/file"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/internal/testutil"
)

// useInProcessFileTransport serves file:// remotes without a git binary
func useInProcessFileTransport(t *testing.T) {
	t.Helper()
	client.InstallProtocol("file", server.DefaultServer)
	t.Cleanup(func() { client.InstallProtocol("file", file.DefaultClient) })
}

// initTaggedRepo creates <root>/<owner>/<repo> with one commit tagged tag
func initTaggedRepo(t *testing.T, root, owner, repo, tag string) {
	t.Helper()
	dir := filepath.Join(root, owner, repo)
	r, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"`+repo+`"}`), 0644))
	wt, err := r.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("package.json")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	_, err = r.CreateTag(tag, hash, nil)
	require.NoError(t, err)
}

func TestRemoteURL(t *testing.T) {
	f := NewFetcher(Config{}, nil)
	assert.Equal(t, "https://github.com/acme/widget.git", f.RemoteURL("acme", "widget"))

	f = NewFetcher(Config{GitURLTemplate: "ssh://git@mirror/{owner}/{repo}"}, nil)
	assert.Equal(t, "ssh://git@mirror/acme/widget", f.RemoteURL("acme", "widget"))
}

func TestVerifyTag_WithGitRemote(t *testing.T) {
	useInProcessFileTransport(t)

	remotes := t.TempDir()
	initTaggedRepo(t, remotes, "acme", "widget", "v1.2.0")

	payload := testutil.TarGz(t, map[string]string{"widget-1.2.0/package.json": "{}"})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL, func(c *Config) {
		c.VerifyTag = true
		c.GitURLTemplate = "file://" + filepath.ToSlash(remotes) + "/{owner}/{repo}/.git"
	})

	archive, err := f.Fetch(context.Background(), "acme", "widget", "1.2.0")
	require.NoError(t, err)
	archive.Cleanup()
	assert.EqualValues(t, 1, hits.Load())

	_, err = f.Fetch(context.Background(), "acme", "widget", "2.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFetch))
	assert.Contains(t, err.Error(), "tag v2.0.0 not found")
	assert.EqualValues(t, 1, hits.Load(), "missing tag must stop before the download")
}

func TestVerifyTag_ListFailure(t *testing.T) {
	f := newTestFetcher(t, "http://127.0.0.1:1", func(c *Config) { c.VerifyTag = true })
	f.listTags = func(context.Context, string) ([]string, error) {
		return nil, errors.New("authentication required")
	}

	_, err := f.Fetch(context.Background(), "acme", "private", "1.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFetch))
	assert.Contains(t, err.Error(), "authentication required")
}
