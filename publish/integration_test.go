package publish

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/internal/testutil"
	"go.uber.org/zap/zaptest"
)

func newConfiguredPipeline(t *testing.T, baseURL string) (*Pipeline, string) {
	t.Helper()
	tool := testutil.NewFakeTool(t)
	workRoot := t.TempDir()

	cfg := am.DefaultConfig()
	cfg.Fetch.BaseURL = baseURL
	cfg.Fetch.AllowPrivate = true
	cfg.Fetch.MinFreeMB = 0
	cfg.Build.InstallCommand = tool.InstallCommand()
	cfg.Build.RunCommand = tool.RunCommand()
	cfg.Publish.WorkRoot = workRoot

	p, err := NewFromConfig(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return p, workRoot
}

func TestPipeline_EndToEnd(t *testing.T) {
	widget := testutil.Project{Repo: "widget", Version: "1.2.0", Artifact: "widget-binary"}
	srv := testutil.ArchiveServer(t, "acme", widget)
	p, workRoot := newConfiguredPipeline(t, srv.URL)

	reporter := &recordingReporter{}
	outcome := p.Run(context.Background(), Request{
		URL:      "https://github.com/acme/widget",
		Version:  "1.2.0",
		Checksum: testutil.SHA1("widget-binary"),
	}, reporter)
	require.NoError(t, outcome.Err, "%+v", outcome.Err)
	assert.Len(t, reporter.progress, 5)

	entries, err := os.ReadDir(workRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "work directory must be removed")

	outcome = p.Run(context.Background(), Request{
		URL:     "git@github.com:acme/widget.git",
		Version: "9.9.9",
	}, nil)
	require.Error(t, outcome.Err)
	assert.Equal(t, StageFetch, outcome.Stage)
}

func TestPipeline_ConcurrentRunsAreIsolated(t *testing.T) {
	alpha := testutil.Project{Repo: "alpha", Version: "1.0.0", Artifact: "alpha-bytes"}
	beta := testutil.Project{Repo: "beta", Version: "2.0.0", Artifact: "beta-bytes"}
	srv := testutil.ArchiveServer(t, "acme", alpha, beta)
	p, _ := newConfiguredPipeline(t, srv.URL)

	const rounds = 3
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 2*rounds)
	for i := 0; i < rounds; i++ {
		for _, proj := range []testutil.Project{alpha, beta} {
			wg.Add(1)
			go func(proj testutil.Project) {
				defer wg.Done()
				outcomes <- p.Run(context.Background(), Request{
					URL:      "https://github.com/acme/" + proj.Repo,
					Version:  proj.Version,
					Checksum: testutil.SHA1(proj.Artifact),
				}, nil)
			}(proj)
		}
	}
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		assert.NoError(t, o.Err, "%+v", o.Err)
	}
}

func TestPipeline_MismatchIsClientError(t *testing.T) {
	widget := testutil.Project{Repo: "widget", Version: "1.2.0", Artifact: "widget-binary"}
	srv := testutil.ArchiveServer(t, "acme", widget)
	p, _ := newConfiguredPipeline(t, srv.URL)

	outcome := p.Run(context.Background(), Request{
		URL:      "https://github.com/acme/widget",
		Version:  "1.2.0",
		Checksum: testutil.SHA1("tampered"),
	}, nil)
	require.Error(t, outcome.Err)
	assert.Equal(t, MessageMismatch, outcome.Message)
	assert.True(t, errors.IsClientError(outcome.Err))
}
