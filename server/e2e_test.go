package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/internal/testutil"
	"github.com/teranos/snpm/publish"
	"go.uber.org/zap/zaptest"
)

// newRegistry wires the real pipeline against a local archive host and a
// fake dependency manager
func newRegistry(t *testing.T, projects ...testutil.Project) *Server {
	t.Helper()
	archives := testutil.ArchiveServer(t, "acme", projects...)
	tool := testutil.NewFakeTool(t)

	cfg := am.DefaultConfig()
	cfg.Fetch.BaseURL = archives.URL
	cfg.Fetch.AllowPrivate = true
	cfg.Fetch.MinFreeMB = 0
	cfg.Build.InstallCommand = tool.InstallCommand()
	cfg.Build.RunCommand = tool.RunCommand()
	cfg.Publish.WorkRoot = t.TempDir()
	cfg.Publish.RatePerMinute = 0

	pipeline, err := publish.NewFromConfig(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return New(cfg, pipeline, zaptest.NewLogger(t).Sugar())
}

func TestEndToEnd_HTTP(t *testing.T) {
	widget := testutil.Project{Repo: "widget", Version: "1.2.0", Artifact: "widget-binary"}
	s := newRegistry(t, widget)
	ts := newHTTPTestServer(t, s)

	status, body := postPublish(t, ts, `{"url":"https://github.com/acme/widget","version":"1.2.0","checksum":"`+testutil.SHA1("widget-binary")+`"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)

	status, body = postPublish(t, ts, `{"url":"https://github.com/acme/widget","version":"1.2.0","checksum":"`+testutil.SHA1("tampered")+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Build SHA1 checksum is different", body)

	status, body = postPublish(t, ts, `{"url":"https://github.com/acme/widget","version":"3.0.0","checksum":"`+testutil.SHA1("widget-binary")+`"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Cannot fetch project tar.gz", body)
}

func TestEndToEnd_Session(t *testing.T) {
	widget := testutil.Project{Repo: "widget", Version: "1.2.0", Artifact: "widget-binary"}
	s := newRegistry(t, widget)
	ts := newHTTPTestServer(t, s)
	conn := dialSession(t, ts)

	sendPublish(t, conn, publish.Request{URL: "git@github.com:acme/widget.git", Version: "1.2.0"})

	assert.Equal(t, []string{
		"message Fetching repo archive...",
		"message Decompressing repo archive...",
		"message Installing repo deps...",
		"message Building repo...",
		"message Checking checksum...",
		"message Finished!",
	}, readUntilClose(t, conn))
}

func TestEndToEnd_SessionBuildFailure(t *testing.T) {
	broken := testutil.Project{Repo: "broken", Version: "0.1.0", Artifact: "x",
		Extra: map[string]string{"build/build.fail": ""}}
	s := newRegistry(t, broken)
	ts := newHTTPTestServer(t, s)
	conn := dialSession(t, ts)

	sendPublish(t, conn, publish.Request{URL: "https://github.com/acme/broken", Version: "0.1.0"})

	assert.Equal(t, []string{
		"message Fetching repo archive...",
		"message Decompressing repo archive...",
		"message Installing repo deps...",
		"message Building repo...",
		"error Cannot build project",
	}, readUntilClose(t, conn))
}
