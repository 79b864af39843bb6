package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/publish"
	"github.com/teranos/snpm/server"
	"go.uber.org/zap/zaptest"
)

// scriptedRunner reports every progress stage, then its outcome
type scriptedRunner struct {
	outcome publish.Outcome
	block   bool
	got     chan publish.Request
}

func (r *scriptedRunner) Run(ctx context.Context, req publish.Request, reporter publish.Reporter) publish.Outcome {
	r.got <- req
	if r.block {
		<-ctx.Done()
		return publish.Outcome{Stage: publish.StageFetch, Message: "cancelled", Err: ctx.Err()}
	}
	for _, stage := range publish.Stages[1:] {
		reporter.ReportProgress(stage, stage.ProgressMessage())
	}
	reporter.ReportResult(r.outcome)
	return r.outcome
}

func newRegistry(t *testing.T, runner *scriptedRunner) *Client {
	t.Helper()
	cfg := am.DefaultConfig()
	cfg.Publish.RatePerMinute = 0
	s := server.New(cfg, runner, zaptest.NewLogger(t).Sugar())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { s.Stop() })

	c, err := New(ts.URL, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return c
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws"},
		{"https://registry.example.com", "wss://registry.example.com/ws"},
		{"http://localhost:3000/", "ws://localhost:3000/ws"},
		{"ws://10.0.0.5:8080", "ws://10.0.0.5:8080/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := WebSocketURL(tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"localhost:3000", "ftp://host", "http://"} {
		_, err := WebSocketURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestRequestFromManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{
		"name": "widget",
		"version": "1.2.0",
		"repository": {"type": "git", "url": "git+https://github.com/acme/widget.git"}
	}`), 0o644))

	req, err := RequestFromManifest(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "git+https://github.com/acme/widget.git", req.URL)
	assert.Equal(t, "1.2.0", req.Version)
	assert.Empty(t, req.Checksum)
}

func TestRequestFromManifest_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"no repository", `{"name": "widget", "version": "1.0.0"}`},
		{"no version", `{"name": "widget", "repository": "https://github.com/acme/widget"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(tt.manifest), 0o644))
			_, err := RequestFromManifest(dir, "package.json")
			assert.Error(t, err)
		})
	}

	_, err := RequestFromManifest(t.TempDir(), "")
	assert.True(t, errors.Is(err, errors.ErrManifest))
}

func TestPublish_StreamsProgressUntilFinished(t *testing.T) {
	runner := &scriptedRunner{
		outcome: publish.Outcome{Stage: publish.StageDone, Message: publish.MessageFinished},
		got:     make(chan publish.Request, 1),
	}
	c := newRegistry(t, runner)

	var messages []string
	req := publish.Request{URL: "https://github.com/acme/widget", Version: "1.0.0"}
	err := c.Publish(context.Background(), req, func(m string) { messages = append(messages, m) })
	require.NoError(t, err)

	assert.Equal(t, req, <-runner.got)
	assert.Equal(t, []string{
		publish.MessageFetching,
		publish.MessageExtracting,
		publish.MessageInstalling,
		publish.MessageBuilding,
		publish.MessageVerifying,
		publish.MessageFinished,
	}, messages)
}

func TestPublish_RegistryError(t *testing.T) {
	runner := &scriptedRunner{
		outcome: publish.Outcome{
			Stage:   publish.StageBuild,
			Message: "Cannot build project",
			Err:     errors.Mark(errors.New("exit status 1"), errors.ErrBuild),
		},
		got: make(chan publish.Request, 1),
	}
	c := newRegistry(t, runner)

	var messages []string
	err := c.Publish(context.Background(), publish.Request{URL: "https://github.com/acme/widget", Version: "1.0.0"},
		func(m string) { messages = append(messages, m) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegistry))
	assert.Contains(t, err.Error(), "Cannot build project")
	assert.NotContains(t, messages, publish.MessageFinished)
}

func TestPublish_ContextCancelled(t *testing.T) {
	runner := &scriptedRunner{block: true, got: make(chan publish.Request, 1)}
	c := newRegistry(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-runner.got
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		done <- c.Publish(ctx, publish.Request{URL: "https://github.com/acme/widget", Version: "1.0.0"}, nil)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Publish did not return after cancellation")
	}
}

func TestPublish_RegistryUnreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	addr := ts.URL
	ts.Close()

	c, err := New(addr, nil)
	require.NoError(t, err)
	err = c.Publish(context.Background(), publish.Request{URL: "https://github.com/acme/widget", Version: "1.0.0"}, nil)
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "snpm server")
}
