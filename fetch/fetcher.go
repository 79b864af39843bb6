// Package fetch downloads tagged source archives and unpacks them into
// per-run work directories.
package fetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/internal/httpclient"
	"github.com/teranos/snpm/logger"
	"github.com/teranos/snpm/version"
	"go.uber.org/zap"
)

// DefaultBaseURL is the archive host used when none is configured
const DefaultBaseURL = "https://github.com"

// Config controls where archives come from and how much a run may consume
type Config struct {
	BaseURL         string        // archive host, e.g. https://github.com
	GitURLTemplate  string        // remote used for tag preflight, {owner} and {repo} substituted
	VerifyTag       bool          // list remote refs before downloading
	MinFreeBytes    uint64        // required free space on WorkRoot, 0 disables
	MaxArchiveBytes int64         // download cap, 0 disables
	Timeout         time.Duration // per-download HTTP timeout
	AllowPrivate    bool          // permit loopback/private archive hosts (tests, mirrors)
	WorkRoot        string        // parent of per-run directories, "" = os.TempDir()
}

// Archive is a downloaded source archive and the directory that owns it
type Archive struct {
	Dir  string // per-run work directory
	File string // the .tar.gz inside Dir
}

// Cleanup removes the work directory and everything extracted into it
func (a *Archive) Cleanup() error {
	if a == nil || a.Dir == "" {
		return nil
	}
	return os.RemoveAll(a.Dir)
}

// Fetcher downloads tag archives
type Fetcher struct {
	cfg      Config
	client   *httpclient.SaferClient
	logger   *zap.SugaredLogger
	diskFree func(ctx context.Context, path string) (uint64, error)
	listTags func(ctx context.Context, remoteURL string) ([]string, error)
}

// NewFetcher creates a Fetcher
func NewFetcher(cfg Config, log *zap.SugaredLogger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.GitURLTemplate == "" {
		cfg.GitURLTemplate = cfg.BaseURL + "/{owner}/{repo}.git"
	}

	block := !cfg.AllowPrivate
	client := httpclient.NewSaferClientWithOptions(cfg.Timeout, httpclient.Options{
		BlockPrivateIP: &block,
	})

	return &Fetcher{
		cfg:      cfg,
		client:   client,
		logger:   log,
		diskFree: freeBytes,
		listTags: listRemoteTags,
	}
}

// ArchiveURL returns the tag archive location for owner/repo at version
func (f *Fetcher) ArchiveURL(owner, repo, version string) string {
	return strings.TrimRight(f.cfg.BaseURL, "/") + "/" + owner + "/" + repo + "/archive/v" + version + ".tar.gz"
}

// Fetch downloads the v<version> archive of owner/repo into a fresh work
// directory. On error nothing is left on disk.
func (f *Fetcher) Fetch(ctx context.Context, owner, repo, version string) (*Archive, error) {
	log := logger.LoggerFromContext(ctx, f.logger).With(
		logger.FieldOwner, owner,
		logger.FieldRepo, repo,
		logger.FieldVersion, version,
	)

	if f.cfg.VerifyTag {
		if err := f.verifyTag(ctx, owner, repo, version); err != nil {
			return nil, err
		}
	}

	root := f.cfg.WorkRoot
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to create work root %s", root), errors.ErrFetch)
	}
	if err := f.checkDiskSpace(ctx, root); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(root, "snpm-"+repo+"-*")
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to create work directory"), errors.ErrFetch)
	}

	archive := &Archive{Dir: dir, File: filepath.Join(dir, "v"+version+".tar.gz")}
	start := time.Now()
	n, err := f.download(ctx, f.ArchiveURL(owner, repo, version), archive.File)
	if err != nil {
		if rmErr := archive.Cleanup(); rmErr != nil {
			log.Warnw("Failed to remove work directory", logger.FieldDir, dir, logger.FieldError, rmErr)
		}
		return nil, errors.Mark(err, errors.ErrFetch)
	}

	log.Debugw("Fetched archive",
		logger.FieldDir, dir,
		"bytes", n,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return archive, nil
}

func (f *Fetcher) download(ctx context.Context, archiveURL, dest string) (int64, error) {
	u, err := f.client.ValidateURL(archiveURL)
	if err != nil {
		return 0, errors.Wrapf(err, "refusing to fetch %s", archiveURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to build archive request")
	}
	req.Header.Set("User-Agent", version.Get().UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "GET %s", archiveURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.Newf("GET %s: unexpected status %s", archiveURL, resp.Status)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create %s", dest)
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxArchiveBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxArchiveBytes+1)
	}

	n, copyErr := io.Copy(out, body)
	closeErr := out.Close()
	if copyErr != nil {
		return n, errors.Wrapf(copyErr, "failed to write %s", dest)
	}
	if closeErr != nil {
		return n, errors.Wrapf(closeErr, "failed to write %s", dest)
	}
	if f.cfg.MaxArchiveBytes > 0 && n > f.cfg.MaxArchiveBytes {
		return n, errors.Newf("archive exceeds %d bytes", f.cfg.MaxArchiveBytes)
	}
	return n, nil
}
