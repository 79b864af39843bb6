// Package publish runs the publish pipeline: parse, fetch, extract,
// install, build and verify a tagged package version.
//
// The pipeline is written once against Reporter. Transports adapt
// Reporter to their protocol and never sequence stages themselves.
package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teranos/snpm/build"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/fetch"
	"github.com/teranos/snpm/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher downloads the v<version> source archive of owner/repo
type Fetcher interface {
	Fetch(ctx context.Context, owner, repo, version string) (*fetch.Archive, error)
}

// Extractor unpacks an archive into destDir
type Extractor interface {
	Extract(ctx context.Context, archiveFile, destDir string) error
}

// Builder drives the package's dependency manager. Every call names the
// package directory explicitly.
type Builder interface {
	Configure(ctx context.Context) error
	ReadManifest(dir string) (*build.Manifest, error)
	Install(ctx context.Context, dir string) error
	Run(ctx context.Context, dir string) error
}

// Options tunes a Pipeline
type Options struct {
	Timeout     time.Duration // per-run deadline, 0 = none
	KeepWorkdir bool          // leave work directories behind for debugging
}

// Pipeline sequences the publish stages. It is safe for concurrent use;
// each Run owns its own work directory.
type Pipeline struct {
	fetcher     Fetcher
	extractor   Extractor
	builder     Builder
	logger      *zap.SugaredLogger
	timeout     atomic.Int64
	keepWorkdir bool
}

// NewPipeline creates a Pipeline from its collaborators
func NewPipeline(f Fetcher, e Extractor, b Builder, opts Options, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = logger.ComponentLogger("pipeline")
	}
	p := &Pipeline{
		fetcher:     f,
		extractor:   e,
		builder:     b,
		logger:      log,
		keepWorkdir: opts.KeepWorkdir,
	}
	p.timeout.Store(int64(opts.Timeout))
	return p
}

// SetTimeout changes the deadline applied to runs started afterwards
func (p *Pipeline) SetTimeout(d time.Duration) {
	p.timeout.Store(int64(d))
}

// Timeout returns the current per-run deadline
func (p *Pipeline) Timeout() time.Duration {
	return time.Duration(p.timeout.Load())
}

// Run publishes req, reporting progress and exactly one result to reporter.
// Stages run strictly in order; the first failure ends the run.
func (p *Pipeline) Run(ctx context.Context, req Request, reporter Reporter) Outcome {
	if reporter == nil {
		reporter = Discard
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	if timeout := p.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := logger.LoggerFromContext(ctx, p.logger)
	start := time.Now()

	r := &run{Pipeline: p, ctx: ctx, req: req, reporter: reporter, log: log}
	outcome := r.execute()
	outcome.RunID = runID

	if outcome.Succeeded() {
		log.Infow("Publish succeeded",
			logger.FieldURL, req.URL,
			logger.FieldVersion, r.req.Version,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	} else {
		log.Errorw("Publish failed",
			logger.FieldURL, req.URL,
			logger.FieldVersion, r.req.Version,
			logger.FieldStage, outcome.Stage,
			logger.FieldError, outcome.Err,
			"details", errors.FlattenDetails(outcome.Err),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	}

	reporter.ReportResult(outcome)
	return outcome
}

// failureClasses are the sentinels collaborators may already have marked
var failureClasses = []error{
	errors.ErrInvalidReference,
	errors.ErrInputValidation,
	errors.ErrFetch,
	errors.ErrExtract,
	errors.ErrManifest,
	errors.ErrDependencyInstall,
	errors.ErrBuild,
	errors.ErrChecksumMismatch,
	errors.ErrIO,
}

// run is the state of a single pipeline execution
type run struct {
	*Pipeline
	ctx      context.Context
	req      Request
	reporter Reporter
	log      *zap.SugaredLogger
}

func (r *run) progress(stage Stage) {
	msg := stage.ProgressMessage()
	r.log.Infow(msg, logger.FieldStage, stage)
	r.reporter.ReportProgress(stage, msg)
}

// fail classifies err under stage and builds the terminal outcome
func (r *run) fail(stage Stage, err error) Outcome {
	if !errors.IsAny(err, failureClasses...) {
		err = errors.Mark(err, stage.sentinel())
	}
	if errors.Is(r.ctx.Err(), context.DeadlineExceeded) {
		err = errors.Mark(errors.WithHintf(err, "publish exceeded its %s deadline", r.Timeout()), errors.ErrTimeout)
	}
	return Outcome{Stage: stage, Message: failureMessage(stage, err), Err: err}
}

func (r *run) execute() Outcome {
	if err := r.req.Validate(false); err != nil {
		return r.fail(StageParse, err)
	}
	ref, err := ParseReference(r.req.URL)
	if err != nil {
		return r.fail(StageParse, err)
	}
	r.log = r.log.With(logger.FieldOwner, ref.Owner, logger.FieldRepo, ref.Repo, logger.FieldVersion, r.req.Version)

	r.progress(StageFetch)
	archive, err := r.fetcher.Fetch(r.ctx, ref.Owner, ref.Repo, r.req.Version)
	if err != nil {
		return r.fail(StageFetch, err)
	}
	if r.keepWorkdir {
		r.log.Infow("Keeping work directory", logger.FieldDir, archive.Dir)
	} else {
		defer func() {
			if err := archive.Cleanup(); err != nil {
				r.log.Warnw("Failed to remove work directory", logger.FieldDir, archive.Dir, logger.FieldError, err)
			}
		}()
	}

	r.progress(StageExtract)
	if err := r.extractor.Extract(r.ctx, archive.File, archive.Dir); err != nil {
		return r.fail(StageExtract, err)
	}
	// GitHub tag archives unpack into <repo>-<version without the v>
	dir := filepath.Join(archive.Dir, ref.Repo+"-"+r.req.Version)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return r.fail(StageExtract, errors.Mark(
			errors.Newf("archive has no %s-%s directory", ref.Repo, r.req.Version), errors.ErrExtract))
	}

	r.progress(StageInstall)
	manifest, err := r.install(dir)
	if err != nil {
		return r.fail(StageInstall, err)
	}
	if manifest.Version != "" && strings.TrimPrefix(manifest.Version, "v") != r.req.Version {
		r.log.Warnw("Manifest version differs from the published tag", "manifest_version", manifest.Version)
	}

	r.progress(StageBuild)
	if err := r.builder.Run(r.ctx, dir); err != nil {
		return r.fail(StageBuild, err)
	}

	r.progress(StageVerify)
	if err := r.verify(dir, manifest); err != nil {
		return r.fail(StageVerify, err)
	}

	return Outcome{Stage: StageDone, Message: MessageFinished}
}

// install configures the tool, then reads the manifest while dependencies
// install. Both must succeed.
func (r *run) install(dir string) (*build.Manifest, error) {
	if err := r.builder.Configure(r.ctx); err != nil {
		return nil, err
	}

	var manifest *build.Manifest
	g, gctx := errgroup.WithContext(r.ctx)
	g.Go(func() error {
		m, err := r.builder.ReadManifest(dir)
		if err != nil {
			return err
		}
		manifest = m
		return nil
	})
	g.Go(func() error {
		return r.builder.Install(gctx, dir)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// verify checks the built artifact against the request's checksum, falling
// back to the one the manifest declares
func (r *run) verify(dir string, manifest *build.Manifest) error {
	expected := r.req.Checksum
	if expected == "" {
		expected = manifest.Checksums.SHA1
	}
	if expected == "" {
		return errors.Mark(errors.New(`no checksum in request or manifest "checksums.sha1"`), errors.ErrManifest)
	}

	artifact, err := manifest.ArtifactPath(dir)
	if err != nil {
		return err
	}
	return VerifyChecksum(artifact, expected)
}
