package publish

import (
	"time"

	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/build"
	"github.com/teranos/snpm/fetch"
	"github.com/teranos/snpm/logger"
	"go.uber.org/zap"
)

// An archive may expand to this many times its compressed cap
const extractExpansion = 8

// maxExtractedFiles bounds the entries a single archive may unpack
const maxExtractedFiles = 200000

// NewFromConfig wires a Pipeline with the HTTP fetcher, the tar.gz
// extractor and the configured dependency manager
func NewFromConfig(cfg *am.Config, log *zap.SugaredLogger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.ComponentLogger("publish")
	}

	fetcher := fetch.NewFetcher(fetch.Config{
		BaseURL:         cfg.Fetch.BaseURL,
		GitURLTemplate:  cfg.Fetch.GitURLTemplate,
		VerifyTag:       cfg.Fetch.VerifyTag,
		MinFreeBytes:    uint64(cfg.Fetch.MinFreeMB) << 20,
		MaxArchiveBytes: int64(cfg.Fetch.MaxArchiveMB) << 20,
		Timeout:         time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		AllowPrivate:    cfg.Fetch.AllowPrivate,
		WorkRoot:        cfg.Publish.WorkRoot,
	}, log.Named("fetch"))

	extractor := fetch.NewExtractor(int64(cfg.Fetch.MaxArchiveMB)<<20*extractExpansion, maxExtractedFiles)

	builder, err := build.NewOrchestrator(build.Config{
		InstallCommand: cfg.Build.InstallCommand,
		RunCommand:     cfg.Build.RunCommand,
		Script:         cfg.Build.Script,
		ManifestFile:   cfg.Build.ManifestFile,
	}, log.Named("build"))
	if err != nil {
		return nil, err
	}

	return NewPipeline(fetcher, extractor, builder, Options{
		Timeout:     time.Duration(cfg.Publish.TimeoutSeconds) * time.Second,
		KeepWorkdir: cfg.Publish.KeepWorkdir,
	}, log.Named("pipeline")), nil
}
