package fetch

import (
	"context"

	"github.com/hashicorp/go-getter"
	"github.com/teranos/snpm/errors"
)

// Extractor unpacks tar.gz archives with bounded output
type Extractor struct {
	decompressor *getter.TarGzipDecompressor
}

// NewExtractor creates an Extractor. maxBytes caps the total uncompressed
// size and maxFiles the entry count; zero means unlimited.
func NewExtractor(maxBytes int64, maxFiles int) *Extractor {
	return &Extractor{
		decompressor: &getter.TarGzipDecompressor{
			FileSizeLimit: maxBytes,
			FilesLimit:    maxFiles,
		},
	}
}

// Extract unpacks archiveFile into destDir
func (e *Extractor) Extract(ctx context.Context, archiveFile, destDir string) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(err, errors.ErrExtract)
	}
	if err := e.decompressor.Decompress(destDir, archiveFile, true, 0); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to extract %s", archiveFile), errors.ErrExtract)
	}
	return nil
}
