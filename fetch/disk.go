package fetch

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/teranos/snpm/errors"
)

func freeBytes(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// checkDiskSpace refuses to start a download when root is nearly full.
// An archive plus node_modules easily takes hundreds of megabytes.
func (f *Fetcher) checkDiskSpace(ctx context.Context, root string) error {
	if f.cfg.MinFreeBytes == 0 {
		return nil
	}

	free, err := f.diskFree(ctx, root)
	if err != nil {
		// Not every filesystem reports usage; don't block publishing on it
		f.logger.Debugw("Disk usage unavailable", "dir", root, "error", err)
		return nil
	}
	if free < f.cfg.MinFreeBytes {
		return errors.Mark(
			errors.WithHintf(
				errors.Newf("only %d MB free under %s", free>>20, root),
				"at least %d MB are required; free space or set publish.work_root", f.cfg.MinFreeBytes>>20,
			),
			errors.ErrFetch,
		)
	}
	return nil
}
