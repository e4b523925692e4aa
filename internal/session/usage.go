package session

import (
	"context"

	"github.com/fenilsonani/reclaim/internal/scanner"
)

// DiskUsage sizes the immediate children of dir. The listing is read-only
// and does not replace the latest scan result.
func (e *Engine) DiskUsage(ctx context.Context, dir string) ([]scanner.UsageEntry, error) {
	return scanner.NewWalker(e.opts.Walk).DiskUsage(ctx, dir)
}

// InstalledApps lists the applications found in the configured app
// directories, largest first
func (e *Engine) InstalledApps(ctx context.Context) ([]scanner.UsageEntry, error) {
	if len(e.opts.AppDirs) == 0 {
		return nil, nil
	}
	return scanner.NewWalker(e.opts.Walk).InstalledApps(ctx, e.opts.AppDirs, e.opts.AppExtensions)
}
