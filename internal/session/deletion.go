package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/errs"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/trash"
)

// RequestDeletion deletes exactly paths, each of which must belong to the
// latest completed scan result. Any unknown path rejects the whole request
// before anything is touched. Deletions go to the trash unless
// opts.Permanent is set.
func (e *Engine) RequestDeletion(ctx context.Context, paths []string, opts DeleteOptions) (cleaner.Outcome, error) {
	e.mu.Lock()
	if e.current != nil && e.current.state == StateScanning {
		e.mu.Unlock()
		return cleaner.Outcome{}, errs.ErrScanAlreadyRunning
	}
	result := e.latest
	e.mu.Unlock()

	if result == nil {
		return cleaner.Outcome{}, fmt.Errorf("no completed scan: %w", errs.ErrInvalidSelection)
	}

	records, err := selectRecords(paths, func(p string) (scanner.FileRecord, bool) {
		return result.Lookup(p)
	})
	if err != nil {
		return cleaner.Outcome{}, err
	}

	var remover cleaner.Remover = cleaner.PermanentRemover{Fs: e.opts.Fs}
	if !opts.Permanent {
		if e.opts.Bin == nil {
			return cleaner.Outcome{}, fmt.Errorf("no trash available for a non-permanent deletion")
		}
		remover = cleaner.TrashRemover{Bin: e.opts.Bin}
	}

	return e.execute(ctx, records, remover, false, opts.OnProgress), nil
}

// ListTrash lists the trash and remembers the listing for EmptyTrash
func (e *Engine) ListTrash(ctx context.Context) ([]trash.Item, error) {
	if err := e.authorize(); err != nil {
		return nil, err
	}
	if e.opts.Bin == nil {
		return nil, fmt.Errorf("no trash configured")
	}

	inv := trash.NewInventory(e.opts.Fs, e.opts.Logger)
	items, err := inv.List(ctx, e.opts.Bin.ContentDir())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.trashed = items
	e.listed = true
	e.mu.Unlock()
	return items, nil
}

// EmptyTrash permanently deletes the given trash entries, or every entry
// of the latest listing when paths is empty. Paths must come from the
// latest listing, which is taken first if none exists yet.
func (e *Engine) EmptyTrash(ctx context.Context, paths []string, onProgress cleaner.ProgressFunc) (cleaner.Outcome, error) {
	e.mu.Lock()
	listed := e.listed
	e.mu.Unlock()
	if !listed {
		if _, err := e.ListTrash(ctx); err != nil {
			return cleaner.Outcome{}, err
		}
	} else if err := e.authorize(); err != nil {
		return cleaner.Outcome{}, err
	}

	e.mu.Lock()
	items := e.trashed
	e.mu.Unlock()

	byPath := make(map[string]scanner.FileRecord, len(items))
	for _, rec := range trash.Records(items) {
		byPath[rec.Path] = rec
	}
	if len(paths) == 0 {
		for p := range byPath {
			paths = append(paths, p)
		}
	}

	records, err := selectRecords(paths, func(p string) (scanner.FileRecord, bool) {
		rec, ok := byPath[p]
		return rec, ok
	})
	if err != nil {
		return cleaner.Outcome{}, err
	}

	remover := cleaner.RemoverFunc(func(path string, _ bool) error {
		return e.opts.Bin.Purge(path)
	})
	out := e.execute(ctx, records, remover, true, onProgress)

	gone := make(map[string]bool, out.Succeeded)
	for _, item := range out.Items {
		if item.Succeeded || item.Kind == errs.PathGoneRace {
			gone[item.Path] = true
		}
	}
	e.mu.Lock()
	kept := e.trashed[:0:0]
	for _, item := range e.trashed {
		if !gone[item.Record.Path] {
			kept = append(kept, item)
		}
	}
	e.trashed = kept
	e.mu.Unlock()

	return out, nil
}

// selectRecords resolves paths through find, sorted and deduplicated.
// One unknown path fails the whole selection.
func selectRecords(paths []string, find func(string) (scanner.FileRecord, bool)) ([]scanner.FileRecord, error) {
	seen := make(map[string]bool, len(paths))
	records := make([]scanner.FileRecord, 0, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		rec, ok := find(p)
		if !ok {
			return nil, errs.New(errs.InvalidSelection, p, errs.ErrInvalidSelection)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

func (e *Engine) execute(ctx context.Context, records []scanner.FileRecord, remover cleaner.Remover, allowSymlinks bool, onProgress cleaner.ProgressFunc) cleaner.Outcome {
	var manifest *cleaner.DeletionManifest
	if e.opts.ManifestDir != "" {
		manifest = cleaner.NewDeletionManifest()
	}

	exec := cleaner.New(cleaner.Options{
		Remover:       remover,
		Validator:     e.opts.Validator,
		Fs:            e.opts.Fs,
		MaxRetries:    e.opts.MaxRetries,
		AllowSymlinks: allowSymlinks,
		Manifest:      manifest,
		Reporter:      e.opts.Reporter,
		Logger:        e.opts.Logger,
	})
	out := exec.Delete(ctx, records, onProgress)

	if manifest != nil && manifest.Len() > 0 {
		name := fmt.Sprintf("reclaim-manifest-%s.txt", time.Now().Format("20060102-150405"))
		path := filepath.Join(e.opts.ManifestDir, name)
		if err := manifest.Save(path); err != nil {
			e.opts.Logger.Warn().Err(err).Str("path", path).Msg("failed to save deletion manifest")
		} else {
			e.opts.Logger.Info().Str("path", path).Int("files", manifest.Len()).Msg("deletion manifest saved")
		}
	}

	e.opts.Logger.Info().
		Int("attempted", out.Attempted).
		Int("succeeded", out.Succeeded).
		Uint64("bytes_freed", out.BytesFreed).
		Bool("cancelled", out.Cancelled).
		Msg("deletion batch finished")
	return out
}
