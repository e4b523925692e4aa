package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/errs"
)

// UsageEntry is one immediate child of a directory with the total size of
// everything below it
type UsageEntry struct {
	Record FileRecord
	// Files counts the regular files and bundles summed into Record.Size.
	Files int
	// Skipped counts paths below the entry that could not be read.
	Skipped int
}

// DiskUsage lists the immediate children of dir, largest first.
// Directories are sized by walking them with the walker's options;
// symlinks are listed but never followed.
func (w *Walker) DiskUsage(ctx context.Context, dir string) ([]UsageEntry, error) {
	return w.sizeChildren(ctx, dir, func(os.FileInfo) bool { return true })
}

// InstalledApps lists the entries directly inside dirs whose extension is
// one of exts (case-insensitive), each sized as a whole, largest first.
// Directories that do not exist are ignored.
func (w *Walker) InstalledApps(ctx context.Context, dirs, exts []string) ([]UsageEntry, error) {
	wanted := make(map[string]bool, len(exts))
	for _, ext := range exts {
		wanted[strings.ToLower(ext)] = true
	}
	isApp := func(info os.FileInfo) bool {
		return wanted[strings.ToLower(filepath.Ext(info.Name()))]
	}

	var apps []UsageEntry
	for _, dir := range normalizeRoots(dirs) {
		entries, err := w.sizeChildren(ctx, dir, isApp)
		if err != nil {
			if errs.KindOf(err) == errs.PathGoneRace {
				continue
			}
			return nil, err
		}
		apps = append(apps, entries...)
	}
	sortUsage(apps)
	return apps, nil
}

// sizeChildren sizes each child of dir accepted by keep
func (w *Walker) sizeChildren(ctx context.Context, dir string, keep func(os.FileInfo) bool) ([]UsageEntry, error) {
	if !filepath.IsAbs(dir) {
		return nil, errs.New(errs.InvalidSelection, dir, errs.ErrInvalidSelection)
	}
	dir = filepath.Clean(dir)

	children, err := afero.ReadDir(w.opts.Fs, dir)
	if err != nil {
		return nil, errs.Categorize(dir, err)
	}

	entries := make([]UsageEntry, 0, len(children))
	for _, info := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.opts.SkipHidden && strings.HasPrefix(info.Name(), ".") {
			continue
		}
		if !keep(info) {
			continue
		}

		entry := UsageEntry{Record: FileRecord{
			Path:    filepath.Join(dir, info.Name()),
			Size:    uint64(info.Size()),
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
		}}
		switch {
		case info.IsDir():
			w.sizeTree(ctx, &entry)
		case info.Mode().IsRegular():
			entry.Files = 1
		}
		entries = append(entries, entry)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortUsage(entries)
	w.opts.Logger.Debug().Str("dir", dir).Int("entries", len(entries)).Msg("sized directory")
	return entries, nil
}

// sizeTree replaces the entry's size with the sum of the records below it
func (w *Walker) sizeTree(ctx context.Context, entry *UsageEntry) {
	entry.Record.Size = 0
	for ev := range w.Walk(ctx, []string{entry.Record.Path}) {
		if ev.Skipped != nil {
			entry.Skipped++
			continue
		}
		entry.Record.Size += ev.Record.Size
		entry.Files++
	}
}

func sortUsage(entries []UsageEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Record.Size != entries[j].Record.Size {
			return entries[i].Record.Size > entries[j].Record.Size
		}
		return entries[i].Record.Path < entries[j].Record.Path
	})
}
