// Package trash lists the OS trash and moves files into it.
package trash

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/errs"
	"github.com/fenilsonani/reclaim/internal/scanner"
)

// Item is a read-only snapshot of one trash entry
type Item struct {
	Record scanner.FileRecord
}

// Inventory lists trash contents
type Inventory struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewInventory creates an inventory over fs
func NewInventory(fs afero.Fs, logger zerolog.Logger) *Inventory {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Inventory{fs: fs, logger: logger}
}

// List reads dir once, without recursing, and returns its entries largest
// first. Hidden entries are skipped. Directories are sized by the sum of
// the files below them.
func (inv *Inventory) List(ctx context.Context, dir string) ([]Item, error) {
	entries, err := afero.ReadDir(inv.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Categorize(dir, err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		rec := scanner.FileRecord{
			Path:    filepath.Join(dir, entry.Name()),
			Size:    uint64(entry.Size()),
			IsDir:   entry.IsDir(),
			ModTime: entry.ModTime(),
		}
		if entry.IsDir() {
			rec.Size = inv.dirSize(ctx, rec.Path)
		}
		items = append(items, Item{Record: rec})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Record.Size != items[j].Record.Size {
			return items[i].Record.Size > items[j].Record.Size
		}
		return items[i].Record.Path < items[j].Record.Path
	})

	inv.logger.Debug().Str("dir", dir).Int("items", len(items)).Msg("listed trash")
	return items, nil
}

func (inv *Inventory) dirSize(ctx context.Context, dir string) uint64 {
	var total uint64
	_ = afero.Walk(inv.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			inv.logger.Debug().Str("path", path).Err(err).Msg("cannot size trash entry")
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipDir
		}
		if info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

// AggregateSize sums the sizes of the items whose path is in selection
func AggregateSize(items []Item, selection []string) uint64 {
	selected := make(map[string]struct{}, len(selection))
	for _, p := range selection {
		selected[p] = struct{}{}
	}

	var total uint64
	for _, item := range items {
		if _, ok := selected[item.Record.Path]; ok {
			total += item.Record.Size
		}
	}
	return total
}

// Records returns the file records of items
func Records(items []Item) []scanner.FileRecord {
	records := make([]scanner.FileRecord, 0, len(items))
	for _, item := range items {
		records = append(records, item.Record)
	}
	return records
}
