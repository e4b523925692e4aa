package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/errs"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// DefaultQuickHashBytes is the prefix length hashed before a full digest
const DefaultQuickHashBytes = 64 * 1024

// DuplicateOptions configures a DuplicateGrouper
type DuplicateOptions struct {
	HashWorkers int
	// QuickHashBytes > 0 pre-splits same-size candidates larger than this by
	// an xxhash of their first QuickHashBytes bytes.
	QuickHashBytes int64
	// ExactCompare confirms equal digests byte by byte. Off, digest
	// equality is taken as content equality.
	ExactCompare bool
	// Validator, when set, keeps protected paths out of every group
	Validator *security.PathValidator
	Fs        afero.Fs
	Logger    zerolog.Logger
}

// DuplicateGrouper finds files with identical content
type DuplicateGrouper struct {
	opts DuplicateOptions
}

// NewDuplicateGrouper creates a grouper, filling unset options with defaults
func NewDuplicateGrouper(opts DuplicateOptions) *DuplicateGrouper {
	if opts.HashWorkers <= 0 {
		opts.HashWorkers = 4
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &DuplicateGrouper{opts: opts}
}

// Group drains events and returns the duplicate groups found among the
// records. A cancelled ctx yields ctx.Err() and no result.
func (d *DuplicateGrouper) Group(ctx context.Context, events <-chan WalkEvent, c *Collector) (*ScanResult, error) {
	start := time.Now()
	if c == nil {
		c = NewCollector()
	}

	result := &ScanResult{Kind: KindDuplicates}
	bySize := make(map[uint64][]FileRecord)

	for ev := range events {
		if ev.Skipped != nil {
			result.Skipped = append(result.Skipped, *ev.Skipped)
			continue
		}
		rec := ev.Record
		c.Observe(rec.Size)
		if rec.IsDir || rec.Size == 0 {
			continue
		}
		if d.opts.Validator != nil && d.opts.Validator.IsProtectedPath(rec.Path) {
			continue
		}
		bySize[rec.Size] = append(bySize[rec.Size], rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.SetPhase(progress.PhaseHashing)

	pool, err := ants.NewPool(d.opts.HashWorkers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var buckets [][]FileRecord
	for _, files := range bySize {
		if len(files) < 2 {
			continue
		}
		buckets = append(buckets, files)
	}

	if d.opts.QuickHashBytes > 0 {
		buckets, err = d.splitByPrefix(ctx, pool, buckets, result)
		if err != nil {
			return nil, err
		}
	}

	byDigest, err := d.hashBuckets(ctx, pool, buckets, result)
	if err != nil {
		return nil, err
	}

	for key, files := range byDigest {
		if len(files) < 2 {
			continue
		}
		if !d.opts.ExactCompare {
			result.Groups = append(result.Groups, DuplicateGroup{Key: key, Files: files})
			continue
		}
		for _, part := range d.confirm(ctx, files, result) {
			if len(part) >= 2 {
				result.Groups = append(result.Groups, DuplicateGroup{Key: key, Files: part})
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, g := range result.Groups {
		sortRetainedFirst(g.Files)
	}
	sort.Slice(result.Groups, func(i, j int) bool {
		a, b := result.Groups[i], result.Groups[j]
		if a.ReclaimableBytes() != b.ReclaimableBytes() {
			return a.ReclaimableBytes() > b.ReclaimableBytes()
		}
		return a.Files[0].Path < b.Files[0].Path
	})

	for _, g := range result.Groups {
		result.TotalBytes += g.ReclaimableBytes()
	}
	result.Duration = time.Since(start)

	d.opts.Logger.Info().
		Int("groups", len(result.Groups)).
		Uint64("reclaimable", result.TotalBytes).
		Int("skipped", len(result.Skipped)).
		Dur("duration", result.Duration).
		Msg("duplicate grouping finished")

	return result, nil
}

// splitByPrefix splits buckets of large files by a hash of their prefix
func (d *DuplicateGrouper) splitByPrefix(ctx context.Context, pool *ants.Pool, buckets [][]FileRecord, result *ScanResult) ([][]FileRecord, error) {
	type prefixKey struct {
		size uint64
		sum  uint64
	}

	var mu sync.Mutex
	byPrefix := make(map[prefixKey][]FileRecord)
	var small [][]FileRecord
	var work []FileRecord

	for _, files := range buckets {
		if int64(files[0].Size) <= d.opts.QuickHashBytes {
			small = append(small, files)
			continue
		}
		work = append(work, files...)
	}

	err := runPool(ctx, pool, work, func(rec FileRecord) {
		sum, err := utils.QuickHash(d.opts.Fs, rec.Path, d.opts.QuickHashBytes)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			d.recordSkip(result, rec.Path, err)
			return
		}
		k := prefixKey{rec.Size, sum}
		byPrefix[k] = append(byPrefix[k], rec)
	})
	if err != nil {
		return nil, err
	}

	for _, files := range byPrefix {
		if len(files) >= 2 {
			small = append(small, files)
		}
	}
	return small, nil
}

// hashBuckets computes the full digest of every candidate
func (d *DuplicateGrouper) hashBuckets(ctx context.Context, pool *ants.Pool, buckets [][]FileRecord, result *ScanResult) (map[DigestKey][]FileRecord, error) {
	var mu sync.Mutex
	byDigest := make(map[DigestKey][]FileRecord)

	var work []FileRecord
	for _, files := range buckets {
		work = append(work, files...)
	}

	err := runPool(ctx, pool, work, func(rec FileRecord) {
		digest, err := utils.HashFile(d.opts.Fs, rec.Path)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			d.recordSkip(result, rec.Path, err)
			return
		}
		k := DigestKey{Size: rec.Size, Digest: digest}
		byDigest[k] = append(byDigest[k], rec)
	})
	return byDigest, err
}

// confirm partitions files whose digests match into byte-identical sets.
// A file that cannot be read is dropped from whichever side it was on.
func (d *DuplicateGrouper) confirm(ctx context.Context, files []FileRecord, result *ScanResult) [][]FileRecord {
	var parts [][]FileRecord

next:
	for _, f := range files {
		if ctx.Err() != nil {
			return nil
		}
		for i := 0; i < len(parts); {
			head := parts[i][0]
			equal, err := utils.FilesEqual(d.opts.Fs, head.Path, f.Path)
			if err != nil {
				failed := failedPath(err, f.Path)
				d.recordSkip(result, failed, err)
				if failed != head.Path {
					continue next
				}
				parts[i] = parts[i][1:]
				if len(parts[i]) == 0 {
					parts = append(parts[:i], parts[i+1:]...)
				}
				continue
			}
			if equal {
				parts[i] = append(parts[i], f)
				continue next
			}
			i++
		}
		parts = append(parts, []FileRecord{f})
	}
	return parts
}

// failedPath returns the path an I/O error refers to
func failedPath(err error, fallback string) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Path != "" {
		return e.Path
	}
	return fallback
}

// recordSkip must be called with the caller's lock held or from a single
// goroutine
func (d *DuplicateGrouper) recordSkip(result *ScanResult, path string, err error) {
	kind := errs.KindOf(err)
	d.opts.Logger.Debug().Str("path", path).Str("kind", kind.String()).Err(err).Msg("excluding file from duplicate scan")
	result.Skipped = append(result.Skipped, SkippedPath{Path: path, Kind: kind, Err: err})
}

// runPool runs fn for every record on pool. Cancellation is checked
// before each task starts.
func runPool(ctx context.Context, pool *ants.Pool, records []FileRecord, fn func(FileRecord)) error {
	var wg sync.WaitGroup

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		rec := rec
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			fn(rec)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}

	wg.Wait()
	return ctx.Err()
}

// sortRetainedFirst orders group members oldest first, then by path
func sortRetainedFirst(files []FileRecord) {
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.Before(files[j].ModTime)
		}
		return files[i].Path < files[j].Path
	})
}
