package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/reclaim/internal/errs"
)

// ErrDirTimeout is returned for a directory whose listing exceeded
// WalkOptions.DirTimeout
var ErrDirTimeout = errors.New("directory read timed out")

// packageExtensions are directory bundles treated as a single item
var packageExtensions = map[string]bool{
	".app":           true,
	".bundle":        true,
	".framework":     true,
	".kext":          true,
	".photoslibrary": true,
	".pkg":           true,
	".plugin":        true,
	".xcarchive":     true,
	".xcodeproj":     true,
	".xcworkspace":   true,
}

// WalkEvent carries either a record or a skipped path
type WalkEvent struct {
	Record  FileRecord
	Skipped *SkippedPath
}

// WalkOptions configures a Walker
type WalkOptions struct {
	SkipHidden     bool
	SkipPackages   bool
	FollowSymlinks bool
	Workers        int
	DirTimeout     time.Duration
	Fs             afero.Fs
	Logger         zerolog.Logger
}

// Walker enumerates directory trees concurrently
type Walker struct {
	opts WalkOptions
}

// NewWalker creates a walker, filling unset options with defaults
func NewWalker(opts WalkOptions) *Walker {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
		if opts.Workers < 4 {
			opts.Workers = 4 // Minimum 4 workers for I/O parallelism
		}
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Walker{opts: opts}
}

// walk holds the state of a single Walk call
type walk struct {
	*Walker
	ctx context.Context
	out chan<- WalkEvent

	mu      sync.Mutex
	visited map[string]struct{}
}

// Walk enumerates every regular file below roots. Each root and each of
// its immediate subdirectories is one task on a bounded pool; a task walks
// its subtree depth first. The returned channel is closed once all tasks
// have finished or ctx is cancelled.
func (w *Walker) Walk(ctx context.Context, roots []string) <-chan WalkEvent {
	out := make(chan WalkEvent, 256)

	go func() {
		defer close(out)

		st := &walk{Walker: w, ctx: ctx, out: out, visited: make(map[string]struct{})}

		var g errgroup.Group
		g.SetLimit(w.opts.Workers)

		for _, root := range normalizeRoots(roots) {
			if ctx.Err() != nil {
				break
			}
			st.dispatchRoot(&g, root)
		}

		_ = g.Wait()
	}()

	return out
}

// dispatchRoot lists a root and hands each subdirectory to the pool
func (st *walk) dispatchRoot(g *errgroup.Group, root string) {
	info, err := st.opts.Fs.Stat(root)
	if err != nil {
		st.skip(root, err)
		return
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			st.emit(st.record(root, info))
		}
		return
	}
	if !st.markVisited(root) {
		return
	}

	entries, err := st.readDir(root)
	if err != nil {
		st.skip(root, err)
		return
	}

	for _, entry := range entries {
		dir, ok := st.visit(root, entry)
		if !ok {
			continue
		}
		g.Go(func() error {
			st.walkDir(dir)
			return nil
		})
	}
}

// walkDir walks dir depth first on the current goroutine
func (st *walk) walkDir(dir string) {
	if st.ctx.Err() != nil {
		return
	}

	entries, err := st.readDir(dir)
	if err != nil {
		st.skip(dir, err)
		return
	}

	for _, entry := range entries {
		if sub, ok := st.visit(dir, entry); ok {
			st.walkDir(sub)
		}
	}
}

// visit handles one directory entry. It emits files and bundles and
// returns the path of a directory that should be descended into.
func (st *walk) visit(parent string, info os.FileInfo) (string, bool) {
	name := info.Name()
	path := filepath.Join(parent, name)

	if st.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return "", false
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !st.opts.FollowSymlinks {
			return "", false
		}
		target, err := st.opts.Fs.Stat(path)
		if err != nil {
			st.skip(path, err)
			return "", false
		}
		// Linked files are never emitted: deleting a "duplicate" that is
		// the target of a link would break the link.
		if !target.IsDir() {
			return "", false
		}
		info = target
	}

	switch {
	case info.IsDir():
		if st.opts.SkipPackages && packageExtensions[strings.ToLower(filepath.Ext(name))] {
			st.emit(FileRecord{
				Path:    path,
				Size:    st.dirSize(path),
				IsDir:   true,
				ModTime: info.ModTime(),
			})
			return "", false
		}
		if !st.markVisited(path) {
			return "", false
		}
		return path, true
	case info.Mode().IsRegular():
		st.emit(st.record(path, info))
	}
	return "", false
}

// markVisited records a directory; it returns false if the directory was
// already walked. Only consulted when following symlinks.
func (st *walk) markVisited(dir string) bool {
	if !st.opts.FollowSymlinks {
		return true
	}

	key := dir
	if _, ok := st.opts.Fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			key = resolved
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, seen := st.visited[key]; seen {
		return false
	}
	st.visited[key] = struct{}{}
	return true
}

type readResult struct {
	entries []os.FileInfo
	err     error
}

// readDir lists dir, giving up after DirTimeout so a hung mount only
// stalls its own branch
func (st *walk) readDir(dir string) ([]os.FileInfo, error) {
	if st.opts.DirTimeout <= 0 {
		return afero.ReadDir(st.opts.Fs, dir)
	}

	done := make(chan readResult, 1)
	go func() {
		entries, err := afero.ReadDir(st.opts.Fs, dir)
		done <- readResult{entries, err}
	}()

	timer := time.NewTimer(st.opts.DirTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.entries, r.err
	case <-timer.C:
		return nil, errs.New(errs.PathUnreadable, dir, ErrDirTimeout)
	case <-st.ctx.Done():
		return nil, st.ctx.Err()
	}
}

// dirSize sums the regular files below dir without following links
func (st *walk) dirSize(dir string) uint64 {
	var total uint64
	_ = afero.Walk(st.opts.Fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if st.ctx.Err() != nil {
			return filepath.SkipDir
		}
		if info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

func (st *walk) record(path string, info os.FileInfo) FileRecord {
	return FileRecord{
		Path:    path,
		Size:    uint64(info.Size()),
		ModTime: info.ModTime(),
	}
}

func (st *walk) emit(rec FileRecord) {
	select {
	case st.out <- WalkEvent{Record: rec}:
	case <-st.ctx.Done():
	}
}

func (st *walk) skip(path string, err error) {
	if st.ctx.Err() != nil {
		return
	}
	e := errs.Categorize(path, err)
	st.opts.Logger.Debug().Str("path", path).Str("kind", e.Kind.String()).Err(err).Msg("skipping unreadable path")

	select {
	case st.out <- WalkEvent{Skipped: &SkippedPath{Path: path, Kind: e.Kind, Err: err}}:
	case <-st.ctx.Done():
	}
}

// normalizeRoots cleans roots, drops duplicates and roots nested inside
// another root so every file is visited once
func normalizeRoots(roots []string) []string {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(r))
	}
	sort.Strings(cleaned)

	result := make([]string, 0, len(cleaned))
next:
	for _, r := range cleaned {
		for _, kept := range result {
			if r == kept || isWithin(r, kept) {
				continue next
			}
		}
		result = append(result, r)
	}
	return result
}

// isWithin reports whether path lies strictly below dir
func isWithin(path, dir string) bool {
	if dir == string(filepath.Separator) {
		return path != dir
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
