package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/errs"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// ProgressFunc receives (completed, total) after every attempt. It runs on
// a separate goroutine and may miss intermediate values, never the last.
type ProgressFunc func(completed, total int)

// DefaultRetryDelays is the back-off used for busy files
var DefaultRetryDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2 * time.Second,
}

// flushTimeout bounds how long Delete waits for the progress callback
const flushTimeout = 2 * time.Second

// ItemOutcome is the result for one path
type ItemOutcome struct {
	Path      string
	Succeeded bool
	Kind      errs.Kind
	Err       error
}

// Outcome is the result of one deletion batch
type Outcome struct {
	Items      []ItemOutcome
	Attempted  int
	Succeeded  int
	BytesFreed uint64
	Cancelled  bool
}

// Failed returns the outcomes of paths that were not removed
func (o Outcome) Failed() []ItemOutcome {
	var failed []ItemOutcome
	for _, item := range o.Items {
		if !item.Succeeded {
			failed = append(failed, item)
		}
	}
	return failed
}

// Options configures an Executor
type Options struct {
	Remover   Remover
	Validator *security.PathValidator
	Fs        afero.Fs
	// MaxRetries bounds attempts for busy files
	MaxRetries  int
	RetryDelays []time.Duration
	// AllowSymlinks permits removing symlinks as links (trash entries)
	AllowSymlinks bool
	Manifest      *DeletionManifest
	Reporter      *progress.ProgressReporter
	Logger        zerolog.Logger
}

// Executor deletes caller-approved paths one at a time
type Executor struct {
	opts   Options
	method string
}

// New creates an Executor
func New(opts Options) *Executor {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Remover == nil {
		opts.Remover = PermanentRemover{Fs: opts.Fs}
	}
	if opts.Validator == nil {
		opts.Validator = security.NewPathValidator()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelays == nil {
		opts.RetryDelays = DefaultRetryDelays
	}

	method := "permanent"
	if _, ok := opts.Remover.(TrashRemover); ok {
		method = "trash"
	}
	return &Executor{opts: opts, method: method}
}

// Delete removes exactly the given records, in order, serially. A failure
// is recorded and the batch moves on. Cancellation stops before the next
// path; paths not reached are not part of the outcome.
func (e *Executor) Delete(ctx context.Context, records []scanner.FileRecord, onProgress ProgressFunc) Outcome {
	total := len(records)
	start := time.Now()
	out := Outcome{Items: make([]ItemOutcome, 0, total)}

	relay := newProgressRelay(onProgress)
	defer relay.flush(flushTimeout)

	e.report(progress.PhaseCleaning, out, total, start)

	for _, rec := range records {
		if ctx.Err() != nil {
			out.Cancelled = true
			break
		}

		item := e.deleteWithRetry(ctx, rec)
		out.Items = append(out.Items, item)
		out.Attempted++
		if item.Succeeded {
			out.Succeeded++
			out.BytesFreed += rec.Size
			if e.opts.Manifest != nil {
				e.opts.Manifest.Add(rec.Path, rec.Size, e.method)
			}
		} else {
			e.opts.Logger.Warn().
				Str("path", item.Path).
				Str("kind", item.Kind.String()).
				Err(item.Err).
				Msg("deletion failed")
		}

		relay.send(out.Attempted, total)
		e.report(progress.PhaseCleaning, out, total, start)
	}

	e.report(progress.PhaseComplete, out, total, start)
	e.opts.Logger.Info().
		Int("attempted", out.Attempted).
		Int("succeeded", out.Succeeded).
		Uint64("freed", out.BytesFreed).
		Bool("cancelled", out.Cancelled).
		Msg("deletion batch finished")

	return out
}

// deleteWithRetry attempts to delete a path with retries for transient errors
func (e *Executor) deleteWithRetry(ctx context.Context, rec scanner.FileRecord) ItemOutcome {
	var last *errs.Error

	for attempt := 0; attempt < e.opts.MaxRetries; attempt++ {
		last = e.deleteOne(rec)
		if last == nil {
			return ItemOutcome{Path: rec.Path, Succeeded: true}
		}
		if !last.Retryable {
			break
		}

		// File is in use or temporarily unavailable
		// On last attempt, don't sleep
		if attempt < e.opts.MaxRetries-1 {
			delay := e.opts.RetryDelays[min(attempt, len(e.opts.RetryDelays)-1)]
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ItemOutcome{Path: rec.Path, Kind: last.Kind, Err: last}
			}
		}
	}

	return ItemOutcome{Path: rec.Path, Kind: last.Kind, Err: last}
}

// deleteOne performs the safety checks and removes one path
func (e *Executor) deleteOne(rec scanner.FileRecord) *errs.Error {
	if err := e.opts.Validator.ValidatePathForDeletion(rec.Path); err != nil {
		return errs.New(errs.DeletionFailed, rec.Path, fmt.Errorf("safety check failed: %w", err))
	}

	// Use Lstat to not follow symlinks (prevents TOCTOU attacks)
	info, err := e.lstat(rec.Path)
	if err != nil {
		return errs.CategorizeDeletion(rec.Path, err)
	}

	if reason := specialFileReason(info.Mode()); reason != "" {
		return errs.New(errs.DeletionFailed, rec.Path, fmt.Errorf("refusing to delete special file: %s", reason))
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !e.opts.AllowSymlinks {
			return errs.New(errs.DeletionFailed, rec.Path, errors.New("path changed to symlink"))
		}
	} else if info.IsDir() && !rec.IsDir {
		return errs.New(errs.DeletionFailed, rec.Path, errors.New("path changed to directory"))
	}

	isDir := info.IsDir() && info.Mode()&os.ModeSymlink == 0
	if err := e.opts.Remover.Remove(rec.Path, isDir); err != nil {
		return errs.CategorizeDeletion(rec.Path, err)
	}
	return nil
}

// specialFileReason names device, socket and pipe modes
func specialFileReason(mode os.FileMode) string {
	switch {
	case mode&os.ModeCharDevice != 0:
		return "is a character device"
	case mode&os.ModeDevice != 0:
		return "is a device file"
	case mode&os.ModeSocket != 0:
		return "is a socket"
	case mode&os.ModeNamedPipe != 0:
		return "is a named pipe (FIFO)"
	}
	return ""
}

func (e *Executor) lstat(path string) (os.FileInfo, error) {
	if l, ok := e.opts.Fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return e.opts.Fs.Stat(path)
}

// report publishes clean progress to listeners
func (e *Executor) report(phase progress.Phase, out Outcome, total int, start time.Time) {
	if e.opts.Reporter == nil {
		return
	}

	e.opts.Reporter.UpdateCleanProgress(&progress.CleanProgress{
		Phase:      phase,
		Completed:  out.Attempted,
		Total:      total,
		FreedBytes: out.BytesFreed,
		ErrorCount: out.Attempted - out.Succeeded,
		StartTime:  start,
	})
}

// FormatFailureSummary creates a user-friendly summary of failed items
func FormatFailureSummary(out Outcome) string {
	failed := out.Failed()
	if len(failed) == 0 {
		return ""
	}

	list := make([]*errs.Error, 0, len(failed))
	for _, item := range failed {
		list = append(list, errs.New(item.Kind, item.Path, item.Err))
	}
	byKind := errs.GroupByKind(list)
	kinds := make([]errs.Kind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "Issues encountered (%d of %d items):\n", len(failed), out.Attempted)
	for _, k := range kinds {
		group := byKind[k]
		fmt.Fprintf(&b, "   - %s: %d (first: %s)\n", k, len(group), group[0].Path)
		switch k {
		case errs.PathGoneRace:
			b.WriteString("     already removed by something else\n")
		case errs.PermissionDenied:
			b.WriteString("     grant access and retry\n")
		}
	}
	return b.String()
}

// FormatOutcome returns a one-line summary of a batch
func FormatOutcome(out Outcome) string {
	s := fmt.Sprintf("%d/%d items removed, %s freed", out.Succeeded, out.Attempted, utils.FormatBytes(out.BytesFreed))
	if out.Cancelled {
		s += " (cancelled)"
	}
	return s
}
