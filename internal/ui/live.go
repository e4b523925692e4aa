package ui

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/session"
)

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or 80 when it is not a terminal
func TerminalWidth(f *os.File) int {
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// LogProgress writes scan progress as plain log lines for non-interactive
// output. It returns when the session leaves the scanning state or ctx is
// done.
func LogProgress(ctx context.Context, ctrl ScanController, h session.Handle, logger zerolog.Logger, every time.Duration) (session.Progress, error) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		p, err := ctrl.Progress(h)
		if err != nil {
			return p, err
		}
		if p.State != session.StateScanning {
			return p, nil
		}

		logger.Info().
			Str("phase", string(p.Phase)).
			Uint64("items", p.ItemsFound).
			Uint64("bytes", p.BytesFound).
			Msg(progress.FormatScanProgress(&progress.ScanProgress{
				Phase:      p.Phase,
				ItemsFound: p.ItemsFound,
				BytesFound: p.BytesFound,
				StartTime:  time.Now().Add(-p.Elapsed),
			}))

		select {
		case <-ctx.Done():
			return p, ctx.Err()
		case <-ticker.C:
		}
	}
}

// LogDeletion returns a deletion callback that logs every step with an
// estimate of the time left
func LogDeletion(logger zerolog.Logger) cleaner.ProgressFunc {
	start := time.Now()
	return func(completed, total int) {
		logger.Info().
			Int("completed", completed).
			Int("total", total).
			Msg(progress.FormatCleanProgress(&progress.CleanProgress{
				Phase:     progress.PhaseCleaning,
				Completed: completed,
				Total:     total,
				StartTime: start,
			}))
	}
}
