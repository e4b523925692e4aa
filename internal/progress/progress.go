package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/fenilsonani/reclaim/pkg/utils"
)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScanning  Phase = "scanning"
	PhaseHashing   Phase = "hashing"
	PhaseCleaning  Phase = "cleaning"
	PhaseComplete  Phase = "complete"
	PhaseCancelled Phase = "cancelled"
	PhaseError     Phase = "error"
)

// ScanProgress represents progress during scanning. There is no total:
// the size of the tree is unknown until the scan completes.
type ScanProgress struct {
	Session    string
	Kind       string
	Phase      Phase
	ItemsFound uint64
	BytesFound uint64
	StartTime  time.Time
	Error      error
}

// CleanProgress represents progress during cleanup
type CleanProgress struct {
	Phase      Phase
	Completed  int
	Total      int
	FreedBytes uint64
	ErrorCount int
	StartTime  time.Time
	Error      error
}

// ProgressReporter provides thread-safe progress reporting
type ProgressReporter struct {
	scanProgress  *ScanProgress
	cleanProgress *CleanProgress
	mu            sync.RWMutex
	listeners     []chan interface{}
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		listeners: make([]chan interface{}, 0),
	}
}

// Subscribe returns a channel that receives *ScanProgress and
// *CleanProgress updates. Slow listeners miss updates rather than
// blocking the publisher.
func (pr *ProgressReporter) Subscribe() <-chan interface{} {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	ch := make(chan interface{}, 10)
	pr.listeners = append(pr.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel
func (pr *ProgressReporter) Unsubscribe(ch <-chan interface{}) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for i, listener := range pr.listeners {
		if listener == ch {
			close(listener)
			pr.listeners = append(pr.listeners[:i], pr.listeners[i+1:]...)
			return
		}
	}
}

// UpdateScanProgress updates scan progress and notifies listeners
func (pr *ProgressReporter) UpdateScanProgress(update *ScanProgress) {
	pr.mu.Lock()
	pr.scanProgress = update
	pr.mu.Unlock()
	pr.publish(update)
}

// UpdateCleanProgress updates clean progress and notifies listeners
func (pr *ProgressReporter) UpdateCleanProgress(update *CleanProgress) {
	pr.mu.Lock()
	pr.cleanProgress = update
	pr.mu.Unlock()
	pr.publish(update)
}

func (pr *ProgressReporter) publish(update interface{}) {
	// Hold the read lock so Unsubscribe cannot close a channel mid-send
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	for _, listener := range pr.listeners {
		select {
		case listener <- update:
		default:
			// Skip if channel is full
		}
	}
}

// GetScanProgress returns the current scan progress
func (pr *ProgressReporter) GetScanProgress() *ScanProgress {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.scanProgress
}

// GetCleanProgress returns the current clean progress
func (pr *ProgressReporter) GetCleanProgress() *CleanProgress {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.cleanProgress
}

// FormatScanProgress returns a human-readable scan progress string
func FormatScanProgress(p *ScanProgress) string {
	if p == nil {
		return "Initializing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseScanning:
		return fmt.Sprintf("Scanning %s... Found %d items (%s) [%s]",
			p.Kind,
			p.ItemsFound,
			utils.FormatBytes(p.BytesFound),
			FormatDuration(elapsed))
	case PhaseHashing:
		return fmt.Sprintf("Comparing contents of %d files (%s) [%s]",
			p.ItemsFound,
			utils.FormatBytes(p.BytesFound),
			FormatDuration(elapsed))
	case PhaseComplete:
		return fmt.Sprintf("Scan complete: %d items (%s) in %s",
			p.ItemsFound,
			utils.FormatBytes(p.BytesFound),
			FormatDuration(elapsed))
	case PhaseCancelled:
		return "Scan cancelled"
	case PhaseError:
		return fmt.Sprintf("Scan error: %v", p.Error)
	default:
		return "Scanning..."
	}
}

// FormatCleanProgress returns a human-readable clean progress string
func FormatCleanProgress(p *CleanProgress) string {
	if p == nil {
		return "Preparing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseCleaning:
		percentage := 0
		if p.Total > 0 {
			percentage = (p.Completed * 100) / p.Total
		}

		eta := ""
		if p.Completed > 0 && p.Total > p.Completed {
			avgTime := elapsed / time.Duration(p.Completed)
			remaining := time.Duration(p.Total-p.Completed) * avgTime
			eta = fmt.Sprintf(" ETA: %s", FormatDuration(remaining))
		}

		return fmt.Sprintf("Cleaning... %d/%d items (%d%%)%s",
			p.Completed,
			p.Total,
			percentage,
			eta)
	case PhaseComplete:
		return fmt.Sprintf("Cleanup complete: %d/%d items, %s freed in %s",
			p.Completed-p.ErrorCount,
			p.Total,
			utils.FormatBytes(p.FreedBytes),
			FormatDuration(elapsed))
	case PhaseError:
		return fmt.Sprintf("Cleanup error: %v", p.Error)
	default:
		return "Preparing cleanup..."
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
