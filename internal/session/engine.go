// Package session runs one user-initiated scan at a time and turns the
// caller's selection from its result into a deletion batch.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/classifier"
	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/errs"
	"github.com/fenilsonani/reclaim/internal/permission"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/trash"
)

// State is the lifecycle position of a scan session
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	// StateFailed is reached only when the scan could not run at all.
	StateFailed State = "failed"
)

// Handle identifies a scan session
type Handle string

// Progress is a consistent snapshot of a session
type Progress struct {
	State      State
	Phase      progress.Phase
	ItemsFound uint64
	BytesFound uint64
	Elapsed    time.Duration
}

// DeleteOptions controls one deletion batch
type DeleteOptions struct {
	// Permanent skips the trash for junk and duplicate deletions.
	Permanent  bool
	OnProgress cleaner.ProgressFunc
}

// Options configures an Engine
type Options struct {
	Gate       permission.Gate
	Validator  *security.PathValidator
	Classifier *classifier.Classifier
	// JunkRoots are the roots a junk scan walks when none are given.
	JunkRoots  []platform.JunkRoot
	Walk       scanner.WalkOptions
	Duplicates scanner.DuplicateOptions
	// AppDirs are listed by InstalledApps, keeping AppExtensions entries.
	AppDirs       []string
	AppExtensions []string
	MinAge        time.Duration
	Fs            afero.Fs
	Bin           *trash.Bin
	MaxRetries    int
	// ManifestDir receives a manifest file per deletion batch when set.
	ManifestDir string
	Reporter    *progress.ProgressReporter
	// ProgressInterval is how often a running scan is pushed to Reporter.
	ProgressInterval time.Duration
	Logger           zerolog.Logger
}

type session struct {
	handle    Handle
	kind      scanner.Kind
	state     State
	started   time.Time
	finished  time.Time
	collector *scanner.Collector
	cancel    context.CancelFunc
	done      chan struct{}
	stopWatch chan struct{}
	watched   chan struct{}
	result    *scanner.ScanResult
	err       error
}

// Engine owns the current scan session and the latest completed result
type Engine struct {
	opts Options

	mu      sync.Mutex
	current *session
	latest  *scanner.ScanResult
	trashed []trash.Item
	listed  bool
}

// New creates an Engine
func New(opts Options) *Engine {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Gate == nil {
		opts.Gate = permission.AllowAll
	}
	if opts.Validator == nil {
		opts.Validator = security.NewPathValidator()
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New(classifier.RulesFromPlatform(opts.JunkRoots), opts.Validator, nil)
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.NewProgressReporter()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 100 * time.Millisecond
	}
	opts.Walk.Fs = opts.Fs
	opts.Duplicates.Fs = opts.Fs
	opts.Duplicates.Validator = opts.Validator
	opts.Walk.Logger = opts.Logger
	opts.Duplicates.Logger = opts.Logger
	return &Engine{opts: opts}
}

// Reporter returns the progress reporter scans and deletions publish to
func (e *Engine) Reporter() *progress.ProgressReporter {
	return e.opts.Reporter
}

// Subscribe returns a channel receiving *progress.ScanProgress and
// *progress.CleanProgress updates
func (e *Engine) Subscribe() <-chan interface{} {
	return e.opts.Reporter.Subscribe()
}

// Unsubscribe stops updates on ch
func (e *Engine) Unsubscribe(ch <-chan interface{}) {
	e.opts.Reporter.Unsubscribe(ch)
}

// StartDuplicateScan begins a duplicate scan below root
func (e *Engine) StartDuplicateScan(root string) (Handle, error) {
	if !filepath.IsAbs(root) {
		return "", fmt.Errorf("scan root must be absolute: %s", root)
	}
	root = filepath.Clean(root)

	return e.begin(scanner.KindDuplicates, nil, func(ctx context.Context, c *scanner.Collector) (*scanner.ScanResult, error) {
		walker := scanner.NewWalker(e.opts.Walk)
		grouper := scanner.NewDuplicateGrouper(e.opts.Duplicates)
		return grouper.Group(ctx, walker.Walk(ctx, []string{root}), c)
	})
}

// StartJunkScan begins a junk scan of roots, or of the configured junk
// roots when roots is empty
func (e *Engine) StartJunkScan(roots []string) (Handle, error) {
	if len(roots) == 0 {
		for _, r := range e.opts.JunkRoots {
			roots = append(roots, r.Path)
		}
	}
	for _, r := range roots {
		if !filepath.IsAbs(r) {
			return "", fmt.Errorf("scan root must be absolute: %s", r)
		}
	}
	roots = append([]string(nil), roots...)

	return e.begin(scanner.KindJunk, e.authorize, func(ctx context.Context, c *scanner.Collector) (*scanner.ScanResult, error) {
		walker := scanner.NewWalker(e.opts.Walk)
		js := scanner.NewJunkScanner(walker, e.opts.Classifier, scanner.JunkOptions{
			MinAge: e.opts.MinAge,
			Logger: e.opts.Logger,
		})
		return js.ScanWith(ctx, roots, c)
	})
}

func (e *Engine) authorize() error {
	if !e.opts.Gate.IsAuthorized(permission.FullDiskAccess) {
		return fmt.Errorf("%s: %w", permission.FullDiskAccess, errs.ErrPermissionDenied)
	}
	return nil
}

type scanFunc func(ctx context.Context, c *scanner.Collector) (*scanner.ScanResult, error)

// begin registers a new session and runs scan in the background. Nothing
// changes when a scan is already running or check fails.
func (e *Engine) begin(kind scanner.Kind, check func() error, scan scanFunc) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && e.current.state == StateScanning {
		return "", errs.ErrScanAlreadyRunning
	}
	if check != nil {
		if err := check(); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		handle:    Handle(uuid.NewString()),
		kind:      kind,
		state:     StateScanning,
		started:   time.Now(),
		collector: scanner.NewCollector(),
		cancel:    cancel,
		done:      make(chan struct{}),
		stopWatch: make(chan struct{}),
		watched:   make(chan struct{}),
	}
	e.current = s
	e.latest = nil

	e.opts.Logger.Info().
		Str("session", string(s.handle)).
		Str("kind", string(kind)).
		Msg("scan started")

	go e.run(ctx, s, scan)
	go e.watch(s)
	return s.handle, nil
}

func (e *Engine) run(ctx context.Context, s *session, scan scanFunc) {
	defer close(s.done)
	defer s.cancel()

	result, err := scan(ctx, s.collector)
	close(s.stopWatch)
	<-s.watched

	e.mu.Lock()
	if s.finished.IsZero() {
		s.finished = time.Now()
	}
	switch {
	case s.state == StateCancelled:
		// Result discarded; Cancel already moved the state.
	case err != nil && ctx.Err() != nil:
		s.state = StateCancelled
	case err != nil:
		s.state = StateFailed
		s.err = err
	default:
		s.state = StateCompleted
		s.result = result
		if e.current == s {
			e.latest = result
		}
	}
	state, failure := s.state, s.err
	e.mu.Unlock()

	// The final update lands before Wait returns.
	e.publish(s)

	event := e.opts.Logger.Info().
		Str("session", string(s.handle)).
		Str("state", string(state)).
		Dur("elapsed", s.finished.Sub(s.started))
	if result != nil && state == StateCompleted {
		event = event.Int("items", result.ItemCount()).Uint64("bytes", result.TotalBytes).Int("skipped", len(result.Skipped))
	}
	if failure != nil {
		event = event.Err(failure)
	}
	event.Msg("scan finished")
}

// watch pushes the session's progress to the reporter while the scan runs
func (e *Engine) watch(s *session) {
	defer close(s.watched)
	ticker := time.NewTicker(e.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopWatch:
			return
		case <-ticker.C:
			e.publish(s)
		}
	}
}

func (e *Engine) publish(s *session) {
	p, err := e.snapshot(s)
	phase := p.Phase
	switch p.State {
	case StateCompleted:
		phase = progress.PhaseComplete
	case StateCancelled:
		phase = progress.PhaseCancelled
	case StateFailed:
		phase = progress.PhaseError
	}
	e.opts.Reporter.UpdateScanProgress(&progress.ScanProgress{
		Session:    string(s.handle),
		Kind:       string(s.kind),
		Phase:      phase,
		ItemsFound: p.ItemsFound,
		BytesFound: p.BytesFound,
		StartTime:  s.started,
		Error:      err,
	})
}

// snapshot reads the session's counts and state, plus the failure of a
// failed session
func (e *Engine) snapshot(s *session) (Progress, error) {
	phase, count, bytes := s.collector.Snapshot()
	e.mu.Lock()
	state, err, end := s.state, s.err, s.finished
	e.mu.Unlock()
	if end.IsZero() {
		end = time.Now()
	}
	return Progress{
		State:      state,
		Phase:      phase,
		ItemsFound: count,
		BytesFound: bytes,
		Elapsed:    end.Sub(s.started),
	}, err
}

func (e *Engine) lookup(h Handle) (*session, error) {
	if e.current == nil || e.current.handle != h {
		return nil, fmt.Errorf("%s: %w", h, errs.ErrUnknownSession)
	}
	return e.current, nil
}

// Cancel stops a running scan. The session is Cancelled when Cancel
// returns and its partial result is discarded. Cancelling a finished
// session does nothing.
func (e *Engine) Cancel(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookup(h)
	if err != nil {
		return err
	}
	if s.state != StateScanning {
		return nil
	}
	s.state = StateCancelled
	s.finished = time.Now()
	s.cancel()
	e.opts.Logger.Info().Str("session", string(h)).Msg("scan cancelled")
	return nil
}

// Progress returns the session's state and running counts
func (e *Engine) Progress(h Handle) (Progress, error) {
	e.mu.Lock()
	s, err := e.lookup(h)
	e.mu.Unlock()
	if err != nil {
		return Progress{}, err
	}
	p, _ := e.snapshot(s)
	return p, nil
}

// Result returns the session's result once it has completed. ok is false
// while scanning and for cancelled or failed sessions.
func (e *Engine) Result(h Handle) (*scanner.ScanResult, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookup(h)
	if err != nil {
		return nil, false, err
	}
	if s.state != StateCompleted {
		return nil, false, nil
	}
	return s.result, true, nil
}

// Wait blocks until the session stops scanning or ctx is done
func (e *Engine) Wait(ctx context.Context, h Handle) (State, error) {
	e.mu.Lock()
	s, err := e.lookup(h)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return s.state, s.err
}

// Current returns the handle of the latest session, if any
func (e *Engine) Current() (Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return "", false
	}
	return e.current.handle, true
}
