package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/session"
	"github.com/fenilsonani/reclaim/internal/sysstats"
)

// ErrBusy is returned for a skip_if_busy job while the host is loaded
var ErrBusy = errors.New("system busy")

// JobResult summarizes one job execution
type JobResult struct {
	Name       string
	Kind       string
	State      session.State
	Skipped    bool
	CPUPercent float64
	Items      int
	Bytes      uint64
	Outcome    *cleaner.Outcome
	Duration   time.Duration
	// Summary is the last progress line of the scan and, after a
	// cleanup, of the deletion
	Summary []string
}

// Daemon runs scheduled scans against an Engine
type Daemon struct {
	config      *config.Config
	engine      *session.Engine
	stats       sysstats.Provider
	scheduler   *Scheduler
	logger      zerolog.Logger
	running     bool
	shutdownCtx context.Context
	cancelFunc  context.CancelFunc
	mu          sync.RWMutex
	// JobTimeout bounds a single scan. Zero means no bound.
	JobTimeout time.Duration
}

// New creates a new daemon instance
func New(cfg *config.Config, engine *session.Engine, stats sysstats.Provider, logger zerolog.Logger) (*Daemon, error) {
	if cfg.Daemon == nil || !cfg.Daemon.Enabled {
		return nil, fmt.Errorf("daemon not enabled in configuration")
	}
	for _, s := range cfg.Daemon.Schedules {
		if err := ValidateSchedule(s.Schedule); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", s.Name, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:      cfg,
		engine:      engine,
		stats:       stats,
		logger:      logger.With().Str("component", "daemon").Logger(),
		shutdownCtx: ctx,
		cancelFunc:  cancel,
	}
	d.scheduler = NewScheduler(d, cfg.Daemon.Schedules, d.logger)
	return d, nil
}

// Scheduler returns the daemon's scheduler
func (d *Daemon) Scheduler() *Scheduler {
	return d.scheduler
}

// Start runs the daemon until Stop is called or a termination signal
// arrives
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	d.logger.Info().Msg("starting reclaim daemon")

	if err := d.acquireLock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer d.releaseLock()

	if err := d.writePidFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer d.removePidFile()

	stopSignals := d.setupSignalHandlers()
	defer stopSignals()

	if err := d.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer d.scheduler.Stop()

	d.logger.Info().Msg("daemon started")

	<-d.shutdownCtx.Done()

	d.logger.Info().Msg("daemon shutting down")
	return nil
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
}

// IsRunning returns whether the daemon is running
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// RunJob executes one scheduled scan and, for cleaning junk jobs, deletes
// everything it found
func (d *Daemon) RunJob(job *ScanJob) (*JobResult, error) {
	ctx := d.shutdownCtx
	if d.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	res := &JobResult{Name: job.Name, Kind: job.Kind}
	log := d.logger.With().Str("job", job.Name).Logger()

	if job.SkipIfBusy {
		busy, cpu, err := sysstats.Busy(ctx, d.stats, d.config.Daemon.CPUThreshold)
		if err != nil {
			log.Warn().Err(err).Msg("could not read system load, running anyway")
		}
		res.CPUPercent = cpu
		if busy {
			res.Skipped = true
			log.Info().Float64("cpu_percent", cpu).Msg("system busy, skipping job")
			return res, ErrBusy
		}
	}

	var (
		h   session.Handle
		err error
	)
	switch job.Kind {
	case config.ScheduleJunk:
		h, err = d.engine.StartJunkScan(job.Roots)
	case config.ScheduleDuplicates:
		if len(job.Roots) != 1 {
			return res, fmt.Errorf("duplicate job needs exactly one root")
		}
		h, err = d.engine.StartDuplicateScan(job.Roots[0])
	default:
		return res, fmt.Errorf("unknown job kind: %s", job.Kind)
	}
	if err != nil {
		return res, fmt.Errorf("failed to start scan: %w", err)
	}

	state, err := d.engine.Wait(ctx, h)
	if err != nil && ctx.Err() != nil {
		_ = d.engine.Cancel(h)
		state, _ = d.engine.Wait(context.Background(), h)
	}
	res.State = state
	if state != session.StateCompleted {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("scan ended %s", state)
	}

	result, _, err := d.engine.Result(h)
	if err != nil {
		return res, err
	}
	res.Items = result.ItemCount()
	res.Bytes = result.TotalBytes
	res.Summary = append(res.Summary, progress.FormatScanProgress(d.engine.Reporter().GetScanProgress()))
	log.Info().Int("items", res.Items).Uint64("bytes", res.Bytes).Msg("scan completed")

	if job.Clean && job.Kind == config.ScheduleJunk && len(result.Junk) > 0 {
		paths := make([]string, 0, len(result.Junk))
		for _, item := range result.Junk {
			paths = append(paths, item.Record.Path)
		}
		out, err := d.engine.RequestDeletion(ctx, paths, session.DeleteOptions{
			Permanent: d.config.Deletion.Permanent,
		})
		if err != nil {
			return res, fmt.Errorf("cleanup failed: %w", err)
		}
		res.Outcome = &out
		res.Summary = append(res.Summary, progress.FormatCleanProgress(d.engine.Reporter().GetCleanProgress()))
		log.Info().
			Int("attempted", out.Attempted).
			Int("succeeded", out.Succeeded).
			Uint64("bytes_freed", out.BytesFreed).
			Msg("cleanup completed")
	}

	res.Duration = time.Since(start)
	return res, nil
}

// setupSignalHandlers stops the daemon on SIGINT or SIGTERM. The returned
// func releases the handlers.
func (d *Daemon) setupSignalHandlers() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			d.logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			d.Stop()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

func (d *Daemon) pidFile() string {
	if d.config.Daemon.PidFile != "" {
		return d.config.Daemon.PidFile
	}
	return filepath.Join(os.TempDir(), "reclaim.pid")
}

// acquireLock acquires the lock file
func (d *Daemon) acquireLock() error {
	lockFile := d.pidFile() + ".lock"

	file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("daemon already running (lock file exists)")
		}
		return err
	}

	_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	file.Close()
	return err
}

// releaseLock releases the lock file
func (d *Daemon) releaseLock() error {
	return os.Remove(d.pidFile() + ".lock")
}

// writePidFile writes the PID file
func (d *Daemon) writePidFile() error {
	return os.WriteFile(d.pidFile(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// removePidFile removes the PID file
func (d *Daemon) removePidFile() error {
	return os.Remove(d.pidFile())
}
