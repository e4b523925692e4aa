package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fenilsonani/reclaim/internal/config"
)

// ScanJob represents a scheduled scan
type ScanJob struct {
	Name       string
	Schedule   string
	Kind       string
	Roots      []string
	Clean      bool
	SkipIfBusy bool
	NextRun    time.Time
	LastRun    time.Time
}

func jobFromSchedule(schedule config.ScanSchedule) *ScanJob {
	return &ScanJob{
		Name:       schedule.Name,
		Schedule:   schedule.Schedule,
		Kind:       schedule.Kind,
		Roots:      append([]string(nil), schedule.Roots...),
		Clean:      schedule.Clean,
		SkipIfBusy: schedule.SkipIfBusy,
	}
}

// Runner executes one job
type Runner interface {
	RunJob(job *ScanJob) (*JobResult, error)
}

// cronLogger routes cron's own messages to zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// Parser accepts standard five-field expressions and descriptors such as
// @daily or @every 1h
var Parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether expr parses as a schedule
func ValidateSchedule(expr string) error {
	if _, err := Parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler manages scheduled scan jobs
type Scheduler struct {
	runner    Runner
	cron      *cron.Cron
	jobs      map[string]cron.EntryID
	specs     map[string]*ScanJob
	jobsMu    sync.RWMutex
	running   bool
	schedules []config.ScanSchedule
	logger    zerolog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(runner Runner, schedules []config.ScanSchedule, logger zerolog.Logger) *Scheduler {
	cl := cronLogger{log: logger}
	c := cron.New(cron.WithParser(Parser), cron.WithLogger(cl), cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))

	return &Scheduler{
		runner:    runner,
		cron:      c,
		jobs:      make(map[string]cron.EntryID),
		specs:     make(map[string]*ScanJob),
		schedules: schedules,
		logger:    logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	for _, schedule := range s.schedules {
		if err := s.addJobInternal(schedule); err != nil {
			return fmt.Errorf("failed to add schedule %s: %w", schedule.Name, err)
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("scheduler stop timed out")
	}

	s.running = false
	s.logger.Info().Msg("scheduler stopped")
}

// addJobInternal adds a job (internal, no lock)
func (s *Scheduler) addJobInternal(schedule config.ScanSchedule) error {
	if _, exists := s.jobs[schedule.Name]; exists {
		return fmt.Errorf("job %s already exists", schedule.Name)
	}

	job := jobFromSchedule(schedule)
	id, err := s.cron.AddFunc(schedule.Schedule, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobs[schedule.Name] = id
	s.specs[schedule.Name] = job
	job.NextRun = s.cron.Entry(id).Next

	s.logger.Info().Str("job", schedule.Name).Time("next_run", job.NextRun).Msg("job added")
	return nil
}

func (s *Scheduler) execute(job *ScanJob) {
	s.jobsMu.Lock()
	job.LastRun = time.Now()
	s.jobsMu.Unlock()

	s.logger.Info().Str("job", job.Name).Msg("executing scheduled job")
	if _, err := s.runner.RunJob(job); err != nil {
		s.logger.Error().Err(err).Str("job", job.Name).Msg("job failed")
	}
}

// AddJob adds a new job to the scheduler
func (s *Scheduler) AddJob(schedule config.ScanSchedule) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	return s.addJobInternal(schedule)
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(name string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	id, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.specs, name)

	s.logger.Info().Str("job", name).Msg("job removed")
	return nil
}

// GetNextRun returns the next run time for a job
func (s *Scheduler) GetNextRun(name string) (time.Time, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	id, exists := s.jobs[name]
	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", name)
	}

	return s.cron.Entry(id).Next, nil
}

// ListJobs returns information about all jobs
func (s *Scheduler) ListJobs() []JobInfo {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	names := make(map[cron.EntryID]string, len(s.jobs))
	for n, id := range s.jobs {
		names[id] = n
	}

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, entry := range s.cron.Entries() {
		if name, ok := names[entry.ID]; ok {
			jobs = append(jobs, JobInfo{
				Name:    name,
				NextRun: entry.Next,
				PrevRun: entry.Prev,
			})
		}
	}

	return jobs
}

// TriggerJob runs a job now, outside its schedule
func (s *Scheduler) TriggerJob(name string) (*JobResult, error) {
	s.jobsMu.RLock()
	job, exists := s.specs[name]
	s.jobsMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}

	s.logger.Info().Str("job", name).Msg("manually triggering job")
	return s.runner.RunJob(job)
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	PrevRun time.Time
}
