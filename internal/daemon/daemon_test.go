package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/session"
	"github.com/fenilsonani/reclaim/internal/sysstats"
	"github.com/fenilsonani/reclaim/internal/testutil"
	"github.com/fenilsonani/reclaim/internal/trash"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
}

func (r *fakeRunner) RunJob(job *ScanJob) (*JobResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, job.Name)
	return &JobResult{Name: job.Name}, nil
}

func testConfig(f *testutil.TestFixture, schedules ...config.ScanSchedule) *config.Config {
	cfg := config.GetDefault()
	cfg.Daemon = &config.DaemonConfig{
		Enabled:      true,
		PidFile:      filepath.Join(f.RootDir, "reclaim.pid"),
		CPUThreshold: 50,
		Schedules:    schedules,
	}
	return cfg
}

func testEngine(f *testutil.TestFixture) *session.Engine {
	return session.New(session.Options{
		Validator: security.NewEmptyPathValidator(),
		JunkRoots: []platform.JunkRoot{{Path: f.CacheDir, Kind: platform.KindCache}},
		Bin:       trash.NewBin(nil, f.TrashDir, trash.LayoutFlat),
	})
}

func TestNewRequiresEnabledDaemon(t *testing.T) {
	cfg := config.GetDefault()
	if _, err := New(cfg, nil, nil, zerolog.Nop()); err == nil {
		t.Error("expected error without daemon section")
	}

	cfg.Daemon = &config.DaemonConfig{Enabled: false}
	if _, err := New(cfg, nil, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for disabled daemon")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f, config.ScanSchedule{Name: "bad", Schedule: "every tuesday", Kind: config.ScheduleJunk})
	if _, err := New(cfg, testEngine(f), sysstats.Fixed{}, zerolog.Nop()); err == nil {
		t.Error("expected error for unparsable schedule")
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr  string
		valid bool
	}{
		{"0 3 * * *", true},
		{"@daily", true},
		{"@every 1h", true},
		{"*/15 * * * *", true},
		{"0 0 3 * * *", false}, // seconds field not accepted
		{"", false},
		{"tomorrow", false},
	}
	for _, tt := range tests {
		err := ValidateSchedule(tt.expr)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateSchedule(%q) error = %v, want valid=%v", tt.expr, err, tt.valid)
		}
	}
}

func TestRunJobJunkWithClean(t *testing.T) {
	f := testutil.NewFixture(t)
	blob := f.CreateCacheFile("blob", 64)

	d, err := New(testConfig(f), testEngine(f), sysstats.Fixed{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	res, err := d.RunJob(&ScanJob{Name: "nightly", Kind: config.ScheduleJunk, Clean: true})
	if err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}
	if res.State != session.StateCompleted || res.Items != 1 || res.Bytes != 64 {
		t.Errorf("result = %+v", res)
	}
	if res.Outcome == nil || res.Outcome.Succeeded != 1 {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
	f.AssertFileNotExists(blob)
	f.AssertFileExists(filepath.Join(f.TrashDir, "blob"))

	if len(res.Summary) != 2 ||
		!strings.HasPrefix(res.Summary[0], "Scan complete: ") ||
		!strings.HasPrefix(res.Summary[1], "Cleanup complete: 1/1 items, 64 B freed") {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestRunJobJunkWithoutCleanKeepsFiles(t *testing.T) {
	f := testutil.NewFixture(t)
	blob := f.CreateCacheFile("blob", 64)

	d, err := New(testConfig(f), testEngine(f), sysstats.Fixed{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	res, err := d.RunJob(&ScanJob{Name: "report", Kind: config.ScheduleJunk})
	if err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}
	if res.Outcome != nil {
		t.Error("report-only job deleted something")
	}
	f.AssertFileExists(blob)
}

func TestRunJobDuplicates(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("docs/a", []byte("same"))
	f.CreateFile("docs/b", []byte("same"))

	d, err := New(testConfig(f), testEngine(f), sysstats.Fixed{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	res, err := d.RunJob(&ScanJob{Name: "dupes", Kind: config.ScheduleDuplicates, Roots: []string{f.DocsDir}})
	if err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}
	if res.Items != 2 || res.Bytes != 4 {
		t.Errorf("result = %+v, want 2 items and 4 reclaimable bytes", res)
	}
}

func TestRunJobSkipIfBusy(t *testing.T) {
	f := testutil.NewFixture(t)
	blob := f.CreateCacheFile("blob", 64)

	d, err := New(testConfig(f), testEngine(f), sysstats.Fixed{CPUPercent: 95}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	res, err := d.RunJob(&ScanJob{Name: "busy", Kind: config.ScheduleJunk, Clean: true, SkipIfBusy: true})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("RunJob() error = %v, want ErrBusy", err)
	}
	if !res.Skipped || res.CPUPercent != 95 {
		t.Errorf("result = %+v", res)
	}
	f.AssertFileExists(blob)

	// Below the threshold the same job runs.
	d.stats = sysstats.Fixed{CPUPercent: 10}
	if _, err := d.RunJob(&ScanJob{Name: "idle", Kind: config.ScheduleJunk, SkipIfBusy: true}); err != nil {
		t.Errorf("RunJob() on idle host error = %v", err)
	}
}

func TestRunJobUnknownKind(t *testing.T) {
	f := testutil.NewFixture(t)
	d, err := New(testConfig(f), testEngine(f), sysstats.Fixed{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.RunJob(&ScanJob{Name: "x", Kind: "everything"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := d.RunJob(&ScanJob{Name: "y", Kind: config.ScheduleDuplicates}); err == nil {
		t.Error("expected error for duplicate job without root")
	}
}

func TestSchedulerJobs(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, []config.ScanSchedule{
		{Name: "nightly", Schedule: "0 3 * * *", Kind: config.ScheduleJunk},
	}, zerolog.Nop())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("expected error starting twice")
	}

	if err := s.AddJob(config.ScanSchedule{Name: "nightly", Schedule: "@daily", Kind: config.ScheduleJunk}); err == nil {
		t.Error("expected error for duplicate job name")
	}
	if err := s.AddJob(config.ScanSchedule{Name: "broken", Schedule: "not cron", Kind: config.ScheduleJunk}); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if err := s.AddJob(config.ScanSchedule{Name: "hourly", Schedule: "@hourly", Kind: config.ScheduleJunk}); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	if jobs := s.ListJobs(); len(jobs) != 2 {
		t.Errorf("ListJobs() = %d jobs, want 2", len(jobs))
	}
	next, err := s.GetNextRun("hourly")
	if err != nil {
		t.Fatal(err)
	}
	if !next.After(time.Now()) || next.Sub(time.Now()) > time.Hour {
		t.Errorf("next run %v is not within the next hour", next)
	}

	if _, err := s.TriggerJob("nightly"); err != nil {
		t.Errorf("TriggerJob() error = %v", err)
	}
	if _, err := s.TriggerJob("missing"); err == nil {
		t.Error("expected error triggering unknown job")
	}
	runner.mu.Lock()
	if len(runner.runs) != 1 || runner.runs[0] != "nightly" {
		t.Errorf("runs = %v", runner.runs)
	}
	runner.mu.Unlock()

	if err := s.RemoveJob("hourly"); err != nil {
		t.Errorf("RemoveJob() error = %v", err)
	}
	if err := s.RemoveJob("hourly"); err == nil {
		t.Error("expected error removing twice")
	}
	if jobs := s.ListJobs(); len(jobs) != 1 {
		t.Errorf("ListJobs() = %d jobs after removal, want 1", len(jobs))
	}
}

func TestStartWritesPidAndStops(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f, config.ScanSchedule{Name: "nightly", Schedule: "@daily", Kind: config.ScheduleJunk})
	d, err := New(cfg, testEngine(f), sysstats.Fixed{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Start() }()

	deadline := time.Now().Add(5 * time.Second)
	for !f.FileExists(cfg.Daemon.PidFile) {
		if time.Now().After(deadline) {
			t.Fatal("pid file never written")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !d.IsRunning() {
		t.Error("IsRunning() = false while started")
	}

	d.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}

	f.AssertFileNotExists(cfg.Daemon.PidFile)
	f.AssertFileNotExists(cfg.Daemon.PidFile + ".lock")
	if d.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
}

func TestAcquireLockRejectsSecondInstance(t *testing.T) {
	f := testutil.NewFixture(t)
	d, err := New(testConfig(f), testEngine(f), sysstats.Fixed{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if err := d.acquireLock(); err != nil {
		t.Fatalf("acquireLock() error = %v", err)
	}
	defer d.releaseLock()

	if err := d.acquireLock(); err == nil {
		t.Error("expected error for existing lock")
	}
	if _, err := os.Stat(d.pidFile() + ".lock"); err != nil {
		t.Errorf("lock file missing: %v", err)
	}
}
