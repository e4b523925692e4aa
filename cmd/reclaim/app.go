package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/classifier"
	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/logger"
	"github.com/fenilsonani/reclaim/internal/permission"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/reporter"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/session"
	"github.com/fenilsonani/reclaim/internal/trash"
	"github.com/fenilsonani/reclaim/internal/ui"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// App holds everything a command needs
type App struct {
	cfg    *config.Config
	info   *platform.Info
	engine *session.Engine
	logger zerolog.Logger
	closer io.Closer
	format reporter.OutputFormat
	out    io.Writer
	in     io.Reader
	// interactive is true when stdout is a terminal and the output is
	// meant for people
	interactive bool
}

// newApp loads configuration and wires the engine
func newApp() (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	format, err := reporter.ParseFormat(outputFmt)
	if err != nil {
		return nil, err
	}

	log, closer, err := logger.New(logger.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
		JSON:  cfg.Logging.JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	interactive := ui.IsTerminal(os.Stdout) &&
		(format == reporter.FormatSummary || format == reporter.FormatTable)
	switch {
	case verbose:
		log = logger.Verbose(log)
	case interactive && log.GetLevel() < zerolog.WarnLevel:
		// Info lines on stderr would tear the terminal UI
		log = log.Level(zerolog.WarnLevel)
	}

	info, err := platform.GetInfo()
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to get platform info: %w", err)
	}

	fs := afero.NewOsFs()
	gate := permission.NewOSGate(fs, info.SentinelPaths)

	return &App{
		cfg:         cfg,
		info:        info,
		engine:      buildEngine(cfg, info, fs, gate, log),
		logger:      log,
		closer:      closer,
		format:      format,
		out:         os.Stdout,
		in:          os.Stdin,
		interactive: interactive,
	}, nil
}

// Close flushes the log file, if any
func (a *App) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func (a *App) reporter() *reporter.Reporter {
	return reporter.New(a.out, a.format)
}

// buildEngine turns configuration into a scan engine
func buildEngine(cfg *config.Config, info *platform.Info, fs afero.Fs, gate permission.Gate, log zerolog.Logger) *session.Engine {
	validator := security.NewPathValidator(info.ProtectedPaths...)
	for _, p := range info.PinnedPaths {
		validator.AddPinnedPath(p)
	}
	for _, p := range cfg.ProtectedPaths {
		validator.AddProtectedPath(p)
	}
	if exe := platform.ExecutableRoot(); exe != "" {
		validator.AddProtectedPath(exe)
	}

	roots := cfg.JunkRoots(info)

	return session.New(session.Options{
		Gate:       gate,
		Validator:  validator,
		Classifier: classifier.New(classifier.RulesFromPlatform(roots), validator, cfg.Junk.ExcludePatterns),
		JunkRoots:  roots,
		Walk: scanner.WalkOptions{
			SkipHidden:     cfg.Scan.SkipHidden,
			SkipPackages:   cfg.Scan.SkipPackages,
			FollowSymlinks: cfg.Scan.FollowSymlinks,
			Workers:        cfg.Scan.WalkWorkers,
			DirTimeout:     cfg.Scan.DirTimeout,
		},
		Duplicates: scanner.DuplicateOptions{
			HashWorkers:    cfg.Scan.HashWorkers,
			QuickHashBytes: int64(cfg.Scan.QuickHashBytes),
			ExactCompare:   cfg.Scan.ExactCompare,
		},
		AppDirs:       info.AppDirs,
		AppExtensions: info.AppExtensions,
		MinAge:        cfg.MinAge(),
		Fs:            fs,
		Bin:           trash.NewPlatformBin(fs, info),
		MaxRetries:    cfg.Deletion.MaxRetries,
		ManifestDir:   cfg.Deletion.ManifestDir,
		Logger:        log,
	})
}

// waitScan follows a scan until it ends and returns its result. A nil
// result means the scan did not complete.
func (a *App) waitScan(ctx context.Context, h session.Handle, title string) (*scanner.ScanResult, error) {
	if a.interactive {
		if _, err := ui.RunScan(a.engine, h, title); err != nil {
			a.engine.Cancel(h)
			return nil, err
		}
	} else {
		if _, err := ui.LogProgress(ctx, a.engine, h, a.logger, 0); err != nil {
			a.engine.Cancel(h)
		}
	}

	state, err := a.engine.Wait(context.Background(), h)
	if err != nil {
		return nil, err
	}
	switch state {
	case session.StateCancelled:
		fmt.Fprintln(os.Stderr, "Scan cancelled")
		return nil, nil
	case session.StateFailed:
		return nil, fmt.Errorf("scan failed")
	}

	res, _, err := a.engine.Result(h)
	return res, err
}

// choose returns the paths to delete from rows. Interactive selection
// already includes a confirmation; --all asks unless --yes is set.
func (a *App) choose(title, verb string, rows []ui.Row) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if selectMode {
		if !a.interactive {
			return nil, fmt.Errorf("--select needs a terminal")
		}
		return ui.RunSelect(title, verb, rows)
	}

	if !selectAll {
		return nil, fmt.Errorf("choose what to delete with --all or --select")
	}

	paths := make([]string, 0, len(rows))
	var size uint64
	for _, r := range rows {
		paths = append(paths, r.Path)
		size += r.Size
	}

	if !assumeYes {
		prompt := fmt.Sprintf("\n%s %d items (%s)? (y/N): ", capitalize(verb), len(paths), utils.FormatBytes(size))
		if !confirm(a.in, a.out, prompt) {
			fmt.Fprintln(a.out, "Cleanup cancelled")
			return nil, nil
		}
	}
	return paths, nil
}

// runDeletion executes a batch behind a progress bar when interactive and
// with log lines otherwise
func (a *App) runDeletion(ctx context.Context, title string, total int, run func(context.Context, cleaner.ProgressFunc) (cleaner.Outcome, error)) (cleaner.Outcome, error) {
	if a.interactive {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		return ui.RunDeletion(title, total, func(onProgress cleaner.ProgressFunc) (cleaner.Outcome, error) {
			return run(ctx, onProgress)
		}, cancel)
	}
	return run(ctx, ui.LogDeletion(a.logger))
}

// confirm asks a yes/no question, defaulting to no
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	response := strings.TrimSpace(line)
	return response == "y" || response == "Y"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
