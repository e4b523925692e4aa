package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/daemon"
	"github.com/fenilsonani/reclaim/internal/errs"
	"github.com/fenilsonani/reclaim/internal/reporter"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/session"
	"github.com/fenilsonani/reclaim/internal/sysstats"
	"github.com/fenilsonani/reclaim/internal/ui"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath   string
	verbose      bool
	outputFmt    string
	outputFile   string
	deleteAction bool
	selectMode   bool
	selectAll    bool
	assumeYes    bool
	permanent    bool
	testConfig   bool
	triggerJob   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Find and remove duplicate files and junk",
	Long: `reclaim finds space you can get back:
  - Duplicate files under a folder, keeping the oldest copy
  - Caches, logs and build leftovers in well-known locations
  - Items sitting in the trash

Nothing is removed unless you ask for it, and removals go to the trash
unless --permanent is set.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var junkCmd = &cobra.Command{
	Use:   "junk [roots...]",
	Short: "Scan cache, log and build-output folders",
	Long: `Scans the configured junk roots, or the given ones, for files older than
junk.min_file_age. Use --delete with --all or --select to remove them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		roots, err := absPaths(args)
		if err != nil {
			return err
		}

		h, err := a.engine.StartJunkScan(roots)
		if err != nil {
			return explain(err)
		}

		res, err := a.waitScan(cmd.Context(), h, "Scanning for junk")
		if err != nil || res == nil {
			return err
		}
		if err := a.report(res); err != nil {
			return err
		}
		if !deleteAction {
			return nil
		}

		paths, err := a.choose("Select junk to remove", a.verb(), ui.JunkRows(res))
		if err != nil || len(paths) == 0 {
			return err
		}
		for _, p := range paths {
			res.SetSelected(p, true)
		}

		return a.deletePaths(cmd.Context(), "Removing junk", res.SelectedPaths())
	},
}

var dupesCmd = &cobra.Command{
	Use:   "dupes <root>",
	Short: "Find files with identical content",
	Long: `Groups files under root by content. The oldest file of each group is
kept; with --delete the other copies are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		root, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid root: %w", err)
		}

		h, err := a.engine.StartDuplicateScan(root)
		if err != nil {
			return explain(err)
		}

		res, err := a.waitScan(cmd.Context(), h, "Looking for duplicates in "+root)
		if err != nil || res == nil {
			return err
		}
		if err := a.report(res); err != nil {
			return err
		}
		if !deleteAction {
			return nil
		}

		paths, err := a.choose("Select copies to remove", a.verb(), ui.DuplicateRows(res))
		if err != nil || len(paths) == 0 {
			return err
		}
		return a.deletePaths(cmd.Context(), "Removing duplicates", paths)
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect or empty the trash",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items in the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.engine.ListTrash(cmd.Context())
		if err != nil {
			return explain(err)
		}
		return a.reporter().ReportTrash(items)
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty [paths...]",
	Short: "Permanently delete items from the trash",
	Long: `Permanently deletes the given trash items, or the ones chosen with
--all or --select.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.engine.ListTrash(cmd.Context())
		if err != nil {
			return explain(err)
		}

		paths, err := absPaths(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			paths, err = a.choose("Select trash items to delete", "permanently delete", ui.TrashRows(items))
			if err != nil || len(paths) == 0 {
				return err
			}
		} else if !assumeYes && !confirm(a.in, a.out, fmt.Sprintf("Permanently delete %d items? (y/N): ", len(paths))) {
			fmt.Fprintln(a.out, "Cleanup cancelled")
			return nil
		}

		out, err := a.runDeletion(cmd.Context(), "Emptying trash", len(paths),
			func(ctx context.Context, onProgress cleaner.ProgressFunc) (cleaner.Outcome, error) {
				return a.engine.EmptyTrash(ctx, paths, onProgress)
			})
		if err != nil {
			return explain(err)
		}
		return a.reportOutcome(out)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show CPU, memory and disk usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := sysstats.NewHost(a.info.HomeDir).Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read system stats: %w", err)
		}
		return a.reporter().ReportStatus(snap)
	},
}

var duCmd = &cobra.Command{
	Use:   "du [dir]",
	Short: "Show what takes up space in a directory",
	Long: `Lists the immediate children of dir (the home directory by default),
each directory sized by everything below it, largest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dir := a.info.HomeDir
		if len(args) == 1 {
			abs, err := absPaths(args)
			if err != nil {
				return err
			}
			dir = abs[0]
		}

		entries, err := a.engine.DiskUsage(cmd.Context(), dir)
		if err != nil {
			return explain(err)
		}
		return a.reporter().ReportUsage(dir, entries)
	},
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List installed applications by size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		apps, err := a.engine.InstalledApps(cmd.Context())
		if err != nil {
			return explain(err)
		}
		return a.reporter().ReportUsage("Installed apps", apps)
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled scans in the foreground",
	Long: `Runs the scans listed under daemon.schedules on their cron schedules
until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Daemon == nil || !a.cfg.Daemon.Enabled {
			fmt.Fprintln(os.Stderr, "Daemon not enabled in configuration. Add for example:")
			fmt.Fprintln(os.Stderr, "daemon:")
			fmt.Fprintln(os.Stderr, "  enabled: true")
			fmt.Fprintln(os.Stderr, "  schedules:")
			fmt.Fprintln(os.Stderr, "    - name: nightly-junk")
			fmt.Fprintln(os.Stderr, "      schedule: \"0 2 * * *\"")
			fmt.Fprintln(os.Stderr, "      kind: junk")
			return fmt.Errorf("daemon not enabled")
		}

		d, err := daemon.New(a.cfg, a.engine, sysstats.NewHost(a.info.HomeDir), a.logger)
		if err != nil {
			return fmt.Errorf("error creating daemon: %w", err)
		}

		if testConfig {
			fmt.Fprintln(a.out, "Configuration is valid")
			fmt.Fprintf(a.out, "Schedules: %d\n", len(a.cfg.Daemon.Schedules))
			for _, s := range a.cfg.Daemon.Schedules {
				fmt.Fprintf(a.out, "  - %s: %s (%s)\n", s.Name, s.Schedule, s.Kind)
			}
			return nil
		}

		if triggerJob != "" {
			result, err := d.Scheduler().TriggerJob(triggerJob)
			if err != nil {
				return err
			}
			return printJobResult(a, result)
		}

		go func() {
			<-cmd.Context().Done()
			d.Stop()
		}()
		return d.Start()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.EnsureConfigExists()
		if err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}
		fmt.Printf("Config file: %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the configuration in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}

		fmt.Printf("Config file: %s\n", path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("Config file does not exist. Using default configuration.")
			fmt.Println("Run 'reclaim config init' to create one.")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Printf("\n%s", data)
		return nil
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print a commented example configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.GetExampleConfig())
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "output", "summary", "output format (summary, table, json, yaml)")

	// Scan command flags
	for _, c := range []*cobra.Command{junkCmd, dupesCmd} {
		c.Flags().StringVar(&outputFile, "file", "", "also save the scan report to a file")
		c.Flags().BoolVar(&deleteAction, "delete", false, "remove items after the scan")
		c.Flags().BoolVar(&permanent, "permanent", false, "delete instead of moving to the trash")
	}

	// Selection flags
	for _, c := range []*cobra.Command{junkCmd, dupesCmd, trashEmptyCmd} {
		c.Flags().BoolVar(&selectMode, "select", false, "pick items interactively")
		c.Flags().BoolVar(&selectAll, "all", false, "take every item")
		c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	}

	// Daemon flags
	daemonCmd.Flags().BoolVar(&testConfig, "test-config", false, "validate schedules and exit")
	daemonCmd.Flags().StringVar(&triggerJob, "trigger", "", "run the named schedule once and exit")

	trashCmd.AddCommand(trashListCmd, trashEmptyCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configExampleCmd)

	rootCmd.AddCommand(junkCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(duCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	cfgPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}

	return config.Load(cfgPath)
}

// report prints a scan result and saves it when --file is set
func (a *App) report(res *scanner.ScanResult) error {
	if outputFile != "" {
		if err := reporter.SaveToFile(res, outputFile, a.format); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Report saved to: %s\n", outputFile)
	}
	if err := a.reporter().Report(res); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return nil
}

func (a *App) reportOutcome(out cleaner.Outcome) error {
	if err := a.reporter().ReportOutcome(out); err != nil {
		return err
	}
	if len(out.Failed()) > 0 && a.format == reporter.FormatSummary {
		fmt.Fprintf(a.out, "\n%s", cleaner.FormatFailureSummary(out))
	}
	return nil
}

func (a *App) verb() string {
	if permanent || a.cfg.Deletion.Permanent {
		return "permanently delete"
	}
	return "move to trash"
}

// delete removes paths from the latest scan result
func (a *App) deletePaths(ctx context.Context, title string, paths []string) error {
	opts := session.DeleteOptions{Permanent: permanent || a.cfg.Deletion.Permanent}
	out, err := a.runDeletion(ctx, title, len(paths),
		func(ctx context.Context, onProgress cleaner.ProgressFunc) (cleaner.Outcome, error) {
			opts.OnProgress = onProgress
			return a.engine.RequestDeletion(ctx, paths, opts)
		})
	if err != nil {
		return explain(err)
	}
	return a.reportOutcome(out)
}

func printJobResult(a *App, r *daemon.JobResult) error {
	if r.Skipped {
		fmt.Fprintf(a.out, "%s: skipped, CPU at %.1f%%\n", r.Name, r.CPUPercent)
		return nil
	}
	fmt.Fprintf(a.out, "%s (%s): %s, %d items, %s in %s\n",
		r.Name, r.Kind, r.State, r.Items, utils.FormatBytes(r.Bytes), r.Duration.Round(time.Millisecond))
	for _, line := range r.Summary {
		fmt.Fprintf(a.out, "  %s\n", line)
	}
	if r.Outcome != nil {
		return a.reportOutcome(*r.Outcome)
	}
	return nil
}

// explain adds a hint to errors a user can act on
func explain(err error) error {
	switch {
	case errors.Is(err, errs.ErrPermissionDenied):
		return fmt.Errorf("%w: grant Full Disk Access to your terminal and try again", err)
	case errors.Is(err, errs.ErrScanAlreadyRunning):
		return fmt.Errorf("%w: wait for the current scan to finish", err)
	}
	return err
}

func absPaths(args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, p := range args {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", p, err)
		}
		paths = append(paths, abs)
	}
	return paths, nil
}
