package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/pkg/utils"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Scan           ScanConfig     `yaml:"scan"`
	Junk           JunkConfig     `yaml:"junk"`
	ProtectedPaths []string       `yaml:"protected_paths"`
	Deletion       DeletionConfig `yaml:"deletion"`
	Logging        LoggingConfig  `yaml:"logging"`
	Daemon         *DaemonConfig  `yaml:"daemon,omitempty"`
}

// ScanConfig controls directory enumeration and duplicate hashing
type ScanConfig struct {
	SkipHidden     bool          `yaml:"skip_hidden"`
	SkipPackages   bool          `yaml:"skip_packages"`
	FollowSymlinks bool          `yaml:"follow_symlinks"`
	WalkWorkers    int           `yaml:"walk_workers"` // 0 = number of CPUs
	HashWorkers    int           `yaml:"hash_workers"` // 0 = number of CPUs
	DirTimeout     time.Duration `yaml:"dir_timeout"`
	QuickHashBytes ByteSize      `yaml:"quick_hash_bytes"`
	ExactCompare   bool          `yaml:"exact_compare"`
}

// ByteSize is a byte count written either as an integer or as a
// human-readable size such as "64KB"
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	size, err := utils.ParseSize(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = ByteSize(size)
	return nil
}

// JunkRoot is a configured junk directory. Kind is one of cache, log or
// derived_data.
type JunkRoot struct {
	Path string `yaml:"path"`
	Kind string `yaml:"kind"`
}

// JunkConfig controls the junk scan
type JunkConfig struct {
	// Roots replace the platform defaults when non-empty.
	Roots           []JunkRoot `yaml:"roots"`
	MinFileAge      int        `yaml:"min_file_age"` // in hours
	ExcludePatterns []string   `yaml:"exclude_patterns"`
}

// DeletionConfig controls how selected items are removed
type DeletionConfig struct {
	Permanent   bool   `yaml:"permanent"`
	MaxRetries  int    `yaml:"max_retries"`
	ManifestDir string `yaml:"manifest_dir"`
}

// LoggingConfig controls the zerolog output
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// DaemonConfig holds daemon mode configuration
type DaemonConfig struct {
	Enabled      bool           `yaml:"enabled"`
	PidFile      string         `yaml:"pid_file"`
	CPUThreshold float64        `yaml:"cpu_threshold"` // percent, used by skip_if_busy
	Schedules    []ScanSchedule `yaml:"schedules"`
}

// Scan kinds a schedule can run
const (
	ScheduleJunk       = "junk"
	ScheduleDuplicates = "duplicates"
)

// ScanSchedule defines a scheduled scan
type ScanSchedule struct {
	Name       string   `yaml:"name"`
	Schedule   string   `yaml:"schedule"` // Cron expression
	Kind       string   `yaml:"kind"`
	Roots      []string `yaml:"roots"`
	Clean      bool     `yaml:"clean"` // junk only: move findings to the trash
	SkipIfBusy bool     `yaml:"skip_if_busy"`
}

// Load loads configuration from a file
func Load(configPath string) (*Config, error) {
	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Scan.WalkWorkers < 0 {
		return fmt.Errorf("walk workers must be >= 0")
	}
	if c.Scan.HashWorkers < 0 {
		return fmt.Errorf("hash workers must be >= 0")
	}
	if c.Scan.DirTimeout < 0 {
		return fmt.Errorf("dir timeout must be >= 0")
	}
	if c.Scan.QuickHashBytes < 0 {
		return fmt.Errorf("quick hash bytes must be >= 0")
	}

	if c.Junk.MinFileAge < 0 {
		return fmt.Errorf("min file age must be >= 0")
	}
	for _, root := range c.Junk.Roots {
		if !filepath.IsAbs(root.Path) {
			return fmt.Errorf("junk root must be absolute: %s", root.Path)
		}
		switch root.Kind {
		case platform.KindCache, platform.KindLog, platform.KindDerivedData:
		default:
			return fmt.Errorf("unknown junk root kind '%s' for %s", root.Kind, root.Path)
		}
	}

	// Validate exclude patterns (glob syntax)
	for _, pattern := range c.Junk.ExcludePatterns {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}

	for _, path := range c.ProtectedPaths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("protected path must be absolute: %s", path)
		}
	}

	if c.Deletion.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0")
	}
	if c.Deletion.ManifestDir != "" && !filepath.IsAbs(c.Deletion.ManifestDir) {
		return fmt.Errorf("manifest dir must be absolute: %s", c.Deletion.ManifestDir)
	}

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
			return fmt.Errorf("invalid log level '%s': %w", c.Logging.Level, err)
		}
	}

	if c.Daemon != nil {
		if err := c.Daemon.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (d *DaemonConfig) validate() error {
	if d.CPUThreshold < 0 || d.CPUThreshold > 100 {
		return fmt.Errorf("cpu threshold must be between 0 and 100")
	}
	seen := make(map[string]bool, len(d.Schedules))
	for _, s := range d.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate schedule name: %s", s.Name)
		}
		seen[s.Name] = true
		if strings.TrimSpace(s.Schedule) == "" {
			return fmt.Errorf("schedule %s: cron expression is required", s.Name)
		}
		switch s.Kind {
		case ScheduleJunk:
		case ScheduleDuplicates:
			if len(s.Roots) != 1 {
				return fmt.Errorf("schedule %s: duplicate scans need exactly one root", s.Name)
			}
			if s.Clean {
				return fmt.Errorf("schedule %s: duplicate scans cannot clean automatically", s.Name)
			}
		default:
			return fmt.Errorf("schedule %s: unknown kind '%s'", s.Name, s.Kind)
		}
		for _, root := range s.Roots {
			if !filepath.IsAbs(root) {
				return fmt.Errorf("schedule %s: root must be absolute: %s", s.Name, root)
			}
		}
	}
	return nil
}

// MinAge returns the junk age threshold as a duration
func (c *Config) MinAge() time.Duration {
	return time.Duration(c.Junk.MinFileAge) * time.Hour
}

// JunkRoots returns the configured junk roots, or the platform defaults
// when none are configured
func (c *Config) JunkRoots(info *platform.Info) []platform.JunkRoot {
	if len(c.Junk.Roots) == 0 {
		if info == nil {
			return nil
		}
		return info.JunkRoots
	}
	roots := make([]platform.JunkRoot, 0, len(c.Junk.Roots))
	for _, r := range c.Junk.Roots {
		roots = append(roots, platform.JunkRoot{Path: filepath.Clean(r.Path), Kind: r.Kind})
	}
	return roots
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	configDir, err := platform.GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "reclaim", "config.yaml"), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(GetDefault(), configPath); err != nil {
			return "", err
		}
	}

	return configPath, nil
}
