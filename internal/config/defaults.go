package config

import "time"

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		Scan: ScanConfig{
			SkipHidden:     false,
			SkipPackages:   true, // .app and friends are one record, not their contents
			FollowSymlinks: false,
			WalkWorkers:    0,
			HashWorkers:    0,
			DirTimeout:     30 * time.Second,
			QuickHashBytes: 64 * 1024,
			ExactCompare:   false,
		},
		Junk: JunkConfig{
			Roots:      []JunkRoot{}, // empty = platform defaults
			MinFileAge: 24,           // never offer files younger than a day
			ExcludePatterns: []string{
				"*.keep",
				"*/important/*",
			},
		},
		ProtectedPaths: []string{},
		Deletion: DeletionConfig{
			Permanent:  false,
			MaxRetries: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetExampleConfig returns an example configuration with comments
func GetExampleConfig() string {
	return `# Reclaim Configuration File
# Location: ~/.config/reclaim/config.yaml

# Directory enumeration and duplicate detection
scan:
  skip_hidden: false      # Skip dot-files and dot-directories
  skip_packages: true     # Report .app/.bundle directories as one item
  follow_symlinks: false  # Symlinked directories are never entered unless set
  walk_workers: 0         # 0 = number of CPUs
  hash_workers: 0         # 0 = number of CPUs
  dir_timeout: 30s        # Give up on a directory that does not answer
  quick_hash_bytes: 64KB # Prefix hashed before the full content hash
  exact_compare: false    # Byte-compare files whose hashes match

# Junk scan
junk:
  # Leave empty to use the platform defaults (caches, logs, derived data)
  roots: []
  #  - path: "/home/me/.cache"
  #    kind: cache          # cache, log or derived_data
  min_file_age: 24        # Hours; younger files are never offered
  exclude_patterns:
    - "*.keep"
    - "*/important/*"

# Extra paths that must never be deleted, on top of the built-in list
protected_paths: []

deletion:
  permanent: false        # false = move to the trash
  max_retries: 3          # Retries for busy files
  manifest_dir: ""        # Write a deletion manifest here when set

logging:
  level: info             # trace, debug, info, warn, error
  file: ""                # Also write logs to this file
  json: false             # JSON lines instead of console output

# Daemon mode (optional)
daemon:
  enabled: false
  pid_file: ""
  cpu_threshold: 75       # skip_if_busy skips runs above this CPU percent
  schedules:
    - name: nightly-junk
      schedule: "0 3 * * *"
      kind: junk
      clean: false
      skip_if_busy: true
`
}
