package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultProtectedPaths are system locations that are never scanned for junk,
// never grouped as duplicates and never deleted. "/" only protects itself.
var DefaultProtectedPaths = []string{
	"/",
	// Unix system directories
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib64",
	"/proc",
	"/sbin",
	"/sys",
	"/usr",
	"/var/db",
	"/var/lib",
	// macOS system directories
	"/System",
	"/Applications",
	"/Library/Apple",
	"/Library/System",
	"/private/etc",
	"/private/var/db",
}

// PathValidator handles secure path validation for file operations
type PathValidator struct {
	protectedPaths []string
	// pinnedPaths protect only themselves, like "/" in the defaults
	pinnedPaths []string
}

// NewPathValidator creates a new PathValidator with the default protected
// paths plus any extra ones
func NewPathValidator(extra ...string) *PathValidator {
	pv := &PathValidator{
		protectedPaths: make([]string, 0, len(DefaultProtectedPaths)+len(extra)),
	}
	for _, p := range DefaultProtectedPaths {
		pv.AddProtectedPath(p)
	}
	for _, p := range extra {
		pv.AddProtectedPath(p)
	}
	return pv
}

// NewEmptyPathValidator creates a PathValidator that protects only the given
// paths
func NewEmptyPathValidator(paths ...string) *PathValidator {
	pv := &PathValidator{}
	for _, p := range paths {
		pv.AddProtectedPath(p)
	}
	return pv
}

// ValidatePathForDeletion performs comprehensive validation on a path before deletion
// This is the single source of truth for all path validation in the application
func (pv *PathValidator) ValidatePathForDeletion(path string) error {
	// Path must be absolute
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}

	// Reject anything that is not already in canonical form
	if filepath.Clean(path) != path {
		return fmt.Errorf("path contains suspicious elements: %s", path)
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains NUL byte: %q", path)
	}

	if err := pv.checkProtectedPaths(path); err != nil {
		return err
	}

	// Resolve the parent only: the entry itself may be a symlink and is
	// removed as a link, but a symlinked parent must not lead into a
	// protected directory (~/cache -> /etc).
	parent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	return pv.checkProtectedPaths(filepath.Join(parent, filepath.Base(path)))
}

// checkProtectedPaths validates that a path is not in a protected system directory
func (pv *PathValidator) checkProtectedPaths(cleanPath string) error {
	for _, pinned := range pv.pinnedPaths {
		if cleanPath == pinned {
			return fmt.Errorf("refusing to delete protected path: %s", cleanPath)
		}
	}
	for _, protected := range pv.protectedPaths {
		if cleanPath == protected {
			return fmt.Errorf("refusing to delete protected path: %s", cleanPath)
		}
		if isUnder(cleanPath, protected) {
			return fmt.Errorf("refusing to delete path inside protected directory %s: %s", protected, cleanPath)
		}
	}

	return nil
}

// IsProtectedPath checks if a path is a protected path or lies below one
func (pv *PathValidator) IsProtectedPath(path string) bool {
	cleanPath := filepath.Clean(path)
	for _, pinned := range pv.pinnedPaths {
		if cleanPath == pinned {
			return true
		}
	}
	for _, protected := range pv.protectedPaths {
		if cleanPath == protected || isUnder(cleanPath, protected) {
			return true
		}
	}
	return false
}

// ProtectedPaths returns a copy of the protected path list
func (pv *PathValidator) ProtectedPaths() []string {
	return append([]string(nil), pv.protectedPaths...)
}

// AddProtectedPath adds a custom protected path
func (pv *PathValidator) AddProtectedPath(path string) {
	if path == "" {
		return
	}
	cleanPath := filepath.Clean(path)
	for _, p := range pv.protectedPaths {
		if p == cleanPath {
			return
		}
	}
	pv.protectedPaths = append(pv.protectedPaths, cleanPath)
}

// AddPinnedPath protects path itself without protecting what lies below it
func (pv *PathValidator) AddPinnedPath(path string) {
	if path == "" {
		return
	}
	cleanPath := filepath.Clean(path)
	for _, p := range pv.pinnedPaths {
		if p == cleanPath {
			return
		}
	}
	pv.pinnedPaths = append(pv.pinnedPaths, cleanPath)
}

// isUnder reports whether path is strictly below dir. The root directory
// protects only itself.
func isUnder(path, dir string) bool {
	if dir == string(filepath.Separator) {
		return false
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// ValidateGlobPattern validates that a glob pattern is safe
func ValidateGlobPattern(pattern string) error {
	// Check for dangerous characters
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}

	// Try to match the pattern to ensure it's valid
	_, err := filepath.Match(pattern, "test")
	if err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}

	return nil
}

// MatchesAny reports whether path, or its base name, matches one of the
// glob patterns
func MatchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
