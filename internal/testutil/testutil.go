// Package testutil provides test helpers and fixtures for reclaim tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// TestFixture holds paths to test directories and files
type TestFixture struct {
	T       *testing.T
	RootDir string // Root temp directory (auto-cleaned)

	// Standard test directories
	CacheDir   string
	LogsDir    string
	DerivedDir string
	DocsDir    string
	TrashDir   string
}

// NewFixture creates a new test fixture with standard directory structure
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	// Resolve so paths compare equal to what the walker reports on macOS,
	// where the temp dir lives behind the /var -> /private/var link.
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}

	f := &TestFixture{
		T:          t,
		RootDir:    root,
		CacheDir:   filepath.Join(root, "cache"),
		LogsDir:    filepath.Join(root, "logs"),
		DerivedDir: filepath.Join(root, "derived"),
		DocsDir:    filepath.Join(root, "docs"),
		TrashDir:   filepath.Join(root, "trash"),
	}

	// Create all directories
	dirs := []string{
		f.CacheDir,
		f.LogsDir,
		f.DerivedDir,
		f.DocsDir,
		f.TrashDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	return f
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateFileWithAge creates a file and sets its modification time to the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	oldTime := time.Now().Add(-age)

	if err := os.Chtimes(fullPath, oldTime, oldTime); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateCacheFile creates a file of size bytes in the cache directory
func (f *TestFixture) CreateCacheFile(name string, size int) string {
	f.T.Helper()
	return f.CreateFileWithAge(filepath.Join("cache", name), make([]byte, size), 48*time.Hour)
}

// CreateLogFile creates a file of size bytes in the logs directory
func (f *TestFixture) CreateLogFile(name string, size int) string {
	f.T.Helper()
	return f.CreateFileWithAge(filepath.Join("logs", name), make([]byte, size), 48*time.Hour)
}

// CreateRandomFile creates a file with random content
func (f *TestFixture) CreateRandomFile(relPath string, size int) string {
	f.T.Helper()
	content := make([]byte, size)
	rand.Read(content)
	return f.CreateFile(relPath, content)
}

// =============================================================================
// Directory Helpers
// =============================================================================

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateDirWithMode creates a directory with specific permissions. The
// mode is reset to 0755 on cleanup so t.TempDir can remove it.
func (f *TestFixture) CreateDirWithMode(relPath string, mode os.FileMode) string {
	f.T.Helper()

	fullPath := f.CreateDir(relPath)

	// Set mode explicitly (MkdirAll might be affected by umask)
	if err := os.Chmod(fullPath, mode); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", fullPath, err)
	}
	f.T.Cleanup(func() { os.Chmod(fullPath, 0755) })

	return fullPath
}

// CreateBundle creates a package directory (e.g. Foo.app) with files whose
// sizes add up to the returned total
func (f *TestFixture) CreateBundle(relPath string, sizes ...int) (string, int64) {
	f.T.Helper()

	dir := f.CreateDir(relPath)
	var total int64
	for i, size := range sizes {
		f.CreateFile(filepath.Join(relPath, "Contents", string(rune('a'+i))), make([]byte, size))
		total += int64(size)
	}
	return dir, total
}

// =============================================================================
// Symlink Helpers
// =============================================================================

// CreateSymlink creates a symbolic link
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := filepath.Join(f.RootDir, linkPath)
	dir := filepath.Dir(fullLinkPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.Symlink(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// =============================================================================
// Assertions
// =============================================================================

// FileExists checks if a file exists (without following symlinks)
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected file to not exist: %s", path)
	}
}

// =============================================================================
// In-memory filesystem helpers
// =============================================================================

// WriteMemFile writes content to path on fs, creating parent directories
func WriteMemFile(t *testing.T, fs afero.Fs, path string, content []byte) string {
	t.Helper()

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := afero.WriteFile(fs, path, content, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// WriteMemFileWithAge writes a file on fs and backdates it
func WriteMemFileWithAge(t *testing.T, fs afero.Fs, path string, content []byte, age time.Duration) string {
	t.Helper()

	WriteMemFile(t, fs, path, content)
	oldTime := time.Now().Add(-age)
	if err := fs.Chtimes(path, oldTime, oldTime); err != nil {
		t.Fatalf("failed to set file time for %s: %v", path, err)
	}
	return path
}

// DenyFs wraps an afero.Fs and fails Open for the listed paths with a
// permission error, independent of the effective user
type DenyFs struct {
	afero.Fs
	Denied map[string]bool
}

// Open implements afero.Fs
func (d *DenyFs) Open(name string) (afero.File, error) {
	if d.Denied[filepath.Clean(name)] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return d.Fs.Open(name)
}

// =============================================================================
// Utility Functions
// =============================================================================

// IsRoot returns true if running as root/admin
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips the test if running as root
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test when running as root")
	}
}

// IsMacOS returns true if running on macOS
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// IsLinux returns true if running on Linux
func IsLinux() bool {
	return runtime.GOOS == "linux"
}
