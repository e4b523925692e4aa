package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

// Root kinds understood by the classifier
const (
	KindCache       = "cache"
	KindLog         = "log"
	KindDerivedData = "derived_data"
)

// JunkRoot is a directory whose contents are reclaimable junk of one kind
type JunkRoot struct {
	Path string
	Kind string
}

// Info contains platform-specific information and paths
type Info struct {
	OS       Platform
	HomeDir  string
	Username string

	// JunkRoots are the only directories a junk scan walks.
	JunkRoots []JunkRoot

	// TrashDir is the user's trash container.
	TrashDir string

	// ProtectedPaths are added on top of the system defaults. Everything
	// below them is protected too.
	ProtectedPaths []string

	// PinnedPaths are protected themselves, their contents are not.
	PinnedPaths []string

	// AppDirs hold installed applications, matched by AppExtensions.
	AppDirs       []string
	AppExtensions []string

	// SentinelPaths are read to decide whether the process holds
	// full-disk access. Empty means the capability is implied.
	SentinelPaths []string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information
func GetInfo() (*Info, error) {
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	return InfoFor(Detect(), currentUser.HomeDir, currentUser.Username)
}

// InfoFor builds the platform information for an explicit OS and home
// directory
func InfoFor(p Platform, homeDir, username string) (*Info, error) {
	switch p {
	case MacOS:
		return getMacOSInfo(homeDir, username), nil
	case Linux:
		return getLinuxInfo(homeDir, username), nil
	default:
		return nil, ErrUnsupportedPlatform
	}
}

// RootPaths returns the paths of the junk roots
func (i *Info) RootPaths() []string {
	paths := make([]string, 0, len(i.JunkRoots))
	for _, r := range i.JunkRoots {
		paths = append(paths, r.Path)
	}
	return paths
}

// GetUserConfigDir returns the user's config directory
func GetUserConfigDir() (string, error) {
	// Try XDG_CONFIG_HOME first, on both platforms
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return configDir, nil
	}
	currentUser, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(currentUser.HomeDir, ".config"), nil
}

// ExecutableRoot returns the directory holding the running binary, or the
// enclosing .app bundle when the binary lives inside one
func ExecutableRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	for d := dir; d != string(filepath.Separator) && d != "."; d = filepath.Dir(d) {
		if filepath.Ext(d) == ".app" {
			return d
		}
	}
	return dir
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
