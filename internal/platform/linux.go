package platform

import (
	"os"
	"path/filepath"
)

// getLinuxInfo returns platform-specific information for Linux
func getLinuxInfo(homeDir, username string) *Info {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(homeDir, ".cache")
	}

	return &Info{
		OS:       Linux,
		HomeDir:  homeDir,
		Username: username,
		JunkRoots: []JunkRoot{
			{Path: cacheHome, Kind: KindCache},
			{Path: filepath.Join(homeDir, ".npm/_cacache"), Kind: KindCache},
			{Path: filepath.Join(homeDir, ".gradle/caches"), Kind: KindCache},
			{Path: filepath.Join(homeDir, ".local/share/logs"), Kind: KindLog},
			{Path: filepath.Join(homeDir, ".cache/go-build"), Kind: KindDerivedData},
		},
		TrashDir: GetTrashDir(homeDir),
		ProtectedPaths: []string{
			"/opt",
			"/run",
			"/srv",
			filepath.Join(homeDir, ".ssh"),
			filepath.Join(homeDir, ".gnupg"),
			filepath.Join(homeDir, ".local/state"),
		},
		PinnedPaths:   []string{"/home", "/root", homeDir},
		AppDirs:       []string{filepath.Join(homeDir, "Applications"), filepath.Join(homeDir, ".local/bin")},
		AppExtensions: []string{".AppImage"},
	}
}

// GetTrashDir returns the freedesktop.org home trash directory
func GetTrashDir(homeDir string) string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "Trash")
	}
	return filepath.Join(homeDir, ".local/share/Trash")
}
