package platform

import "path/filepath"

// getMacOSInfo returns platform-specific information for macOS
func getMacOSInfo(homeDir, username string) *Info {
	return &Info{
		OS:       MacOS,
		HomeDir:  homeDir,
		Username: username,
		JunkRoots: []JunkRoot{
			{Path: filepath.Join(homeDir, "Library/Caches"), Kind: KindCache},
			{Path: filepath.Join(homeDir, "Library/Logs"), Kind: KindLog},
			{Path: GetXcodeDerivedDataPath(homeDir), Kind: KindDerivedData},
			{Path: GetSimulatorCachePath(homeDir), Kind: KindDerivedData},
		},
		TrashDir: filepath.Join(homeDir, ".Trash"),
		ProtectedPaths: []string{
			"/Library/Keychains",
			filepath.Join(homeDir, "Library/Keychains"),
			filepath.Join(homeDir, "Library/Preferences"),
			filepath.Join(homeDir, ".ssh"),
		},
		PinnedPaths:   []string{"/Users", homeDir},
		AppDirs:       []string{"/Applications", filepath.Join(homeDir, "Applications")},
		AppExtensions: []string{".app"},
		// TCC-guarded locations; readable only with full disk access.
		SentinelPaths: []string{
			filepath.Join(homeDir, "Library/Safari"),
			filepath.Join(homeDir, "Library/Mail"),
			filepath.Join(homeDir, ".Trash"),
		},
	}
}

// GetXcodeDerivedDataPath returns the Xcode derived data path
func GetXcodeDerivedDataPath(homeDir string) string {
	return filepath.Join(homeDir, "Library/Developer/Xcode/DerivedData")
}

// GetSimulatorCachePath returns the iOS Simulator cache path
func GetSimulatorCachePath(homeDir string) string {
	return filepath.Join(homeDir, "Library/Developer/CoreSimulator/Caches")
}
