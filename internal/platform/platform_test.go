package platform

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/testutil"
)

func TestInfoFor(t *testing.T) {
	tests := []struct {
		name      string
		os        Platform
		wantTrash string
	}{
		{"macOS", MacOS, "/Users/alice/.Trash"},
		{"linux", Linux, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := "/Users/alice"
			info, err := InfoFor(tt.os, home, "alice")
			if err != nil {
				t.Fatalf("InfoFor() error = %v", err)
			}
			if len(info.JunkRoots) == 0 {
				t.Fatal("expected junk roots")
			}
			for _, r := range info.JunkRoots {
				if !strings.HasPrefix(r.Path, "/") {
					t.Errorf("junk root %q is not absolute", r.Path)
				}
				switch r.Kind {
				case KindCache, KindLog, KindDerivedData:
				default:
					t.Errorf("junk root %q has unknown kind %q", r.Path, r.Kind)
				}
			}
			if tt.wantTrash != "" && info.TrashDir != tt.wantTrash {
				t.Errorf("TrashDir = %q, want %q", info.TrashDir, tt.wantTrash)
			}
			if len(info.RootPaths()) != len(info.JunkRoots) {
				t.Error("RootPaths() length mismatch")
			}
		})
	}
}

func TestJunkRootsAreNotProtected(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	tests := []struct {
		os   Platform
		home string
	}{
		{MacOS, "/Users/alice"},
		{Linux, "/home/alice"},
		{Linux, "/root"},
	}

	for _, tt := range tests {
		t.Run(string(tt.os)+tt.home, func(t *testing.T) {
			info, err := InfoFor(tt.os, tt.home, "alice")
			if err != nil {
				t.Fatalf("InfoFor() error = %v", err)
			}

			pv := security.NewPathValidator(info.ProtectedPaths...)
			for _, p := range info.PinnedPaths {
				pv.AddPinnedPath(p)
			}

			for _, r := range info.JunkRoots {
				item := filepath.Join(r.Path, "some", "file.bin")
				if pv.IsProtectedPath(item) {
					t.Errorf("%s under junk root %s is protected", item, r.Path)
				}
			}
			if pv.IsProtectedPath(filepath.Join(info.TrashDir, "files", "x")) {
				t.Errorf("trash contents under %s are protected", info.TrashDir)
			}
			if !pv.IsProtectedPath(tt.home) {
				t.Errorf("home %s itself should be protected", tt.home)
			}
		})
	}
}

func TestLinuxLogRootSkipsStateDir(t *testing.T) {
	info, err := InfoFor(Linux, "/home/alice", "alice")
	if err != nil {
		t.Fatalf("InfoFor() error = %v", err)
	}

	state := "/home/alice/.local/state"
	for _, r := range info.JunkRoots {
		if r.Path == state || strings.HasPrefix(state, r.Path+"/") || strings.HasPrefix(r.Path, state+"/") {
			t.Errorf("junk root %s overlaps %s", r.Path, state)
		}
	}

	pv := security.NewPathValidator(info.ProtectedPaths...)
	if !pv.IsProtectedPath(filepath.Join(state, "bash", "history")) {
		t.Error("files under .local/state should be protected")
	}
}

func TestDetect(t *testing.T) {
	want := Unknown
	switch {
	case testutil.IsMacOS():
		want = MacOS
	case testutil.IsLinux():
		want = Linux
	}
	if got := Detect(); got != want {
		t.Errorf("Detect() = %v, want %v", got, want)
	}
}

func TestGetInfo(t *testing.T) {
	if !testutil.IsMacOS() && !testutil.IsLinux() {
		t.Skip("no platform defaults for this OS")
	}
	t.Setenv("XDG_DATA_HOME", "")

	info, err := GetInfo()
	if err != nil {
		t.Fatalf("GetInfo() error = %v", err)
	}
	if info.HomeDir == "" || len(info.JunkRoots) == 0 {
		t.Fatalf("info = %+v", info)
	}
	if !strings.HasPrefix(info.TrashDir, info.HomeDir) {
		t.Errorf("trash %s is outside home %s", info.TrashDir, info.HomeDir)
	}
}

func TestInfoForUnsupported(t *testing.T) {
	if _, err := InfoFor(Unknown, "/home/x", "x"); err != ErrUnsupportedPlatform {
		t.Errorf("InfoFor(Unknown) error = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestGetTrashDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	if got := GetTrashDir("/home/bob"); got != "/home/bob/.local/share/Trash" {
		t.Errorf("GetTrashDir() = %q", got)
	}

	t.Setenv("XDG_DATA_HOME", "/data")
	if got := GetTrashDir("/home/bob"); got != filepath.Join("/data", "Trash") {
		t.Errorf("GetTrashDir() with XDG_DATA_HOME = %q", got)
	}
}

func TestExecutableRoot(t *testing.T) {
	if root := ExecutableRoot(); root == "" || !filepath.IsAbs(root) {
		t.Errorf("ExecutableRoot() = %q, want absolute path", root)
	}
}
