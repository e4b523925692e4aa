// Package permission answers whether the process holds an OS capability.
package permission

import (
	"os"
	"os/user"

	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/errs"
)

// Capability is an OS-level authorization
type Capability string

const (
	// FullDiskAccess covers reading protected user areas such as the
	// trash and application caches
	FullDiskAccess Capability = "full_disk_access"
)

// Gate reports whether a capability is granted. The engine only asks; it
// never tries to obtain one.
type Gate interface {
	IsAuthorized(c Capability) bool
}

// OSGate checks the filesystem for capabilities
type OSGate struct {
	fs        afero.Fs
	sentinels []string
	isRoot    bool
}

// NewOSGate creates a gate that tries to list sentinels. An empty sentinel
// list means the platform has no such authorization layer.
func NewOSGate(fs afero.Fs, sentinels []string) *OSGate {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	currentUser, _ := user.Current()
	return &OSGate{
		fs:        fs,
		sentinels: sentinels,
		isRoot:    currentUser != nil && currentUser.Uid == "0",
	}
}

// IsRunningAsRoot checks if the current process is running as root
func (g *OSGate) IsRunningAsRoot() bool {
	return g.isRoot
}

// IsAuthorized implements Gate. A sentinel that does not exist says nothing;
// one that exists but cannot be listed means the capability is missing.
func (g *OSGate) IsAuthorized(c Capability) bool {
	if c != FullDiskAccess {
		return false
	}

	for _, p := range g.sentinels {
		f, err := g.fs.Open(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			if errs.IsPermission(err) {
				return false
			}
			continue
		}
		_, err = f.Readdirnames(1)
		f.Close()
		if err != nil && errs.IsPermission(err) {
			return false
		}
	}
	return true
}

// Static is a Gate with a fixed answer per capability
type Static map[Capability]bool

// IsAuthorized implements Gate
func (s Static) IsAuthorized(c Capability) bool {
	return s[c]
}

// AllowAll is a Gate that grants everything
var AllowAll Gate = allowAll{}

type allowAll struct{}

func (allowAll) IsAuthorized(Capability) bool { return true }
