package trash

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/platform"
)

// Layout is the on-disk convention of a trash directory
type Layout int

const (
	// LayoutFlat is the macOS ~/.Trash: entries live directly in the dir
	LayoutFlat Layout = iota
	// LayoutFreedesktop keeps entries in files/ and metadata in info/
	LayoutFreedesktop
)

const trashInfoExt = ".trashinfo"

// Bin moves files into a trash directory and purges trash entries
type Bin struct {
	fs     afero.Fs
	root   string
	layout Layout
	now    func() time.Time
}

// NewBin creates a bin rooted at root
func NewBin(fs afero.Fs, root string, layout Layout) *Bin {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Bin{fs: fs, root: filepath.Clean(root), layout: layout, now: time.Now}
}

// NewPlatformBin creates the bin for the current user's trash
func NewPlatformBin(fs afero.Fs, info *platform.Info) *Bin {
	layout := LayoutFreedesktop
	if info.OS == platform.MacOS {
		layout = LayoutFlat
	}
	return NewBin(fs, info.TrashDir, layout)
}

// ContentDir is the directory holding trashed entries
func (b *Bin) ContentDir() string {
	if b.layout == LayoutFreedesktop {
		return filepath.Join(b.root, "files")
	}
	return b.root
}

func (b *Bin) infoDir() string {
	return filepath.Join(b.root, "info")
}

// MoveToTrash moves path into the trash under a unique name
func (b *Bin) MoveToTrash(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	if _, err := b.fs.Stat(b.ContentDir()); err != nil {
		if err := b.fs.MkdirAll(b.ContentDir(), 0700); err != nil {
			return fmt.Errorf("failed to create trash directory: %w", err)
		}
	}

	if b.layout == LayoutFlat {
		dest, err := b.uniqueName(filepath.Base(path), func(name string) bool {
			_, err := b.fs.Stat(filepath.Join(b.root, name))
			return err == nil
		})
		if err != nil {
			return err
		}
		return b.move(path, filepath.Join(b.root, dest))
	}

	return b.moveFreedesktop(path)
}

// moveFreedesktop reserves the name by creating the .trashinfo file
// exclusively, then renames the entry into files/
func (b *Bin) moveFreedesktop(path string) error {
	if err := b.fs.MkdirAll(b.infoDir(), 0700); err != nil {
		return fmt.Errorf("failed to create trash info directory: %w", err)
	}

	var name string
	var info afero.File
	for attempt := 0; attempt < 5; attempt++ {
		candidate := filepath.Base(path)
		if attempt > 0 {
			candidate = suffixed(candidate)
		}
		if _, err := b.fs.Stat(filepath.Join(b.ContentDir(), candidate)); err == nil {
			continue
		}
		f, err := b.fs.OpenFile(filepath.Join(b.infoDir(), candidate+trashInfoExt), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return fmt.Errorf("failed to create trash info: %w", err)
		}
		name, info = candidate, f
		break
	}
	if info == nil {
		return fmt.Errorf("no free trash name for %s", path)
	}

	infoPath := filepath.Join(b.infoDir(), name+trashInfoExt)
	_, err := fmt.Fprintf(info, "[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: path}).EscapedPath(),
		b.now().Format("2006-01-02T15:04:05"))
	if cerr := info.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		b.fs.Remove(infoPath)
		return fmt.Errorf("failed to write trash info: %w", err)
	}

	if err := b.move(path, filepath.Join(b.ContentDir(), name)); err != nil {
		b.fs.Remove(infoPath)
		return err
	}
	return nil
}

// Purge permanently removes a trash entry and its metadata
func (b *Bin) Purge(path string) error {
	if err := b.fs.RemoveAll(path); err != nil {
		return err
	}
	if b.layout == LayoutFreedesktop && filepath.Dir(path) == b.ContentDir() {
		err := b.fs.Remove(filepath.Join(b.infoDir(), filepath.Base(path)+trashInfoExt))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (b *Bin) uniqueName(base string, exists func(string) bool) (string, error) {
	if !exists(base) {
		return base, nil
	}
	for attempt := 0; attempt < 5; attempt++ {
		if name := suffixed(base); !exists(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free trash name for %s", base)
}

// suffixed inserts a short random tag before the extension
func suffixed(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return stem + " " + uuid.NewString()[:8] + ext
}
