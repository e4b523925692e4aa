package trash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
)

// move renames src to dst. When the two sit on different filesystems the
// entry is copied and the source removed once the copy is complete.
func (b *Bin) move(src, dst string) error {
	err := b.fs.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := b.copyTree(src, dst); err != nil {
		b.fs.RemoveAll(dst)
		return fmt.Errorf("failed to copy %s into trash: %w", src, err)
	}
	if err := b.fs.RemoveAll(src); err != nil {
		return fmt.Errorf("copied %s into trash but could not remove it: %w", src, err)
	}
	return nil
}

// copyTree copies a file, symlink or directory tree
func (b *Bin) copyTree(src, dst string) error {
	return afero.Walk(b.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return b.fs.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			return b.copySymlink(path, target)
		case info.Mode().IsRegular():
			return b.copyFile(path, target, info)
		default:
			return nil
		}
	})
}

func (b *Bin) copyFile(src, dst string, info os.FileInfo) error {
	in, err := b.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := b.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return b.fs.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (b *Bin) copySymlink(src, dst string) error {
	reader, ok := b.fs.(afero.LinkReader)
	linker, ok2 := b.fs.(afero.Linker)
	if !ok || !ok2 {
		return fmt.Errorf("cannot copy symlink %s on this filesystem", src)
	}
	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(target, dst)
}
