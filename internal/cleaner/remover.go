package cleaner

import (
	"github.com/spf13/afero"
)

// Remover is the deletion primitive used by the Executor
type Remover interface {
	Remove(path string, isDir bool) error
}

// RemoverFunc adapts a function to Remover
type RemoverFunc func(path string, isDir bool) error

// Remove implements Remover
func (f RemoverFunc) Remove(path string, isDir bool) error {
	return f(path, isDir)
}

// PermanentRemover deletes without a way back
type PermanentRemover struct {
	Fs afero.Fs
}

// Remove deletes a file, or a directory with its contents
func (r PermanentRemover) Remove(path string, isDir bool) error {
	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	// Use RemoveAll for directories (e.g. bundles)
	if isDir {
		return fs.RemoveAll(path)
	}
	return fs.Remove(path)
}

// Trasher moves a path to the OS trash
type Trasher interface {
	MoveToTrash(path string) error
}

// TrashRemover moves paths to the OS trash instead of deleting them
type TrashRemover struct {
	Bin Trasher
}

// Remove implements Remover
func (r TrashRemover) Remove(path string, _ bool) error {
	return r.Bin.MoveToTrash(path)
}
