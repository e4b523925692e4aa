// Package errs defines the error kinds shared by the scan and deletion engine.
package errs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Kind categorizes why an operation or a single item failed
type Kind int

const (
	KindUnknown Kind = iota
	PermissionDenied
	PathUnreadable
	PathGoneRace
	DeletionFailed
	ScanAlreadyRunning
	InvalidSelection
)

// String returns a human-readable kind
func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "Permission denied"
	case PathUnreadable:
		return "Path unreadable"
	case PathGoneRace:
		return "Path vanished"
	case DeletionFailed:
		return "Deletion failed"
	case ScanAlreadyRunning:
		return "Scan already running"
	case InvalidSelection:
		return "Invalid selection"
	case KindUnknown:
		return "Unknown error"
	default:
		return "Unspecified error"
	}
}

// Sentinel errors for operation-level failures. They are returned before any
// work starts and never describe a single item.
var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrScanAlreadyRunning = errors.New("scan already running")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrUnknownSession     = errors.New("unknown session")
)

// Error is a per-path failure
type Error struct {
	Kind      Kind
	Path      string
	Err       error
	Retryable bool
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the operation-level sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return e.Kind == PermissionDenied
	case ErrScanAlreadyRunning:
		return e.Kind == ScanAlreadyRunning
	case ErrInvalidSelection:
		return e.Kind == InvalidSelection
	}
	return false
}

// New creates a per-path error of the given kind
func New(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf extracts the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return PermissionDenied
	case errors.Is(err, ErrScanAlreadyRunning):
		return ScanAlreadyRunning
	case errors.Is(err, ErrInvalidSelection):
		return InvalidSelection
	}
	return KindUnknown
}

// Categorize maps an error from a read (walk or hash) to a per-path Error.
// Missing files are PathGoneRace, everything else is PathUnreadable.
func Categorize(path string, err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, os.ErrNotExist) {
		return New(PathGoneRace, path, err)
	}
	return New(PathUnreadable, path, err)
}

// CategorizeDeletion maps an error from a remove call to a per-path Error.
// Busy files are marked retryable.
func CategorizeDeletion(path string, err error) *Error {
	if err == nil {
		return nil
	}

	delErr := &Error{Kind: DeletionFailed, Path: path, Err: err}

	if errors.Is(err, os.ErrNotExist) {
		delErr.Kind = PathGoneRace
		return delErr
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			delErr.Kind = PathGoneRace
		case syscall.EBUSY, syscall.ETXTBSY:
			delErr.Retryable = true
		}
	}

	return delErr
}

// IsPermission reports whether err is an OS permission failure
func IsPermission(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EACCES || errno == syscall.EPERM
	}
	return false
}

// GroupByKind groups per-path errors by kind
func GroupByKind(list []*Error) map[Kind][]*Error {
	grouped := make(map[Kind][]*Error)
	for _, err := range list {
		grouped[err.Kind] = append(grouped[err.Kind], err)
	}
	return grouped
}
