package errs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
	}{
		{"os.ErrNotExist", os.ErrNotExist, PathGoneRace},
		{"ENOENT", syscall.ENOENT, PathGoneRace},
		{"wrapped not exist", fmt.Errorf("open: %w", os.ErrNotExist), PathGoneRace},
		{"os.ErrPermission", os.ErrPermission, PathUnreadable},
		{"EACCES", syscall.EACCES, PathUnreadable},
		{"generic error", errors.New("boom"), PathUnreadable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize("/test/path", tt.err)
			if got == nil {
				t.Fatal("unexpected nil result")
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Path != "/test/path" {
				t.Errorf("Path = %q, want /test/path", got.Path)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("original error not preserved")
			}
		})
	}

	if Categorize("/x", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestCategorizeKeepsExistingError(t *testing.T) {
	orig := New(PathGoneRace, "/a", os.ErrNotExist)
	wrapped := fmt.Errorf("hash: %w", orig)

	if got := Categorize("/b", wrapped); got != orig {
		t.Errorf("Categorize() = %v, want original error", got)
	}
}

func TestCategorizeDeletion(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      Kind
		wantRetryable bool
	}{
		{"not exist", os.ErrNotExist, PathGoneRace, false},
		{"ENOENT", syscall.ENOENT, PathGoneRace, false},
		{"EACCES", syscall.EACCES, DeletionFailed, false},
		{"EBUSY", syscall.EBUSY, DeletionFailed, true},
		{"ETXTBSY", syscall.ETXTBSY, DeletionFailed, true},
		{"generic", errors.New("something went wrong"), DeletionFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeDeletion("/p", tt.err)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{PermissionDenied, "Permission denied"},
		{PathUnreadable, "Path unreadable"},
		{PathGoneRace, "Path vanished"},
		{DeletionFailed, "Deletion failed"},
		{ScanAlreadyRunning, "Scan already running"},
		{InvalidSelection, "Invalid selection"},
		{KindUnknown, "Unknown error"},
		{Kind(999), "Unspecified error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMatchesSentinels(t *testing.T) {
	err := fmt.Errorf("start: %w", New(ScanAlreadyRunning, "", nil))
	if !errors.Is(err, ErrScanAlreadyRunning) {
		t.Error("expected errors.Is to match ErrScanAlreadyRunning")
	}
	if errors.Is(err, ErrInvalidSelection) {
		t.Error("did not expect ErrInvalidSelection to match")
	}
	if KindOf(err) != ScanAlreadyRunning {
		t.Errorf("KindOf() = %v, want ScanAlreadyRunning", KindOf(err))
	}
	if KindOf(fmt.Errorf("x: %w", ErrPermissionDenied)) != PermissionDenied {
		t.Error("KindOf sentinel mismatch")
	}
}

func TestIsPermission(t *testing.T) {
	if !IsPermission(os.ErrPermission) {
		t.Error("os.ErrPermission should be a permission error")
	}
	if !IsPermission(&os.PathError{Op: "open", Path: "/x", Err: syscall.EACCES}) {
		t.Error("EACCES should be a permission error")
	}
	if IsPermission(os.ErrNotExist) {
		t.Error("ErrNotExist is not a permission error")
	}
	if IsPermission(nil) {
		t.Error("nil is not a permission error")
	}
}
