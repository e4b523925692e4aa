package cleaner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/errs"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/testutil"
)

func record(t *testing.T, path string) scanner.FileRecord {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return scanner.FileRecord{Path: path, Size: uint64(info.Size()), IsDir: info.IsDir(), ModTime: info.ModTime()}
}

func newTestExecutor(opts Options) *Executor {
	if opts.Validator == nil {
		opts.Validator = security.NewEmptyPathValidator()
	}
	return New(opts)
}

// =============================================================================
// Batch semantics
// =============================================================================

func TestDeleteIsolatesPerItemFailures(t *testing.T) {
	f := testutil.NewFixture(t)
	p1 := f.CreateFile("docs/p1", make([]byte, 100))
	p2 := f.CreateFile("docs/p2", make([]byte, 40))
	p3 := f.CreateFile("docs/p3", make([]byte, 7))

	records := []scanner.FileRecord{record(t, p1), record(t, p2), record(t, p3)}
	if err := os.Remove(p2); err != nil {
		t.Fatal(err)
	}

	out := newTestExecutor(Options{}).Delete(context.Background(), records, nil)

	if out.Attempted != 3 || out.Succeeded != 2 {
		t.Errorf("attempted=%d succeeded=%d, want 3/2", out.Attempted, out.Succeeded)
	}
	if out.BytesFreed != 107 {
		t.Errorf("BytesFreed = %d, want 107", out.BytesFreed)
	}
	if len(out.Items) != 3 {
		t.Fatalf("got %d item outcomes, want 3", len(out.Items))
	}
	if out.Items[1].Succeeded || out.Items[1].Kind != errs.PathGoneRace {
		t.Errorf("p2 outcome = %+v, want PathGoneRace failure", out.Items[1])
	}
	if !out.Items[2].Succeeded {
		t.Errorf("p3 not removed after p2 failed: %+v", out.Items[2])
	}
	f.AssertFileNotExists(p1)
	f.AssertFileNotExists(p3)
}

func TestDeleteOnlyListedPaths(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateFile("docs/dup/a", []byte("same"))
	b := f.CreateFile("docs/dup/b", []byte("same"))
	c := f.CreateFile("docs/dup/c", []byte("same"))

	out := newTestExecutor(Options{}).Delete(context.Background(), []scanner.FileRecord{record(t, b)}, nil)

	if out.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", out.Succeeded)
	}
	f.AssertFileExists(a)
	f.AssertFileNotExists(b)
	f.AssertFileExists(c)
}

func TestDeleteProgressReachesTotal(t *testing.T) {
	f := testutil.NewFixture(t)
	var records []scanner.FileRecord
	for _, name := range []string{"a", "b", "c", "d"} {
		records = append(records, record(t, f.CreateFile("docs/"+name, []byte(name))))
	}

	var mu sync.Mutex
	var last [2]int
	calls := 0
	onProgress := func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if completed < last[0] {
			t.Errorf("progress went backwards: %d after %d", completed, last[0])
		}
		last = [2]int{completed, total}
		calls++
	}

	newTestExecutor(Options{}).Delete(context.Background(), records, onProgress)

	mu.Lock()
	defer mu.Unlock()
	if last != [2]int{4, 4} {
		t.Errorf("last progress = %v, want [4 4]", last)
	}
	if calls == 0 {
		t.Error("progress callback never invoked")
	}
}

func TestDeleteSlowProgressDoesNotBlock(t *testing.T) {
	fs := afero.NewMemMapFs()
	var records []scanner.FileRecord
	for i := 0; i < 50; i++ {
		p := testutil.WriteMemFile(t, fs, fmt.Sprintf("/d/f%02d", i), []byte("x"))
		records = append(records, scanner.FileRecord{Path: p, Size: 1})
	}

	release := make(chan struct{})
	defer close(release)
	onProgress := func(int, int) { <-release }

	start := time.Now()
	out := newTestExecutor(Options{Fs: fs}).Delete(context.Background(), records, onProgress)

	if out.Succeeded != 50 {
		t.Errorf("succeeded = %d, want 50", out.Succeeded)
	}
	if elapsed := time.Since(start); elapsed > flushTimeout+3*time.Second {
		t.Errorf("Delete blocked on progress callback for %v", elapsed)
	}
}

func TestDeleteCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateFile("docs/a", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newTestExecutor(Options{}).Delete(ctx, []scanner.FileRecord{record(t, a)}, nil)

	if !out.Cancelled || out.Attempted != 0 {
		t.Errorf("outcome = %+v, want cancelled with nothing attempted", out)
	}
	f.AssertFileExists(a)
}

// =============================================================================
// Safety checks
// =============================================================================

func TestDeleteRefusesProtectedPath(t *testing.T) {
	f := testutil.NewFixture(t)
	keep := f.CreateFile("docs/keep/file", []byte("k"))

	ex := New(Options{Validator: security.NewEmptyPathValidator(filepath.Join(f.DocsDir, "keep"))})
	out := ex.Delete(context.Background(), []scanner.FileRecord{record(t, keep)}, nil)

	if out.Succeeded != 0 || out.Items[0].Kind != errs.DeletionFailed {
		t.Errorf("outcome = %+v, want DeletionFailed", out.Items)
	}
	f.AssertFileExists(keep)
}

func TestDeleteRefusesSymlinkSwap(t *testing.T) {
	f := testutil.NewFixture(t)
	target := f.CreateFile("outside/precious", []byte("p"))
	path := f.CreateFile("docs/victim", []byte("v"))
	rec := record(t, path)

	os.Remove(path)
	f.CreateSymlink(target, "docs/victim")

	out := newTestExecutor(Options{}).Delete(context.Background(), []scanner.FileRecord{rec}, nil)

	if out.Succeeded != 0 || out.Items[0].Kind != errs.DeletionFailed {
		t.Errorf("outcome = %+v, want DeletionFailed", out.Items)
	}
	f.AssertFileExists(target)
	f.AssertFileExists(path)
}

func TestDeleteAllowsSymlinkWhenConfigured(t *testing.T) {
	f := testutil.NewFixture(t)
	target := f.CreateFile("outside/precious", []byte("p"))
	link := f.CreateSymlink(target, "trash/link")

	rec := scanner.FileRecord{Path: link}
	out := newTestExecutor(Options{AllowSymlinks: true}).Delete(context.Background(), []scanner.FileRecord{rec}, nil)

	if out.Succeeded != 1 {
		t.Fatalf("outcome = %+v, want link removed", out.Items)
	}
	f.AssertFileNotExists(link)
	f.AssertFileExists(target)
}

func TestDeleteRefusesFileTurnedDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateFile("docs/was-file", []byte("v"))
	rec := record(t, path)

	os.Remove(path)
	f.CreateFile("docs/was-file/inner", []byte("i"))

	out := newTestExecutor(Options{}).Delete(context.Background(), []scanner.FileRecord{rec}, nil)

	if out.Succeeded != 0 || out.Items[0].Kind != errs.DeletionFailed {
		t.Errorf("outcome = %+v, want DeletionFailed", out.Items)
	}
	f.AssertFileExists(filepath.Join(path, "inner"))
}

func TestDeleteBundleDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	bundle, size := f.CreateBundle("derived/App.app", 3, 4)

	rec := scanner.FileRecord{Path: bundle, Size: uint64(size), IsDir: true}
	out := newTestExecutor(Options{}).Delete(context.Background(), []scanner.FileRecord{rec}, nil)

	if out.Succeeded != 1 || out.BytesFreed != 7 {
		t.Errorf("outcome = %+v, want bundle removed with 7 bytes", out)
	}
	f.AssertFileNotExists(bundle)
}

// =============================================================================
// Removers and retries
// =============================================================================

func TestDeleteRetriesBusyFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testutil.WriteMemFile(t, fs, "/d/busy", []byte("b"))

	calls := 0
	remover := RemoverFunc(func(path string, isDir bool) error {
		calls++
		if calls < 3 {
			return &os.PathError{Op: "remove", Path: path, Err: syscall.EBUSY}
		}
		return fs.Remove(path)
	})

	ex := newTestExecutor(Options{Fs: fs, Remover: remover, RetryDelays: []time.Duration{time.Millisecond}})
	out := ex.Delete(context.Background(), []scanner.FileRecord{{Path: p, Size: 1}}, nil)

	if out.Succeeded != 1 || calls != 3 {
		t.Errorf("succeeded=%d calls=%d, want 1/3", out.Succeeded, calls)
	}
}

func TestDeleteDoesNotRetryPermanentFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testutil.WriteMemFile(t, fs, "/d/locked", []byte("l"))

	calls := 0
	remover := RemoverFunc(func(path string, isDir bool) error {
		calls++
		return &os.PathError{Op: "remove", Path: path, Err: syscall.EACCES}
	})

	ex := newTestExecutor(Options{Fs: fs, Remover: remover, RetryDelays: []time.Duration{time.Millisecond}})
	out := ex.Delete(context.Background(), []scanner.FileRecord{{Path: p, Size: 1}}, nil)

	if out.Succeeded != 0 || calls != 1 || out.Items[0].Kind != errs.DeletionFailed {
		t.Errorf("outcome = %+v, calls = %d", out.Items, calls)
	}
}

type fakeTrash struct {
	moved []string
}

func (f *fakeTrash) MoveToTrash(path string) error {
	f.moved = append(f.moved, path)
	return nil
}

func TestDeleteWithTrashRemover(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testutil.WriteMemFile(t, fs, "/d/junk", []byte("junk"))
	bin := &fakeTrash{}
	manifest := NewDeletionManifest()

	ex := newTestExecutor(Options{Fs: fs, Remover: TrashRemover{Bin: bin}, Manifest: manifest})
	out := ex.Delete(context.Background(), []scanner.FileRecord{{Path: p, Size: 4}}, nil)

	if out.Succeeded != 1 || len(bin.moved) != 1 || bin.moved[0] != p {
		t.Errorf("outcome = %+v, moved = %v", out, bin.moved)
	}
	if manifest.Len() != 1 || manifest.Files[0].Method != "trash" || manifest.TotalSize != 4 {
		t.Errorf("manifest = %+v", manifest.Files)
	}
}

// =============================================================================
// Manifest and formatting
// =============================================================================

func TestManifestSave(t *testing.T) {
	m := NewDeletionManifest()
	m.Add("/tmp/a", 10, "permanent")
	m.Add("/tmp/b", 5, "trash")

	path := filepath.Join(t.TempDir(), "manifest.txt")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Total Size: 15 bytes", "Total Files: 2", "/tmp/a | 10 bytes | permanent", "/tmp/b | 5 bytes | trash"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("manifest missing %q:\n%s", want, data)
		}
	}
}

func TestFormatFailureSummary(t *testing.T) {
	out := Outcome{
		Attempted: 3,
		Succeeded: 1,
		Items: []ItemOutcome{
			{Path: "/a", Succeeded: true},
			{Path: "/b", Kind: errs.PathGoneRace},
			{Path: "/c", Kind: errs.DeletionFailed},
		},
	}

	got := FormatFailureSummary(out)
	for _, want := range []string{"2 of 3", errs.PathGoneRace.String(), errs.DeletionFailed.String(), "first: /c"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if FormatFailureSummary(Outcome{Attempted: 1, Succeeded: 1, Items: []ItemOutcome{{Succeeded: true}}}) != "" {
		t.Error("expected empty summary without failures")
	}
	if s := FormatOutcome(Outcome{Attempted: 2, Succeeded: 1, BytesFreed: 2048, Cancelled: true}); s != "1/2 items removed, 2.00 KB freed (cancelled)" {
		t.Errorf("FormatOutcome() = %q", s)
	}
}
