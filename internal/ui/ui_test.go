package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/fenilsonani/reclaim/internal/classifier"
	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/session"
)

type fakeController struct {
	progress  session.Progress
	err       error
	cancelled []session.Handle
}

func (f *fakeController) Progress(h session.Handle) (session.Progress, error) {
	return f.progress, f.err
}

func (f *fakeController) Cancel(h session.Handle) error {
	f.cancelled = append(f.cancelled, h)
	return nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestScanModelUpdates(t *testing.T) {
	ctrl := &fakeController{progress: session.Progress{State: session.StateScanning}}
	m := NewScanModel(ctrl, "h1", "Scanning junk", nil)

	next, _ := m.Update(scanUpdateMsg{update: &progress.ScanProgress{
		Session:    "h1",
		Phase:      progress.PhaseScanning,
		ItemsFound: 4,
		BytesFound: 2048,
	}})
	m = next.(ScanModel)
	if m.progress.ItemsFound != 4 || m.progress.BytesFound != 2048 {
		t.Errorf("progress = %+v, want 4 items / 2048 bytes", m.progress)
	}

	// Updates for other sessions are ignored
	next, _ = m.Update(scanUpdateMsg{update: &progress.ScanProgress{Session: "other", ItemsFound: 99}})
	m = next.(ScanModel)
	if m.progress.ItemsFound != 4 {
		t.Errorf("ItemsFound = %d, want 4", m.progress.ItemsFound)
	}

	view := m.View()
	if !strings.Contains(view, "Scanning junk") || !strings.Contains(view, "2.00 KB") {
		t.Errorf("view missing title or size:\n%s", view)
	}
}

func TestScanModelQuitsWhenFinished(t *testing.T) {
	tests := []struct {
		name  string
		state session.State
		quit  bool
	}{
		{"still scanning", session.StateScanning, false},
		{"completed", session.StateCompleted, true},
		{"cancelled", session.StateCancelled, true},
		{"failed", session.StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{progress: session.Progress{State: tt.state, ItemsFound: 2}}
			m := NewScanModel(ctrl, "h1", "scan", nil)

			next, cmd := m.Update(pollMsg{})
			m = next.(ScanModel)
			if m.State() != tt.state {
				t.Errorf("State() = %s, want %s", m.State(), tt.state)
			}
			if tt.quit != isQuit(cmd) {
				t.Errorf("quit = %v, want %v", !tt.quit, tt.quit)
			}
		})
	}
}

func TestScanModelCancel(t *testing.T) {
	ctrl := &fakeController{progress: session.Progress{State: session.StateScanning}}
	m := NewScanModel(ctrl, "h1", "scan", nil)

	next, cmd := m.Update(key("q"))
	m = next.(ScanModel)
	if !m.Cancelled() {
		t.Error("expected Cancelled() after q")
	}
	if len(ctrl.cancelled) != 1 || ctrl.cancelled[0] != "h1" {
		t.Errorf("cancelled = %v, want [h1]", ctrl.cancelled)
	}
	if !isQuit(cmd) {
		t.Error("expected quit after cancel")
	}
}

func TestScanModelProgressError(t *testing.T) {
	ctrl := &fakeController{err: errors.New("unknown session")}
	m := NewScanModel(ctrl, "h1", "scan", nil)

	next, cmd := m.Update(pollMsg{})
	m = next.(ScanModel)
	if m.Err() == nil {
		t.Error("expected error to be kept")
	}
	if !isQuit(cmd) {
		t.Error("expected quit on error")
	}
	if !strings.Contains(m.View(), "unknown session") {
		t.Error("view should show the error")
	}
}

func testRows() []Row {
	return []Row{
		{Path: "/cache/a", Size: 100, Label: "cache"},
		{Path: "/cache/b", Size: 200, Label: "cache"},
		{Path: "/logs/c.log", Size: 300, Label: "log"},
	}
}

func TestSelectModelToggleAndConfirm(t *testing.T) {
	m := NewSelectModel("Junk", "move to trash", testRows())

	var model tea.Model = m
	for _, k := range []string{" ", "down", "down", "x"} {
		model, _ = model.Update(key(k))
	}
	sm := model.(SelectModel)

	got := sm.Selected()
	want := []string{"/cache/a", "/logs/c.log"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	if n, size := sm.selectedSize(); n != 2 || size != 400 {
		t.Errorf("selectedSize() = %d, %d, want 2, 400", n, size)
	}

	model, _ = model.Update(key("enter"))
	if model.(SelectModel).step != stepConfirm {
		t.Fatal("enter should open the confirmation")
	}
	if !strings.Contains(model.View(), "move to trash") {
		t.Errorf("confirm view missing verb:\n%s", model.View())
	}

	model, cmd := model.Update(key("y"))
	if !model.(SelectModel).Confirmed() {
		t.Error("expected Confirmed() after y")
	}
	if !isQuit(cmd) {
		t.Error("expected quit after confirm")
	}
}

func TestSelectModelAllNoneAndBack(t *testing.T) {
	var model tea.Model = NewSelectModel("Junk", "delete", testRows())

	model, _ = model.Update(key("a"))
	if n := len(model.(SelectModel).Selected()); n != 3 {
		t.Errorf("after a: %d selected, want 3", n)
	}

	model, _ = model.Update(key("enter"))
	model, _ = model.Update(key("n"))
	sm := model.(SelectModel)
	if sm.step != stepSelect || sm.Confirmed() {
		t.Error("n in confirmation should go back without confirming")
	}

	model, _ = model.Update(key("n"))
	if n := len(model.(SelectModel).Selected()); n != 0 {
		t.Errorf("after n: %d selected, want 0", n)
	}

	// enter with nothing selected stays on the list
	model, _ = model.Update(key("enter"))
	if model.(SelectModel).step != stepSelect {
		t.Error("enter with empty selection should not confirm")
	}

	_, cmd := model.Update(key("q"))
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
}

func TestSelectModelDoesNotMutateInput(t *testing.T) {
	rows := testRows()
	var model tea.Model = NewSelectModel("Junk", "delete", rows)
	model.Update(key(" "))
	if rows[0].Selected {
		t.Error("caller rows were modified")
	}
}

func TestSelectModelCursorBounds(t *testing.T) {
	var model tea.Model = NewSelectModel("Junk", "delete", testRows())
	model, _ = model.Update(key("up"))
	if c := model.(SelectModel).cursor; c != 0 {
		t.Errorf("cursor = %d, want 0", c)
	}
	model, _ = model.Update(key("G"))
	model, _ = model.Update(key("down"))
	if c := model.(SelectModel).cursor; c != 2 {
		t.Errorf("cursor = %d, want 2", c)
	}
}

func TestSelectModelEmpty(t *testing.T) {
	var model tea.Model = NewSelectModel("Trash", "delete", nil)
	model, _ = model.Update(key(" "))
	if !strings.Contains(model.View(), "Nothing to clean") {
		t.Errorf("unexpected view:\n%s", model.View())
	}
}

func TestRowsFromResults(t *testing.T) {
	now := time.Now()
	res := &scanner.ScanResult{
		Kind: scanner.KindJunk,
		Junk: []scanner.JunkItem{
			{Record: scanner.FileRecord{Path: "/c/a", Size: 10}, Category: classifier.Cache, Selected: true},
			{Record: scanner.FileRecord{Path: "/l/b", Size: 20}, Category: classifier.Log},
		},
	}
	rows := JunkRows(res)
	if len(rows) != 2 || !rows[0].Selected || rows[1].Label != "log" {
		t.Errorf("JunkRows() = %+v", rows)
	}

	dupes := &scanner.ScanResult{
		Kind: scanner.KindDuplicates,
		Groups: []scanner.DuplicateGroup{{
			Key: scanner.DigestKey{Size: 5},
			Files: []scanner.FileRecord{
				{Path: "/d/keep", Size: 5, ModTime: now.Add(-time.Hour)},
				{Path: "/d/copy1", Size: 5, ModTime: now},
				{Path: "/d/copy2", Size: 5, ModTime: now},
			},
		}},
	}
	rows = DuplicateRows(dupes)
	if len(rows) != 2 {
		t.Fatalf("DuplicateRows() returned %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.Path == "/d/keep" {
			t.Error("retained copy must not be offered")
		}
		if r.Label != "duplicate of /d/keep" {
			t.Errorf("label = %q", r.Label)
		}
	}
}

func TestDeleteModel(t *testing.T) {
	out := cleaner.Outcome{Attempted: 2, Succeeded: 2, BytesFreed: 300}
	run := func(onProgress cleaner.ProgressFunc) (cleaner.Outcome, error) {
		onProgress(1, 2)
		onProgress(2, 2)
		return out, nil
	}
	m := NewDeleteModel("Deleting", 2, run, nil)

	msg := m.start()()
	done, ok := msg.(deleteDoneMsg)
	if !ok {
		t.Fatalf("start() returned %T, want deleteDoneMsg", msg)
	}

	first := <-m.updates
	next, _ := m.Update(first)
	m = next.(DeleteModel)
	if m.completed != 1 || m.percent() != 0.5 {
		t.Errorf("after first update: completed=%d percent=%v", m.completed, m.percent())
	}
	if !strings.Contains(m.View(), "1/2 items") {
		t.Errorf("view missing counter:\n%s", m.View())
	}

	next, cmd := m.Update(done)
	m = next.(DeleteModel)
	if !isQuit(cmd) {
		t.Error("expected quit when batch is done")
	}
	got, err := m.Outcome()
	if err != nil || got.Succeeded != 2 {
		t.Errorf("Outcome() = %+v, %v", got, err)
	}
	if !strings.Contains(m.View(), "Done") {
		t.Errorf("view should report completion:\n%s", m.View())
	}
}

func TestDeleteModelCancel(t *testing.T) {
	cancelled := false
	m := NewDeleteModel("Deleting", 3, nil, func() { cancelled = true })
	m.Update(key("ctrl+c"))
	if !cancelled {
		t.Error("ctrl+c should cancel the batch")
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		maxWidth int
	}{
		{"short", "/a/b.txt", 40},
		{"long", "/Users/someone/Library/Caches/com.example.app/blobs/data.bin", 40},
		{"long file", "/x/" + strings.Repeat("f", 60), 30},
		{"tiny width", "/Users/someone/file", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncatePath(tt.path, tt.maxWidth)
			if len(tt.path) <= tt.maxWidth && got != tt.path {
				t.Errorf("truncatePath() = %q, want unchanged", got)
			}
			if len(got) > tt.maxWidth && tt.maxWidth >= 10 {
				t.Errorf("truncatePath() = %q exceeds %d", got, tt.maxWidth)
			}
		})
	}
}

func TestSizeWarning(t *testing.T) {
	if sizeWarning(120, 40) != "" {
		t.Error("no warning expected for a large terminal")
	}
	if !strings.Contains(sizeWarning(60, 20), "60x20") {
		t.Error("warning should include the current size")
	}
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	ctrl := &fakeController{progress: session.Progress{
		State:      session.StateScanning,
		Phase:      progress.PhaseHashing,
		ItemsFound: 12,
		BytesFound: 2048,
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LogProgress(ctx, ctrl, "h1", zerolog.New(&buf), time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("LogProgress() error = %v, want context.Canceled", err)
	}
	if !strings.Contains(buf.String(), "Comparing contents of 12 files (2.00 KB)") {
		t.Errorf("log = %s", buf.String())
	}

	buf.Reset()
	ctrl.progress.State = session.StateCompleted
	if _, err := LogProgress(context.Background(), ctrl, "h1", zerolog.New(&buf), 0); err != nil {
		t.Fatalf("LogProgress() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("finished scan should not log, got %s", buf.String())
	}
}

func TestLogDeletion(t *testing.T) {
	var buf bytes.Buffer
	fn := LogDeletion(zerolog.New(&buf))

	fn(1, 4)

	for _, want := range []string{`"completed":1`, `"total":4`, "1/4 items (25%)"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log missing %q: %s", want, buf.String())
		}
	}
}
