package progress

import (
	"strings"
	"testing"
	"time"
)

func TestSubscribeReceivesUpdates(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()

	pr.UpdateScanProgress(&ScanProgress{Phase: PhaseScanning, ItemsFound: 3})

	select {
	case msg := <-ch:
		p, ok := msg.(*ScanProgress)
		if !ok || p.ItemsFound != 3 {
			t.Fatalf("unexpected update %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	if got := pr.GetScanProgress(); got == nil || got.ItemsFound != 3 {
		t.Errorf("GetScanProgress() = %#v", got)
	}
}

func TestSlowListenerDoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	pr.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.UpdateCleanProgress(&CleanProgress{Phase: PhaseCleaning, Completed: i, Total: 100})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on full listener")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()
	pr.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	// Publishing after unsubscribe must not panic
	pr.UpdateScanProgress(&ScanProgress{})
}

func TestFormatScanProgress(t *testing.T) {
	tests := []struct {
		name string
		p    *ScanProgress
		want string
	}{
		{"nil", nil, "Initializing"},
		{"scanning", &ScanProgress{Phase: PhaseScanning, Kind: "junk", ItemsFound: 2, BytesFound: 2048, StartTime: time.Now()}, "Found 2 items (2.00 KB)"},
		{"hashing", &ScanProgress{Phase: PhaseHashing, ItemsFound: 5, StartTime: time.Now()}, "Comparing contents of 5 files"},
		{"cancelled", &ScanProgress{Phase: PhaseCancelled}, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatScanProgress(tt.p); !strings.Contains(got, tt.want) {
				t.Errorf("FormatScanProgress() = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestFormatCleanProgress(t *testing.T) {
	p := &CleanProgress{Phase: PhaseCleaning, Completed: 1, Total: 4, StartTime: time.Now()}
	if got := FormatCleanProgress(p); !strings.Contains(got, "1/4 items (25%)") {
		t.Errorf("FormatCleanProgress() = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h2m3s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
