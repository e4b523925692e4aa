package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"shout", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "info", JSON: true, Out: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()

	log.Debug().Msg("hidden")
	log.Info().Str("path", "/tmp/x").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["message"] != "shown" || entry["path"] != "/tmp/x" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Out: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Warn().Msg("careful")
	if !strings.Contains(buf.String(), "careful") {
		t.Errorf("expected console output, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("console output should not be JSON")
	}
}

func TestNewTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reclaim.log")
	var buf bytes.Buffer
	log, closer, err := New(Options{File: path, Out: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info().Msg("both")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"both"`) {
		t.Errorf("log file missing entry: %q", data)
	}
	if !strings.Contains(buf.String(), "both") {
		t.Error("console missing entry")
	}
}

func TestNewBadFile(t *testing.T) {
	_, _, err := New(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	if err == nil {
		t.Error("expected error for unwritable log file")
	}
}

func TestVerbose(t *testing.T) {
	var buf bytes.Buffer
	log, _, _ := New(Options{Level: "error", JSON: true, Out: &buf})
	verbose := Verbose(log)
	verbose.Debug().Msg("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("expected debug output after Verbose")
	}
}
