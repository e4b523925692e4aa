package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/sysstats"
	"github.com/fenilsonani/reclaim/internal/trash"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat validates a format name
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
	now    func() time.Time
}

// New creates a new Reporter
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
		now:    time.Now,
	}
}

// FileEntry is the serialized form of a file record
type FileEntry struct {
	Path     string    `json:"path" yaml:"path"`
	Size     uint64    `json:"size" yaml:"size"`
	IsDir    bool      `json:"is_dir,omitempty" yaml:"is_dir,omitempty"`
	Modified time.Time `json:"modified" yaml:"modified"`
	Category string    `json:"category,omitempty" yaml:"category,omitempty"`
}

// GroupEntry is the serialized form of a duplicate group
type GroupEntry struct {
	Digest      string      `json:"digest" yaml:"digest"`
	Size        uint64      `json:"size" yaml:"size"`
	Reclaimable uint64      `json:"reclaimable" yaml:"reclaimable"`
	Retained    string      `json:"retained" yaml:"retained"`
	Files       []FileEntry `json:"files" yaml:"files"`
}

// SkipEntry is the serialized form of a skipped path
type SkipEntry struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// ScanReport is the serialized form of a scan result
type ScanReport struct {
	Timestamp          string       `json:"timestamp" yaml:"timestamp"`
	Kind               string       `json:"kind" yaml:"kind"`
	TotalItems         int          `json:"total_items" yaml:"total_items"`
	TotalSize          uint64       `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string       `json:"total_size_formatted" yaml:"total_size_formatted"`
	Duration           string       `json:"duration" yaml:"duration"`
	Groups             []GroupEntry `json:"groups,omitempty" yaml:"groups,omitempty"`
	Items              []FileEntry  `json:"items,omitempty" yaml:"items,omitempty"`
	Skipped            []SkipEntry  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func entry(rec scanner.FileRecord, category string) FileEntry {
	return FileEntry{Path: rec.Path, Size: rec.Size, IsDir: rec.IsDir, Modified: rec.ModTime, Category: category}
}

// BuildScanReport converts a result into its serialized form
func (r *Reporter) BuildScanReport(result *scanner.ScanResult) ScanReport {
	report := ScanReport{
		Timestamp:          r.now().Format(time.RFC3339),
		Kind:               string(result.Kind),
		TotalItems:         result.ItemCount(),
		TotalSize:          result.TotalBytes,
		TotalSizeFormatted: utils.FormatBytes(result.TotalBytes),
		Duration:           result.Duration.Round(time.Millisecond).String(),
	}
	for _, g := range result.Groups {
		ge := GroupEntry{
			Digest:      fmt.Sprintf("%x", g.Key.Digest),
			Size:        g.Key.Size,
			Reclaimable: g.ReclaimableBytes(),
			Retained:    g.Retained().Path,
		}
		for _, f := range g.Files {
			ge.Files = append(ge.Files, entry(f, ""))
		}
		report.Groups = append(report.Groups, ge)
	}
	for _, item := range result.Junk {
		report.Items = append(report.Items, entry(item.Record, string(item.Category)))
	}
	for _, s := range result.Skipped {
		reason := s.Kind.String()
		if s.Err != nil {
			reason = s.Err.Error()
		}
		report.Skipped = append(report.Skipped, SkipEntry{Path: s.Path, Reason: reason})
	}
	return report
}

// Report generates a report from scan results
func (r *Reporter) Report(result *scanner.ScanResult) error {
	switch r.format {
	case FormatTable:
		return r.reportTable(result)
	case FormatJSON:
		return r.encodeJSON(r.BuildScanReport(result))
	case FormatYAML:
		return r.encodeYAML(r.BuildScanReport(result))
	case FormatSummary:
		return r.reportSummary(result)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// reportSummary generates a summary report
func (r *Reporter) reportSummary(result *scanner.ScanResult) error {
	fmt.Fprintf(r.writer, "=== Scan Summary (%s) ===\n", result.Kind)
	fmt.Fprintf(r.writer, "Total Files: %d\n", result.ItemCount())
	fmt.Fprintf(r.writer, "Reclaimable: %s\n", utils.FormatBytes(result.TotalBytes))

	if result.Kind == scanner.KindDuplicates {
		fmt.Fprintf(r.writer, "Duplicate Groups: %d\n", len(result.Groups))
	} else {
		fmt.Fprintf(r.writer, "\nBreakdown by Category:\n")
		for _, s := range result.GroupByCategory() {
			fmt.Fprintf(r.writer, "  %s: %d files, %s\n", s.Category, s.Count, utils.FormatBytes(s.Bytes))
		}
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(r.writer, "\nSkipped: %d\n", len(result.Skipped))
	}
	return nil
}

const rule = "------------------------------------------------------------------------------------------------------------------------"

func shorten(path string, width int) string {
	if len(path) > width {
		return "..." + path[len(path)-(width-3):]
	}
	return path
}

// reportTable generates a table report
func (r *Reporter) reportTable(result *scanner.ScanResult) error {
	fmt.Fprintf(r.writer, "%-60s | %-12s | %-20s | %s\n", "Path", "Size", "Category", "Modified")
	fmt.Fprintf(r.writer, "%s\n", rule)

	row := func(rec scanner.FileRecord, label string) {
		fmt.Fprintf(r.writer, "%-60s | %-12s | %-20s | %s\n",
			shorten(rec.Path, 60),
			utils.FormatBytes(rec.Size),
			label,
			rec.ModTime.Format("2006-01-02 15:04:05"))
	}

	for i, g := range result.Groups {
		for j, f := range g.Files {
			label := fmt.Sprintf("group %d", i+1)
			if j == 0 {
				label += " (keep)"
			}
			row(f, label)
		}
	}
	for _, item := range result.Junk {
		row(item.Record, string(item.Category))
	}

	fmt.Fprintf(r.writer, "\n%s\n", rule)
	fmt.Fprintf(r.writer, "Total: %d files, %s reclaimable\n", result.ItemCount(), utils.FormatBytes(result.TotalBytes))
	return nil
}

// OutcomeReport is the serialized form of a deletion outcome
type OutcomeReport struct {
	Attempted  int         `json:"attempted" yaml:"attempted"`
	Succeeded  int         `json:"succeeded" yaml:"succeeded"`
	BytesFreed uint64      `json:"bytes_freed" yaml:"bytes_freed"`
	Cancelled  bool        `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Failures   []SkipEntry `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// ReportOutcome writes the result of a deletion batch
func (r *Reporter) ReportOutcome(out cleaner.Outcome) error {
	report := OutcomeReport{
		Attempted:  out.Attempted,
		Succeeded:  out.Succeeded,
		BytesFreed: out.BytesFreed,
		Cancelled:  out.Cancelled,
	}
	for _, item := range out.Failed() {
		reason := item.Kind.String()
		if item.Err != nil {
			reason = item.Err.Error()
		}
		report.Failures = append(report.Failures, SkipEntry{Path: item.Path, Reason: reason})
	}

	switch r.format {
	case FormatJSON:
		return r.encodeJSON(report)
	case FormatYAML:
		return r.encodeYAML(report)
	case FormatTable, FormatSummary:
		fmt.Fprintln(r.writer, cleaner.FormatOutcome(out))
		if summary := cleaner.FormatFailureSummary(out); summary != "" {
			fmt.Fprintln(r.writer, summary)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// TrashReport is the serialized form of a trash listing
type TrashReport struct {
	TotalItems         int         `json:"total_items" yaml:"total_items"`
	TotalSize          uint64      `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string      `json:"total_size_formatted" yaml:"total_size_formatted"`
	Items              []FileEntry `json:"items" yaml:"items"`
}

// ReportTrash writes a trash listing
func (r *Reporter) ReportTrash(items []trash.Item) error {
	report := TrashReport{TotalItems: len(items), Items: []FileEntry{}}
	for _, item := range items {
		report.TotalSize += item.Record.Size
		report.Items = append(report.Items, entry(item.Record, ""))
	}
	report.TotalSizeFormatted = utils.FormatBytes(report.TotalSize)

	switch r.format {
	case FormatJSON:
		return r.encodeJSON(report)
	case FormatYAML:
		return r.encodeYAML(report)
	case FormatTable:
		fmt.Fprintf(r.writer, "%-70s | %-12s | %s\n", "Path", "Size", "Modified")
		fmt.Fprintf(r.writer, "%s\n", rule)
		for _, item := range items {
			fmt.Fprintf(r.writer, "%-70s | %-12s | %s\n",
				shorten(item.Record.Path, 70),
				utils.FormatBytes(item.Record.Size),
				item.Record.ModTime.Format("2006-01-02 15:04:05"))
		}
		fallthrough
	case FormatSummary:
		fmt.Fprintf(r.writer, "Trash: %d items, %s\n", report.TotalItems, report.TotalSizeFormatted)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// UsageItem is the serialized form of a sized directory entry
type UsageItem struct {
	Path    string `json:"path" yaml:"path"`
	Size    uint64 `json:"size" yaml:"size"`
	IsDir   bool   `json:"is_dir,omitempty" yaml:"is_dir,omitempty"`
	Files   int    `json:"files" yaml:"files"`
	Skipped int    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// UsageReport is the serialized form of a usage listing
type UsageReport struct {
	Title              string      `json:"title" yaml:"title"`
	TotalItems         int         `json:"total_items" yaml:"total_items"`
	TotalSize          uint64      `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string      `json:"total_size_formatted" yaml:"total_size_formatted"`
	Items              []UsageItem `json:"items" yaml:"items"`
}

// summaryLimit caps the entries listed by the summary format
const summaryLimit = 10

// ReportUsage writes a disk usage or installed apps listing
func (r *Reporter) ReportUsage(title string, entries []scanner.UsageEntry) error {
	report := UsageReport{Title: title, TotalItems: len(entries), Items: []UsageItem{}}
	for _, e := range entries {
		report.TotalSize += e.Record.Size
		report.Items = append(report.Items, UsageItem{
			Path:    e.Record.Path,
			Size:    e.Record.Size,
			IsDir:   e.Record.IsDir,
			Files:   e.Files,
			Skipped: e.Skipped,
		})
	}
	report.TotalSizeFormatted = utils.FormatBytes(report.TotalSize)

	switch r.format {
	case FormatJSON:
		return r.encodeJSON(report)
	case FormatYAML:
		return r.encodeYAML(report)
	case FormatTable:
		fmt.Fprintf(r.writer, "%-70s | %-12s | %s\n", "Path", "Size", "Files")
		fmt.Fprintf(r.writer, "%s\n", rule)
		for _, e := range entries {
			fmt.Fprintf(r.writer, "%-70s | %-12s | %d\n",
				shorten(e.Record.Path, 70), utils.FormatBytes(e.Record.Size), e.Files)
		}
	case FormatSummary:
		for i, e := range entries {
			if i == summaryLimit {
				fmt.Fprintf(r.writer, "  ... %d more\n", len(entries)-summaryLimit)
				break
			}
			name := filepath.Base(e.Record.Path)
			if e.Record.IsDir && filepath.Ext(name) == "" {
				name += string(filepath.Separator)
			}
			fmt.Fprintf(r.writer, "  %12s  %s\n", utils.FormatBytes(e.Record.Size), name)
		}
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}

	fmt.Fprintf(r.writer, "%s: %d entries, %s\n", title, report.TotalItems, report.TotalSizeFormatted)
	var skipped int
	for _, e := range entries {
		skipped += e.Skipped
	}
	if skipped > 0 {
		fmt.Fprintf(r.writer, "Unreadable paths left out: %d\n", skipped)
	}
	return nil
}

// ReportStatus writes a host snapshot
func (r *Reporter) ReportStatus(snap sysstats.Snapshot) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(snap)
	case FormatYAML:
		return r.encodeYAML(snap)
	case FormatTable, FormatSummary:
		fmt.Fprintf(r.writer, "CPU:    %.1f%%\n", snap.CPUPercent)
		fmt.Fprintf(r.writer, "Memory: %s / %s\n", utils.FormatBytes(snap.MemUsedBytes), utils.FormatBytes(snap.MemTotalBytes))
		if snap.DiskTotalBytes > 0 {
			fmt.Fprintf(r.writer, "Disk:   %s / %s (%s free) on %s\n",
				utils.FormatBytes(snap.DiskUsedBytes),
				utils.FormatBytes(snap.DiskTotalBytes),
				utils.FormatBytes(snap.DiskFreeBytes()),
				snap.DiskPath)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) encodeJSON(v interface{}) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Reporter) encodeYAML(v interface{}) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(v)
}

// SaveToFile saves the report to a file
func SaveToFile(result *scanner.ScanResult, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return New(file, format).Report(result)
}
