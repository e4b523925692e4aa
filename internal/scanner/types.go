package scanner

import (
	"sort"
	"time"

	"github.com/fenilsonani/reclaim/internal/classifier"
	"github.com/fenilsonani/reclaim/internal/errs"
)

// Kind identifies what produced a ScanResult
type Kind string

const (
	KindDuplicates Kind = "duplicates"
	KindJunk       Kind = "junk"
	KindTrash      Kind = "trash"
)

// FileRecord is a snapshot of one filesystem entry taken at enumeration
// time. It is never modified after creation and may go stale.
type FileRecord struct {
	Path    string
	Size    uint64
	IsDir   bool // package bundles emitted as leaves, and directories in usage listings
	ModTime time.Time
}

// SkippedPath is an entry the scan could not read
type SkippedPath struct {
	Path string
	Kind errs.Kind
	Err  error
}

// DigestKey identifies file content
type DigestKey struct {
	Size   uint64
	Digest [32]byte
}

// DuplicateGroup is a set of at least two files with the same DigestKey.
// Files[0] is the retained copy: oldest modification time, ties broken by
// the lexicographically smallest path.
type DuplicateGroup struct {
	Key   DigestKey
	Files []FileRecord
}

// Retained returns the file kept when the group is cleaned
func (g DuplicateGroup) Retained() FileRecord {
	return g.Files[0]
}

// Redundant returns the deletion candidates of the group. Callers still
// have to pass the exact paths they want removed.
func (g DuplicateGroup) Redundant() []FileRecord {
	return append([]FileRecord(nil), g.Files[1:]...)
}

// ReclaimableBytes is the space freed by keeping only the retained copy
func (g DuplicateGroup) ReclaimableBytes() uint64 {
	return g.Key.Size * uint64(len(g.Files)-1)
}

// JunkItem is a reclaimable file or bundle under a junk root
type JunkItem struct {
	Record   FileRecord
	Category classifier.Category
	Selected bool
}

// ScanResult is the output of one completed scan. A new scan replaces it;
// results are never merged.
type ScanResult struct {
	Kind       Kind
	Groups     []DuplicateGroup
	Junk       []JunkItem
	Skipped    []SkippedPath
	TotalBytes uint64
	Duration   time.Duration
}

// ItemCount returns the number of reported files
func (r *ScanResult) ItemCount() int {
	if r.Kind == KindDuplicates {
		n := 0
		for _, g := range r.Groups {
			n += len(g.Files)
		}
		return n
	}
	return len(r.Junk)
}

// Lookup returns the record for path if this result reported it
func (r *ScanResult) Lookup(path string) (FileRecord, bool) {
	for _, g := range r.Groups {
		for _, f := range g.Files {
			if f.Path == path {
				return f, true
			}
		}
	}
	for _, item := range r.Junk {
		if item.Record.Path == path {
			return item.Record, true
		}
	}
	return FileRecord{}, false
}

// SetSelected marks a junk item as selected or not. It reports whether
// the path belongs to the result.
func (r *ScanResult) SetSelected(path string, selected bool) bool {
	for i := range r.Junk {
		if r.Junk[i].Record.Path == path {
			r.Junk[i].Selected = selected
			return true
		}
	}
	return false
}

// SelectedPaths returns the paths of selected junk items
func (r *ScanResult) SelectedPaths() []string {
	var paths []string
	for _, item := range r.Junk {
		if item.Selected {
			paths = append(paths, item.Record.Path)
		}
	}
	return paths
}

// RedundantPaths returns every deletion candidate across all groups
func (r *ScanResult) RedundantPaths() []string {
	var paths []string
	for _, g := range r.Groups {
		for _, f := range g.Files[1:] {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// CategorySummary aggregates junk items of one category
type CategorySummary struct {
	Category classifier.Category
	Count    int
	Bytes    uint64
}

// GroupByCategory summarizes junk items per category, largest first
func (r *ScanResult) GroupByCategory() []CategorySummary {
	byCategory := make(map[classifier.Category]*CategorySummary)

	for _, item := range r.Junk {
		s, ok := byCategory[item.Category]
		if !ok {
			s = &CategorySummary{Category: item.Category}
			byCategory[item.Category] = s
		}
		s.Count++
		s.Bytes += item.Record.Size
	}

	summaries := make([]CategorySummary, 0, len(byCategory))
	for _, s := range byCategory {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Bytes != summaries[j].Bytes {
			return summaries[i].Bytes > summaries[j].Bytes
		}
		return summaries[i].Category < summaries[j].Category
	})
	return summaries
}
