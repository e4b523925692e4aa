package scanner

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fenilsonani/reclaim/internal/classifier"
)

// JunkOptions configures a JunkScanner
type JunkOptions struct {
	// MinAge drops items modified more recently than this
	MinAge time.Duration
	Logger zerolog.Logger
	Now    func() time.Time
}

// JunkScanner collects reclaimable items below configured junk roots
type JunkScanner struct {
	walker     *Walker
	classifier *classifier.Classifier
	opts       JunkOptions
}

// NewJunkScanner creates a junk scanner
func NewJunkScanner(walker *Walker, c *classifier.Classifier, opts JunkOptions) *JunkScanner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JunkScanner{walker: walker, classifier: c, opts: opts}
}

// Scan walks roots and returns the junk found below them
func (s *JunkScanner) Scan(ctx context.Context, roots []string) (*ScanResult, error) {
	return s.ScanWith(ctx, roots, NewCollector())
}

// ScanWith is Scan reporting live counts through c
func (s *JunkScanner) ScanWith(ctx context.Context, roots []string, c *Collector) (*ScanResult, error) {
	start := s.opts.Now()
	roots = normalizeRoots(roots)
	result := &ScanResult{Kind: KindJunk}

	for ev := range s.walker.Walk(ctx, roots) {
		if ev.Skipped != nil {
			result.Skipped = append(result.Skipped, *ev.Skipped)
			continue
		}
		if item, ok := s.accept(ev.Record, roots, start); ok {
			c.AddJunk(item)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Junk = c.Junk()
	sort.Slice(result.Junk, func(i, j int) bool {
		if result.Junk[i].Record.Size != result.Junk[j].Record.Size {
			return result.Junk[i].Record.Size > result.Junk[j].Record.Size
		}
		return result.Junk[i].Record.Path < result.Junk[j].Record.Path
	})
	for _, item := range result.Junk {
		result.TotalBytes += item.Record.Size
	}
	result.Duration = s.opts.Now().Sub(start)

	s.opts.Logger.Info().
		Int("items", len(result.Junk)).
		Uint64("bytes", result.TotalBytes).
		Int("skipped", len(result.Skipped)).
		Dur("duration", result.Duration).
		Msg("junk scan finished")

	return result, nil
}

// accept decides whether a record is reported as junk
func (s *JunkScanner) accept(rec FileRecord, roots []string, now time.Time) (JunkItem, bool) {
	if rec.Size == 0 {
		return JunkItem{}, false
	}
	if !insideAny(rec.Path, roots) {
		return JunkItem{}, false
	}
	if s.opts.MinAge > 0 && now.Sub(rec.ModTime) < s.opts.MinAge {
		return JunkItem{}, false
	}

	category := s.classifier.Classify(rec.Path, rec.IsDir)
	if !category.IsJunk() {
		return JunkItem{}, false
	}
	return JunkItem{Record: rec, Category: category}, true
}

func insideAny(path string, roots []string) bool {
	clean := filepath.Clean(path)
	for _, r := range roots {
		if clean == r || isWithin(clean, r) {
			return true
		}
	}
	return false
}
