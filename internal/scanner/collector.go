package scanner

import (
	"sync"

	"github.com/fenilsonani/reclaim/internal/progress"
)

// Collector is the single mutation point for items found by a running
// scan. Producers call it concurrently; readers only see whole snapshots.
type Collector struct {
	mu    sync.Mutex
	phase progress.Phase
	count uint64
	bytes uint64
	junk  []JunkItem
}

// NewCollector creates an empty collector in the scanning phase
func NewCollector() *Collector {
	return &Collector{phase: progress.PhaseScanning}
}

// Observe counts a record without keeping it
func (c *Collector) Observe(size uint64) {
	c.mu.Lock()
	c.count++
	c.bytes += size
	c.mu.Unlock()
}

// AddJunk appends a junk item and counts it
func (c *Collector) AddJunk(item JunkItem) {
	c.mu.Lock()
	c.junk = append(c.junk, item)
	c.count++
	c.bytes += item.Record.Size
	c.mu.Unlock()
}

// SetPhase records the current phase
func (c *Collector) SetPhase(p progress.Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Snapshot returns phase, item count and byte count consistently
func (c *Collector) Snapshot() (progress.Phase, uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase, c.count, c.bytes
}

// Count returns the number of items found so far
func (c *Collector) Count() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Bytes returns the bytes found so far
func (c *Collector) Bytes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Junk returns a copy of the collected junk items
func (c *Collector) Junk() []JunkItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]JunkItem(nil), c.junk...)
}
