// Package sysstats reports host load and capacity figures.
package sysstats

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time reading of the host
type Snapshot struct {
	CPUPercent     float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemUsedBytes   uint64  `json:"mem_used_bytes" yaml:"mem_used_bytes"`
	MemTotalBytes  uint64  `json:"mem_total_bytes" yaml:"mem_total_bytes"`
	DiskPath       string  `json:"disk_path" yaml:"disk_path"`
	DiskUsedBytes  uint64  `json:"disk_used_bytes" yaml:"disk_used_bytes"`
	DiskTotalBytes uint64  `json:"disk_total_bytes" yaml:"disk_total_bytes"`
}

// DiskFreeBytes returns the unused capacity of the sampled volume
func (s Snapshot) DiskFreeBytes() uint64 {
	if s.DiskUsedBytes > s.DiskTotalBytes {
		return 0
	}
	return s.DiskTotalBytes - s.DiskUsedBytes
}

// Provider samples the host
type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Host samples the running machine through gopsutil
type Host struct {
	// DiskPath selects the volume whose usage is reported.
	DiskPath string
	// CPUInterval is how long CPU usage is measured over.
	CPUInterval time.Duration
}

// NewHost returns a Host sampling the volume that holds diskPath
func NewHost(diskPath string) *Host {
	return &Host{DiskPath: diskPath, CPUInterval: 500 * time.Millisecond}
}

// Snapshot implements Provider
func (h *Host) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{DiskPath: h.DiskPath}

	percents, err := cpu.PercentWithContext(ctx, h.CPUInterval, false)
	if err != nil {
		return snap, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to read memory usage: %w", err)
	}
	snap.MemUsedBytes = vm.Used
	snap.MemTotalBytes = vm.Total

	if h.DiskPath != "" {
		usage, err := disk.UsageWithContext(ctx, h.DiskPath)
		if err != nil {
			return snap, fmt.Errorf("failed to read disk usage of %s: %w", h.DiskPath, err)
		}
		snap.DiskUsedBytes = usage.Used
		snap.DiskTotalBytes = usage.Total
	}

	return snap, nil
}

// Fixed is a Provider that always returns the same snapshot
type Fixed Snapshot

// Snapshot implements Provider
func (f Fixed) Snapshot(context.Context) (Snapshot, error) {
	return Snapshot(f), nil
}

// Busy reports whether CPU usage is above threshold percent. A threshold
// of zero or less never reports busy.
func Busy(ctx context.Context, p Provider, threshold float64) (bool, float64, error) {
	if threshold <= 0 {
		return false, 0, nil
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return false, 0, err
	}
	return snap.CPUPercent > threshold, snap.CPUPercent, nil
}
