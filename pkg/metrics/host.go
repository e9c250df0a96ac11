package metrics

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats 健康检查返回的主机概况
type HostStats struct {
	Hostname        string  `json:"hostname"`
	Uptime          uint64  `json:"uptime"`
	Goroutines      int     `json:"goroutines"`
	MemoryUsed      float64 `json:"memory_used_percent"`
	DiskPath        string  `json:"disk_path"`
	DiskFree        uint64  `json:"disk_free"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// CollectHostStats gathers host facts. diskPath is the media directory, whose free
// space decides whether merges and renders can succeed. Unavailable facts stay zero.
func CollectHostStats(ctx context.Context, diskPath string) HostStats {
	stats := HostStats{Goroutines: runtime.NumGoroutine(), DiskPath: diskPath}
	if info, err := host.InfoWithContext(ctx); err == nil {
		stats.Hostname = info.Hostname
		stats.Uptime = info.Uptime
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryUsed = vm.UsedPercent
	}
	if diskPath == "" {
		diskPath = "/"
		stats.DiskPath = diskPath
	}
	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		stats.DiskFree = du.Free
		stats.DiskUsedPercent = du.UsedPercent
	}
	return stats
}
