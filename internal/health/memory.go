// Package health samples process resource usage for liveness reporting.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Memory is a point-in-time memory sample of this process.
type Memory struct {
	RSS        uint64 `json:"rss"`
	VMS        uint64 `json:"vms"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	Goroutines int    `json:"goroutines"`
}

// SampleMemory reads OS-level usage via gopsutil plus Go runtime stats.
// The runtime fields are filled even when the OS query fails.
func SampleMemory(ctx context.Context) (Memory, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m := Memory{
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		Goroutines: runtime.NumGoroutine(),
	}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return m, fmt.Errorf("open process: %w", err)
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return m, fmt.Errorf("read memory info: %w", err)
	}
	m.RSS = info.RSS
	m.VMS = info.VMS
	return m, nil
}

// LogMemory logs a memory sample every interval until ctx is done.
func LogMemory(ctx context.Context, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m, err := SampleMemory(ctx)
			if err != nil {
				logger.Warn("memory sample", "err", err)
			}
			logger.Info("health check",
				"rss_mb", m.RSS/1024/1024,
				"heap_alloc_mb", m.HeapAlloc/1024/1024,
				"heap_sys_mb", m.HeapSys/1024/1024,
				"goroutines", m.Goroutines,
			)
		}
	}
}
