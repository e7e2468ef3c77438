package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the last sample of the server process.
type ProcessStats struct {
	Pid        int32     `json:"pid"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	NumThreads int32     `json:"num_threads"`
	Goroutines int       `json:"goroutines"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	SampledAt  time.Time `json:"sampled_at"`
}

// MonitoringManager samples the process at a fixed interval for /debug/stats.
type MonitoringManager struct {
	log      *slog.Logger
	interval time.Duration
	mu       sync.RWMutex
	latest   ProcessStats
}

func NewMonitoringManager(log *slog.Logger, interval time.Duration) *MonitoringManager {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MonitoringManager{log: log, interval: interval}
}

// Run is meant to be supervised.
func (mm *MonitoringManager) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	mm.sample(p)

	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			mm.log.Debug("Monitoring manager stopped")
			return ctx.Err()
		case <-ticker.C:
			mm.sample(p)
		}
	}
}

func (mm *MonitoringManager) sample(p *process.Process) {
	stats := ProcessStats{
		Pid:        p.Pid,
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}

	if memInfo, err := p.MemoryInfo(); err == nil {
		stats.RSSBytes = memInfo.RSS
	} else {
		mm.log.Debug("Failed to read memory info", "error", err)
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if threads, err := p.NumThreads(); err == nil {
		stats.NumThreads = threads
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC

	mm.mu.Lock()
	mm.latest = stats
	mm.mu.Unlock()
}

// GetLatest returns the last sample, the zero value before the first one.
func (mm *MonitoringManager) GetLatest() ProcessStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latest
}
