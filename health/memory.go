package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig sets the degradation thresholds for the process
// memory check, as fractions of MaxAlloc.
type MemoryCheckerConfig struct {
	// WarningThreshold marks the service degraded. Default 0.8.
	WarningThreshold float64

	// CriticalThreshold marks the service unhealthy. Default 0.95.
	CriticalThreshold float64

	// MaxAlloc is the allocation ceiling in bytes. Zero falls back to
	// the runtime's reported Sys figure.
	MaxAlloc uint64
}

// MemoryChecker reports heap pressure for the ontologyd process. Large
// diffs are held in memory for the whole pipeline run, so heap growth
// is the first sign of oversized commits getting through.
type MemoryChecker struct {
	cfg MemoryCheckerConfig
}

func NewMemoryChecker(cfg MemoryCheckerConfig) *MemoryChecker {
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold >= 1 {
		cfg.WarningThreshold = 0.8
	}
	if cfg.CriticalThreshold <= 0 || cfg.CriticalThreshold >= 1 {
		cfg.CriticalThreshold = 0.95
	}
	if cfg.CriticalThreshold < cfg.WarningThreshold {
		cfg.CriticalThreshold = cfg.WarningThreshold
	}
	return &MemoryChecker{cfg: cfg}
}

func (m *MemoryChecker) Name() string { return "memory" }

func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ceiling := m.cfg.MaxAlloc
	if ceiling == 0 {
		ceiling = stats.Sys
	}

	details := map[string]any{
		"alloc_bytes":  stats.Alloc,
		"heap_in_use":  stats.HeapInuse,
		"heap_objects": stats.HeapObjects,
		"num_gc":       stats.NumGC,
		"goroutines":   runtime.NumGoroutine(),
	}
	if ceiling == 0 {
		return Healthy("memory stats unavailable").WithDetails(details)
	}

	usage := float64(stats.Alloc) / float64(ceiling)
	details["usage_percent"] = usage * 100

	switch {
	case usage >= m.cfg.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("memory usage critical: %.1f%%", usage*100), ErrCheckFailed).WithDetails(details)
	case usage >= m.cfg.WarningThreshold:
		return Degraded(fmt.Sprintf("memory usage high: %.1f%%", usage*100)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("memory usage normal: %.1f%%", usage*100)).WithDetails(details)
}
