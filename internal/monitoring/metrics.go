// Package monitoring times pipeline stages and collects their row counts.
package monitoring

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// StageMetrics represents the metrics of one pipeline stage
type StageMetrics struct {
	Stage      string        `json:"stage"`
	Duration   time.Duration `json:"duration"`
	Rows       int           `json:"rows"`
	MemoryUsed int64         `json:"memory_used"`
	Failed     bool          `json:"failed"`
}

// MetricsCollector collects and stores the metrics of pipeline stages
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []StageMetrics
	enabled bool
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{
		metrics: make([]StageMetrics, 0),
		enabled: enabled,
	}
}

// IsEnabled returns whether metrics collection is enabled
func (mc *MetricsCollector) IsEnabled() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// RecordStage runs fn, which returns the number of rows the stage produced,
// and records its duration and heap growth. A failing stage is recorded too.
func (mc *MetricsCollector) RecordStage(stage string, fn func() (int, error)) error {
	if !mc.IsEnabled() {
		_, err := fn()
		return err
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)
	start := time.Now()

	rows, err := fn()

	duration := time.Since(start)
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, StageMetrics{
		Stage:      stage,
		Duration:   duration,
		Rows:       rows,
		MemoryUsed: int64(memAfter.TotalAlloc - memBefore.TotalAlloc), //nolint:gosec // TotalAlloc only grows
		Failed:     err != nil,
	})
	mc.mu.Unlock()

	return err
}

// GetMetrics returns a copy of all collected metrics in stage order
func (mc *MetricsCollector) GetMetrics() []StageMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]StageMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// Clear removes all collected metrics
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = mc.metrics[:0]
}

// GetSummary returns a summary of collected metrics
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return MetricsSummary{}
	}

	summary := MetricsSummary{
		TotalStages:    len(mc.metrics),
		StageDurations: make(map[string]time.Duration, len(mc.metrics)),
	}
	for _, metric := range mc.metrics {
		summary.TotalDuration += metric.Duration
		summary.TotalMemory += metric.MemoryUsed
		summary.StageDurations[metric.Stage] += metric.Duration
		if metric.Failed {
			summary.FailedStages++
		}
	}
	summary.AverageDuration = summary.TotalDuration / time.Duration(len(mc.metrics))
	return summary
}

// MetricsSummary provides aggregate statistics for collected metrics
type MetricsSummary struct {
	TotalStages     int                      `json:"total_stages"`
	FailedStages    int                      `json:"failed_stages"`
	TotalDuration   time.Duration            `json:"total_duration"`
	TotalMemory     int64                    `json:"total_memory"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	AverageDuration time.Duration            `json:"average_duration"`
}

// LogValue groups the summary for structured logging
func (s MetricsSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("stages", s.TotalStages),
		slog.Int("failed", s.FailedStages),
		slog.Duration("total", s.TotalDuration),
		slog.Duration("average", s.AverageDuration),
		slog.Int64("memory", s.TotalMemory),
	)
}
