package ai

import (
	"math"
	"sync"
)

// MetricsRecorder accumulates ModelMetrics across calls. Clients embed it to
// satisfy the metric half of GraphAIClient.
type MetricsRecorder struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

func (r *MetricsRecorder) ResetMetrics() {
	r.mu.Lock()
	r.metrics = ModelMetrics{}
	r.mu.Unlock()
}

// GetMetrics returns the usage accumulated since the last reset.
func (r *MetricsRecorder) GetMetrics() ModelMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Record adds one call's usage. TokenPerSecond is recomputed over the
// totals and rounded to two decimals.
func (r *MetricsRecorder) Record(m ModelMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.InputTokens += m.InputTokens
	r.metrics.OutputTokens += m.OutputTokens
	r.metrics.TotalTokens += m.TotalTokens
	r.metrics.DurationMs += m.DurationMs
	if r.metrics.DurationMs > 0 {
		tps := float64(r.metrics.TotalTokens) * 1000 / float64(r.metrics.DurationMs)
		r.metrics.TokenPerSecond = float32(math.Round(tps*100) / 100)
	}
}
