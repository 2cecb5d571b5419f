package service

import (
	"sync"
	"time"

	"github.com/davrk/swarmforge/internal/domain/agent"
)

// MetricsSnapshot is a point-in-time view of aggregated execution metrics.
type MetricsSnapshot struct {
	TotalExecutions int64         `json:"total_executions"`
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	AvgExecution    time.Duration `json:"avg_execution"`
	OverallHealth   float64       `json:"overall_health"`
}

// MetricsAggregator keeps running counters and a numerically stable
// incremental mean of task execution time. Pure read otherwise: health is
// derived from the registry snapshot at query time.
type MetricsAggregator struct {
	mu        sync.Mutex
	total     int64
	succeeded int64
	failed    int64
	avg       time.Duration

	registry *AgentRegistry
}

// NewMetricsAggregator creates an aggregator reading health from the registry.
func NewMetricsAggregator(registry *AgentRegistry) *MetricsAggregator {
	return &MetricsAggregator{registry: registry}
}

// Record folds one terminal task into the counters.
// newAvg = oldAvg + (duration - oldAvg) / totalCount.
func (m *MetricsAggregator) Record(success bool, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if success {
		m.succeeded++
	} else {
		m.failed++
	}
	m.avg += (d - m.avg) / time.Duration(m.total)
}

// Snapshot returns the current metrics. Overall health is
// healthyAgents/totalAgents, where healthy means status != failed.
func (m *MetricsAggregator) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	snap := MetricsSnapshot{
		TotalExecutions: m.total,
		Succeeded:       m.succeeded,
		Failed:          m.failed,
		AvgExecution:    m.avg,
	}
	m.mu.Unlock()

	counts := m.registry.Snapshot()
	total := 0
	for _, n := range counts {
		total += n
	}
	if total > 0 {
		snap.OverallHealth = float64(total-counts[agent.StatusFailed]) / float64(total)
	}
	return snap
}
