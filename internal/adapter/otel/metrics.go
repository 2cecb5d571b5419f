package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "swarmforge"

// Metrics holds all SwarmForge metric instruments.
type Metrics struct {
	TasksAdmitted    metric.Int64Counter
	TasksDispatched  metric.Int64Counter
	TasksCompleted   metric.Int64Counter
	TasksFailed      metric.Int64Counter
	TasksRetried     metric.Int64Counter
	TaskDuration     metric.Float64Histogram
	DispatchDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksAdmitted, err = meter.Int64Counter("swarmforge.tasks.admitted",
		metric.WithDescription("Number of tasks admitted to the queue"))
	if err != nil {
		return nil, err
	}

	m.TasksDispatched, err = meter.Int64Counter("swarmforge.tasks.dispatched",
		metric.WithDescription("Number of tasks dispatched to agents"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("swarmforge.tasks.completed",
		metric.WithDescription("Number of tasks completed successfully"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("swarmforge.tasks.failed",
		metric.WithDescription("Number of tasks finalized as failed"))
	if err != nil {
		return nil, err
	}

	m.TasksRetried, err = meter.Int64Counter("swarmforge.tasks.retried",
		metric.WithDescription("Number of self-healing re-admissions"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("swarmforge.task.duration_seconds",
		metric.WithDescription("Task execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("swarmforge.dispatch.duration_seconds",
		metric.WithDescription("Dispatch pass duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
