package service

import (
	"github.com/davrk/swarmforge/internal/domain/agent"
)

// SwarmStatus is a point-in-time view over the whole swarm: agent counts by
// status, task counts by lifecycle region and the overall health ratio.
type SwarmStatus struct {
	TotalAgents    int                `json:"total_agents"`
	Idle           int                `json:"idle"`
	Busy           int                `json:"busy"`
	Failed         int                `json:"failed"`
	Healing        int                `json:"healing"`
	QueuedTasks    int                `json:"queued_tasks"`
	InFlightTasks  int                `json:"in_flight_tasks"`
	CompletedTasks int                `json:"completed_tasks"`
	FailedTasks    int                `json:"failed_tasks"`
	OverallHealth  float64            `json:"overall_health"`
	Agents         []agent.Agent      `json:"agents,omitempty"`
}

// SwarmStatusReporter assembles SwarmStatus snapshots from the registry, the
// queue, the supervisor and the task history. Each source is locked
// independently, so the snapshot is consistent per source rather than
// globally atomic.
type SwarmStatusReporter struct {
	registry   *AgentRegistry
	queue      *TaskQueue
	supervisor *ExecutionSupervisor
	history    *TaskHistory
}

// NewSwarmStatusReporter wires a reporter over the swarm's state holders.
func NewSwarmStatusReporter(registry *AgentRegistry, queue *TaskQueue, supervisor *ExecutionSupervisor, history *TaskHistory) *SwarmStatusReporter {
	return &SwarmStatusReporter{
		registry:   registry,
		queue:      queue,
		supervisor: supervisor,
		history:    history,
	}
}

// Status returns the current swarm snapshot. When detailed is true the full
// per-agent list, including performance statistics, is attached.
func (r *SwarmStatusReporter) Status(detailed bool) SwarmStatus {
	counts := r.registry.Snapshot()
	total := 0
	for _, n := range counts {
		total += n
	}
	completed, failed := r.history.Counts()

	st := SwarmStatus{
		TotalAgents:    total,
		Idle:           counts[agent.StatusIdle],
		Busy:           counts[agent.StatusBusy],
		Failed:         counts[agent.StatusFailed],
		Healing:        counts[agent.StatusHealing],
		QueuedTasks:    r.queue.Len(),
		InFlightTasks:  r.supervisor.InFlight(),
		CompletedTasks: completed,
		FailedTasks:    failed,
	}
	if total > 0 {
		st.OverallHealth = float64(total-counts[agent.StatusFailed]) / float64(total)
	}
	if detailed {
		st.Agents = r.registry.List()
	}
	return st
}
