// Package agent defines the Agent domain entity.
package agent

import (
	"slices"
	"time"
)

// Kind classifies an agent by its role in the swarm.
type Kind string

const (
	KindWorker  Kind = "worker"
	KindScout   Kind = "scout"
	KindSoldier Kind = "soldier"
	KindQueen   Kind = "queen"
)

// Status represents the current state of an agent.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusFailed  Status = "failed"
	StatusHealing Status = "healing"
)

// Capability is a named ability used to match agents to tasks.
type Capability string

const (
	CapEnvironmentValidation Capability = "environment-validation"
	CapScenarioExecution     Capability = "scenario-execution"
	CapAPITesting            Capability = "api-testing"
	CapUITesting             Capability = "ui-testing"
	CapDatabaseTesting       Capability = "database-testing"
	CapIntegrationTesting    Capability = "integration-testing"
	CapPerformanceTesting    Capability = "performance-testing"
	CapStressTesting         Capability = "stress-testing"
	CapSecurityScanning      Capability = "security-scanning"
	CapChaosEngineering      Capability = "chaos-engineering"
	CapCoordination          Capability = "coordination"
)

// Performance tracks execution statistics for one agent. Only the
// ExecutionSupervisor updates it, once per finished attempt.
type Performance struct {
	SuccessRate    float64       `json:"success_rate"`
	AvgExecution   time.Duration `json:"avg_execution"`
	TasksCompleted int           `json:"tasks_completed"`
	TasksSucceeded int           `json:"tasks_succeeded"`
}

// Record folds the outcome of one execution attempt into the running stats.
// The success rate is cumulative (succeeded/completed) so it responds to the
// latest outcome without ever resetting; the average execution time uses the
// incremental mean newAvg = oldAvg + (d-oldAvg)/n.
func (p *Performance) Record(success bool, d time.Duration) {
	p.TasksCompleted++
	if success {
		p.TasksSucceeded++
	}
	p.SuccessRate = float64(p.TasksSucceeded) / float64(p.TasksCompleted)
	p.AvgExecution += (d - p.AvgExecution) / time.Duration(p.TasksCompleted)
}

// Agent represents one pooled test-execution unit. An agent holds at most one
// task at a time: Status == busy iff CurrentTaskID != "".
type Agent struct {
	ID            string       `json:"id"`
	Kind          Kind         `json:"kind"`
	Status        Status       `json:"status"`
	Capabilities  []Capability `json:"capabilities"`
	Performance   Performance  `json:"performance"`
	CurrentTaskID string       `json:"current_task_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// HasCapability reports whether the agent possesses the given capability.
func (a *Agent) HasCapability(c Capability) bool {
	return slices.Contains(a.Capabilities, c)
}

// DefaultCapabilities returns the capability set granted to a freshly pooled
// agent of the given kind. Queens coordinate and are never matched to tasks.
func DefaultCapabilities(k Kind) []Capability {
	switch k {
	case KindWorker:
		return []Capability{
			CapEnvironmentValidation,
			CapScenarioExecution,
			CapAPITesting,
			CapUITesting,
			CapDatabaseTesting,
			CapIntegrationTesting,
		}
	case KindScout:
		return []Capability{
			CapEnvironmentValidation,
			CapScenarioExecution,
			CapPerformanceTesting,
			CapSecurityScanning,
		}
	case KindSoldier:
		return []Capability{
			CapScenarioExecution,
			CapStressTesting,
			CapChaosEngineering,
			CapPerformanceTesting,
		}
	case KindQueen:
		return []Capability{CapCoordination}
	default:
		return nil
	}
}
