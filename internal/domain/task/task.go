// Package task defines the Task domain entity and its lifecycle stages.
package task

import (
	"time"

	"github.com/davrk/swarmforge/internal/domain/agent"
)

// Priority orders tasks in the queue. Derived once at admission.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the numeric weight of a priority for sorting.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Stage is a task's position in the execution lifecycle.
type Stage string

const (
	StageQueued     Stage = "queued"
	StagePreparing  Stage = "preparing"
	StageExecuting  Stage = "executing"
	StageValidating Stage = "validating"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// IsTerminal reports whether the stage ends the task's lifecycle.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Issue records one problem encountered while driving a task.
type Issue struct {
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	AgentID   string    `json:"agent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Issue severities.
const (
	SeverityWarning  = "warning"
	SeverityBlocking = "blocking"
)

// Progress tracks a task's stage plus every recorded issue, in order.
type Progress struct {
	Stage  Stage   `json:"stage"`
	Issues []Issue `json:"issues,omitempty"`
}

// Task is one unit of scheduled work derived from a registered scenario.
// Mutated only by the Dispatcher (assignment) and the ExecutionSupervisor
// (stage transitions, issues); once terminal it moves to the immutable
// history and is never deleted.
type Task struct {
	ID                   string             `json:"id"`
	ScenarioID           string             `json:"scenario_id"`
	ScenarioName         string             `json:"scenario_name,omitempty"`
	Priority             Priority           `json:"priority"`
	RequiredCapabilities []agent.Capability `json:"required_capabilities"`
	Deadline             *time.Time         `json:"deadline,omitempty"`
	AssignedAgents       []string           `json:"assigned_agents,omitempty"`
	Progress             Progress           `json:"progress"`
	Attempt              int                `json:"attempt"`
	AdmittedAt           time.Time          `json:"admitted_at"`
	StartedAt            *time.Time         `json:"started_at,omitempty"`
	FinishedAt           *time.Time         `json:"finished_at,omitempty"`

	// Seq is the admission sequence number, assigned once by the queue and
	// preserved across re-admissions. Tiebreak of last resort when sorting.
	Seq uint64 `json:"-"`
}

// AddIssue appends an issue stamped with the given time.
func (t *Task) AddIssue(severity, message, agentID string, at time.Time) {
	t.Progress.Issues = append(t.Progress.Issues, Issue{
		Severity:  severity,
		Message:   message,
		AgentID:   agentID,
		Timestamp: at,
	})
}

// IsAssigned reports whether the agent id is already in AssignedAgents.
func (t *Task) IsAssigned(agentID string) bool {
	for _, id := range t.AssignedAgents {
		if id == agentID {
			return true
		}
	}
	return false
}

// Requirements carries caller-supplied execution constraints for a task.
type Requirements struct {
	Deadline          *time.Time         `json:"deadline,omitempty"`
	ExtraCapabilities []agent.Capability `json:"extra_capabilities,omitempty"`
}
