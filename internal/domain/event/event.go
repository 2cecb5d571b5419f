// Package event defines the SwarmEvent domain entity for the audit trail.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of swarm event.
type Type string

const (
	TypeTaskAdmitted   Type = "task.admitted"
	TypeTaskDispatched Type = "task.dispatched"
	TypeTaskStage      Type = "task.stage"
	TypeTaskCompleted  Type = "task.completed"
	TypeTaskFailed     Type = "task.failed"
	TypeAgentStatus    Type = "agent.status"
)

// SwarmEvent represents a single immutable lifecycle event emitted by the
// orchestrator. Observability collaborators consume these; correctness never
// depends on them.
type SwarmEvent struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	TaskID    string          `json:"task_id,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`
	Stage     string          `json:"stage,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
