package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventTaskAdmitted   = "task.admitted"
	EventTaskDispatched = "task.dispatched"
	EventTaskStage      = "task.stage"
	EventAgentStatus    = "agent.status"
)

// TaskStatusEvent is broadcast on every task lifecycle transition.
type TaskStatusEvent struct {
	TaskID     string   `json:"task_id"`
	ScenarioID string   `json:"scenario_id"`
	Stage      string   `json:"stage"`
	Priority   string   `json:"priority"`
	Agents     []string `json:"agents,omitempty"`
	Attempt    int      `json:"attempt"`
}

// AgentStatusEvent is broadcast when an agent's status changes.
type AgentStatusEvent struct {
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	TaskID  string `json:"task_id,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
