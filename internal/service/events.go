package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	swarmotel "github.com/davrk/swarmforge/internal/adapter/otel"
	"github.com/davrk/swarmforge/internal/adapter/ws"
	"github.com/davrk/swarmforge/internal/domain/agent"
	"github.com/davrk/swarmforge/internal/domain/event"
	"github.com/davrk/swarmforge/internal/domain/task"
	"github.com/davrk/swarmforge/internal/port/broadcast"
	"github.com/davrk/swarmforge/internal/port/eventstore"
	"github.com/davrk/swarmforge/internal/port/messagequeue"
)

// Emitter fans typed orchestration events out to the WebSocket hub, the NATS
// stream, the audit event store, and the OTel instruments. Every sink is
// optional and best-effort: a failed emit is logged, never propagated, because
// correctness must not depend on observers.
type Emitter struct {
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	store   eventstore.Store
	metrics *swarmotel.Metrics
}

// NewEmitter creates an Emitter; any sink may be nil.
func NewEmitter(hub broadcast.Broadcaster, queue messagequeue.Queue, store eventstore.Store, metrics *swarmotel.Metrics) *Emitter {
	return &Emitter{hub: hub, queue: queue, store: store, metrics: metrics}
}

// Instruments returns the OTel instrument set, nil when metrics are disabled.
func (e *Emitter) Instruments() *swarmotel.Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// TaskAdmitted reports a task entering the queue.
func (e *Emitter) TaskAdmitted(ctx context.Context, t *task.Task) {
	if e == nil {
		return
	}
	if e.metrics != nil {
		e.metrics.TasksAdmitted.Add(ctx, 1)
	}
	e.broadcastTask(ctx, ws.EventTaskAdmitted, t)
	e.publish(ctx, messagequeue.SubjectTaskAdmitted, t)
	e.append(ctx, event.TypeTaskAdmitted, t, "")
}

// TaskDispatched reports a task leaving the queue with agents assigned.
func (e *Emitter) TaskDispatched(ctx context.Context, t *task.Task) {
	if e == nil {
		return
	}
	if e.metrics != nil {
		e.metrics.TasksDispatched.Add(ctx, 1)
	}
	e.broadcastTask(ctx, ws.EventTaskDispatched, t)
	e.publish(ctx, messagequeue.SubjectTaskDispatched, t)
	e.append(ctx, event.TypeTaskDispatched, t, "")
}

// TaskStage reports a non-terminal stage transition.
func (e *Emitter) TaskStage(ctx context.Context, t *task.Task) {
	if e == nil {
		return
	}
	e.broadcastTask(ctx, ws.EventTaskStage, t)
	e.publish(ctx, messagequeue.SubjectTaskStage, t)
	e.append(ctx, event.TypeTaskStage, t, "")
}

// TaskTerminal reports a task reaching completed or failed.
func (e *Emitter) TaskTerminal(ctx context.Context, t *task.Task, d time.Duration) {
	if e == nil {
		return
	}
	typ := event.TypeTaskCompleted
	if t.Progress.Stage == task.StageFailed {
		typ = event.TypeTaskFailed
	}
	if e.metrics != nil {
		if typ == event.TypeTaskCompleted {
			e.metrics.TasksCompleted.Add(ctx, 1)
		} else {
			e.metrics.TasksFailed.Add(ctx, 1)
		}
		e.metrics.TaskDuration.Record(ctx, d.Seconds())
	}
	e.broadcastTask(ctx, ws.EventTaskStage, t)
	e.publish(ctx, messagequeue.SubjectTaskResult, t)
	e.append(ctx, typ, t, "")
}

// TaskRetried reports a self-healing re-admission.
func (e *Emitter) TaskRetried(ctx context.Context, t *task.Task) {
	if e == nil {
		return
	}
	if e.metrics != nil {
		e.metrics.TasksRetried.Add(ctx, 1)
	}
	e.broadcastTask(ctx, ws.EventTaskStage, t)
	e.publish(ctx, messagequeue.SubjectTaskStage, t)
	e.append(ctx, event.TypeTaskStage, t, "")
}

// AgentStatus reports one agent status transition.
func (e *Emitter) AgentStatus(ctx context.Context, a agent.Agent) {
	if e == nil {
		return
	}
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventAgentStatus, ws.AgentStatusEvent{
			AgentID: a.ID,
			Kind:    string(a.Kind),
			Status:  string(a.Status),
			TaskID:  a.CurrentTaskID,
		})
	}
	e.publish(ctx, messagequeue.SubjectAgentStatus, a)
	if e.store != nil {
		ev := &event.SwarmEvent{
			ID:        uuid.NewString(),
			Type:      event.TypeAgentStatus,
			AgentID:   a.ID,
			Stage:     string(a.Status),
			CreatedAt: time.Now(),
		}
		if err := e.store.Append(ctx, ev); err != nil {
			slog.Warn("append agent event", "agent_id", a.ID, "error", err)
		}
	}
}

func (e *Emitter) broadcastTask(ctx context.Context, eventType string, t *task.Task) {
	if e.hub == nil {
		return
	}
	e.hub.BroadcastEvent(ctx, eventType, ws.TaskStatusEvent{
		TaskID:     t.ID,
		ScenarioID: t.ScenarioID,
		Stage:      string(t.Progress.Stage),
		Priority:   string(t.Priority),
		Agents:     t.AssignedAgents,
		Attempt:    t.Attempt,
	})
}

func (e *Emitter) publish(ctx context.Context, subject string, payload any) {
	if e.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event payload", "subject", subject, "error", err)
		return
	}
	if err := e.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish event", "subject", subject, "error", err)
	}
}

func (e *Emitter) append(ctx context.Context, typ event.Type, t *task.Task, agentID string) {
	if e.store == nil {
		return
	}
	payload, err := json.Marshal(t.Progress)
	if err != nil {
		payload = nil
	}
	ev := &event.SwarmEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		TaskID:    t.ID,
		AgentID:   agentID,
		Stage:     string(t.Progress.Stage),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := e.store.Append(ctx, ev); err != nil {
		slog.Warn("append task event", "task_id", t.ID, "type", typ, "error", err)
	}
}
