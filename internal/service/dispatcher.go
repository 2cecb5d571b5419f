package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	swarmotel "github.com/davrk/swarmforge/internal/adapter/otel"
	"github.com/davrk/swarmforge/internal/domain/task"
)

// Dispatcher converts queued tasks into active executions: a greedy bipartite
// matching of required capabilities to the best available agents. Simple and
// deterministic rather than globally optimal: given identical registry state
// the same agents are always picked.
//
// Dispatch passes are serialized by a mutex and driven by a single goroutine
// woken through a kick channel, so the dispatcher never blocks callers and is
// cheap to trigger on every agent-idle event.
type Dispatcher struct {
	registry   *AgentRegistry
	queue      *TaskQueue
	supervisor *ExecutionSupervisor
	emitter    *Emitter
	metrics    *swarmotel.Metrics

	mu   sync.Mutex // serializes dispatch passes
	kick chan struct{}
}

// NewDispatcher wires a dispatcher. metrics may be nil.
func NewDispatcher(registry *AgentRegistry, queue *TaskQueue, supervisor *ExecutionSupervisor, emitter *Emitter, metrics *swarmotel.Metrics) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		queue:      queue,
		supervisor: supervisor,
		emitter:    emitter,
		metrics:    metrics,
		kick:       make(chan struct{}, 1),
	}
}

// Trigger requests a dispatch pass. Non-blocking; concurrent triggers
// coalesce into one pending pass.
func (d *Dispatcher) Trigger() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run executes dispatch passes until the context is cancelled. Exactly one
// Run loop should be active.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
			d.Dispatch(ctx)
		}
	}
}

// Dispatch performs one pass: drain up to idle-agent-count queued tasks in
// priority order, match each against the registry, and hand matched tasks to
// the supervisor. Tasks that matched no agent at all are re-admitted
// unchanged, skipped rather than dropped.
func (d *Dispatcher) Dispatch(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()

	idle := d.registry.IdleCount()
	if idle == 0 {
		return
	}

	batch := d.queue.DrainBatch(idle)
	if len(batch) == 0 {
		return
	}

	ctx, span := swarmotel.StartDispatchSpan(ctx, len(batch))
	defer span.End()

	for _, t := range batch {
		d.assign(t)

		if len(t.AssignedAgents) == 0 {
			d.queue.Admit(t)
			continue
		}

		t.Progress.Stage = task.StagePreparing
		if t.StartedAt == nil {
			now := time.Now()
			t.StartedAt = &now
		}
		d.emitter.TaskDispatched(ctx, t)
		slog.Info("task dispatched",
			"task_id", t.ID,
			"priority", t.Priority,
			"agents", len(t.AssignedAgents),
			"attempt", t.Attempt,
		)
		d.supervisor.Start(t)
	}

	if d.metrics != nil {
		d.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// assign marks the top idle candidate busy for each required capability. One
// agent may cover several capabilities; a capability with no idle holder is
// simply left uncovered this round.
func (d *Dispatcher) assign(t *task.Task) {
	for _, cap := range t.RequiredCapabilities {
		candidates := d.registry.FindIdleByCapability(cap)
		if len(candidates) == 0 {
			continue
		}
		top := candidates[0]
		if t.IsAssigned(top.ID) {
			continue
		}
		if err := d.registry.MarkBusy(top.ID, t.ID); err != nil {
			// Cannot happen while dispatch passes are serialized; if it
			// does, the dispatcher has a bug.
			slog.Error("dispatch assignment invariant violated",
				"agent_id", top.ID, "task_id", t.ID, "error", err)
			continue
		}
		t.AssignedAgents = append(t.AssignedAgents, top.ID)
	}
}
