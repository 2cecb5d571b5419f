package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/davrk/swarmforge/internal/config"
	"github.com/davrk/swarmforge/internal/domain"
	"github.com/davrk/swarmforge/internal/domain/agent"
	"github.com/davrk/swarmforge/internal/domain/scenario"
	"github.com/davrk/swarmforge/internal/domain/task"
	"github.com/davrk/swarmforge/internal/port/executor"
)

// Orchestrator is the facade over the whole swarm: scenario registration,
// task admission, dispatch, supervision, metrics and shutdown. It owns the
// agent pool and every internal service; callers (HTTP handlers, the NATS
// consumer) only ever talk to the Orchestrator.
type Orchestrator struct {
	cfg config.Swarm

	registry   *AgentRegistry
	queue      *TaskQueue
	dispatcher *Dispatcher
	supervisor *ExecutionSupervisor
	history    *TaskHistory
	aggregator *MetricsAggregator
	status     *SwarmStatusReporter
	emitter    *Emitter

	scenMu    sync.RWMutex
	scenarios map[string]*scenario.Scenario

	closed atomic.Bool
}

// NewOrchestrator builds the full service graph and populates the agent pool
// according to the swarm configuration. The emitter may have nil sinks; the
// executor provider must cover every agent kind in the pool.
func NewOrchestrator(cfg config.Swarm, execs executor.Provider, emitter *Emitter) (*Orchestrator, error) {
	registry := NewAgentRegistry()
	queue := NewTaskQueue()
	history := NewTaskHistory()
	aggregator := NewMetricsAggregator(registry)
	supervisor := NewExecutionSupervisor(registry, queue, execs, emitter, history, aggregator, cfg)
	dispatcher := NewDispatcher(registry, queue, supervisor, emitter, emitter.Instruments())

	supervisor.SetOnAgentsFreed(dispatcher.Trigger)
	registry.SetStatusListener(func(a agent.Agent) {
		emitter.AgentStatus(context.Background(), a)
	})

	o := &Orchestrator{
		cfg:        cfg,
		registry:   registry,
		queue:      queue,
		dispatcher: dispatcher,
		supervisor: supervisor,
		history:    history,
		aggregator: aggregator,
		status:     NewSwarmStatusReporter(registry, queue, supervisor, history),
		emitter:    emitter,
		scenarios:  make(map[string]*scenario.Scenario),
	}
	if err := o.populatePool(); err != nil {
		return nil, err
	}
	return o, nil
}

// populatePool registers the configured number of agents per kind. Ids are
// stable ("worker-1", "scout-2", ...) so logs and events stay readable.
func (o *Orchestrator) populatePool() error {
	pool := []struct {
		kind  agent.Kind
		count int
	}{
		{agent.KindWorker, o.cfg.Workers},
		{agent.KindScout, o.cfg.Scouts},
		{agent.KindSoldier, o.cfg.Soldiers},
		{agent.KindQueen, o.cfg.Queens},
	}
	for _, p := range pool {
		for i := 1; i <= p.count; i++ {
			a := agent.Agent{
				ID:           fmt.Sprintf("%s-%d", p.kind, i),
				Kind:         p.kind,
				Status:       agent.StatusIdle,
				Capabilities: agent.DefaultCapabilities(p.kind),
			}
			if err := o.registry.Register(a); err != nil {
				return fmt.Errorf("populate pool: %w", err)
			}
		}
	}
	slog.Info("agent pool populated",
		"workers", o.cfg.Workers,
		"scouts", o.cfg.Scouts,
		"soldiers", o.cfg.Soldiers,
		"queens", o.cfg.Queens,
	)
	return nil
}

// Start launches the dispatch loop. Blocks until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.dispatcher.Trigger()
	o.dispatcher.Run(ctx)
	return nil
}

// RegisterScenario validates and stores a scenario. Registering an existing
// id replaces the stored scenario; tasks already derived from the old version
// are unaffected.
func (o *Orchestrator) RegisterScenario(s *scenario.Scenario) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("register scenario: %w", err)
	}
	if s.Complexity == "" {
		s.Complexity = scenario.ComplexitySimple
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	o.scenMu.Lock()
	o.scenarios[s.ID] = s
	o.scenMu.Unlock()

	slog.Info("scenario registered", "scenario_id", s.ID, "name", s.Name, "complexity", s.Complexity)
	return nil
}

// GetScenario returns a copy of a registered scenario.
func (o *Orchestrator) GetScenario(id string) (*scenario.Scenario, error) {
	o.scenMu.RLock()
	defer o.scenMu.RUnlock()

	s, ok := o.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: %w", id, domain.ErrScenarioNotFound)
	}
	cp := *s
	return &cp, nil
}

// ListScenarios returns copies of all registered scenarios, sorted by id.
func (o *Orchestrator) ListScenarios() []scenario.Scenario {
	o.scenMu.RLock()
	defer o.scenMu.RUnlock()

	out := make([]scenario.Scenario, 0, len(o.scenarios))
	for _, s := range o.scenarios {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExecuteScenario derives a task from a registered scenario, admits it to the
// queue and wakes the dispatcher. Returns the new task id immediately; the
// task runs asynchronously.
func (o *Orchestrator) ExecuteScenario(ctx context.Context, scenarioID string, req task.Requirements) (string, error) {
	if o.closed.Load() {
		return "", fmt.Errorf("execute scenario %s: %w", scenarioID, domain.ErrShuttingDown)
	}

	s, err := o.GetScenario(scenarioID)
	if err != nil {
		return "", err
	}

	t := &task.Task{
		ID:                   uuid.NewString(),
		ScenarioID:           s.ID,
		ScenarioName:         s.Name,
		Priority:             task.DerivePriority(s.Tags, s.Complexity),
		RequiredCapabilities: task.DeriveCapabilities(s.Tags, s.Complexity, req.ExtraCapabilities),
		Deadline:             req.Deadline,
	}

	o.queue.Admit(t)
	o.emitter.TaskAdmitted(ctx, t)
	slog.Info("task admitted",
		"task_id", t.ID,
		"scenario_id", s.ID,
		"priority", t.Priority,
		"capabilities", len(t.RequiredCapabilities),
	)
	o.dispatcher.Trigger()
	return t.ID, nil
}

// GetTask returns a copy of a task wherever it currently lives: the queue,
// the in-flight set or the terminal history.
func (o *Orchestrator) GetTask(id string) (*task.Task, error) {
	if t, ok := o.supervisor.Lookup(id); ok {
		return &t, nil
	}
	for _, t := range o.queue.Peek() {
		if t.ID == id {
			return &t, nil
		}
	}
	return o.history.Get(id)
}

// GetMetrics returns the aggregated execution metrics.
func (o *Orchestrator) GetMetrics() MetricsSnapshot {
	return o.aggregator.Snapshot()
}

// GetSwarmStatus returns the current swarm snapshot.
func (o *Orchestrator) GetSwarmStatus(detailed bool) SwarmStatus {
	return o.status.Status(detailed)
}

// ListAgents returns a copy of every agent record with performance statistics.
func (o *Orchestrator) ListAgents() []agent.Agent {
	return o.registry.List()
}

// Dispatch runs one synchronous dispatch pass. Exposed for callers that need
// deterministic scheduling, including the shutdown path and tests.
func (o *Orchestrator) Dispatch(ctx context.Context) {
	o.dispatcher.Dispatch(ctx)
}

// Shutdown drains the swarm: refuse new admissions, stop self-healing, wait
// up to ShutdownGrace for in-flight tasks, then force-finalize stragglers as
// failed with a shutdown_timeout issue. Queued tasks that never dispatched
// remain queued and are dropped with the process. Idempotent.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}

	o.supervisor.BeginDrain()
	slog.Info("shutdown started",
		"in_flight", o.supervisor.InFlight(),
		"queued", o.queue.Len(),
		"grace", o.cfg.ShutdownGrace,
	)

	graceCtx, cancel := context.WithTimeout(ctx, o.cfg.ShutdownGrace)
	defer cancel()

	if err := o.supervisor.Quiesce(graceCtx); err != nil {
		forced := o.supervisor.ForceFinalize(ctx)
		slog.Warn("shutdown grace elapsed", "forced", forced)
	}

	completed, failed := o.history.Counts()
	slog.Info("shutdown complete",
		"completed", completed,
		"failed", failed,
		"still_queued", o.queue.Len(),
	)
	return nil
}
