package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	swarmotel "github.com/davrk/swarmforge/internal/adapter/otel"
	"github.com/davrk/swarmforge/internal/config"
	"github.com/davrk/swarmforge/internal/domain/task"
	"github.com/davrk/swarmforge/internal/port/executor"
)

// IssueShutdownTimeout marks tasks force-finalized because the shutdown
// grace period elapsed. Never retried.
const IssueShutdownTimeout = "shutdown_timeout"

// ExecutionSupervisor drives every dispatched task through its lifecycle:
// preparing → executing → validating → {completed | failed}. Execution is
// concurrent (one goroutine per task, one executor call per assigned agent)
// while all bookkeeping funnels back through the registry, the history and
// the metrics aggregator. Terminal transitions free the task's agents and
// wake the dispatcher so they are reused immediately.
type ExecutionSupervisor struct {
	registry   *AgentRegistry
	queue      *TaskQueue
	execs      executor.Provider
	emitter    *Emitter
	history    *TaskHistory
	aggregator *MetricsAggregator
	cfg        config.Swarm

	onFreed func() // dispatcher trigger, set during wiring

	baseCtx  context.Context
	cancel   context.CancelFunc
	draining atomic.Bool

	mu       sync.Mutex
	inflight map[string]*task.Task
	wg       sync.WaitGroup
}

// NewExecutionSupervisor wires a supervisor.
func NewExecutionSupervisor(
	registry *AgentRegistry,
	queue *TaskQueue,
	execs executor.Provider,
	emitter *Emitter,
	history *TaskHistory,
	aggregator *MetricsAggregator,
	cfg config.Swarm,
) *ExecutionSupervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExecutionSupervisor{
		registry:   registry,
		queue:      queue,
		execs:      execs,
		emitter:    emitter,
		history:    history,
		aggregator: aggregator,
		cfg:        cfg,
		baseCtx:    ctx,
		cancel:     cancel,
		inflight:   make(map[string]*task.Task),
	}
}

// SetOnAgentsFreed registers the callback invoked whenever agents return to
// the pool, typically the dispatcher's Trigger.
func (s *ExecutionSupervisor) SetOnAgentsFreed(fn func()) {
	s.onFreed = fn
}

// Start takes ownership of a dispatched task (stage preparing) and runs its
// lifecycle in a new goroutine.
func (s *ExecutionSupervisor) Start(t *task.Task) {
	s.mu.Lock()
	s.inflight[t.ID] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(t)
}

// InFlight returns the number of tasks between dispatch and a terminal stage.
func (s *ExecutionSupervisor) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Lookup returns a copy of an in-flight task, or false when the task is not
// currently between dispatch and terminal. Every mutation of an in-flight
// task goes through s.mu (setStage, addIssue), so the copy is stable even
// while the attempt is running.
func (s *ExecutionSupervisor) Lookup(taskID string) (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.inflight[taskID]
	if !ok {
		return task.Task{}, false
	}
	return *t, true
}

// setStage publishes a stage transition on an in-flight task. The lock keeps
// concurrent Lookup copies consistent.
func (s *ExecutionSupervisor) setStage(t *task.Task, stage task.Stage) {
	s.mu.Lock()
	t.Progress.Stage = stage
	s.mu.Unlock()
}

// addIssue appends an issue to an in-flight task under the supervisor lock.
func (s *ExecutionSupervisor) addIssue(t *task.Task, severity, message, agentID string) {
	s.mu.Lock()
	t.AddIssue(severity, message, agentID, time.Now())
	s.mu.Unlock()
}

// stableCopy returns a copy of the task taken under the supervisor lock, for
// emitting events about a task that other goroutines may still mutate.
func (s *ExecutionSupervisor) stableCopy(t *task.Task) task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *t
}

// run drives one execution attempt to a terminal stage or a retry.
func (s *ExecutionSupervisor) run(t *task.Task) {
	defer s.wg.Done()

	ctx, span := swarmotel.StartTaskSpan(s.baseCtx, t.ID, t.ScenarioID, t.Attempt)
	defer span.End()
	attemptStart := time.Now()

	s.setStage(t, task.StageExecuting)
	snap := s.stableCopy(t)
	s.emitter.TaskStage(ctx, &snap)

	results, hardFaults, execFailed := s.executeAll(ctx, t)

	s.setStage(t, task.StageValidating)
	snap = s.stableCopy(t)
	s.emitter.TaskStage(ctx, &snap)

	failed := execFailed
	if t.Deadline != nil && time.Now().After(*t.Deadline) {
		s.addIssue(t, task.SeverityBlocking, "deadline overrun", "")
		failed = true
	}

	if !failed {
		failed = !s.validate(ctx, t, results)
	}

	dur := time.Since(attemptStart)

	// Exactly one path settles a task; force-finalization during shutdown
	// may have claimed it already.
	if !s.claim(t.ID) {
		return
	}

	if !failed {
		s.finalize(ctx, t, task.StageCompleted, dur, hardFaults)
		return
	}
	if s.cfg.SelfHealing && t.Attempt < s.cfg.MaxRetries && !s.draining.Load() {
		s.retry(ctx, t, dur, hardFaults)
		return
	}
	s.finalize(ctx, t, task.StageFailed, dur, hardFaults)
}

// executeAll fans one executor call out per assigned agent and waits for all
// of them to report. Returns the collected results, the set of agents the
// executor declared hard-failed, and whether any call errored.
func (s *ExecutionSupervisor) executeAll(ctx context.Context, t *task.Task) (results []executor.StepResult, hardFaults map[string]bool, failed bool) {
	hardFaults = make(map[string]bool)

	var mu sync.Mutex
	var g errgroup.Group

	for _, agentID := range t.AssignedAgents {
		g.Go(func() error {
			ag, err := s.registry.Get(agentID)
			if err != nil {
				s.recordIssue(&mu, t, agentID, err, hardFaults, &failed)
				return nil
			}
			exec, err := s.execs.For(ag.Kind)
			if err != nil {
				s.recordIssue(&mu, t, agentID, err, hardFaults, &failed)
				return nil
			}

			callCtx := ctx
			if s.cfg.ExecutorTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, s.cfg.ExecutorTimeout)
				defer cancel()
			}

			res, err := exec.Execute(callCtx, t, ag)
			if err != nil {
				s.recordIssue(&mu, t, agentID, err, hardFaults, &failed)
				return nil
			}

			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, hardFaults, failed
}

// recordIssue logs an execution error against the task. The task append goes
// through the supervisor lock; the attempt-local fault bookkeeping through mu.
func (s *ExecutionSupervisor) recordIssue(mu *sync.Mutex, t *task.Task, agentID string, err error, hardFaults map[string]bool, failed *bool) {
	s.addIssue(t, task.SeverityBlocking, err.Error(), agentID)
	mu.Lock()
	defer mu.Unlock()
	if errors.Is(err, executor.ErrAgentFault) {
		hardFaults[agentID] = true
	}
	*failed = true
}

// validate delegates result validation to the executor of the first assigned
// agent's kind and records every violation as an issue. Returns true when no
// blocking violation was found.
func (s *ExecutionSupervisor) validate(ctx context.Context, t *task.Task, results []executor.StepResult) bool {
	ag, err := s.registry.Get(t.AssignedAgents[0])
	if err != nil {
		s.addIssue(t, task.SeverityBlocking, err.Error(), t.AssignedAgents[0])
		return false
	}
	exec, err := s.execs.For(ag.Kind)
	if err != nil {
		s.addIssue(t, task.SeverityBlocking, err.Error(), ag.ID)
		return false
	}

	vres, err := exec.Validate(ctx, t, results)
	if err != nil {
		s.addIssue(t, task.SeverityBlocking, "validation error: "+err.Error(), ag.ID)
		return false
	}

	valid := vres.Valid
	for _, v := range vres.Violations {
		severity := task.SeverityWarning
		if v.Blocking {
			severity = task.SeverityBlocking
			valid = false
		}
		s.addIssue(t, severity, v.Message, "")
	}
	return valid
}

// retry cycles the attempt's agents through healing and re-admits the task
// with the same id, a bumped attempt counter and a fresh assignment set. The
// failed attempt still counts against each agent's statistics.
func (s *ExecutionSupervisor) retry(ctx context.Context, t *task.Task, dur time.Duration, hardFaults map[string]bool) {
	t.Attempt++
	slog.Warn("task attempt failed, self-healing",
		"task_id", t.ID, "attempt", t.Attempt, "max_retries", s.cfg.MaxRetries)

	agents := t.AssignedAgents
	for _, id := range agents {
		_ = s.registry.RecordOutcome(id, false, dur)
		if hardFaults[id] {
			_ = s.registry.MarkFailed(id)
			continue
		}
		_ = s.registry.MarkHealing(id)
	}

	if s.cfg.HealingDelay > 0 {
		select {
		case <-time.After(s.cfg.HealingDelay):
		case <-s.baseCtx.Done():
		}
	}

	for _, id := range agents {
		if !hardFaults[id] {
			_ = s.registry.MarkIdle(id)
		}
	}

	// Once re-admitted the task may be re-dispatched immediately; emit
	// from a copy so the next attempt owns the live struct alone.
	t.AssignedAgents = nil
	cp := *t
	cp.Progress.Stage = task.StageQueued
	s.queue.Admit(t)
	s.emitter.TaskRetried(ctx, &cp)
	s.freed()
}

// finalize settles a task in a terminal stage: update agent statistics, free
// the agents, move the task to history, record metrics, wake the dispatcher.
func (s *ExecutionSupervisor) finalize(ctx context.Context, t *task.Task, stage task.Stage, dur time.Duration, hardFaults map[string]bool) {
	t.Progress.Stage = stage
	now := time.Now()
	t.FinishedAt = &now

	success := stage == task.StageCompleted
	for _, id := range t.AssignedAgents {
		_ = s.registry.RecordOutcome(id, success, dur)
		if hardFaults[id] {
			_ = s.registry.MarkFailed(id)
			continue
		}
		_ = s.registry.MarkIdle(id)
	}

	s.history.Append(t)
	s.aggregator.Record(success, dur)
	s.emitter.TaskTerminal(ctx, t, dur)

	slog.Info("task finished",
		"task_id", t.ID,
		"stage", stage,
		"attempts", t.Attempt+1,
		"duration_ms", dur.Milliseconds(),
		"issues", len(t.Progress.Issues),
	)
	s.freed()
}

// BeginDrain stops self-healing retries; in-flight attempts run to their
// terminal stage instead of re-entering the queue.
func (s *ExecutionSupervisor) BeginDrain() {
	s.draining.Store(true)
}

// Quiesce waits for every in-flight task to settle, or returns the context
// error when the grace period elapses first.
func (s *ExecutionSupervisor) Quiesce(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForceFinalize cancels outstanding executor calls and finalizes every task
// still in flight as failed with a shutdown_timeout issue. The agents are
// returned to idle, not failed: the agent itself is not implicated. Returns
// the number of tasks force-finalized.
func (s *ExecutionSupervisor) ForceFinalize(ctx context.Context) int {
	s.cancel()

	s.mu.Lock()
	remaining := make([]*task.Task, 0, len(s.inflight))
	for _, t := range s.inflight {
		remaining = append(remaining, t)
	}
	s.mu.Unlock()

	n := 0
	for _, t := range remaining {
		if !s.claim(t.ID) {
			continue
		}
		// The claimed task's run goroutine may still write issues until
		// it loses its own claim; mutate and copy under the same lock,
		// then settle from the copy.
		now := time.Now()
		s.mu.Lock()
		t.AddIssue(task.SeverityBlocking, IssueShutdownTimeout, "", now)
		t.Progress.Stage = task.StageFailed
		t.FinishedAt = &now
		cp := *t
		s.mu.Unlock()

		for _, id := range cp.AssignedAgents {
			_ = s.registry.MarkIdle(id)
		}

		dur := now.Sub(cp.AdmittedAt)
		if cp.StartedAt != nil {
			dur = now.Sub(*cp.StartedAt)
		}
		s.history.Append(&cp)
		s.aggregator.Record(false, dur)
		s.emitter.TaskTerminal(ctx, &cp, dur)
		n++
	}
	if n > 0 {
		slog.Warn("force-finalized in-flight tasks at shutdown", "count", n)
	}
	return n
}

// claim removes a task from the in-flight set; only the caller that wins the
// claim may settle the task.
func (s *ExecutionSupervisor) claim(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[taskID]; !ok {
		return false
	}
	delete(s.inflight, taskID)
	return true
}

func (s *ExecutionSupervisor) freed() {
	if s.onFreed != nil {
		s.onFreed()
	}
}
