package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/davrk/swarmforge/internal/config"
	"github.com/davrk/swarmforge/internal/domain/agent"
	"github.com/davrk/swarmforge/internal/domain/event"
	"github.com/davrk/swarmforge/internal/domain/scenario"
	"github.com/davrk/swarmforge/internal/domain/task"
	"github.com/davrk/swarmforge/internal/port/broadcast"
	"github.com/davrk/swarmforge/internal/port/eventstore"
	"github.com/davrk/swarmforge/internal/port/executor"
	"github.com/davrk/swarmforge/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ eventstore.Store      = (*mockEventStore)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
	_ executor.Executor     = (*mockExecutor)(nil)
)

type broadcastRecord struct {
	eventType string
	payload   any
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastRecord{eventType, payload})
}

func (m *mockBroadcaster) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

type mockEventStore struct {
	mu        sync.Mutex
	events    []event.SwarmEvent
	appendErr error
}

func (m *mockEventStore) Append(_ context.Context, ev *event.SwarmEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockEventStore) LoadByTask(_ context.Context, taskID string) ([]event.SwarmEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []event.SwarmEvent
	for i := range m.events {
		if m.events[i].TaskID == taskID {
			result = append(result, m.events[i])
		}
	}
	return result, nil
}

func (m *mockEventStore) LoadByAgent(_ context.Context, agentID string) ([]event.SwarmEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []event.SwarmEvent
	for i := range m.events {
		if m.events[i].AgentID == agentID {
			result = append(result, m.events[i])
		}
	}
	return result, nil
}

type published struct {
	subject string
	data    []byte
}

type mockQueue struct {
	mu        sync.Mutex
	messages  []published
	connected bool
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{subject, data})
	return nil
}

func (m *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error { return nil }

func (m *mockQueue) Close() error { return nil }

func (m *mockQueue) IsConnected() bool { return m.connected }

func (m *mockQueue) countSubject(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.messages {
		if p.subject == subject {
			n++
		}
	}
	return n
}

// mockExecutor runs every task instantly. Behavior is scripted through
// executeFn and validateFn; by default every execution passes.
type mockExecutor struct {
	mu         sync.Mutex
	executeFn  func(t *task.Task, ag *agent.Agent) (*executor.StepResult, error)
	validateFn func(t *task.Task, results []executor.StepResult) (*executor.ValidationResult, error)
	executions []string // agent ids, in call order
}

func (m *mockExecutor) Execute(_ context.Context, t *task.Task, ag *agent.Agent) (*executor.StepResult, error) {
	m.mu.Lock()
	m.executions = append(m.executions, ag.ID)
	fn := m.executeFn
	m.mu.Unlock()

	if fn != nil {
		return fn(t, ag)
	}
	return &executor.StepResult{AgentID: ag.ID, Passed: true, Duration: time.Millisecond}, nil
}

func (m *mockExecutor) Validate(_ context.Context, t *task.Task, results []executor.StepResult) (*executor.ValidationResult, error) {
	m.mu.Lock()
	fn := m.validateFn
	m.mu.Unlock()

	if fn != nil {
		return fn(t, results)
	}
	return &executor.ValidationResult{Valid: true}, nil
}

func (m *mockExecutor) executionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executions)
}

// allKindsProvider registers the executor for every agent kind.
func allKindsProvider(exec executor.Executor) *executor.Registry {
	reg := executor.NewRegistry()
	for _, k := range []agent.Kind{agent.KindWorker, agent.KindScout, agent.KindSoldier, agent.KindQueen} {
		reg.Register(k, exec)
	}
	return reg
}

// testSwarmConfig is a small pool with self-healing on and no delays.
func testSwarmConfig() config.Swarm {
	return config.Swarm{
		Workers:         3,
		Scouts:          1,
		Soldiers:        1,
		Queens:          1,
		SelfHealing:     true,
		MaxRetries:      2,
		HealingDelay:    0,
		ExecutorTimeout: time.Second,
		ShutdownGrace:   100 * time.Millisecond,
	}
}

func newTestOrchestrator(t *testing.T, cfg config.Swarm, exec executor.Executor) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg, allKindsProvider(exec), NewEmitter(nil, nil, nil, nil))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func testScenario(id string, tags []string, c scenario.Complexity) *scenario.Scenario {
	return &scenario.Scenario{
		ID:         id,
		Name:       "scenario " + id,
		Tags:       tags,
		Complexity: c,
		Steps:      []scenario.Step{{Name: "step-1", Action: "run"}},
	}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
