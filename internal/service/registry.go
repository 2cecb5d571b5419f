package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/davrk/swarmforge/internal/domain"
	"github.com/davrk/swarmforge/internal/domain/agent"
)

// AgentRegistry holds all agent records and mediates their status
// transitions. Agents live in a dense slice with a separate id→index map so
// snapshots iterate without allocation churn.
//
// The registry is a leaf dependency of the Dispatcher and the
// ExecutionSupervisor; nothing else mutates agent state.
type AgentRegistry struct {
	mu     sync.Mutex
	agents []agent.Agent
	index  map[string]int

	// onStatus, when set, is invoked after every status transition with a
	// copy of the agent. Set once during wiring, before any dispatching.
	onStatus func(agent.Agent)
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{index: make(map[string]int)}
}

// SetStatusListener registers a callback for agent status transitions. The
// callback fires outside the registry lock, so delivery order may trail the
// commit order of concurrent transitions.
func (r *AgentRegistry) SetStatusListener(fn func(agent.Agent)) {
	r.onStatus = fn
}

// Register inserts a new agent record.
func (r *AgentRegistry) Register(a agent.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[a.ID]; exists {
		return fmt.Errorf("register agent %s: %w", a.ID, domain.ErrDuplicateAgent)
	}

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = agent.StatusIdle
	}

	r.index[a.ID] = len(r.agents)
	r.agents = append(r.agents, a)
	return nil
}

// Get returns a copy of the agent with the given id.
func (r *AgentRegistry) Get(id string) (*agent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	a := r.agents[i]
	return &a, nil
}

// FindIdleByCapability returns idle agents possessing the capability, ordered
// by descending success rate, ties broken by ascending agent id so identical
// registry state always yields identical assignment.
func (r *AgentRegistry) FindIdleByCapability(c agent.Capability) []agent.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []agent.Agent
	for i := range r.agents {
		a := &r.agents[i]
		if a.Status == agent.StatusIdle && a.HasCapability(c) {
			found = append(found, *a)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Performance.SuccessRate != found[j].Performance.SuccessRate {
			return found[i].Performance.SuccessRate > found[j].Performance.SuccessRate
		}
		return found[i].ID < found[j].ID
	})
	return found
}

// IdleCount returns the number of idle non-queen agents. This bounds how many
// tasks one dispatch pass may drain.
func (r *AgentRegistry) IdleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := range r.agents {
		if r.agents[i].Status == agent.StatusIdle && r.agents[i].Kind != agent.KindQueen {
			n++
		}
	}
	return n
}

// MarkBusy atomically transitions an idle agent to busy, binding it to the
// task. Fails if the agent is not idle, which prevents double-assignment.
func (r *AgentRegistry) MarkBusy(agentID, taskID string) error {
	return r.transition(agentID, func(a *agent.Agent) error {
		if a.Status != agent.StatusIdle {
			return fmt.Errorf("mark busy %s (status %s): %w", agentID, a.Status, domain.ErrAgentNotIdle)
		}
		a.Status = agent.StatusBusy
		a.CurrentTaskID = taskID
		return nil
	})
}

// MarkIdle returns an agent to the idle pool and clears its task binding.
func (r *AgentRegistry) MarkIdle(agentID string) error {
	return r.transition(agentID, func(a *agent.Agent) error {
		a.Status = agent.StatusIdle
		a.CurrentTaskID = ""
		return nil
	})
}

// MarkFailed removes an agent from rotation after a hard executor fault.
func (r *AgentRegistry) MarkFailed(agentID string) error {
	return r.transition(agentID, func(a *agent.Agent) error {
		a.Status = agent.StatusFailed
		a.CurrentTaskID = ""
		return nil
	})
}

// MarkHealing parks an agent while a self-healing retry is prepared.
func (r *AgentRegistry) MarkHealing(agentID string) error {
	return r.transition(agentID, func(a *agent.Agent) error {
		a.Status = agent.StatusHealing
		a.CurrentTaskID = ""
		return nil
	})
}

// RecordOutcome folds one finished attempt into the agent's performance
// statistics. Called only by the ExecutionSupervisor.
func (r *AgentRegistry) RecordOutcome(agentID string, success bool, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	r.agents[i].Performance.Record(success, d)
	r.agents[i].UpdatedAt = time.Now()
	return nil
}

// Snapshot returns the agent count per status. Read-only, used by the
// SwarmStatusReporter and the MetricsAggregator.
func (r *AgentRegistry) Snapshot() map[agent.Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[agent.Status]int, 4)
	for i := range r.agents {
		counts[r.agents[i].Status]++
	}
	return counts
}

// List returns a copy of every agent record.
func (r *AgentRegistry) List() []agent.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]agent.Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Len returns the total number of registered agents.
func (r *AgentRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// transition applies fn to the agent under the lock and notifies the status
// listener outside it. Because the listener runs after the lock is released,
// two racing transitions can deliver their notifications in the opposite
// order from the state changes. Listeners feed observability surfaces only
// and must not treat notification order as authoritative.
func (r *AgentRegistry) transition(agentID string, fn func(*agent.Agent) error) error {
	r.mu.Lock()
	i, ok := r.index[agentID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	if err := fn(&r.agents[i]); err != nil {
		r.mu.Unlock()
		return err
	}
	r.agents[i].UpdatedAt = time.Now()
	changed := r.agents[i]
	r.mu.Unlock()

	if r.onStatus != nil {
		r.onStatus(changed)
	}
	return nil
}
