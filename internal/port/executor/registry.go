package executor

import (
	"fmt"
	"sync"

	"github.com/davrk/swarmforge/internal/domain/agent"
)

// Provider resolves the executor responsible for an agent kind.
type Provider interface {
	For(kind agent.Kind) (Executor, error)
}

// Registry maps agent kinds to their executors.
type Registry struct {
	mu    sync.RWMutex
	execs map[agent.Kind]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{execs: make(map[agent.Kind]Executor)}
}

// Register makes an executor available for the given agent kind.
// It is typically called once during wiring.
func (r *Registry) Register(kind agent.Kind, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.execs[kind]; exists {
		panic(fmt.Sprintf("executor: duplicate registration for %q", kind))
	}
	r.execs[kind] = exec
}

// For returns the executor registered for the given agent kind.
func (r *Registry) For(kind agent.Kind) (Executor, error) {
	r.mu.RLock()
	exec, ok := r.execs[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("executor: no executor for kind %q", kind)
	}
	return exec, nil
}

// Kinds returns the agent kinds with a registered executor.
func (r *Registry) Kinds() []agent.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]agent.Kind, 0, len(r.execs))
	for k := range r.execs {
		kinds = append(kinds, k)
	}
	return kinds
}
