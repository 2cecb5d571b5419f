// Package executor defines the scenario-executor port (interface).
//
// Executors are external collaborators, one per agent kind. The orchestrator
// only depends on this contract: start an execution per assigned agent,
// collect step results, and validate them.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/davrk/swarmforge/internal/domain/agent"
	"github.com/davrk/swarmforge/internal/domain/task"
)

// ErrAgentFault indicates the executor reported a hard agent failure. Agents
// implicated this way are marked failed rather than returned to idle.
var ErrAgentFault = errors.New("executor reported hard agent failure")

// StepResult is what one agent produced for one execution attempt.
type StepResult struct {
	AgentID   string             `json:"agent_id"`
	Passed    bool               `json:"passed"`
	Output    string             `json:"output,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Artifacts []string           `json:"artifacts,omitempty"`
	Duration  time.Duration      `json:"duration"`
}

// Violation is a single validation finding.
type Violation struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// ValidationResult is the executor's verdict on a set of step results.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Executor runs scenario tasks on behalf of one agent kind.
type Executor interface {
	// Execute runs the task's scenario steps as the given agent. It must
	// report a result or an error within its own timeout.
	Execute(ctx context.Context, t *task.Task, ag *agent.Agent) (*StepResult, error)

	// Validate inspects the collected step results and reports violations.
	Validate(ctx context.Context, t *task.Task, results []StepResult) (*ValidationResult, error)
}
