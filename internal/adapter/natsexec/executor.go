// Package natsexec implements the executor port by delegating scenario
// execution to remote workers over NATS request/reply. One executor is
// registered per agent kind; remote workers subscribe to their kind's
// subject and answer with step results.
package natsexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/davrk/swarmforge/internal/domain/agent"
	"github.com/davrk/swarmforge/internal/domain/task"
	"github.com/davrk/swarmforge/internal/port/executor"
	"github.com/davrk/swarmforge/internal/port/messagequeue"
)

// Executor delegates one agent kind's executions to remote NATS workers.
type Executor struct {
	nc      *nats.Conn
	kind    agent.Kind
	timeout time.Duration
}

// New creates a NATS-backed executor for the given agent kind.
func New(nc *nats.Conn, kind agent.Kind, timeout time.Duration) *Executor {
	return &Executor{nc: nc, kind: kind, timeout: timeout}
}

// RegisterTaskKinds registers a NATS executor for every agent kind that can
// hold task work. Queens coordinate and are never assigned, so no executor
// is registered for them.
func RegisterTaskKinds(reg *executor.Registry, nc *nats.Conn, timeout time.Duration) {
	for _, kind := range []agent.Kind{agent.KindWorker, agent.KindScout, agent.KindSoldier} {
		reg.Register(kind, New(nc, kind, timeout))
	}
}

// executeRequest is the wire envelope sent to remote workers.
type executeRequest struct {
	Task  *task.Task   `json:"task"`
	Agent *agent.Agent `json:"agent"`
}

// executeResponse is the remote worker's answer to an execute request.
type executeResponse struct {
	Result     *executor.StepResult `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	AgentFault bool                 `json:"agent_fault,omitempty"`
}

type validateRequest struct {
	Task    *task.Task            `json:"task"`
	Results []executor.StepResult `json:"results"`
}

type validateResponse struct {
	Result *executor.ValidationResult `json:"result,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

// Execute sends the task to a remote worker of this executor's kind and
// waits for its step result.
func (e *Executor) Execute(ctx context.Context, t *task.Task, ag *agent.Agent) (*executor.StepResult, error) {
	data, err := json.Marshal(executeRequest{Task: t, Agent: ag})
	if err != nil {
		return nil, fmt.Errorf("natsexec: marshal execute request: %w", err)
	}

	msg, err := e.request(ctx, e.subject("execute"), data)
	if err != nil {
		return nil, fmt.Errorf("natsexec: execute %s as %s: %w", t.ID, ag.ID, err)
	}

	var resp executeResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("natsexec: decode execute response: %w", err)
	}
	if resp.Error != "" {
		if resp.AgentFault {
			return nil, fmt.Errorf("%s: %w", resp.Error, executor.ErrAgentFault)
		}
		return nil, errors.New(resp.Error)
	}
	if resp.Result == nil {
		return nil, errors.New("natsexec: empty execute response")
	}
	return resp.Result, nil
}

// Validate asks a remote worker of this executor's kind for a verdict on the
// collected step results.
func (e *Executor) Validate(ctx context.Context, t *task.Task, results []executor.StepResult) (*executor.ValidationResult, error) {
	data, err := json.Marshal(validateRequest{Task: t, Results: results})
	if err != nil {
		return nil, fmt.Errorf("natsexec: marshal validate request: %w", err)
	}

	msg, err := e.request(ctx, e.subject("validate"), data)
	if err != nil {
		return nil, fmt.Errorf("natsexec: validate %s: %w", t.ID, err)
	}

	var resp validateResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("natsexec: decode validate response: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if resp.Result == nil {
		return nil, errors.New("natsexec: empty validate response")
	}
	return resp.Result, nil
}

func (e *Executor) subject(op string) string {
	return messagequeue.SubjectTaskAgentKind + "." + string(e.kind) + "." + op
}

func (e *Executor) request(ctx context.Context, subject string, data []byte) (*nats.Msg, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.nc.RequestWithContext(ctx, subject, data)
}
