// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrScenarioNotFound indicates an execution request referenced an
// unregistered scenario. Returned synchronously to the caller.
var ErrScenarioNotFound = errors.New("scenario not found")

// ErrDuplicateAgent indicates an agent id was registered twice.
// This is a programming error, not an operational condition.
var ErrDuplicateAgent = errors.New("duplicate agent")

// ErrAgentNotIdle indicates an attempt to assign a task to an agent that is
// not idle. Correct dispatcher operation never produces this.
var ErrAgentNotIdle = errors.New("agent not idle")

// ErrShuttingDown indicates the orchestrator no longer admits new tasks.
var ErrShuttingDown = errors.New("orchestrator is shutting down")
