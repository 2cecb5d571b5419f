// Package eventstore defines the port interface for the append-only swarm event store.
package eventstore

import (
	"context"

	"github.com/davrk/swarmforge/internal/domain/event"
)

// Store is the port interface for appending and loading swarm events.
type Store interface {
	// Append persists a new event to the store.
	Append(ctx context.Context, ev *event.SwarmEvent) error

	// LoadByTask returns all events for the given task, oldest first.
	LoadByTask(ctx context.Context, taskID string) ([]event.SwarmEvent, error)

	// LoadByAgent returns all events for the given agent, oldest first.
	LoadByAgent(ctx context.Context, agentID string) ([]event.SwarmEvent, error)
}
