package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davrk/swarmforge/internal/domain/event"
)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new event into the swarm_events table.
func (s *EventStore) Append(ctx context.Context, ev *event.SwarmEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO swarm_events (id, event_type, task_id, agent_id, stage, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, string(ev.Type), ev.TaskID, ev.AgentID, ev.Stage, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// eventColumns is the SELECT column list for swarm_events queries.
const eventColumns = `id, event_type, task_id, agent_id, stage, payload, created_at`

// scanEvent scans a row into a SwarmEvent.
func scanEvent(scanner interface{ Scan(dest ...any) error }, ev *event.SwarmEvent) error {
	return scanner.Scan(&ev.ID, &ev.Type, &ev.TaskID, &ev.AgentID, &ev.Stage, &ev.Payload, &ev.CreatedAt)
}

// LoadByTask returns all events for the given task, oldest first.
func (s *EventStore) LoadByTask(ctx context.Context, taskID string) ([]event.SwarmEvent, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM swarm_events WHERE task_id = $1 ORDER BY created_at ASC`, eventColumns), taskID)
	if err != nil {
		return nil, fmt.Errorf("load events by task %s: %w", taskID, err)
	}
	defer rows.Close()

	var events []event.SwarmEvent
	for rows.Next() {
		var ev event.SwarmEvent
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LoadByAgent returns all events for the given agent, oldest first.
func (s *EventStore) LoadByAgent(ctx context.Context, agentID string) ([]event.SwarmEvent, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM swarm_events WHERE agent_id = $1 ORDER BY created_at ASC`, eventColumns), agentID)
	if err != nil {
		return nil, fmt.Errorf("load events by agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var events []event.SwarmEvent
	for rows.Next() {
		var ev event.SwarmEvent
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
