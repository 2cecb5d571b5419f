// Package broadcast defines the port for pushing swarm events to live
// observers (the WebSocket hub in production).
package broadcast

import "context"

// Broadcaster fans one typed event out to every connected observer.
// Best-effort: a slow or broken observer never blocks the orchestrator.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
