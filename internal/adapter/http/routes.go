package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Scenarios
		r.Post("/scenarios", h.RegisterScenario)
		r.Get("/scenarios", h.ListScenarios)
		r.Get("/scenarios/{id}", h.GetScenario)
		r.Post("/scenarios/{id}/execute", h.ExecuteScenario)

		// Tasks
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/tasks/{id}/events", h.ListTaskEvents)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}/events", h.ListAgentEvents)

		// Swarm observability
		r.Get("/metrics", h.GetMetrics)
		r.Get("/status", h.GetStatus)
	})
}
