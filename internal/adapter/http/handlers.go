package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/davrk/swarmforge/internal/domain/scenario"
	"github.com/davrk/swarmforge/internal/domain/task"
	"github.com/davrk/swarmforge/internal/port/cache"
	"github.com/davrk/swarmforge/internal/port/eventstore"
	"github.com/davrk/swarmforge/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Orchestrator *service.Orchestrator
	Events       eventstore.Store
	Cache        cache.Cache
	CacheTTL     time.Duration
}

// RegisterScenario handles POST /api/v1/scenarios.
func (h *Handlers) RegisterScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := readJSON[scenario.Scenario](w, r)
	if !ok {
		return
	}

	if err := h.Orchestrator.RegisterScenario(&s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListScenarios handles GET /api/v1/scenarios.
func (h *Handlers) ListScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.ListScenarios())
}

// GetScenario handles GET /api/v1/scenarios/{id}.
func (h *Handlers) GetScenario(w http.ResponseWriter, r *http.Request) {
	s, err := h.Orchestrator.GetScenario(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "scenario not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// executeResponse is the accepted-execution payload.
type executeResponse struct {
	TaskID string `json:"task_id"`
}

// ExecuteScenario handles POST /api/v1/scenarios/{id}/execute. The task runs
// asynchronously; the response only carries its id.
func (h *Handlers) ExecuteScenario(w http.ResponseWriter, r *http.Request) {
	var req task.Requirements
	if r.ContentLength != 0 {
		var ok bool
		req, ok = readJSON[task.Requirements](w, r)
		if !ok {
			return
		}
	}

	taskID, err := h.Orchestrator.ExecuteScenario(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "scenario not found")
		return
	}
	writeJSON(w, http.StatusAccepted, executeResponse{TaskID: taskID})
}

// GetTask handles GET /api/v1/tasks/{id}. Terminal tasks are immutable, so
// their responses are served from the cache once built.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	if h.Cache != nil {
		if data, ok, err := h.Cache.Get(r.Context(), "task:"+id); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	t, err := h.Orchestrator.GetTask(id)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}

	if h.Cache != nil && t.Progress.Stage.IsTerminal() {
		if data, err := json.Marshal(t); err == nil {
			_ = h.Cache.Set(r.Context(), "task:"+id, data, h.CacheTTL)
		}
	}
	writeJSON(w, http.StatusOK, t)
}

// ListTaskEvents handles GET /api/v1/tasks/{id}/events.
func (h *Handlers) ListTaskEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		writeError(w, http.StatusNotImplemented, "event store not configured")
		return
	}
	events, err := h.Events.LoadByTask(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ListAgents handles GET /api/v1/agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.ListAgents())
}

// ListAgentEvents handles GET /api/v1/agents/{id}/events.
func (h *Handlers) ListAgentEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		writeError(w, http.StatusNotImplemented, "event store not configured")
		return
	}
	events, err := h.Events.LoadByAgent(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetMetrics handles GET /api/v1/metrics.
func (h *Handlers) GetMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.GetMetrics())
}

// GetStatus handles GET /api/v1/status. ?detailed=true attaches the
// per-agent list with performance statistics.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	detailed := r.URL.Query().Get("detailed") == "true"
	writeJSON(w, http.StatusOK, h.Orchestrator.GetSwarmStatus(detailed))
}
