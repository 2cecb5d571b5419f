package service

import (
	"fmt"
	"sync"

	"github.com/davrk/swarmforge/internal/domain"
	"github.com/davrk/swarmforge/internal/domain/task"
)

// TaskHistory retains every task that reached a terminal stage. Entries are
// immutable once appended and never deleted; metrics and audit read from
// here. Dense slice plus id→index map, same layout as the agent registry.
type TaskHistory struct {
	mu        sync.Mutex
	tasks     []task.Task
	index     map[string]int
	completed int
	failed    int
}

// NewTaskHistory creates an empty history.
func NewTaskHistory() *TaskHistory {
	return &TaskHistory{index: make(map[string]int)}
}

// Append stores a copy of a terminal task.
func (h *TaskHistory) Append(t *task.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.index[t.ID]; exists {
		return // a task terminates exactly once; ignore duplicates
	}
	h.index[t.ID] = len(h.tasks)
	h.tasks = append(h.tasks, *t)
	if t.Progress.Stage == task.StageCompleted {
		h.completed++
	} else {
		h.failed++
	}
}

// Get returns a copy of the terminal task with the given id.
func (h *TaskHistory) Get(id string) (*task.Task, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.index[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	t := h.tasks[i]
	return &t, nil
}

// Counts returns (completed, failed) totals.
func (h *TaskHistory) Counts() (completed, failed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed, h.failed
}

// Len returns the number of terminal tasks retained.
func (h *TaskHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tasks)
}

// All returns a copy of the full history, oldest first.
func (h *TaskHistory) All() []task.Task {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]task.Task, len(h.tasks))
	copy(out, h.tasks)
	return out
}
