package service

import (
	"sort"
	"sync"
	"time"

	"github.com/davrk/swarmforge/internal/domain/task"
)

// TaskQueue is the ordered multiset of non-terminal tasks awaiting dispatch.
// Not a strict FIFO: DrainBatch re-sorts before every pass. Purely in-memory;
// Admit and DrainBatch are atomic with respect to each other and the queue
// has a single mutation point (the dispatch pass).
type TaskQueue struct {
	mu    sync.Mutex
	tasks []*task.Task
	seq   uint64
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Admit appends a task to the queue in stage queued. A task admitted for the
// first time receives its admission sequence number; a re-admitted task keeps
// the one it has, so skipped tasks are delayed but never reordered.
func (q *TaskQueue) Admit(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.Seq == 0 {
		q.seq++
		t.Seq = q.seq
		t.AdmittedAt = time.Now()
	}
	t.Progress.Stage = task.StageQueued
	q.tasks = append(q.tasks, t)
}

// DrainBatch removes and returns up to n queued tasks after re-sorting by
// (1) priority descending, (2) earlier deadline first, a missing deadline
// sorting after every set one, (3) original admission order. No priority aging is applied: a task
// whose capabilities exist nowhere in the pool stays queued indefinitely,
// which is a documented limitation rather than an error.
func (q *TaskQueue) DrainBatch(n int) []*task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || len(q.tasks) == 0 {
		return nil
	}

	sort.SliceStable(q.tasks, func(i, j int) bool {
		ti, tj := q.tasks[i], q.tasks[j]
		if ri, rj := ti.Priority.Rank(), tj.Priority.Rank(); ri != rj {
			return ri > rj
		}
		// A nil deadline compares as infinitely late, keeping the
		// predicate a total order when deadline bands mix.
		switch {
		case ti.Deadline != nil && tj.Deadline == nil:
			return true
		case ti.Deadline == nil && tj.Deadline != nil:
			return false
		case ti.Deadline != nil && !ti.Deadline.Equal(*tj.Deadline):
			return ti.Deadline.Before(*tj.Deadline)
		}
		return ti.Seq < tj.Seq
	})

	if n > len(q.tasks) {
		n = len(q.tasks)
	}
	batch := q.tasks[:n:n]
	q.tasks = q.tasks[n:]
	return batch
}

// Len returns the current queued count.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Peek returns copies of all queued tasks in their current order, for
// status reporting.
func (q *TaskQueue) Peek() []task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]task.Task, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = *t
	}
	return out
}
