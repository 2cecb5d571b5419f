package service

import (
	"testing"
	"time"

	"github.com/davrk/swarmforge/internal/domain/task"
)

func queuedTask(id string, p task.Priority) *task.Task {
	return &task.Task{ID: id, Priority: p}
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := NewTaskQueue()
	q.Admit(queuedTask("low", task.PriorityLow))
	q.Admit(queuedTask("critical", task.PriorityCritical))
	q.Admit(queuedTask("medium", task.PriorityMedium))
	q.Admit(queuedTask("high", task.PriorityHigh))

	batch := q.DrainBatch(4)
	want := []string{"critical", "high", "medium", "low"}
	for i, id := range want {
		if batch[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, batch[i].ID)
		}
	}
}

func TestQueueAdmissionOrderWithinPriority(t *testing.T) {
	q := NewTaskQueue()
	q.Admit(queuedTask("first", task.PriorityHigh))
	q.Admit(queuedTask("second", task.PriorityHigh))
	q.Admit(queuedTask("third", task.PriorityHigh))

	batch := q.DrainBatch(3)
	for i, id := range []string{"first", "second", "third"} {
		if batch[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, batch[i].ID)
		}
	}
}

func TestQueueDeadlineTiebreak(t *testing.T) {
	q := NewTaskQueue()
	later := time.Now().Add(2 * time.Hour)
	sooner := time.Now().Add(time.Hour)

	a := queuedTask("later", task.PriorityHigh)
	a.Deadline = &later
	b := queuedTask("sooner", task.PriorityHigh)
	b.Deadline = &sooner
	q.Admit(a)
	q.Admit(b)

	batch := q.DrainBatch(2)
	if batch[0].ID != "sooner" {
		t.Fatalf("expected deadline-first ordering, got %s", batch[0].ID)
	}
}

func TestQueueNoDeadlineSortsLast(t *testing.T) {
	q := NewTaskQueue()
	dl := time.Now().Add(time.Hour)

	a := queuedTask("no-deadline", task.PriorityHigh)
	b := queuedTask("with-deadline", task.PriorityHigh)
	b.Deadline = &dl
	q.Admit(a)
	q.Admit(b)

	// A task without a deadline yields to any task with one, regardless of
	// admission order.
	batch := q.DrainBatch(2)
	if batch[0].ID != "with-deadline" {
		t.Fatalf("expected deadline-carrying task first, got %s", batch[0].ID)
	}
}

func TestQueueMixedDeadlineOrdering(t *testing.T) {
	q := NewTaskQueue()
	far := time.Now().Add(10 * time.Hour)
	near := time.Now().Add(time.Hour)

	x := queuedTask("far-deadline", task.PriorityHigh)
	x.Deadline = &far
	y := queuedTask("none-1", task.PriorityHigh)
	z := queuedTask("near-deadline", task.PriorityHigh)
	z.Deadline = &near
	w := queuedTask("none-2", task.PriorityHigh)
	q.Admit(x)
	q.Admit(y)
	q.Admit(z)
	q.Admit(w)

	// Deadlines order first even when admitted after deadline-free tasks;
	// the deadline-free tasks keep admission order among themselves.
	batch := q.DrainBatch(4)
	want := []string{"near-deadline", "far-deadline", "none-1", "none-2"}
	for i, id := range want {
		if batch[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, batch[i].ID)
		}
	}
}

func TestQueueSeqSurvivesReadmission(t *testing.T) {
	q := NewTaskQueue()
	a := queuedTask("a", task.PriorityMedium)
	q.Admit(a)
	q.Admit(queuedTask("b", task.PriorityMedium))

	drained := q.DrainBatch(1)
	if drained[0].ID != "a" {
		t.Fatalf("expected a drained first, got %s", drained[0].ID)
	}
	seq := drained[0].Seq

	// Re-admission keeps the original sequence number, so a still sorts
	// ahead of b.
	q.Admit(a)
	if a.Seq != seq {
		t.Fatalf("seq changed on re-admission: %d -> %d", seq, a.Seq)
	}
	batch := q.DrainBatch(2)
	if batch[0].ID != "a" {
		t.Fatalf("expected re-admitted a first, got %s", batch[0].ID)
	}
}

func TestQueueDrainBatchLimit(t *testing.T) {
	q := NewTaskQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.Admit(queuedTask(id, task.PriorityLow))
	}

	batch := q.DrainBatch(2)
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 task left queued, got %d", q.Len())
	}
}

func TestQueueAdmitSetsStage(t *testing.T) {
	q := NewTaskQueue()
	tk := queuedTask("a", task.PriorityLow)
	tk.Progress.Stage = task.StagePreparing
	q.Admit(tk)

	if tk.Progress.Stage != task.StageQueued {
		t.Fatalf("expected stage queued, got %s", tk.Progress.Stage)
	}
	if tk.AdmittedAt.IsZero() {
		t.Fatal("expected AdmittedAt to be set")
	}
}
