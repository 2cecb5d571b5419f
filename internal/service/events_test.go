package service

import (
	"context"
	"testing"
	"time"

	"github.com/davrk/swarmforge/internal/adapter/ws"
	"github.com/davrk/swarmforge/internal/domain/agent"
	"github.com/davrk/swarmforge/internal/domain/event"
	"github.com/davrk/swarmforge/internal/domain/task"
	"github.com/davrk/swarmforge/internal/port/messagequeue"
)

func TestEmitterFansOutTaskAdmitted(t *testing.T) {
	hub := &mockBroadcaster{}
	queue := &mockQueue{}
	store := &mockEventStore{}
	e := NewEmitter(hub, queue, store, nil)

	tk := &task.Task{ID: "t-1", ScenarioID: "s-1", Priority: task.PriorityHigh}
	e.TaskAdmitted(context.Background(), tk)

	if hub.count(ws.EventTaskAdmitted) != 1 {
		t.Fatal("expected one websocket broadcast")
	}
	if queue.countSubject(messagequeue.SubjectTaskAdmitted) != 1 {
		t.Fatal("expected one queue publish")
	}
	events, _ := store.LoadByTask(context.Background(), "t-1")
	if len(events) != 1 || events[0].Type != event.TypeTaskAdmitted {
		t.Fatalf("expected one stored admission event, got %+v", events)
	}
	if events[0].ID == "" {
		t.Fatal("stored event must carry an id")
	}
}

func TestEmitterTerminalDistinguishesOutcome(t *testing.T) {
	store := &mockEventStore{}
	e := NewEmitter(nil, nil, store, nil)

	done := &task.Task{ID: "t-ok", Progress: task.Progress{Stage: task.StageCompleted}}
	failed := &task.Task{ID: "t-bad", Progress: task.Progress{Stage: task.StageFailed}}
	e.TaskTerminal(context.Background(), done, time.Second)
	e.TaskTerminal(context.Background(), failed, time.Second)

	okEvents, _ := store.LoadByTask(context.Background(), "t-ok")
	if len(okEvents) != 1 || okEvents[0].Type != event.TypeTaskCompleted {
		t.Fatalf("expected completed event, got %+v", okEvents)
	}
	badEvents, _ := store.LoadByTask(context.Background(), "t-bad")
	if len(badEvents) != 1 || badEvents[0].Type != event.TypeTaskFailed {
		t.Fatalf("expected failed event, got %+v", badEvents)
	}
}

func TestEmitterAgentStatus(t *testing.T) {
	hub := &mockBroadcaster{}
	store := &mockEventStore{}
	e := NewEmitter(hub, nil, store, nil)

	e.AgentStatus(context.Background(), agent.Agent{ID: "w-1", Kind: agent.KindWorker, Status: agent.StatusBusy, CurrentTaskID: "t-1"})

	if hub.count(ws.EventAgentStatus) != 1 {
		t.Fatal("expected one agent status broadcast")
	}
	events, _ := store.LoadByAgent(context.Background(), "w-1")
	if len(events) != 1 || events[0].Stage != string(agent.StatusBusy) {
		t.Fatalf("expected stored busy transition, got %+v", events)
	}
}

func TestEmitterToleratesNilSinks(t *testing.T) {
	e := NewEmitter(nil, nil, nil, nil)
	tk := &task.Task{ID: "t-1"}

	// None of these may panic.
	e.TaskAdmitted(context.Background(), tk)
	e.TaskDispatched(context.Background(), tk)
	e.TaskStage(context.Background(), tk)
	e.TaskRetried(context.Background(), tk)
	e.TaskTerminal(context.Background(), tk, time.Second)
	e.AgentStatus(context.Background(), agent.Agent{ID: "w-1"})
}

func TestEmitterStoreFailureIsSwallowed(t *testing.T) {
	store := &mockEventStore{appendErr: context.DeadlineExceeded}
	e := NewEmitter(nil, nil, store, nil)

	// A failing sink must not propagate.
	e.TaskAdmitted(context.Background(), &task.Task{ID: "t-1"})
}
