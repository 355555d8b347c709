// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task tracks long-running backend invocations through their
// lifecycle states.
package task

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/adapter"
)

// DefaultRetention is how long a terminal task is kept before it is removed.
const DefaultRetention = time.Hour

// Work executes the backend call for one task and returns the reply. The
// context is canceled when the task is canceled, and carries the task's
// correlation id.
type Work func(ctx context.Context) (*adapter.Message, error)

// entry is the manager's mutable record for one task.
type entry struct {
	task   *adapter.Task
	cancel context.CancelFunc
	timer  *time.Timer
}

// Manager owns asynchronous task state: creation, polling, cooperative
// cancellation and deletion. All state lives in memory and is lost on
// process exit.
type Manager struct {
	retention time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer

	mu     sync.RWMutex
	tasks  map[string]*entry
	closed bool

	wg sync.WaitGroup
}

// NewManager creates a task manager with the default retention window.
func NewManager() *Manager {
	return &Manager{
		retention: DefaultRetention,
		logger:    slog.Default(),
		tracer:    otel.GetTracerProvider().Tracer("github.com/go-a2a/adapter/task"),
		tasks:     make(map[string]*entry),
	}
}

// WithLogger sets the logger for the Manager.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	m.logger = logger
	return m
}

// WithTracer sets the tracer for the Manager.
func (m *Manager) WithTracer(tracer trace.Tracer) *Manager {
	m.tracer = tracer
	return m
}

// WithRetention sets how long terminal tasks are kept before removal.
func (m *Manager) WithRetention(d time.Duration) *Manager {
	if d > 0 {
		m.retention = d
	}
	return m
}

// Create allocates a task in the submitted state and starts executing work
// in the background. The returned snapshot reflects the submitted state; the
// task transitions to working once execution begins.
func (m *Manager) Create(ctx context.Context, msg *adapter.Message, work Work) (*adapter.Task, error) {
	ctx, span := m.tracer.Start(ctx, "adapter.task.Create")
	defer span.End()

	t := adapter.NewTask(msg)
	correlationID := uuid.NewString()
	t.Metadata = map[string]any{adapter.MetadataCorrelationID: correlationID}

	span.SetAttributes(
		attribute.String("a2a.task_id", t.ID),
		attribute.String("adapter.correlation_id", correlationID),
	)

	runCtx := adapter.WithCorrelationID(context.Background(), correlationID)
	runCtx, cancel := context.WithCancel(runCtx)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, adapter.ErrClosed
	}
	m.tasks[t.ID] = &entry{task: t, cancel: cancel}
	snapshot := copyTask(t)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "task created",
		slog.String("task_id", t.ID),
		slog.String("correlation_id", correlationID))

	m.wg.Add(1)
	go m.run(runCtx, t.ID, work)

	return snapshot, nil
}

// run drives one task from submitted to a terminal state.
func (m *Manager) run(ctx context.Context, id string, work Work) {
	defer m.wg.Done()

	if !m.transition(id, adapter.TaskStateWorking, nil) {
		// canceled before execution began
		return
	}

	reply, err := work(ctx)

	switch {
	case ctx.Err() != nil:
		// canceled mid-flight; any result is discarded
		m.transition(id, adapter.TaskStateCanceled, nil)
	case err != nil:
		m.logger.ErrorContext(ctx, "task failed",
			slog.String("task_id", id),
			slog.Any("error", err))
		m.transition(id, adapter.TaskStateFailed, adapter.NewAssistantMessage(err.Error()))
	default:
		m.transition(id, adapter.TaskStateCompleted, reply)
	}
}

// transition moves a live task to the given state, refusing to overwrite a
// terminal state. It reports whether the transition applied.
func (m *Manager) transition(id string, state adapter.TaskState, msg *adapter.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tasks[id]
	if !ok || e.task.Status.State.IsTerminal() {
		return false
	}

	e.task.Status = adapter.TaskStatus{
		State:     state,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if msg != nil {
		e.task.History = append(e.task.History, msg)
	}
	if state.IsTerminal() && !m.closed {
		e.timer = time.AfterFunc(m.retention, func() { m.expire(id) })
	}

	return true
}

// expire removes a terminal task whose retention window lapsed.
func (m *Manager) expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.tasks[id]; ok && e.task.Status.State.IsTerminal() {
		delete(m.tasks, id)
	}
}

// Get returns a snapshot of the task with the given id.
func (m *Manager) Get(ctx context.Context, id string) (*adapter.Task, error) {
	_, span := m.tracer.Start(ctx, "adapter.task.Get",
		trace.WithAttributes(attribute.String("a2a.task_id", id)))
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.tasks[id]
	if !ok {
		return nil, &adapter.TaskNotFoundError{TaskID: id}
	}
	return copyTask(e.task), nil
}

// Cancel requests cooperative cancellation of a live task. The task moves to
// the canceled state immediately; in-flight work is signaled through its
// context and its eventual result is discarded. Canceling a terminal task
// fails with [adapter.TaskNotCancelableError].
func (m *Manager) Cancel(ctx context.Context, id string) (*adapter.Task, error) {
	ctx, span := m.tracer.Start(ctx, "adapter.task.Cancel",
		trace.WithAttributes(attribute.String("a2a.task_id", id)))
	defer span.End()

	m.mu.Lock()
	e, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return nil, &adapter.TaskNotFoundError{TaskID: id}
	}
	if e.task.Status.State.IsTerminal() {
		state := e.task.Status.State
		m.mu.Unlock()
		return nil, &adapter.TaskNotCancelableError{TaskID: id, State: state}
	}

	e.task.Status = adapter.TaskStatus{
		State:     adapter.TaskStateCanceled,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	e.timer = time.AfterFunc(m.retention, func() { m.expire(id) })
	cancel := e.cancel
	snapshot := copyTask(e.task)
	m.mu.Unlock()

	cancel()
	m.logger.InfoContext(ctx, "task canceled", slog.String("task_id", id))

	return snapshot, nil
}

// Delete removes a terminal task. Deleting a live task fails with
// [adapter.TaskNotDeletableError].
func (m *Manager) Delete(ctx context.Context, id string) error {
	ctx, span := m.tracer.Start(ctx, "adapter.task.Delete",
		trace.WithAttributes(attribute.String("a2a.task_id", id)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tasks[id]
	if !ok {
		return &adapter.TaskNotFoundError{TaskID: id}
	}
	if !e.task.Status.State.IsTerminal() {
		return &adapter.TaskNotDeletableError{TaskID: id, State: e.task.Status.State}
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	delete(m.tasks, id)
	m.logger.InfoContext(ctx, "task deleted", slog.String("task_id", id))

	return nil
}

// Size reports the number of tracked tasks.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// Shutdown cancels all live tasks, stops retention timers and waits for
// background execution to settle or the context to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, e := range m.tasks {
		if !e.task.Status.State.IsTerminal() {
			e.cancel()
		}
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// copyTask returns a snapshot of the task safe to hand to callers.
func copyTask(t *adapter.Task) *adapter.Task {
	clone := *t
	if t.History != nil {
		clone.History = slices.Clone(t.History)
	}
	if t.Metadata != nil {
		clone.Metadata = maps.Clone(t.Metadata)
	}
	return &clone
}
