// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"time"

	"github.com/google/uuid"
)

// TaskState represents the lifecycle state of a [Task].
type TaskState string

// TaskState constants.
const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
)

// IsTerminal reports whether the state is final. Terminal tasks never change
// state again.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// String returns the state as a string.
func (s TaskState) String() string {
	return string(s)
}

// TaskKind is the wire discriminator for [Task] results.
const TaskKind = "task"

// MetadataCorrelationID is the task metadata key carrying the correlation id
// of the backend call the task tracks.
const MetadataCorrelationID = "correlation_id"

// TaskStatus is the current status of a [Task]. For completed tasks Message
// carries the backend result; for failed tasks it carries the error text.
type TaskStatus struct {
	// State is the lifecycle state.
	State TaskState `json:"state"`

	// Message is the status payload, if any.
	Message *Message `json:"message,omitzero"`

	// Timestamp records when the state was entered, in RFC 3339 form.
	Timestamp string `json:"timestamp,omitzero"`
}

// Task tracks one long-running backend invocation through its lifecycle.
type Task struct {
	// Kind is the wire discriminator, always [TaskKind] on output.
	Kind string `json:"kind,omitzero"`

	// ID uniquely identifies the task.
	ID string `json:"id"`

	// ContextID groups the task with its conversation.
	ContextID string `json:"contextId,omitzero"`

	// Status is the current lifecycle status.
	Status TaskStatus `json:"status"`

	// History holds the messages exchanged for this task, oldest first.
	History []*Message `json:"history,omitzero"`

	// Metadata carries transport-independent annotations.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// NewTask creates a task in the submitted state for the given inbound
// message. The message may be nil for detached invocations.
func NewTask(msg *Message) *Task {
	t := &Task{
		Kind: TaskKind,
		ID:   uuid.NewString(),
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	if msg != nil {
		t.ContextID = msg.ContextID
		t.History = []*Message{msg}
	}
	if t.ContextID == "" {
		t.ContextID = uuid.NewString()
	}
	return t
}
