// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"testing"
	"time"
)

func TestTaskStateIsTerminal(t *testing.T) {
	tests := []struct {
		state TaskState
		want  bool
	}{
		{TaskStateSubmitted, false},
		{TaskStateWorking, false},
		{TaskStateInputRequired, false},
		{TaskStateCompleted, true},
		{TaskStateFailed, true},
		{TaskStateCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("Expected IsTerminal()=%v for %q, got %v", tt.want, tt.state, got)
			}
		})
	}
}

func TestNewTask(t *testing.T) {
	msg := NewUserMessage("do the thing")
	msg.ContextID = "ctx-1"

	task := NewTask(msg)

	if task.Kind != TaskKind {
		t.Errorf("Expected kind %q, got %q", TaskKind, task.Kind)
	}
	if task.ID == "" {
		t.Error("Expected a generated task ID")
	}
	if task.ContextID != "ctx-1" {
		t.Errorf("Expected context ID %q, got %q", "ctx-1", task.ContextID)
	}
	if task.Status.State != TaskStateSubmitted {
		t.Errorf("Expected state %q, got %q", TaskStateSubmitted, task.Status.State)
	}
	if task.Status.Timestamp == "" {
		t.Error("Expected a status timestamp")
	}
	if _, err := time.Parse(time.RFC3339, task.Status.Timestamp); err != nil {
		t.Errorf("Expected RFC 3339 timestamp, got %q: %v", task.Status.Timestamp, err)
	}
	if len(task.History) != 1 || task.History[0] != msg {
		t.Errorf("Expected history [msg], got %v", task.History)
	}
}

func TestNewTaskDetached(t *testing.T) {
	task := NewTask(nil)

	if task.ContextID == "" {
		t.Error("Expected a generated context ID for a detached task")
	}
	if len(task.History) != 0 {
		t.Errorf("Expected empty history, got %d messages", len(task.History))
	}
}

func TestNewTaskGeneratesContextID(t *testing.T) {
	msg := NewUserMessage("no context")

	task := NewTask(msg)
	if task.ContextID == "" {
		t.Error("Expected a generated context ID when the message has none")
	}
}
