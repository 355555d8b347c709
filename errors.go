// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrClosed is returned by calls made after an adapter's backend client has
// been released. A closed adapter stays unusable until it is reopened.
var ErrClosed = errors.New("adapter is closed")

// Class is the retry classification of a failed call attempt.
type Class int

// Classification constants.
const (
	// ClassUnknown marks failures outside the taxonomy. They propagate
	// unchanged and are never retried.
	ClassUnknown Class = iota

	// ClassClient marks caller faults, the 4xx-equivalent range. They are
	// never retried.
	ClassClient

	// ClassTransient marks faults worth retrying: the 5xx-equivalent range
	// and transport failures that produced no response at all.
	ClassTransient

	// ClassServer marks transient faults whose retry budget is spent.
	ClassServer
)

// String returns the classification name.
func (c Class) String() string {
	switch c {
	case ClassClient:
		return "client"
	case ClassTransient:
		return "transient"
	case ClassServer:
		return "server"
	default:
		return "unknown"
	}
}

// Classify categorizes a failed call attempt for the dispatch engine.
//
// Status-bearing failures classify by their code range: 4xx is a caller
// fault, 5xx an upstream fault worth retrying. Transport failures that
// produced no response, connection errors and timeouts, are transient.
// Everything else, including cancellation of the calling context, is
// [ClassUnknown] and propagates as-is.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Status >= 400 && statusErr.Status < 500:
			return ClassClient
		case statusErr.Status >= 500:
			return ClassTransient
		}
		return ClassUnknown
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return ClassClient
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return ClassServer
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return ClassTransient
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return ClassTransient
	}
	if errors.Is(err, context.Canceled) {
		return ClassUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	return ClassUnknown
}

// previewLimit bounds the response-body excerpt attached to client faults.
const previewLimit = 512

// bodyPreview returns the leading bytes of a response body, capped at
// previewLimit.
func bodyPreview(body []byte) string {
	if len(body) > previewLimit {
		body = body[:previewLimit]
	}
	return string(body)
}

// StatusError reports a failed attempt through the backend's status code: an
// HTTP status for webhook backends, or an equivalent code a caller mapped a
// backend-native failure onto. The 4xx range marks caller faults, the 5xx
// range upstream faults.
type StatusError struct {
	// Status is the 4xx- or 5xx-equivalent code.
	Status int

	// Body is the response body, or the backend's diagnostic output.
	Body []byte

	// Reason is an optional backend-native detail, such as the subprocess
	// exit status.
	Reason string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("backend returned status %d (%s)", e.Status, e.Reason)
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// ClientError is the terminal form of a caller fault. The request was
// rejected by the backend and retrying cannot help.
type ClientError struct {
	// Status is the rejecting status code.
	Status int

	// CorrelationID identifies the logical call.
	CorrelationID string

	// Elapsed is the duration of the rejected attempt.
	Elapsed time.Duration

	// Preview is the leading portion of the rejection body.
	Preview string
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	return fmt.Sprintf("backend returned %d (req_id=%s, %dms): %s",
		e.Status, e.CorrelationID, e.Elapsed.Milliseconds(), e.Preview)
}

// ServerError is the terminal form of a transient fault whose retry budget
// is exhausted.
type ServerError struct {
	// CorrelationID identifies the logical call.
	CorrelationID string

	// Attempts is the total number of attempts made, including the first.
	Attempts int

	// Cause is the failure of the final attempt.
	Cause error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("backend call failed after %d attempts (req_id=%s): %v",
		e.Attempts, e.CorrelationID, e.Cause)
}

// Unwrap returns the final attempt's failure.
func (e *ServerError) Unwrap() error {
	return e.Cause
}

// terminalClientError shapes a client-class failure into its terminal
// [ClientError] form, preserving an already-terminal error unchanged.
func terminalClientError(err error, correlationID string, elapsed time.Duration) error {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return &ClientError{
			Status:        statusErr.Status,
			CorrelationID: correlationID,
			Elapsed:       elapsed,
			Preview:       bodyPreview(statusErr.Body),
		}
	}

	return &ClientError{
		CorrelationID: correlationID,
		Elapsed:       elapsed,
		Preview:       err.Error(),
	}
}

// ConnectionError represents a network-level failure to reach the backend.
type ConnectionError struct {
	// Operation is the operation that failed.
	Operation string

	// URL is the endpoint that could not be reached.
	URL string

	// Err is the underlying network error.
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s to %s: %v", e.Operation, e.URL, e.Err)
}

// Unwrap returns the underlying network error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError represents an attempt that exceeded its time budget.
type TimeoutError struct {
	// Operation is the operation that timed out.
	Operation string

	// Duration is the budget that was exceeded, when known.
	Duration time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Duration > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Operation, e.Duration)
	}
	return fmt.Sprintf("%s timed out", e.Operation)
}

// Timeout implements [net.Error].
func (e *TimeoutError) Timeout() bool {
	return true
}

// Temporary implements [net.Error].
func (e *TimeoutError) Temporary() bool {
	return true
}

// ValidationError represents invalid configuration or parameters.
type ValidationError struct {
	// Field is the offending field.
	Field string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// A2AError is an error that maps onto a JSON-RPC error code.
type A2AError interface {
	error

	// Code returns the JSON-RPC error code.
	Code() int

	// Message returns the canonical short message for the code.
	Message() string
}

// TaskNotFoundError indicates the referenced task does not exist.
type TaskNotFoundError struct {
	// TaskID is the unknown task id.
	TaskID string
}

// Error implements the error interface.
func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// Code implements [A2AError].
func (e *TaskNotFoundError) Code() int {
	return TaskNotFoundErrorCode
}

// Message implements [A2AError].
func (e *TaskNotFoundError) Message() string {
	return "Task not found"
}

// TaskNotCancelableError indicates the task is already terminal and cannot
// be canceled.
type TaskNotCancelableError struct {
	// TaskID is the task id.
	TaskID string

	// State is the terminal state the task is in.
	State TaskState
}

// Error implements the error interface.
func (e *TaskNotCancelableError) Error() string {
	return fmt.Sprintf("task %s cannot be canceled: already in state %s", e.TaskID, e.State)
}

// Code implements [A2AError].
func (e *TaskNotCancelableError) Code() int {
	return TaskNotCancelableErrorCode
}

// Message implements [A2AError].
func (e *TaskNotCancelableError) Message() string {
	return "Task cannot be canceled"
}

// TaskNotDeletableError indicates the task is still live and cannot be
// deleted.
type TaskNotDeletableError struct {
	// TaskID is the task id.
	TaskID string

	// State is the non-terminal state the task is in.
	State TaskState
}

// Error implements the error interface.
func (e *TaskNotDeletableError) Error() string {
	return fmt.Sprintf("task %s cannot be deleted: still in state %s", e.TaskID, e.State)
}

// Code implements [A2AError].
func (e *TaskNotDeletableError) Code() int {
	return TaskNotDeletableErrorCode
}

// Message implements [A2AError].
func (e *TaskNotDeletableError) Message() string {
	return "Task cannot be deleted"
}
