// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"encoding/json"
)

// A2A RPC method names.
const (
	// MethodMessageSend is the method name for sending a message.
	MethodMessageSend = "message/send"
	// MethodTasksGet is the method name for getting a task.
	MethodTasksGet = "tasks/get"
	// MethodTasksCancel is the method name for canceling a task.
	MethodTasksCancel = "tasks/cancel"
	// MethodTasksDelete is the method name for deleting a terminal task.
	MethodTasksDelete = "tasks/delete"
)

// JSONRPCVersion is the protocol version carried by every message.
const JSONRPCVersion = "2.0"

// JSONRPCMessage is the base structure for all JSON-RPC 2.0 messages.
type JSONRPCMessage struct {
	// JSONRPC version, always "2.0".
	JSONRPC string `json:"jsonrpc"`
	// ID is a unique identifier for the request/response correlation.
	// It is kept raw so string, number and null ids round-trip untouched.
	ID json.RawMessage `json:"id,omitempty"`
}

// NewJSONRPCMessage creates a new [JSONRPCMessage] echoing the given raw id.
func NewJSONRPCMessage(id json.RawMessage) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
	}
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPCMessage

	// Method identifies the operation to perform.
	Method string `json:"method"`
	// Params contains parameters for the method.
	Params json.RawMessage `json:"params,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	// Code is the error code.
	Code int `json:"code"`
	// Message is a short description of the error.
	Message string `json:"message"`
	// Data contains optional additional error details.
	Data any `json:"data,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPCMessage

	// Result contains the successful result data.
	// Mutually exclusive with Error.
	Result any `json:"result,omitempty"`
	// Error contains an error object if the request failed.
	// Mutually exclusive with Result.
	Error *JSONRPCError `json:"error,omitempty"`
}

// TaskQueryParams are the parameters of a tasks/get call.
type TaskQueryParams struct {
	// ID is the task id to look up.
	ID string `json:"id"`
}

// TaskIDParams are the parameters of tasks/cancel and tasks/delete calls.
type TaskIDParams struct {
	// ID is the task id to operate on.
	ID string `json:"id"`
}

// JSON-RPC standard error codes, plus the A2A-specific range.
const (
	// JSONParseErrorCode indicates invalid JSON was received.
	JSONParseErrorCode = -32700
	// InvalidRequestErrorCode indicates the request object is not valid.
	InvalidRequestErrorCode = -32600
	// MethodNotFoundErrorCode indicates the method does not exist.
	MethodNotFoundErrorCode = -32601
	// InvalidParamsErrorCode indicates invalid method parameters.
	InvalidParamsErrorCode = -32602
	// InternalErrorCode indicates an internal JSON-RPC error.
	InternalErrorCode = -32603

	// TaskNotFoundErrorCode indicates the referenced task does not exist.
	TaskNotFoundErrorCode = -32001
	// TaskNotCancelableErrorCode indicates the task is already terminal.
	TaskNotCancelableErrorCode = -32002
	// TaskNotDeletableErrorCode indicates the task is not terminal yet.
	TaskNotDeletableErrorCode = -32006
)

// NewJSONParseError creates a new [JSONRPCError] for JSON parse failures.
func NewJSONParseError() *JSONRPCError {
	return &JSONRPCError{
		Code:    JSONParseErrorCode,
		Message: "Invalid JSON payload",
	}
}

// NewInvalidRequestError creates a new [JSONRPCError] for malformed requests.
func NewInvalidRequestError() *JSONRPCError {
	return &JSONRPCError{
		Code:    InvalidRequestErrorCode,
		Message: "Request payload validation error",
	}
}

// NewMethodNotFoundError creates a new [JSONRPCError] for unknown methods.
func NewMethodNotFoundError() *JSONRPCError {
	return &JSONRPCError{
		Code:    MethodNotFoundErrorCode,
		Message: "Method not found",
	}
}

// NewInvalidParamsError creates a new [JSONRPCError] for invalid parameters.
func NewInvalidParamsError() *JSONRPCError {
	return &JSONRPCError{
		Code:    InvalidParamsErrorCode,
		Message: "Invalid parameters",
	}
}

// NewInternalError creates a new [JSONRPCError] for internal failures.
func NewInternalError() *JSONRPCError {
	return &JSONRPCError{
		Code:    InternalErrorCode,
		Message: "Internal error",
	}
}

// NewTaskNotFoundError creates a new [JSONRPCError] for unknown tasks.
func NewTaskNotFoundError() *JSONRPCError {
	return &JSONRPCError{
		Code:    TaskNotFoundErrorCode,
		Message: "Task not found",
	}
}

// NewTaskNotCancelableError creates a new [JSONRPCError] for cancel calls
// against terminal tasks.
func NewTaskNotCancelableError() *JSONRPCError {
	return &JSONRPCError{
		Code:    TaskNotCancelableErrorCode,
		Message: "Task cannot be canceled",
	}
}

// NewTaskNotDeletableError creates a new [JSONRPCError] for delete calls
// against live tasks.
func NewTaskNotDeletableError() *JSONRPCError {
	return &JSONRPCError{
		Code:    TaskNotDeletableErrorCode,
		Message: "Task cannot be deleted",
	}
}
