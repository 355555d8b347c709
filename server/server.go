// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes an adapter over the A2A JSON-RPC surface.
//
// The server publishes the agent card at the well-known path and serves
// message/send, tasks/get, tasks/cancel and tasks/delete on the RPC
// endpoint. Synchronous adapters reply with a message; adapters that report
// async support reply with a task handle tracked by the task manager.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/adapter"
	"github.com/go-a2a/adapter/task"
)

// Server serves an adapter over the A2A protocol.
type Server struct {
	// Host is the host to bind to.
	Host string

	// Port is the port to listen on.
	Port int

	// AgentCard is the agent card published for discovery.
	AgentCard *adapter.AgentCard

	// Backend is the adapter invocations are routed to.
	Backend adapter.Adapter

	// Tasks tracks asynchronous invocations.
	Tasks *task.Manager

	// Logger is the logger to use.
	Logger *slog.Logger

	// Tracer is the tracer to use.
	Tracer trace.Tracer

	httpServer *http.Server
}

// New creates a server for the given card and backend adapter.
func New(card *adapter.AgentCard, backend adapter.Adapter) (*Server, error) {
	if err := card.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, &adapter.ValidationError{Field: "backend", Message: "backend adapter cannot be nil"}
	}

	return &Server{
		Host:      "localhost",
		Port:      8080,
		AgentCard: card,
		Backend:   backend,
		Tasks:     task.NewManager(),
		Logger:    slog.Default(),
		Tracer:    otel.GetTracerProvider().Tracer("github.com/go-a2a/adapter/server"),
	}, nil
}

// WithHost sets the host to bind to.
func (s *Server) WithHost(host string) *Server {
	s.Host = host
	return s
}

// WithPort sets the port to listen on.
func (s *Server) WithPort(port int) *Server {
	s.Port = port
	return s
}

// WithTaskManager sets the task manager for asynchronous invocations.
func (s *Server) WithTaskManager(m *task.Manager) *Server {
	s.Tasks = m
	return s
}

// WithLogger sets the logger for the Server.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.Logger = logger
	return s
}

// WithTracer sets the tracer for the Server.
func (s *Server) WithTracer(tracer trace.Tracer) *Server {
	s.Tracer = tracer
	return s
}

// Handler returns the HTTP handler serving the protocol surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+adapter.AgentCardWellKnownPath, s.handleAgentCard)
	mux.HandleFunc("POST "+adapter.DefaultRPCPath, s.handleRPC)
	return mux
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	s.Logger.InfoContext(ctx, "starting A2A server",
		slog.String("address", addr),
		slog.String("agent", s.AgentCard.Name))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.ErrorContext(ctx, "server error", slog.Any("error", err))
		}
	}()

	return nil
}

// Stop shuts the server down and drains the task manager.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.Tasks != nil {
		errs = append(errs, s.Tasks.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// handleAgentCard serves the agent card.
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	data, err := sonic.ConfigFastest.Marshal(s.AgentCard)
	if err != nil {
		s.Logger.Error("failed to marshal agent card", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.Logger.Error("failed to write response", "error", err)
	}
}

// handleRPC is the main handler for the A2A JSON-RPC endpoint.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Tracer.Start(r.Context(), "adapter.server.handleRPC")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, nil, adapter.NewJSONParseError())
		return
	}

	var req adapter.JSONRPCRequest
	if err := sonic.ConfigFastest.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, adapter.NewJSONParseError())
		return
	}
	if req.JSONRPC != adapter.JSONRPCVersion || req.Method == "" {
		s.writeError(w, req.ID, adapter.NewInvalidRequestError())
		return
	}

	span.SetAttributes(attribute.String("a2a.method", req.Method))

	var result any
	switch req.Method {
	case adapter.MethodMessageSend:
		result, err = s.handleSendMessage(ctx, req.Params)
	case adapter.MethodTasksGet:
		result, err = s.handleGetTask(ctx, req.Params)
	case adapter.MethodTasksCancel:
		result, err = s.handleCancelTask(ctx, req.Params)
	case adapter.MethodTasksDelete:
		result, err = s.handleDeleteTask(ctx, req.Params)
	default:
		s.writeError(w, req.ID, adapter.NewMethodNotFoundError())
		return
	}

	if err != nil {
		s.Logger.ErrorContext(ctx, "method execution failed",
			slog.String("method", req.Method),
			slog.Any("error", err))
		s.writeError(w, req.ID, rpcErrorFor(err))
		return
	}

	s.writeResult(w, req.ID, result)
}

// handleSendMessage handles the message/send method. Synchronous backends
// reply with a message; asynchronous ones with a submitted task handle.
func (s *Server) handleSendMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	ctx, span := s.Tracer.Start(ctx, "adapter.server.handleSendMessage")
	defer span.End()

	var params adapter.MessageSendParams
	if err := sonic.ConfigFastest.Unmarshal(raw, &params); err != nil {
		return nil, errInvalidParams(err)
	}
	if err := params.Validate(); err != nil {
		return nil, errInvalidParams(err)
	}

	if s.Backend.SupportsAsyncTasks() && s.Tasks != nil {
		t, err := s.Tasks.Create(ctx, params.Latest(), func(ctx context.Context) (*adapter.Message, error) {
			return adapter.Handle(ctx, s.Backend, &params)
		})
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.String("a2a.task_id", t.ID))
		return t, nil
	}

	return adapter.Handle(ctx, s.Backend, &params)
}

// handleGetTask handles the tasks/get method.
func (s *Server) handleGetTask(ctx context.Context, raw json.RawMessage) (any, error) {
	ctx, span := s.Tracer.Start(ctx, "adapter.server.handleGetTask")
	defer span.End()

	var params adapter.TaskQueryParams
	if err := sonic.ConfigFastest.Unmarshal(raw, &params); err != nil {
		return nil, errInvalidParams(err)
	}
	span.SetAttributes(attribute.String("a2a.task_id", params.ID))

	return s.Tasks.Get(ctx, params.ID)
}

// handleCancelTask handles the tasks/cancel method.
func (s *Server) handleCancelTask(ctx context.Context, raw json.RawMessage) (any, error) {
	ctx, span := s.Tracer.Start(ctx, "adapter.server.handleCancelTask")
	defer span.End()

	var params adapter.TaskIDParams
	if err := sonic.ConfigFastest.Unmarshal(raw, &params); err != nil {
		return nil, errInvalidParams(err)
	}
	span.SetAttributes(attribute.String("a2a.task_id", params.ID))

	return s.Tasks.Cancel(ctx, params.ID)
}

// handleDeleteTask handles the tasks/delete method.
func (s *Server) handleDeleteTask(ctx context.Context, raw json.RawMessage) (any, error) {
	ctx, span := s.Tracer.Start(ctx, "adapter.server.handleDeleteTask")
	defer span.End()

	var params adapter.TaskIDParams
	if err := sonic.ConfigFastest.Unmarshal(raw, &params); err != nil {
		return nil, errInvalidParams(err)
	}
	span.SetAttributes(attribute.String("a2a.task_id", params.ID))

	if err := s.Tasks.Delete(ctx, params.ID); err != nil {
		return nil, err
	}
	return true, nil
}

// invalidParamsError tags a params decoding failure so it maps onto the
// right JSON-RPC code.
type invalidParamsError struct {
	err error
}

func errInvalidParams(err error) error {
	return &invalidParamsError{err: err}
}

// Error implements the error interface.
func (e *invalidParamsError) Error() string {
	return fmt.Sprintf("invalid params: %v", e.err)
}

// Unwrap returns the underlying failure.
func (e *invalidParamsError) Unwrap() error {
	return e.err
}

// rpcErrorFor maps a handler failure onto a JSON-RPC error object.
func rpcErrorFor(err error) *adapter.JSONRPCError {
	var paramsErr *invalidParamsError
	if errors.As(err, &paramsErr) {
		rpcErr := adapter.NewInvalidParamsError()
		rpcErr.Data = paramsErr.err.Error()
		return rpcErr
	}

	var a2aErr adapter.A2AError
	if errors.As(err, &a2aErr) {
		return &adapter.JSONRPCError{
			Code:    a2aErr.Code(),
			Message: a2aErr.Message(),
			Data:    a2aErr.Error(),
		}
	}

	rpcErr := adapter.NewInternalError()
	rpcErr.Data = err.Error()
	return rpcErr
}

// writeResult writes a JSON-RPC success response.
func (s *Server) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := adapter.JSONRPCResponse{
		JSONRPCMessage: adapter.NewJSONRPCMessage(id),
		Result:         result,
	}

	data, err := sonic.ConfigFastest.Marshal(resp)
	if err != nil {
		s.Logger.Error("failed to marshal response", "error", err)
		s.writeError(w, id, adapter.NewInternalError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.Logger.Error("failed to write response", "error", err)
	}
}

// writeError writes a JSON-RPC error response. The error travels in the
// JSON-RPC envelope, not the HTTP status.
func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *adapter.JSONRPCError) {
	resp := adapter.JSONRPCResponse{
		JSONRPCMessage: adapter.NewJSONRPCMessage(id),
		Error:          rpcErr,
	}

	data, err := sonic.ConfigFastest.Marshal(resp)
	if err != nil {
		s.Logger.Error("failed to marshal error response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.Logger.Error("failed to write error response", "error", err)
	}
}
