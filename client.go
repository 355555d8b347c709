// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/adapter/internal/pool"
)

const (
	defaultClientTimeout = 30 * time.Second
	userAgent            = "go-a2a/adapter " + Version
)

// Client is a client for the A2A protocol. It talks JSON-RPC to a remote
// agent's endpoint.
type Client struct {
	// HTTPClient is the HTTP client used for requests.
	HTTPClient *http.Client

	// URL is the URL of the remote agent's RPC endpoint.
	URL string

	// Logger for logging operations.
	Logger *slog.Logger

	// Tracer for OpenTelemetry tracing.
	Tracer trace.Tracer
}

// NewClient creates a new Client for the given RPC endpoint.
func NewClient(url string) (*Client, error) {
	if url == "" {
		return nil, &ValidationError{Field: "url", Message: "url must be provided"}
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: defaultClientTimeout,
		},
		URL:    url,
		Logger: slog.Default(),
		Tracer: otel.GetTracerProvider().Tracer("github.com/go-a2a/adapter"),
	}, nil
}

// WithHTTPClient sets the HTTP client for the Client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.HTTPClient = httpClient
	return c
}

// WithLogger sets the logger for the Client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.Logger = logger
	return c
}

// WithTracer sets the tracer for the Client.
func (c *Client) WithTracer(tracer trace.Tracer) *Client {
	c.Tracer = tracer
	return c
}

// makeRequest creates a JSON-RPC request from a method and params.
func makeRequest(method string, params any, id string) ([]byte, error) {
	req := struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params"`
		ID      string `json:"id,omitempty"`
	}{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	}

	return sonic.ConfigFastest.Marshal(req)
}

// sendRequest posts one JSON-RPC request and returns the raw result bytes,
// with RPC-level errors already mapped onto the error taxonomy.
func (c *Client) sendRequest(ctx context.Context, method string, params any) ([]byte, error) {
	id := uuid.NewString()

	ctx, span := c.Tracer.Start(ctx, "adapter.client.sendRequest",
		trace.WithAttributes(
			attribute.String("a2a.method", method),
			attribute.String("a2a.request_id", id),
		))
	defer span.End()

	data, err := makeRequest(method, params, id)
	if err != nil {
		c.Logger.ErrorContext(ctx, "failed to create request", "error", err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(data))
	if err != nil {
		c.Logger.ErrorContext(ctx, "failed to create HTTP request", "error", err)
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.ErrorContext(ctx, "failed to send HTTP request", "error", err)
		return nil, &ConnectionError{Operation: "post", URL: c.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.Logger.ErrorContext(ctx, "HTTP request failed", "status", resp.Status)
		return nil, fmt.Errorf("HTTP request failed with status: %s", resp.Status)
	}

	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		c.Logger.ErrorContext(ctx, "failed to read response body", "error", err)
		return nil, &ConnectionError{Operation: "read response", URL: c.URL, Err: err}
	}
	body := bytes.Clone(buf.Bytes())

	var envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *JSONRPCError   `json:"error"`
	}
	if err := sonic.ConfigFastest.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if envelope.Error != nil {
		return nil, rpcError(envelope.Error)
	}

	return envelope.Result, nil
}

// rpcError maps a JSON-RPC error object onto the error taxonomy.
func rpcError(rpcErr *JSONRPCError) error {
	detail, _ := rpcErr.Data.(string)
	switch rpcErr.Code {
	case TaskNotFoundErrorCode:
		return &TaskNotFoundError{TaskID: detail}
	case TaskNotCancelableErrorCode:
		return &TaskNotCancelableError{TaskID: detail}
	case TaskNotDeletableErrorCode:
		return &TaskNotDeletableError{TaskID: detail}
	default:
		return fmt.Errorf("RPC error: [%d] %s", rpcErr.Code, rpcErr.Message)
	}
}

// SendMessageResult is the union result of a message/send call: a direct
// reply message, or a task handle when the agent runs asynchronously.
type SendMessageResult struct {
	// Message is the direct reply, when the agent completed synchronously.
	Message *Message

	// Task is the tracking handle, when the agent runs asynchronously.
	Task *Task
}

// SendMessage sends a message to the remote agent.
func (c *Client) SendMessage(ctx context.Context, params *MessageSendParams) (*SendMessageResult, error) {
	ctx, span := c.Tracer.Start(ctx, "adapter.client.SendMessage")
	defer span.End()

	if err := params.Validate(); err != nil {
		return nil, err
	}

	result, err := c.sendRequest(ctx, MethodMessageSend, params)
	if err != nil {
		return nil, err
	}

	var kind struct {
		Kind string `json:"kind"`
	}
	if err := sonic.ConfigFastest.Unmarshal(result, &kind); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	switch kind.Kind {
	case TaskKind:
		var task Task
		if err := sonic.ConfigFastest.Unmarshal(result, &task); err != nil {
			return nil, fmt.Errorf("failed to parse task result: %w", err)
		}
		span.SetAttributes(attribute.String("a2a.task_id", task.ID))
		return &SendMessageResult{Task: &task}, nil

	default:
		var msg Message
		if err := sonic.ConfigFastest.Unmarshal(result, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse message result: %w", err)
		}
		return &SendMessageResult{Message: &msg}, nil
	}
}

// GetTask retrieves the current state of a task from the remote agent.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	ctx, span := c.Tracer.Start(ctx, "adapter.client.GetTask",
		trace.WithAttributes(attribute.String("a2a.task_id", taskID)))
	defer span.End()

	result, err := c.sendRequest(ctx, MethodTasksGet, TaskQueryParams{ID: taskID})
	if err != nil {
		return nil, err
	}

	var task Task
	if err := sonic.ConfigFastest.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task result: %w", err)
	}
	return &task, nil
}

// CancelTask requests cooperative cancellation of a live task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	ctx, span := c.Tracer.Start(ctx, "adapter.client.CancelTask",
		trace.WithAttributes(attribute.String("a2a.task_id", taskID)))
	defer span.End()

	result, err := c.sendRequest(ctx, MethodTasksCancel, TaskIDParams{ID: taskID})
	if err != nil {
		return nil, err
	}

	var task Task
	if err := sonic.ConfigFastest.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task result: %w", err)
	}
	return &task, nil
}

// DeleteTask removes a terminal task from the remote agent.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	ctx, span := c.Tracer.Start(ctx, "adapter.client.DeleteTask",
		trace.WithAttributes(attribute.String("a2a.task_id", taskID)))
	defer span.End()

	_, err := c.sendRequest(ctx, MethodTasksDelete, TaskIDParams{ID: taskID})
	return err
}

// WaitForTask polls the remote agent until the task reaches a terminal
// state, the interval elapsing between polls.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval time.Duration) (*Task, error) {
	if interval <= 0 {
		interval = time.Second
	}

	for {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Status.State.IsTerminal() {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// FetchAgentCard retrieves the remote agent's card from the well-known
// path of the given base URL.
func (c *Client) FetchAgentCard(ctx context.Context, baseURL string) (*AgentCard, error) {
	ctx, span := c.Tracer.Start(ctx, "adapter.client.FetchAgentCard")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+AgentCardWellKnownPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Operation: "get agent card", URL: baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status: %s", resp.Status)
	}

	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, &ConnectionError{Operation: "read agent card", URL: baseURL, Err: err}
	}

	var card AgentCard
	if err := sonic.ConfigFastest.Unmarshal(buf.Bytes(), &card); err != nil {
		return nil, fmt.Errorf("failed to parse agent card: %w", err)
	}
	return &card, nil
}
