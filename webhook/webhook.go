// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package webhook adapts webhook-driven workflow engines, such as n8n, to
// the A2A protocol.
//
// Inbound messages are translated to a JSON payload and posted to the
// configured webhook URL through one pooled HTTP client. Failures are
// reported through the dispatch error taxonomy, so 4xx responses abort
// immediately while 5xx responses and transport faults are retried within
// the configured budget.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/adapter"
	"github.com/go-a2a/adapter/auth"
	"github.com/go-a2a/adapter/internal/pool"
)

// HeaderRequestID is the header carrying the correlation id of the logical
// call. It is set last and cannot be overridden by configured headers.
const HeaderRequestID = "X-Request-Id"

// options holds the configuration for an [Adapter].
type options struct {
	endpoint     string
	timeout      time.Duration
	maxRetries   int
	backoff      time.Duration
	template     map[string]any
	messageField string
	headers      map[string]string
	creds        *auth.Credentials
	provider     auth.Provider
	logger       *slog.Logger
	tracer       trace.Tracer
}

// defaultOptions returns the default adapter configuration.
func defaultOptions() *options {
	return &options{
		timeout:    adapter.DefaultTimeout,
		maxRetries: adapter.DefaultMaxRetries,
		backoff:    adapter.DefaultBackoff,
	}
}

// Option configures an [Adapter].
type Option func(*options) error

// WithEndpoint sets the webhook URL payloads are posted to.
func WithEndpoint(url string) Option {
	return func(o *options) error {
		if url == "" {
			return &adapter.ValidationError{Field: "endpoint", Message: "endpoint cannot be empty"}
		}
		o.endpoint = url
		return nil
	}
}

// WithTimeout sets the per-attempt time budget.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &adapter.ValidationError{Field: "timeout", Message: "timeout must be positive"}
		}
		o.timeout = d
		return nil
	}
}

// WithMaxRetries sets the retry budget after the first attempt. Negative
// values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(o *options) error {
		o.maxRetries = n
		return nil
	}
}

// WithBackoff sets the base delay before the first retry.
func WithBackoff(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return &adapter.ValidationError{Field: "backoff", Message: "backoff cannot be negative"}
		}
		o.backoff = d
		return nil
	}
}

// WithPayloadTemplate sets static fields merged into every outgoing
// payload. Template fields never override the generated ones.
func WithPayloadTemplate(template map[string]any) Option {
	return func(o *options) error {
		o.template = template
		return nil
	}
}

// WithMessageField overrides the payload key carrying the message text.
func WithMessageField(field string) Option {
	return func(o *options) error {
		if field == "" {
			return &adapter.ValidationError{Field: "message_field", Message: "message field cannot be empty"}
		}
		o.messageField = field
		return nil
	}
}

// WithHeaders sets custom headers added to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) error {
		o.headers = headers
		return nil
	}
}

// WithCredentials sets static credentials presented on every request.
func WithCredentials(creds *auth.Credentials) Option {
	return func(o *options) error {
		if creds != nil && !creds.IsValid() {
			return &adapter.ValidationError{Field: "credentials", Message: "credentials are invalid or expired"}
		}
		o.creds = creds
		return nil
	}
}

// WithAuthProvider sets a token provider consulted on every request. It
// takes precedence over static credentials.
func WithAuthProvider(provider auth.Provider) Option {
	return func(o *options) error {
		o.provider = provider
		return nil
	}
}

// WithLogger sets the logger for the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer sets the tracer for the adapter.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// Adapter forwards A2A messages to a webhook endpoint.
type Adapter struct {
	translator adapter.Translator
	dispatcher *adapter.Dispatcher
	caller     *httpCaller
	logger     *slog.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates a webhook adapter. The endpoint option is required.
func New(opts ...Option) (*Adapter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.endpoint == "" {
		return nil, &adapter.ValidationError{Field: "endpoint", Message: "endpoint is required"}
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	caller := &httpCaller{
		endpoint: o.endpoint,
		timeout:  o.timeout,
		headers:  o.headers,
		creds:    o.creds,
		provider: o.provider,
	}

	retry := adapter.RetryConfig{MaxRetries: o.maxRetries, Backoff: o.backoff}
	dispatcher := adapter.NewDispatcher(caller, retry, o.timeout).WithLogger(logger)
	if o.tracer != nil {
		dispatcher = dispatcher.WithTracer(o.tracer)
	}

	return &Adapter{
		translator: adapter.Translator{
			MessageField: o.messageField,
			Template:     o.template,
		},
		dispatcher: dispatcher,
		caller:     caller,
		logger:     logger,
	}, nil
}

// Endpoint returns the webhook URL payloads are posted to.
func (a *Adapter) Endpoint() string {
	return a.caller.endpoint
}

// ToBackend implements [adapter.Adapter].
func (a *Adapter) ToBackend(ctx context.Context, params *adapter.MessageSendParams) (*adapter.BackendRequest, error) {
	return &adapter.BackendRequest{Payload: a.translator.ToBackend(params)}, nil
}

// CallBackend implements [adapter.Adapter].
func (a *Adapter) CallBackend(ctx context.Context, req *adapter.BackendRequest) (*adapter.BackendResponse, error) {
	return a.dispatcher.Dispatch(ctx, req)
}

// FromBackend implements [adapter.Adapter].
func (a *Adapter) FromBackend(ctx context.Context, resp *adapter.BackendResponse) (*adapter.Message, error) {
	return a.translator.FromBackend(resp.Payload), nil
}

// SupportsStreaming implements [adapter.Adapter]. Webhook engines reply in
// one shot, so streaming is never supported.
func (a *Adapter) SupportsStreaming() bool {
	return false
}

// SupportsAsyncTasks implements [adapter.Adapter].
func (a *Adapter) SupportsAsyncTasks() bool {
	return false
}

// Handle processes one inbound message synchronously.
func (a *Adapter) Handle(ctx context.Context, params *adapter.MessageSendParams) (*adapter.Message, error) {
	return adapter.Handle(ctx, a, params)
}

// Close releases the pooled HTTP client. Further calls fail fast with
// [adapter.ErrClosed] until [Adapter.Reopen].
func (a *Adapter) Close() error {
	return a.dispatcher.Close()
}

// Reopen re-arms a closed adapter; the next call acquires a fresh pooled
// client.
func (a *Adapter) Reopen() {
	a.dispatcher.Reopen()
}

// httpCaller posts payloads to the webhook endpoint through one lazily
// acquired, pooled HTTP client.
type httpCaller struct {
	endpoint string
	timeout  time.Duration
	headers  map[string]string
	creds    *auth.Credentials
	provider auth.Provider

	mu     sync.Mutex
	client *http.Client
	closed bool
}

var _ adapter.Caller = (*httpCaller)(nil)

// getClient lazily acquires the pooled HTTP client.
func (c *httpCaller) getClient() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, adapter.ErrClosed
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c.client, nil
}

// Call implements [adapter.Caller].
func (c *httpCaller) Call(ctx context.Context, req *adapter.BackendRequest) (*adapter.BackendResponse, error) {
	client, err := c.getClient()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}
	if err := c.setHeaders(ctx, httpReq, req.CorrelationID); err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, &adapter.TimeoutError{Operation: "post", Duration: c.timeout}
		}
		return nil, &adapter.ConnectionError{Operation: "post", URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		if isTimeout(err) {
			return nil, &adapter.TimeoutError{Operation: "read response", Duration: c.timeout}
		}
		return nil, &adapter.ConnectionError{Operation: "read response", URL: c.endpoint, Err: err}
	}
	data := bytes.Clone(buf.Bytes())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &adapter.StatusError{Status: resp.StatusCode, Body: data}
	}

	var payload map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode webhook response: %w", err)
		}
	}
	if payload == nil {
		payload = map[string]any{}
	}

	return &adapter.BackendResponse{Payload: payload, Raw: data}, nil
}

// setHeaders applies the request headers in precedence order: content type,
// then credentials, then configured custom headers, then the correlation id
// last so it can never be overridden.
func (c *httpCaller) setHeaders(ctx context.Context, req *http.Request, correlationID string) error {
	req.Header.Set("Content-Type", "application/json")

	if c.creds != nil {
		header, err := c.creds.ToAuthHeader()
		if err != nil {
			return &adapter.ValidationError{Field: "credentials", Message: err.Error()}
		}
		req.Header.Set("Authorization", header)
	}
	if c.provider != nil {
		token, err := c.provider.Token(ctx)
		if err != nil {
			return fmt.Errorf("auth provider: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	req.Header.Set(HeaderRequestID, correlationID)
	return nil
}

// Close implements [adapter.Caller].
func (c *httpCaller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.client != nil {
		c.client.CloseIdleConnections()
		c.client = nil
	}
	return nil
}

// Reopen re-arms the caller; the next call acquires a fresh client.
func (c *httpCaller) Reopen() {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
}

// isTimeout reports whether a transport error was a time-budget overrun
// rather than a reachability failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
