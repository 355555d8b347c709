// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package runnable adapts in-process callables to the A2A protocol.
//
// A runnable is anything that can be invoked with a payload map, such as a
// chain or agent object from an orchestration framework. The adapter feeds
// it the extracted message text under a configurable input key and wraps
// whatever it returns as the reply.
package runnable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/adapter"
)

// DefaultInputKey is the payload key carrying the message text when none is
// configured.
const DefaultInputKey = "input"

// Invoker is the minimal calling surface of an in-process runnable.
type Invoker interface {
	// Invoke runs the runnable once with the given input payload.
	Invoke(ctx context.Context, input map[string]any) (any, error)
}

// Func adapts a plain function to the runnable calling surface. It receives
// the extracted message text directly.
type Func func(ctx context.Context, input string) (string, error)

// options holds the configuration for an [Adapter].
type options struct {
	inputKey   string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

// defaultOptions returns the default adapter configuration. In-process
// invocations are not retried by default.
func defaultOptions() *options {
	return &options{
		inputKey:   DefaultInputKey,
		timeout:    adapter.DefaultTimeout,
		maxRetries: 0,
		backoff:    adapter.DefaultBackoff,
	}
}

// Option configures an [Adapter].
type Option func(*options) error

// WithInputKey overrides the payload key carrying the message text.
func WithInputKey(key string) Option {
	return func(o *options) error {
		if key == "" {
			return &adapter.ValidationError{Field: "input_key", Message: "input key cannot be empty"}
		}
		o.inputKey = key
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

// Adapter runs an in-process runnable as the backend.
type Adapter struct {
	translator adapter.Translator
	dispatcher *adapter.Dispatcher
	caller     *runnableCaller
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter around the given runnable.
func New(invoker Invoker, opts ...Option) (*Adapter, error) {
	if invoker == nil {
		return nil, &adapter.ValidationError{Field: "invoker", Message: "invoker cannot be nil"}
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	caller := &runnableCaller{invoker: invoker}

	retry := adapter.RetryConfig{MaxRetries: o.maxRetries, Backoff: o.backoff}
	dispatcher := adapter.NewDispatcher(caller, retry, o.timeout).WithLogger(logger)
	if o.tracer != nil {
		dispatcher = dispatcher.WithTracer(o.tracer)
	}

	return &Adapter{
		translator: adapter.Translator{MessageField: o.inputKey},
		dispatcher: dispatcher,
		caller:     caller,
	}, nil
}

// NewFunc creates an adapter around a plain function, wiring the configured
// input key through to it.
func NewFunc(fn Func, opts ...Option) (*Adapter, error) {
	if fn == nil {
		return nil, &adapter.ValidationError{Field: "fn", Message: "fn cannot be nil"}
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	invoker := &funcInvoker{fn: fn, key: o.inputKey}
	return New(invoker, opts...)
}

// funcInvoker adapts a [Func] to the [Invoker] surface.
type funcInvoker struct {
	fn  Func
	key string
}

// Invoke implements [Invoker].
func (f *funcInvoker) Invoke(ctx context.Context, input map[string]any) (any, error) {
	text, _ := input[f.key].(string)
	return f.fn(ctx, text)
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

// SupportsStreaming implements [adapter.Adapter].
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

// Close marks the adapter closed. Further calls fail fast with
// [adapter.ErrClosed] until [Adapter.Reopen].
func (a *Adapter) Close() error {
	return a.dispatcher.Close()
}

// Reopen re-arms a closed adapter.
func (a *Adapter) Reopen() {
	a.dispatcher.Reopen()
}

// runnableCaller invokes the runnable once per attempt.
type runnableCaller struct {
	invoker Invoker

	mu     sync.Mutex
	closed bool
}

var _ adapter.Caller = (*runnableCaller)(nil)

// Call implements [adapter.Caller].
func (c *runnableCaller) Call(ctx context.Context, req *adapter.BackendRequest) (*adapter.BackendResponse, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, adapter.ErrClosed
	}

	out, err := c.invoker.Invoke(ctx, req.Payload)
	if err != nil {
		var clientErr *adapter.ClientError
		if errors.As(err, &clientErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &adapter.StatusError{Status: 500, Reason: err.Error()}
	}

	switch v := out.(type) {
	case map[string]any:
		return &adapter.BackendResponse{Payload: v}, nil
	case string:
		return &adapter.BackendResponse{Payload: map[string]any{"output": v}}, nil
	default:
		return &adapter.BackendResponse{Payload: map[string]any{"output": fmt.Sprint(v)}}, nil
	}
}

// Close implements [adapter.Caller].
func (c *runnableCaller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Reopen re-arms the caller.
func (c *runnableCaller) Reopen() {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
}
