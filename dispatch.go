// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/adapter/internal/telemetry"
)

// BackendRequest is the backend-native invocation payload produced by a
// translator.
type BackendRequest struct {
	// Payload is the backend-specific field mapping.
	Payload map[string]any

	// CorrelationID traces one logical call. It is minted once per call and
	// reused across every retry attempt.
	CorrelationID string
}

// BackendResponse is the backend-native result of one successful call.
type BackendResponse struct {
	// Payload is the decoded response mapping.
	Payload map[string]any

	// Raw is the undecoded response body, when the backend produced one.
	Raw []byte
}

// Caller executes a single raw attempt against a backend engine.
// Implementations report failures through the error taxonomy, returning
// [StatusError], [ConnectionError] or [TimeoutError], so the dispatch engine
// can classify them.
type Caller interface {
	// Call performs one attempt. The context carries the per-attempt time
	// budget.
	Call(ctx context.Context, req *BackendRequest) (*BackendResponse, error)

	// Close releases the caller's underlying client. Calls after Close fail
	// fast with [ErrClosed].
	Close() error
}

// correlationKey is the context key carrying a logical call's correlation id.
type correlationKey struct{}

// WithCorrelationID returns a context carrying a correlation id for the
// logical call. The dispatch engine reuses it instead of minting a fresh
// one, so a caller can tie dispatched work to its own tracking id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom extracts a correlation id installed by
// [WithCorrelationID].
func CorrelationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok
}

// Dispatcher executes logical calls through a [Caller] with bounded,
// strictly sequential retries.
//
// A logical call makes at most MaxRetries+1 attempts. Caller faults abort
// immediately; transient faults are retried after an exponential delay; a
// spent budget surfaces as a [ServerError] naming the attempt count. All
// suspension points honor context cancellation.
type Dispatcher struct {
	caller  Caller
	retry   RetryConfig
	timeout time.Duration

	logger *slog.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher around the given caller. A
// non-positive timeout falls back to [DefaultTimeout].
func NewDispatcher(caller Caller, retry RetryConfig, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		caller:  caller,
		retry:   retry.normalized(),
		timeout: timeout,
		logger:  slog.Default(),
		tracer:  otel.GetTracerProvider().Tracer("github.com/go-a2a/adapter"),
	}
}

// WithLogger sets the logger for the Dispatcher.
func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	d.logger = logger
	return d
}

// WithTracer sets the tracer for the Dispatcher.
func (d *Dispatcher) WithTracer(tracer trace.Tracer) *Dispatcher {
	d.tracer = tracer
	return d
}

// Retry returns the normalized retry configuration in effect.
func (d *Dispatcher) Retry() RetryConfig {
	return d.retry
}

// Timeout returns the per-attempt time budget in effect.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Dispatch executes one logical call, retrying transient faults within the
// configured budget. Attempts are strictly sequential; the correlation id,
// taken from the context or minted here, is the same for every attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}

	if req.CorrelationID == "" {
		if id, ok := CorrelationIDFrom(ctx); ok {
			req.CorrelationID = id
		} else {
			req.CorrelationID = uuid.NewString()
		}
	}

	ctx, span := d.tracer.Start(ctx, "adapter.dispatch",
		trace.WithAttributes(
			attribute.String("adapter.correlation_id", req.CorrelationID),
			attribute.Int("adapter.max_retries", d.retry.MaxRetries),
		))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.isClosed() {
			return nil, ErrClosed
		}

		start := time.Now()
		resp, err := d.callOnce(ctx, req)
		elapsed := time.Since(start)
		telemetry.RecordAttempt(ctx, elapsed, err == nil)

		if err == nil {
			d.logger.DebugContext(ctx, "backend call succeeded",
				slog.String("correlation_id", req.CorrelationID),
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", elapsed))
			return resp, nil
		}

		switch Classify(err) {
		case ClassClient:
			terminal := terminalClientError(err, req.CorrelationID, elapsed)
			d.logger.ErrorContext(ctx, "backend rejected call",
				slog.String("correlation_id", req.CorrelationID),
				slog.Int("attempt", attempt),
				slog.Any("error", terminal))
			span.RecordError(terminal)
			return nil, terminal

		case ClassTransient:
			lastErr = err
			d.logger.WarnContext(ctx, "backend call failed",
				slog.String("correlation_id", req.CorrelationID),
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", elapsed),
				slog.Any("error", err))
			if attempt < d.retry.MaxRetries {
				telemetry.RecordRetry(ctx)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(d.retry.BackoffFor(attempt)):
				}
			}

		default:
			span.RecordError(err)
			return nil, err
		}
	}

	exhausted := &ServerError{
		CorrelationID: req.CorrelationID,
		Attempts:      d.retry.MaxRetries + 1,
		Cause:         lastErr,
	}
	d.logger.ErrorContext(ctx, "backend call exhausted retries",
		slog.String("correlation_id", req.CorrelationID),
		slog.Int("attempts", exhausted.Attempts),
		slog.Any("error", lastErr))
	span.RecordError(exhausted)
	return nil, exhausted
}

// callOnce runs a single attempt under the per-attempt time budget.
func (d *Dispatcher) callOnce(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.caller.Call(ctx, req)
}

// isClosed reports whether Close has been called without a later Reopen.
func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close releases the underlying caller. Closing an already-closed
// dispatcher is a no-op, so the caller is released exactly once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	return d.caller.Close()
}

// Reopen re-arms a closed dispatcher. If the caller supports reopening, it
// is re-armed too; the next call acquires a fresh client.
func (d *Dispatcher) Reopen() {
	d.mu.Lock()
	d.closed = false
	d.mu.Unlock()

	if r, ok := d.caller.(interface{ Reopen() }); ok {
		r.Reopen()
	}
}
