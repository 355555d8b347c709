// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedCaller plays back a fixed sequence of per-attempt results. A nil
// entry, or running past the script, means success.
type scriptedCaller struct {
	mu     sync.Mutex
	script []error
	calls  int
	closes int
	ids    []string
}

func (c *scriptedCaller) Call(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	c.calls++
	c.ids = append(c.ids, req.CorrelationID)

	if idx < len(c.script) && c.script[idx] != nil {
		return nil, c.script[idx]
	}
	return &BackendResponse{Payload: map[string]any{"output": "ok"}}, nil
}

func (c *scriptedCaller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *scriptedCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestDispatcher(caller Caller, retry RetryConfig) *Dispatcher {
	return NewDispatcher(caller, retry, time.Second).
		WithLogger(slog.New(slog.DiscardHandler))
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(&scriptedCaller{}, RetryConfig{MaxRetries: -5}, 0)

	if got := d.Timeout(); got != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, got)
	}
	if got := d.Retry().MaxRetries; got != 0 {
		t.Errorf("Expected negative retries normalized to 0, got %d", got)
	}
}

func TestDispatchSuccess(t *testing.T) {
	caller := &scriptedCaller{}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 2, Backoff: time.Millisecond})

	req := &BackendRequest{Payload: map[string]any{"message": "hi"}}
	resp, err := d.Dispatch(t.Context(), req)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if resp.Payload["output"] != "ok" {
		t.Errorf("Expected output ok, got %v", resp.Payload["output"])
	}
	if caller.callCount() != 1 {
		t.Errorf("Expected 1 attempt, got %d", caller.callCount())
	}
	if req.CorrelationID == "" {
		t.Error("Expected a minted correlation ID")
	}
}

func TestDispatchClientFaultNotRetried(t *testing.T) {
	caller := &scriptedCaller{script: []error{
		&StatusError{Status: 404, Body: []byte("no such workflow")},
	}}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 3, Backoff: time.Millisecond})

	_, err := d.Dispatch(t.Context(), &BackendRequest{})
	if err == nil {
		t.Fatal("Expected an error")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("Expected *ClientError, got %T: %v", err, err)
	}
	if clientErr.Status != 404 {
		t.Errorf("Expected status 404, got %d", clientErr.Status)
	}
	if clientErr.Preview != "no such workflow" {
		t.Errorf("Expected preview %q, got %q", "no such workflow", clientErr.Preview)
	}
	if clientErr.CorrelationID == "" {
		t.Error("Expected the correlation ID on the terminal error")
	}
	if caller.callCount() != 1 {
		t.Errorf("Expected exactly 1 attempt for a client fault, got %d", caller.callCount())
	}
}

func TestDispatchRetriesTransientFaults(t *testing.T) {
	caller := &scriptedCaller{script: []error{
		&StatusError{Status: 503},
		&ConnectionError{Operation: "POST", URL: "http://backend", Err: errors.New("refused")},
		nil,
	}}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 2, Backoff: time.Millisecond})

	resp, err := d.Dispatch(t.Context(), &BackendRequest{})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if resp.Payload["output"] != "ok" {
		t.Errorf("Expected output ok, got %v", resp.Payload["output"])
	}
	if caller.callCount() != 3 {
		t.Errorf("Expected 3 attempts, got %d", caller.callCount())
	}
}

func TestDispatchExhaustsRetryBudget(t *testing.T) {
	cause := &StatusError{Status: 503}
	caller := &scriptedCaller{script: []error{cause, cause, cause}}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 2, Backoff: time.Millisecond})

	_, err := d.Dispatch(t.Context(), &BackendRequest{})
	if err == nil {
		t.Fatal("Expected an error")
	}

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected *ServerError, got %T: %v", err, err)
	}
	if serverErr.Attempts != 3 {
		t.Errorf("Expected 3 attempts reported, got %d", serverErr.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected the exhaustion error to unwrap to the final cause")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Expected the attempt count in the message, got %q", err.Error())
	}
	if caller.callCount() != 3 {
		t.Errorf("Expected 3 attempts, got %d", caller.callCount())
	}
}

func TestDispatchZeroRetriesStillReportsExhaustion(t *testing.T) {
	caller := &scriptedCaller{script: []error{&StatusError{Status: 500}}}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 0, Backoff: time.Millisecond})

	_, err := d.Dispatch(t.Context(), &BackendRequest{})

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected *ServerError, got %T: %v", err, err)
	}
	if serverErr.Attempts != 1 {
		t.Errorf("Expected 1 attempt reported, got %d", serverErr.Attempts)
	}
	if caller.callCount() != 1 {
		t.Errorf("Expected 1 attempt, got %d", caller.callCount())
	}
}

func TestDispatchUnknownErrorPropagates(t *testing.T) {
	odd := errors.New("something odd")
	caller := &scriptedCaller{script: []error{odd}}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 3, Backoff: time.Millisecond})

	_, err := d.Dispatch(t.Context(), &BackendRequest{})
	if !errors.Is(err, odd) {
		t.Errorf("Expected the unclassified error unchanged, got %v", err)
	}
	if caller.callCount() != 1 {
		t.Errorf("Expected 1 attempt for an unclassified error, got %d", caller.callCount())
	}
}

func TestDispatchCorrelationID(t *testing.T) {
	t.Run("stable across attempts", func(t *testing.T) {
		caller := &scriptedCaller{script: []error{&StatusError{Status: 503}, nil}}
		d := newTestDispatcher(caller, RetryConfig{MaxRetries: 1, Backoff: time.Millisecond})

		if _, err := d.Dispatch(t.Context(), &BackendRequest{}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if len(caller.ids) != 2 {
			t.Fatalf("Expected 2 attempts, got %d", len(caller.ids))
		}
		if caller.ids[0] != caller.ids[1] {
			t.Errorf("Expected the same correlation ID across attempts, got %q and %q",
				caller.ids[0], caller.ids[1])
		}
		if strings.Count(caller.ids[0], "-") != 4 {
			t.Errorf("Expected a UUID-formatted correlation ID, got %q", caller.ids[0])
		}
	})

	t.Run("taken from context", func(t *testing.T) {
		caller := &scriptedCaller{}
		d := newTestDispatcher(caller, RetryConfig{})

		ctx := WithCorrelationID(t.Context(), "caller-supplied")
		if _, err := d.Dispatch(ctx, &BackendRequest{}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if caller.ids[0] != "caller-supplied" {
			t.Errorf("Expected correlation ID %q, got %q", "caller-supplied", caller.ids[0])
		}
	})

	t.Run("request field wins over context", func(t *testing.T) {
		caller := &scriptedCaller{}
		d := newTestDispatcher(caller, RetryConfig{})

		ctx := WithCorrelationID(t.Context(), "from-context")
		req := &BackendRequest{CorrelationID: "from-request"}
		if _, err := d.Dispatch(ctx, req); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if caller.ids[0] != "from-request" {
			t.Errorf("Expected correlation ID %q, got %q", "from-request", caller.ids[0])
		}
	})

	t.Run("fresh per logical call", func(t *testing.T) {
		caller := &scriptedCaller{}
		d := newTestDispatcher(caller, RetryConfig{})

		if _, err := d.Dispatch(t.Context(), &BackendRequest{}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if _, err := d.Dispatch(t.Context(), &BackendRequest{}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if caller.ids[0] == caller.ids[1] {
			t.Errorf("Expected distinct correlation IDs per call, both were %q", caller.ids[0])
		}
	})
}

func TestDispatchCanceledBeforeCall(t *testing.T) {
	caller := &scriptedCaller{}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 2, Backoff: time.Millisecond})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := d.Dispatch(ctx, &BackendRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if caller.callCount() != 0 {
		t.Errorf("Expected no attempts after cancellation, got %d", caller.callCount())
	}
}

func TestDispatchCanceledDuringBackoff(t *testing.T) {
	caller := &scriptedCaller{script: []error{&StatusError{Status: 503}}}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 1, Backoff: time.Minute})

	ctx, cancel := context.WithCancel(t.Context())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()

	start := time.Now()
	_, err := d.Dispatch(ctx, &BackendRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Expected cancellation to interrupt the backoff sleep, waited %v", elapsed)
	}
	if caller.callCount() != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", caller.callCount())
	}
}

func TestDispatcherCloseAndReopen(t *testing.T) {
	caller := &scriptedCaller{}
	d := newTestDispatcher(caller, RetryConfig{})

	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := d.Dispatch(t.Context(), &BackendRequest{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if caller.callCount() != 0 {
		t.Errorf("Expected no attempts on a closed dispatcher, got %d", caller.callCount())
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if caller.closes != 1 {
		t.Errorf("Expected the caller released exactly once, got %d", caller.closes)
	}

	d.Reopen()
	if _, err := d.Dispatch(t.Context(), &BackendRequest{}); err != nil {
		t.Errorf("Expected Dispatch to succeed after Reopen, got %v", err)
	}
}

// sequencingCaller trips its overlap flag when two attempts of the same
// logical call are in flight at once.
type sequencingCaller struct {
	mu      sync.Mutex
	active  map[string]bool
	perID   map[string]int
	overlap bool
}

func (c *sequencingCaller) Call(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	c.mu.Lock()
	if c.active[req.CorrelationID] {
		c.overlap = true
	}
	c.active[req.CorrelationID] = true
	c.perID[req.CorrelationID]++
	n := c.perID[req.CorrelationID]
	c.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	c.mu.Lock()
	c.active[req.CorrelationID] = false
	c.mu.Unlock()

	if n < 3 {
		return nil, &StatusError{Status: 503}
	}
	return &BackendResponse{Payload: map[string]any{"output": "ok"}}, nil
}

func (c *sequencingCaller) Close() error { return nil }

func TestDispatchAttemptsAreSequentialPerCall(t *testing.T) {
	caller := &sequencingCaller{
		active: make(map[string]bool),
		perID:  make(map[string]int),
	}
	d := newTestDispatcher(caller, RetryConfig{MaxRetries: 2, Backoff: time.Millisecond})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Dispatch(t.Context(), &BackendRequest{}); err != nil {
				t.Errorf("Dispatch failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if caller.overlap {
		t.Error("Expected attempts of one logical call never to overlap")
	}
	if len(caller.perID) != 8 {
		t.Errorf("Expected 8 distinct logical calls, got %d", len(caller.perID))
	}
	for id, n := range caller.perID {
		if n != 3 {
			t.Errorf("Expected 3 attempts for call %s, got %d", id, n)
		}
	}
}
