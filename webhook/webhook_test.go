// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package webhook_test

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	gocmp "github.com/google/go-cmp/cmp"

	"github.com/go-a2a/adapter"
	"github.com/go-a2a/adapter/auth"
	"github.com/go-a2a/adapter/webhook"
)

// recordingBackend captures every request the adapter posts.
type recordingBackend struct {
	mu       sync.Mutex
	payloads []map[string]any
	headers  []http.Header
	respond  func(n int, w http.ResponseWriter)
}

func (b *recordingBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.UnmarshalRead(r.Body, &payload); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}

		b.mu.Lock()
		b.payloads = append(b.payloads, payload)
		b.headers = append(b.headers, r.Header.Clone())
		n := len(b.payloads)
		b.mu.Unlock()

		b.respond(n, w)
	}
}

func (b *recordingBackend) requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

func discardLogger() webhook.Option {
	return webhook.WithLogger(slog.New(slog.DiscardHandler))
}

func TestAdapterHandle(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":"workflow done"}`))
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(
		webhook.WithEndpoint(srv.URL),
		webhook.WithPayloadTemplate(map[string]any{"source": "a2a"}),
		webhook.WithMessageField("event"),
		webhook.WithCredentials(auth.NewBearer("secret-token", nil)),
		discardLogger(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	reply, err := a.Handle(t.Context(), &adapter.MessageSendParams{
		Message:   adapter.NewUserMessage("run it"),
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if got := reply.Text(); got != "workflow done" {
		t.Errorf("Expected reply %q, got %q", "workflow done", got)
	}
	if reply.Role != adapter.RoleAssistant {
		t.Errorf("Expected an assistant reply, got role %q", reply.Role)
	}

	wantPayload := map[string]any{
		"source": "a2a",
		"event":  "run it",
		"metadata": map[string]any{
			"session_id": "sess-1",
			"context":    nil,
		},
	}
	if diff := gocmp.Diff(wantPayload, backend.payloads[0]); diff != "" {
		t.Errorf("Unexpected posted payload (-want +got):\n%s", diff)
	}

	headers := backend.headers[0]
	if got := headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", got)
	}
	if got := headers.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Expected bearer authorization, got %q", got)
	}
	if headers.Get(webhook.HeaderRequestID) == "" {
		t.Error("Expected a correlation ID header")
	}
}

func TestAdapterClientFaultNotRetried(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(
		webhook.WithEndpoint(srv.URL),
		webhook.WithMaxRetries(3),
		webhook.WithBackoff(time.Millisecond),
		discardLogger(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	_, err = a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")})

	var clientErr *adapter.ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("Expected *ClientError, got %T: %v", err, err)
	}
	if clientErr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", clientErr.Status)
	}
	if clientErr.Preview != "unknown workflow\n" {
		t.Errorf("Expected the body preview, got %q", clientErr.Preview)
	}
	if backend.requests() != 1 {
		t.Errorf("Expected exactly 1 request for a client fault, got %d", backend.requests())
	}
}

func TestAdapterRetriesServerFaults(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		if n < 3 {
			http.Error(w, "workflow engine busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"output":"finally"}`))
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(
		webhook.WithEndpoint(srv.URL),
		webhook.WithMaxRetries(2),
		webhook.WithBackoff(time.Millisecond),
		discardLogger(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	reply, err := a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if got := reply.Text(); got != "finally" {
		t.Errorf("Expected reply %q, got %q", "finally", got)
	}
	if backend.requests() != 3 {
		t.Fatalf("Expected 3 requests, got %d", backend.requests())
	}

	first := backend.headers[0].Get(webhook.HeaderRequestID)
	for i, h := range backend.headers {
		if got := h.Get(webhook.HeaderRequestID); got != first {
			t.Errorf("Expected the same correlation ID on attempt %d, got %q and %q", i, first, got)
		}
	}
}

func TestAdapterExhaustsRetries(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		http.Error(w, "still busy", http.StatusServiceUnavailable)
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(
		webhook.WithEndpoint(srv.URL),
		webhook.WithMaxRetries(1),
		webhook.WithBackoff(time.Millisecond),
		discardLogger(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	_, err = a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")})

	var serverErr *adapter.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected *ServerError, got %T: %v", err, err)
	}
	if serverErr.Attempts != 2 {
		t.Errorf("Expected 2 attempts reported, got %d", serverErr.Attempts)
	}

	var statusErr *adapter.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected the final 503 as the cause, got %v", serverErr.Cause)
	}
	if backend.requests() != 2 {
		t.Errorf("Expected 2 requests, got %d", backend.requests())
	}
}

func TestAdapterHeaderPrecedence(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		w.Write([]byte(`{"output":"ok"}`))
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(
		webhook.WithEndpoint(srv.URL),
		webhook.WithCredentials(auth.NewBearer("static-token", nil)),
		webhook.WithHeaders(map[string]string{
			"Authorization":         "custom-scheme override",
			webhook.HeaderRequestID: "spoofed",
		}),
		discardLogger(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if _, err := a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	headers := backend.headers[0]
	if got := headers.Get("Authorization"); got != "custom-scheme override" {
		t.Errorf("Expected custom headers to override credentials, got %q", got)
	}
	if got := headers.Get(webhook.HeaderRequestID); got == "spoofed" {
		t.Error("Expected the correlation ID header to resist overriding")
	}
}

func TestAdapterAuthProvider(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		w.Write([]byte(`{"output":"ok"}`))
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(
		webhook.WithEndpoint(srv.URL),
		webhook.WithCredentials(auth.NewBearer("static-token", nil)),
		webhook.WithAuthProvider(auth.StaticProvider("rotated-token")),
		discardLogger(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if _, err := a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if got := backend.headers[0].Get("Authorization"); got != "Bearer rotated-token" {
		t.Errorf("Expected the provider token to win, got %q", got)
	}
}

func TestAdapterEmptyResponse(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNoContent)
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(webhook.WithEndpoint(srv.URL), discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	reply, err := a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if got := reply.Text(); got != "{}" {
		t.Errorf("Expected the empty payload rendered as {}, got %q", got)
	}
}

func TestAdapterCloseAndReopen(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		w.Write([]byte(`{"output":"ok"}`))
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(webhook.WithEndpoint(srv.URL), discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")})
	if !errors.Is(err, adapter.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if backend.requests() != 0 {
		t.Errorf("Expected no requests on a closed adapter, got %d", backend.requests())
	}

	a.Reopen()
	if _, err := a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")}); err != nil {
		t.Errorf("Expected Handle to succeed after Reopen, got %v", err)
	}
	if backend.requests() != 1 {
		t.Errorf("Expected 1 request after Reopen, got %d", backend.requests())
	}
}

func TestAdapterPerAttemptTimeout(t *testing.T) {
	backend := &recordingBackend{respond: func(n int, w http.ResponseWriter) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"output":"too late"}`))
	}}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	a, err := webhook.New(
		webhook.WithEndpoint(srv.URL),
		webhook.WithTimeout(50*time.Millisecond),
		webhook.WithMaxRetries(0),
		discardLogger(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	_, err = a.Handle(t.Context(), &adapter.MessageSendParams{Message: adapter.NewUserMessage("hi")})

	var serverErr *adapter.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected *ServerError, got %T: %v", err, err)
	}
	var timeoutErr *adapter.TimeoutError
	if !errors.As(serverErr.Cause, &timeoutErr) {
		t.Errorf("Expected a timeout cause, got %T: %v", serverErr.Cause, serverErr.Cause)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts []webhook.Option
	}{
		"missing endpoint": {
			opts: nil,
		},
		"empty endpoint": {
			opts: []webhook.Option{webhook.WithEndpoint("")},
		},
		"non-positive timeout": {
			opts: []webhook.Option{webhook.WithEndpoint("http://x"), webhook.WithTimeout(0)},
		},
		"negative backoff": {
			opts: []webhook.Option{webhook.WithEndpoint("http://x"), webhook.WithBackoff(-time.Second)},
		},
		"empty message field": {
			opts: []webhook.Option{webhook.WithEndpoint("http://x"), webhook.WithMessageField("")},
		},
		"expired credentials": {
			opts: []webhook.Option{
				webhook.WithEndpoint("http://x"),
				webhook.WithCredentials(auth.NewBearer("tok", timePtr(time.Now().Add(-time.Hour)))),
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := webhook.New(tt.opts...)
			if err == nil {
				t.Fatal("Expected an error")
			}
			var validationErr *adapter.ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("Expected *ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
