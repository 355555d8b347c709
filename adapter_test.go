// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"errors"
	"testing"
)

// stubAdapter scripts each stage of the Handle pipeline.
type stubAdapter struct {
	toErr   error
	callErr error
	fromErr error
	calls   []string
}

func (s *stubAdapter) ToBackend(ctx context.Context, params *MessageSendParams) (*BackendRequest, error) {
	s.calls = append(s.calls, "to")
	if s.toErr != nil {
		return nil, s.toErr
	}
	return &BackendRequest{Payload: Translator{}.ToBackend(params)}, nil
}

func (s *stubAdapter) CallBackend(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	s.calls = append(s.calls, "call")
	if s.callErr != nil {
		return nil, s.callErr
	}
	return &BackendResponse{Payload: map[string]any{"output": "echo: " + req.Payload["message"].(string)}}, nil
}

func (s *stubAdapter) FromBackend(ctx context.Context, resp *BackendResponse) (*Message, error) {
	s.calls = append(s.calls, "from")
	if s.fromErr != nil {
		return nil, s.fromErr
	}
	return Translator{}.FromBackend(resp.Payload), nil
}

func (s *stubAdapter) SupportsStreaming() bool  { return false }
func (s *stubAdapter) SupportsAsyncTasks() bool { return false }
func (s *stubAdapter) Close() error             { return nil }

func TestHandle(t *testing.T) {
	stub := &stubAdapter{}

	msg, err := Handle(t.Context(), stub, &MessageSendParams{Message: NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if got := msg.Text(); got != "echo: hi" {
		t.Errorf("Expected reply %q, got %q", "echo: hi", got)
	}
	if len(stub.calls) != 3 || stub.calls[0] != "to" || stub.calls[1] != "call" || stub.calls[2] != "from" {
		t.Errorf("Expected the translate-dispatch-translate order, got %v", stub.calls)
	}
}

func TestHandleStagesShortCircuit(t *testing.T) {
	tests := []struct {
		name      string
		adapter   *stubAdapter
		wantCalls int
	}{
		{
			name:      "translation failure",
			adapter:   &stubAdapter{toErr: errors.New("bad params")},
			wantCalls: 1,
		},
		{
			name:      "dispatch failure",
			adapter:   &stubAdapter{callErr: errors.New("backend down")},
			wantCalls: 2,
		},
		{
			name:      "response translation failure",
			adapter:   &stubAdapter{fromErr: errors.New("bad response")},
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Handle(t.Context(), tt.adapter, &MessageSendParams{Message: NewUserMessage("hi")})
			if err == nil {
				t.Fatal("Expected an error")
			}
			if len(tt.adapter.calls) != tt.wantCalls {
				t.Errorf("Expected %d stages to run, got %v", tt.wantCalls, tt.adapter.calls)
			}
		})
	}
}
