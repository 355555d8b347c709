// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package adapter bridges the Agent2Agent (A2A) protocol to heterogeneous
// backend execution engines.
//
// The package provides the protocol data model, the error taxonomy with its
// retry classifier, and the dispatch engine that drives pooled backend
// clients with bounded, strictly sequential retries. Concrete backend
// integrations live in the subpackages: webhook for HTTP workflow engines,
// cli for subprocess agents, and runnable for in-process callables. The
// server subpackage exposes any adapter over the A2A JSON-RPC surface, and
// the task subpackage tracks long-running invocations.
package adapter

import (
	"context"
)

// Adapter is the uniform contract every backend integration satisfies. The
// protocol surface interacts with backends only through it.
type Adapter interface {
	// ToBackend translates inbound message parameters into the backend's
	// native request payload.
	ToBackend(ctx context.Context, params *MessageSendParams) (*BackendRequest, error)

	// CallBackend executes the translated request through the dispatch
	// engine, honoring the adapter's retry budget.
	CallBackend(ctx context.Context, req *BackendRequest) (*BackendResponse, error)

	// FromBackend translates a backend response into a single protocol
	// reply message.
	FromBackend(ctx context.Context, resp *BackendResponse) (*Message, error)

	// SupportsStreaming reports whether the backend can stream partial
	// results.
	SupportsStreaming() bool

	// SupportsAsyncTasks reports whether invocations should be tracked as
	// long-running tasks instead of completing synchronously.
	SupportsAsyncTasks() bool

	// Close releases the adapter's pooled backend client. A closed adapter
	// fails fast until it is explicitly reopened.
	Close() error
}

// Handle runs one synchronous invocation through an adapter: translate the
// params, dispatch the call, translate the response.
func Handle(ctx context.Context, a Adapter, params *MessageSendParams) (*Message, error) {
	req, err := a.ToBackend(ctx, params)
	if err != nil {
		return nil, err
	}

	resp, err := a.CallBackend(ctx, req)
	if err != nil {
		return nil, err
	}

	return a.FromBackend(ctx, resp)
}
