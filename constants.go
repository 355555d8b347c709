// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

// A2A protocol path constants.
const (
	// AgentCardWellKnownPath is the standard path for retrieving an agent's
	// public AgentCard. It follows the well-known URI pattern and is used by
	// card resolvers to fetch agent cards from remote agents.
	//
	// Example usage: https://agent.example.com/.well-known/agent.json
	AgentCardWellKnownPath = "/.well-known/agent.json"

	// DefaultRPCPath is the default URL path for the A2A JSON-RPC endpoint.
	// It handles POST requests for JSON-RPC communication between agents.
	DefaultRPCPath = "/"
)

// Version is the version of this module.
const Version = "0.1.0"
