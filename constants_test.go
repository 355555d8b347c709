// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"strings"
	"testing"
)

// TestProtocolPaths verifies the discovery and RPC paths keep the values
// other A2A implementations resolve against.
func TestProtocolPaths(t *testing.T) {
	t.Parallel()

	if AgentCardWellKnownPath != "/.well-known/agent.json" {
		t.Errorf("AgentCardWellKnownPath = %q, want %q", AgentCardWellKnownPath, "/.well-known/agent.json")
	}
	if DefaultRPCPath != "/" {
		t.Errorf("DefaultRPCPath = %q, want %q", DefaultRPCPath, "/")
	}

	baseURL := "https://agent.example.com"
	if got := baseURL + AgentCardWellKnownPath; got != "https://agent.example.com/.well-known/agent.json" {
		t.Errorf("Agent card URL = %q", got)
	}
}

func TestVersionFormat(t *testing.T) {
	t.Parallel()

	if Version == "" {
		t.Fatal("Version must not be empty")
	}
	if parts := strings.Split(Version, "."); len(parts) != 3 {
		t.Errorf("Version %q is not semver-shaped", Version)
	}
}
