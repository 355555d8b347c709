// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

// AgentProvider identifies the organization behind an agent.
type AgentProvider struct {
	// Organization is the provider name.
	Organization string `json:"organization"`

	// URL points at the provider's site.
	URL string `json:"url,omitzero"`
}

// AgentCapabilities declares the optional protocol features an agent
// supports.
type AgentCapabilities struct {
	// Streaming reports support for streamed partial results.
	Streaming bool `json:"streaming"`

	// PushNotifications reports support for server-initiated updates.
	PushNotifications bool `json:"pushNotifications"`

	// StateTransitionHistory reports whether task state history is kept.
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill advertises one capability of an agent.
type AgentSkill struct {
	// ID uniquely identifies the skill.
	ID string `json:"id"`

	// Name is the human-readable skill name.
	Name string `json:"name"`

	// Description explains what the skill does.
	Description string `json:"description,omitzero"`

	// Tags classify the skill.
	Tags []string `json:"tags,omitzero"`

	// Examples lists sample invocations.
	Examples []string `json:"examples,omitzero"`

	// InputModes lists accepted input content types.
	InputModes []string `json:"inputModes,omitzero"`

	// OutputModes lists produced output content types.
	OutputModes []string `json:"outputModes,omitzero"`
}

// AgentCard is the metadata document an agent publishes for discovery.
type AgentCard struct {
	// Name is the agent's display name.
	Name string `json:"name"`

	// Description explains what the agent does.
	Description string `json:"description,omitzero"`

	// URL is the endpoint the agent serves the protocol on.
	URL string `json:"url"`

	// Version is the agent version.
	Version string `json:"version"`

	// DocumentationURL points at the agent's documentation.
	DocumentationURL string `json:"documentationUrl,omitzero"`

	// Provider identifies the organization behind the agent.
	Provider *AgentProvider `json:"provider,omitzero"`

	// Capabilities declares the supported protocol features.
	Capabilities AgentCapabilities `json:"capabilities"`

	// DefaultInputModes lists the content types accepted by default.
	DefaultInputModes []string `json:"defaultInputModes,omitzero"`

	// DefaultOutputModes lists the content types produced by default.
	DefaultOutputModes []string `json:"defaultOutputModes,omitzero"`

	// Skills advertises the agent's capabilities.
	Skills []AgentSkill `json:"skills,omitzero"`
}

// Validate ensures the card carries the fields discovery requires.
func (c *AgentCard) Validate() error {
	if c == nil {
		return &ValidationError{Field: "card", Message: "agent card cannot be nil"}
	}
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "agent card must have a name"}
	}
	if c.URL == "" {
		return &ValidationError{Field: "url", Message: "agent card must have a URL"}
	}
	if c.Version == "" {
		return &ValidationError{Field: "version", Message: "agent card must have a version"}
	}
	return nil
}

// NewAgentCard creates a card with the default content modes filled in.
func NewAgentCard(name, description, url, version string) *AgentCard {
	return &AgentCard{
		Name:               name,
		Description:        description,
		URL:                url,
		Version:            version,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}
