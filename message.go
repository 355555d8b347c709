// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
)

// Role identifies the author of a [Message].
type Role string

// Role constants for message authors.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"

	// RoleAgent is the A2A wire spelling for agent-authored messages. It is
	// accepted on input and treated the same as [RoleAssistant].
	RoleAgent Role = "agent"
)

// Part kind discriminators.
const (
	PartKindText = "text"
	PartKindData = "data"
)

// MessageKind is the wire discriminator for [Message] results.
const MessageKind = "message"

// Part is one content segment of a [Message].
type Part struct {
	// Kind discriminates the part payload, "text" or "data".
	Kind string `json:"kind"`

	// Text carries the payload of a text part.
	Text string `json:"text,omitzero"`

	// Data carries the payload of a structured part.
	Data map[string]any `json:"data,omitzero"`
}

// UnmarshalJSON implements [json.Unmarshaler].
//
// Both the "kind" discriminator and its legacy "type" spelling are accepted.
func (p *Part) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind string         `json:"kind"`
		Type string         `json:"type"`
		Text string         `json:"text"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Kind = raw.Kind
	if p.Kind == "" {
		p.Kind = raw.Type
	}
	if p.Kind == "" {
		if raw.Data != nil {
			p.Kind = PartKindData
		} else {
			p.Kind = PartKindText
		}
	}
	p.Text = raw.Text
	p.Data = raw.Data

	return nil
}

// NewTextPart creates a text [Part].
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// NewDataPart creates a structured data [Part].
func NewDataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// Message is a protocol message exchanged between a client and an agent.
type Message struct {
	// Kind is the wire discriminator, always [MessageKind] on output.
	Kind string `json:"kind,omitzero"`

	// Role identifies the message author.
	Role Role `json:"role"`

	// Parts holds the message content segments in order.
	Parts []Part `json:"parts"`

	// MessageID uniquely identifies the message.
	MessageID string `json:"messageId,omitzero"`

	// ContextID groups messages belonging to one conversation.
	ContextID string `json:"contextId,omitzero"`

	// Metadata carries transport-independent annotations.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// UnmarshalJSON implements [json.Unmarshaler].
//
// Two payload dialects are accepted: the current one with a "parts" array,
// and the legacy one with a "content" key holding either a part array or a
// bare string.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind      string         `json:"kind"`
		Role      Role           `json:"role"`
		Parts     []Part         `json:"parts"`
		MessageID string         `json:"messageId"`
		ContextID string         `json:"contextId"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Kind = raw.Kind
	m.Role = raw.Role
	m.Parts = raw.Parts
	m.MessageID = raw.MessageID
	m.ContextID = raw.ContextID
	m.Metadata = raw.Metadata

	if m.Parts == nil {
		var legacy struct {
			Content []Part `json:"content"`
		}
		if err := json.Unmarshal(data, &legacy); err == nil {
			m.Parts = legacy.Content
		} else {
			var single struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(data, &single); err == nil && single.Content != "" {
				m.Parts = []Part{NewTextPart(single.Content)}
			}
		}
	}

	return nil
}

// Text returns the plain-text rendering of the message: the trimmed text of
// every non-empty text part, joined by single spaces in part order.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}

	var texts []string
	for _, p := range m.Parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}

// IsUser reports whether the message was authored by the end user.
func (m *Message) IsUser() bool {
	return m != nil && m.Role == RoleUser
}

// Validate ensures the message is well-formed.
func (m *Message) Validate() error {
	if m == nil {
		return &ValidationError{Field: "message", Message: "message cannot be nil"}
	}
	if m.Role == "" {
		return &ValidationError{Field: "role", Message: "role cannot be empty"}
	}
	if len(m.Parts) == 0 {
		return &ValidationError{Field: "parts", Message: "message must contain at least one part"}
	}
	return nil
}

// NewUserMessage creates a user message with a single text part.
func NewUserMessage(text string) *Message {
	return &Message{
		Kind:      MessageKind,
		Role:      RoleUser,
		MessageID: uuid.NewString(),
		Parts:     []Part{NewTextPart(text)},
	}
}

// NewAssistantMessage creates an assistant message with a single text part.
func NewAssistantMessage(text string) *Message {
	return &Message{
		Kind:      MessageKind,
		Role:      RoleAssistant,
		MessageID: uuid.NewString(),
		Parts:     []Part{NewTextPart(text)},
	}
}

// MessageSendParams are the parameters of a message/send call. Either a
// single message or a full conversation history may be supplied.
type MessageSendParams struct {
	// Message is the single inbound message form.
	Message *Message `json:"message,omitzero"`

	// Messages is the conversation history form, oldest first.
	Messages []*Message `json:"messages,omitzero"`

	// SessionID correlates the call with a backend session, if any.
	SessionID string `json:"session_id,omitzero"`

	// Context carries caller-supplied data passed through to the backend.
	Context map[string]any `json:"context,omitzero"`
}

// History returns the conversation history in order, oldest first. The
// multi-message form takes precedence over the single-message form.
func (p *MessageSendParams) History() []*Message {
	if p == nil {
		return nil
	}
	if len(p.Messages) > 0 {
		return p.Messages
	}
	if p.Message != nil {
		return []*Message{p.Message}
	}
	return nil
}

// Latest returns the most recent message of the history, or nil when the
// params carry no messages.
func (p *MessageSendParams) Latest() *Message {
	history := p.History()
	if len(history) == 0 {
		return nil
	}
	return history[len(history)-1]
}

// Validate ensures the params carry at least one message.
func (p *MessageSendParams) Validate() error {
	if p == nil || (p.Message == nil && len(p.Messages) == 0) {
		return &ValidationError{Field: "message", Message: "message or messages is required"}
	}
	return nil
}
