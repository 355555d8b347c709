// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"fmt"

	jsonv1 "github.com/go-json-experiment/json/v1"
)

// DefaultMessageField is the payload key carrying the extracted message text
// when none is configured.
const DefaultMessageField = "message"

// responseKeys is the ordered priority of conventional reply fields.
var responseKeys = []string{"output", "result", "message"}

// Translator maps protocol messages to backend payloads and back.
//
// The zero value is usable and produces payloads keyed by
// [DefaultMessageField] with no template fields.
type Translator struct {
	// MessageField is the payload key carrying the extracted text.
	MessageField string

	// Template holds static fields merged into every outgoing payload.
	// Template fields never override the generated ones.
	Template map[string]any
}

// ToBackend builds the backend-native payload for the given params.
//
// The text of the most recent user-authored message is placed under the
// configured message field; messages authored by other roles are skipped.
// The payload always carries a "metadata" object with the session id and
// caller context, null when absent.
func (t Translator) ToBackend(params *MessageSendParams) map[string]any {
	text := ""
	history := params.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsUser() {
			text = history[i].Text()
			break
		}
	}

	field := t.MessageField
	if field == "" {
		field = DefaultMessageField
	}

	payload := make(map[string]any, len(t.Template)+2)
	for k, v := range t.Template {
		payload[k] = v
	}

	var sessionID any
	if params != nil && params.SessionID != "" {
		sessionID = params.SessionID
	}
	var callerContext any
	if params != nil && params.Context != nil {
		callerContext = params.Context
	}
	payload["metadata"] = map[string]any{
		"session_id": sessionID,
		"context":    callerContext,
	}
	payload[field] = text

	return payload
}

// FromBackend extracts the reply text from a backend payload and wraps it as
// a single assistant message with one text part.
//
// The conventional reply fields are consulted in priority order: "output",
// then "result", then "message". When none is present the whole payload is
// pretty-printed so no data is silently dropped.
func (t Translator) FromBackend(payload map[string]any) *Message {
	for _, key := range responseKeys {
		if v, ok := payload[key]; ok {
			return NewAssistantMessage(stringify(v))
		}
	}

	if payload == nil {
		payload = map[string]any{}
	}
	data, err := jsonv1.MarshalIndent(payload, "", "  ")
	if err != nil {
		return NewAssistantMessage(fmt.Sprintf("%v", payload))
	}
	return NewAssistantMessage(string(data))
}

// stringify renders a reply field value as text.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
