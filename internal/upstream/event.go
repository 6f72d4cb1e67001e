// SPDX-License-Identifier: MIT

package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event types on the agent server feed that the relay acts on.
const (
	TypePartUpdated  = "message.part.updated"
	TypeSessionIdle  = "session.idle"
	TypeSessionError = "session.error"
)

// Kind is the relay-relevant classification of an event.
type Kind int

const (
	KindOther Kind = iota
	KindPartUpdated
	KindSessionIdle
	KindSessionError
)

func (k Kind) String() string {
	switch k {
	case KindPartUpdated:
		return "part_updated"
	case KindSessionIdle:
		return "session_idle"
	case KindSessionError:
		return "session_error"
	default:
		return "other"
	}
}

// Event is one decoded envelope from the global event feed. Raw is the exact
// JSON text received and is what gets forwarded to browsers.
type Event struct {
	Type      string
	Kind      Kind
	SessionID string
	// Delta is the incremental text of a part update, if any.
	Delta string
	// ErrorMessage is set for KindSessionError.
	ErrorMessage string
	Raw          json.RawMessage
}

type envelope struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// eventError is the structured form of a session.error payload.
type eventError struct {
	Name string `json:"name"`
	Data *struct {
		Message string `json:"message"`
	} `json:"data"`
}

// ParseEvent decodes one feed payload. Payloads that are not a JSON object
// with a non-empty "type" are rejected.
//
// Each property is decoded on its own, so a field of unexpected shape never
// hides the session the event belongs to.
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUpstreamBadResponse, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: event without type", ErrUpstreamBadResponse)
	}

	ev := Event{
		Type: env.Type,
		Kind: kindOf(env.Type),
		Raw:  append(json.RawMessage(nil), data...),
	}

	var props map[string]json.RawMessage
	if err := json.Unmarshal(env.Properties, &props); err != nil || props == nil {
		// Non-object properties are legal; the event just carries no session.
		return ev, nil
	}

	ev.SessionID = sessionIDOf(props)
	if ev.SessionID == "" {
		ev.SessionID = nestedSessionID(props["part"])
	}
	if ev.SessionID == "" {
		ev.SessionID = nestedSessionID(props["info"])
	}
	_ = json.Unmarshal(props["delta"], &ev.Delta)
	ev.ErrorMessage = errorMessageOf(props["error"])
	return ev, nil
}

// sessionIDOf returns props["sessionID"]. A present id that is not a string
// is returned as its JSON text, so it can never match a real session.
func sessionIDOf(props map[string]json.RawMessage) string {
	raw, ok := props["sessionID"]
	if !ok || isNull(raw) {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	return id
}

func nestedSessionID(raw json.RawMessage) string {
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return ""
	}
	return sessionIDOf(inner)
}

// errorMessageOf accepts the structured {name, data.message} form and a
// plain string.
func errorMessageOf(raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	var e eventError
	if err := json.Unmarshal(raw, &e); err != nil {
		return ""
	}
	if e.Data != nil && e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Name
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func kindOf(t string) Kind {
	switch t {
	case TypePartUpdated:
		return KindPartUpdated
	case TypeSessionIdle:
		return KindSessionIdle
	case TypeSessionError:
		return KindSessionError
	default:
		return KindOther
	}
}
