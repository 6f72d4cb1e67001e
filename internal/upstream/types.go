// SPDX-License-Identifier: MIT

package upstream

import (
	"encoding/json"
	"fmt"
)

// Session is a chat session as reported by the agent server. Only the fields
// the relay reads are typed; Raw keeps the full document so the browser sees
// exactly what the agent server sent.
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Time  struct {
		Created int64 `json:"created"`
		Updated int64 `json:"updated"`
	} `json:"time"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a session and rejects documents without an id.
func (s *Session) UnmarshalJSON(data []byte) error {
	type alias Session
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.ID == "" {
		return fmt.Errorf("%w: session without id", ErrUpstreamBadResponse)
	}
	*s = Session(a)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the upstream document verbatim when available.
func (s Session) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type alias Session
	return json.Marshal(alias(s))
}

// Agent is an agent profile offered by the agent server.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes an agent and rejects documents without a name.
func (a *Agent) UnmarshalJSON(data []byte) error {
	type alias Agent
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Name == "" {
		return fmt.Errorf("%w: agent without name", ErrUpstreamBadResponse)
	}
	*a = Agent(v)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the upstream document verbatim when available.
func (a Agent) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type alias Agent
	return json.Marshal(alias(a))
}

// Message is one entry of a session transcript. The relay never inspects
// message bodies, so they are carried opaquely.
type Message = json.RawMessage

// Health is the agent server's own health report.
type Health struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
}

// CreateSessionRequest is the optional body of a session creation.
type CreateSessionRequest struct {
	Title    string `json:"title,omitempty"`
	ParentID string `json:"parentID,omitempty"`
}

// TextPart is the only prompt part the relay sends.
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PromptRequest is the body of an asynchronous prompt submission.
type PromptRequest struct {
	Parts []TextPart `json:"parts"`
	Agent string     `json:"agent,omitempty"`
}

// NewTextPrompt builds a single-part text prompt.
func NewTextPrompt(text, agent string) PromptRequest {
	return PromptRequest{
		Parts: []TextPart{{Type: "text", Text: text}},
		Agent: agent,
	}
}
