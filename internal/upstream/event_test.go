// SPDX-License-Identifier: MIT

package upstream

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		kind      Kind
		sessionID string
		delta     string
		errMsg    string
	}{
		{
			name:      "part update with delta",
			raw:       `{"type":"message.part.updated","properties":{"part":{"sessionID":"ses_a","type":"text"},"delta":"Hel"}}`,
			kind:      KindPartUpdated,
			sessionID: "ses_a",
			delta:     "Hel",
		},
		{
			name:      "idle",
			raw:       `{"type":"session.idle","properties":{"sessionID":"ses_a"}}`,
			kind:      KindSessionIdle,
			sessionID: "ses_a",
		},
		{
			name:      "message info",
			raw:       `{"type":"message.updated","properties":{"info":{"sessionID":"ses_b","role":"assistant"}}}`,
			kind:      KindOther,
			sessionID: "ses_b",
		},
		{
			name:      "session error with message",
			raw:       `{"type":"session.error","properties":{"sessionID":"ses_a","error":{"name":"ProviderAuthError","data":{"message":"bad key"}}}}`,
			kind:      KindSessionError,
			sessionID: "ses_a",
			errMsg:    "bad key",
		},
		{
			name: "no properties",
			raw:  `{"type":"server.connected"}`,
			kind: KindOther,
		},
		{
			name: "properties of unexpected shape",
			raw:  `{"type":"custom","properties":[1,2,3]}`,
			kind: KindOther,
		},
		{
			name:      "delta of unexpected shape keeps session",
			raw:       `{"type":"message.part.updated","properties":{"sessionID":"ses_other","delta":{"x":1}}}`,
			kind:      KindPartUpdated,
			sessionID: "ses_other",
		},
		{
			name:      "session error as plain string",
			raw:       `{"type":"session.error","properties":{"sessionID":"ses_a","error":"boom"}}`,
			kind:      KindSessionError,
			sessionID: "ses_a",
			errMsg:    "boom",
		},
		{
			name:      "session error name only",
			raw:       `{"type":"session.error","properties":{"sessionID":"ses_a","error":{"name":"MessageAbortedError"}}}`,
			kind:      KindSessionError,
			sessionID: "ses_a",
			errMsg:    "MessageAbortedError",
		},
		{
			name:      "malformed part falls back to info",
			raw:       `{"type":"message.updated","properties":{"part":"oops","info":{"sessionID":"ses_b"}}}`,
			kind:      KindOther,
			sessionID: "ses_b",
		},
		{
			name:      "non-string session id never matches a session",
			raw:       `{"type":"session.idle","properties":{"sessionID":42}}`,
			kind:      KindSessionIdle,
			sessionID: "42",
		},
		{
			name: "null properties",
			raw:  `{"type":"server.connected","properties":null}`,
			kind: KindOther,
		},
		{
			name:      "top-level id wins",
			raw:       `{"type":"message.part.updated","properties":{"sessionID":"ses_top","part":{"sessionID":"ses_part"}}}`,
			kind:      KindPartUpdated,
			sessionID: "ses_top",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.sessionID, ev.SessionID)
			assert.Equal(t, tt.delta, ev.Delta)
			assert.Equal(t, tt.errMsg, ev.ErrorMessage)
			assert.JSONEq(t, tt.raw, string(ev.Raw))
		})
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	for _, raw := range []string{`not json`, `{"properties":{}}`, `[]`, `""`} {
		_, err := ParseEvent([]byte(raw))
		assert.True(t, errors.Is(err, ErrUpstreamBadResponse), raw)
	}
}

func TestScanEvents(t *testing.T) {
	stream := ": comment\n" +
		"event: message\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"id: 7\n" +
		"data: line1\n" +
		"data:line2\r\n" +
		"\r\n" +
		"retry: 1000\n" +
		"\n" +
		"data: trailing-without-blank"

	var got []string
	err := scanEvents(strings.NewReader(stream), func(data []byte) bool {
		got = append(got, string(data))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, "line1\nline2"}, got)
}

func TestScanEvents_StopsEarly(t *testing.T) {
	stream := "data: 1\n\ndata: 2\n\ndata: 3\n\n"
	var got []string
	err := scanEvents(strings.NewReader(stream), func(data []byte) bool {
		got = append(got, string(data))
		return len(got) < 2
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, got)
}
