// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("POST", "/api/sessions/{id}/prompt", 200)

	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "POST")
	verifyAttribute(t, attrs, HTTPRouteKey, "/api/sessions/{id}/prompt")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestSessionAttributes(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		agent     string
		wantLen   int
	}{
		{"both", "ses_1", "build", 2},
		{"session only", "ses_1", "", 1},
		{"none", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := SessionAttributes(tt.sessionID, tt.agent)
			if len(attrs) != tt.wantLen {
				t.Fatalf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			if tt.sessionID != "" {
				verifyAttribute(t, attrs, SessionIDKey, tt.sessionID)
			}
			if tt.agent != "" {
				verifyAttribute(t, attrs, AgentKey, tt.agent)
			}
		})
	}
}

func TestRelayAttributes(t *testing.T) {
	attrs := RelayAttributes("done", 12, 40, 1500)

	verifyAttribute(t, attrs, RelayOutcomeKey, "done")
	verifyIntAttribute(t, attrs, RelayForwardedKey, 12)
	verifyIntAttribute(t, attrs, RelayDroppedKey, 40)
	verifyInt64Attribute(t, attrs, RelayDurationMSKey, 1500)
}

func TestUpstreamAttributes(t *testing.T) {
	attrs := UpstreamAttributes("list_sessions", 0)
	if len(attrs) != 1 {
		t.Fatalf("Expected 1 attribute without status, got %d", len(attrs))
	}

	attrs = UpstreamAttributes("get_session", 404)
	verifyAttribute(t, attrs, UpstreamOperationKey, "get_session")
	verifyIntAttribute(t, attrs, UpstreamStatusKey, 404)
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "upstream_unavailable")

	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "upstream_unavailable")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyInt64Attribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int64) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != expectedValue {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
