// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Relay attributes
	SessionIDKey       = "chat.session_id"
	AgentKey           = "chat.agent"
	RelayOutcomeKey    = "relay.outcome"
	RelayForwardedKey  = "relay.events_forwarded"
	RelayDroppedKey    = "relay.events_dropped"
	RelayDurationMSKey = "relay.duration_ms"

	// Upstream attributes
	UpstreamOperationKey = "upstream.operation"
	UpstreamStatusKey    = "upstream.status_code"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes identifies the chat session a span belongs to. Empty
// values are omitted.
func SessionAttributes(sessionID, agent string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if agent != "" {
		attrs = append(attrs, attribute.String(AgentKey, agent))
	}
	return attrs
}

// RelayAttributes summarises a finished relay session.
func RelayAttributes(outcome string, forwarded, dropped int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RelayOutcomeKey, outcome),
		attribute.Int(RelayForwardedKey, forwarded),
		attribute.Int(RelayDroppedKey, dropped),
		attribute.Int64(RelayDurationMSKey, durationMS),
	}
}

// UpstreamAttributes describes one call to the agent server.
func UpstreamAttributes(operation string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(UpstreamOperationKey, operation)}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(UpstreamStatusKey, statusCode))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
