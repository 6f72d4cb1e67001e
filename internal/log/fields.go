// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	FieldEvent     = "event"
	FieldComponent = "component"

	// Relay fields
	FieldEventType = "event_type"
	FieldOutcome   = "outcome"
	FieldForwarded = "forwarded"
	FieldDropped   = "dropped"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"

	// Upstream fields
	FieldBaseURL   = "base_url"
	FieldOperation = "operation"
)
