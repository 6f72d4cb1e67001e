// SPDX-License-Identifier: MIT

package http

// Canonical Header Names
const (
	// HeaderRequestID is the canonical header for request correlation.
	HeaderRequestID = "X-Request-ID"
)

// Canonical JSON Field Names
const (
	// JSONKeyRequestID is the canonical JSON key for request correlation in error bodies.
	JSONKeyRequestID = "requestId"
	// JSONKeyError carries the human-readable message of every error body.
	JSONKeyError = "error"
)
