// SPDX-License-Identifier: MIT

// Package http holds response helpers shared by the router and its
// middleware.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/chatrelay/chatrelay/internal/log"
)

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Debug().Err(err).Int(log.FieldStatus, status).Msg("failed to encode JSON response")
	}
}

// WriteError writes {"error": message}. Server errors also carry the
// request id so operators can find the matching log line.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := map[string]string{JSONKeyError: message}
	if status >= http.StatusInternalServerError && r != nil {
		if reqID := log.RequestIDFromContext(r.Context()); reqID != "" {
			body[JSONKeyRequestID] = reqID
		}
	}
	WriteJSON(w, status, body)
}
