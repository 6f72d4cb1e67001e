// SPDX-License-Identifier: MIT

// Package metrics holds the process-wide Prometheus collectors for chatrelay.
// Labels never carry session or request identifiers.
package metrics
