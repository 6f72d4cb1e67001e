// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_ratelimit_rejected_total",
		Help: "Requests rejected by front-door rate limiting, by limiter.",
	}, []string{"limiter"})

	// RateLimitTrackedClients is the number of client windows held in memory.
	RateLimitTrackedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_ratelimit_tracked_clients",
		Help: "Client addresses currently tracked by the fixed-window limiter.",
	})
)

// RecordRateLimitRejection counts one rejected request. limiter is
// "client", "global" or "upload".
func RecordRateLimitRejection(limiter string) {
	rateLimitRejected.WithLabelValues(limiter).Inc()
}
