// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatrelay_upstream_request_duration_seconds",
		Help:    "Duration of synchronous calls to the agent server",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	upstreamFeedSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_upstream_event_subscriptions",
		Help: "Number of open event feed subscriptions to the agent server",
	})

	upstreamFeedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_upstream_events_received_total",
		Help: "Total number of event envelopes decoded from the agent server feed",
	})
)

// ObserveUpstreamRequest records one synchronous upstream call. result is a
// short error class ("ok", "not_found", "unavailable", ...).
func ObserveUpstreamRequest(operation, result string, d time.Duration) {
	upstreamRequestDuration.WithLabelValues(operation, result).Observe(d.Seconds())
}

// IncFeedSubscriptions marks an event subscription as opened.
func IncFeedSubscriptions() { upstreamFeedSubscriptions.Inc() }

// DecFeedSubscriptions marks an event subscription as closed.
func DecFeedSubscriptions() { upstreamFeedSubscriptions.Dec() }

// IncFeedEvents counts one decoded feed envelope.
func IncFeedEvents() { upstreamFeedEvents.Inc() }
