// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelaySessionsTotal counts finished relay sessions by outcome
	// (done, error, timeout, client_gone).
	RelaySessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_relay_sessions_total",
		Help: "Total number of prompt relay sessions, by outcome.",
	}, []string{"outcome"})

	// RelaySessionsActive is the number of prompt streams currently open.
	RelaySessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_relay_sessions_active",
		Help: "Number of prompt relay sessions currently streaming.",
	})

	relayEventsForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_relay_events_forwarded_total",
		Help: "Upstream events forwarded to browser clients.",
	})

	relayEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_relay_events_dropped_total",
		Help: "Upstream events discarded because they belong to another session or are malformed.",
	})

	relayFirstEvent = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatrelay_relay_first_event_seconds",
		Help:    "Time from prompt submission to the first forwarded event.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	relayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatrelay_relay_session_duration_seconds",
		Help:    "Wall time of prompt relay sessions, by outcome.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})
)

// RecordRelayEnd records the final outcome and totals of one relay session.
func RecordRelayEnd(outcome string, forwarded, dropped int, d time.Duration) {
	RelaySessionsTotal.WithLabelValues(outcome).Inc()
	relayEventsForwarded.Add(float64(forwarded))
	relayEventsDropped.Add(float64(dropped))
	relayDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRelayFirstEvent records time-to-first-event for one session.
func ObserveRelayFirstEvent(d time.Duration) {
	relayFirstEvent.Observe(d.Seconds())
}
