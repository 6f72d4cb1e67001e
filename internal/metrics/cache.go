// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatrelay_cache_lookups_total",
	Help: "Cache lookups by cache name and result (hit, miss, error).",
}, []string{"cache", "result"})

// RecordCacheLookup counts one cache lookup.
func RecordCacheLookup(cache, result string) {
	cacheLookups.WithLabelValues(cache, result).Inc()
}
