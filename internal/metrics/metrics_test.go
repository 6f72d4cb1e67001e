// SPDX-License-Identifier: MIT
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestSetCircuitBreakerState_OneHot(t *testing.T) {
	SetCircuitBreakerState("upstream_test", "open")

	assert.Equal(t, 1.0, getGaugeValue(t, circuitBreakerState.WithLabelValues("upstream_test", "open")))
	assert.Equal(t, 0.0, getGaugeValue(t, circuitBreakerState.WithLabelValues("upstream_test", "closed")))
	assert.Equal(t, 0.0, getGaugeValue(t, circuitBreakerState.WithLabelValues("upstream_test", "half-open")))

	SetCircuitBreakerState("upstream_test", "closed")
	assert.Equal(t, 0.0, getGaugeValue(t, circuitBreakerState.WithLabelValues("upstream_test", "open")))
	assert.Equal(t, 1.0, getGaugeValue(t, circuitBreakerState.WithLabelValues("upstream_test", "closed")))
}

func TestRecordRelayEnd(t *testing.T) {
	before := getCounterValue(t, RelaySessionsTotal.WithLabelValues("timeout"))
	fwdBefore := getCounterValue(t, relayEventsForwarded)

	RecordRelayEnd("timeout", 3, 7, 2*time.Second)

	assert.Equal(t, before+1, getCounterValue(t, RelaySessionsTotal.WithLabelValues("timeout")))
	assert.Equal(t, fwdBefore+3, getCounterValue(t, relayEventsForwarded))
}

func TestRecordRateLimitRejection(t *testing.T) {
	before := getCounterValue(t, rateLimitRejected.WithLabelValues("upload"))
	RecordRateLimitRejection("upload")
	assert.Equal(t, before+1, getCounterValue(t, rateLimitRejected.WithLabelValues("upload")))
}

func TestPromhttpExposure(t *testing.T) {
	RecordCacheLookup("agents", "hit")
	ObserveUpstreamRequest("list_agents", "ok", 10*time.Millisecond)

	recorder := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, "chatrelay_cache_lookups_total"))
	assert.True(t, strings.Contains(body, "chatrelay_upstream_request_duration_seconds"))
}
