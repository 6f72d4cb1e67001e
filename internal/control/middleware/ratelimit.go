// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	controlhttp "github.com/chatrelay/chatrelay/internal/control/http"
	"github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/ratelimit"
)

// clientKeyFunc picks how clients are identified. Proxy headers are only
// honoured when the deployment sits behind a trusted reverse proxy.
func clientKeyFunc(trustProxy bool) httprate.KeyFunc {
	if trustProxy {
		return httprate.KeyByRealIP
	}
	return httprate.KeyByIP
}

// ClientRateLimit enforces limiter per client address. Rejected requests get
// a 429 JSON body with Retry-After.
func ClientRateLimit(limiter *ratelimit.Limiter, trustProxy bool) func(http.Handler) http.Handler {
	keyFunc := clientKeyFunc(trustProxy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := keyFunc(r)
			if err != nil || key == "" {
				key, _, _ = net.SplitHostPort(r.RemoteAddr)
			}

			d := limiter.Allow(key)
			h := w.Header()
			if d.Limit > 0 {
				h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			}
			if !d.Allowed {
				retry := d.RetryAfter(time.Now())
				h.Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
				logger := log.WithComponentFromContext(r.Context(), "ratelimit")
				logger.Warn().
					Str(log.FieldEvent, "ratelimit.rejected").
					Str("client", key).
					Str(log.FieldPath, r.URL.Path).
					Msg("rate limit exceeded")
				controlhttp.WriteError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UploadLimit caps uploads to perMinute requests per client address.
// A non-positive value disables the cap.
func UploadLimit(perMinute int, trustProxy bool) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(clientKeyFunc(trustProxy)),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitRejection("upload")
			w.Header().Set("Retry-After", "60")
			controlhttp.WriteError(w, r, http.StatusTooManyRequests, "upload rate limit exceeded")
		}),
	)
}
