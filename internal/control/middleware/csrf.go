// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	controlhttp "github.com/chatrelay/chatrelay/internal/control/http"
)

// CSRFProtection rejects state-changing requests that a browser sent on
// behalf of a foreign page. It validates the Origin header, falling back to
// Referer, for POST, PUT, DELETE and PATCH.
//
// Requests with neither header come from non-browser clients and pass.
// Otherwise the origin must be listed in allowedOrigins ("*" allows all)
// or match the request's own host when no forwarding headers are present.
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	originsMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "*" {
			originsMap["*"] = true
			continue
		}
		if normalized, ok := normalizeOrigin(trimmed); ok {
			originsMap[normalized] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			requestOrigin, present := getRequestOrigin(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}
			if requestOrigin == "" || !isOriginAllowed(requestOrigin, originsMap, r) {
				controlhttp.WriteError(w, r, http.StatusForbidden, "cross-origin request rejected")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getRequestOrigin extracts the origin from the request headers. present
// reports whether the client sent either header at all; origin is empty when
// the value could not be parsed.
func getRequestOrigin(r *http.Request) (origin string, present bool) {
	if raw := r.Header.Get("Origin"); raw != "" {
		o, _ := normalizeOrigin(raw)
		return o, true
	}

	referer := r.Header.Get("Referer")
	if referer == "" {
		return "", false
	}
	refererURL, err := url.Parse(referer)
	if err != nil || refererURL.Scheme == "" || refererURL.Host == "" {
		return "", true
	}
	o, _ := normalizeOrigin(refererURL.Scheme + "://" + refererURL.Host)
	return o, true
}

func isOriginAllowed(requestOrigin string, allowedOrigins map[string]bool, r *http.Request) bool {
	if allowedOrigins["*"] || allowedOrigins[requestOrigin] {
		return true
	}
	// Same-origin is only trusted if no proxy headers are present.
	if hasProxyHeaders(r) {
		return false
	}
	return requestOrigin == getStrictSameOrigin(r)
}

func hasProxyHeaders(r *http.Request) bool {
	for _, h := range []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"} {
		if r.Header.Get(h) != "" {
			return true
		}
	}
	return false
}

// getStrictSameOrigin reconstructs the expected origin from the local host name
// and connection state, ignoring all forwarding headers.
func getStrictSameOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.Host == "" {
		return ""
	}
	origin, _ := normalizeOrigin(scheme + "://" + r.Host)
	return origin
}

func normalizeOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" || strings.ContainsAny(host, " \t\r\n/@\\") {
		return "", false
	}

	port := parsed.Port()
	if port != "" {
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 1 || portNum > 65535 {
			return "", false
		}
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	authority := host
	if strings.Contains(host, ":") {
		authority = "[" + host + "]"
	}
	if port != "" {
		authority = net.JoinHostPort(host, port)
	}
	return scheme + "://" + authority, true
}
