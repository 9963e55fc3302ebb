// Package httputil holds small request helpers shared by the HTTP layer.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address used to attribute a request to a client,
// for logging and per-client conversion limits.
//
// With trustProxy set, the first X-Forwarded-For entry and then X-Real-IP
// are consulted before RemoteAddr. Header values that do not parse as an IP
// address are ignored, so a malformed header cannot mint arbitrary limiter
// keys. Only enable trustProxy behind a reverse proxy that sets these headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := parseIP(first); ip != "" {
				return ip
			}
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
