package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientAddr returns the address used for rate limiting and geolocation.
// Forwarding headers are honoured only behind a trusted proxy; otherwise they are client-controlled.
func ClientAddr(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// Check X-Forwarded-For header first (for proxies/load balancers)
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			// Take the first IP if there are multiple
			ips := strings.Split(forwarded, ",")
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}

		// Check X-Real-IP header
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	// Fall back to RemoteAddr without the port
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
