package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// NewCheckOrigin accepts handshakes without an Origin header and those from
// the dashboard's own host. Development servers also accept loopback origins
// on any port, so the page can be served by a separate dev server.
func NewCheckOrigin(isDevelopment bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			if strings.EqualFold(u.Host, r.Host) {
				return true
			}
			if isDevelopment && loopbackHosts[strings.ToLower(u.Hostname())] {
				return true
			}
		}

		slog.WarnContext(r.Context(), "Viewer origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}
