// Package guard decides whether a navigation may proceed or must go to the login page.
package guard

import (
	"net/url"
	"strings"

	"github.com/pscheid92/thereiwas/internal/domain"
)

const (
	LoginPath     = "/login"
	FromParam     = "from"
	fallbackRoute = "/"
)

// Decision is the outcome of a guard check. Redirect is empty when the navigation is allowed.
type Decision struct {
	Allow    bool
	Redirect string
}

// Check allows navigation for an authenticated session. Otherwise it redirects
// to the login page and remembers the destination in the from parameter.
func Check(session domain.SessionReader, destination string) Decision {
	if session.Session().Authenticated() {
		return Decision{Allow: true}
	}
	return Decision{Redirect: LoginURL(destination)}
}

// LoginURL builds the login path carrying destination.
func LoginURL(destination string) string {
	if destination == "" {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{FromParam: {destination}}.Encode()
}

// SafeDestination returns from when it is a local absolute path and "/" otherwise.
func SafeDestination(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") {
		return fallbackRoute
	}
	// protocol-relative URLs and backslash tricks leave the origin
	if strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return fallbackRoute
	}
	u, err := url.Parse(from)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallbackRoute
	}
	if u.Path == LoginPath {
		return fallbackRoute
	}
	return from
}
