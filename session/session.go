// Package session carries the already-authenticated subject into the
// authorization core. Authentication itself (credential checking, cookies,
// login UI) is the host's concern; the core only reads what is handed to it.
package session

import "time"

// Context is the authenticated session supplied by the caller for one
// authorization exchange. Read-only from the core's perspective.
type Context struct {
	// Subject is the authenticated user identifier, the "sub" of every
	// token issued on this session.
	Subject string

	// AuthTime is when the user actually authenticated. ID tokens carry this
	// value, never the token issuance time.
	AuthTime time.Time
}

// FreshWithin reports whether the authentication happened no more than
// maxAge ago.
func (c *Context) FreshWithin(maxAge time.Duration, now time.Time) bool {
	return now.Sub(c.AuthTime) <= maxAge
}
