// Package grant holds the in-flight state of the authorization server:
// pending consent requests, issued authorization codes and live refresh
// tokens. Everything here is single-use and short-lived; the Repo contract
// makes consumption an atomic compare-and-invalidate so that concurrent
// redemption attempts race exactly once to success.
package grant

import "time"

// AuthorizationCode is a short-lived, single-use credential exchanged for
// tokens at the token endpoint. The nonce, auth time and redirect URI of the
// originating request ride along so the token endpoint can honor them without
// trusting anything the client resubmits.
type AuthorizationCode struct {
	Value       string
	ClientID    string
	Subject     string
	Scope       string
	Nonce       string
	RedirectURI string
	AuthTime    time.Time
	ExpiresAt   time.Time
	Consumed    bool
}

// RefreshToken is a live refresh credential. Exactly one token per lineage is
// unconsumed at any time; redeeming it produces the next generation and
// invalidates this one.
type RefreshToken struct {
	Value    string
	ClientID string
	Subject  string
	Scope    string

	// Nonce and AuthTime are carried from the original grant so refreshed ID
	// tokens reflect the original authentication, not the refresh.
	Nonce    string
	AuthTime time.Time

	// LineageID ties all generations of one grant together; access tokens
	// record it so rotation can revoke the superseded generation's tokens.
	LineageID  string
	Generation int

	ExpiresAt time.Time
	Consumed  bool
}

// PendingAuthorization is an authorization request waiting on the user's
// consent decision, keyed by the anti-forgery token embedded in the rendered
// form. Expires with the same discipline as authorization codes.
type PendingAuthorization struct {
	AntiForgeryToken string
	ClientID         string
	Subject          string
	RedirectURI      string
	Scope            string
	ResponseType     string
	Nonce            string
	State            string
	AuthTime         time.Time
	ExpiresAt        time.Time
}
