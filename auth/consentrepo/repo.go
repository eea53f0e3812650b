// Package consentrepo remembers which scopes a subject has already granted to
// a client, so repeat authorizations can skip the consent screen.
package consentrepo

import "github.com/openauthkit/oidc-provider/oauth2"

type Repo interface {
	// Grant records that the subject allowed the client the given scopes.
	// Grants accumulate; a later narrower grant never revokes earlier ones.
	Grant(clientID, subject string, scope oauth2.Scope) error

	// Covers reports whether every requested scope was previously granted.
	Covers(clientID, subject string, scope oauth2.Scope) bool
}
