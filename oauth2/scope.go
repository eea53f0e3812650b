package oauth2

import "strings"

// ScopeOpenID is the scope that switches a plain OAuth2 exchange into an
// OpenID Connect one, entitling the client to an ID token.
const ScopeOpenID = "openid"

// Scope is an ordered set of scope values parsed from the space-delimited
// wire form. Order is preserved so the granted scope echoes the request.
type Scope []string

// ParseScope splits the space-delimited scope parameter. Empty input yields a
// nil Scope.
func ParseScope(raw string) Scope {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return Scope(fields)
}

func (s Scope) String() string {
	return strings.Join(s, " ")
}

// Contains reports whether the scope set includes value.
func (s Scope) Contains(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every value in s is also present in other. Used to
// reject scope widening on refresh.
func (s Scope) SubsetOf(other Scope) bool {
	for _, v := range s {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// HasOpenID reports whether the exchange is an OIDC one.
func (s Scope) HasOpenID() bool {
	return s.Contains(ScopeOpenID)
}
