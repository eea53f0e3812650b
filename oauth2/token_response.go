package oauth2

// TokenResponse is the JSON body returned from the token endpoint for all
// grant types, per RFC 6749 §5.1 with the OIDC id_token extension.
type TokenResponse struct {
	// AccessToken is the bearer token used to access protected resources.
	AccessToken *string `json:"access_token,omitempty"`

	// IDToken is the signed OIDC ID token. Present only when the "openid"
	// scope was granted.
	IDToken *string `json:"id_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. A hint; the
	// authoritative expiry is the token's exp claim.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is the opaque token for obtaining new access tokens.
	// Rotates on every use; the previous value is invalidated.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope is the granted scope, space-delimited. May be narrower than
	// requested, never wider.
	Scope string `json:"scope,omitempty"`
}
