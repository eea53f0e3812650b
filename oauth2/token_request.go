package oauth2

// TokenRequest holds the parameters of a token endpoint request. Client
// credentials may arrive either as form fields or via HTTP basic auth; the
// transport layer normalizes them into ClientID/ClientSecret before the core
// sees the request.
type TokenRequest struct {
	GrantType    GrantType
	ClientID     string
	ClientSecret string

	// Code is the authorization code being redeemed (authorization_code grant).
	Code string

	// RedirectURI must match the redirect_uri of the originating
	// authorization request (authorization_code grant).
	RedirectURI string

	// RefreshToken is the token being rotated (refresh_token grant).
	RefreshToken string

	// Scope optionally narrows the granted scope on refresh. Widening beyond
	// the original grant is rejected.
	Scope string
}
