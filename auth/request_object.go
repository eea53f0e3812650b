package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/openauthkit/oidc-provider/oauth2"
)

// checkRequestObject cross-checks the claims of a request object against the
// query parameters. The object is a compact JWT; an unsigned ("alg":"none")
// object is accepted, so the claims carry no authority of their own and may
// only confirm what the query already says. A claim that is absent constrains
// nothing; a claim that is present and differs makes the whole request
// untrustworthy, so the failure must be surfaced inline rather than delivered
// to the redirect URI.
func checkRequestObject(params *oauth2.AuthorizationParameters) *oauth2.Error {
	if params.Request == "" {
		return nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(params.Request, jwt.MapClaims{})
	if err != nil {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "request parameter is not a valid JWT")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "request parameter carries no claims")
	}

	checks := []struct {
		claim string
		query string
	}{
		{"client_id", params.ClientID},
		{"response_type", params.ResponseType},
		{"redirect_uri", params.RedirectURI},
		{"scope", params.Scope},
		{"state", params.State},
		{"nonce", params.Nonce},
	}
	for _, c := range checks {
		raw, present := claims[c.claim]
		if !present {
			continue
		}
		value, ok := raw.(string)
		if !ok || value != c.query {
			return oauth2.NewError(oauth2.ErrInvalidRequest, "request object claim %q does not match the request", c.claim)
		}
	}
	return nil
}
