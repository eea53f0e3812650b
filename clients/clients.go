package clients

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/openauthkit/oidc-provider/oauth2"
)

// Client is a registered OAuth2 client. Immutable once loaded into the
// registry.
type Client struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`

	// SecretHash is the bcrypt hash of the client secret. Empty for public
	// clients, which authenticate with client_id alone.
	SecretHash string `json:"secretHash,omitempty"`

	// RedirectURIs is the whitelist of exact redirect URIs. A requested
	// redirect_uri must match one of these byte-for-byte.
	RedirectURIs []string `json:"redirectURIs"`

	// ResponseTypes lists the response_type combinations the client may use,
	// e.g. "code", "id_token", "token id_token". Order of tokens within an
	// entry is irrelevant.
	ResponseTypes []string `json:"responseTypes"`

	// GrantTypes lists the token endpoint grants the client may redeem.
	GrantTypes []oauth2.GrantType `json:"grantTypes"`

	// Scopes is the set of scope values the client may request.
	Scopes []string `json:"scopes"`
}

// IsPublic reports whether the client has no secret.
func (c *Client) IsPublic() bool {
	return c.SecretHash == ""
}

// HasRedirectURI reports whether uri exactly matches a registered URI.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if uri == registered {
			return true
		}
	}
	return false
}

// AllowsResponseType reports whether the client is registered for the given
// response type combination.
func (c *Client) AllowsResponseType(rt oauth2.ResponseType) bool {
	for _, allowed := range c.ResponseTypes {
		parsed, err := oauth2.ParseResponseType(allowed)
		if err != nil {
			continue
		}
		if parsed == rt {
			return true
		}
	}
	return false
}

// AllowsGrantType reports whether the client may use the given grant at the
// token endpoint.
func (c *Client) AllowsGrantType(gt oauth2.GrantType) bool {
	for _, allowed := range c.GrantTypes {
		if allowed == gt {
			return true
		}
	}
	return false
}

// HasScope reports whether a single scope value is allowed for the client.
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks that every requested scope value is allowed.
func (c *Client) ValidateScopes(requested oauth2.Scope) error {
	for _, scope := range requested {
		if !c.HasScope(scope) {
			return oauth2.NewError(oauth2.ErrInvalidScope, "scope %q not allowed for client", scope)
		}
	}
	return nil
}

// CheckSecret verifies a presented client secret against the stored bcrypt
// hash. Public clients never match.
func (c *Client) CheckSecret(secret string) bool {
	if c.IsPublic() || strings.TrimSpace(secret) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) == nil
}

// HashSecret hashes a client secret for registration.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
