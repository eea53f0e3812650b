package auth

import (
	"github.com/openauthkit/oidc-provider/oauth2"
)

// UserInfo resolves a bearer access token to the claims of the subject it was
// issued for. Verification requires both a valid signature and a live
// server-side record, so a token whose lineage was revoked by refresh
// rotation is rejected even though its signature still checks out.
func (s *Service) UserInfo(bearerToken string) (map[string]any, error) {
	if bearerToken == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "missing bearer token")
	}

	record, err := s.tokens.VerifyAccessToken(bearerToken)
	if err != nil {
		if _, ok := oauth2.AsError(err); ok {
			return nil, err
		}
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "access token is not valid")
	}

	scope := oauth2.ParseScope(record.Scope)
	if !scope.HasOpenID() {
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "access token does not carry the openid scope")
	}

	claims := map[string]any{
		"sub": record.Subject,
		"aud": record.ClientID,
	}
	return claims, nil
}
