package auth

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/openauthkit/oidc-provider/clients"
	"github.com/openauthkit/oidc-provider/internal/utils"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/token"
)

// Token handles the token endpoint: authorization_code redemption and
// refresh_token rotation. All grant consumption goes through the store's
// atomic compare-and-invalidate, so a reused code or refresh token fails with
// invalid_grant no matter how the attempts interleave.
func (s *Service) Token(req *oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	client, err := s.repos.Clients.Get(req.ClientID)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrInvalidClient, "unknown client")
	}
	if !client.IsPublic() && !client.CheckSecret(req.ClientSecret) {
		return nil, oauth2.NewError(oauth2.ErrInvalidClient, "client authentication failed")
	}
	if !client.AllowsGrantType(req.GrantType) {
		return nil, oauth2.NewError(oauth2.ErrUnauthorizedClient, "client is not authorized for grant_type %q", req.GrantType)
	}

	switch req.GrantType {
	case oauth2.GrantAuthorizationCode:
		return s.redeemAuthorizationCode(client, req)
	case oauth2.GrantRefreshToken:
		return s.redeemRefreshToken(client, req)
	default:
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "unsupported grant_type %q", req.GrantType)
	}
}

func (s *Service) redeemAuthorizationCode(client *clients.Client, req *oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	code, err := s.repos.Grants.ConsumeCode(req.Code, client.ID)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "authorization code is invalid, expired or already used")
	}
	if code.RedirectURI != req.RedirectURI {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "redirect_uri does not match the authorization request")
	}

	scope := oauth2.ParseScope(code.Scope)
	lineageID := uuid.New().String()

	accessToken, err := s.tokens.IssueAccessToken(client.ID, code.Subject, scope, lineageID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Token] access token")
	}

	refreshToken, err := s.tokens.IssueRefreshToken(client.ID, code.Subject, scope, code.Nonce, code.AuthTime, lineageID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Token] refresh token")
	}

	response := &oauth2.TokenResponse{
		AccessToken:  utils.Ptr(accessToken.Value),
		TokenType:    "Bearer",
		ExpiresIn:    s.tokens.AccessTokenExpirySeconds(),
		RefreshToken: utils.Ptr(refreshToken.Value),
		Scope:        scope.String(),
	}

	if scope.HasOpenID() {
		idToken, err := s.tokens.IssueIDToken(token.IDTokenInput{
			ClientID:    client.ID,
			Subject:     code.Subject,
			AuthTime:    code.AuthTime,
			Nonce:       code.Nonce,
			AccessToken: accessToken.Value,
		})
		if err != nil {
			return nil, errors.Wrap(err, "[Service.Token] id token")
		}
		response.IDToken = utils.Ptr(idToken)
	}
	return response, nil
}

func (s *Service) redeemRefreshToken(client *clients.Client, req *oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	old, err := s.repos.Grants.ConsumeRefresh(req.RefreshToken, client.ID)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "refresh token is invalid, expired or already used")
	}

	grantedScope := oauth2.ParseScope(old.Scope)
	scope := grantedScope
	if requested := oauth2.ParseScope(req.Scope); requested != nil {
		if !requested.SubsetOf(grantedScope) {
			return nil, oauth2.NewError(oauth2.ErrInvalidScope, "requested scope exceeds the original grant")
		}
		scope = requested
	}

	// Invalidate the superseded generation's access tokens before minting
	// the replacement; the old bearer must stop working the moment rotation
	// succeeds.
	if err := s.tokens.RevokeLineage(old.LineageID); err != nil {
		return nil, errors.Wrap(err, "[Service.Token] revoke lineage")
	}

	accessToken, err := s.tokens.IssueAccessToken(client.ID, old.Subject, scope, old.LineageID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Token] access token")
	}

	// The rotated token keeps the full originally granted scope; a narrowed
	// redemption does not shrink the lineage.
	rotated, err := s.tokens.RotateRefreshToken(old)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Token] rotate refresh token")
	}

	response := &oauth2.TokenResponse{
		AccessToken:  utils.Ptr(accessToken.Value),
		TokenType:    "Bearer",
		ExpiresIn:    s.tokens.AccessTokenExpirySeconds(),
		RefreshToken: utils.Ptr(rotated.Value),
		Scope:        scope.String(),
	}

	if scope.HasOpenID() {
		idToken, err := s.tokens.IssueIDToken(token.IDTokenInput{
			ClientID: client.ID,
			Subject:  old.Subject,
			// auth_time reflects the original authentication, not the refresh.
			AuthTime:    old.AuthTime,
			Nonce:       old.Nonce,
			AccessToken: accessToken.Value,
		})
		if err != nil {
			return nil, errors.Wrap(err, "[Service.Token] id token")
		}
		response.IDToken = utils.Ptr(idToken)
	}
	return response, nil
}
