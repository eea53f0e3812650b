package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openauthkit/oidc-provider/auth"
	"github.com/openauthkit/oidc-provider/clients"
	"github.com/openauthkit/oidc-provider/internal/utils"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/session"
)

func validationClient() *clients.Client {
	return &clients.Client{
		ID:            testClientID,
		RedirectURIs:  []string{testRedirectURI},
		ResponseTypes: []string{"code", "id_token", "token id_token", "code id_token"},
		GrantTypes:    []oauth2.GrantType{oauth2.GrantAuthorizationCode, oauth2.GrantRefreshToken},
		Scopes:        []string{"openid", "profile", "email"},
	}
}

func TestValidate(t *testing.T) {
	now := time.Now()
	freshSession := &session.Context{Subject: testSubject, AuthTime: now.Add(-time.Minute)}
	staleSession := &session.Context{Subject: testSubject, AuthTime: now.Add(-time.Hour)}

	tests := []struct {
		name     string
		params   oauth2.AuthorizationParameters
		sess     *session.Context
		wantCode oauth2.ErrorCode
	}{
		{
			name: "valid code request",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code",
				Scope:        "openid",
			},
			sess: freshSession,
		},
		{
			name: "unregistered redirect uri",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  "http://evil.example/cb",
				ResponseType: "code",
				Scope:        "openid",
			},
			sess:     freshSession,
			wantCode: oauth2.ErrInvalidRequest,
		},
		{
			name: "empty response type",
			params: oauth2.AuthorizationParameters{
				ClientID:    testClientID,
				RedirectURI: testRedirectURI,
				Scope:       "openid",
			},
			sess:     freshSession,
			wantCode: oauth2.ErrInvalidRequest,
		},
		{
			name: "bare token response type",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "token",
				Scope:        "openid",
			},
			sess:     freshSession,
			wantCode: oauth2.ErrUnsupportedResponseType,
		},
		{
			name: "implicit without nonce",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "id_token",
				Scope:        "openid",
			},
			sess:     freshSession,
			wantCode: oauth2.ErrInvalidRequest,
		},
		{
			name: "implicit with nonce",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "token id_token",
				Scope:        "openid",
				Nonce:        testNonce,
			},
			sess: freshSession,
		},
		{
			name: "hybrid without nonce is allowed",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code id_token",
				Scope:        "openid",
			},
			sess: freshSession,
		},
		{
			name: "scope exceeding registration",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code",
				Scope:        "openid admin",
			},
			sess:     freshSession,
			wantCode: oauth2.ErrInvalidScope,
		},
		{
			name: "prompt none without session",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code",
				Scope:        "openid",
				Prompt:       "none",
			},
			wantCode: oauth2.ErrLoginRequired,
		},
		{
			name: "prompt none with interactive value",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code",
				Scope:        "openid",
				Prompt:       "none login",
			},
			sess:     freshSession,
			wantCode: oauth2.ErrInvalidRequest,
		},
		{
			name: "max_age with fresh session",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code",
				Scope:        "openid",
				MaxAge:       utils.Ptr(int64(300)),
			},
			sess: freshSession,
		},
		{
			name: "max_age with stale session",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code",
				Scope:        "openid",
				MaxAge:       utils.Ptr(int64(300)),
			},
			sess:     staleSession,
			wantCode: oauth2.ErrLoginRequired,
		},
		{
			name: "max_age without session",
			params: oauth2.AuthorizationParameters{
				ClientID:     testClientID,
				RedirectURI:  testRedirectURI,
				ResponseType: "code",
				Scope:        "openid",
				MaxAge:       utils.Ptr(int64(300)),
			},
			wantCode: oauth2.ErrLoginRequired,
		},
	}

	validator := auth.NewValidator(auth.WithValidatorNowFunc(func() time.Time { return now }))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vr, oerr := validator.Validate(&tt.params, validationClient(), tt.sess)
			if tt.wantCode != "" {
				require.NotNil(t, oerr)
				require.Equal(t, tt.wantCode, oerr.Code)
				return
			}
			require.Nil(t, oerr)
			require.NotNil(t, vr)
			require.Equal(t, tt.params.RedirectURI, vr.RedirectURI)
		})
	}
}

func TestValidateRejectsUnregisteredResponseType(t *testing.T) {
	client := validationClient()
	client.ResponseTypes = []string{"code"}

	validator := auth.NewValidator()
	_, oerr := validator.Validate(&oauth2.AuthorizationParameters{
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		ResponseType: "token id_token",
		Scope:        "openid",
		Nonce:        testNonce,
	}, client, &session.Context{Subject: testSubject, AuthTime: time.Now()})

	require.NotNil(t, oerr)
	require.Equal(t, oauth2.ErrUnauthorizedClient, oerr.Code)
}
