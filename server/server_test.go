package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"

	"github.com/openauthkit/oidc-provider/auth"
	"github.com/openauthkit/oidc-provider/auth/consentrepo"
	"github.com/openauthkit/oidc-provider/clients"
	"github.com/openauthkit/oidc-provider/grant"
	"github.com/openauthkit/oidc-provider/internal/config"
	oauth2core "github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/server"
	"github.com/openauthkit/oidc-provider/session"
	"github.com/openauthkit/oidc-provider/token"
)

const (
	testClientID     = "consumer-id"
	testClientSecret = "this-is-a-secret"
	testRedirectURI  = "http://www.blah.apache.org"
	testSubject      = "alice"
	testNonce        = "1234565635"
)

// testConfig pins the issuer to the test server's URL so discovery-based
// verification works against the live endpoints.
type testConfig struct {
	config.EnvVars
	config.OAuth
	config.Security
	issuer string
}

func (c testConfig) GetIssuer() string { return c.issuer }

// delegatingHandler lets the httptest server start before the Server exists,
// so the issuer can carry its final URL.
type delegatingHandler struct {
	h http.Handler
}

func (d *delegatingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.h.ServeHTTP(w, r)
}

type serverFixture struct {
	ts *httptest.Server
}

func setupServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	delegate := &delegatingHandler{}
	ts := httptest.NewServer(delegate)
	t.Cleanup(ts.Close)

	secretHash, err := clients.HashSecret(testClientSecret)
	require.NoError(t, err)

	registry := clients.NewRegistry(&clients.Client{
		ID:            testClientID,
		SecretHash:    secretHash,
		RedirectURIs:  []string{testRedirectURI},
		ResponseTypes: []string{"code", "id_token", "token id_token", "code id_token"},
		GrantTypes:    []oauth2core.GrantType{oauth2core.GrantAuthorizationCode, oauth2core.GrantRefreshToken},
		Scopes:        []string{"openid", "profile", "email"},
	})

	keyPair, err := token.GenerateRSAKeyPair("test-key", 2048)
	require.NoError(t, err)

	grants := grant.NewInMemoryRepo()
	tokens, err := token.New(token.NewInMemoryAccessTokenRepo(), grants, token.NewKeyPairSigner(keyPair), ts.URL)
	require.NoError(t, err)

	authSvc, err := auth.NewService(auth.Repos{
		Clients:  registry,
		Grants:   grants,
		Consents: consentrepo.NewInMemoryRepo(),
	}, tokens)
	require.NoError(t, err)

	srv, err := server.New(testConfig{issuer: ts.URL}, authSvc, tokens, func(*http.Request) *session.Context {
		return &session.Context{Subject: testSubject, AuthTime: time.Now().Add(-time.Minute)}
	})
	require.NoError(t, err)
	delegate.h = srv

	return &serverFixture{ts: ts}
}

// httpClient never follows redirects: the authorization response redirect
// targets the (unroutable) registered client URI and must be inspected, not
// chased.
func (f *serverFixture) httpClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *serverFixture) oauthConfig() *xoauth2.Config {
	return &xoauth2.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURI,
		Scopes:       []string{"openid"},
		Endpoint: xoauth2.Endpoint{
			AuthURL:  f.ts.URL + server.RouteOAuth2Authorize,
			TokenURL: f.ts.URL + server.RouteOAuth2Token,
		},
	}
}

var antiForgeryPattern = regexp.MustCompile(`name="session_authenticity_token" value="([^"]+)"`)

// runConsentFlow walks authorize and the consent form and returns the
// authorization code delivered on the final redirect.
func (f *serverFixture) runConsentFlow(t *testing.T, authCodeURL string) string {
	t.Helper()
	client := f.httpClient()

	resp, err := client.Get(authCodeURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	match := antiForgeryPattern.FindSubmatch(body)
	require.NotNil(t, match, "consent form should carry the anti-forgery token")

	form := url.Values{
		"session_authenticity_token": {string(match[1])},
		"client_id":                  {testClientID},
		"redirect_uri":               {testRedirectURI},
		"scope":                      {"openid"},
		"response_type":              {"code"},
		"state":                      {"st-1"},
		"oauthDecision":              {"allow"},
	}
	resp, err = client.PostForm(f.ts.URL+server.RouteOAuth2Decision, form)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location.String(), testRedirectURI))
	require.Equal(t, "st-1", location.Query().Get("state"))

	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestDiscoveryDocument(t *testing.T) {
	f := setupServerFixture(t)

	resp, err := http.Get(f.ts.URL + server.RouteWellKnownOpenIDConfig)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), f.ts.URL+server.RouteOAuth2Token)
}

func TestAuthorizationCodeFlowOverHTTP(t *testing.T) {
	f := setupServerFixture(t)
	conf := f.oauthConfig()
	ctx := context.Background()

	code := f.runConsentFlow(t, conf.AuthCodeURL("st-1", xoauth2.SetAuthURLParam("nonce", testNonce)))

	tok, err := conf.Exchange(ctx, code)
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.RefreshToken)
	require.Equal(t, "Bearer", tok.Type())

	// Verify the ID token through discovery and the live JWKS endpoint.
	rawIDToken, ok := tok.Extra("id_token").(string)
	require.True(t, ok)

	provider, err := oidc.NewProvider(ctx, f.ts.URL)
	require.NoError(t, err)
	idToken, err := provider.Verifier(&oidc.Config{ClientID: testClientID}).Verify(ctx, rawIDToken)
	require.NoError(t, err)
	require.Equal(t, testSubject, idToken.Subject)
	require.Equal(t, testNonce, idToken.Nonce)

	// The code is single use.
	_, err = conf.Exchange(ctx, code)
	require.Error(t, err)

	claims := fetchUserInfo(t, f, tok.AccessToken, http.StatusOK)
	require.Equal(t, testSubject, claims["sub"])
	require.Equal(t, testClientID, claims["aud"])
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	f := setupServerFixture(t)
	conf := f.oauthConfig()
	ctx := context.Background()

	code := f.runConsentFlow(t, conf.AuthCodeURL("st-1"))
	tok, err := conf.Exchange(ctx, code)
	require.NoError(t, err)

	// Force the token source down the refresh path.
	stale := &xoauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	fresh, err := conf.TokenSource(ctx, stale).Token()
	require.NoError(t, err)
	require.NotEqual(t, tok.AccessToken, fresh.AccessToken)
	require.NotEqual(t, tok.RefreshToken, fresh.RefreshToken)

	// The superseded access token stops working; the fresh one resolves.
	fetchUserInfo(t, f, tok.AccessToken, http.StatusUnauthorized)
	claims := fetchUserInfo(t, f, fresh.AccessToken, http.StatusOK)
	require.Equal(t, testSubject, claims["sub"])

	// The spent refresh token is dead.
	reuse := &xoauth2.Token{RefreshToken: tok.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	_, err = conf.TokenSource(ctx, reuse).Token()
	require.Error(t, err)
}

func TestTokenEndpointRejectsBadSecret(t *testing.T) {
	f := setupServerFixture(t)
	conf := f.oauthConfig()
	conf.ClientSecret = "wrong"

	code := f.runConsentFlow(t, conf.AuthCodeURL("st-1"))
	_, err := conf.Exchange(context.Background(), code)
	require.Error(t, err)

	var retrieveErr *xoauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	require.Equal(t, http.StatusUnauthorized, retrieveErr.Response.StatusCode)
}

func TestUserInfoWithoutToken(t *testing.T) {
	f := setupServerFixture(t)
	fetchUserInfo(t, f, "", http.StatusUnauthorized)
}

func TestAuthorizeErrorRedirect(t *testing.T) {
	f := setupServerFixture(t)
	client := f.httpClient()

	// Implicit request without a nonce comes back as an error in the
	// fragment.
	authURL := f.ts.URL + server.RouteOAuth2Authorize +
		"?client_id=" + testClientID +
		"&redirect_uri=" + url.QueryEscape(testRedirectURI) +
		"&response_type=" + url.QueryEscape("token id_token") +
		"&scope=openid&state=st-2"
	resp, err := client.Get(authURL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location := resp.Header.Get("Location")
	_, fragment, found := strings.Cut(location, "#")
	require.True(t, found)
	values, err := url.ParseQuery(fragment)
	require.NoError(t, err)
	require.Equal(t, "invalid_request", values.Get("error"))
	require.Equal(t, "st-2", values.Get("state"))
}

func TestAuthorizeUnknownClientInline(t *testing.T) {
	f := setupServerFixture(t)
	client := f.httpClient()

	resp, err := client.Get(f.ts.URL + server.RouteOAuth2Authorize + "?client_id=nobody&redirect_uri=x&response_type=code")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthorizeRequestObjectMismatchRejected(t *testing.T) {
	f := setupServerFixture(t)
	client := f.httpClient()

	requestObject, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"iss":           testClientID,
		"response_type": "token",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	query := url.Values{
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"response_type": {"code"},
		"scope":         {"openid"},
		"request":       {requestObject},
	}
	resp, err := client.Get(f.ts.URL + server.RouteOAuth2Authorize + "?" + query.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_request", body["error"])
}

func fetchUserInfo(t *testing.T, f *serverFixture, accessToken string, wantStatus int) map[string]any {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+server.RouteUserInfo, nil)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	if wantStatus != http.StatusOK {
		return nil
	}
	var claims map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&claims))
	return claims
}
