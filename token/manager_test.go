package token_test

import (
	"context"
	"crypto"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/openauthkit/oidc-provider/grant"
	"github.com/openauthkit/oidc-provider/oauth2"
	"github.com/openauthkit/oidc-provider/token"
)

const (
	testIssuer   = "https://issuer.test"
	testClientID = "consumer-id"
	testSubject  = "alice"
	testNonce    = "1234565635"
	hmacSecret   = "this-is-a-secret"
)

func newTestManager(t *testing.T, signer token.Signer, options ...token.ManagerOption) (*token.Manager, *grant.InMemoryRepo) {
	t.Helper()
	grants := grant.NewInMemoryRepo()
	manager, err := token.New(token.NewInMemoryAccessTokenRepo(), grants, signer, testIssuer, options...)
	require.NoError(t, err)
	return manager, grants
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	manager, _ := newTestManager(t, token.NewHMACSigner(hmacSecret))

	at, err := manager.IssueAccessToken(testClientID, testSubject, oauth2.ParseScope("openid profile"), "lineage-1")
	require.NoError(t, err)
	require.NotEmpty(t, at.Value)
	require.NotEmpty(t, at.JTI)

	record, err := manager.VerifyAccessToken(at.Value)
	require.NoError(t, err)
	require.Equal(t, testSubject, record.Subject)
	require.Equal(t, testClientID, record.ClientID)
	require.Equal(t, "openid profile", record.Scope)
	require.Equal(t, "lineage-1", record.LineageID)
}

func TestVerifyAccessTokenRejectsTampering(t *testing.T) {
	manager, _ := newTestManager(t, token.NewHMACSigner(hmacSecret))

	at, err := manager.IssueAccessToken(testClientID, testSubject, oauth2.ParseScope("openid"), "")
	require.NoError(t, err)

	_, err = manager.VerifyAccessToken(at.Value + "x")
	require.Error(t, err)
	require.Equal(t, oauth2.ErrInvalidToken, oauth2.CodeOf(err))

	_, err = manager.VerifyAccessToken("")
	require.Error(t, err)
}

func TestVerifyAccessTokenRejectsForeignKey(t *testing.T) {
	manager, _ := newTestManager(t, token.NewHMACSigner(hmacSecret))
	other, _ := newTestManager(t, token.NewHMACSigner("a-different-secret"))

	at, err := other.IssueAccessToken(testClientID, testSubject, oauth2.ParseScope("openid"), "")
	require.NoError(t, err)

	_, err = manager.VerifyAccessToken(at.Value)
	require.Error(t, err)
	require.Equal(t, oauth2.ErrInvalidToken, oauth2.CodeOf(err))
}

func TestRevokeLineageInvalidatesAccessTokens(t *testing.T) {
	manager, _ := newTestManager(t, token.NewHMACSigner(hmacSecret))

	at, err := manager.IssueAccessToken(testClientID, testSubject, oauth2.ParseScope("openid"), "lineage-1")
	require.NoError(t, err)

	_, err = manager.VerifyAccessToken(at.Value)
	require.NoError(t, err)

	require.NoError(t, manager.RevokeLineage("lineage-1"))

	// The JWS still checks out cryptographically; only the server-side
	// record is gone. Verification must fail anyway.
	_, err = manager.VerifyAccessToken(at.Value)
	require.Error(t, err)
	require.Equal(t, oauth2.ErrInvalidToken, oauth2.CodeOf(err))
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	now := time.Now()
	currentTime := now
	manager, _ := newTestManager(t, token.NewHMACSigner(hmacSecret),
		token.WithNowFunc(func() time.Time { return currentTime }),
		token.WithTokenExpiry(time.Minute, time.Hour, time.Hour),
	)

	at, err := manager.IssueAccessToken(testClientID, testSubject, oauth2.ParseScope("openid"), "")
	require.NoError(t, err)

	currentTime = now.Add(2 * time.Minute)
	_, err = manager.VerifyAccessToken(at.Value)
	require.Error(t, err)
	require.Equal(t, oauth2.ErrInvalidToken, oauth2.CodeOf(err))
}

func TestRefreshTokenRotation(t *testing.T) {
	manager, grants := newTestManager(t, token.NewHMACSigner(hmacSecret))
	authTime := time.Now().Add(-time.Minute).Truncate(time.Second)

	first, err := manager.IssueRefreshToken(testClientID, testSubject, oauth2.ParseScope("openid"), testNonce, authTime, "lineage-1")
	require.NoError(t, err)
	require.Equal(t, 0, first.Generation)
	require.Equal(t, "lineage-1", first.LineageID)

	// Rotation requires the predecessor to have been consumed first.
	_, err = manager.RotateRefreshToken(first)
	require.Error(t, err)

	consumed, err := grants.ConsumeRefresh(first.Value, testClientID)
	require.NoError(t, err)

	second, err := manager.RotateRefreshToken(consumed)
	require.NoError(t, err)
	require.Equal(t, 1, second.Generation)
	require.Equal(t, "lineage-1", second.LineageID)
	require.Equal(t, testNonce, second.Nonce)
	require.Equal(t, authTime, second.AuthTime)
	require.NotEqual(t, first.Value, second.Value)

	// The consumed predecessor cannot be redeemed again.
	_, err = grants.ConsumeRefresh(first.Value, testClientID)
	require.ErrorIs(t, err, grant.ErrConsumed)
}

func TestIssueIDTokenVerifiesWithRelyingPartyLibrary(t *testing.T) {
	keyPair, err := token.GenerateRSAKeyPair("test-key", 2048)
	require.NoError(t, err)
	manager, _ := newTestManager(t, token.NewKeyPairSigner(keyPair))

	authTime := time.Now().Add(-30 * time.Second)
	at, err := manager.IssueAccessToken(testClientID, testSubject, oauth2.ParseScope("openid"), "")
	require.NoError(t, err)

	raw, err := manager.IssueIDToken(token.IDTokenInput{
		ClientID:    testClientID,
		Subject:     testSubject,
		AuthTime:    authTime,
		Nonce:       testNonce,
		AccessToken: at.Value,
	})
	require.NoError(t, err)

	verifier := oidc.NewVerifier(testIssuer, &oidc.StaticKeySet{
		PublicKeys: []crypto.PublicKey{keyPair.PublicKey},
	}, &oidc.Config{ClientID: testClientID})

	idToken, err := verifier.Verify(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, testSubject, idToken.Subject)
	require.Equal(t, []string{testClientID}, idToken.Audience)
	require.Equal(t, testNonce, idToken.Nonce)

	var claims struct {
		AuthTime int64 `json:"auth_time"`
	}
	require.NoError(t, idToken.Claims(&claims))
	require.Equal(t, authTime.Unix(), claims.AuthTime)

	// at_hash binds the ID token to the access token issued alongside it.
	require.NoError(t, idToken.VerifyAccessToken(at.Value))
	require.Error(t, idToken.VerifyAccessToken("some-other-token"))
}

func TestIssueIDTokenWithoutAccessTokenOmitsAtHash(t *testing.T) {
	manager, _ := newTestManager(t, token.NewHMACSigner(hmacSecret))

	raw, err := manager.IssueIDToken(token.IDTokenInput{
		ClientID: testClientID,
		Subject:  testSubject,
		AuthTime: time.Now(),
		Nonce:    testNonce,
	})
	require.NoError(t, err)

	claims := decodeClaims(t, raw, token.NewHMACSigner(hmacSecret))
	_, hasAtHash := claims["at_hash"]
	require.False(t, hasAtHash)
	require.Equal(t, testNonce, claims["nonce"])
	require.Contains(t, claims, "auth_time")
}

func TestIssueIDTokenOmitsEmptyNonce(t *testing.T) {
	manager, _ := newTestManager(t, token.NewHMACSigner(hmacSecret))

	raw, err := manager.IssueIDToken(token.IDTokenInput{
		ClientID: testClientID,
		Subject:  testSubject,
		AuthTime: time.Now(),
	})
	require.NoError(t, err)

	claims := decodeClaims(t, raw, token.NewHMACSigner(hmacSecret))
	_, hasNonce := claims["nonce"]
	require.False(t, hasNonce)
}

func TestAccessTokenHash(t *testing.T) {
	// Left half of the digest: 16 bytes under SHA-256, 24 under SHA-384,
	// base64url without padding.
	h256 := token.AccessTokenHash("jHkWEdUXMU1BwAsC4vtUsZwnNvTIxEl0z9K3vx5KF0Y", jwt.SigningMethodRS256)
	require.Len(t, h256, 22)
	require.NotContains(t, h256, "=")

	h384 := token.AccessTokenHash("jHkWEdUXMU1BwAsC4vtUsZwnNvTIxEl0z9K3vx5KF0Y", jwt.SigningMethodRS384)
	require.Len(t, h384, 32)

	require.NotEqual(t, h256, token.AccessTokenHash("another-token", jwt.SigningMethodRS256))
}

func TestNoneSignerProducesUnsignedTokens(t *testing.T) {
	manager, _ := newTestManager(t, token.NewNoneSigner())

	raw, err := manager.IssueIDToken(token.IDTokenInput{
		ClientID: testClientID,
		Subject:  testSubject,
		AuthTime: time.Now(),
		Nonce:    testNonce,
	})
	require.NoError(t, err)

	claims := decodeClaims(t, raw, token.NewNoneSigner())
	require.Equal(t, testSubject, claims["sub"])
}

func decodeClaims(t *testing.T, raw string, signer token.Signer) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(raw, signer.GetVerificationKey,
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}))
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	return claims
}
