package token

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/openauthkit/oidc-provider/grant"
	"github.com/openauthkit/oidc-provider/oauth2"
)

// AccessToken is a freshly minted access token: the compact JWS handed to the
// client plus the bookkeeping the server keeps about it.
type AccessToken struct {
	Value     string
	JTI       string
	ExpiresAt time.Time
}

// Manager mints access tokens, ID tokens and rotating refresh tokens. Access
// token JWTs are backed by server-side records so that rotation and
// revocation actually bite at the userinfo endpoint; refresh tokens are
// opaque random values living in the grant store.
type Manager struct {
	accessRepo         AccessTokenRepo
	grantRepo          grant.Repo
	signer             Signer
	issuer             string
	accessTokenExpiry  time.Duration
	idTokenExpiry      time.Duration
	refreshTokenExpiry time.Duration
	refreshTokenLength int
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

// WithTokenExpiry overrides the default token lifetimes.
func WithTokenExpiry(accessTokenExpiry, idTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.idTokenExpiry = idTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

// WithRefreshTokenLength overrides the refresh token entropy in bytes.
func WithRefreshTokenLength(length int) ManagerOption {
	return func(m *Manager) {
		m.refreshTokenLength = length
	}
}

// WithNowFunc overrides the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// New creates a token Manager.
func New(accessRepo AccessTokenRepo, grantRepo grant.Repo, signer Signer, issuer string, options ...ManagerOption) (*Manager, error) {
	if accessRepo == nil {
		return nil, errors.New("[token.New] access token repo is required")
	}
	if grantRepo == nil {
		return nil, errors.New("[token.New] grant repo is required")
	}
	if signer == nil {
		return nil, errors.New("[token.New] signer is required")
	}

	m := &Manager{
		accessRepo:         accessRepo,
		grantRepo:          grantRepo,
		signer:             signer,
		issuer:             issuer,
		accessTokenExpiry:  15 * time.Minute,
		idTokenExpiry:      time.Hour,
		refreshTokenExpiry: 7 * 24 * time.Hour,
		refreshTokenLength: 32,
		nowFunc:            time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// AccessTokenExpirySeconds is the expires_in hint for token responses.
func (m *Manager) AccessTokenExpirySeconds() int {
	return int(m.accessTokenExpiry.Seconds())
}

// Signer exposes the configured signer, e.g. for the JWKS endpoint.
func (m *Manager) Signer() Signer {
	return m.signer
}

// IssueAccessToken mints a signed access token for the subject and records it
// server-side under the given refresh lineage (empty for lineage-less
// issuance, e.g. the implicit flow).
func (m *Manager) IssueAccessToken(clientID, subject string, scope oauth2.Scope, lineageID string) (*AccessToken, error) {
	now := m.nowFunc()
	expiresAt := now.Add(m.accessTokenExpiry)
	jti := uuid.New().String()

	claims := jwt.MapClaims{
		"iss":   m.issuer,
		"sub":   subject,
		"aud":   clientID,
		"scope": scope.String(),
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"jti":   jti,
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.IssueAccessToken] sign")
	}

	if err := m.accessRepo.Upsert(&AccessTokenRecord{
		JTI:       jti,
		ClientID:  clientID,
		Subject:   subject,
		Scope:     scope.String(),
		LineageID: lineageID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, errors.Wrap(err, "[Manager.IssueAccessToken] record upsert")
	}

	return &AccessToken{Value: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// IssueRefreshToken mints a generation-0 opaque refresh token starting the
// given lineage, and stores it in the grant store.
func (m *Manager) IssueRefreshToken(clientID, subject string, scope oauth2.Scope, nonce string, authTime time.Time, lineageID string) (*grant.RefreshToken, error) {
	if lineageID == "" {
		lineageID = uuid.New().String()
	}
	return m.storeRefreshToken(&grant.RefreshToken{
		ClientID:   clientID,
		Subject:    subject,
		Scope:      scope.String(),
		Nonce:      nonce,
		AuthTime:   authTime,
		LineageID:  lineageID,
		Generation: 0,
	})
}

// RotateRefreshToken mints the successor of a just-consumed refresh token:
// same lineage, subject and original grant metadata, generation+1. The
// predecessor must already be consumed; generations only ever move forward.
func (m *Manager) RotateRefreshToken(prev *grant.RefreshToken) (*grant.RefreshToken, error) {
	if prev == nil || !prev.Consumed {
		return nil, errors.New("[Manager.RotateRefreshToken] rotation requires a consumed predecessor")
	}
	return m.storeRefreshToken(&grant.RefreshToken{
		ClientID:   prev.ClientID,
		Subject:    prev.Subject,
		Scope:      prev.Scope,
		Nonce:      prev.Nonce,
		AuthTime:   prev.AuthTime,
		LineageID:  prev.LineageID,
		Generation: prev.Generation + 1,
	})
}

func (m *Manager) storeRefreshToken(rt *grant.RefreshToken) (*grant.RefreshToken, error) {
	value, err := randomURLSafe(m.refreshTokenLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.storeRefreshToken] rand")
	}
	rt.Value = value
	rt.ExpiresAt = m.nowFunc().Add(m.refreshTokenExpiry)
	if err := m.grantRepo.PutRefresh(rt); err != nil {
		return nil, errors.Wrap(err, "[Manager.storeRefreshToken] store")
	}
	return rt, nil
}

// RevokeLineage invalidates every access token minted for a refresh lineage.
// Called on rotation so superseded bearers stop working immediately.
func (m *Manager) RevokeLineage(lineageID string) error {
	return m.accessRepo.DeleteByLineage(lineageID)
}

// VerifyAccessToken validates a bearer access token: signature, expiry, and
// the presence of its server-side record. A token whose record is gone
// (rotated away, revoked) is invalid no matter what the JWS says.
func (m *Manager) VerifyAccessToken(raw string) (*AccessTokenRecord, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "missing bearer token")
	}

	parsed, err := jwt.Parse(raw, m.signer.GetVerificationKey, jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}))
	if err != nil || !parsed.Valid {
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "token verification failed")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "malformed claims")
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "token missing jti")
	}

	record, err := m.accessRepo.Get(jti)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "token revoked or unknown")
	}
	if m.nowFunc().After(record.ExpiresAt) {
		_ = m.accessRepo.Delete(jti)
		return nil, oauth2.NewError(oauth2.ErrInvalidToken, "token expired")
	}
	return record, nil
}

// randomURLSafe returns n bytes from a CSPRNG, base64url-encoded without
// padding.
func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
