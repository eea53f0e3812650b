package token

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// IDTokenInput is everything the ID-token claim set is built from. AuthTime
// comes from the session that authenticated the user, never from the issuance
// clock. AccessToken, when non-empty, is the access token issued in the same
// response and triggers the at_hash claim.
type IDTokenInput struct {
	ClientID    string
	Subject     string
	AuthTime    time.Time
	Nonce       string
	AccessToken string
}

// IssueIDToken builds and signs the OIDC ID token claim set.
//
// The at_hash claim is present if and only if an access token is issued in
// the same response: it is the left half of the digest of the access token
// value, using the hash that matches the signing algorithm, base64url
// encoded without padding (OIDC Core §3.1.3.6).
func (m *Manager) IssueIDToken(in IDTokenInput) (string, error) {
	now := m.nowFunc()

	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       in.Subject,
		"aud":       in.ClientID,
		"iat":       now.Unix(),
		"exp":       now.Add(m.idTokenExpiry).Unix(),
		"auth_time": in.AuthTime.Unix(),
	}
	if in.Nonce != "" {
		claims["nonce"] = in.Nonce
	}
	if in.AccessToken != "" {
		claims["at_hash"] = AccessTokenHash(in.AccessToken, m.signer.GetSigningMethod())
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.IssueIDToken] sign")
	}
	return signed, nil
}

// AccessTokenHash computes the at_hash value for an access token under the
// given signing method: left-most half of the matching SHA-2 digest,
// base64url without padding. Unsigned ("none") tokens fall back to SHA-256.
func AccessTokenHash(accessToken string, method jwt.SigningMethod) string {
	var h hash.Hash
	switch method.Alg() {
	case "HS384", "RS384", "ES384", "PS384":
		h = sha512.New384()
	case "HS512", "RS512", "ES512", "PS512":
		h = sha512.New()
	default:
		h = sha256.New()
	}
	h.Write([]byte(accessToken))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
