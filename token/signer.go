package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer encodes and verifies compact JWS tokens. The signing algorithm is a
// server-level configuration choice; everything minting or verifying a token
// goes through this interface.
type Signer interface {
	// Sign creates a signed compact JWS from claims.
	Sign(claims jwt.MapClaims) (string, error)

	// GetVerificationKey returns the key material for verifying a parsed
	// token, rejecting tokens whose algorithm does not match the signer.
	GetVerificationKey(token *jwt.Token) (any, error)

	// GetSigningMethod returns the JWS algorithm in use. The ID-token
	// at_hash digest is derived from it.
	GetSigningMethod() jwt.SigningMethod
}

// HMACsigner implements Signer using symmetric HMAC-SHA256.
type HMACsigner struct {
	secret []byte
}

func NewHMACSigner(secret string) *HMACsigner {
	return &HMACsigner{secret: []byte(secret)}
}

func (h *HMACsigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *HMACsigner) GetVerificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACsigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// KeyPairSigner implements Signer using RSA or ECDSA.
type KeyPairSigner struct {
	keyPair *KeyPair
}

func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{keyPair: keyPair}
}

func (a *KeyPairSigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(a.keyPair.GetSigningMethod(), claims)
	t.Header["kid"] = a.keyPair.KeyID

	signed, err := t.SignedString(a.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with asymmetric key")
	}
	return signed, nil
}

func (a *KeyPairSigner) GetVerificationKey(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		return a.keyPair.PublicKey, nil
	default:
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
}

func (a *KeyPairSigner) GetSigningMethod() jwt.SigningMethod {
	return a.keyPair.GetSigningMethod()
}

// GetJWKS returns the JSON Web Key Set for the signing key.
func (a *KeyPairSigner) GetJWKS() (*JWKS, error) {
	jwk, err := a.keyPair.ToJWK()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert key to JWK")
	}
	return &JWKS{Keys: []JWK{*jwk}}, nil
}

// NoneSigner produces unsigned tokens with alg "none". It exists only for
// explicitly configured test/interop modes and must never be a production
// default.
type NoneSigner struct{}

func NewNoneSigner() NoneSigner {
	return NoneSigner{}
}

func (NoneSigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := t.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode unsigned token")
	}
	return signed, nil
}

func (NoneSigner) GetVerificationKey(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodNone {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return jwt.UnsafeAllowNoneSignatureType, nil
}

func (NoneSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodNone
}
