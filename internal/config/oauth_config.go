package config

import "time"

type OAuthConfig interface {
	GetAuthCodeTimeout() time.Duration
	GetPendingAuthTimeout() time.Duration
	GetCodeGenerationLength() int
	GetRefreshTokenLength() int
	GetAccessTokenExpiry() time.Duration
	GetIDTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// Authorization codes are deliberately short-lived; expiry is checked at
// consumption time, never inferred from presence.
func (OAuth) GetAuthCodeTimeout() time.Duration {
	return 5 * time.Minute
}

// Pending consent entries expire with the same discipline as codes. An
// abandoned consent screen simply times out; no cancellation signal exists.
func (OAuth) GetPendingAuthTimeout() time.Duration {
	return 10 * time.Minute
}

func (OAuth) GetCodeGenerationLength() int {
	return 32 // bytes of entropy before base64url encoding
}

func (OAuth) GetRefreshTokenLength() int {
	return 32
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (OAuth) GetIDTokenExpiry() time.Duration {
	return time.Hour
}

func (OAuth) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour
}
