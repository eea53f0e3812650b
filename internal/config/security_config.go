package config

const (
	signerTypeVar = "SIGNER_TYPE"
	hmacSecretVar = "HMAC_SECRET"
	issuerVar     = "ISSUER"
)

type SecurityConfig interface {
	// GetSignerType selects the JWS algorithm family: "HS256", "RS256",
	// "ES256" or "none". "none" produces unsigned tokens and exists only for
	// restricted test/interop setups; it must never be a production default.
	GetSignerType() string
	GetHMACSecret() string
	GetIssuer() string
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSignerType() string {
	return GetEnv(signerTypeVar, "RS256")
}

func (Security) GetHMACSecret() string {
	return GetEnv(hmacSecretVar, "")
}

func (Security) GetIssuer() string {
	return GetEnv(issuerVar, EnvVars{}.GetBaseURL())
}
