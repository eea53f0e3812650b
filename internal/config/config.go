package config

// Config aggregates the per-concern configuration interfaces consumed by the
// server and the authorization core.
type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
}

func New() Config {
	return mainConfig{}
}
