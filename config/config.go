package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Token store and session lifecycle configuration
//   - backend.go: REST backend configuration
//   - redis.go: Redis connection configuration
//   - http.go: HTTP server configuration
//   - observability.go: Metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior (template reloading, verbose logs).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// HTTP server configuration
	HTTP HTTPConfig

	// REST backend configuration
	Backend BackendConfig

	// Token store and session configuration
	Auth AuthConfig

	// Redis configuration (used when AUTH_TOKEN_STORE=redis)
	Redis RedisConfig `envPrefix:"REDIS_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() error {
	if err := c.HTTP.Sanitize(); err != nil {
		return err
	}
	if err := c.Backend.Sanitize(); err != nil {
		return err
	}
	c.Auth.Sanitize()
	c.Redis.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
	return nil
}

// UsesRedis reports whether the configured token store needs a Redis connection.
func (c *AppConfig) UsesRedis() bool {
	return c.Auth.TokenStore == TokenStoreRedis
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
