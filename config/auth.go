package config

import (
	"fmt"
	"strings"
	"time"
)

// TokenStoreKind selects where visitor bearer tokens are persisted.
type TokenStoreKind string

const (
	// TokenStoreRedis persists tokens in Redis so they survive restarts.
	TokenStoreRedis TokenStoreKind = "redis"
	// TokenStoreMemory keeps tokens in process memory (development only).
	TokenStoreMemory TokenStoreKind = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for TokenStoreKind.
func (k *TokenStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch TokenStoreKind(v) {
	case TokenStoreRedis, TokenStoreMemory:
		*k = TokenStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid TokenStoreKind: %q (valid options: redis, memory)", v)
	}
}

// AuthConfig groups token persistence and session lifecycle configuration.
type AuthConfig struct {
	// TokenStore determines which token store backend to use.
	TokenStore TokenStoreKind `env:"AUTH_TOKEN_STORE" envDefault:"redis"`

	// TokenTTL is the fallback lifetime for stored tokens whose expiry cannot be read.
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`

	// TokenKeyPrefix namespaces token keys in Redis.
	TokenKeyPrefix string `env:"AUTH_TOKEN_KEY_PREFIX" envDefault:"token:"`

	// SessionIdleTimeout is how long an unused visitor session stays in memory.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// SessionReapInterval is how often idle sessions are evicted.
	SessionReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"1m"`

	// VisitorCookie names the cookie that identifies a browser.
	VisitorCookie string `env:"AUTH_VISITOR_COOKIE" envDefault:"pv_visitor"`
}

// Sanitize applies guardrails to session lifecycle values.
func (a *AuthConfig) Sanitize() {
	if a.TokenStore == "" {
		a.TokenStore = TokenStoreRedis
	}
	if a.TokenTTL <= 0 {
		a.TokenTTL = 24 * time.Hour
	}
	if a.SessionIdleTimeout <= 0 {
		a.SessionIdleTimeout = 30 * time.Minute
	}
	if a.SessionReapInterval <= 0 {
		a.SessionReapInterval = time.Minute
	}
	if a.SessionReapInterval > a.SessionIdleTimeout {
		a.SessionReapInterval = a.SessionIdleTimeout
	}
	if a.VisitorCookie = strings.TrimSpace(a.VisitorCookie); a.VisitorCookie == "" {
		a.VisitorCookie = "pv_visitor"
	}
}
