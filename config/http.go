package config

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for the visitor cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CookieSecure marks the visitor cookie Secure. Enable behind TLS.
	CookieSecure bool `env:"APP_COOKIE_SECURE" envDefault:"false"`

	// CompressionEnabled enables gzip compression for HTML and JSON responses.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	// Default is 6 (standard gzip default).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to HTTP configuration values.
// A cookie domain that is itself a public suffix is rejected: browsers drop such cookies.
func (h *HTTPConfig) Sanitize() error {
	// Clamp compression level to valid gzip range (1-9)
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}

	h.CookieDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."))
	if h.CookieDomain == "" {
		return nil
	}
	if IsPublicSuffix(h.CookieDomain) {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q is a public suffix", h.CookieDomain)
	}
	return nil
}

// IsPublicSuffix reports whether domain is a public suffix such as "com" or "co.uk".
// Single-label hosts like "localhost" are not treated as suffixes.
func IsPublicSuffix(domain string) bool {
	if !strings.Contains(domain, ".") {
		return false
	}
	suffix, _ := publicsuffix.PublicSuffix(domain)
	return suffix == domain
}
