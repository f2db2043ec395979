package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BackendConfig locates the REST backend that owns users and credentials.
type BackendConfig struct {
	// APIURL is the backend base URL. A trailing slash is trimmed.
	APIURL string `env:"BACKEND_API_URL" envDefault:"http://127.0.0.1:8000"`

	// Timeout bounds every backend call.
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`
}

// Sanitize trims the base URL and rejects values that are not absolute http(s) URLs.
func (b *BackendConfig) Sanitize() error {
	b.APIURL = strings.TrimRight(strings.TrimSpace(b.APIURL), "/")
	u, err := url.Parse(b.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_API_URL %q must be an absolute http(s) URL", b.APIURL)
	}
	if b.Timeout <= 0 {
		b.Timeout = 15 * time.Second
	}
	return nil
}
