// Package backend is the REST client for the PublicVoice API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	apperrors "github.com/publicvoice/portal/internal/errors"
	"github.com/publicvoice/portal/internal/ports"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// DefaultTimeout bounds every backend request.
const DefaultTimeout = 15 * time.Second

const maxErrorBody = 64 << 10

var _ ports.AuthAPI = (*Client)(nil)

// Config configures the backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the transport (tests); its Timeout is replaced by Timeout when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements ports.AuthAPI over HTTP+JSON.
type Client struct {
	baseURL string
	timeout time.Duration
	base    http.RoundTripper
	logger  *slog.Logger
}

// NewClient builds a backend client. A trailing slash on BaseURL is dropped.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var base http.RoundTripper = http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		base:    base,
		logger:  logger.With("component", "backend"),
	}
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// Login exchanges credentials for a bearer token. An empty access_token is returned as-is.
func (c *Client) Login(ctx context.Context, in ports.LoginInput) (string, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest(in), &out)
	if err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. The created user in the response is not used.
func (c *Client) Register(ctx context.Context, in ports.RegisterInput) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", "", registerRequest(in), nil)
}

// Me resolves the identity bound to token. A body that decodes to no usable identity
// (unknown or missing role, no id, no email, `{}` or `null`) is Malformed.
func (c *Client) Me(ctx context.Context, token string) (domainauth.UserIdentity, error) {
	var out domainauth.UserIdentity
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return domainauth.UserIdentity{}, err
	}
	if err := out.Validate(); err != nil {
		return domainauth.UserIdentity{}, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "invalid identity response")
	}
	return out, nil
}

// ForgotPassword asks the backend to email a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.do(ctx, http.MethodPost, "/api/auth/forgot-password", "", body, nil)
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword confirms a reset with the emailed token.
func (c *Client) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	return c.do(ctx, http.MethodPost, "/api/auth/reset-password", "", resetRequest(in), nil)
}

// UpdateProfile patches the caller's profile.
func (c *Client) UpdateProfile(ctx context.Context, token string, in ports.ProfileUpdate) error {
	body := struct {
		FullName string `json:"full_name"`
	}{FullName: in.FullName}
	return c.do(ctx, http.MethodPatch, "/api/users/me", token, body, nil)
}

// httpClient returns a client bound to token. Each call gets its own static token source,
// so a request can never pick up a token that changed after the call started.
func (c *Client) httpClient(token string) *http.Client {
	if token == "" {
		return &http.Client{Transport: c.base, Timeout: c.timeout}
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: c.base},
		Timeout:   c.timeout,
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient(token).Do(req)
	if err != nil {
		return apperrors.MapTransportError(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := ParseDetail(raw)
		c.logger.DebugContext(ctx, "backend error response",
			"method", method, "path", path, "status", resp.StatusCode)
		return apperrors.MapStatus(resp.StatusCode, detail)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeMalformed, fmt.Sprintf("decode %s response", path))
	}
	return nil
}

type validationItem struct {
	Msg string `json:"msg"`
}

// ParseDetail extracts the FastAPI-style "detail" from an error body:
//   - a string is returned verbatim
//   - a list of validation items yields their msg values joined with ", "
//     (or "Request failed" when none carry a message)
//   - any other JSON value is returned as its raw text.
//
// A body without detail yields "".
func ParseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	raw := bytes.TrimSpace(envelope.Detail)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []validationItem
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) == 0 {
			return "Request failed"
		}
		return strings.Join(msgs, ", ")
	}

	return string(raw)
}
