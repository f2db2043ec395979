package redis

// Package redis provides Redis-based adapters for the portal.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/publicvoice/portal/internal/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces visitor tokens in Redis.
const DefaultKeyPrefix = "token:"

// DefaultTTL applies to tokens that carry no readable expiry.
const DefaultTTL = 24 * time.Hour

// TokenStoreFactory is a Redis-based token store for production use.
// Each visitor's bearer token lives under <prefix><visitorID>.
type TokenStoreFactory struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// TokenStoreOptions groups optional settings for NewTokenStoreFactory.
type TokenStoreOptions struct {
	Prefix     string
	DefaultTTL time.Duration
	Logger     *slog.Logger
}

// NewTokenStoreFactory creates a Redis-backed TokenStoreFactory.
func NewTokenStoreFactory(client redis.UniversalClient, opts TokenStoreOptions) *TokenStoreFactory {
	f := &TokenStoreFactory{
		client:     client,
		prefix:     opts.Prefix,
		defaultTTL: opts.DefaultTTL,
		logger:     opts.Logger,
		now:        time.Now,
	}
	if f.prefix == "" {
		f.prefix = DefaultKeyPrefix
	}
	if f.defaultTTL <= 0 {
		f.defaultTTL = DefaultTTL
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// ForVisitor implements ports.TokenStoreFactory.
func (f *TokenStoreFactory) ForVisitor(visitorID string) ports.TokenStore {
	return &tokenStore{f: f, key: f.prefix + visitorID}
}

type tokenStore struct {
	f   *TokenStoreFactory
	key string
}

// Get returns the stored token. Redis failures degrade to "no token".
func (s *tokenStore) Get(ctx context.Context) string {
	token, err := s.f.client.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.f.logger.WarnContext(ctx, "token store read failed", "key", s.key, "error", err)
		}
		return ""
	}
	return token
}

// Set stores token with a TTL derived from its exp claim; "" deletes the key.
func (s *tokenStore) Set(ctx context.Context, token string) error {
	if token == "" {
		if err := s.f.client.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	ttl := TokenTTL(token, s.f.defaultTTL, s.f.now())
	if ttl <= 0 {
		// Already expired: make sure nothing stale survives.
		if err := s.f.client.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	if err := s.f.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// TokenTTL returns how long token should be kept. A JWT with an exp claim lives until exp
// (a non-positive result means it is already expired); anything else gets fallback.
// The signature is never verified.
func TokenTTL(token string, fallback time.Duration, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Sub(now)
}
