package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/publicvoice/portal/config"
	"github.com/publicvoice/portal/internal/adapters/backend"
	"github.com/publicvoice/portal/internal/adapters/memstore"
	redisstore "github.com/publicvoice/portal/internal/adapters/redis"
	"github.com/publicvoice/portal/internal/observability/statsd"
	"github.com/publicvoice/portal/internal/ports"
	"github.com/publicvoice/portal/internal/service"
)

// SessionDeps groups the infrastructure the session registry is built from.
type SessionDeps struct {
	Config  *config.AppConfig
	Redis   redis.UniversalClient // Required when the token store is redis
	Metrics statsd.Sink           // Optional
	Logger  *slog.Logger
}

// NewTokenStoreFactory picks the token store named by AUTH_TOKEN_STORE.
//
//nolint:ireturn // the concrete store is chosen by configuration.
func NewTokenStoreFactory(cfg config.AuthConfig, client redis.UniversalClient, logger *slog.Logger) (ports.TokenStoreFactory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		if client == nil {
			return nil, fmt.Errorf("token store %q requires a redis client", cfg.TokenStore)
		}
		return redisstore.NewTokenStoreFactory(client, redisstore.TokenStoreOptions{
			Prefix:     cfg.TokenKeyPrefix,
			DefaultTTL: cfg.TokenTTL,
			Logger:     logger,
		}), nil
	case config.TokenStoreMemory:
		logger.Warn("using in-memory token store; sessions do not survive a restart")
		return memstore.NewTokenStoreFactory(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// NewSessionRegistry wires the backend client and token store into a registry.
func NewSessionRegistry(deps SessionDeps) (*service.SessionRegistry, error) {
	if deps.Config == nil {
		return nil, errors.New("session registry: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	stores, err := NewTokenStoreFactory(cfg.Auth, deps.Redis, logger)
	if err != nil {
		return nil, err
	}

	api := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.APIURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})

	return service.NewSessionRegistry(service.SessionRegistryOptions{
		Stores: stores,
		API:    api,
		Config: service.RegistryConfig{
			IdleTimeout:  cfg.Auth.SessionIdleTimeout,
			ReapInterval: cfg.Auth.SessionReapInterval,
			BaseURL:      cfg.Backend.APIURL,
			Logger:       logger,
			Metrics:      deps.Metrics,
		},
	})
}

// NewMetricsClient returns a StatsD client when metrics are enabled, or nil. A client that
// cannot be created is logged and skipped; metrics never block startup.
func NewMetricsClient(ctx context.Context, cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}
