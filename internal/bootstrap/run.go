package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/publicvoice/portal/config"
	"github.com/publicvoice/portal/internal/observability/statsd"
)

// Run wires the portal and blocks until SIGINT/SIGTERM or a component fails.
// The HTTP server and the session reaper share one errgroup; the first error cancels both.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (err error) {
	if cfg == nil {
		return errors.New("config is required")
	}

	var redisClient redis.UniversalClient
	if cfg.UsesRedis() {
		redisClient, err = ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	var sink statsd.Sink
	if client := NewMetricsClient(ctx, cfg.Observability.Metrics, logger); client != nil {
		sink = client
		defer func() { _ = client.Close() }()
	}

	registry, err := NewSessionRegistry(SessionDeps{
		Config:  cfg,
		Redis:   redisClient,
		Metrics: sink,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("session registry: %w", err)
	}
	defer registry.Close()

	renderer, err := NewTemplateRenderer(cfg.IsDev, logger)
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	server := NewHTTPServer(HTTPServerConfig{
		Config:   cfg,
		Sessions: registry,
		Renderer: renderer,
		Metrics:  sink,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ServeHTTP(gctx, server, logger) })
	g.Go(func() error { return registry.Run(gctx) })

	if err = g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
