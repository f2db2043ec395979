package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/publicvoice/portal/config"
	"github.com/publicvoice/portal/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.IsDev {
		logger = bootstrap.SetLogLevel(slog.LevelDebug)
	}

	logStartupInfo(ctx, logger, &cfg)
	return bootstrap.Run(ctx, &cfg, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting publicvoice portal",
		"addr", cfg.HTTP.Addr,
		"backend", cfg.Backend.APIURL,
		"token_store", cfg.Auth.TokenStore,
		"metrics", cfg.Observability.Metrics.IsEnabled(),
		"dev", cfg.IsDev)
}
