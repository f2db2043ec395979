package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	portal "github.com/publicvoice/portal"
	"github.com/publicvoice/portal/config"
	httpx "github.com/publicvoice/portal/internal/http"
	"github.com/publicvoice/portal/internal/observability/statsd"
	"github.com/publicvoice/portal/internal/service"
)

const httpShutdownTimeout = 10 * time.Second

// NewTemplateRenderer loads the page templates. Dev mode reads them from disk and
// re-parses on every render; otherwise the embedded copy is used.
func NewTemplateRenderer(devMode bool, logger *slog.Logger) (*httpx.TemplateRenderer, error) {
	var fsys fs.FS
	if devMode {
		fsys = os.DirFS(httpx.TemplatePathFromRoot)
	} else {
		sub, err := fs.Sub(portal.TemplateFS, httpx.TemplatePathFromRoot)
		if err != nil {
			return nil, fmt.Errorf("embedded templates: %w", err)
		}
		fsys = sub
	}
	return httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{
		TemplateFS: fsys,
		DevMode:    devMode,
		Logger:     logger,
	})
}

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Sessions *service.SessionRegistry
	Renderer *httpx.TemplateRenderer
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// NewHTTPServer builds the portal server without starting it.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger: logger,
		HTTP:   appCfg.HTTP,
		Services: httpx.RouterServices{
			Sessions:     cfg.Sessions,
			Renderer:     cfg.Renderer,
			Metrics:      cfg.Metrics,
			CookieName:   appCfg.Auth.VisitorCookie,
			CookieDomain: appCfg.HTTP.CookieDomain,
			CookieSecure: appCfg.HTTP.CookieSecure,
			Logger:       logger,
		},
	})

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Longer than the /auth/wait long-poll.
		WriteTimeout: httpx.DefaultWaitTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	HTTP     config.HTTPConfig
}

func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	// Order: Recover -> Logging -> Compression -> Router
	h := httpx.NewRouter(cfg.Services)
	if cfg.HTTP.CompressionEnabled {
		cfg.Logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel})(h)
	}

	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)
	return h
}

// ServeHTTP runs server until ctx is cancelled, then shuts it down gracefully.
func ServeHTTP(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ShutdownHTTPServer(server, logger)
	}
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}
