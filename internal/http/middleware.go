package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	"github.com/publicvoice/portal/internal/observability/metrics"
	"github.com/publicvoice/portal/internal/observability/statsd"
	"github.com/publicvoice/portal/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
// Query strings are not logged: reset links carry a token there.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Bool("htmx", IsHTMX(r)),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps long-poll responses streaming through the logging wrapper.
func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionSource hands out the session that belongs to a visitor.
type SessionSource interface {
	Get(ctx context.Context, visitorID string) (*service.Session, error)
}

// DefaultVisitorCookieName is used when VisitorConfig.CookieName is empty.
const DefaultVisitorCookieName = "pv_visitor"

const visitorCookieMaxAge = 365 * 24 * 60 * 60

// VisitorConfig configures the Visitor middleware.
type VisitorConfig struct {
	Sessions     SessionSource
	CookieName   string
	CookieDomain string
	// Secure forces the Secure attribute; it is also set for TLS or forwarded-https requests.
	Secure bool
	Logger *slog.Logger
}

// Visitor returns a middleware that identifies the browser by an opaque visitor cookie and
// attaches its session to the request context. The cookie is issued on first contact and
// never carries a credential.
func Visitor(cfg VisitorConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultVisitorCookieName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID := visitorIDFromCookie(r, cfg.CookieName)
			if visitorID == "" {
				visitorID = uuid.NewString()
				setVisitorCookie(w, r, cfg, visitorID)
			}

			sess, err := cfg.Sessions.Get(r.Context(), visitorID)
			if err != nil {
				cfg.Logger.ErrorContext(r.Context(), "session lookup failed", "error", err)
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := SetSessionInContext(r.Context(), visitorID, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// visitorIDFromCookie returns the canonical visitor ID or "" when the cookie is missing
// or was not issued by us.
func visitorIDFromCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

func setVisitorCookie(w http.ResponseWriter, r *http.Request, cfg VisitorConfig, visitorID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    visitorID,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		HttpOnly: true,
		Secure:   cfg.Secure || r.TLS != nil || isForwardedHTTPS(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   visitorCookieMaxAge,
	})
}

// isForwardedHTTPS checks if the request was forwarded over HTTPS.
// Handles comma-separated values in X-Forwarded-Proto header.
func isForwardedHTTPS(r *http.Request) bool {
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

// RouteGuard turns domain guard decisions into HTTP responses: render, the loading
// placeholder, or a redirect. It only shapes navigation; the backend enforces access.
type RouteGuard struct {
	renderer *TemplateRenderer
	metrics  statsd.Sink
}

// NewRouteGuard creates a guard. metrics may be nil.
func NewRouteGuard(renderer *TemplateRenderer, metrics statsd.Sink) *RouteGuard {
	return &RouteGuard{renderer: renderer, metrics: metrics}
}

// Require gates a route on req. The snapshot it evaluated is pinned to the request so the
// handler renders exactly the state the decision was made on.
func (g *RouteGuard) Require(req domainauth.RouteRequirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := SnapshotFromContext(r.Context())
			d := domainauth.Decide(snap, req, requestedPath(r))
			if !g.apply(w, r, d) {
				return
			}
			next.ServeHTTP(w, r.WithContext(withSnapshot(r.Context(), snap)))
		})
	}
}

// CitizenArea wraps citizen-only pages: a resolved admin is sent to the admin dashboard.
// It runs inside Require(RequiresAuth) and reuses its snapshot.
func (g *RouteGuard) CitizenArea(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := SnapshotFromContext(r.Context())
		if !g.apply(w, r, domainauth.DecideCitizenArea(snap)) {
			return
		}
		next.ServeHTTP(w, r.WithContext(withSnapshot(r.Context(), snap)))
	})
}

// apply writes the response for non-render decisions and reports whether to continue.
func (g *RouteGuard) apply(w http.ResponseWriter, r *http.Request, d domainauth.Decision) bool {
	metrics.EmitGuardDecision(g.metrics, d.Outcome.String())

	switch d.Outcome {
	case domainauth.OutcomeRender:
		return true
	case domainauth.OutcomeRedirectLogin, domainauth.OutcomeRedirectCitizen, domainauth.OutcomeRedirectAdmin:
		Navigate(w, r, d.Location)
		return false
	case domainauth.OutcomeLoading:
		g.renderLoading(w, r)
		return false
	default:
		g.renderLoading(w, r)
		return false
	}
}

// renderLoading shows the placeholder that long-polls /auth/wait and reloads once the
// identity has settled.
func (g *RouteGuard) renderLoading(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Loading", PageLoading)
	data.WaitURL = "/auth/wait?redirect_uri=" + url.QueryEscape(requestedPath(r))
	w.Header().Set("Cache-Control", "no-store")
	_ = g.renderer.Render(w, r, http.StatusOK, PageLoading, data)
}

// requestedPath is the same-origin path the visitor was trying to reach. For htmx requests
// it is the page the request was issued from, not the fragment endpoint.
func requestedPath(r *http.Request) string {
	if IsHTMX(r) {
		if current := safeRedirectFromURL(r.Header.Get("Hx-Current-Url")); current != "" {
			return current
		}
	}
	return safeRedirectPath(r.URL.RequestURI())
}

func safeRedirectFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	// Reject scheme-relative or host-only references.
	if u.Host != "" && !u.IsAbs() {
		return ""
	}
	// For absolute URLs, keep just the path/query so redirects stay within the app.
	if u.IsAbs() {
		return safeRedirectPath(u.RequestURI())
	}
	return safeRedirectPath(raw)
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path starting
// with "/" and not an absolute or scheme-relative URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	if strings.HasPrefix(candidate, "//") || strings.Contains(candidate, `\`) {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
