package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	"github.com/publicvoice/portal/internal/observability/statsd"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions     SessionSource     // Required: visitor sessions
	Renderer     *TemplateRenderer // Required: page templates
	Metrics      statsd.Sink       // Optional: guard decision counters
	CookieName   string
	CookieDomain string
	CookieSecure bool
	WaitTimeout  time.Duration
	Logger       *slog.Logger
}

// route binds a pattern to a handler and its static access requirement.
type route struct {
	pattern     string
	requirement domainauth.RouteRequirement
	citizenArea bool
	handler     http.HandlerFunc
}

// NewRouter creates the portal router. /healthz is served without a session; everything
// else runs behind CSRF protection and visitor identification.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	auth := &AuthHandlers{Renderer: services.Renderer, WaitTimeout: services.WaitTimeout, Logger: logger}
	pages := &PageHandlers{Renderer: services.Renderer}
	guard := NewRouteGuard(services.Renderer, services.Metrics)

	portal := http.NewServeMux()
	for _, rt := range portalRoutes(auth, pages) {
		portal.Handle(rt.pattern, guarded(guard, rt))
	}
	portal.HandleFunc("/", pages.NotFound)

	visitor := Visitor(VisitorConfig{
		Sessions:     services.Sessions,
		CookieName:   services.CookieName,
		CookieDomain: services.CookieDomain,
		Secure:       services.CookieSecure,
		Logger:       logger,
	})
	csrf := CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain})

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("/", csrf(visitor(portal)))
	return mux
}

func portalRoutes(auth *AuthHandlers, pages *PageHandlers) []route {
	return []route{
		{pattern: "GET /{$}", requirement: domainauth.Public, handler: pages.Home},
		{pattern: "GET /login", requirement: domainauth.Public, handler: auth.LoginForm},
		{pattern: "POST /login", requirement: domainauth.Public, handler: auth.Login},
		{pattern: "GET /register", requirement: domainauth.Public, handler: auth.RegisterForm},
		{pattern: "POST /register", requirement: domainauth.Public, handler: auth.Register},
		{pattern: "POST /logout", requirement: domainauth.Public, handler: auth.Logout},
		{pattern: "GET /forgot-password", requirement: domainauth.Public, handler: auth.ForgotPasswordForm},
		{pattern: "POST /forgot-password", requirement: domainauth.Public, handler: auth.ForgotPassword},
		{pattern: "GET /reset-password", requirement: domainauth.Public, handler: auth.ResetPasswordForm},
		{pattern: "POST /reset-password", requirement: domainauth.Public, handler: auth.ResetPassword},
		{pattern: "GET /auth/status", requirement: domainauth.Public, handler: auth.Status},
		{pattern: "GET /auth/wait", requirement: domainauth.Public, handler: auth.Wait},
		{pattern: "GET " + domainauth.CitizenDashboardPath, requirement: domainauth.RequiresAuth, citizenArea: true, handler: pages.UserDashboard},
		{pattern: "GET /user/profile", requirement: domainauth.RequiresAuth, citizenArea: true, handler: pages.Profile},
		{pattern: "POST /user/profile", requirement: domainauth.RequiresAuth, citizenArea: true, handler: pages.UpdateProfile},
		{pattern: "GET " + domainauth.AdminDashboardPath, requirement: domainauth.RequiresAdmin, handler: pages.AdminDashboard},
	}
}

func guarded(guard *RouteGuard, rt route) http.Handler {
	var h http.Handler = rt.handler
	if rt.citizenArea {
		h = guard.CitizenArea(h)
	}
	return guard.Require(rt.requirement)(h)
}
