package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	"github.com/publicvoice/portal/internal/service"
)

// AuthHandlers serves the credential pages and the session status endpoints.
type AuthHandlers struct {
	Renderer    *TemplateRenderer
	WaitTimeout time.Duration
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// session returns the visitor's session or writes 503 when the middleware did not run.
func session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return sess, true
}

// formErrorStatus keeps htmx swapping the re-rendered form; plain posts get 422.
func formErrorStatus(r *http.Request) int {
	if IsHTMX(r) {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// LoginForm renders the login page.
// GET /login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	snap := SnapshotFromContext(r.Context())
	remembered := rememberedPath(r.URL.Query().Get("redirect_uri"))
	if snap.IsAuthenticated() && !snap.IsLoadingUser {
		Navigate(w, r, domainauth.PostLoginLocation(snap, remembered))
		return
	}

	data := pageDataFor(r, snap, "Log in", PageLogin)
	data.RedirectURI = remembered
	switch r.URL.Query().Get("notice") {
	case "reset":
		data.Notice = noticePasswordReset
	case "logout":
		data.Notice = noticeLoggedOut
	}
	_ = h.Renderer.Render(w, r, http.StatusOK, PageLogin, data)
}

// Login runs the credential exchange and sends the visitor to the post-login destination.
// POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	email := r.PostFormValue("email")
	remembered := rememberedPath(r.PostFormValue("redirect_uri"))
	opts := service.LoginOptions{
		PreferAdmin: r.PostFormValue("prefer_admin") == "on" || strings.HasPrefix(remembered, "/admin"),
	}

	res := sess.Login(r.Context(), email, r.PostFormValue("password"), opts)
	snap := sess.Snapshot()
	if !res.OK {
		data := pageDataFor(r, snap, "Log in", PageLogin)
		data.Error = res.Error
		data.Form["email"] = strings.TrimSpace(email)
		data.RedirectURI = remembered
		_ = h.Renderer.Render(w, r, formErrorStatus(r), PageLogin, data)
		return
	}

	h.logger().DebugContext(r.Context(), "login succeeded", "visitor_id", VisitorIDFromContext(r.Context()))
	Navigate(w, r, domainauth.PostLoginLocation(snap, remembered))
}

// RegisterForm renders the registration page.
// GET /register.
func (h *AuthHandlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Register", PageRegister)
	_ = h.Renderer.Render(w, r, http.StatusOK, PageRegister, data)
}

// Register creates the account and logs the visitor in.
// POST /register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	fullName := r.PostFormValue("full_name")
	email := r.PostFormValue("email")
	res := sess.Register(r.Context(), fullName, email, r.PostFormValue("password"))
	snap := sess.Snapshot()
	if !res.OK {
		data := pageDataFor(r, snap, "Register", PageRegister)
		data.Error = res.Error
		data.Form["full_name"] = strings.TrimSpace(fullName)
		data.Form["email"] = strings.TrimSpace(email)
		_ = h.Renderer.Render(w, r, formErrorStatus(r), PageRegister, data)
		return
	}
	Navigate(w, r, domainauth.PostLoginLocation(snap, ""))
}

// Logout signs the visitor out. It never fails.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	sess.Logout(r.Context())
	Navigate(w, r, "/")
}

// ForgotPasswordForm renders the reset request page.
// GET /forgot-password.
func (h *AuthHandlers) ForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Reset your password", PageForgotPassword)
	_ = h.Renderer.Render(w, r, http.StatusOK, PageForgotPassword, data)
}

// ForgotPassword asks the backend to email a reset link.
// POST /forgot-password.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	email := r.PostFormValue("email")
	res := sess.RequestPasswordReset(r.Context(), email)
	data := newPageData(r, "Reset your password", PageForgotPassword)
	status := http.StatusOK
	if res.OK {
		data.Notice = noticeResetSent
	} else {
		data.Error = res.Error
		data.Form["email"] = strings.TrimSpace(email)
		status = formErrorStatus(r)
	}
	_ = h.Renderer.Render(w, r, status, PageForgotPassword, data)
}

// ResetPasswordForm renders the reset confirmation page for the emailed token.
// GET /reset-password?token=<reset_token>.
func (h *AuthHandlers) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Choose a new password", PageResetPassword)
	data.ResetToken = strings.TrimSpace(r.URL.Query().Get("token"))
	if data.ResetToken == "" {
		data.Error = "Invalid or expired reset link."
	}
	_ = h.Renderer.Render(w, r, http.StatusOK, PageResetPassword, data)
}

// ResetPassword confirms the reset and sends the visitor to log in.
// POST /reset-password.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	resetToken := r.PostFormValue("token")
	res := sess.ResetPassword(r.Context(), resetToken, r.PostFormValue("new_password"))
	if !res.OK {
		data := newPageData(r, "Choose a new password", PageResetPassword)
		data.Error = res.Error
		data.ResetToken = strings.TrimSpace(resetToken)
		_ = h.Renderer.Render(w, r, formErrorStatus(r), PageResetPassword, data)
		return
	}
	Navigate(w, r, "/login?notice=reset")
}

// Status returns the visitor's session state as JSON. The token itself is never exposed.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	snap := SnapshotFromContext(r.Context())
	body := map[string]any{
		"authenticated":   snap.IsAuthenticated(),
		"is_admin":        snap.IsAdmin(),
		"is_loading_user": snap.IsLoadingUser,
	}
	if u := snap.User; u != nil {
		body["user"] = map[string]any{
			"id":        u.ID,
			"full_name": u.FullName,
			"email":     u.Email,
			"role":      u.Role,
		}
	}
	WriteJSON(w, http.StatusOK, body)
}

// Wait long-polls until the current identity resolution settles, then tells the client to
// reload so the route guard runs again. A poll that times out reloads too, which simply
// renders the placeholder again.
// GET /auth/wait?redirect_uri=<path>.
func (h *AuthHandlers) Wait(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	timeout := h.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	_, err := sess.Wait(ctx)
	if r.Context().Err() != nil {
		return // client went away
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		h.logger().DebugContext(r.Context(), "wait ended early", "error", err)
	}

	w.Header().Set("Cache-Control", "no-store")
	if IsHTMX(r) {
		SetHXRefresh(w, true)
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Refresh", "0; url="+safeRedirectPath(r.URL.Query().Get("redirect_uri")))
	w.WriteHeader(http.StatusOK)
}

// rememberedPath sanitizes a post-login destination. The login page itself and "/"
// carry no intent.
func rememberedPath(candidate string) string {
	p := safeRedirectPath(candidate)
	if p == "/" || p == domainauth.LoginPath || strings.HasPrefix(p, domainauth.LoginPath+"?") {
		return ""
	}
	return p
}
