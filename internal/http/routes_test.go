package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	apperrors "github.com/publicvoice/portal/internal/errors"
	mockauth "github.com/publicvoice/portal/internal/mocks/auth"
)

type statusBody struct {
	Authenticated bool `json:"authenticated"`
	IsAdmin       bool `json:"is_admin"`
	IsLoadingUser bool `json:"is_loading_user"`
	User          *struct {
		ID       int64  `json:"id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	} `json:"user"`
}

func (p *testPortal) status() statusBody {
	p.t.Helper()
	resp := p.get("/auth/status")
	require.Equal(p.t, http.StatusOK, resp.Status)
	var body statusBody
	require.NoError(p.t, json.Unmarshal([]byte(resp.Body), &body))
	return body
}

func TestPortal_AdminLoginEndToEnd(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(adminUser, "pw")
	p := newTestPortal(t, api)

	resp := p.login("A@B.com ", "pw")
	require.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, domainauth.AdminDashboardPath, resp.Header.Get("Location"))

	st := p.status()
	assert.True(t, st.Authenticated)
	assert.True(t, st.IsAdmin)
	assert.False(t, st.IsLoadingUser)
	require.NotNil(t, st.User)
	assert.Equal(t, "Admin", st.User.Role)

	admin := p.get("/admin/dashboard")
	require.Equal(t, http.StatusOK, admin.Status)
	assert.Contains(t, admin.Body, "Admin dashboard")
	assert.Contains(t, admin.Body, "Ada Admin")

	citizen := p.get("/user/dashboard")
	assert.Equal(t, http.StatusSeeOther, citizen.Status)
	assert.Equal(t, domainauth.AdminDashboardPath, citizen.Header.Get("Location"))

	assert.Equal(t, "token-a@b.com", p.stores.Store(p.visitorID()).Get(context.Background()))
}

func TestPortal_InvalidatedTokenRedirectsToLogin(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)

	require.Equal(t, http.StatusSeeOther, p.login(citizenUser.Email, "pw").Status)
	visitor := p.visitorID()
	require.Equal(t, http.StatusOK, p.get("/user/dashboard").Status)

	// The backend stops accepting the token; a fresh session (returning visitor) resolves it.
	api.MeFunc = func(context.Context, string) (domainauth.UserIdentity, error) {
		return domainauth.UserIdentity{}, apperrors.MapStatus(http.StatusUnauthorized, "")
	}
	p.registry.Evict(visitor)

	wait := p.get("/auth/wait?redirect_uri=%2Fuser%2Fdashboard")
	require.Equal(t, http.StatusOK, wait.Status)

	resp := p.get("/user/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/login?redirect_uri=%2Fuser%2Fdashboard", resp.Header.Get("Location"))
	assert.Empty(t, p.stores.Store(visitor).Get(context.Background()))
	assert.False(t, p.status().Authenticated)
}

func TestPortal_AnonymousGuardedRoutesRedirectToLogin(t *testing.T) {
	p := newTestPortal(t, nil)

	for _, path := range []string{"/user/dashboard", "/user/profile", "/admin/dashboard"} {
		resp := p.get(path)
		assert.Equal(t, http.StatusSeeOther, resp.Status, path)
		assert.Equal(t, "/login?redirect_uri="+url.QueryEscape(path), resp.Header.Get("Location"), path)
	}
	assert.Equal(t, int64(3), p.metrics.Counter("guard.decision", map[string]string{"outcome": "redirect_login"}))
}

func TestPortal_CitizenOnAdminRouteRedirectsOnce(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)

	resp := p.login(citizenUser.Email, "pw")
	require.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, domainauth.CitizenDashboardPath, resp.Header.Get("Location"))

	admin := p.get("/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, admin.Status)
	assert.Equal(t, domainauth.CitizenDashboardPath, admin.Header.Get("Location"))

	// Following the redirect renders; there is no loop.
	dash := p.get(domainauth.CitizenDashboardPath)
	assert.Equal(t, http.StatusOK, dash.Status)
	assert.Contains(t, dash.Body, "Cid Citizen")
}

func TestPortal_LoadingPlaceholderWhileIdentityResolves(t *testing.T) {
	release := make(chan struct{})
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(adminUser, "pw")
	api.MeFunc = func(ctx context.Context, token string) (domainauth.UserIdentity, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return domainauth.UserIdentity{}, ctx.Err()
		}
		return adminUser, nil
	}
	p := newTestPortal(t, api)

	// A returning visitor whose token is already stored.
	visitor := uuid.NewString()
	require.NoError(t, p.stores.Store(visitor).Set(context.Background(), "token-a@b.com"))
	p.adoptVisitor(visitor)

	resp := p.get("/admin/dashboard")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `hx-get="/auth/wait?redirect_uri=%2Fadmin%2Fdashboard"`)
	assert.NotContains(t, resp.Body, "Incoming reports")
	assert.Equal(t, int64(1), p.metrics.Counter("guard.decision", map[string]string{"outcome": "loading"}))

	cit := p.get("/user/dashboard")
	require.Equal(t, http.StatusOK, cit.Status)
	assert.Contains(t, cit.Body, "Loading your account")
	assert.True(t, p.status().IsLoadingUser)

	close(release)
	wait := p.get("/auth/wait?redirect_uri=%2Fadmin%2Fdashboard", "Hx-Request", "true")
	require.Equal(t, http.StatusOK, wait.Status)
	assert.Equal(t, "true", wait.Header.Get("Hx-Refresh"))

	admin := p.get("/admin/dashboard")
	assert.Equal(t, http.StatusOK, admin.Status)
	assert.Contains(t, admin.Body, "Incoming reports")
}

func TestPortal_WaitFallbackForPlainClients(t *testing.T) {
	p := newTestPortal(t, nil)

	resp := p.get("/auth/wait?redirect_uri=%2Fadmin%2Fdashboard")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "0; url=/admin/dashboard", resp.Header.Get("Refresh"))

	evil := p.get("/auth/wait?redirect_uri=https%3A%2F%2Fevil.example")
	assert.Equal(t, "0; url=/", evil.Header.Get("Refresh"))
}

func TestPortal_LoginFailureRerendersForm(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)

	resp := p.login(citizenUser.Email, "wrong")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Contains(t, resp.Body, "Invalid email or password")
	assert.Contains(t, resp.Body, `value="c@d.com"`)
	assert.False(t, p.status().Authenticated)
	assert.Equal(t, int64(1), p.metrics.Counter("session.login", map[string]string{"ok": "false"}))
}

func TestPortal_LoginHonoursRememberedPath(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)

	resp := p.post("/login", url.Values{
		"email":        {citizenUser.Email},
		"password":     {"pw"},
		"redirect_uri": {"/user/profile"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/user/profile", resp.Header.Get("Location"))

	api.AddUser(adminUser, "pw")
	p.post("/logout", url.Values{})
	evil := p.post("/login", url.Values{
		"email":        {adminUser.Email},
		"password":     {"pw"},
		"redirect_uri": {"//evil.example/x"},
	})
	assert.Equal(t, domainauth.AdminDashboardPath, evil.Header.Get("Location"))
}

func TestPortal_LoginPageRedirectsSignedInVisitor(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)

	assert.Equal(t, http.StatusOK, p.get("/login").Status)
	p.login(citizenUser.Email, "pw")

	resp := p.get("/login")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, domainauth.CitizenDashboardPath, resp.Header.Get("Location"))
}

func TestPortal_Logout(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)
	p.login(citizenUser.Email, "pw")

	resp := p.post("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	st := p.status()
	assert.False(t, st.Authenticated)
	assert.False(t, st.IsLoadingUser)
	assert.Nil(t, st.User)
	assert.Empty(t, p.stores.Store(p.visitorID()).Get(context.Background()))
}

func TestPortal_PostWithoutCSRFTokenIsRejected(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)
	p.get("/")

	form := url.Values{"email": {citizenUser.Email}, "password": {"pw"}}
	resp, err := p.client.PostForm(p.server.URL+"/login", form)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, api.Calls("Login"))
}

func TestPortal_Register(t *testing.T) {
	p := newTestPortal(t, nil)

	resp := p.post("/register", url.Values{
		"full_name": {"  New Person "},
		"email":     {"New@Example.org"},
		"password":  {"secret123"},
	})
	require.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, domainauth.CitizenDashboardPath, resp.Header.Get("Location"))
	st := p.status()
	require.NotNil(t, st.User)
	assert.Equal(t, "New Person", st.User.FullName)
	assert.Equal(t, "new@example.org", st.User.Email)

	p.post("/logout", url.Values{})
	dup := p.post("/register", url.Values{
		"full_name": {"Again"},
		"email":     {"new@example.org"},
		"password":  {"secret123"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, dup.Status)
	assert.Contains(t, dup.Body, "Email already registered")
	assert.Contains(t, dup.Body, `value="Again"`)
}

func TestPortal_RegisterRejectsWeakPassword(t *testing.T) {
	p := newTestPortal(t, nil)

	resp := p.post("/register", url.Values{
		"full_name": {"Someone"},
		"email":     {"s@example.org"},
		"password":  {"short1"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Contains(t, resp.Body, "Password must be at least 8 characters")
	assert.Equal(t, 0, p.api.Calls("Register"))
}

func TestPortal_ForgotPassword(t *testing.T) {
	p := newTestPortal(t, nil)

	resp := p.post("/forgot-password", url.Values{"email": {"c@d.com"}})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "reset link is on its way")
	assert.Equal(t, 1, p.api.Calls("ForgotPassword"))

	empty := p.post("/forgot-password", url.Values{"email": {" "}})
	assert.Equal(t, http.StatusUnprocessableEntity, empty.Status)
	assert.Contains(t, empty.Body, "Email is required")
}

func TestPortal_ResetPassword(t *testing.T) {
	p := newTestPortal(t, nil)

	form := p.get("/reset-password")
	assert.Contains(t, form.Body, "Invalid or expired reset link.")

	withToken := p.get("/reset-password?token=abc")
	assert.Contains(t, withToken.Body, `name="token" value="abc"`)

	weak := p.post("/reset-password", url.Values{"token": {"abc"}, "new_password": {"letters-only"}})
	assert.Equal(t, http.StatusUnprocessableEntity, weak.Status)
	assert.Contains(t, weak.Body, "Password must contain at least one digit")

	ok := p.post("/reset-password", url.Values{"token": {"abc"}, "new_password": {"secret123"}})
	assert.Equal(t, http.StatusSeeOther, ok.Status)
	assert.Equal(t, "/login?notice=reset", ok.Header.Get("Location"))
	assert.Equal(t, 1, p.api.Calls("ResetPassword"))

	login := p.get("/login?notice=reset")
	assert.Contains(t, login.Body, "Your password has been updated")
	assert.False(t, p.status().Authenticated)
}

func TestPortal_UpdateProfile(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.AddUser(citizenUser, "pw")
	p := newTestPortal(t, api)
	p.login(citizenUser.Email, "pw")

	form := p.get("/user/profile")
	require.Equal(t, http.StatusOK, form.Status)
	assert.Contains(t, form.Body, `value="Cid Citizen"`)

	resp := p.post("/user/profile", url.Values{"full_name": {"Cid Renamed"}})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "Profile updated.")
	assert.Contains(t, resp.Body, `value="Cid Renamed"`)
	assert.Equal(t, "Cid Renamed", p.status().User.FullName)
}

func TestPortal_HTMXRedirectUsesHeader(t *testing.T) {
	p := newTestPortal(t, nil)

	resp := p.get("/admin/dashboard", "Hx-Request", "true", "Hx-Current-Url", p.server.URL+"/admin/dashboard?tab=new")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "/login?redirect_uri=%2Fadmin%2Fdashboard%3Ftab%3Dnew", resp.Header.Get("Hx-Redirect"))
}

func TestPortal_HealthzNeedsNoSession(t *testing.T) {
	p := newTestPortal(t, nil)

	resp := p.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `{"status":"ok"}`, resp.Body)
	assert.Empty(t, p.cookie(DefaultVisitorCookieName))
	assert.Equal(t, 0, p.registry.Len())
}

func TestPortal_NotFound(t *testing.T) {
	p := newTestPortal(t, nil)

	resp := p.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Body, "Page not found")
}
