package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockauth "github.com/publicvoice/portal/internal/mocks/auth"
	"github.com/publicvoice/portal/internal/service"
)

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/user/dashboard", "/user/dashboard"},
		{"/admin/dashboard?tab=new", "/admin/dashboard?tab=new"},
		{"//evil.example/x", "/"},
		{"/\\evil.example", "/"},
		{"https://evil.example/x", "/"},
		{"javascript:alert(1)", "/"},
		{"user/dashboard", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, safeRedirectPath(tt.in))
		})
	}
}

func TestRememberedPath(t *testing.T) {
	assert.Equal(t, "", rememberedPath(""))
	assert.Equal(t, "", rememberedPath("/"))
	assert.Equal(t, "", rememberedPath("/login"))
	assert.Equal(t, "", rememberedPath("/login?redirect_uri=%2Fx"))
	assert.Equal(t, "/user/profile", rememberedPath("/user/profile"))
	assert.Equal(t, "", rememberedPath("//evil.example"))
}

func TestRequestedPath_UsesCurrentURLForHTMX(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.Header.Set("Hx-Request", "true")
	req.Header.Set("Hx-Current-Url", "http://portal.test/user/profile?x=1")
	assert.Equal(t, "/user/profile?x=1", requestedPath(req))

	req.Header.Set("Hx-Current-Url", "//evil.example/x")
	assert.Equal(t, "/auth/status", requestedPath(req))

	plain := httptest.NewRequest(http.MethodGet, "/admin/dashboard?tab=1", nil)
	assert.Equal(t, "/admin/dashboard?tab=1", requestedPath(plain))
}

func TestIsForwardedHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, isForwardedHTTPS(req))
	req.Header.Set("X-Forwarded-Proto", "http, HTTPS")
	assert.True(t, isForwardedHTTPS(req))
}

type failingSessions struct{ err error }

func (f failingSessions) Get(context.Context, string) (*service.Session, error) {
	return nil, f.err
}

func TestVisitor_RegistryFailureIs503(t *testing.T) {
	called := false
	h := Visitor(VisitorConfig{Sessions: failingSessions{err: errors.New("closed")}})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, called)
}

func newVisitorTestRegistry(t *testing.T) *service.SessionRegistry {
	t.Helper()
	reg, err := service.NewSessionRegistry(service.SessionRegistryOptions{
		Stores: mockauth.NewMemoryTokenStoreFactory(),
		API:    mockauth.NewFakeAuthAPI(),
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return reg
}

func TestVisitor_IssuesCookieAndAttachesSession(t *testing.T) {
	reg := newVisitorTestRegistry(t)

	var gotID string
	var gotSession bool
	h := Visitor(VisitorConfig{Sessions: reg})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotID = VisitorIDFromContext(r.Context())
		_, gotSession = SessionFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, DefaultVisitorCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, c.Value, gotID)
	assert.True(t, gotSession)
	_, err := uuid.Parse(gotID)
	assert.NoError(t, err)
}

func TestVisitor_ReusesValidCookieAndReplacesForgedOne(t *testing.T) {
	reg := newVisitorTestRegistry(t)

	var gotID string
	h := Visitor(VisitorConfig{Sessions: reg, CookieName: "v"})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotID = VisitorIDFromContext(r.Context())
	}))

	known := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "v", Value: known})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, known, gotID)
	assert.Empty(t, rec.Result().Cookies())

	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.AddCookie(&http.Cookie{Name: "v", Value: "../../etc/passwd"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, forged)
	assert.NotEqual(t, "../../etc/passwd", gotID)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, gotID, rec.Result().Cookies()[0].Value)
	assert.Equal(t, 2, reg.Len())
}

func TestVisitor_SecureBehindTLSProxy(t *testing.T) {
	reg := newVisitorTestRegistry(t)
	h := Visitor(VisitorConfig{Sessions: reg})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Len(t, rec.Result().Cookies(), 1)
	assert.True(t, rec.Result().Cookies()[0].Secure)
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogging_RecordsStatus(t *testing.T) {
	h := Logging(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?token=secret", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
