package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	mockauth "github.com/publicvoice/portal/internal/mocks/auth"
	"github.com/publicvoice/portal/internal/observability/statsd"
	"github.com/publicvoice/portal/internal/service"
)

// RequireTemplateRenderer creates a TemplateRenderer for tests, skipping the test if
// templates are not available.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: os.DirFS(TemplatePathFromTest),
	})
	if err != nil {
		t.Skipf("Templates not available, skipping: %v", err)
		return nil
	}
	return tr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	adminUser = domainauth.UserIdentity{
		ID: 1, FullName: "Ada Admin", Email: "a@b.com", Role: domainauth.RoleAdmin,
	}
	citizenUser = domainauth.UserIdentity{
		ID: 2, FullName: "Cid Citizen", Email: "c@d.com", Role: domainauth.RoleCitizen,
	}
)

// testPortal is a full router over a real SessionRegistry with in-memory doubles behind
// it, driven through a cookie-keeping client that does not follow redirects.
type testPortal struct {
	t        *testing.T
	api      *mockauth.FakeAuthAPI
	stores   *mockauth.MemoryTokenStoreFactory
	registry *service.SessionRegistry
	metrics  *statsd.Recorder
	server   *httptest.Server
	client   *http.Client
	base     *url.URL
}

func newTestPortal(t *testing.T, api *mockauth.FakeAuthAPI) *testPortal {
	t.Helper()
	renderer := RequireTemplateRenderer(t)

	if api == nil {
		api = mockauth.NewFakeAuthAPI()
	}
	stores := mockauth.NewMemoryTokenStoreFactory()
	rec := statsd.NewRecorder()
	registry, err := service.NewSessionRegistry(service.SessionRegistryOptions{
		Stores: stores,
		API:    api,
		Config: service.RegistryConfig{BaseURL: "http://backend.test", Metrics: rec},
	})
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(RouterServices{
		Sessions:    registry,
		Renderer:    renderer,
		Metrics:     rec,
		WaitTimeout: 2 * time.Second,
	}))
	t.Cleanup(func() {
		server.Close()
		registry.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(server.URL)
	require.NoError(t, err)

	return &testPortal{
		t:        t,
		api:      api,
		stores:   stores,
		registry: registry,
		metrics:  rec,
		server:   server,
		base:     base,
		client: &http.Client{
			Jar:     jar,
			Timeout: 5 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type portalResponse struct {
	Status int
	Header http.Header
	Body   string
}

func (p *testPortal) send(req *http.Request) portalResponse {
	p.t.Helper()
	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	return portalResponse{Status: resp.StatusCode, Header: resp.Header, Body: string(body)}
}

func (p *testPortal) get(path string, headers ...string) portalResponse {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodGet, p.server.URL+path, nil)
	require.NoError(p.t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return p.send(req)
}

// post submits a form with the visitor's CSRF token. GET / is issued first when no token
// has been handed out yet.
func (p *testPortal) post(path string, form url.Values) portalResponse {
	p.t.Helper()
	token := p.cookie(DefaultCSRFCookieName)
	if token == "" {
		p.get("/")
		token = p.cookie(DefaultCSRFCookieName)
	}
	form.Set(DefaultCSRFCookieName, token)

	req, err := http.NewRequest(http.MethodPost, p.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.send(req)
}

func (p *testPortal) cookie(name string) string {
	for _, c := range p.client.Jar.Cookies(p.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// visitorID returns the visitor cookie, issuing one through GET / if needed.
func (p *testPortal) visitorID() string {
	p.t.Helper()
	if id := p.cookie(DefaultVisitorCookieName); id != "" {
		return id
	}
	p.get("/")
	id := p.cookie(DefaultVisitorCookieName)
	require.NotEmpty(p.t, id)
	return id
}

// adoptVisitor makes the client present visitorID, as a returning browser would.
func (p *testPortal) adoptVisitor(visitorID string) {
	p.client.Jar.SetCookies(p.base, []*http.Cookie{{Name: DefaultVisitorCookieName, Value: visitorID, Path: "/"}})
}

func (p *testPortal) login(email, password string) portalResponse {
	p.t.Helper()
	return p.post("/login", url.Values{"email": {email}, "password": {password}})
}
