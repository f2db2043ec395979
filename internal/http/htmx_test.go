package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWantsPartial(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{name: "plain request", want: false},
		{name: "htmx request", headers: map[string]string{"Hx-Request": "true"}, want: true},
		{name: "boosted navigation", headers: map[string]string{"Hx-Request": "true", "Hx-Boosted": "true"}, want: false},
		{name: "header value not true", headers: map[string]string{"Hx-Request": "1"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := WantsPartial(req); got != tt.want {
				t.Errorf("WantsPartial() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNavigate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rec := httptest.NewRecorder()
	Navigate(rec, req, "/user/dashboard")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/user/dashboard" {
		t.Fatalf("unexpected Location %q", loc)
	}

	req.Header.Set("Hx-Request", "true")
	rec = httptest.NewRecorder()
	Navigate(rec, req, "/user/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for htmx, got %d", rec.Code)
	}
	if got := rec.Header().Get("Hx-Redirect"); got != "/user/dashboard" {
		t.Fatalf("unexpected Hx-Redirect %q", got)
	}
	if rec.Header().Get("Location") != "" {
		t.Fatal("htmx navigation must not set Location")
	}
}

func TestSetHXRefresh(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHXRefresh(rec, true)
	if rec.Header().Get("Hx-Refresh") != "true" {
		t.Fatalf("expected Hx-Refresh true, got %q", rec.Header().Get("Hx-Refresh"))
	}
}
