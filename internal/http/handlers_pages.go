package httpx

import (
	"net/http"
)

// PageHandlers serves the portal's content pages. Access is decided by RouteGuard before
// these run; handlers render the snapshot the guard pinned.
type PageHandlers struct {
	Renderer *TemplateRenderer
}

// Home renders the landing page with session-aware navigation.
// GET /.
func (h *PageHandlers) Home(w http.ResponseWriter, r *http.Request) {
	_ = h.Renderer.Render(w, r, http.StatusOK, PageHome, newPageData(r, "Home", PageHome))
}

// UserDashboard renders the citizen dashboard.
// GET /user/dashboard.
func (h *PageHandlers) UserDashboard(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "My dashboard", PageUserDashboard)
	_ = h.Renderer.Render(w, r, http.StatusOK, PageUserDashboard, data)
}

// AdminDashboard renders the administrator dashboard.
// GET /admin/dashboard.
func (h *PageHandlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Admin dashboard", PageAdminDashboard)
	_ = h.Renderer.Render(w, r, http.StatusOK, PageAdminDashboard, data)
}

// Profile renders the profile form.
// GET /user/profile.
func (h *PageHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Profile", PageProfile)
	if data.User != nil {
		data.Form["full_name"] = data.User.FullName
	}
	_ = h.Renderer.Render(w, r, http.StatusOK, PageProfile, data)
}

// UpdateProfile saves the profile and re-renders it from the refreshed identity.
// POST /user/profile.
func (h *PageHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	fullName := r.PostFormValue("full_name")
	res := sess.UpdateProfile(r.Context(), fullName)
	snap := sess.Snapshot()
	if !snap.IsAuthenticated() {
		// The refresh found the token invalid; the guard would now send us to login.
		Navigate(w, r, "/login?redirect_uri=%2Fuser%2Fprofile")
		return
	}

	data := pageDataFor(r, snap, "Profile", PageProfile)
	status := http.StatusOK
	if res.OK {
		data.Notice = noticeProfileSaved
		if snap.User != nil {
			data.Form["full_name"] = snap.User.FullName
		}
	} else {
		data.Error = res.Error
		data.Form["full_name"] = fullName
		status = formErrorStatus(r)
	}
	_ = h.Renderer.Render(w, r, status, PageProfile, data)
}

// NotFound renders the 404 page for unknown paths.
func (h *PageHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	_ = h.Renderer.Render(w, r, http.StatusNotFound, PageNotFound, newPageData(r, "Not found", PageNotFound))
}
