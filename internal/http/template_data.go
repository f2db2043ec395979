package httpx

import (
	"net/http"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
)

// PageData is the view model shared by every page template.
type PageData struct {
	Title           string
	CurrentPage     string
	User            *domainauth.UserIdentity
	IsAuthenticated bool
	IsAdmin         bool
	CSRFToken       string

	Error  string
	Notice string
	// Form echoes submitted values back into a re-rendered form. Passwords are never echoed.
	Form map[string]string

	RedirectURI string
	ResetToken  string
	WaitURL     string
}

// newPageData builds page data from the snapshot pinned to the request.
func newPageData(r *http.Request, title, page string) PageData {
	return pageDataFor(r, SnapshotFromContext(r.Context()), title, page)
}

// pageDataFor builds page data from an explicit snapshot, for handlers that changed the
// session after the guard ran.
func pageDataFor(r *http.Request, snap domainauth.Snapshot, title, page string) PageData {
	return PageData{
		Title:           title,
		CurrentPage:     page,
		User:            snap.User,
		IsAuthenticated: snap.IsAuthenticated(),
		IsAdmin:         snap.IsAdmin(),
		CSRFToken:       GetCSRFToken(r),
		Form:            map[string]string{},
	}
}
