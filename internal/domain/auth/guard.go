package auth

import "net/url"

// Well-known portal locations the guard redirects to.
const (
	LoginPath            = "/login"
	CitizenDashboardPath = "/user/dashboard"
	AdminDashboardPath   = "/admin/dashboard"
)

// Outcome is the result of evaluating a navigation against the session state.
type Outcome int

const (
	OutcomeRender Outcome = iota
	OutcomeLoading
	OutcomeRedirectLogin
	OutcomeRedirectCitizen
	OutcomeRedirectAdmin
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRender:
		return "render"
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeRedirectCitizen:
		return "redirect_citizen"
	case OutcomeRedirectAdmin:
		return "redirect_admin"
	default:
		return "unknown"
	}
}

// Decision is what a view should do for one navigation attempt.
// Location is set for redirect outcomes only.
type Decision struct {
	Outcome  Outcome
	Location string
}

// IsRedirect reports whether the decision navigates elsewhere.
func (d Decision) IsRedirect() bool {
	return d.Location != ""
}

func render() Decision  { return Decision{Outcome: OutcomeRender} }
func loading() Decision { return Decision{Outcome: OutcomeLoading} }

// Decide maps session state and a route requirement to a navigation outcome.
// requestedPath is remembered in the login redirect so the visitor returns to it.
//
// It never grants RequiresAdmin while the role is unknown: an authenticated session
// whose identity is still loading gets the loading placeholder.
func Decide(s Snapshot, req RouteRequirement, requestedPath string) Decision {
	switch req {
	case Public:
		return render()
	case RequiresAuth:
		if !s.IsAuthenticated() {
			return redirectToLogin(requestedPath)
		}
		return render()
	case RequiresAdmin:
		if !s.IsAuthenticated() {
			return redirectToLogin(requestedPath)
		}
		if s.IsLoadingUser || s.User == nil {
			return loading()
		}
		switch s.User.Role {
		case RoleAdmin:
			return render()
		case RoleCitizen:
			return Decision{Outcome: OutcomeRedirectCitizen, Location: CitizenDashboardPath}
		default:
			return Decision{Outcome: OutcomeRedirectCitizen, Location: CitizenDashboardPath}
		}
	default:
		return loading()
	}
}

// DecideCitizenArea evaluates the citizen-dashboard wrapper, which runs after
// Decide(RequiresAuth) has rendered. A resolved admin is bounced to the admin area;
// nothing is redirected while the identity is loading.
func DecideCitizenArea(s Snapshot) Decision {
	if s.IsLoadingUser {
		return loading()
	}
	if s.User == nil {
		return render()
	}
	switch s.User.Role {
	case RoleAdmin:
		return Decision{Outcome: OutcomeRedirectAdmin, Location: AdminDashboardPath}
	case RoleCitizen:
		return render()
	default:
		return render()
	}
}

// PostLoginLocation picks where a visitor goes after a successful login.
// remembered must already be a safe same-origin path or empty.
func PostLoginLocation(s Snapshot, remembered string) string {
	if s.IsAdmin() {
		return AdminDashboardPath
	}
	if s.IsLoadingUser && s.PendingRedirect == IntentAdminDashboard {
		return AdminDashboardPath
	}
	if remembered != "" && remembered != "/" && remembered != LoginPath {
		return remembered
	}
	return CitizenDashboardPath
}

func redirectToLogin(requestedPath string) Decision {
	loc := LoginPath
	if requestedPath != "" && requestedPath != "/" {
		loc += "?redirect_uri=" + url.QueryEscape(requestedPath)
	}
	return Decision{Outcome: OutcomeRedirectLogin, Location: loc}
}
