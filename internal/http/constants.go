package httpx

import "time"

// Page identifiers double as template names under web/templates/pages.
const (
	PageHome           = "home"
	PageLogin          = "login"
	PageRegister       = "register"
	PageForgotPassword = "forgot_password"
	PageResetPassword  = "reset_password"
	PageUserDashboard  = "user_dashboard"
	PageProfile        = "profile"
	PageAdminDashboard = "admin_dashboard"
	PageLoading        = "loading"
	PageNotFound       = "not_found"
)

// Template paths used for loading templates in tests and dev mode.
const (
	TemplatePathFromRoot = "web/templates"       // From project root
	TemplatePathFromTest = "../../web/templates" // From internal/http test files
)

// DefaultWaitTimeout bounds one /auth/wait long-poll. The placeholder reloads either way.
const DefaultWaitTimeout = 25 * time.Second

// User-facing notices.
const (
	noticeResetSent     = "If an account exists for that email, a reset link is on its way."
	noticePasswordReset = "Your password has been updated. Please log in."
	noticeProfileSaved  = "Profile updated."
	noticeLoggedOut     = "You have been logged out."
)
