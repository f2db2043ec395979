package service

import (
	"context"
	"errors"
	"strings"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	"github.com/publicvoice/portal/internal/observability/metrics"
	"github.com/publicvoice/portal/internal/ports"
)

// Result is the outcome of a credential operation as shown to the visitor.
type Result struct {
	OK    bool
	Error string
}

func success() Result { return Result{OK: true} }
func failure(msg string) Result { return Result{Error: msg} }

// LoginOptions tunes the post-login flow.
type LoginOptions struct {
	// PreferAdmin records the intent to land on the admin dashboard. It only matters
	// while the identity is still loading and is cleared when resolution commits.
	PreferAdmin bool
}

const (
	msgInvalidResponse  = "Invalid response"
	msgInvalidResetLink = "Invalid or expired reset link."
	msgNotAuthenticated = "Please log in again."
	msgSessionClosed    = "Your session has ended. Please try again."
	msgEmailRequired    = "Email is required"
	msgNameRequired     = "Full name is required"
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login exchanges credentials for a bearer token, stores it and waits for the identity
// resolution it starts. When that resolution fails the session ends up logged out and
// the failure is reported.
func (s *Session) Login(ctx context.Context, email, password string, opts LoginOptions) Result {
	res := s.login(ctx, email, password, opts)
	metrics.EmitLogin(s.metrics, res.OK)
	return res
}

func (s *Session) login(ctx context.Context, email, password string, opts LoginOptions) Result {
	email = NormalizeEmail(email)
	token, err := s.api.Login(ctx, ports.LoginInput{Email: email, Password: password})
	if err != nil {
		return failure(ErrorMessage(err, s.baseURL))
	}
	if token == "" {
		return failure(msgInvalidResponse)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return failure(msgSessionClosed)
	}
	s.intent = domainauth.IntentNone
	if opts.PreferAdmin {
		s.intent = domainauth.IntentAdminDashboard
	}
	seq, w := s.setTokenLocked(token)
	s.mu.Unlock()
	s.persist(w)

	for {
		snap, err := s.await(ctx, seq)
		switch {
		case err == nil:
			return success()
		case errors.Is(err, errSuperseded):
			// A refresh of the same token took over; its outcome is this login's outcome.
			if next, ok := s.currentSeqFor(token); ok && next != seq {
				seq = next
				continue
			}
			// A newer login or logout won; report whatever it left behind.
			if snap.User != nil {
				return success()
			}
			return failure(msgRequestFailed)
		case errors.Is(err, errSessionClosed):
			return failure(msgSessionClosed)
		case ctx.Err() != nil:
			return failure(msgRequestFailed)
		default:
			return failure(ErrorMessage(err, s.baseURL))
		}
	}
}

// Register creates an account and then logs in with the same credentials.
func (s *Session) Register(ctx context.Context, fullName, email, password string) Result {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return failure(msgNameRequired)
	}
	email = NormalizeEmail(email)
	if email == "" {
		return failure(msgEmailRequired)
	}
	if err := ValidatePassword(password); err != nil {
		return failure(ErrorMessage(err, s.baseURL))
	}

	in := ports.RegisterInput{FullName: fullName, Email: email, Password: password}
	if err := s.api.Register(ctx, in); err != nil {
		return failure(ErrorMessage(err, s.baseURL))
	}
	return s.Login(ctx, email, password, LoginOptions{})
}

// Logout clears the token, the identity and any redirect intent, and cancels an
// in-flight resolution. It never touches the network and always succeeds.
func (s *Session) Logout(_ context.Context) Result {
	s.mu.Lock()
	s.intent = domainauth.IntentNone
	_, w := s.setTokenLocked("")
	s.mu.Unlock()
	s.persist(w)

	s.logger.Debug("session logged out")
	metrics.EmitLogout(s.metrics)
	return success()
}

// RequestPasswordReset asks the backend to email a reset link. Session state is untouched.
func (s *Session) RequestPasswordReset(ctx context.Context, email string) Result {
	email = NormalizeEmail(email)
	if email == "" {
		return failure(msgEmailRequired)
	}
	if err := s.api.ForgotPassword(ctx, email); err != nil {
		return failure(ErrorMessage(err, s.baseURL))
	}
	return success()
}

// ResetPassword confirms a reset with the emailed token. The reset token has nothing to
// do with the bearer token and session state is untouched.
func (s *Session) ResetPassword(ctx context.Context, resetToken, newPassword string) Result {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		return failure(msgInvalidResetLink)
	}
	if err := ValidatePassword(newPassword); err != nil {
		return failure(ErrorMessage(err, s.baseURL))
	}

	in := ports.ResetPasswordInput{Token: resetToken, NewPassword: newPassword}
	if err := s.api.ResetPassword(ctx, in); err != nil {
		return failure(ErrorMessage(err, s.baseURL))
	}
	return success()
}

// UpdateProfile changes the visitor's profile and refreshes the identity so the session
// reflects the new attributes.
func (s *Session) UpdateProfile(ctx context.Context, fullName string) Result {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return failure(msgNameRequired)
	}

	token := s.Snapshot().Token
	if token == "" {
		return failure(msgNotAuthenticated)
	}

	if err := s.api.UpdateProfile(ctx, token, ports.ProfileUpdate{FullName: fullName}); err != nil {
		return failure(ErrorMessage(err, s.baseURL))
	}

	user, err := s.RefreshUser(ctx)
	switch {
	case err != nil && errors.Is(err, errSessionClosed):
		return failure(msgSessionClosed)
	case err != nil && !errors.Is(err, errSuperseded):
		return failure(ErrorMessage(err, s.baseURL))
	case user == nil && err == nil:
		return failure(msgNotAuthenticated)
	}
	return success()
}
