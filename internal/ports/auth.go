package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
)

// TokenStore persists the single bearer credential of one visitor.
//
// Get never fails: an unreadable or corrupted store reports "" (no token).
// Set("") clears the credential and is idempotent.
type TokenStore interface {
	Get(ctx context.Context) string
	Set(ctx context.Context, token string) error
}

// TokenStoreFactory opens the TokenStore that belongs to a visitor.
type TokenStoreFactory interface {
	ForVisitor(visitorID string) TokenStore
}

// LoginInput carries credentials for POST /api/auth/login.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput carries the fields for POST /api/auth/register.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// ResetPasswordInput carries a password-reset token and the new password.
// The reset token is unrelated to the bearer session token.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

// ProfileUpdate carries mutable profile attributes for PATCH /api/users/me.
type ProfileUpdate struct {
	FullName string
}

// AuthAPI is the REST backend contract consumed by the session core.
// Errors are *errors.AppError values classified by the adapter.
type AuthAPI interface {
	Login(ctx context.Context, in LoginInput) (accessToken string, err error)
	Register(ctx context.Context, in RegisterInput) error
	Me(ctx context.Context, token string) (domainauth.UserIdentity, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	UpdateProfile(ctx context.Context, token string, in ProfileUpdate) error
}
