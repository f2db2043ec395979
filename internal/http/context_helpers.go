package httpx

import (
	"context"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	"github.com/publicvoice/portal/internal/service"
)

// Unexported context key types avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same keys.
type (
	sessionKey  struct{}
	visitorKey  struct{}
	snapshotKey struct{}
)

// SetSessionInContext returns a child context that carries the visitor's session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, visitorID string, session *service.Session) context.Context {
	if session == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, visitorKey{}, visitorID)
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the visitor's session and whether one is present.
func SessionFromContext(ctx context.Context) (*service.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*service.Session)
	return s, ok && s != nil
}

// VisitorIDFromContext returns the visitor ID attached by the Visitor middleware.
func VisitorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}

// withSnapshot pins the snapshot the guard evaluated so the handler renders the same state.
func withSnapshot(ctx context.Context, snap domainauth.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snap)
}

// SnapshotFromContext returns the snapshot pinned by the guard, or a fresh one from the
// session. The zero Snapshot (anonymous) is returned when there is no session.
func SnapshotFromContext(ctx context.Context) domainauth.Snapshot {
	if snap, ok := ctx.Value(snapshotKey{}).(domainauth.Snapshot); ok {
		return snap
	}
	if s, ok := SessionFromContext(ctx); ok {
		return s.Snapshot()
	}
	return domainauth.Snapshot{}
}
