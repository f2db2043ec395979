package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	apperrors "github.com/publicvoice/portal/internal/errors"
	"github.com/publicvoice/portal/internal/observability/metrics"
	"github.com/publicvoice/portal/internal/observability/statsd"
	"github.com/publicvoice/portal/internal/ports"
)

// storeTimeout bounds token store writes that must not inherit a caller's cancellation.
const storeTimeout = 5 * time.Second

var (
	errSuperseded    = errors.New("resolution superseded")
	errSessionClosed = errors.New("session closed")
)

// SessionConfig carries per-session settings and telemetry.
type SessionConfig struct {
	VisitorID string
	// BaseURL is quoted in the "cannot reach server" message.
	BaseURL string
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// SessionOptions groups dependencies for Session.
type SessionOptions struct {
	Store  ports.TokenStore // Required: durable bearer token
	API    ports.AuthAPI    // Required: identity and credential endpoints
	Config SessionConfig
}

// Session is the single source of truth for one visitor's authentication state.
//
// Every token change starts exactly one identity resolution tagged with a new sequence
// number. Only the resolution whose sequence is still current may commit; anything else
// is dropped together with its side effects. All fields below mu are guarded by it.
//
// Store writes happen outside mu. Each token change gets a version and a write older
// than the last one persisted is skipped, so the store ends on the newest token.
type Session struct {
	store   ports.TokenStore
	api     ports.AuthAPI
	baseURL string
	logger  *slog.Logger
	metrics statsd.Sink

	root       context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	token      string
	user       *domainauth.UserIdentity
	loading    bool
	intent     domainauth.RedirectIntent
	seq        uint64
	settledSeq uint64
	settledErr error
	cancel     context.CancelFunc
	changed    chan struct{}
	closed     bool
	tokenVer   uint64

	persistMu    sync.Mutex
	persistedVer uint64
}

// storeWrite is a pending token store write captured under mu.
type storeWrite struct {
	ver   uint64
	token string
}

// NewSession creates a session from whatever token the store holds and, when one is
// present, starts resolving it immediately.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("TokenStore is required")
	}
	if opts.API == nil {
		return nil, errors.New("AuthAPI is required")
	}

	logger := opts.Config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")
	if opts.Config.VisitorID != "" {
		logger = logger.With("visitor_id", opts.Config.VisitorID)
	}

	token := opts.Store.Get(ctx)

	root, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:      opts.Store,
		api:        opts.API,
		baseURL:    opts.Config.BaseURL,
		logger:     logger,
		metrics:    opts.Config.Metrics,
		root:       root,
		cancelRoot: cancel,
		changed:    make(chan struct{}),
	}

	s.mu.Lock()
	s.token = token
	s.startResolveLocked()
	s.mu.Unlock()
	return s, nil
}

// Snapshot returns an immutable copy of the current state.
func (s *Session) Snapshot() domainauth.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domainauth.Snapshot {
	snap := domainauth.Snapshot{
		Token:           s.token,
		IsLoadingUser:   s.loading,
		PendingRedirect: s.intent,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Subscribe returns a channel that is closed on the next state change.
func (s *Session) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Wait blocks until the current resolution has settled, following any newer resolution
// that supersedes it, and returns the resulting snapshot.
func (s *Session) Wait(ctx context.Context) (domainauth.Snapshot, error) {
	for {
		s.mu.Lock()
		if s.closed {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, errSessionClosed
		}
		if s.settledSeq == s.seq {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// await blocks until resolution seq settles. It returns errSuperseded when a newer
// resolution replaced it, and the resolution's own error when it failed.
func (s *Session) await(ctx context.Context, seq uint64) (domainauth.Snapshot, error) {
	for {
		s.mu.Lock()
		switch {
		case s.closed:
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, errSessionClosed
		case s.seq != seq:
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, errSuperseded
		case s.settledSeq == seq:
			snap, err := s.snapshotLocked(), s.settledErr
			s.mu.Unlock()
			return snap, err
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// currentSeqFor returns the current resolution sequence while token is still the
// session's token.
func (s *Session) currentSeqFor(token string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.token != token {
		return 0, false
	}
	return s.seq, true
}

// RefreshUser re-resolves the current token and returns the committed identity.
// With no token it does nothing and returns nil. The visible user is kept while the
// refresh is in flight.
func (s *Session) RefreshUser(ctx context.Context) (*domainauth.UserIdentity, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errSessionClosed
	}
	if s.token == "" {
		s.mu.Unlock()
		return nil, nil
	}
	seq := s.startResolveLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	snap, err := s.await(ctx, seq)
	if err != nil {
		return nil, err
	}
	return snap.User, nil
}

// Close cancels any in-flight resolution and waits for it to exit. The persisted token
// is left alone. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.broadcastLocked()
	s.mu.Unlock()

	s.cancelRoot()
	s.wg.Wait()
}

// setTokenLocked replaces the token, drops the old identity and starts exactly one
// resolution for the new value. The caller persists the returned write after unlocking.
func (s *Session) setTokenLocked(token string) (uint64, storeWrite) {
	s.user = nil
	w := s.changeTokenLocked(token)
	seq := s.startResolveLocked()
	s.broadcastLocked()
	return seq, w
}

func (s *Session) changeTokenLocked(token string) storeWrite {
	s.token = token
	s.tokenVer++
	return storeWrite{ver: s.tokenVer, token: token}
}

// startResolveLocked supersedes any in-flight resolution and starts a new one for the
// current token. With no token the new sequence settles immediately.
func (s *Session) startResolveLocked() uint64 {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	seq := s.seq

	if s.token == "" || s.closed {
		s.loading = false
		s.settledSeq = seq
		s.settledErr = nil
		return seq
	}

	s.loading = s.user == nil
	ctx, cancel := context.WithCancel(s.root)
	s.cancel = cancel
	token := s.token

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		started := time.Now()
		user, err := s.api.Me(ctx, token)
		metrics.EmitResolveLatency(s.metrics, time.Since(started))
		s.commit(seq, token, user, err)
	}()

	s.logger.Debug("identity resolution started", "seq", seq)
	return seq
}

func (s *Session) commit(seq uint64, token string, user domainauth.UserIdentity, err error) {
	if err == nil {
		if verr := user.Validate(); verr != nil {
			err = apperrors.Wrap(verr, apperrors.ErrCodeMalformed, "invalid identity")
		}
	}

	s.mu.Lock()
	if s.closed || seq != s.seq || token != s.token {
		s.mu.Unlock()
		s.logger.Debug("identity resolution dropped", "seq", seq, "outcome", metrics.ResolveStale)
		metrics.EmitResolve(s.metrics, metrics.ResolveStale, nil)
		return
	}

	s.loading = false
	s.intent = domainauth.IntentNone
	s.cancel = nil

	if err == nil {
		s.user = &user
		s.settledSeq = seq
		s.settledErr = nil
		s.logger.Debug("identity resolution committed", "seq", seq, "outcome", metrics.ResolveCommitted, "role", user.Role)
		metrics.EmitResolve(s.metrics, metrics.ResolveCommitted, nil)
		s.broadcastLocked()
		s.mu.Unlock()
		return
	}

	s.user = nil
	w := s.changeTokenLocked("")
	s.mu.Unlock()

	// The resolution only counts as settled once the cleared token is persisted, so a
	// waiter never observes the old token still in the store.
	s.persist(w)
	s.logger.Debug("identity resolution failed", "seq", seq, "outcome", metrics.ResolveFailed, "error", err)
	metrics.EmitResolve(s.metrics, metrics.ResolveFailed, err)

	s.mu.Lock()
	if !s.closed && s.seq == seq {
		s.settledSeq = seq
		s.settledErr = err
	}
	s.broadcastLocked()
	s.mu.Unlock()
}

// persist writes a token change to the store unless a newer change already landed.
// Failures are logged; the in-memory transition proceeds regardless.
func (s *Session) persist(w storeWrite) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if w.ver <= s.persistedVer {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Set(ctx, w.token); err != nil {
		s.logger.Warn("token store write failed", "clear", w.token == "", "error", err)
	}
	s.persistedVer = w.ver
}

func (s *Session) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
