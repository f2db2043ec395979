package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/publicvoice/portal/internal/observability/statsd"
	"github.com/publicvoice/portal/internal/ports"
)

// Registry defaults.
const (
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultReapInterval = time.Minute
)

// RegistryConfig configures session lifetime and telemetry.
type RegistryConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
	BaseURL      string
	Logger       *slog.Logger
	Metrics      statsd.Sink
}

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Stores ports.TokenStoreFactory // Required: per-visitor token stores
	API    ports.AuthAPI           // Required: backend
	Config RegistryConfig
}

// SessionRegistry owns one Session per visitor. Sessions are created lazily from the
// visitor's persisted token and closed after IdleTimeout without use; closing never
// clears the persisted token, so a returning visitor is still signed in.
type SessionRegistry struct {
	stores ports.TokenStoreFactory
	api    ports.AuthAPI
	cfg    RegistryConfig
	logger *slog.Logger
	now    func() time.Time

	// creating collapses concurrent first requests of one visitor into one NewSession.
	creating singleflight.Group

	mu       sync.Mutex
	sessions map[string]*registryEntry
	closed   bool
}

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// NewSessionRegistry constructs a registry.
func NewSessionRegistry(opts SessionRegistryOptions) (*SessionRegistry, error) {
	if opts.Stores == nil {
		return nil, errors.New("TokenStoreFactory is required")
	}
	if opts.API == nil {
		return nil, errors.New("AuthAPI is required")
	}

	cfg := opts.Config
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Logger = logger

	return &SessionRegistry{
		stores:   opts.Stores,
		api:      opts.API,
		cfg:      cfg,
		logger:   logger.With("component", "session_registry"),
		now:      time.Now,
		sessions: make(map[string]*registryEntry),
	}, nil
}

// ErrRegistryClosed is returned by Get after Close.
var ErrRegistryClosed = errors.New("session registry closed")

// Get returns the visitor's session, creating it on first use. The store read that
// seeds a new session runs outside the registry lock, so a slow store only delays the
// visitor it belongs to.
func (r *SessionRegistry) Get(ctx context.Context, visitorID string) (*Session, error) {
	if visitorID == "" {
		return nil, errors.New("visitor ID is required")
	}
	if s, ok, err := r.lookup(visitorID); ok || err != nil {
		return s, err
	}

	v, err, _ := r.creating.Do(visitorID, func() (any, error) {
		return r.create(ctx, visitorID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *SessionRegistry) lookup(visitorID string) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, ErrRegistryClosed
	}
	e, ok := r.sessions[visitorID]
	if !ok {
		return nil, false, nil
	}
	e.lastSeen = r.now()
	return e.session, true, nil
}

func (r *SessionRegistry) create(ctx context.Context, visitorID string) (*Session, error) {
	if s, ok, err := r.lookup(visitorID); ok || err != nil {
		return s, err
	}

	s, err := NewSession(ctx, SessionOptions{
		Store: r.stores.ForVisitor(visitorID),
		API:   r.api,
		Config: SessionConfig{
			VisitorID: visitorID,
			BaseURL:   r.cfg.BaseURL,
			Logger:    r.cfg.Logger,
			Metrics:   r.cfg.Metrics,
		},
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.Close()
		return nil, ErrRegistryClosed
	}
	if e, ok := r.sessions[visitorID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		s.Close()
		return e.session, nil
	}
	r.sessions[visitorID] = &registryEntry{session: s, lastSeen: r.now()}
	r.mu.Unlock()

	r.logger.Debug("session created", "visitor_id", visitorID)
	return s, nil
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict closes and forgets the visitor's session, if any.
func (r *SessionRegistry) Evict(visitorID string) {
	r.mu.Lock()
	e, ok := r.sessions[visitorID]
	delete(r.sessions, visitorID)
	r.mu.Unlock()

	if ok {
		e.session.Close()
	}
}

// Reap closes sessions idle since before now-IdleTimeout and returns how many it closed.
func (r *SessionRegistry) Reap() int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var idle []*Session
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		r.logger.Debug("reaped idle sessions", "count", len(idle))
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.Gauge("session.live", float64(r.Len()), nil)
	}
	return len(idle)
}

// Run reaps idle sessions every ReapInterval until ctx is cancelled.
// Returns nil on graceful shutdown.
func (r *SessionRegistry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.ReapInterval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "session reaper started",
		"idle_timeout", r.cfg.IdleTimeout, "interval", r.cfg.ReapInterval)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session reaper stopped")
			return nil
		case <-ticker.C:
			r.Reap()
		}
	}
}

// Close closes every session and rejects further Get calls.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		all = append(all, e.session)
	}
	r.sessions = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
