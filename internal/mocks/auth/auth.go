package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	apperrors "github.com/publicvoice/portal/internal/errors"
	"github.com/publicvoice/portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TokenStore        = (*MemoryTokenStore)(nil)
	_ ports.TokenStoreFactory = (*MemoryTokenStoreFactory)(nil)
	_ ports.AuthAPI           = (*FakeAuthAPI)(nil)
)

// ErrStoreUnavailable is returned by MemoryTokenStore.Set when FailWrites is on.
var ErrStoreUnavailable = errors.New("token store unavailable")

// MemoryTokenStore is an in-memory TokenStore for unit tests.
// Corrupt makes Get behave like an unreadable store; FailWrites makes Set fail.
type MemoryTokenStore struct {
	mu         sync.Mutex
	token      string
	sets       []string
	Corrupt    bool
	FailWrites bool
}

// NewMemoryTokenStore creates a store pre-loaded with token ("" for none).
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (m *MemoryTokenStore) Get(_ context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Corrupt {
		return ""
	}
	return m.token
}

func (m *MemoryTokenStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, token)
	if m.FailWrites {
		return ErrStoreUnavailable
	}
	m.token = token
	return nil
}

// Writes returns every value passed to Set, in order.
func (m *MemoryTokenStore) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sets))
	copy(out, m.sets)
	return out
}

// MemoryTokenStoreFactory hands out one MemoryTokenStore per visitor.
type MemoryTokenStoreFactory struct {
	mu     sync.Mutex
	stores map[string]*MemoryTokenStore
}

// NewMemoryTokenStoreFactory creates an empty factory.
func NewMemoryTokenStoreFactory() *MemoryTokenStoreFactory {
	return &MemoryTokenStoreFactory{stores: make(map[string]*MemoryTokenStore)}
}

func (f *MemoryTokenStoreFactory) ForVisitor(visitorID string) ports.TokenStore {
	return f.Store(visitorID)
}

// Store returns the concrete store for a visitor, creating it when missing.
func (f *MemoryTokenStoreFactory) Store(visitorID string) *MemoryTokenStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[visitorID]
	if !ok {
		s = NewMemoryTokenStore("")
		f.stores[visitorID] = s
	}
	return s
}

// FakeAuthAPI is a scriptable AuthAPI. Unset funcs fall back to the Users/Passwords tables:
// Login issues "token-<email>" for a matching password and Me resolves it back.
type FakeAuthAPI struct {
	LoginFunc          func(ctx context.Context, in ports.LoginInput) (string, error)
	RegisterFunc       func(ctx context.Context, in ports.RegisterInput) error
	MeFunc             func(ctx context.Context, token string) (domainauth.UserIdentity, error)
	ForgotPasswordFunc func(ctx context.Context, email string) error
	ResetPasswordFunc  func(ctx context.Context, in ports.ResetPasswordInput) error
	UpdateProfileFunc  func(ctx context.Context, token string, in ports.ProfileUpdate) error

	mu        sync.Mutex
	Users     map[string]domainauth.UserIdentity
	Passwords map[string]string
	calls     map[string]int
}

// NewFakeAuthAPI creates a FakeAuthAPI with empty user tables.
func NewFakeAuthAPI() *FakeAuthAPI {
	return &FakeAuthAPI{
		Users:     make(map[string]domainauth.UserIdentity),
		Passwords: make(map[string]string),
	}
}

// AddUser registers a user that Login and Me will recognise.
func (f *FakeAuthAPI) AddUser(u domainauth.UserIdentity, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Users == nil {
		f.Users = make(map[string]domainauth.UserIdentity)
		f.Passwords = make(map[string]string)
	}
	f.Users[u.Email] = u
	f.Passwords[u.Email] = password
}

// Calls returns how many times the named method was invoked.
func (f *FakeAuthAPI) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeAuthAPI) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

func (f *FakeAuthAPI) Login(ctx context.Context, in ports.LoginInput) (string, error) {
	f.record("Login")
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, in)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.Passwords[in.Email]; !ok || pw != in.Password {
		return "", apperrors.MapStatus(401, "Invalid email or password")
	}
	return "token-" + in.Email, nil
}

func (f *FakeAuthAPI) Register(ctx context.Context, in ports.RegisterInput) error {
	f.record("Register")
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, in)
	}
	f.mu.Lock()
	_, exists := f.Users[in.Email]
	nextID := int64(len(f.Users) + 1)
	f.mu.Unlock()
	if exists {
		return apperrors.MapStatus(400, "Email already registered")
	}
	f.AddUser(domainauth.UserIdentity{
		ID:       nextID,
		FullName: in.FullName,
		Email:    in.Email,
		Role:     domainauth.RoleCitizen,
	}, in.Password)
	return nil
}

func (f *FakeAuthAPI) Me(ctx context.Context, token string) (domainauth.UserIdentity, error) {
	f.record("Me")
	if f.MeFunc != nil {
		return f.MeFunc(ctx, token)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, u := range f.Users {
		if token == "token-"+email {
			return u, nil
		}
	}
	return domainauth.UserIdentity{}, apperrors.MapStatus(401, "Invalid or expired token")
}

func (f *FakeAuthAPI) ForgotPassword(ctx context.Context, email string) error {
	f.record("ForgotPassword")
	if f.ForgotPasswordFunc != nil {
		return f.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (f *FakeAuthAPI) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	f.record("ResetPassword")
	if f.ResetPasswordFunc != nil {
		return f.ResetPasswordFunc(ctx, in)
	}
	return nil
}

func (f *FakeAuthAPI) UpdateProfile(ctx context.Context, token string, in ports.ProfileUpdate) error {
	f.record("UpdateProfile")
	if f.UpdateProfileFunc != nil {
		return f.UpdateProfileFunc(ctx, token, in)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, u := range f.Users {
		if token == "token-"+email {
			u.FullName = in.FullName
			f.Users[email] = u
			return nil
		}
	}
	return apperrors.MapStatus(401, "Invalid or expired token")
}
