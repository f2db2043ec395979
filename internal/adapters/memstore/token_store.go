// Package memstore keeps visitor tokens in process memory. It backs AUTH_TOKEN_STORE=memory
// for local development; tokens are lost on restart.
package memstore

import (
	"context"
	"sync"

	"github.com/publicvoice/portal/internal/ports"
)

// TokenStoreFactory is a concurrency-safe map of visitor ID to token.
type TokenStoreFactory struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewTokenStoreFactory() *TokenStoreFactory {
	return &TokenStoreFactory{tokens: make(map[string]string)}
}

func (f *TokenStoreFactory) ForVisitor(visitorID string) ports.TokenStore {
	return visitorStore{f: f, id: visitorID}
}

// Len reports how many visitors currently hold a token.
func (f *TokenStoreFactory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tokens)
}

type visitorStore struct {
	f  *TokenStoreFactory
	id string
}

func (s visitorStore) Get(_ context.Context) string {
	s.f.mu.RLock()
	defer s.f.mu.RUnlock()
	return s.f.tokens[s.id]
}

func (s visitorStore) Set(_ context.Context, token string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if token == "" {
		delete(s.f.tokens, s.id)
		return nil
	}
	s.f.tokens[s.id] = token
	return nil
}
