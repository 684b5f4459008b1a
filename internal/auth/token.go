package auth

import (
	"context"
	"sync"
	"time"

	"github.com/tintoy/kubeclient/internal/constants"
)

// Token represents a bearer token for the API server.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// Valid reports whether the token can be used. Tokens expiring within
// constants.TokenExpirationBuffer are treated as expired.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}

// TokenManager supplies bearer tokens to the auth interceptor.
type TokenManager interface {
	// GetToken returns a valid access token, obtaining a new one if needed.
	GetToken(ctx context.Context) (string, error)
	// RefreshToken forces a new token to be obtained.
	RefreshToken(ctx context.Context) error
	// SetToken replaces the current token.
	SetToken(token string, expiresAt time.Time)
}

// StaticTokenManager serves a fixed token, such as a service account token.
type StaticTokenManager struct {
	store *TokenStore
}

// NewStaticTokenManager creates a manager for a token that never changes.
func NewStaticTokenManager(token string) *StaticTokenManager {
	store := NewTokenStore()
	store.Set(&Token{AccessToken: token, TokenType: "bearer"})

	return &StaticTokenManager{store: store}
}

// GetToken returns the static token.
func (m *StaticTokenManager) GetToken(_ context.Context) (string, error) {
	token := m.store.Get()
	if !token.Valid() {
		return "", constants.ErrNoCredentials
	}

	return token.AccessToken, nil
}

// RefreshToken always fails; a static token has nothing to refresh from.
func (m *StaticTokenManager) RefreshToken(_ context.Context) error {
	return constants.ErrStaticTokenCannotRefresh
}

// SetToken replaces the static token.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt})
}
