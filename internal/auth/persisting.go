package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoTokenPersister is returned when a PersistingTokenManager has nowhere
// to save tokens.
var ErrNoTokenPersister = errors.New("no token persister configured")

// TokenPersister saves refreshed credentials, typically to the CLI config file.
type TokenPersister interface {
	PersistToken(token string, expiresAt time.Time, refreshToken string) error
}

// TokenSnapshot exposes the full token held by a manager.
type TokenSnapshot interface {
	Current() *Token
}

// PersistingTokenManager wraps a TokenManager and hands every new token to a
// TokenPersister. Persistence failures are reported through onError and never
// fail the request that triggered them.
type PersistingTokenManager struct {
	manager   TokenManager
	persister TokenPersister
	onError   func(error)

	mu   sync.Mutex
	last string
}

// NewPersistingTokenManager wraps manager. onError may be nil.
func NewPersistingTokenManager(manager TokenManager, persister TokenPersister, onError func(error)) *PersistingTokenManager {
	if onError == nil {
		onError = func(error) {}
	}

	return &PersistingTokenManager{
		manager:   manager,
		persister: persister,
		onError:   onError,
	}
}

// GetToken returns a valid token and persists it if it changed.
func (m *PersistingTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if token != m.last {
		if m.last != "" {
			m.persist(token)
		}

		m.last = token
	}

	return token, nil
}

// RefreshToken forces a refresh and persists the result.
func (m *PersistingTokenManager) RefreshToken(ctx context.Context) error {
	if err := m.manager.RefreshToken(ctx); err != nil {
		return err
	}

	token, err := m.manager.GetToken(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.persist(token)
	m.last = token

	return nil
}

// SetToken sets the token without persisting it.
func (m *PersistingTokenManager) SetToken(token string, expiresAt time.Time) {
	m.manager.SetToken(token, expiresAt)

	m.mu.Lock()
	m.last = token
	m.mu.Unlock()
}

func (m *PersistingTokenManager) persist(accessToken string) {
	if m.persister == nil {
		m.onError(ErrNoTokenPersister)

		return
	}

	var (
		expiresAt    time.Time
		refreshToken string
	)

	if snapshot, ok := m.manager.(TokenSnapshot); ok {
		if current := snapshot.Current(); current != nil {
			expiresAt = current.ExpiresAt
			refreshToken = current.RefreshToken
		}
	}

	if err := m.persister.PersistToken(accessToken, expiresAt, refreshToken); err != nil {
		m.onError(fmt.Errorf("failed to persist token: %w", err))
	}
}
