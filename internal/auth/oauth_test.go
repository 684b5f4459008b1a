package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/internal/constants"
)

func tokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return server
}

func writeToken(w http.ResponseWriter, token Token) {
	_ = json.NewEncoder(w).Encode(token)
}

//nolint:funlen // one subtest per grant
func TestOAuth2TokenManager_GetToken(t *testing.T) {
	t.Parallel()

	t.Run("returns existing valid token", func(t *testing.T) {
		t.Parallel()

		manager := NewOAuth2TokenManager(&OAuth2Config{AccessToken: "existing-token"})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "existing-token", token)
	})

	t.Run("refreshes expired token using refresh token", func(t *testing.T) {
		t.Parallel()

		server := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
			assert.Equal(t, "old-refresh-token", r.Form.Get("refresh_token"))

			writeToken(w, Token{AccessToken: "new-access-token", RefreshToken: "new-refresh-token", ExpiresIn: 3600, TokenType: "bearer"})
		})

		manager := NewOAuth2TokenManager(&OAuth2Config{TokenURL: server.URL + "/token"})
		manager.store.Set(&Token{
			AccessToken:  "expired-token",
			RefreshToken: "old-refresh-token",
			ExpiresAt:    time.Now().Add(-time.Hour),
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new-access-token", token)
		assert.Equal(t, "new-refresh-token", manager.Current().RefreshToken)
		assert.True(t, manager.Current().ExpiresAt.After(time.Now()))
	})

	t.Run("uses client credentials when no refresh token", func(t *testing.T) {
		t.Parallel()

		server := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", username)
			assert.Equal(t, "client-secret", password)
			assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))

			writeToken(w, Token{AccessToken: "client-token", ExpiresIn: 3600, TokenType: "bearer"})
		})

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "client-token", token)
	})

	t.Run("uses password grant", func(t *testing.T) {
		t.Parallel()

		server := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "password", r.Form.Get("grant_type"))
			assert.Equal(t, "testuser", r.Form.Get("username"))
			assert.Equal(t, "testpass", r.Form.Get("password"))

			writeToken(w, Token{AccessToken: "password-token", RefreshToken: "refresh-token", ExpiresIn: 3600, TokenType: "bearer"})
		})

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL: server.URL + "/token",
			Username: "testuser",
			Password: "testpass",
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "password-token", token)
	})

	t.Run("handles token request error", func(t *testing.T) {
		t.Parallel()

		server := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_client",
				"error_description": "Client authentication failed",
			})
		})

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/token",
			ClientID:     "bad-client",
			ClientSecret: "bad-secret",
		})

		token, err := manager.GetToken(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_client")
		assert.Contains(t, err.Error(), "Client authentication failed")
		assert.Empty(t, token)
	})

	t.Run("no credentials available", func(t *testing.T) {
		t.Parallel()

		manager := NewOAuth2TokenManager(&OAuth2Config{TokenURL: "http://example.invalid/token"})

		_, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, constants.ErrNoCredentials)
	})

	t.Run("no token URL", func(t *testing.T) {
		t.Parallel()

		_, err := NewOAuth2TokenManager(nil).GetToken(context.Background())
		require.ErrorIs(t, err, constants.ErrNoTokenURL)
	})
}

func TestOAuth2TokenManager_SetToken(t *testing.T) {
	t.Parallel()

	manager := NewOAuth2TokenManager(&OAuth2Config{})

	expiresAt := time.Now().Add(time.Hour)
	manager.SetToken("manual-token", expiresAt)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "manual-token", token)

	stored := manager.store.Get()
	assert.Equal(t, "bearer", stored.TokenType)
	assert.Equal(t, expiresAt.Unix(), stored.ExpiresAt.Unix())
}

func TestOAuth2TokenManager_RefreshToken(t *testing.T) {
	t.Parallel()

	server := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeToken(w, Token{AccessToken: "refreshed-token", ExpiresIn: 3600, TokenType: "bearer"})
	})

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})

	manager.SetToken("current-token", time.Now().Add(time.Hour))
	require.NoError(t, manager.RefreshToken(context.Background()))

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token)
}

type recordingPersister struct {
	tokens []string
	err    error
}

func (p *recordingPersister) PersistToken(token string, _ time.Time, _ string) error {
	p.tokens = append(p.tokens, token)

	return p.err
}

func TestPersistingTokenManager(t *testing.T) {
	t.Parallel()

	var issued atomic.Int32

	server := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		n := issued.Add(1)
		writeToken(w, Token{AccessToken: "token-" + string(rune('0'+n)), ExpiresIn: 3600})
	})

	persister := &recordingPersister{}
	inner := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "initial",
	})
	manager := NewPersistingTokenManager(inner, persister, nil)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "initial", token)
	assert.Empty(t, persister.tokens)

	require.NoError(t, manager.RefreshToken(context.Background()))
	assert.Equal(t, []string{"token-1"}, persister.tokens)

	manager.SetToken("manual", time.Now().Add(time.Hour))

	token, err = manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "manual", token)
	assert.Equal(t, []string{"token-1"}, persister.tokens)
}

func TestPersistingTokenManager_PersistFailureIsReported(t *testing.T) {
	t.Parallel()

	errDisk := errors.New("disk full")

	var reported error

	server := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeToken(w, Token{AccessToken: "fresh", ExpiresIn: 3600})
	})

	inner := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	manager := NewPersistingTokenManager(inner, &recordingPersister{err: errDisk}, func(err error) { reported = err })

	require.NoError(t, manager.RefreshToken(context.Background()))
	require.ErrorIs(t, reported, errDisk)
}
