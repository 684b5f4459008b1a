package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tintoy/kubeclient/internal/constants"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Config configures token acquisition from an OAuth2/OIDC issuer.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	AccessToken  string
	Scopes       []string

	// HTTPClient is used for token requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// OAuth2TokenManager obtains tokens with the refresh-token, password or
// client-credentials grant, in that order of preference.
type OAuth2TokenManager struct {
	config *OAuth2Config
	store  *TokenStore
	mu     sync.Mutex
}

// NewOAuth2TokenManager creates a token manager. An AccessToken in config is
// used until it expires.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	if config == nil {
		config = &OAuth2Config{}
	}

	manager := &OAuth2TokenManager{
		config: config,
		store:  NewTokenStore(),
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "bearer",
		})
	}

	return manager
}

// GetToken returns a valid access token, refreshing if necessary.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	token, err := m.fetch(ctx)
	if err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// RefreshToken forces a token refresh.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.fetch(ctx)

	return err
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	refresh := m.config.RefreshToken
	if current := m.store.Get(); current != nil && current.RefreshToken != "" {
		refresh = current.RefreshToken
	}

	m.store.Set(&Token{
		AccessToken:  token,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	})
}

// Current returns the stored token, or nil.
func (m *OAuth2TokenManager) Current() *Token {
	return m.store.Get()
}

func (m *OAuth2TokenManager) fetch(ctx context.Context) (*Token, error) {
	if m.config.TokenURL == "" {
		return nil, constants.ErrNoTokenURL
	}

	if m.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.config.HTTPClient)
	}

	refreshToken := m.config.RefreshToken
	if current := m.store.Get(); current != nil && current.RefreshToken != "" {
		refreshToken = current.RefreshToken
	}

	var (
		token *oauth2.Token
		grant string
		err   error
	)

	switch {
	case refreshToken != "":
		grant = "refresh_token"
		token, err = m.oauth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	case m.config.Username != "" && m.config.Password != "":
		grant = "password"
		token, err = m.oauth2Config().PasswordCredentialsToken(ctx, m.config.Username, m.config.Password)
	case m.config.ClientID != "" && m.config.ClientSecret != "":
		grant = "client_credentials"
		token, err = m.clientCredentialsConfig().Token(ctx)
	default:
		return nil, constants.ErrNoCredentials
	}

	if err != nil {
		return nil, fmt.Errorf("%s grant failed: %w", grant, err)
	}

	stored := &Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}

	if stored.RefreshToken == "" {
		stored.RefreshToken = refreshToken
	}

	if !token.Expiry.IsZero() {
		stored.ExpiresIn = int(time.Until(token.Expiry).Seconds())
	}

	m.store.Set(stored)

	return stored, nil
}

func (m *OAuth2TokenManager) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.config.ClientID,
		ClientSecret: m.config.ClientSecret,
		Scopes:       m.config.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (m *OAuth2TokenManager) clientCredentialsConfig() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     m.config.ClientID,
		ClientSecret: m.config.ClientSecret,
		TokenURL:     m.config.TokenURL,
		Scopes:       m.config.Scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
}
