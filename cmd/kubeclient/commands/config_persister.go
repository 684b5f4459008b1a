package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ConfigPersister implements auth.TokenPersister by writing tokens back to
// the viper config file.
type ConfigPersister struct {
	mutex sync.Mutex
	v     *viper.Viper
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister(v *viper.Viper) *ConfigPersister {
	return &ConfigPersister{v: v}
}

// PersistToken stores the token and related metadata in the config.
func (p *ConfigPersister) PersistToken(token string, expiresAt time.Time, refreshToken string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.v.Set("token", token)

	if !expiresAt.IsZero() {
		p.v.Set("token_expires_at", expiresAt.UTC().Format(time.RFC3339))
	}

	if refreshToken != "" {
		p.v.Set("refresh_token", refreshToken)
	}

	p.v.Set("last_refreshed", time.Now().UTC().Format(time.RFC3339))

	if p.v.ConfigFileUsed() == "" {
		return nil
	}

	if err := p.v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
