package config

import (
	"fmt"
	"sync"
)

// CachedProvider wraps a ConfigProvider, validating and caching the loaded configuration
// until Reload is called. It is safe for concurrent use.
type CachedProvider struct {
	provider ConfigProvider
	mu       sync.RWMutex
	config   *ConfigData
}

// NewCachedProvider loads and validates the configuration of provider once.
func NewCachedProvider(provider ConfigProvider) (*CachedProvider, error) {
	c := &CachedProvider{provider: provider}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the underlying provider. The previous configuration is kept when
// the new one fails to load or validate.
func (c *CachedProvider) Reload() error {
	cfg, err := c.provider.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
	return nil
}

// LoadConfig returns the cached configuration
func (c *CachedProvider) LoadConfig() (*ConfigData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config, nil
}

// GetSites returns the cached sites
func (c *CachedProvider) GetSites() ([]SiteData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Sites, nil
}

// GetSettings returns the cached settings
func (c *CachedProvider) GetSettings() (*SettingsData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.config.SettingsData
	return &s, nil
}

// Site returns the named site from the cached configuration
func (c *CachedProvider) Site(name string) (SiteData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Site(name)
}

// IsReadOnly reports the wrapped provider's mode
func (c *CachedProvider) IsReadOnly() bool {
	return c.provider.IsReadOnly()
}

// Close closes the wrapped provider
func (c *CachedProvider) Close() error {
	return c.provider.Close()
}
