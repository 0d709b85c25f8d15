package config

import (
	"fmt"
	"path/filepath"
)

// Configuration backends accepted by Open.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// Open returns the provider for a configuration file.
func Open(path, backend string) (ConfigProvider, error) {
	filename, _ := filepath.Abs(path)

	switch backend {
	case BackendYAML:
		return NewYAMLProvider(filename), nil
	case BackendSQLite:
		provider, err := NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
}
