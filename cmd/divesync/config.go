package main

import (
	"fmt"
	"path/filepath"

	"github.com/chrissnell/divesync/pkg/config"
)

// defaultsProvider serves the built-in configuration when no file is given
type defaultsProvider struct{}

func (defaultsProvider) LoadConfig() (*config.ConfigData, error) { return config.Default(), nil }
func (defaultsProvider) IsReadOnly() bool { return true }
func (defaultsProvider) Close() error { return nil }

func newProvider(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	if cfgFile == "" {
		return defaultsProvider{}, nil
	}

	filename, _ := filepath.Abs(config.ExpandPath(cfgFile))

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
}

// loadConfig reads the configuration, applies DIVESYNC_* overrides and
// validates the result
func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	provider, err := newProvider(cfgFile, cfgBackend)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	cfgData, err := config.NewEnvProvider(provider, nil).LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config. Did you pass the --config flag? Run with --help for help: %w", err)
	}

	if err := cfgData.Validate(); err != nil {
		return nil, err
	}
	return cfgData, nil
}
