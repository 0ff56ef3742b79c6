package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DIVESYNC_"

// EnvName maps a dotted key to its environment variable, e.g.
// defaults.algorithm -> DIVESYNC_DEFAULTS_ALGORITHM
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadDotEnv loads variables from .env style files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from DIVESYNC_* variables found
// through lookup, normally os.LookupEnv
func (c *ConfigData) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, s := range settings {
		v, ok := lookup(EnvName(s.key))
		if !ok {
			continue
		}
		if err := s.set(c, v); err != nil {
			return fmt.Errorf("%s: %w", EnvName(s.key), err)
		}
	}
	return nil
}

// EnvProvider wraps a ConfigProvider so that environment overrides are
// applied to every load
type EnvProvider struct {
	provider ConfigProvider
	lookup   func(string) (string, bool)
}

// NewEnvProvider wraps provider. A nil lookup uses os.LookupEnv.
func NewEnvProvider(provider ConfigProvider, lookup func(string) (string, bool)) *EnvProvider {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvProvider{provider: provider, lookup: lookup}
}

// LoadConfig loads from the wrapped provider, then applies overrides
func (e *EnvProvider) LoadConfig() (*ConfigData, error) {
	c, err := e.provider.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(e.lookup); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *EnvProvider) IsReadOnly() bool { return e.provider.IsReadOnly() }
func (e *EnvProvider) Close() error { return e.provider.Close() }
