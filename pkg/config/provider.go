package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/gas"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, layered over Default()
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Defaults DefaultsData `json:"defaults" yaml:"defaults"`
	Storage  StorageData  `json:"storage" yaml:"storage"`
	Server   ServerData   `json:"server" yaml:"server"`
	Plot     PlotData     `json:"plot" yaml:"plot"`
	Logging  LoggingData  `json:"logging" yaml:"logging"`
}

// DefaultsData holds the values used when a run does not specify them
type DefaultsData struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Interval  int    `json:"interval" yaml:"interval"`
	Gas       string `json:"gas" yaml:"gas"`
}

// StorageData holds the configuration for the result stores
type StorageData struct {
	DataDir     string           `json:"data_dir" yaml:"data_dir"`
	CSV         bool             `json:"csv" yaml:"csv"`
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
	Archive     *ArchiveData     `json:"archive,omitempty" yaml:"archive,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ArchiveData configures the S3-compatible object store for run archives
type ArchiveData struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
}

// ServerData limits bound the work one request can cause: MaxSteps caps the
// snapshot sets of a posted run, MaxBodyBytes the request body
type ServerData struct {
	ListenAddr   string `json:"listen_addr" yaml:"listen_addr"`
	Port         int    `json:"port" yaml:"port"`
	NDLCacheSize int    `json:"ndl_cache_size" yaml:"ndl_cache_size"`
	StoreRuns    bool   `json:"store_runs" yaml:"store_runs"`
	MaxSteps     int    `json:"max_steps" yaml:"max_steps"`
	MaxBodyBytes int    `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// PlotData sizes are in inches
type PlotData struct {
	Dir    string  `json:"dir" yaml:"dir"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

type LoggingData struct {
	Debug      bool   `json:"debug" yaml:"debug"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

// Default returns the built-in configuration
func Default() *ConfigData {
	base := ".divesync"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".divesync")
	}

	return &ConfigData{
		Defaults: DefaultsData{
			Algorithm: "zhl16-a",
			Interval:  5,
			Gas:       "21",
		},
		Storage: StorageData{
			DataDir: filepath.Join(base, "data"),
		},
		Server: ServerData{
			Port:         8080,
			NDLCacheSize: 256,
			MaxSteps:     10000,
			MaxBodyBytes: 1 << 20,
		},
		Plot: PlotData{
			Dir:    filepath.Join(base, "plots"),
			Width:  10,
			Height: 6,
		},
	}
}

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for values the rest of the program
// cannot work with
func (c *ConfigData) Validate() error {
	var errs []error

	if _, err := deco.ParseVariant(c.Defaults.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("defaults.algorithm: %w", err))
	}
	if c.Defaults.Interval <= 0 {
		errs = append(errs, fmt.Errorf("defaults.interval must be positive, got %d", c.Defaults.Interval))
	}
	if _, err := gas.ParseMix(c.Defaults.Gas); err != nil {
		errs = append(errs, fmt.Errorf("defaults.gas: %w", err))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.NDLCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("server.ndl_cache_size must be positive, got %d", c.Server.NDLCacheSize))
	}
	if c.Server.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("server.max_steps must be positive, got %d", c.Server.MaxSteps))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes))
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		errs = append(errs, fmt.Errorf("plot size %.1fx%.1f must be positive", c.Plot.Width, c.Plot.Height))
	}
	if a := c.Storage.Archive; a != nil && (a.Endpoint == "" || a.Bucket == "") {
		errs = append(errs, errors.New("storage.archive needs an endpoint and a bucket"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
