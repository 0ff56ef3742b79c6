package config

import (
	"fmt"
	"strconv"
)

// setting binds one dotted configuration key to a field of ConfigData. The
// SQLite provider and environment overrides share this table.
type setting struct {
	key string
	get func(c *ConfigData) string
	set func(c *ConfigData, v string) error
}

func stringSetting(key string, field func(c *ConfigData) *string) setting {
	return setting{
		key: key,
		get: func(c *ConfigData) string { return *field(c) },
		set: func(c *ConfigData, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func intSetting(key string, field func(c *ConfigData) *int) setting {
	return setting{
		key: key,
		get: func(c *ConfigData) string { return strconv.Itoa(*field(c)) },
		set: func(c *ConfigData, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatSetting(key string, field func(c *ConfigData) *float64) setting {
	return setting{
		key: key,
		get: func(c *ConfigData) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *ConfigData, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolSetting(key string, field func(c *ConfigData) *bool) setting {
	return setting{
		key: key,
		get: func(c *ConfigData) string { return strconv.FormatBool(*field(c)) },
		set: func(c *ConfigData, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// optional sections are allocated on first write and read as empty when nil
func sqliteSection(c *ConfigData) *SQLiteData {
	if c.Storage.SQLite == nil {
		c.Storage.SQLite = &SQLiteData{}
	}
	return c.Storage.SQLite
}

func timescaleSection(c *ConfigData) *TimescaleDBData {
	if c.Storage.TimescaleDB == nil {
		c.Storage.TimescaleDB = &TimescaleDBData{}
	}
	return c.Storage.TimescaleDB
}

func archiveSection(c *ConfigData) *ArchiveData {
	if c.Storage.Archive == nil {
		c.Storage.Archive = &ArchiveData{}
	}
	return c.Storage.Archive
}

func optional(s setting, present func(c *ConfigData) bool) setting {
	get := s.get
	s.get = func(c *ConfigData) string {
		if !present(c) {
			return ""
		}
		return get(c)
	}
	return s
}

func hasSQLite(c *ConfigData) bool { return c.Storage.SQLite != nil }
func hasTimescale(c *ConfigData) bool { return c.Storage.TimescaleDB != nil }
func hasArchive(c *ConfigData) bool { return c.Storage.Archive != nil }

var settings = []setting{
	stringSetting("defaults.algorithm", func(c *ConfigData) *string { return &c.Defaults.Algorithm }),
	intSetting("defaults.interval", func(c *ConfigData) *int { return &c.Defaults.Interval }),
	stringSetting("defaults.gas", func(c *ConfigData) *string { return &c.Defaults.Gas }),

	stringSetting("storage.data_dir", func(c *ConfigData) *string { return &c.Storage.DataDir }),
	boolSetting("storage.csv", func(c *ConfigData) *bool { return &c.Storage.CSV }),
	optional(stringSetting("storage.sqlite.path", func(c *ConfigData) *string { return &sqliteSection(c).Path }), hasSQLite),
	optional(stringSetting("storage.timescaledb.connection_string", func(c *ConfigData) *string { return &timescaleSection(c).ConnectionString }), hasTimescale),
	optional(stringSetting("storage.archive.endpoint", func(c *ConfigData) *string { return &archiveSection(c).Endpoint }), hasArchive),
	optional(stringSetting("storage.archive.access_key", func(c *ConfigData) *string { return &archiveSection(c).AccessKey }), hasArchive),
	optional(stringSetting("storage.archive.secret_key", func(c *ConfigData) *string { return &archiveSection(c).SecretKey }), hasArchive),
	optional(stringSetting("storage.archive.bucket", func(c *ConfigData) *string { return &archiveSection(c).Bucket }), hasArchive),
	optional(stringSetting("storage.archive.region", func(c *ConfigData) *string { return &archiveSection(c).Region }), hasArchive),
	optional(boolSetting("storage.archive.use_ssl", func(c *ConfigData) *bool { return &archiveSection(c).UseSSL }), hasArchive),

	stringSetting("server.listen_addr", func(c *ConfigData) *string { return &c.Server.ListenAddr }),
	intSetting("server.port", func(c *ConfigData) *int { return &c.Server.Port }),
	intSetting("server.ndl_cache_size", func(c *ConfigData) *int { return &c.Server.NDLCacheSize }),
	boolSetting("server.store_runs", func(c *ConfigData) *bool { return &c.Server.StoreRuns }),
	intSetting("server.max_steps", func(c *ConfigData) *int { return &c.Server.MaxSteps }),
	intSetting("server.max_body_bytes", func(c *ConfigData) *int { return &c.Server.MaxBodyBytes }),

	stringSetting("plot.dir", func(c *ConfigData) *string { return &c.Plot.Dir }),
	floatSetting("plot.width", func(c *ConfigData) *float64 { return &c.Plot.Width }),
	floatSetting("plot.height", func(c *ConfigData) *float64 { return &c.Plot.Height }),

	boolSetting("logging.debug", func(c *ConfigData) *bool { return &c.Logging.Debug }),
	stringSetting("logging.file", func(c *ConfigData) *string { return &c.Logging.File }),
	intSetting("logging.max_size_mb", func(c *ConfigData) *int { return &c.Logging.MaxSizeMB }),
	intSetting("logging.max_backups", func(c *ConfigData) *int { return &c.Logging.MaxBackups }),
	intSetting("logging.max_age_days", func(c *ConfigData) *int { return &c.Logging.MaxAgeDays }),
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// Keys lists every configuration key in dotted form
func Keys() []string {
	keys := make([]string, len(settings))
	for i, s := range settings {
		keys[i] = s.key
	}
	return keys
}

// Set assigns a single dotted key from its string form
func (c *ConfigData) Set(key, value string) error {
	s, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return s.set(c, value)
}

// Get returns the string form of a dotted key
func (c *ConfigData) Get(key string) (string, error) {
	s, ok := lookupSetting(key)
	if !ok {
		return "", fmt.Errorf("unknown configuration key %q", key)
	}
	return s.get(c), nil
}
