package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chrissnell/divesync/internal/log"
	"github.com/chrissnell/divesync/internal/storage"
	"github.com/chrissnell/divesync/internal/storage/archive"
	"github.com/chrissnell/divesync/internal/storage/csvstore"
	"github.com/chrissnell/divesync/internal/storage/sqlite"
	"github.com/chrissnell/divesync/internal/storage/timescaledb"
	"github.com/chrissnell/divesync/pkg/config"
)

const healthCheckInterval = time.Minute

// storeSelection picks which configured stores to open
type storeSelection struct {
	csv         bool
	sqlite      bool
	timescaledb bool
	archive     bool
}

func allStores() storeSelection {
	return storeSelection{csv: true, sqlite: true, timescaledb: true, archive: true}
}

func (s storeSelection) any() bool {
	return s.csv || s.sqlite || s.timescaledb || s.archive
}

// sqlitePath is the configured run database, or runs.db in the data directory
func sqlitePath(cfg *config.ConfigData) string {
	if cfg.Storage.SQLite != nil && cfg.Storage.SQLite.Path != "" {
		return config.ExpandPath(cfg.Storage.SQLite.Path)
	}
	return filepath.Join(config.ExpandPath(cfg.Storage.DataDir), "runs.db")
}

// openStores opens the selected stores. CSV and SQLite are always
// available; TimescaleDB and the archive are opened only when configured.
func openStores(ctx context.Context, cfg *config.ConfigData, sel storeSelection) (*storage.Multi, error) {
	var stores []storage.ResultStore
	fail := func(err error) (*storage.Multi, error) {
		storage.NewMulti(stores...).Close()
		return nil, err
	}

	if sel.csv {
		stores = append(stores, csvstore.New(config.ExpandPath(cfg.Storage.DataDir)))
	}

	if sel.sqlite {
		path := sqlitePath(cfg)
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return fail(err)
		}
		s, err := sqlite.New(ctx, path, log.Named("migrate"))
		if err != nil {
			return fail(fmt.Errorf("opening SQLite run store: %w", err))
		}
		stores = append(stores, s)
	}

	if sel.timescaledb && cfg.Storage.TimescaleDB != nil {
		s, err := timescaledb.New(ctx, cfg.Storage.TimescaleDB.ConnectionString)
		if err != nil {
			return fail(fmt.Errorf("opening TimescaleDB run store: %w", err))
		}
		stores = append(stores, s)
	}

	if a := cfg.Storage.Archive; sel.archive && a != nil {
		s, err := archive.New(archive.Config{
			Endpoint:  a.Endpoint,
			Region:    a.Region,
			AccessKey: a.AccessKey,
			SecretKey: a.SecretKey,
			Bucket:    a.Bucket,
			UseSSL:    a.UseSSL,
		})
		if err != nil {
			return fail(fmt.Errorf("opening archive store: %w", err))
		}
		stores = append(stores, s)
	}

	m := storage.NewMulti(stores...)
	for _, s := range m.Stores() {
		log.Debugf("opened %s run store", s.Name())
	}
	return m, nil
}

// monitorStores starts a health monitor for every store that can check itself
func monitorStores(ctx context.Context, m *storage.Multi) *storage.HealthManager {
	hm := storage.NewHealthManager()
	for _, s := range m.Stores() {
		if checker, ok := s.(storage.HealthChecker); ok {
			storage.StartHealthMonitor(ctx, hm, s.Name(), checker, healthCheckInterval)
		}
	}
	return hm
}
