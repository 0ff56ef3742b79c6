// Package csvstore writes each run as a CSV file under a per-run timestamped
// directory.
package csvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chrissnell/divesync/internal/log"
	"github.com/chrissnell/divesync/internal/storage"
)

// ResultFile is the name of the CSV file inside each run directory
const ResultFile = "result.csv"

// Store writes runs to <dataDir>/<unix-millis>-<run id>/result.csv
type Store struct {
	dataDir string
}

// New creates a CSV store rooted at dataDir
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

func (s *Store) Name() string { return "csv" }

// RunDir is the directory a run is written to. The millisecond prefix keeps
// directories in creation order and the run ID keeps them distinct.
func (s *Store) RunDir(r *storage.Run) string {
	return filepath.Join(s.dataDir, strconv.FormatInt(r.CreatedAt.UnixMilli(), 10)+"-"+r.ID.String())
}

// StoreRun writes the run and returns the path of the CSV file. An existing
// file is never overwritten.
func (s *Store) StoreRun(ctx context.Context, r *storage.Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := s.RunDir(r)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	filename := filepath.Join(dir, ResultFile)
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", filename, err)
	}

	if err := storage.WriteCSV(f, storage.Flatten(r)); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	log.Debugf("wrote run %s to %s", r.ID, filename)
	return filename, nil
}

// CheckHealth verifies that the data directory can be created and written
func (s *Store) CheckHealth(ctx context.Context) *storage.HealthStatus {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return storage.Unhealthy("data directory unavailable", err)
	}
	f, err := os.CreateTemp(s.dataDir, ".healthcheck-*")
	if err != nil {
		return storage.Unhealthy("data directory not writable", err)
	}
	f.Close()
	os.Remove(f.Name())
	return storage.Healthy("data directory writable: " + s.dataDir)
}

func (s *Store) Close() error { return nil }
