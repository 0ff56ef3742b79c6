// Package sqlite stores runs and their snapshots in an embedded SQLite
// database and reads them back.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/divesync/internal/storage"
	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/migrate"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const insertSnapshotSQL = `
INSERT INTO snapshots (
	run_id, step, compartment, half_time, pp_n2, pp_he, m_value, ceiling,
	o2_percent, n2_percent, he_percent, gas_type, variant, elapsed_time, last_depth
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// created_at is stored fixed-width so that text order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed ResultStore and RunReader
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at path and brings its schema
// up to date. logger may be nil.
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one connection, so the foreign_keys pragma covers every statement
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	provider := migrate.NewFSProvider(migrations, "migrations", "schema_migrations", migrate.SQLite)
	if err := migrate.NewMigrator(db, provider, logger).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate run database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Name() string { return "sqlite" }

// StoreRun inserts the run and all snapshot rows in one transaction and
// returns the run ID
func (s *Store) StoreRun(ctx context.Context, r *storage.Run) (string, error) {
	levels, err := json.Marshal(r.Levels)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, algorithm, interval, levels) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.CreatedAt.UTC().Format(timeLayout), r.Algorithm, r.Interval, string(levels))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSnapshotSQL)
	if err != nil {
		return "", fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range storage.Flatten(r) {
		_, err := stmt.ExecContext(ctx,
			row.RunID.String(), row.Step, row.Compartment, row.HalfTime, row.PPN2, row.PPHe,
			row.MValue, row.Ceiling, row.O2Percent, row.N2Percent, row.HePercent,
			row.GasType, row.Variant, row.ElapsedTime, row.LastDepth)
		if err != nil {
			return "", fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.ID.String(), nil
}

// LoadRun reads a run and its snapshots back
func (s *Store) LoadRun(ctx context.Context, id string) (*storage.Run, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", storage.ErrRunNotFound, id)
	}

	var (
		created string
		levels  string
		r       = &storage.Run{ID: runID}
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT created_at, algorithm, interval, levels FROM runs WHERE id = ?`, runID.String()).
		Scan(&created, &r.Algorithm, &r.Interval, &levels)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", created, err)
	}
	if err := json.Unmarshal([]byte(levels), &r.Levels); err != nil {
		return nil, fmt.Errorf("bad levels: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, compartment, half_time, pp_n2, pp_he, m_value, ceiling,
		       o2_percent, n2_percent, he_percent, gas_type, variant, elapsed_time, last_depth
		FROM snapshots WHERE run_id = ? ORDER BY step, compartment`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []storage.SnapshotRow
	for rows.Next() {
		row := storage.SnapshotRow{RunID: runID}
		err := rows.Scan(&row.Step, &row.Compartment, &row.HalfTime, &row.PPN2, &row.PPHe,
			&row.MValue, &row.Ceiling, &row.O2Percent, &row.N2Percent, &row.HePercent,
			&row.GasType, &row.Variant, &row.ElapsedTime, &row.LastDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snaps = append(snaps, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.Result = &deco.RunResult{Interval: r.Interval, Snapshots: storage.Unflatten(snaps)}
	return r, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.algorithm, r.interval,
		       (SELECT COUNT(DISTINCT step) FROM snapshots s WHERE s.run_id = r.id)
		FROM runs r ORDER BY r.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []storage.RunInfo
	for rows.Next() {
		var ri storage.RunInfo
		if err := rows.Scan(&ri.ID, &ri.CreatedAt, &ri.Algorithm, &ri.Interval, &ri.Steps); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

// CheckHealth pings the database
func (s *Store) CheckHealth(ctx context.Context) *storage.HealthStatus {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.Unhealthy("SQLite ping failed", err)
	}
	return storage.Healthy("SQLite operational: " + s.path)
}

func (s *Store) Close() error {
	return s.db.Close()
}
