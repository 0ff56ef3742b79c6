// Package timescaledb stores runs in Postgres/TimescaleDB through gorm, with
// snapshots in a hypertable keyed by simulated time.
package timescaledb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/divesync/internal/database"
	"github.com/chrissnell/divesync/internal/log"
	"github.com/chrissnell/divesync/internal/storage"
	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"gorm.io/gorm"
)

const insertBatchSize = 500

// Storage holds the connection for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
}

// CompartmentPeak is one row of the dive_compartment_peaks view
type CompartmentPeak struct {
	Compartment int     `gorm:"column:compartment" json:"compartment"`
	PeakLoading float64 `gorm:"column:peak_loading" json:"peak_loading"`
	PeakCeiling float64 `gorm:"column:peak_ceiling" json:"peak_ceiling"`
	ElapsedTime float64 `gorm:"column:elapsed_time" json:"elapsed_time"`
}

// New connects and prepares the schema. The hypertable and extension are
// best effort so that plain Postgres works too.
func New(ctx context.Context, connectionString string) (*Storage, error) {
	db, err := database.CreateConnection(ctx, connectionString, database.DefaultPoolOptions())
	if err != nil {
		return nil, err
	}
	return NewWithDB(ctx, db)
}

// NewWithDB prepares the schema on an existing connection
func NewWithDB(ctx context.Context, db *gorm.DB) (*Storage, error) {
	t := &Storage{TimescaleDBConn: db}

	log.Info("migrating run tables...")
	if err := db.WithContext(ctx).AutoMigrate(&database.RunRecord{}, &database.SnapshotRecord{}); err != nil {
		log.Warn("warning: could not migrate run tables")
		return nil, err
	}

	log.Info("creating TimescaleDB extension...")
	if err := db.WithContext(ctx).Exec(createExtensionSQL).Error; err != nil {
		log.Warnf("TimescaleDB extension unavailable, continuing with plain tables: %v", err)
	} else {
		log.Info("creating hypertable...")
		if err := db.WithContext(ctx).Exec(createHypertableSQL).Error; err != nil {
			log.Warnf("warning: could not create hypertable: %v", err)
		}
	}

	log.Info("creating compartment peak view...")
	if err := db.WithContext(ctx).Exec(createPeakViewSQL).Error; err != nil {
		log.Warn("warning: could not create compartment peak view")
		return nil, err
	}

	return t, nil
}

func (t *Storage) Name() string { return "timescaledb" }

// StoreRun writes the run record and its snapshots in one transaction
func (t *Storage) StoreRun(ctx context.Context, r *storage.Run) (string, error) {
	var profile pgtype.JSONB
	if err := profile.Set(r.Levels); err != nil {
		return "", fmt.Errorf("encoding profile: %w", err)
	}

	record := database.RunRecord{
		ID:              r.ID.String(),
		CreatedAt:       r.CreatedAt,
		Algorithm:       r.Algorithm,
		IntervalMinutes: r.Interval,
		Profile:         profile,
	}

	rows := storage.Flatten(r)
	snaps := make([]database.SnapshotRecord, len(rows))
	for i, row := range rows {
		snaps[i] = toRecord(r.CreatedAt, row)
	}

	err := t.TimescaleDBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if len(snaps) == 0 {
			return nil
		}
		return tx.CreateInBatches(snaps, insertBatchSize).Error
	})
	if err != nil {
		log.Error("could not store run:", err)
		return "", err
	}
	return r.ID.String(), nil
}

func toRecord(start time.Time, row storage.SnapshotRow) database.SnapshotRecord {
	return database.SnapshotRecord{
		Time:        start.Add(time.Duration(row.ElapsedTime * float64(time.Minute))),
		RunID:       row.RunID.String(),
		Step:        row.Step,
		Compartment: row.Compartment,
		HalfTime:    row.HalfTime,
		PPN2:        row.PPN2,
		PPHe:        row.PPHe,
		MValue:      row.MValue,
		Ceiling:     row.Ceiling,
		O2Percent:   row.O2Percent,
		N2Percent:   row.N2Percent,
		HePercent:   row.HePercent,
		GasType:     row.GasType,
		Variant:     row.Variant,
		ElapsedTime: row.ElapsedTime,
		LastDepth:   row.LastDepth,
	}
}

func fromRecord(runID uuid.UUID, rec database.SnapshotRecord) storage.SnapshotRow {
	return storage.SnapshotRow{
		RunID:       runID,
		Step:        rec.Step,
		Compartment: rec.Compartment,
		HalfTime:    rec.HalfTime,
		PPN2:        rec.PPN2,
		PPHe:        rec.PPHe,
		MValue:      rec.MValue,
		Ceiling:     rec.Ceiling,
		O2Percent:   rec.O2Percent,
		N2Percent:   rec.N2Percent,
		HePercent:   rec.HePercent,
		GasType:     rec.GasType,
		Variant:     rec.Variant,
		ElapsedTime: rec.ElapsedTime,
		LastDepth:   rec.LastDepth,
	}
}

// LoadRun reads a run back with its snapshots
func (t *Storage) LoadRun(ctx context.Context, id string) (*storage.Run, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", storage.ErrRunNotFound, id)
	}

	db := t.TimescaleDBConn.WithContext(ctx)

	var record database.RunRecord
	if err := db.First(&record, "id = ?", runID.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
		}
		return nil, err
	}

	r := &storage.Run{
		ID:        runID,
		CreatedAt: record.CreatedAt,
		Algorithm: record.Algorithm,
		Interval:  record.IntervalMinutes,
	}
	if record.Profile.Status == pgtype.Present {
		if err := json.Unmarshal(record.Profile.Bytes, &r.Levels); err != nil {
			return nil, fmt.Errorf("decoding profile: %w", err)
		}
	}

	var recs []database.SnapshotRecord
	if err := db.Where("run_id = ?", runID.String()).Order("step, compartment").Find(&recs).Error; err != nil {
		return nil, err
	}
	rows := make([]storage.SnapshotRow, len(recs))
	for i, rec := range recs {
		rows[i] = fromRecord(runID, rec)
	}

	r.Result = &deco.RunResult{Interval: r.Interval, Snapshots: storage.Unflatten(rows)}
	return r, nil
}

// ListRuns returns the most recent runs first
func (t *Storage) ListRuns(ctx context.Context, limit int) ([]storage.RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []database.RunRecord
	if err := t.TimescaleDBConn.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([]storage.RunInfo, len(records))
	for i, rec := range records {
		var steps int64
		t.TimescaleDBConn.WithContext(ctx).Model(&database.SnapshotRecord{}).
			Where("run_id = ?", rec.ID).Distinct("step").Count(&steps)
		out[i] = storage.RunInfo{
			ID:        rec.ID,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
			Algorithm: rec.Algorithm,
			Interval:  rec.IntervalMinutes,
			Steps:     int(steps),
		}
	}
	return out, nil
}

// Peaks reads the per-compartment peaks view for one run
func (t *Storage) Peaks(ctx context.Context, id string) ([]CompartmentPeak, error) {
	var peaks []CompartmentPeak
	err := t.TimescaleDBConn.WithContext(ctx).Raw(selectPeaksSQL, id).Scan(&peaks).Error
	return peaks, err
}

// CheckHealth pings the database and runs a trivial query
func (t *Storage) CheckHealth(ctx context.Context) *storage.HealthStatus {
	if t.TimescaleDBConn == nil {
		return storage.Unhealthy("No database connection", errors.New("TimescaleDB connection is nil"))
	}

	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return storage.Unhealthy("Failed to get underlying database connection", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storage.Unhealthy("Database ping failed", err)
	}

	var result int
	if err := t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return storage.Unhealthy("Database query test failed", err)
	}
	return storage.Healthy("TimescaleDB operational - ping: OK, query test: OK")
}

// Close closes the underlying connection pool
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
