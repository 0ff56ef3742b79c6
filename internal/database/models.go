package database

import (
	"time"

	"github.com/jackc/pgtype"
)

// Table names, shared with the pgx export tool
const (
	RunsTable      = "dive_runs"
	SnapshotsTable = "dive_snapshots"
)

// RunRecord is one stored run. Profile holds the levels as JSONB.
type RunRecord struct {
	ID              string       `gorm:"primaryKey;column:id;type:uuid"`
	CreatedAt       time.Time    `gorm:"column:created_at;not null"`
	Algorithm       string       `gorm:"column:algorithm;not null"`
	IntervalMinutes int          `gorm:"column:interval_minutes;not null"`
	Profile         pgtype.JSONB `gorm:"column:profile;type:jsonb"`
}

// TableName specifies the table name for RunRecord
func (RunRecord) TableName() string {
	return RunsTable
}

// SnapshotRecord is one compartment at one step. Time is the run's start
// plus the simulated elapsed time, which makes the table a natural
// hypertable.
type SnapshotRecord struct {
	Time        time.Time `gorm:"column:time;not null;index"`
	RunID       string    `gorm:"column:run_id;type:uuid;not null;index"`
	Step        int       `gorm:"column:step;not null"`
	Compartment int       `gorm:"column:compartment;not null"`
	HalfTime    float64   `gorm:"column:half_time"`
	PPN2        float64   `gorm:"column:pp_n2"`
	PPHe        float64   `gorm:"column:pp_he"`
	MValue      float64   `gorm:"column:m_value"`
	Ceiling     float64   `gorm:"column:ceiling"`
	O2Percent   float64   `gorm:"column:o2_percent"`
	N2Percent   float64   `gorm:"column:n2_percent"`
	HePercent   float64   `gorm:"column:he_percent"`
	GasType     string    `gorm:"column:gas_type"`
	Variant     string    `gorm:"column:variant"`
	ElapsedTime float64   `gorm:"column:elapsed_time"`
	LastDepth   float64   `gorm:"column:last_depth"`
}

// TableName specifies the table name for SnapshotRecord
func (SnapshotRecord) TableName() string {
	return SnapshotsTable
}

// SnapshotColumns lists SnapshotRecord columns in table order
var SnapshotColumns = []string{
	"time", "run_id", "step", "compartment", "half_time", "pp_n2", "pp_he",
	"m_value", "ceiling", "o2_percent", "n2_percent", "he_percent",
	"gas_type", "variant", "elapsed_time", "last_depth",
}
