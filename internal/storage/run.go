// Package storage persists dive profile runs to one or more result stores.
package storage

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/zhl16"
	"github.com/google/uuid"
)

// LevelRecord is the stored form of one profile level
type LevelRecord struct {
	Depth float64 `json:"depth"`
	Time  int     `json:"time"`
	Gas   string  `json:"gas"`
}

// Run is one completed profile run as handed to a ResultStore
type Run struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Algorithm string          `json:"algorithm"`
	Interval  int             `json:"interval"`
	Levels    []LevelRecord   `json:"levels"`
	Result    *deco.RunResult `json:"result"`
}

// NewRun builds a Run with a fresh ID from a finished runner result
func NewRun(v deco.Variant, p *deco.Profile, result *deco.RunResult) *Run {
	levels := make([]LevelRecord, len(p.Levels))
	for i, l := range p.Levels {
		levels[i] = LevelRecord{Depth: l.Depth, Time: l.Time, Gas: l.Mix.Recipe()}
	}

	return &Run{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Algorithm: v.String(),
		Interval:  result.Interval,
		Levels:    levels,
		Result:    result,
	}
}

// SnapshotRow is one compartment snapshot at one step, flattened for
// row-oriented stores
type SnapshotRow struct {
	RunID       uuid.UUID
	Step        int
	Compartment int
	HalfTime    float64
	PPN2        float64
	PPHe        float64
	MValue      float64
	Ceiling     float64
	O2Percent   float64
	N2Percent   float64
	HePercent   float64
	GasType     string
	Variant     string
	ElapsedTime float64
	LastDepth   float64
}

// Flatten returns one row per snapshot in step order
func Flatten(r *Run) []SnapshotRow {
	if r.Result == nil {
		return nil
	}

	rows := make([]SnapshotRow, 0, len(r.Result.Snapshots)*zhl16.NumCompartments)
	for step, set := range r.Result.Snapshots {
		for _, s := range set {
			rows = append(rows, SnapshotRow{
				RunID:       r.ID,
				Step:        step,
				Compartment: s.Compartment,
				HalfTime:    s.HalfTime,
				PPN2:        s.PPN2,
				PPHe:        s.PPHe,
				MValue:      s.MValue,
				Ceiling:     s.Ceiling,
				O2Percent:   s.O2Percent,
				N2Percent:   s.N2Percent,
				HePercent:   s.HePercent,
				GasType:     s.GasType,
				Variant:     s.Variant,
				ElapsedTime: s.ElapsedTime,
				LastDepth:   s.LastDepth,
			})
		}
	}
	return rows
}

// Unflatten rebuilds snapshot sets from rows ordered by step and compartment
func Unflatten(rows []SnapshotRow) [][]deco.CompartmentSnapshot {
	var sets [][]deco.CompartmentSnapshot
	for _, row := range rows {
		for len(sets) <= row.Step {
			sets = append(sets, nil)
		}
		sets[row.Step] = append(sets[row.Step], row.Snapshot())
	}
	return sets
}

// Snapshot converts the row back to a compartment snapshot
func (s SnapshotRow) Snapshot() deco.CompartmentSnapshot {
	return deco.CompartmentSnapshot{
		Compartment: s.Compartment,
		HalfTime:    s.HalfTime,
		PPN2:        s.PPN2,
		PPHe:        s.PPHe,
		MValue:      s.MValue,
		Ceiling:     s.Ceiling,
		O2Percent:   s.O2Percent,
		N2Percent:   s.N2Percent,
		HePercent:   s.HePercent,
		GasType:     s.GasType,
		Variant:     s.Variant,
		ElapsedTime: s.ElapsedTime,
		LastDepth:   s.LastDepth,
	}
}

// CSVHeader names the columns written by WriteCSV
var CSVHeader = []string{
	"step", "compartment", "half_time", "pp_n2", "pp_he", "m_value", "ceiling",
	"o2_percent", "n2_percent", "he_percent", "gas_type", "variant",
	"elapsed_time", "last_depth",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Record returns the row in CSVHeader column order
func (s SnapshotRow) Record() []string {
	return []string{
		strconv.Itoa(s.Step),
		strconv.Itoa(s.Compartment),
		formatFloat(s.HalfTime),
		formatFloat(s.PPN2),
		formatFloat(s.PPHe),
		formatFloat(s.MValue),
		formatFloat(s.Ceiling),
		formatFloat(s.O2Percent),
		formatFloat(s.N2Percent),
		formatFloat(s.HePercent),
		s.GasType,
		s.Variant,
		formatFloat(s.ElapsedTime),
		formatFloat(s.LastDepth),
	}
}

// WriteCSV writes a header and one line per row
func WriteCSV(w io.Writer, rows []SnapshotRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
