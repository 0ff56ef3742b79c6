package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/gas"
	"github.com/chrissnell/divesync/pkg/zhl16"
)

func synthetic() *deco.RunResult {
	// two compartments, three steps; compartment 1 gets the higher ceiling
	set := func(t, load0, ceil0, load1, ceil1 float64) []deco.CompartmentSnapshot {
		return []deco.CompartmentSnapshot{
			{Compartment: 0, PPN2: load0, MValue: 2 * load0, Ceiling: ceil0, ElapsedTime: t},
			{Compartment: 1, PPN2: load1 / 2, PPHe: load1 / 2, MValue: load1, Ceiling: ceil1, ElapsedTime: t},
		}
	}
	return &deco.RunResult{
		Interval: 5,
		Snapshots: [][]deco.CompartmentSnapshot{
			set(5, 1, 0.2, 2, 0.5),
			set(10, 3, 0.4, 4, 1.3),
			set(15, 2, 0.3, 6, 1.1),
		},
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSummarizeSynthetic(t *testing.T) {
	sum, err := Summarize(synthetic())
	if err != nil {
		t.Fatal(err)
	}

	if sum.Steps != 3 || sum.Duration != 15 {
		t.Errorf("steps %d duration %v", sum.Steps, sum.Duration)
	}
	if sum.Controlling != 1 {
		t.Errorf("controlling = %d, want 1", sum.Controlling)
	}
	if !sum.NeedsDecompression() {
		t.Error("a 1.3 ATA ceiling needs decompression")
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"c0 peak", sum.Compartments[0].PeakLoading, 3},
		{"c0 peak at", sum.Compartments[0].PeakAt, 10},
		{"c0 mean", sum.Compartments[0].MeanLoading, 2},
		{"c0 stddev", sum.Compartments[0].StdDevLoading, 1},
		{"c0 final", sum.Compartments[0].FinalLoading, 2},
		{"c0 rate", sum.Compartments[0].LoadingRate, 0.1},
		{"c0 m-value pct", sum.Compartments[0].PeakMValuePct, 50},
		{"c0 ceiling depth", sum.Compartments[0].PeakCeilingDepth, 0},
		{"c1 peak", sum.Compartments[1].PeakLoading, 6},
		{"c1 mean", sum.Compartments[1].MeanLoading, 4},
		{"c1 rate", sum.Compartments[1].LoadingRate, 0.4},
		{"c1 ceiling", sum.Compartments[1].PeakCeiling, 1.3},
		{"c1 ceiling depth", sum.Compartments[1].PeakCeilingDepth, 3},
		{"c1 m-value pct", sum.Compartments[1].PeakMValuePct, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !near(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestSummarizeRun(t *testing.T) {
	algo := deco.New(deco.ZHL16(zhl16.VariantC))
	res, err := deco.NewRunner(algo).Run(5, deco.SingleLevel(30, 25, gas.MustNitrox(0.21)))
	if err != nil {
		t.Fatal(err)
	}

	sum, err := Summarize(res)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Compartments) != zhl16.NumCompartments {
		t.Fatalf("got %d compartments", len(sum.Compartments))
	}
	// 25 minutes at 30 m is past the air NDL
	if !sum.NeedsDecompression() {
		t.Error("expected a ceiling below the surface")
	}
	for _, cs := range sum.Compartments {
		if cs.LoadingRate <= 0 {
			t.Errorf("compartment %d should be on-gassing, rate %v", cs.Compartment, cs.LoadingRate)
		}
		if cs.FinalLoading != cs.PeakLoading {
			t.Errorf("compartment %d peaked before the end of a square profile", cs.Compartment)
		}
	}
	// the fastest compartment loads fastest
	if sum.Compartments[0].LoadingRate <= sum.Compartments[zhl16.NumCompartments-1].LoadingRate {
		t.Error("compartment 0 should load faster than compartment 15")
	}
}

func TestSummarizeSingleStep(t *testing.T) {
	res := synthetic()
	res.Snapshots = res.Snapshots[:1]

	sum, err := Summarize(res)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Compartments[0].StdDevLoading != 0 || sum.Compartments[0].LoadingRate != 0 {
		t.Errorf("single step should have no spread or rate: %+v", sum.Compartments[0])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	for _, res := range []*deco.RunResult{nil, {}, {Snapshots: [][]deco.CompartmentSnapshot{{}}}} {
		if _, err := Summarize(res); !errors.Is(err, ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", err)
		}
	}
}
