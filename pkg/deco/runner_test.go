package deco

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/divesync/pkg/gas"
	"github.com/chrissnell/divesync/pkg/zhl16"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStepDurations(t *testing.T) {
	tests := []struct {
		minutes  int
		interval int
		want     []float64
	}{
		{20, 3, []float64{3, 3, 3, 3, 3, 3, 2}},
		{21, 3, []float64{3, 3, 3, 3, 3, 3, 3}},
		{38, 7, []float64{7, 7, 7, 7, 7, 3}},
		{2, 5, []float64{2}},
		{0, 5, nil},
		{10, 0, nil},
	}

	for _, tt := range tests {
		got := StepDurations(tt.minutes, tt.interval)
		if len(got) != len(tt.want) {
			t.Errorf("StepDurations(%d, %d) = %v, want %v", tt.minutes, tt.interval, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("StepDurations(%d, %d) = %v, want %v", tt.minutes, tt.interval, got, tt.want)
				break
			}
		}
	}
}

func TestRunnerStepCount(t *testing.T) {
	tests := []struct {
		name         string
		depth        float64
		minutes      int
		interval     int
		wantSets     int
		firstElapsed float64
		lastElapsed  float64
	}{
		{"remainder step", 20, 20, 3, 7, 3, 20},
		{"exact multiple", 20, 21, 3, 7, 3, 21},
		{"38 at 7", 30, 38, 7, 6, 7, 38},
		{"interval longer than level", 15, 4, 10, 1, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(New(ZHL16(zhl16.VariantA)))
			res, err := r.Run(tt.interval, SingleLevel(tt.depth, tt.minutes, gas.Air()))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Interval != tt.interval {
				t.Errorf("interval = %d, want %d", res.Interval, tt.interval)
			}
			if res.Steps() != tt.wantSets {
				t.Fatalf("got %d snapshot sets, want %d", res.Steps(), tt.wantSets)
			}
			for i, set := range res.Snapshots {
				if len(set) != zhl16.NumCompartments {
					t.Fatalf("set %d has %d snapshots", i, len(set))
				}
			}
			if got := res.Snapshots[0][0].ElapsedTime; got != tt.firstElapsed {
				t.Errorf("first set elapsed = %v, want %v", got, tt.firstElapsed)
			}
			if got := res.Final()[0].ElapsedTime; got != tt.lastElapsed {
				t.Errorf("last set elapsed = %v, want %v", got, tt.lastElapsed)
			}
			if got := res.Final()[0].LastDepth; math.Abs(got-tt.depth) > 1e-9 {
				t.Errorf("last depth = %v, want %v", got, tt.depth)
			}
		})
	}
}

func TestRunnerMultiLevel(t *testing.T) {
	p := NewProfile()
	p.AddLevel(30, 10, gas.MustTrimix(0.30, 0.21))
	p.AddLevel(21, 5, gas.MustNitrox(0.50))
	p.AddLevel(6, 4, gas.MustNitrox(1.0))

	var levels []int
	r := NewRunner(New(ZHL16(zhl16.VariantB)), WithObserver(func(level int, minutes float64, snaps []CompartmentSnapshot) {
		levels = append(levels, level)
	}))

	res, err := r.Run(3, p)
	if err != nil {
		t.Fatal(err)
	}

	// 4 + 2 + 2
	if res.Steps() != 8 {
		t.Fatalf("got %d sets, want 8", res.Steps())
	}
	if len(levels) != 8 || levels[0] != 0 || levels[4] != 1 || levels[7] != 2 {
		t.Errorf("observer saw levels %v", levels)
	}
	if res.Final()[0].ElapsedTime != float64(p.TotalTime()) {
		t.Errorf("final elapsed %v, want %d", res.Final()[0].ElapsedTime, p.TotalTime())
	}

	types := []string{res.Snapshots[0][0].GasType, res.Snapshots[4][0].GasType, res.Snapshots[7][0].GasType}
	want := []string{"Trimix", "Nitrox", "Nitrox"}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("level %d gas type %q, want %q", i, types[i], want[i])
		}
	}
}

func TestRunnerMatchesSingleStep(t *testing.T) {
	p := SingleLevel(25, 30, gas.MustTrimix(0.20, 0.25))

	fine := NewRunner(New(ZHL16(zhl16.VariantC)))
	fineRes, err := fine.Run(1, p)
	if err != nil {
		t.Fatal(err)
	}
	coarse := NewRunner(New(ZHL16(zhl16.VariantC)))
	coarseRes, err := coarse.Run(30, p)
	if err != nil {
		t.Fatal(err)
	}

	for i := range fineRes.Final() {
		f, c := fineRes.Final()[i], coarseRes.Final()[i]
		if math.Abs(f.PPN2-c.PPN2) > 1e-3 || math.Abs(f.PPHe-c.PPHe) > 1e-3 {
			t.Errorf("compartment %d: fine (%v, %v) coarse (%v, %v)", i, f.PPN2, f.PPHe, c.PPN2, c.PPHe)
		}
	}
}

func TestRunnerResultLifecycle(t *testing.T) {
	r := NewRunner(New(ZHL16(zhl16.VariantA)))
	if _, ok := r.Result(); ok {
		t.Fatal("idle runner should have no result")
	}

	first, err := r.Run(5, SingleLevel(18, 20, gas.Air()))
	if err != nil {
		t.Fatal(err)
	}
	got, ok := r.Result()
	if !ok || got != first {
		t.Fatal("result should be the first run")
	}

	second, err := r.Run(2, SingleLevel(9, 4, gas.Air()))
	if err != nil {
		t.Fatal(err)
	}
	got, _ = r.Result()
	if got != second || got.Steps() != 2 {
		t.Fatalf("result should be replaced by the second run, got %d steps", got.Steps())
	}
	// tissue state carries over between runs
	if got.Final()[0].ElapsedTime != 24 {
		t.Errorf("elapsed %v, want 24", got.Final()[0].ElapsedTime)
	}
}

func TestRunnerErrorsKeepPreviousResult(t *testing.T) {
	r := NewRunner(New(ZHL16(zhl16.VariantA)))
	prev, err := r.Run(5, SingleLevel(10, 10, gas.Air()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Run(0, SingleLevel(10, 10, gas.Air())); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := r.Run(-3, SingleLevel(10, 10, gas.Air())); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := r.Run(5, NewProfile()); !errors.Is(err, ErrEmptyProfile) {
		t.Errorf("expected ErrEmptyProfile, got %v", err)
	}

	got, ok := r.Result()
	if !ok || got != prev {
		t.Error("failed runs must not replace the previous result")
	}
}

func TestRunnerDSAT(t *testing.T) {
	r := NewRunner(New(DSAT))
	if _, err := r.Run(5, SingleLevel(10, 10, gas.Air())); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
	if _, ok := r.Result(); ok {
		t.Error("failed run should leave no result")
	}
}

func TestRunnerLogsCompletion(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRunner(New(ZHL16(zhl16.VariantA)), WithLogger(zap.New(core).Sugar()))

	if _, err := r.Run(5, SingleLevel(10, 10, gas.Air())); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessageSnippet("run complete").Len() != 1 {
		t.Errorf("expected one completion log, got %v", logs.All())
	}
	if logs.FilterMessageSnippet("level 0").Len() != 1 {
		t.Errorf("expected one level log, got %v", logs.All())
	}
}

func TestStepCount(t *testing.T) {
	two := NewProfile()
	two.AddLevel(30, 20, gas.Air())
	two.AddLevel(15, 38, gas.Air())

	tests := []struct {
		name     string
		profile  *Profile
		interval int
		want     int64
	}{
		{"exact", SingleLevel(30, 20, gas.Air()), 5, 4},
		{"remainder", SingleLevel(30, 20, gas.Air()), 3, 7},
		{"two levels", two, 7, 3 + 6},
		{"zero time", SingleLevel(30, 0, gas.Air()), 5, 0},
		{"bad interval", SingleLevel(30, 20, gas.Air()), 0, 0},
		{"huge", SingleLevel(30, math.MaxInt, gas.Air()), 1, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StepCount(tt.profile, tt.interval); got != tt.want {
				t.Errorf("StepCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunnerMaxSteps(t *testing.T) {
	r := NewRunner(New(ZHL16(zhl16.VariantA)), WithMaxSteps(100))

	if _, err := r.Run(1, SingleLevel(20, 2000000000, gas.Air())); !errors.Is(err, ErrTooManySteps) {
		t.Fatalf("expected ErrTooManySteps, got %v", err)
	}
	if r.Algorithm().Initialized() {
		t.Error("a rejected profile must not touch tissue state")
	}

	res, err := r.Run(1, SingleLevel(20, 100, gas.Air()))
	if err != nil {
		t.Fatalf("a profile at the limit should run: %v", err)
	}
	if res.Steps() != 100 {
		t.Errorf("got %d steps", res.Steps())
	}
}
