// Package analysis summarises a run's tissue time series per compartment.
package analysis

import (
	"errors"
	"math"

	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/zhl16"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrEmptyResult = errors.New("run result has no snapshots")

// CompartmentSummary describes one compartment across a whole run.
// Loadings are total inert gas pressure in ATA.
type CompartmentSummary struct {
	Compartment      int     `json:"compartment"`
	PeakLoading      float64 `json:"peak_loading"`
	PeakAt           float64 `json:"peak_at"`
	MeanLoading      float64 `json:"mean_loading"`
	StdDevLoading    float64 `json:"stddev_loading"`
	FinalLoading     float64 `json:"final_loading"`
	LoadingRate      float64 `json:"loading_rate"` // ATA/min, least squares over the run
	PeakCeiling      float64 `json:"peak_ceiling"`
	PeakCeilingDepth float64 `json:"peak_ceiling_depth"`
	PeakMValuePct    float64 `json:"peak_m_value_pct"`
}

// Summary describes a whole run
type Summary struct {
	Steps        int                  `json:"steps"`
	Duration     float64              `json:"duration"`
	Controlling  int                  `json:"controlling"`
	Compartments []CompartmentSummary `json:"compartments"`
}

// ControllingCompartment returns the summary of the compartment with the
// highest peak ceiling
func (s *Summary) ControllingCompartment() CompartmentSummary {
	return s.Compartments[s.Controlling]
}

// NeedsDecompression reports whether any compartment's ceiling rose above
// the surface during the run
func (s *Summary) NeedsDecompression() bool {
	return s.ControllingCompartment().PeakCeiling > zhl16.SurfaceATA
}

// ElapsedTimes returns the elapsed time of every snapshot set
func ElapsedTimes(res *deco.RunResult) []float64 {
	out := make([]float64, len(res.Snapshots))
	for i, set := range res.Snapshots {
		if len(set) > 0 {
			out[i] = set[0].ElapsedTime
		}
	}
	return out
}

// Series returns one value per snapshot set for a compartment
func Series(res *deco.RunResult, compartment int, value func(deco.CompartmentSnapshot) float64) []float64 {
	out := make([]float64, 0, len(res.Snapshots))
	for _, set := range res.Snapshots {
		for _, s := range set {
			if s.Compartment == compartment {
				out = append(out, value(s))
				break
			}
		}
	}
	return out
}

func loading(s deco.CompartmentSnapshot) float64 { return s.Loading() }
func ceiling(s deco.CompartmentSnapshot) float64 { return s.Ceiling }
func mValuePct(s deco.CompartmentSnapshot) float64 {
	if s.MValue == 0 {
		return 0
	}
	return s.Loading() / s.MValue * 100
}

// Summarize computes per-compartment statistics. The controlling
// compartment is the one with the highest peak ceiling.
func Summarize(res *deco.RunResult) (*Summary, error) {
	if res == nil || len(res.Snapshots) == 0 || len(res.Snapshots[0]) == 0 {
		return nil, ErrEmptyResult
	}

	times := ElapsedTimes(res)
	sum := &Summary{
		Steps:    len(res.Snapshots),
		Duration: times[len(times)-1],
	}

	peakCeilings := make([]float64, 0, len(res.Snapshots[0]))
	for _, first := range res.Snapshots[0] {
		idx := first.Compartment
		loads := Series(res, idx, loading)
		ceilings := Series(res, idx, ceiling)

		peakIdx := floats.MaxIdx(loads)
		cs := CompartmentSummary{
			Compartment:   idx,
			PeakLoading:   loads[peakIdx],
			PeakAt:        times[peakIdx],
			MeanLoading:   stat.Mean(loads, nil),
			FinalLoading:  loads[len(loads)-1],
			PeakCeiling:   floats.Max(ceilings),
			PeakMValuePct: floats.Max(Series(res, idx, mValuePct)),
		}
		if len(loads) > 1 {
			cs.StdDevLoading = stat.StdDev(loads, nil)
			if _, slope := stat.LinearRegression(times, loads, nil, false); !math.IsNaN(slope) {
				cs.LoadingRate = slope
			}
		}
		cs.PeakCeilingDepth = math.Max(0, deco.DepthFromAmbient(cs.PeakCeiling))

		sum.Compartments = append(sum.Compartments, cs)
		peakCeilings = append(peakCeilings, cs.PeakCeiling)
	}
	sum.Controlling = floats.MaxIdx(peakCeilings)

	return sum, nil
}
