package deco

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// RunResult is the time series produced by one Runner.Run: one snapshot set
// per step, one snapshot per compartment in each set
type RunResult struct {
	Interval  int                     `json:"interval"`
	Snapshots [][]CompartmentSnapshot `json:"snapshots"`
}

// Steps returns the number of snapshot sets in the result
func (r *RunResult) Steps() int {
	return len(r.Snapshots)
}

// Final returns the last snapshot set, or nil for an empty result
func (r *RunResult) Final() []CompartmentSnapshot {
	if len(r.Snapshots) == 0 {
		return nil
	}
	return r.Snapshots[len(r.Snapshots)-1]
}

// StepObserver is called after every step with the level index, the step
// duration and the snapshot set it produced
type StepObserver func(level int, minutes float64, snaps []CompartmentSnapshot)

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger used for per-level progress
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithObserver registers a callback invoked after every step
func WithObserver(obs StepObserver) Option {
	return func(r *Runner) {
		r.observer = obs
	}
}

// WithMaxSteps rejects profiles needing more than n steps with
// ErrTooManySteps. n <= 0 means no limit.
func WithMaxSteps(n int) Option {
	return func(r *Runner) {
		r.maxSteps = n
	}
}

// Runner applies dive profiles to an algorithm at a fixed sampling interval.
// It is not safe for concurrent use.
type Runner struct {
	algo     *Algorithm
	result   *RunResult
	logger   *zap.SugaredLogger
	observer StepObserver
	maxSteps int
}

// NewRunner creates a runner around algo
func NewRunner(algo *Algorithm, opts ...Option) *Runner {
	r := &Runner{
		algo:   algo,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Algorithm returns the algorithm the runner drives
func (r *Runner) Algorithm() *Algorithm {
	return r.algo
}

// StepDurations splits minutes into full steps of interval plus a trailing
// partial step when the division leaves a remainder
func StepDurations(minutes, interval int) []float64 {
	if interval <= 0 || minutes <= 0 {
		return nil
	}

	steps := make([]float64, 0, minutes/interval+1)
	for i := 0; i < minutes/interval; i++ {
		steps = append(steps, float64(interval))
	}
	if rem := minutes % interval; rem != 0 {
		steps = append(steps, float64(rem))
	}
	return steps
}

// StepCount is the number of snapshot sets Run would produce for p at
// interval. It saturates instead of overflowing.
func StepCount(p *Profile, interval int) int64 {
	if p == nil || interval <= 0 {
		return 0
	}
	var total int64
	for _, l := range p.Levels {
		if l.Time <= 0 {
			continue
		}
		n := int64(l.Time / interval)
		if l.Time%interval != 0 {
			n++
		}
		if total > math.MaxInt64-n {
			return math.MaxInt64
		}
		total += n
	}
	return total
}

// Run applies every level of p in order, capturing a snapshot set after each
// step. On success the new result replaces any previous one. On error the
// previous result is kept.
//
// Tissue state lives in the algorithm, so running a second profile on the
// same runner continues from where the first left off.
func (r *Runner) Run(interval int, p *Profile) (*RunResult, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if r.maxSteps > 0 {
		if n := StepCount(p, interval); n > int64(r.maxSteps) {
			return nil, fmt.Errorf("%w: %d steps at a %d minute interval, limit %d", ErrTooManySteps, n, interval, r.maxSteps)
		}
	}

	start := time.Now()
	result := &RunResult{Interval: interval}

	for li, level := range p.Levels {
		ambient := AmbientPressure(level.Depth)
		r.logger.Debugf("level %d: %.1fm (%.2f ATA) for %d min on %v", li, level.Depth, ambient, level.Time, level.Mix)

		for _, minutes := range StepDurations(level.Time, interval) {
			if err := r.algo.Run(level.Mix, ambient, minutes); err != nil {
				return nil, err
			}
			snaps := r.algo.Snapshot()
			result.Snapshots = append(result.Snapshots, snaps)
			if r.observer != nil {
				r.observer(li, minutes, snaps)
			}
		}
	}

	r.logger.Infof("%s run complete: %d levels, %d steps in %v",
		r.algo.Variant(), len(p.Levels), result.Steps(), time.Since(start))

	r.result = result
	return result, nil
}

// Result returns the most recent successful run, if any
func (r *Runner) Result() (*RunResult, bool) {
	return r.result, r.result != nil
}
