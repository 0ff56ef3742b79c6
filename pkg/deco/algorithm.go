package deco

import (
	"fmt"

	"github.com/chrissnell/divesync/pkg/gas"
	"github.com/chrissnell/divesync/pkg/zhl16"
)

// MaxNDL caps the no-decompression search, in minutes. A level that never
// reaches a ceiling reports MaxNDL.
const MaxNDL = 999

// DecoStop is one staged ascent stop
type DecoStop struct {
	Depth float64 `json:"depth"`
	Time  int     `json:"time"`
}

// Algorithm holds the tissue state for one decompression model. The zero
// value is not usable; create one with New or Lookup.
type Algorithm struct {
	variant      Variant
	compartments []*zhl16.Compartment
}

// New returns an uninitialised algorithm for v. Tissue state is created on
// the first call to Run or Init.
func New(v Variant) *Algorithm {
	return &Algorithm{variant: v}
}

// Lookup returns a fresh algorithm by name
func Lookup(name string) (*Algorithm, error) {
	v, err := ParseVariant(name)
	if err != nil {
		return nil, err
	}
	return New(v), nil
}

// Variant identifies the algorithm
func (a *Algorithm) Variant() Variant {
	return a.variant
}

// Initialized reports whether tissue state exists
func (a *Algorithm) Initialized() bool {
	return a.compartments != nil
}

// Init saturates every compartment with mix at the surface. Calling it on an
// algorithm that already holds tissue state returns ErrAlreadyInitialized and
// leaves the state untouched.
func (a *Algorithm) Init(mix gas.Mix) error {
	if a.Initialized() {
		return fmt.Errorf("%s: %w", a.variant, ErrAlreadyInitialized)
	}

	switch a.variant.Model {
	case ModelZHL16:
		comps, err := surfaceCompartments(mix, a.variant.Coefficients)
		if err != nil {
			return err
		}
		a.compartments = comps
		return nil
	case ModelDSAT:
		return fmt.Errorf("%s tissue model: %w", a.variant, ErrNotImplemented)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAlgorithm, a.variant)
	}
}

func surfaceCompartments(mix gas.Mix, v zhl16.Variant) ([]*zhl16.Compartment, error) {
	comps := make([]*zhl16.Compartment, zhl16.NumCompartments)
	for i := range comps {
		c, err := zhl16.NewCompartment(i, mix, v)
		if err != nil {
			return nil, err
		}
		comps[i] = c
	}
	return comps, nil
}

// Run exposes every compartment to mix at ambientATA for the given minutes.
// The first call initialises tissue state from mix.
func (a *Algorithm) Run(mix gas.Mix, ambientATA, minutes float64) error {
	if !a.Initialized() {
		if err := a.Init(mix); err != nil {
			return err
		}
	}

	switch a.variant.Model {
	case ModelZHL16:
		expose(a.compartments, mix, ambientATA, minutes)
		return nil
	default:
		return fmt.Errorf("%s run: %w", a.variant, ErrNotImplemented)
	}
}

func expose(comps []*zhl16.Compartment, mix gas.Mix, ambientATA, minutes float64) {
	for _, c := range comps {
		c.SetMix(mix)
		c.UpdatePressure(ambientATA, minutes)
	}
}

// Snapshot returns one snapshot per compartment. It is empty before the
// first Run.
func (a *Algorithm) Snapshot() []CompartmentSnapshot {
	snaps := make([]CompartmentSnapshot, 0, len(a.compartments))
	for _, c := range a.compartments {
		snaps = append(snaps, snapshotOf(c, a.variant))
	}
	return snaps
}

// Compartments returns copies of the current compartments
func (a *Algorithm) Compartments() []*zhl16.Compartment {
	out := make([]*zhl16.Compartment, len(a.compartments))
	for i, c := range a.compartments {
		out[i] = c.Clone()
	}
	return out
}

// ComputeNDL returns the whole minutes that can still be spent at the last
// level of p before any compartment's ceiling rises above the surface. Each
// level's Time is minutes already spent there: every level, the last one
// included, is applied in order to a copy of the tissue state before the
// search starts at the last level's depth and mix. The algorithm itself is
// not modified.
func (a *Algorithm) ComputeNDL(p *Profile) (int, error) {
	if a.variant.Model != ModelZHL16 {
		return 0, fmt.Errorf("%s NDL: %w", a.variant, ErrNotImplemented)
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}

	comps := a.Compartments()
	if len(comps) == 0 {
		var err error
		comps, err = surfaceCompartments(p.Levels[0].Mix, a.variant.Coefficients)
		if err != nil {
			return 0, err
		}
	}

	for _, l := range p.Levels {
		expose(comps, l.Mix, AmbientPressure(l.Depth), float64(l.Time))
	}

	last := p.Levels[len(p.Levels)-1]
	ambient := AmbientPressure(last.Depth)

	if ceilingAboveSurface(comps) {
		return 0, nil
	}
	for minute := 0; minute < MaxNDL; minute++ {
		expose(comps, last.Mix, ambient, 1)
		if ceilingAboveSurface(comps) {
			return minute, nil
		}
	}
	return MaxNDL, nil
}

func ceilingAboveSurface(comps []*zhl16.Compartment) bool {
	for _, c := range comps {
		if c.Ceiling() > zhl16.SurfaceATA {
			return true
		}
	}
	return false
}

// ComputeDecoStops is not implemented for any model yet; a nil slice with
// ErrNotImplemented is distinct from an empty schedule.
func (a *Algorithm) ComputeDecoStops(p *Profile) ([]DecoStop, error) {
	return nil, fmt.Errorf("%s deco stops: %w", a.variant, ErrNotImplemented)
}
