package zhl16

import (
	"fmt"
	"math"

	"github.com/chrissnell/divesync/pkg/gas"
)

// SurfaceATA is the ambient pressure at sea level
const SurfaceATA = 1.0

// Compartment tracks the nitrogen and helium loading of one tissue compartment
type Compartment struct {
	index       int
	pN2         float64
	pHe         float64
	mix         gas.Mix
	variant     Variant
	elapsed     float64
	lastAmbient float64
}

// NewCompartment creates compartment index (0-15) saturated with mix at the surface
func NewCompartment(index int, mix gas.Mix, v Variant) (*Compartment, error) {
	if index < 0 || index >= NumCompartments {
		return nil, fmt.Errorf("compartment index %d out of range 0-%d", index, NumCompartments-1)
	}

	return &Compartment{
		index:       index,
		pN2:         mix.PPN2(SurfaceATA),
		pHe:         mix.PPHe(SurfaceATA),
		mix:         mix,
		variant:     v,
		lastAmbient: SurfaceATA,
	}, nil
}

// Clone returns an independent copy of the compartment
func (c *Compartment) Clone() *Compartment {
	cp := *c
	return &cp
}

func (c *Compartment) Index() int { return c.index }
func (c *Compartment) Mix() gas.Mix { return c.mix }
func (c *Compartment) Variant() Variant { return c.variant }
func (c *Compartment) Elapsed() float64 { return c.elapsed }
func (c *Compartment) LastAmbient() float64 { return c.lastAmbient }

// Pressures returns the current nitrogen and helium partial pressures
func (c *Compartment) Pressures() (pN2, pHe float64) {
	return c.pN2, c.pHe
}

// SetPressures overwrites the tissue loading
func (c *Compartment) SetPressures(pN2, pHe float64) {
	c.pN2 = pN2
	c.pHe = pHe
}

// SetMix switches the gas being breathed
func (c *Compartment) SetMix(mix gas.Mix) {
	c.mix = mix
}

// UpdatePressure exposes the compartment to ambientATA for the given number
// of minutes. Nitrogen and helium each move toward their inspired pressure by
// the Haldane equation p' = p + (pInsp - p)(1 - 2^(-t/ht)).
func (c *Compartment) UpdatePressure(ambientATA, minutes float64) {
	c.pN2 = haldane(c.pN2, c.mix.PPN2(ambientATA), minutes, N2HalfTimes[c.index])
	c.pHe = haldane(c.pHe, c.mix.PPHe(ambientATA), minutes, HeHalfTimes[c.index])
	c.elapsed += minutes
	c.lastAmbient = ambientATA
}

func haldane(current, inspired, minutes, halfTime float64) float64 {
	return current + (inspired-current)*(1-math.Exp2(-minutes/halfTime))
}

// HalfTime returns the half-time for the gas currently breathed. Trimix
// blends the helium and nitrogen half-times by inspired partial pressure.
func (c *Compartment) HalfTime() float64 {
	return c.byMix(HeHalfTimes[c.index], N2HalfTimes[c.index])
}

// A returns the Bühlmann a coefficient for the gas currently breathed
func (c *Compartment) A() float64 {
	return c.byMix(HeA(c.index), N2A(c.index, c.variant))
}

// B returns the Bühlmann b coefficient for the gas currently breathed
func (c *Compartment) B() float64 {
	return c.byMix(HeB(c.index), N2B(c.index))
}

func (c *Compartment) byMix(heValue, n2Value float64) float64 {
	switch c.mix.Type() {
	case gas.Heliox:
		return heValue
	case gas.Trimix:
		return BlendWeighted(heValue, n2Value, c.mix.PPHe(SurfaceATA), c.mix.PPN2(SurfaceATA))
	default:
		return n2Value
	}
}

// Loading is the total inert gas pressure in the compartment
func (c *Compartment) Loading() float64 {
	return c.pN2 + c.pHe
}

// MValue is the maximum tolerated inert gas pressure at the last ambient
// pressure the compartment was exposed to: M = a + P_amb / b.
func (c *Compartment) MValue() float64 {
	return c.MValueAt(c.lastAmbient)
}

// MValueAt is the maximum tolerated inert gas pressure at ambientATA
func (c *Compartment) MValueAt(ambientATA float64) float64 {
	return c.A() + ambientATA/c.B()
}

// Ceiling is the lowest ambient pressure the compartment tolerates with its
// current loading: P_tol = (P_inert - a) * b.
func (c *Compartment) Ceiling() float64 {
	return (c.Loading() - c.A()) * c.B()
}

// CeilingDepth converts Ceiling to metres of sea water, floored at the surface
func (c *Compartment) CeilingDepth() float64 {
	return math.Max(0, (c.Ceiling()-SurfaceATA)*10)
}
