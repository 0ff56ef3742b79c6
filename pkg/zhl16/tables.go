// Package zhl16 implements the Bühlmann ZHL-16 tissue compartment model:
// 16 independent compartments that load and unload nitrogen and helium
// exponentially, plus the A/B/C coefficient sets used to judge their limits.
package zhl16

import (
	"fmt"
	"math"
	"strings"
)

// NumCompartments is the number of tissue compartments in the model
const NumCompartments = 16

// Molar masses in g/mol used to scale nitrogen half-times to helium (Graham's law)
const (
	MolarMassN2 = 28.0184
	MolarMassHe = 4.0026
)

// N2HalfTimes are the published ZHL-16 nitrogen half-times in minutes
var N2HalfTimes = [NumCompartments]float64{
	4.0, 8.0, 12.5, 18.5, 27.0, 38.3, 54.3, 77.0,
	109.0, 146.0, 187.0, 239.0, 305.0, 390.0, 498.0, 635.0,
}

// HeHalfTimes are the published ZHL-16 helium half-times in minutes
var HeHalfTimes = [NumCompartments]float64{
	1.5119, 3.0237, 4.7245, 6.9923, 10.205, 14.476, 20.5234, 29.1032,
	41.198, 55.1826, 70.6791, 90.3332, 115.2788, 147.4056, 188.2256, 240.0066,
}

// GenerateHeHalfTimes derives helium half-times from the nitrogen table.
// Helium diffuses faster than nitrogen by the square root of the ratio of
// their molar masses. Values are rounded to four decimals to match the
// published table.
func GenerateHeHalfTimes() [NumCompartments]float64 {
	ratio := math.Sqrt(MolarMassN2 / MolarMassHe)

	var out [NumCompartments]float64
	for i, ht := range N2HalfTimes {
		out[i] = math.Round(ht/ratio*1e4) / 1e4
	}
	return out
}

// Variant selects one of the published ZHL-16 nitrogen coefficient sets
type Variant int

const (
	VariantA Variant = iota
	VariantB
	VariantC
)

func (v Variant) String() string {
	switch v {
	case VariantA:
		return "A"
	case VariantB:
		return "B"
	case VariantC:
		return "C"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant accepts "a", "b" or "c" in any case
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return VariantA, nil
	case "b":
		return VariantB, nil
	case "c":
		return VariantC, nil
	}
	return VariantA, fmt.Errorf("unknown ZHL-16 variant %q", s)
}

// n2AOverrides replace the computed nitrogen a coefficient for some
// compartments in the B and C tables. Variant A always uses the formula.
var n2AOverrides = map[Variant]map[int]float64{
	VariantB: {
		5:  0.5600,
		6:  0.4947,
		7:  0.4500,
		12: 0.2850,
	},
	VariantC: {
		4:  0.6200,
		5:  0.5043,
		6:  0.4410,
		7:  0.4000,
		8:  0.3750,
		9:  0.3500,
		10: 0.3295,
		11: 0.3065,
		12: 0.2835,
		13: 0.2610,
		14: 0.2480,
	},
}

// n2BOverrides apply to every variant
var n2BOverrides = map[int]float64{
	3: 0.7825,
	4: 0.8126,
}

// coefficientA is the Bühlmann a coefficient for a half-time: 2 / ht^(1/3)
func coefficientA(halfTime float64) float64 {
	return 2.0 / math.Cbrt(halfTime)
}

// coefficientB is the Bühlmann b coefficient for a half-time: 1.005 - 1 / ht^(1/2)
func coefficientB(halfTime float64) float64 {
	return 1.005 - 1.0/math.Sqrt(halfTime)
}

// N2A returns the nitrogen a coefficient for a compartment under a variant
func N2A(index int, v Variant) float64 {
	if a, ok := n2AOverrides[v][index]; ok {
		return a
	}
	return coefficientA(N2HalfTimes[index])
}

// N2B returns the nitrogen b coefficient for a compartment
func N2B(index int) float64 {
	if b, ok := n2BOverrides[index]; ok {
		return b
	}
	return coefficientB(N2HalfTimes[index])
}

// HeA returns the helium a coefficient for a compartment
func HeA(index int) float64 {
	return coefficientA(HeHalfTimes[index])
}

// HeB returns the helium b coefficient for a compartment
func HeB(index int) float64 {
	return coefficientB(HeHalfTimes[index])
}

// BlendFunc combines a helium and a nitrogen value, weighted by the
// inspired partial pressures of each gas
type BlendFunc func(heValue, n2Value, ppHe, ppN2 float64) float64

// BlendWeighted is the partial-pressure weighted average used for trimix
// half-times and coefficients.
func BlendWeighted(heValue, n2Value, ppHe, ppN2 float64) float64 {
	total := ppHe + ppN2
	if total == 0 {
		return n2Value
	}
	return (heValue*ppHe + n2Value*ppN2) / total
}

// BlendLiteral evaluates (he*ppHe + n2*ppN2)/ppHe + ppN2 exactly as written,
// with division binding before addition. It is not a weighted average and
// is kept only so the two readings of that expression can be compared.
func BlendLiteral(heValue, n2Value, ppHe, ppN2 float64) float64 {
	return (heValue*ppHe+n2Value*ppN2)/ppHe + ppN2
}
