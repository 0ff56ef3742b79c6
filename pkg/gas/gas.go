// Package gas models breathing gas mixtures and the partial pressures they
// exert at a given ambient pressure. Fractions are expressed at 1 ATA.
package gas

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// BackgroundN2 is the nitrogen fraction of air used as the base for every recipe
	BackgroundN2 = 0.78

	// BackgroundO2 is the oxygen fraction of air
	BackgroundO2 = 0.21

	// residual fractions smaller than this are treated as absent
	epsilon = 1e-9
)

// ErrInvalidMix is returned when a gas recipe is physically impossible
var ErrInvalidMix = errors.New("invalid gas mix")

// Species identifies one of the gases tracked in a mix
type Species int

const (
	Oxygen Species = iota
	Helium
	Nitrogen
)

func (s Species) String() string {
	switch s {
	case Oxygen:
		return "O2"
	case Helium:
		return "He"
	case Nitrogen:
		return "N2"
	default:
		return fmt.Sprintf("Species(%d)", int(s))
	}
}

// Gas is a single component of a breathing mix
type Gas struct {
	Fraction float64 // fraction at 1 ATA
	Species  Species
}

// PartialPressure returns the partial pressure of the gas at the given ambient pressure
func (g Gas) PartialPressure(ambientATA float64) float64 {
	return ambientATA * g.Fraction
}

// Present reports whether the gas makes up any part of the mix
func (g Gas) Present() bool {
	return g.Fraction > 0
}

func (g Gas) String() string {
	return fmt.Sprintf("%s %.3f", g.Species, g.Fraction)
}

// Type classifies a mix by which inert gases it contains
type Type int

const (
	Nitrox Type = iota
	Heliox
	Trimix
)

func (t Type) String() string {
	switch t {
	case Nitrox:
		return "Nitrox"
	case Heliox:
		return "Heliox"
	case Trimix:
		return "Trimix"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Mix is an immutable breathing gas. The zero value is not a valid mix;
// use NewNitrox, NewTrimix or ParseMix.
type Mix struct {
	oxygen   Gas
	nitrogen Gas
	helium   Gas
}

// Air is the standard 21% oxygen nitrox mix
func Air() Mix {
	m, _ := NewNitrox(BackgroundO2)
	return m
}

// NewNitrox builds a nitrox mix from an oxygen fraction. Oxygen above the
// 21% background displaces nitrogen one for one.
func NewNitrox(o2 float64) (Mix, error) {
	return NewTrimix(0, o2)
}

// NewTrimix builds a mix from helium and oxygen fractions. Nitrogen is derived
// by subtracting the helium, and any oxygen above the background, from 0.78.
func NewTrimix(he, o2 float64) (Mix, error) {
	if o2 <= 0 || o2 > 1 {
		return Mix{}, fmt.Errorf("%w: oxygen fraction %.3f outside (0,1]", ErrInvalidMix, o2)
	}
	if he < 0 || he > 1 {
		return Mix{}, fmt.Errorf("%w: helium fraction %.3f outside [0,1]", ErrInvalidMix, he)
	}
	if he+o2 > 1+epsilon {
		return Mix{}, fmt.Errorf("%w: oxygen %.3f and helium %.3f sum over 1", ErrInvalidMix, o2, he)
	}

	n2 := BackgroundN2 - he
	if o2 > BackgroundO2 {
		n2 -= o2 - BackgroundO2
	}
	// The background leaves 1% for argon, so rich recipes that still sum to at
	// most 1 can drive the derived nitrogen slightly negative.
	if n2 < epsilon {
		n2 = 0
	}

	return Mix{
		oxygen:   Gas{Fraction: o2, Species: Oxygen},
		nitrogen: Gas{Fraction: n2, Species: Nitrogen},
		helium:   Gas{Fraction: he, Species: Helium},
	}, nil
}

// MustTrimix is like NewTrimix but panics on an invalid recipe. Intended for
// constants and tests.
func MustTrimix(he, o2 float64) Mix {
	m, err := NewTrimix(he, o2)
	if err != nil {
		panic(err)
	}
	return m
}

// MustNitrox is like NewNitrox but panics on an invalid recipe
func MustNitrox(o2 float64) Mix {
	return MustTrimix(0, o2)
}

// ParseMix parses a recipe in percent. "32" is nitrox with 32% oxygen and
// "21,35" is trimix with 21% oxygen and 35% helium.
func ParseMix(recipe string) (Mix, error) {
	parts := strings.Split(strings.TrimSpace(recipe), ",")
	if len(parts) > 2 || parts[0] == "" {
		return Mix{}, fmt.Errorf("%w: cannot parse recipe %q", ErrInvalidMix, recipe)
	}

	o2, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Mix{}, fmt.Errorf("%w: bad oxygen percentage %q: %v", ErrInvalidMix, parts[0], err)
	}

	if len(parts) == 1 {
		return NewNitrox(o2 / 100)
	}

	he, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Mix{}, fmt.Errorf("%w: bad helium percentage %q: %v", ErrInvalidMix, parts[1], err)
	}
	return NewTrimix(he/100, o2/100)
}

// Gas returns the component of the mix for a species
func (m Mix) Gas(s Species) Gas {
	switch s {
	case Oxygen:
		return m.oxygen
	case Helium:
		return m.helium
	default:
		return m.nitrogen
	}
}

// PartialPressure returns the partial pressure of one species at the given ambient pressure
func (m Mix) PartialPressure(s Species, ambientATA float64) float64 {
	return m.Gas(s).PartialPressure(ambientATA)
}

func (m Mix) PPO2(ambientATA float64) float64 { return m.oxygen.PartialPressure(ambientATA) }
func (m Mix) PPN2(ambientATA float64) float64 { return m.nitrogen.PartialPressure(ambientATA) }
func (m Mix) PPHe(ambientATA float64) float64 { return m.helium.PartialPressure(ambientATA) }

// Type classifies the mix as Nitrox, Heliox or Trimix
func (m Mix) Type() Type {
	switch {
	case m.helium.Present() && !m.nitrogen.Present():
		return Heliox
	case m.helium.Present() && m.nitrogen.Present():
		return Trimix
	default:
		return Nitrox
	}
}

// Percentages returns the oxygen, nitrogen and helium content in percent
func (m Mix) Percentages() (o2, n2, he float64) {
	return m.oxygen.Fraction * 100, m.nitrogen.Fraction * 100, m.helium.Fraction * 100
}

// Recipe formats the mix in the form accepted by ParseMix
func (m Mix) Recipe() string {
	o2, _, he := m.Percentages()
	if m.helium.Present() {
		return formatPercent(o2) + "," + formatPercent(he)
	}
	return formatPercent(o2)
}

func (m Mix) String() string {
	o2, n2, he := m.Percentages()
	return fmt.Sprintf("%s (O2 %.1f%%, N2 %.1f%%, He %.1f%%)", m.Type(), o2, n2, he)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

// MarshalText encodes the mix as its recipe so it reads naturally in JSON and YAML
func (m Mix) MarshalText() ([]byte, error) {
	return []byte(m.Recipe()), nil
}

// UnmarshalText parses a recipe produced by MarshalText or typed by a user
func (m *Mix) UnmarshalText(text []byte) error {
	parsed, err := ParseMix(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
