package deco

import (
	"fmt"

	"github.com/chrissnell/divesync/pkg/gas"
)

// AmbientPressure converts a depth in metres of sea water to absolute
// pressure in atmospheres
func AmbientPressure(depth float64) float64 {
	return (depth + 10) / 10
}

// DepthFromAmbient is the inverse of AmbientPressure
func DepthFromAmbient(ambientATA float64) float64 {
	return ambientATA*10 - 10
}

// Level is one segment of a dive spent at a constant depth on one gas
type Level struct {
	Depth float64 `json:"depth" yaml:"depth"` // metres
	Time  int     `json:"time" yaml:"time"`   // minutes
	Mix   gas.Mix `json:"gas" yaml:"gas"`
}

// Profile is an ordered list of levels
type Profile struct {
	Levels []Level `json:"levels" yaml:"levels"`
}

// NewProfile returns an empty profile
func NewProfile() *Profile {
	return &Profile{}
}

// SingleLevel is a convenience for the common one-level square profile
func SingleLevel(depth float64, minutes int, mix gas.Mix) *Profile {
	p := NewProfile()
	p.AddLevel(depth, minutes, mix)
	return p
}

// AddLevel appends a level to the profile
func (p *Profile) AddLevel(depth float64, minutes int, mix gas.Mix) {
	p.Levels = append(p.Levels, Level{Depth: depth, Time: minutes, Mix: mix})
}

// TotalTime is the sum of all level times in minutes
func (p *Profile) TotalTime() int {
	total := 0
	for _, l := range p.Levels {
		total += l.Time
	}
	return total
}

// Validate checks that the profile has levels with sensible depths and times
func (p *Profile) Validate() error {
	if p == nil || len(p.Levels) == 0 {
		return ErrEmptyProfile
	}
	for i, l := range p.Levels {
		if l.Depth < 0 {
			return fmt.Errorf("%w: level %d has negative depth %.1f", ErrInvalidLevel, i, l.Depth)
		}
		if l.Time < 0 {
			return fmt.Errorf("%w: level %d has negative time %d", ErrInvalidLevel, i, l.Time)
		}
		if l.Mix == (gas.Mix{}) {
			return fmt.Errorf("%w: level %d has no gas", ErrInvalidLevel, i)
		}
	}
	return nil
}
