// Package deco runs dive profiles through a decompression algorithm and
// collects snapshots of tissue state over time.
package deco

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chrissnell/divesync/pkg/zhl16"
)

var (
	// ErrUnknownAlgorithm is returned by Lookup for names it does not recognise
	ErrUnknownAlgorithm = errors.New("unknown decompression algorithm")

	// ErrAlreadyInitialized means something tried to initialise tissue state
	// that is already live. It indicates a programming error, not bad input.
	ErrAlreadyInitialized = errors.New("algorithm tissue state already initialized")

	// ErrNotImplemented marks computations the selected algorithm cannot perform.
	// It is distinct from an empty or zero answer.
	ErrNotImplemented = errors.New("not implemented")

	ErrInvalidInterval = errors.New("interval must be a positive number of minutes")
	ErrEmptyProfile    = errors.New("dive profile has no levels")
	ErrInvalidLevel    = errors.New("invalid dive profile level")

	// ErrTooManySteps is returned by a runner with a step limit for profiles
	// that would exceed it. Nothing is simulated.
	ErrTooManySteps = errors.New("dive profile needs too many steps")
)

// Model identifies the decompression model family
type Model int

const (
	ModelZHL16 Model = iota
	ModelDSAT
)

// Variant identifies a concrete algorithm: a model plus, for ZHL-16, the
// coefficient set in use.
type Variant struct {
	Model        Model
	Coefficients zhl16.Variant
}

// ZHL16 returns the ZHL-16 variant using coefficient set v
func ZHL16(v zhl16.Variant) Variant {
	return Variant{Model: ModelZHL16, Coefficients: v}
}

// DSAT is the DSAT model. It is a placeholder with no kinetics.
var DSAT = Variant{Model: ModelDSAT}

// Variants lists every selectable algorithm
func Variants() []Variant {
	return []Variant{
		ZHL16(zhl16.VariantA),
		ZHL16(zhl16.VariantB),
		ZHL16(zhl16.VariantC),
		DSAT,
	}
}

// ParseVariant maps a case-insensitive algorithm name to a Variant. Accepted
// names are dsat, zhl16, zhl16-a, zhl16-b and zhl16-c; "zhl-16" spellings
// are accepted too.
func ParseVariant(name string) (Variant, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Replace(n, "zhl-16", "zhl16", 1)

	switch n {
	case "dsat":
		return DSAT, nil
	case "zhl16", "zhl16-a", "zhl16a":
		return ZHL16(zhl16.VariantA), nil
	case "zhl16-b", "zhl16b":
		return ZHL16(zhl16.VariantB), nil
	case "zhl16-c", "zhl16c":
		return ZHL16(zhl16.VariantC), nil
	}
	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

func (v Variant) String() string {
	switch v.Model {
	case ModelDSAT:
		return "DSAT"
	case ModelZHL16:
		return "ZHL16-" + v.Coefficients.String()
	default:
		return fmt.Sprintf("Model(%d)", int(v.Model))
	}
}

// MarshalText encodes the variant by name
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts any name ParseVariant does
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
