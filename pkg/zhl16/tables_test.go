package zhl16

import (
	"math"
	"testing"
)

func TestGenerateHeHalfTimes(t *testing.T) {
	generated := GenerateHeHalfTimes()

	for i := range HeHalfTimes {
		if math.Abs(generated[i]-HeHalfTimes[i]) > 1e-3 {
			t.Errorf("compartment %d: generated %.4f, published %.4f", i, generated[i], HeHalfTimes[i])
		}
	}
}

func TestHeliumDiffusesFaster(t *testing.T) {
	ratio := math.Sqrt(MolarMassN2 / MolarMassHe)
	if math.Abs(ratio-2.6457) > 1e-3 {
		t.Errorf("diffusion ratio = %v, expected about 2.6457", ratio)
	}
	for i := range N2HalfTimes {
		if HeHalfTimes[i] >= N2HalfTimes[i] {
			t.Errorf("compartment %d: helium half-time %v not shorter than nitrogen %v", i, HeHalfTimes[i], N2HalfTimes[i])
		}
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in       string
		expected Variant
		wantErr  bool
	}{
		{in: "a", expected: VariantA},
		{in: "B", expected: VariantB},
		{in: " c ", expected: VariantC},
		{in: "d", wantErr: true},
	}

	for _, tt := range tests {
		v, err := ParseVariant(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVariant(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || v != tt.expected {
			t.Errorf("ParseVariant(%q) = %v, %v; expected %v", tt.in, v, err, tt.expected)
		}
	}
}
