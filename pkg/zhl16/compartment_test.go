package zhl16

import (
	"math"
	"testing"

	"github.com/chrissnell/divesync/pkg/gas"
)

func airCompartment(t *testing.T, index int, v Variant) *Compartment {
	t.Helper()
	c, err := NewCompartment(index, gas.Air(), v)
	if err != nil {
		t.Fatalf("NewCompartment(%d): %v", index, err)
	}
	return c
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func TestNewCompartmentStartsSaturatedAtSurface(t *testing.T) {
	c := airCompartment(t, 0, VariantA)
	pN2, pHe := c.Pressures()
	if pN2 != gas.BackgroundN2 {
		t.Errorf("pN2 = %v, expected %v", pN2, gas.BackgroundN2)
	}
	if pHe != 0 {
		t.Errorf("pHe = %v, expected 0", pHe)
	}

	mix := gas.MustTrimix(0.10, 0.30)
	tc, err := NewCompartment(0, mix, VariantA)
	if err != nil {
		t.Fatal(err)
	}
	expected := (gas.BackgroundN2 - (0.10 + (0.30 - gas.BackgroundO2))) + 0.10
	if got := tc.Loading(); math.Abs(got-expected) > 1e-9 {
		t.Errorf("trimix Loading() = %v, expected %v", got, expected)
	}
}

func TestLoadingKeepsHeliumAfterSwitch(t *testing.T) {
	c, err := NewCompartment(3, gas.MustTrimix(0.35, 0.18), VariantB)
	if err != nil {
		t.Fatal(err)
	}
	c.UpdatePressure(5, 30)
	c.SetMix(gas.MustNitrox(0.50))
	c.UpdatePressure(2, 3)

	pN2, pHe := c.Pressures()
	if pHe <= 0 {
		t.Fatalf("expected residual helium after switching to nitrox, got %v", pHe)
	}
	if got := c.Loading(); got != pN2+pHe {
		t.Errorf("Loading() = %v, expected pN2+pHe = %v", got, pN2+pHe)
	}
	if got, want := c.Ceiling(), (pN2+pHe-c.A())*c.B(); math.Abs(got-want) > 1e-12 {
		t.Errorf("Ceiling() = %v, expected %v", got, want)
	}
}

func TestNewCompartmentRejectsBadIndex(t *testing.T) {
	for _, idx := range []int{-1, NumCompartments} {
		if _, err := NewCompartment(idx, gas.Air(), VariantA); err == nil {
			t.Errorf("NewCompartment(%d) expected error", idx)
		}
	}
}

func TestUpdatePressureStepInvariance(t *testing.T) {
	mixes := map[string]gas.Mix{
		"air":    gas.Air(),
		"trimix": gas.MustTrimix(0.35, 0.18),
		"heliox": gas.MustTrimix(0.78, 0.21),
	}

	for name, mix := range mixes {
		t.Run(name, func(t *testing.T) {
			for idx := 0; idx < NumCompartments; idx++ {
				whole, _ := NewCompartment(idx, mix, VariantA)
				steps := whole.Clone()

				whole.UpdatePressure(2.2, 30)
				for i := 0; i < 30*60; i++ {
					steps.UpdatePressure(2.2, 1.0/60.0)
				}

				wN2, wHe := whole.Pressures()
				sN2, sHe := steps.Pressures()
				if math.Abs(wN2-sN2) > 1e-3 || math.Abs(wHe-sHe) > 1e-3 {
					t.Errorf("compartment %d: single step (%.5f, %.5f) != many steps (%.5f, %.5f)",
						idx, wN2, wHe, sN2, sHe)
				}
				if math.Abs(whole.Elapsed()-steps.Elapsed()) > 1e-6 {
					t.Errorf("compartment %d: elapsed %v != %v", idx, whole.Elapsed(), steps.Elapsed())
				}
			}
		})
	}
}

func TestUpdatePressureConvergesWithoutOvershoot(t *testing.T) {
	const ambient = 3.0
	mix := gas.Air()
	inspired := mix.PPN2(ambient)

	for idx := 0; idx < NumCompartments; idx++ {
		c := airCompartment(t, idx, VariantA)
		prev := c.Loading()

		for step := 0; step < 2000; step++ {
			c.UpdatePressure(ambient, 10)
			cur := c.Loading()
			if cur < prev-1e-12 {
				t.Fatalf("compartment %d step %d: loading decreased %v -> %v", idx, step, prev, cur)
			}
			if cur > inspired+1e-12 {
				t.Fatalf("compartment %d step %d: loading %v overshot inspired %v", idx, step, cur, inspired)
			}
			prev = cur
		}

		if math.Abs(prev-inspired) > 1e-3 {
			t.Errorf("compartment %d: loading %v did not converge to %v", idx, prev, inspired)
		}
	}
}

func TestUpdatePressureRoundTripSymmetry(t *testing.T) {
	mix := gas.Air()

	for idx := 0; idx < NumCompartments; idx++ {
		descent := airCompartment(t, idx, VariantA)
		ascent := descent.Clone()

		// 30 minutes at 10m from surface saturation
		descent.UpdatePressure(2.0, 30)
		gained := descent.Loading() - mix.PPN2(1.0)

		// saturate at 10m then return to the surface for 30 minutes
		ascent.UpdatePressure(2.0, 1e7)
		atDepth := ascent.Loading()
		ascent.UpdatePressure(1.0, 30)
		lost := atDepth - ascent.Loading()

		if math.Abs(gained-lost) > 1e-9 {
			t.Errorf("compartment %d: gained %v on descent but lost %v on ascent", idx, gained, lost)
		}
	}
}

func TestUpdatePressureRoundTripSymmetryOverSteps(t *testing.T) {
	mix := gas.Air()
	descent := airCompartment(t, 0, VariantA)
	ascent := descent.Clone()

	for i := 0; i < 30*60; i++ {
		descent.UpdatePressure(2.0, 1.0/60.0)
	}
	gained := descent.Loading() - mix.PPN2(1.0)

	ascent.UpdatePressure(2.0, 100000)
	atDepth := ascent.Loading()
	for i := 0; i < 30*60; i++ {
		ascent.UpdatePressure(1.0, 1.0/60.0)
	}
	lost := atDepth - ascent.Loading()

	if round(gained, 3) != round(lost, 3) {
		t.Errorf("gained %.4f on descent but lost %.4f on ascent", gained, lost)
	}
}

func TestNitroxACoefficientsVariantA(t *testing.T) {
	expected := [NumCompartments]float64{
		1.2599, 1.0000, 0.8618, 0.7562, 0.6667, 0.5933, 0.5282, 0.4701,
		0.4187, 0.3798, 0.3497, 0.3223, 0.2971, 0.2737, 0.2523, 0.2327,
	}

	for i := 0; i < NumCompartments; i++ {
		c := airCompartment(t, i, VariantA)
		if round(c.A(), 3) != round(expected[i], 3) {
			t.Errorf("compartment %d: A() = %.4f, expected %.4f", i, c.A(), expected[i])
		}
		if c.A() != coefficientA(N2HalfTimes[i]) {
			t.Errorf("compartment %d: variant A should use the formula", i)
		}
	}
}

func TestNitroxACoefficientsVariantsBC(t *testing.T) {
	tests := []struct {
		variant  Variant
		expected [NumCompartments]float64
	}{
		{
			variant: VariantB,
			expected: [NumCompartments]float64{
				1.2599, 1.0000, 0.8618, 0.7562, 0.6667, 0.5600, 0.4947, 0.4500,
				0.4187, 0.3798, 0.3497, 0.3223, 0.2850, 0.2737, 0.2523, 0.2327,
			},
		},
		{
			variant: VariantC,
			expected: [NumCompartments]float64{
				1.2599, 1.0000, 0.8618, 0.7562, 0.6200, 0.5043, 0.4410, 0.4000,
				0.3750, 0.3500, 0.3295, 0.3065, 0.2835, 0.2610, 0.2480, 0.2327,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			for i := 0; i < NumCompartments; i++ {
				c := airCompartment(t, i, tt.variant)
				if round(c.A(), 3) != round(tt.expected[i], 3) {
					t.Errorf("compartment %d: A() = %.4f, expected %.4f", i, c.A(), tt.expected[i])
				}
			}
		})
	}
}

func TestExactOverrides(t *testing.T) {
	tests := []struct {
		variant Variant
		index   int
		a       float64
	}{
		{VariantB, 5, 0.5600},
		{VariantB, 12, 0.2850},
		{VariantC, 6, 0.4410},
	}

	for _, tt := range tests {
		if got := airCompartment(t, tt.index, tt.variant).A(); got != tt.a {
			t.Errorf("variant %v compartment %d: A() = %v, expected exactly %v", tt.variant, tt.index, got, tt.a)
		}
	}
}

func TestNitroxBCoefficients(t *testing.T) {
	for _, v := range []Variant{VariantA, VariantB, VariantC} {
		if got := airCompartment(t, 3, v).B(); got != 0.7825 {
			t.Errorf("variant %v compartment 3: B() = %v, expected 0.7825", v, got)
		}
		if got := airCompartment(t, 4, v).B(); got != 0.8126 {
			t.Errorf("variant %v compartment 4: B() = %v, expected 0.8126", v, got)
		}
	}

	c := airCompartment(t, 0, VariantA)
	if round(c.B(), 4) != 0.505 {
		t.Errorf("compartment 0: B() = %v, expected 0.505", c.B())
	}
}

func TestHalfTimeByMix(t *testing.T) {
	air := airCompartment(t, 5, VariantA)
	if air.HalfTime() != N2HalfTimes[5] {
		t.Errorf("nitrox half-time = %v, expected %v", air.HalfTime(), N2HalfTimes[5])
	}

	heliox, _ := NewCompartment(5, gas.MustTrimix(0.78, 0.21), VariantA)
	if heliox.HalfTime() != HeHalfTimes[5] {
		t.Errorf("heliox half-time = %v, expected %v", heliox.HalfTime(), HeHalfTimes[5])
	}
	if heliox.A() != HeA(5) || heliox.B() != HeB(5) {
		t.Errorf("heliox coefficients = (%v, %v), expected helium values", heliox.A(), heliox.B())
	}
}

func TestTrimixBlending(t *testing.T) {
	mix := gas.MustTrimix(0.30, 0.21)
	ppHe, ppN2 := mix.PPHe(1), mix.PPN2(1)

	for i := 0; i < NumCompartments; i++ {
		c, _ := NewCompartment(i, mix, VariantA)

		expected := (HeHalfTimes[i]*ppHe + N2HalfTimes[i]*ppN2) / (ppHe + ppN2)
		if math.Abs(c.HalfTime()-expected) > 1e-12 {
			t.Errorf("compartment %d: HalfTime() = %v, expected weighted %v", i, c.HalfTime(), expected)
		}
		if c.HalfTime() <= HeHalfTimes[i] || c.HalfTime() >= N2HalfTimes[i] {
			t.Errorf("compartment %d: blended half-time %v not between He %v and N2 %v",
				i, c.HalfTime(), HeHalfTimes[i], N2HalfTimes[i])
		}
		if c.A() <= N2A(i, VariantA) || c.A() >= HeA(i) {
			t.Errorf("compartment %d: blended a %v not between N2 and He values", i, c.A())
		}
		if c.B() >= N2B(i) || c.B() <= HeB(i) {
			t.Errorf("compartment %d: blended b %v not between He and N2 values", i, c.B())
		}

		literal := BlendLiteral(HeHalfTimes[i], N2HalfTimes[i], ppHe, ppN2)
		if math.Abs(literal-c.HalfTime()) < 1e-6 {
			t.Errorf("compartment %d: literal blend unexpectedly matches the weighted average", i)
		}
	}
}

func TestBlendFunctions(t *testing.T) {
	// blending a value with itself must return it unchanged
	if got := BlendWeighted(10, 10, 0.3, 0.48); math.Abs(got-10) > 1e-12 {
		t.Errorf("BlendWeighted(10, 10) = %v, expected 10", got)
	}
	if got := BlendLiteral(10, 10, 0.3, 0.48); math.Abs(got-26.48) > 1e-9 {
		t.Errorf("BlendLiteral(10, 10) = %v, expected 26.48", got)
	}
	if got := BlendWeighted(1, 2, 0, 0); got != 2 {
		t.Errorf("BlendWeighted with no inert gas = %v, expected nitrogen value", got)
	}
}

func TestMValueAndCeiling(t *testing.T) {
	c := airCompartment(t, 4, VariantA)

	expectedM := coefficientA(N2HalfTimes[4]) + 1.0/0.8126
	if math.Abs(c.MValue()-expectedM) > 1e-12 {
		t.Errorf("MValue() at surface = %v, expected %v", c.MValue(), expectedM)
	}
	if c.Ceiling() >= SurfaceATA {
		t.Errorf("fresh compartment ceiling %v should be below the surface", c.Ceiling())
	}
	if c.CeilingDepth() != 0 {
		t.Errorf("CeilingDepth() = %v, expected 0", c.CeilingDepth())
	}

	// saturate at 40m
	c.UpdatePressure(5.0, 1e6)
	if c.Ceiling() <= SurfaceATA {
		t.Errorf("saturated compartment ceiling %v should be deeper than the surface", c.Ceiling())
	}
	if c.CeilingDepth() <= 0 {
		t.Errorf("CeilingDepth() = %v, expected a positive stop depth", c.CeilingDepth())
	}
	if c.LastAmbient() != 5.0 {
		t.Errorf("LastAmbient() = %v, expected 5.0", c.LastAmbient())
	}
	if math.Abs(c.MValue()-c.MValueAt(5.0)) > 1e-12 {
		t.Errorf("MValue() should be evaluated at the last ambient pressure")
	}
}
