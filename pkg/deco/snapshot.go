package deco

import (
	"github.com/chrissnell/divesync/pkg/zhl16"
)

// CompartmentSnapshot is a read-only copy of one compartment's observable
// state at one instant
type CompartmentSnapshot struct {
	Compartment int     `json:"compartment"`
	HalfTime    float64 `json:"half_time"`
	PPN2        float64 `json:"pp_n2"`
	PPHe        float64 `json:"pp_he"`
	MValue      float64 `json:"m_value"`
	Ceiling     float64 `json:"ceiling"`
	O2Percent   float64 `json:"o2_percent"`
	N2Percent   float64 `json:"n2_percent"`
	HePercent   float64 `json:"he_percent"`
	GasType     string  `json:"gas_type"`
	Variant     string  `json:"variant"`
	ElapsedTime float64 `json:"elapsed_time"`
	LastDepth   float64 `json:"last_depth"`
}

// Loading is the total inert gas pressure captured in the snapshot
func (s CompartmentSnapshot) Loading() float64 {
	return s.PPN2 + s.PPHe
}

func snapshotOf(c *zhl16.Compartment, v Variant) CompartmentSnapshot {
	pN2, pHe := c.Pressures()
	o2, n2, he := c.Mix().Percentages()

	return CompartmentSnapshot{
		Compartment: c.Index(),
		HalfTime:    c.HalfTime(),
		PPN2:        pN2,
		PPHe:        pHe,
		MValue:      c.MValue(),
		Ceiling:     c.Ceiling(),
		O2Percent:   o2,
		N2Percent:   n2,
		HePercent:   he,
		GasType:     c.Mix().Type().String(),
		Variant:     v.String(),
		ElapsedTime: c.Elapsed(),
		LastDepth:   DepthFromAmbient(c.LastAmbient()),
	}
}
