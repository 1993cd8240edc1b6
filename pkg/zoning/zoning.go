// Package zoning turns raw zoning records into canonical constraint sets.
package zoning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// ErrInvalidRecord is returned when a recorded limit is out of range.
var ErrInvalidRecord = errors.New("invalid zoning record")

// Unbounded marks a limit the jurisdiction does not record.
var Unbounded = math.Inf(1)

// FullCoverage is the coverage allowance when none is recorded.
const FullCoverage = 100.0

// Setbacks are minimum yard depths in feet.
type Setbacks struct {
	Front float64 `json:"front"`
	Side  float64 `json:"side"`
	Rear  float64 `json:"rear"`
}

// Depth returns the average yard depth around a four-sided lot, counting
// the side setback on both sides. It is the uniform inward offset used to
// estimate buildable area.
func (s Setbacks) Depth() float64 {
	return (s.Front + s.Rear + 2*s.Side) / 4
}

// Constraints is the normalized constraint set for a site. Unbounded
// limits are +Inf, except coverage which is capped at 100 percent.
type Constraints struct {
	ZoneCodes           []string            `json:"zone_codes"`
	MaxFAR              float64             `json:"max_far"`
	MaxHeightFt         float64             `json:"max_height_ft"`
	MaxCoveragePct      float64             `json:"max_coverage_pct"`
	MaxDensityDUPerAcre float64             `json:"max_density_du_per_acre"`
	Setbacks            Setbacks            `json:"setbacks"`
	PermittedUses       []spec.BuildingType `json:"permitted_uses"`
}

// Normalize converts a raw zoning record into a constraint set. Absent
// limits are unbounded rather than zero.
func Normalize(rec spec.ZoningRecord) (Constraints, error) {
	c := Constraints{
		MaxFAR:              Unbounded,
		MaxHeightFt:         Unbounded,
		MaxCoveragePct:      FullCoverage,
		MaxDensityDUPerAcre: Unbounded,
		PermittedUses:       []spec.BuildingType{},
	}
	if rec.ZoneCode != "" {
		c.ZoneCodes = []string{rec.ZoneCode}
	} else {
		c.ZoneCodes = []string{}
	}

	var err error
	if c.MaxFAR, err = positiveLimit("max_far", rec.MaxFAR, c.MaxFAR); err != nil {
		return Constraints{}, err
	}
	if c.MaxHeightFt, err = positiveLimit("max_height_ft", rec.MaxHeightFt, c.MaxHeightFt); err != nil {
		return Constraints{}, err
	}
	if c.MaxDensityDUPerAcre, err = positiveLimit("max_density_du_per_acre", rec.MaxDensityDUPerAcre, c.MaxDensityDUPerAcre); err != nil {
		return Constraints{}, err
	}
	if c.MaxCoveragePct, err = positiveLimit("max_coverage_pct", rec.MaxCoveragePct, c.MaxCoveragePct); err != nil {
		return Constraints{}, err
	}
	if c.MaxCoveragePct > FullCoverage {
		return Constraints{}, fmt.Errorf("%w: max_coverage_pct %.1f exceeds 100", ErrInvalidRecord, c.MaxCoveragePct)
	}

	if c.Setbacks.Front, err = setback("front", rec.Setbacks.Front); err != nil {
		return Constraints{}, err
	}
	if c.Setbacks.Side, err = setback("side", rec.Setbacks.Side); err != nil {
		return Constraints{}, err
	}
	if c.Setbacks.Rear, err = setback("rear", rec.Setbacks.Rear); err != nil {
		return Constraints{}, err
	}

	for _, use := range rec.PermittedUses {
		bt := spec.BuildingType(use)
		if !bt.Valid() {
			return Constraints{}, fmt.Errorf("%w: unknown permitted use %q", ErrInvalidRecord, use)
		}
		c.PermittedUses = append(c.PermittedUses, bt)
	}
	c.PermittedUses = dedupeUses(c.PermittedUses)

	return c, nil
}

func positiveLimit(name string, v *float64, fallback float64) (float64, error) {
	if v == nil {
		return fallback, nil
	}
	if math.IsNaN(*v) || *v <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive (got %v)", ErrInvalidRecord, name, *v)
	}
	return *v, nil
}

func setback(name string, v *float64) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if math.IsNaN(*v) || *v < 0 {
		return 0, fmt.Errorf("%w: %s setback must be non-negative (got %v)", ErrInvalidRecord, name, *v)
	}
	return *v, nil
}

func dedupeUses(uses []spec.BuildingType) []spec.BuildingType {
	sort.Slice(uses, func(i, j int) bool { return uses[i] < uses[j] })
	out := uses[:0]
	for i, u := range uses {
		if i == 0 || u != uses[i-1] {
			out = append(out, u)
		}
	}
	return out
}

// Permits reports whether the building type is allowed. An empty
// permitted-use list allows every use.
func (c Constraints) Permits(bt spec.BuildingType) bool {
	if len(c.PermittedUses) == 0 {
		return true
	}
	for _, u := range c.PermittedUses {
		if u == bt {
			return true
		}
	}
	return false
}

// FARBounded reports whether a maximum FAR is recorded.
func (c Constraints) FARBounded() bool { return !math.IsInf(c.MaxFAR, 1) }

// HeightBounded reports whether a maximum height is recorded.
func (c Constraints) HeightBounded() bool { return !math.IsInf(c.MaxHeightFt, 1) }

// DensityBounded reports whether a maximum density is recorded.
func (c Constraints) DensityBounded() bool { return !math.IsInf(c.MaxDensityDUPerAcre, 1) }

// MarshalJSON writes unbounded limits as null, since JSON has no infinity.
func (c Constraints) MarshalJSON() ([]byte, error) {
	type limits struct {
		ZoneCodes           []string            `json:"zone_codes"`
		MaxFAR              *float64            `json:"max_far"`
		MaxHeightFt         *float64            `json:"max_height_ft"`
		MaxCoveragePct      float64             `json:"max_coverage_pct"`
		MaxDensityDUPerAcre *float64            `json:"max_density_du_per_acre"`
		Setbacks            Setbacks            `json:"setbacks"`
		PermittedUses       []spec.BuildingType `json:"permitted_uses"`
	}
	return json.Marshal(limits{
		ZoneCodes:           c.ZoneCodes,
		MaxFAR:              finite(c.MaxFAR),
		MaxHeightFt:         finite(c.MaxHeightFt),
		MaxCoveragePct:      c.MaxCoveragePct,
		MaxDensityDUPerAcre: finite(c.MaxDensityDUPerAcre),
		Setbacks:            c.Setbacks,
		PermittedUses:       c.PermittedUses,
	})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
