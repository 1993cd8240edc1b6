// Package massing derives building stories, floor area and zoning
// utilization from a development program.
package massing

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

// DefaultMaxStories bounds the story search when height is unbounded.
const DefaultMaxStories = 120

const sqFtPerAcre = 43560.0

// Assumptions are the physical planning assumptions behind massing.
type Assumptions struct {
	UnitSizesSqFt map[spec.UnitType]float64     `json:"unit_sizes_sqft"`
	FloorHeightFt map[spec.BuildingType]float64 `json:"floor_height_ft"`
	MaxStories    int                           `json:"max_stories"`
}

// DefaultAssumptions returns typical unit sizes and floor-to-floor heights.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		UnitSizesSqFt: map[spec.UnitType]float64{
			spec.Studio:       550,
			spec.OneBedroom:   750,
			spec.TwoBedroom:   1050,
			spec.ThreeBedroom: 1300,
		},
		FloorHeightFt: map[spec.BuildingType]float64{
			spec.Residential: 10,
			spec.MixedUse:    12,
			spec.Commercial:  14,
		},
		MaxStories: DefaultMaxStories,
	}
}

// FloorHeight returns the floor-to-floor height for a building type,
// falling back to the residential height.
func (a Assumptions) FloorHeight(bt spec.BuildingType) float64 {
	if h, ok := a.FloorHeightFt[bt]; ok && h > 0 {
		return h
	}
	if h, ok := a.FloorHeightFt[spec.Residential]; ok && h > 0 {
		return h
	}
	return 10
}

// ConstraintAnalysis reports each achieved metric as a percentage of its
// zoning maximum. Values above 100 mean the limit is exceeded.
type ConstraintAnalysis struct {
	FARUtilization      float64 `json:"far_utilization"`
	HeightUtilization   float64 `json:"height_utilization"`
	CoverageUtilization float64 `json:"coverage_utilization"`
	DensityUtilization  float64 `json:"density_utilization"`
}

// Massing is the building envelope derived for one configuration.
type Massing struct {
	Stories            int                `json:"stories"`
	TotalGSF           float64            `json:"total_gsf"`
	FAR                float64            `json:"far"`
	Coverage           float64            `json:"coverage"`
	FootprintSqFt      float64            `json:"footprint_sqft"`
	HeightFt           float64            `json:"height_ft"`
	AvgUnitSizeSqFt    float64            `json:"avg_unit_size_sqft"`
	DensityDUPerAcre   float64            `json:"density_du_per_acre"`
	ConstraintAnalysis ConstraintAnalysis `json:"constraint_analysis"`
}

// AverageUnitSize returns the mix-weighted unit size. Unknown unit types
// contribute no area.
func AverageUnitSize(mix spec.UnitMix, a Assumptions) float64 {
	types := mix.Types()
	if len(types) == 0 {
		return 0
	}
	sizes := make([]float64, len(types))
	for i, u := range types {
		sizes[i] = a.UnitSizesSqFt[u]
	}
	return floats.Dot(mix.Fractions(), sizes)
}

// Compute derives the massing for a configuration on a lot. It always
// returns a value; whether the result breaches zoning is judged by the
// utilization figures downstream.
//
// Stories is the smallest count whose footprint fits both the coverage
// limit and the open-space reservation while staying under the height
// limit. When no count fits, the tallest count the height limit allows
// is used.
func Compute(lotAreaSqFt float64, c zoning.Constraints, cfg spec.Configuration, a Assumptions) Massing {
	m := Massing{Stories: 1}
	m.AvgUnitSizeSqFt = AverageUnitSize(cfg.UnitMix, a)
	units := math.Max(0, float64(cfg.TargetUnits))
	m.TotalGSF = units*m.AvgUnitSizeSqFt + math.Max(0, cfg.AmenitySpaceSqFt)
	if lotAreaSqFt <= 0 {
		return m
	}

	floorHeight := a.FloorHeight(cfg.BuildingType)
	m.Stories = solveStories(lotAreaSqFt, m.TotalGSF, floorHeight, c, cfg.OpenSpaceRatio, a.MaxStories)

	m.FootprintSqFt = m.TotalGSF / float64(m.Stories)
	m.HeightFt = float64(m.Stories) * floorHeight
	m.FAR = m.TotalGSF / lotAreaSqFt
	m.Coverage = m.FootprintSqFt / lotAreaSqFt * 100
	m.DensityDUPerAcre = units / (lotAreaSqFt / sqFtPerAcre)

	m.ConstraintAnalysis = ConstraintAnalysis{
		FARUtilization:      Utilization(m.FAR, c.MaxFAR),
		HeightUtilization:   Utilization(m.HeightFt, c.MaxHeightFt),
		CoverageUtilization: Utilization(m.Coverage, c.MaxCoveragePct),
		DensityUtilization:  Utilization(m.DensityDUPerAcre, c.MaxDensityDUPerAcre),
	}
	return m
}

func solveStories(lot, gsf, floorHeight float64, c zoning.Constraints, openSpace float64, maxStories int) int {
	if maxStories <= 0 {
		maxStories = DefaultMaxStories
	}
	limit := c.MaxCoveragePct
	openSpace = math.Min(1, math.Max(0, openSpace))
	limit = math.Min(limit, 100*(1-openSpace))

	heightCap := maxStories
	if c.HeightBounded() {
		heightCap = int(math.Floor(c.MaxHeightFt/floorHeight + 1e-9))
		if heightCap < 1 {
			heightCap = 1
		}
	}

	for n := 1; n <= heightCap; n++ {
		coverage := gsf / float64(n) / lot * 100
		if coverage <= limit+1e-9 {
			return n
		}
	}
	return heightCap
}

// Utilization returns achieved as a percentage of allowed. An unbounded
// or non-positive allowance reports 0. The value is not clamped.
func Utilization(achieved, allowed float64) float64 {
	if math.IsInf(allowed, 1) || allowed <= 0 {
		return 0
	}
	return achieved / allowed * 100
}

// CapForDisplay clamps a utilization percentage to [0, 100] for
// presentation. Feasibility checks must use the raw value.
func CapForDisplay(pct float64) float64 {
	return math.Max(0, math.Min(100, pct))
}
