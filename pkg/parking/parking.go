// Package parking sizes and prices the parking a program requires.
package parking

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ChicagoDave/siteplanner/pkg/cost"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// Ratios hold spaces required per unit by unit type, scaled by a factor
// for the building type's non-residential demand.
type Ratios struct {
	PerUnit        map[spec.UnitType]float64     `json:"per_unit"`
	BuildingFactor map[spec.BuildingType]float64 `json:"building_factor"`
}

// DefaultRatios returns typical suburban minimums.
func DefaultRatios() Ratios {
	return Ratios{
		PerUnit: map[spec.UnitType]float64{
			spec.Studio:       1.0,
			spec.OneBedroom:   1.25,
			spec.TwoBedroom:   1.5,
			spec.ThreeBedroom: 2.0,
		},
		BuildingFactor: map[spec.BuildingType]float64{
			spec.Residential: 1.0,
			spec.MixedUse:    1.15,
			spec.Commercial:  1.5,
		},
	}
}

func (r Ratios) factor(bt spec.BuildingType) float64 {
	if f, ok := r.BuildingFactor[bt]; ok && f > 0 {
		return f
	}
	return 1
}

// Analysis is the parking outcome for one configuration.
type Analysis struct {
	ParkingType       spec.ParkingType `json:"parking_type"`
	RequiredSpaces    int              `json:"required_spaces"`
	CostPerSpace      float64          `json:"cost_per_space"`
	TotalParkingCost  float64          `json:"total_parking_cost"`
	ParkingEfficiency float64          `json:"parking_efficiency"`
}

// RequiredSpaces sums units of each type times its ratio, applies the
// building factor and rounds up to a whole space.
func RequiredSpaces(cfg spec.Configuration, r Ratios) int {
	if cfg.TargetUnits <= 0 {
		return 0
	}
	types := cfg.UnitMix.Types()
	if len(types) == 0 {
		return 0
	}
	ratios := make([]float64, len(types))
	for i, u := range types {
		ratios[i] = r.PerUnit[u]
	}
	perUnit := floats.Dot(cfg.UnitMix.Fractions(), ratios)
	spaces := float64(cfg.TargetUnits) * perUnit * r.factor(cfg.BuildingType)
	if spaces <= 0 {
		return 0
	}
	// Absorb round-off so exact products do not round up a whole space.
	return int(math.Ceil(spaces - 1e-9))
}

// Compute sizes parking and prices it from the cost table. A missing
// cost item returns the sized analysis together with the error.
func Compute(cfg spec.Configuration, totalGSF float64, costs cost.Table, r Ratios) (Analysis, error) {
	a := Analysis{
		ParkingType:    cfg.ParkingType,
		RequiredSpaces: RequiredSpaces(cfg, r),
	}
	if totalGSF > 0 {
		a.ParkingEfficiency = float64(a.RequiredSpaces) / totalGSF * 1000
	}

	perSpace, err := costs.Lookup(cost.ParkingItem(cfg.ParkingType))
	if err != nil {
		return a, fmt.Errorf("pricing %s parking: %w", cfg.ParkingType, err)
	}
	a.CostPerSpace = perSpace
	a.TotalParkingCost = perSpace * float64(a.RequiredSpaces)
	return a, nil
}
