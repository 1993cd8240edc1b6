package validation

import (
	"fmt"
	"math"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"gonum.org/v1/gonum/floats"
)

const (
	// MixTolerance is the allowed deviation of the unit-mix total from 1.0.
	MixTolerance = 0.01

	// MaxOpenSpaceRatio is the largest open-space ratio a configuration may request.
	MaxOpenSpaceRatio = 0.5

	// FieldUnitMix identifies the unit-mix total finding.
	FieldUnitMix = "unit_mix"
)

// ValidateConfiguration checks a site-plan configuration before any
// computation. Problems are reported as errors; it never fails.
func ValidateConfiguration(c spec.Configuration) *Report {
	r := NewReport()

	validateTargetUnits(c, r)
	validateUnitMix(c, r)
	validateProgram(c, r)
	validateSpaces(c, r)

	return r
}

func validateTargetUnits(c spec.Configuration, r *Report) {
	if c.TargetUnits <= 0 {
		r.AddError(Result{
			Level:       LevelConfiguration,
			Message:     fmt.Sprintf("target units must be greater than 0 (got %d)", c.TargetUnits),
			Field:       "target_units",
			ActualValue: c.TargetUnits,
			Expected:    "> 0",
		})
	}
}

func validateUnitMix(c spec.Configuration, r *Report) {
	if len(c.UnitMix) == 0 {
		r.AddError(Result{
			Level:       LevelConfiguration,
			Message:     "unit mix must contain at least one unit type",
			Field:       FieldUnitMix,
			Expected:    "fractions summing to 1.0 (±0.01)",
			Suggestions: []string{"Add unit types with fractions that sum to 1.0"},
		})
		return
	}

	for _, u := range c.UnitMix.Types() {
		frac := c.UnitMix[u]
		if !u.Valid() {
			r.AddError(Result{
				Level:       LevelConfiguration,
				Message:     fmt.Sprintf("unit mix has unknown unit type %q", u),
				Field:       fmt.Sprintf("unit_mix.%s", u),
				ActualValue: string(u),
				Expected:    "studio, oneBedroom, twoBedroom or threeBedroom",
			})
		}
		if !(frac >= 0) || math.IsInf(frac, 1) {
			r.AddError(Result{
				Level:       LevelConfiguration,
				Message:     fmt.Sprintf("unit_mix.%s must be a finite non-negative fraction", u),
				Field:       fmt.Sprintf("unit_mix.%s", u),
				ActualValue: actual(frac),
				Expected:    ">= 0",
			})
		}
	}

	sum := floats.Sum(c.UnitMix.Fractions())
	if !(math.Abs(sum-1.0) <= MixTolerance+1e-9) {
		r.AddError(Result{
			Level:       LevelConfiguration,
			Message:     fmt.Sprintf("unit mix fractions must sum to 1.0 (got %.4f)", sum),
			Field:       FieldUnitMix,
			ActualValue: actual(sum),
			Expected:    "1.0 (±0.01)",
			Suggestions: []string{"Adjust unit mix fractions so they sum to 1.0"},
		})
	}
}

func validateProgram(c spec.Configuration, r *Report) {
	if !c.BuildingType.Valid() {
		r.AddError(Result{
			Level:       LevelConfiguration,
			Message:     fmt.Sprintf("unknown building type %q", c.BuildingType),
			Field:       "building_type",
			ActualValue: string(c.BuildingType),
			Expected:    "residential, commercial or mixed-use",
		})
	}
	if !c.ParkingType.Valid() {
		r.AddError(Result{
			Level:       LevelConfiguration,
			Message:     fmt.Sprintf("unknown parking type %q", c.ParkingType),
			Field:       "parking_type",
			ActualValue: string(c.ParkingType),
			Expected:    "surface, garage or underground",
		})
	}
}

func validateSpaces(c spec.Configuration, r *Report) {
	if !(c.AmenitySpaceSqFt >= 0) || math.IsInf(c.AmenitySpaceSqFt, 1) {
		r.AddError(Result{
			Level:       LevelConfiguration,
			Message:     fmt.Sprintf("amenity space %.0f sq ft must be finite and non-negative", c.AmenitySpaceSqFt),
			Field:       "amenity_space_sqft",
			ActualValue: actual(c.AmenitySpaceSqFt),
			Expected:    ">= 0",
		})
	}
	if !(c.OpenSpaceRatio >= 0 && c.OpenSpaceRatio <= MaxOpenSpaceRatio) {
		r.AddError(Result{
			Level:       LevelConfiguration,
			Message:     fmt.Sprintf("open space ratio %.2f is outside valid range (0-0.5)", c.OpenSpaceRatio),
			Field:       "open_space_ratio",
			ActualValue: actual(c.OpenSpaceRatio),
			Expected:    "0-0.5",
		})
	}
}

// actual keeps non-finite values printable and JSON-encodable.
func actual(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return v
}

// HasField reports whether any error in the report concerns field.
func (r *Report) HasField(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
