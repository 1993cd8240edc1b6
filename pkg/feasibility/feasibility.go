// Package feasibility judges a computed plan against its zoning and
// configuration and classifies the outcome.
package feasibility

import (
	"fmt"
	"strings"

	"github.com/ChicagoDave/siteplanner/pkg/massing"
	"github.com/ChicagoDave/siteplanner/pkg/parking"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/validation"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

// DefaultNearLimitPct is the utilization above which a dimension is
// reported as near its limit.
const DefaultNearLimitPct = 85.0

// SurfaceStallSqFt is the lot area one surface space takes, aisles
// included.
const SurfaceStallSqFt = 350.0

// round-off allowance on utilization comparisons
const eps = 1e-9

// Policy holds the advisory thresholds. Jurisdictions may tune them.
type Policy struct {
	NearLimitPct float64                       `yaml:"near_limit_pct" json:"near_limit_pct"`
	MinOpenSpace map[spec.BuildingType]float64 `yaml:"min_open_space" json:"min_open_space"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		NearLimitPct: DefaultNearLimitPct,
		MinOpenSpace: map[spec.BuildingType]float64{
			spec.Residential: 0.15,
			spec.MixedUse:    0.10,
			spec.Commercial:  0.05,
		},
	}
}

func (p Policy) nearLimit() float64 {
	if p.NearLimitPct <= 0 || p.NearLimitPct > 100 {
		return DefaultNearLimitPct
	}
	return p.NearLimitPct
}

// Classification is the display grade of a plan.
type Classification string

const (
	Excellent  Classification = "excellent"
	Good       Classification = "good"
	Acceptable Classification = "acceptable"
	Infeasible Classification = "infeasible"
)

// Classify grades a plan from its violation and warning counts alone.
func Classify(violations, warnings int) Classification {
	switch {
	case violations > 0:
		return Infeasible
	case warnings == 0:
		return Excellent
	case warnings <= 2:
		return Good
	default:
		return Acceptable
	}
}

// Input is everything Evaluate judges.
type Input struct {
	Massing     massing.Massing
	Parking     parking.Analysis
	Constraints zoning.Constraints
	Config      spec.Configuration

	// LotAreaSqFt is the site area; 0 skips the surface parking check.
	LotAreaSqFt float64

	// BuildableAreaSqFt is the lot area inside setbacks; 0 skips the
	// footprint check.
	BuildableAreaSqFt float64

	// Prior holds findings from earlier stages, such as pricing failures.
	Prior *validation.Report
}

// Evaluation is the verdict on one plan.
type Evaluation struct {
	IsFeasible      bool               `json:"is_feasible"`
	Violations      []string           `json:"violations"`
	Warnings        []string           `json:"warnings"`
	Recommendations []string           `json:"recommendations"`
	Classification  Classification     `json:"classification"`
	Report          *validation.Report `json:"-"`
}

// Evaluate checks a plan. Violations are hard breaches: utilization over
// 100 percent, configuration errors, or a use zoning does not permit.
// Warnings are advisory. A plan is feasible exactly when it has no
// violations.
func Evaluate(in Input, p Policy) Evaluation {
	r := validation.NewReport()
	if in.Prior != nil {
		r.Merge(in.Prior)
	}
	r.Merge(validation.ValidateConfiguration(in.Config))

	checkUse(in, r)
	checkLimits(in, p, r)
	checkOpenSpace(in, p, r)
	checkFootprint(in, r)
	checkSurfaceParking(in, r)

	ev := Evaluation{
		Violations:      validation.Messages(r.Errors),
		Warnings:        validation.Messages(r.Warnings),
		Recommendations: r.Suggestions(),
		Report:          r,
	}
	ev.IsFeasible = len(ev.Violations) == 0
	ev.Classification = Classify(len(ev.Violations), len(ev.Warnings))
	return ev
}

func checkUse(in Input, r *validation.Report) {
	bt := in.Config.BuildingType
	if !bt.Valid() || in.Constraints.Permits(bt) {
		return
	}
	conflict := "permitted_uses"
	if len(in.Constraints.ZoneCodes) > 0 {
		conflict = "zone " + strings.Join(in.Constraints.ZoneCodes, ", ")
	}
	r.AddError(validation.Result{
		Level:        validation.LevelZoning,
		Message:      fmt.Sprintf("%s use is not permitted by zoning", bt),
		Field:        "building_type",
		ActualValue:  string(bt),
		Expected:     fmt.Sprintf("%v", in.Constraints.PermittedUses),
		ConflictWith: conflict,
		Suggestions:  []string{"Choose a building type the zoning permits"},
	})
}

type limit struct {
	name       string
	field      string
	pct        float64
	achieved   string
	allowed    string
	suggestion string
}

func checkLimits(in Input, p Policy, r *validation.Report) {
	m := in.Massing
	c := in.Constraints
	ca := m.ConstraintAnalysis
	limits := []limit{
		{"FAR", "far", ca.FARUtilization,
			fmt.Sprintf("%.2f", m.FAR), fmt.Sprintf("%.2f", c.MaxFAR),
			"Reduce target units or unit sizes to bring FAR under the limit"},
		{"Height", "height", ca.HeightUtilization,
			fmt.Sprintf("%.0f ft", m.HeightFt), fmt.Sprintf("%.0f ft", c.MaxHeightFt),
			"Reduce stories or choose a building type with lower floor heights"},
		{"Coverage", "coverage", ca.CoverageUtilization,
			fmt.Sprintf("%.1f%%", m.Coverage), fmt.Sprintf("%.1f%%", c.MaxCoveragePct),
			"Shrink the footprint by adding stories or reducing amenity space"},
		{"Density", "density", ca.DensityUtilization,
			fmt.Sprintf("%.1f du/ac", m.DensityDUPerAcre), fmt.Sprintf("%.1f du/ac", c.MaxDensityDUPerAcre),
			"Reduce target units to meet the density cap"},
	}

	near := p.nearLimit()
	for _, l := range limits {
		switch {
		case l.pct > 100+eps:
			r.AddError(validation.Result{
				Level:       validation.LevelZoning,
				Message:     fmt.Sprintf("%s exceeds zoning maximum: %s vs %s allowed (%.1f%%)", l.name, l.achieved, l.allowed, l.pct),
				Field:       l.field,
				ActualValue: l.pct,
				Expected:    "<= 100%",
				Suggestions: []string{l.suggestion},
			})
		case l.pct > near:
			r.AddWarning(validation.Result{
				Level:       validation.LevelZoning,
				Message:     fmt.Sprintf("%s is near the zoning limit (%.1f%% of allowed)", l.name, l.pct),
				Field:       l.field,
				ActualValue: l.pct,
				Expected:    fmt.Sprintf("<= %.0f%%", near),
			})
		}
	}
}

func checkOpenSpace(in Input, p Policy, r *validation.Report) {
	minRatio, ok := p.MinOpenSpace[in.Config.BuildingType]
	ratio := in.Config.OpenSpaceRatio
	if !ok || ratio < 0 || ratio >= minRatio {
		return
	}
	r.AddWarning(validation.Result{
		Level:       validation.LevelFeasibility,
		Message:     fmt.Sprintf("open space ratio %.2f is below the recommended %.2f for %s", ratio, minRatio, in.Config.BuildingType),
		Field:       "open_space_ratio",
		ActualValue: ratio,
		Expected:    fmt.Sprintf(">= %.2f", minRatio),
		Suggestions: []string{fmt.Sprintf("Increase open space ratio to at least %.2f", minRatio)},
	})
}

func checkFootprint(in Input, r *validation.Report) {
	if in.BuildableAreaSqFt <= 0 || in.Massing.FootprintSqFt <= in.BuildableAreaSqFt+eps {
		return
	}
	r.AddWarning(validation.Result{
		Level:       validation.LevelFeasibility,
		Message:     fmt.Sprintf("footprint of %.0f sq ft exceeds the %.0f sq ft inside setbacks", in.Massing.FootprintSqFt, in.BuildableAreaSqFt),
		Field:       "footprint",
		ActualValue: in.Massing.FootprintSqFt,
		Expected:    fmt.Sprintf("<= %.0f", in.BuildableAreaSqFt),
		Suggestions: []string{"Add stories to fit the footprint inside the setbacks"},
	})
}

func checkSurfaceParking(in Input, r *validation.Report) {
	if in.Parking.ParkingType != spec.Surface || in.LotAreaSqFt <= 0 || in.Parking.RequiredSpaces == 0 {
		return
	}
	need := float64(in.Parking.RequiredSpaces) * SurfaceStallSqFt
	open := in.LotAreaSqFt*(1-in.Config.OpenSpaceRatio) - in.Massing.FootprintSqFt
	if need <= open {
		return
	}
	r.AddWarning(validation.Result{
		Level:       validation.LevelFeasibility,
		Message:     fmt.Sprintf("%d surface spaces need %.0f sq ft but only %.0f sq ft is free", in.Parking.RequiredSpaces, need, max(open, 0)),
		Field:       "parking_type",
		ActualValue: string(in.Parking.ParkingType),
		Suggestions: []string{"Use garage or underground parking"},
	})
}
