// Package siteplan runs the site-plan pipeline: massing, parking,
// financial impact and feasibility for one configuration on one site.
package siteplan

import (
	"errors"

	"github.com/ChicagoDave/siteplanner/pkg/cost"
	"github.com/ChicagoDave/siteplanner/pkg/feasibility"
	"github.com/ChicagoDave/siteplanner/pkg/finance"
	"github.com/ChicagoDave/siteplanner/pkg/massing"
	"github.com/ChicagoDave/siteplanner/pkg/parking"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/validation"
)

// ErrEngineUnavailable means no plan can be attempted: zoning data is
// missing or the lot has no area.
var ErrEngineUnavailable = errors.New("site plan engine not available")

// Environment holds the read-only collaborators a plan is priced and
// judged against.
type Environment struct {
	Costs    cost.Table
	SiteWork cost.SiteWorkModel
	Market   spec.MarketAssumptions
	Massing  massing.Assumptions
	Parking  parking.Ratios
	Policy   feasibility.Policy
}

// DefaultEnvironment uses the baseline cost table and assumptions.
func DefaultEnvironment() Environment {
	return Environment{
		Costs:    cost.DefaultTable(),
		SiteWork: cost.PerSqFtSiteWork{},
		Market:   spec.DefaultMarket(),
		Massing:  massing.DefaultAssumptions(),
		Parking:  parking.DefaultRatios(),
		Policy:   feasibility.DefaultPolicy(),
	}
}

// WithDefaults fills unset assumptions. The cost table is never filled:
// an empty table prices nothing and every lookup becomes a violation.
func (e Environment) WithDefaults() Environment {
	d := DefaultEnvironment()
	if e.SiteWork == nil {
		e.SiteWork = d.SiteWork
	}
	e.Market = e.Market.WithDefaults()
	if e.Massing.UnitSizesSqFt == nil {
		e.Massing.UnitSizesSqFt = d.Massing.UnitSizesSqFt
	}
	if e.Massing.FloorHeightFt == nil {
		e.Massing.FloorHeightFt = d.Massing.FloorHeightFt
	}
	if e.Massing.MaxStories <= 0 {
		e.Massing.MaxStories = d.Massing.MaxStories
	}
	if e.Parking.PerUnit == nil {
		e.Parking.PerUnit = d.Parking.PerUnit
	}
	if e.Parking.BuildingFactor == nil {
		e.Parking.BuildingFactor = d.Parking.BuildingFactor
	}
	if e.Policy.NearLimitPct <= 0 {
		e.Policy.NearLimitPct = d.Policy.NearLimitPct
	}
	if e.Policy.MinOpenSpace == nil {
		e.Policy.MinOpenSpace = d.Policy.MinOpenSpace
	}
	return e
}

// Result is a feasibility-checked site plan. Each call to Generate
// produces a new Result.
type Result struct {
	ParcelIDs       []string                   `json:"parcel_ids"`
	LotAreaSqFt     float64                    `json:"lot_area_sqft"`
	Configuration   spec.Configuration         `json:"configuration"`
	BuildingMassing massing.Massing            `json:"building_massing"`
	ParkingAnalysis parking.Analysis           `json:"parking_analysis"`
	FinancialImpact finance.Impact             `json:"financial_impact"`
	Returns         finance.Returns            `json:"returns"`
	IsFeasible      bool                       `json:"is_feasible"`
	Violations      []string                   `json:"violations"`
	Warnings        []string                   `json:"warnings"`
	Recommendations []string                   `json:"recommendations"`
	Classification  feasibility.Classification `json:"classification"`
}

// Generate produces the plan for a configuration on a site. It returns
// ErrEngineUnavailable when the site has no zoning or no area. Every
// other problem, including invalid configuration and missing cost items,
// is reported as a violation on the returned result.
func Generate(site Site, cfg spec.Configuration, env Environment) (*Result, error) {
	if site.Constraints == nil || !(site.LotAreaSqFt > 0) {
		return nil, ErrEngineUnavailable
	}
	env = env.WithDefaults()
	cfg = cloneConfig(cfg)

	m := massing.Compute(site.LotAreaSqFt, *site.Constraints, cfg, env.Massing)

	prior := validation.NewReport()
	pk, err := parking.Compute(cfg, m.TotalGSF, env.Costs, env.Parking)
	if err != nil {
		prior.AddError(validation.Result{Level: validation.LevelCost, Message: err.Error(), Field: "parking_type"})
	}

	var returns finance.Returns
	im, err := finance.ComputeImpact(finance.Inputs{
		Massing:      m,
		Parking:      pk,
		BuildingType: cfg.BuildingType,
		TargetUnits:  cfg.TargetUnits,
		LotAreaSqFt:  site.LotAreaSqFt,
	}, finance.Pricing{Market: env.Market, Costs: env.Costs, SiteWork: env.SiteWork})
	if err != nil {
		prior.AddError(validation.Result{Level: validation.LevelCost, Message: err.Error(), Field: "cost_table"})
	} else {
		returns = finance.EstimateReturns(im, env.Market)
	}

	ev := feasibility.Evaluate(feasibility.Input{
		Massing:           m,
		Parking:           pk,
		Constraints:       *site.Constraints,
		Config:            cfg,
		LotAreaSqFt:       site.LotAreaSqFt,
		BuildableAreaSqFt: site.BuildableAreaSqFt,
		Prior:             prior,
	}, env.Policy)

	return &Result{
		ParcelIDs:       append([]string(nil), site.ParcelIDs...),
		LotAreaSqFt:     site.LotAreaSqFt,
		Configuration:   cfg,
		BuildingMassing: m,
		ParkingAnalysis: pk,
		FinancialImpact: im,
		Returns:         returns,
		IsFeasible:      ev.IsFeasible,
		Violations:      ev.Violations,
		Warnings:        ev.Warnings,
		Recommendations: ev.Recommendations,
		Classification:  ev.Classification,
	}, nil
}

func cloneConfig(cfg spec.Configuration) spec.Configuration {
	if cfg.UnitMix != nil {
		mix := make(spec.UnitMix, len(cfg.UnitMix))
		for u, f := range cfg.UnitMix {
			mix[u] = f
		}
		cfg.UnitMix = mix
	}
	return cfg
}
