// Package finance prices a massing and estimates its returns.
package finance

import (
	"fmt"

	"github.com/ChicagoDave/siteplanner/pkg/cost"
	"github.com/ChicagoDave/siteplanner/pkg/massing"
	"github.com/ChicagoDave/siteplanner/pkg/parking"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// Inputs are the physical outputs the financial model prices.
type Inputs struct {
	Massing      massing.Massing
	Parking      parking.Analysis
	BuildingType spec.BuildingType
	TargetUnits  int
	LotAreaSqFt  float64
}

// Pricing carries the injected market and cost collaborators.
type Pricing struct {
	Market   spec.MarketAssumptions
	Costs    cost.Table
	SiteWork cost.SiteWorkModel
}

// Impact is the development cost and revenue of one configuration.
type Impact struct {
	Strategy          spec.RevenueStrategy `json:"strategy"`
	ConstructionCost  float64              `json:"construction_cost"`
	ParkingCost       float64              `json:"parking_cost"`
	SiteWorkCost      float64              `json:"site_work_cost"`
	AdditionalCost    float64              `json:"additional_cost"`
	AdditionalRevenue float64              `json:"additional_revenue"`
	NetImpact         float64              `json:"net_impact"`
	CostPerUnit       float64              `json:"cost_per_unit"`
	RevenuePerUnit    float64              `json:"revenue_per_unit"`
	AnnualNOI         float64              `json:"annual_noi"`

	AnnualDebtService           float64 `json:"annual_debt_service"`
	BreakEvenMonthlyRentPerUnit float64 `json:"break_even_monthly_rent_per_unit"`
}

// ResolveStrategy picks the revenue strategy for a building type. Auto
// sells residential and leases commercial and mixed-use.
func ResolveStrategy(s spec.RevenueStrategy, bt spec.BuildingType) spec.RevenueStrategy {
	switch s {
	case spec.StrategySale, spec.StrategyRental:
		return s
	}
	if bt == spec.Residential {
		return spec.StrategySale
	}
	return spec.StrategyRental
}

// ComputeImpact prices construction, parking and site work and values the
// completed building. NetImpact is revenue minus cost, computed once from
// the two stored totals.
func ComputeImpact(in Inputs, pr Pricing) (Impact, error) {
	market := pr.Market.WithDefaults()
	gsf := in.Massing.TotalGSF

	perGSF, err := pr.Costs.Lookup(cost.ConstructionItem(in.BuildingType))
	if err != nil {
		return Impact{}, fmt.Errorf("pricing %s construction: %w", in.BuildingType, err)
	}
	siteWork := pr.SiteWork
	if siteWork == nil {
		siteWork = cost.PerSqFtSiteWork{}
	}
	siteCost, err := siteWork.SiteWorkCost(in.LotAreaSqFt, pr.Costs)
	if err != nil {
		return Impact{}, fmt.Errorf("pricing site work: %w", err)
	}

	im := Impact{
		Strategy:         ResolveStrategy(market.Strategy, in.BuildingType),
		ConstructionCost: perGSF * gsf,
		ParkingCost:      in.Parking.TotalParkingCost,
		SiteWorkCost:     siteCost,
	}
	im.AdditionalCost = im.ConstructionCost + im.ParkingCost + im.SiteWorkCost

	switch im.Strategy {
	case spec.StrategySale:
		im.AdditionalRevenue = market.SalePricePerSqFt * gsf
	default:
		im.AnnualNOI = market.AnnualRentPerSqFt * gsf
		im.AdditionalRevenue = im.AnnualNOI / market.CapRate
	}
	im.NetImpact = im.AdditionalRevenue - im.AdditionalCost

	if in.TargetUnits > 0 {
		units := float64(in.TargetUnits)
		im.CostPerUnit = im.AdditionalCost / units
		im.RevenuePerUnit = im.AdditionalRevenue / units
	}

	im.AnnualDebtService = cost.AnnualDebtService(im.AdditionalCost, market.InterestRate, market.DebtTermYears)
	im.BreakEvenMonthlyRentPerUnit = breakEvenRent(im.AnnualDebtService, in.TargetUnits, market)
	return im, nil
}

// breakEvenRent is the monthly gross rent per unit that covers debt
// service after vacancy and operating expenses.
func breakEvenRent(annualDebt float64, units int, m spec.MarketAssumptions) float64 {
	if units <= 0 {
		return 0
	}
	retained := (1 - m.VacancyRate) * (1 - m.OperatingExpenseRatio)
	if retained <= 0 {
		return 0
	}
	return annualDebt / retained / float64(units) / 12.0
}
