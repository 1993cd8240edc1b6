package spec

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Project is the top-level description of a site-planning project.
type Project struct {
	SpecVersion string                  `yaml:"spec_version" json:"spec_version"`
	Name        string                  `yaml:"name" json:"name"`
	CRS         string                  `yaml:"crs" json:"crs"`
	Parcels     []ParcelDef             `yaml:"parcels" json:"parcels"`
	Zoning      map[string]ZoningRecord `yaml:"zoning" json:"zoning"`
	Plan        Configuration           `yaml:"configuration" json:"configuration"`
	Market      MarketAssumptions       `yaml:"market" json:"market"`
	CostTable   string                  `yaml:"cost_table" json:"cost_table,omitempty"`
	Optimizer   OptimizerDef            `yaml:"optimizer" json:"optimizer"`
	Feasibility FeasibilityDef          `yaml:"feasibility" json:"feasibility"`
}

// ParcelByID returns the parcel with the given id, or nil if not found.
func (p *Project) ParcelByID(id string) *ParcelDef {
	for i := range p.Parcels {
		if p.Parcels[i].ID == id {
			return &p.Parcels[i]
		}
	}
	return nil
}

// ParcelDef is one parcel as recorded in the project file. Geometry holds a
// GeoJSON Polygon or MultiPolygon.
type ParcelDef struct {
	ID       string          `yaml:"id" json:"id"`
	ZoneCode string          `yaml:"zone_code" json:"zone_code"`
	Geometry json.RawMessage `yaml:"-" json:"geometry"`
	Selected bool            `yaml:"selected" json:"selected"`
}

// ZoningRecord is a zoning district as stored by the parcel/zoning catalog.
// Nil numeric fields mean the jurisdiction records no limit.
type ZoningRecord struct {
	ZoneCode            string     `yaml:"zone_code" json:"zone_code"`
	MaxFAR              *float64   `yaml:"max_far" json:"max_far,omitempty"`
	MaxHeightFt         *float64   `yaml:"max_height_ft" json:"max_height_ft,omitempty"`
	MaxCoveragePct      *float64   `yaml:"max_coverage_pct" json:"max_coverage_pct,omitempty"`
	MaxDensityDUPerAcre *float64   `yaml:"max_density_du_per_acre" json:"max_density_du_per_acre,omitempty"`
	Setbacks            SetbackDef `yaml:"setbacks" json:"setbacks"`
	PermittedUses       []string   `yaml:"permitted_uses" json:"permitted_uses,omitempty"`
}

// SetbackDef holds recorded setbacks in feet.
type SetbackDef struct {
	Front *float64 `yaml:"front" json:"front,omitempty"`
	Side  *float64 `yaml:"side" json:"side,omitempty"`
	Rear  *float64 `yaml:"rear" json:"rear,omitempty"`
}

// BuildingType is the closed set of building programs.
type BuildingType string

const (
	Residential BuildingType = "residential"
	Commercial  BuildingType = "commercial"
	MixedUse    BuildingType = "mixed-use"
)

// BuildingTypes lists every valid building type.
var BuildingTypes = []BuildingType{Residential, Commercial, MixedUse}

// Valid reports whether b is a known building type.
func (b BuildingType) Valid() bool {
	switch b {
	case Residential, Commercial, MixedUse:
		return true
	}
	return false
}

// ParkingType is the closed set of parking structures.
type ParkingType string

const (
	Surface     ParkingType = "surface"
	Garage      ParkingType = "garage"
	Underground ParkingType = "underground"
)

// ParkingTypes lists every valid parking type, cheapest first.
var ParkingTypes = []ParkingType{Surface, Garage, Underground}

// Valid reports whether p is a known parking type.
func (p ParkingType) Valid() bool {
	switch p {
	case Surface, Garage, Underground:
		return true
	}
	return false
}

// UnitType labels a dwelling unit type in a unit mix.
type UnitType string

const (
	Studio       UnitType = "studio"
	OneBedroom   UnitType = "oneBedroom"
	TwoBedroom   UnitType = "twoBedroom"
	ThreeBedroom UnitType = "threeBedroom"
)

// UnitTypes lists the known unit types, smallest first.
var UnitTypes = []UnitType{Studio, OneBedroom, TwoBedroom, ThreeBedroom}

// Valid reports whether u is a known unit type.
func (u UnitType) Valid() bool {
	switch u {
	case Studio, OneBedroom, TwoBedroom, ThreeBedroom:
		return true
	}
	return false
}

// UnitMix maps unit types to the fraction of units of that type.
type UnitMix map[UnitType]float64

// Types returns the unit types in the mix in a stable order: known types in
// size order, then unknown labels alphabetically.
func (m UnitMix) Types() []UnitType {
	out := make([]UnitType, 0, len(m))
	for _, u := range UnitTypes {
		if _, ok := m[u]; ok {
			out = append(out, u)
		}
	}
	var unknown []UnitType
	for u := range m {
		if !u.Valid() {
			unknown = append(unknown, u)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(out, unknown...)
}

// Fractions returns the fractions in Types order.
func (m UnitMix) Fractions() []float64 {
	types := m.Types()
	out := make([]float64, len(types))
	for i, u := range types {
		out[i] = m[u]
	}
	return out
}

// Configuration is a proposed development program for one site.
type Configuration struct {
	TargetUnits      int          `yaml:"target_units" json:"target_units"`
	UnitMix          UnitMix      `yaml:"unit_mix" json:"unit_mix"`
	BuildingType     BuildingType `yaml:"building_type" json:"building_type"`
	ParkingType      ParkingType  `yaml:"parking_type" json:"parking_type"`
	AmenitySpaceSqFt float64      `yaml:"amenity_space_sqft" json:"amenity_space_sqft"`
	OpenSpaceRatio   float64      `yaml:"open_space_ratio" json:"open_space_ratio"`
}

// String returns a compact description used in logs and scenario labels.
func (c Configuration) String() string {
	return fmt.Sprintf("%d units %s/%s open=%.2f", c.TargetUnits, c.BuildingType, c.ParkingType, c.OpenSpaceRatio)
}

// RevenueStrategy selects how revenue is realized.
type RevenueStrategy string

const (
	StrategyAuto   RevenueStrategy = "auto"
	StrategySale   RevenueStrategy = "sale"
	StrategyRental RevenueStrategy = "rental"
)

// MarketAssumptions are the revenue-side inputs of the financial model.
type MarketAssumptions struct {
	Strategy              RevenueStrategy `yaml:"strategy" json:"strategy"`
	SalePricePerSqFt      float64         `yaml:"sale_price_per_sqft" json:"sale_price_per_sqft"`
	AnnualRentPerSqFt     float64         `yaml:"annual_rent_per_sqft" json:"annual_rent_per_sqft"`
	CapRate               float64         `yaml:"cap_rate" json:"cap_rate"`
	VacancyRate           float64         `yaml:"vacancy_rate" json:"vacancy_rate"`
	OperatingExpenseRatio float64         `yaml:"operating_expense_ratio" json:"operating_expense_ratio"`
	BuildYears            int             `yaml:"build_years" json:"build_years"`
	HoldYears             int             `yaml:"hold_years" json:"hold_years"`
	DebtTermYears         int             `yaml:"debt_term_years" json:"debt_term_years"`
	InterestRate          float64         `yaml:"interest_rate" json:"interest_rate"`
}

// DefaultMarket returns baseline market assumptions for a mid-size metro.
func DefaultMarket() MarketAssumptions {
	return MarketAssumptions{
		Strategy:              StrategyAuto,
		SalePricePerSqFt:      425,
		AnnualRentPerSqFt:     32,
		CapRate:               0.055,
		VacancyRate:           0.05,
		OperatingExpenseRatio: 0.35,
		BuildYears:            2,
		HoldYears:             5,
		DebtTermYears:         30,
		InterestRate:          0.065,
	}
}

// WithDefaults fills zero-valued fields from DefaultMarket.
func (m MarketAssumptions) WithDefaults() MarketAssumptions {
	d := DefaultMarket()
	if m.Strategy == "" {
		m.Strategy = d.Strategy
	}
	if m.SalePricePerSqFt == 0 {
		m.SalePricePerSqFt = d.SalePricePerSqFt
	}
	if m.AnnualRentPerSqFt == 0 {
		m.AnnualRentPerSqFt = d.AnnualRentPerSqFt
	}
	if m.CapRate == 0 {
		m.CapRate = d.CapRate
	}
	if m.VacancyRate == 0 {
		m.VacancyRate = d.VacancyRate
	}
	if m.OperatingExpenseRatio == 0 {
		m.OperatingExpenseRatio = d.OperatingExpenseRatio
	}
	if m.BuildYears == 0 {
		m.BuildYears = d.BuildYears
	}
	if m.HoldYears == 0 {
		m.HoldYears = d.HoldYears
	}
	if m.DebtTermYears == 0 {
		m.DebtTermYears = d.DebtTermYears
	}
	if m.InterestRate == 0 {
		m.InterestRate = d.InterestRate
	}
	return m
}

// OptimizerDef configures the yield optimizer from the project file.
type OptimizerDef struct {
	TopN    int `yaml:"top_n" json:"top_n"`
	Workers int `yaml:"workers" json:"workers"`
}

// FeasibilityDef tunes the advisory thresholds for the project's
// jurisdiction. Zero values keep the defaults.
type FeasibilityDef struct {
	NearLimitPct float64 `yaml:"near_limit_pct" json:"near_limit_pct,omitempty"`
}
