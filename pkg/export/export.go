// Package export formats computed plans and scenarios. It never
// recomputes; every value comes from the result it is given.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/ChicagoDave/siteplanner/pkg/massing"
	"github.com/ChicagoDave/siteplanner/pkg/optimizer"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
)

// PlanGeoJSON returns the site footprint as a feature collection with the
// plan's headline metrics on each feature.
func PlanGeoJSON(site siteplan.Site, res *siteplan.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, poly := range site.Footprint {
		f := geojson.NewFeature(poly)
		f.ID = fmt.Sprintf("site-%d", i)
		f.Properties["parcel_ids"] = strings.Join(site.ParcelIDs, ",")
		f.Properties["crs"] = string(site.CRS)
		f.Properties["lot_area_sqft"] = site.LotAreaSqFt
		if res != nil {
			for k, v := range planProperties(res) {
				f.Properties[k] = v
			}
		}
		fc.Append(f)
	}
	return fc
}

func planProperties(res *siteplan.Result) geojson.Properties {
	m := res.BuildingMassing
	ca := m.ConstraintAnalysis
	return geojson.Properties{
		"stories":              m.Stories,
		"total_gsf":            m.TotalGSF,
		"far":                  m.FAR,
		"coverage_pct":         m.Coverage,
		"height_ft":            m.HeightFt,
		"far_utilization":      massing.CapForDisplay(ca.FARUtilization),
		"height_utilization":   massing.CapForDisplay(ca.HeightUtilization),
		"coverage_utilization": massing.CapForDisplay(ca.CoverageUtilization),
		"required_parking":     res.ParkingAnalysis.RequiredSpaces,
		"parking_type":         string(res.ParkingAnalysis.ParkingType),
		"net_impact":           res.FinancialImpact.NetImpact,
		"estimated_irr":        res.Returns.IRR,
		"is_feasible":          res.IsFeasible,
		"classification":       string(res.Classification),
		"violations":           len(res.Violations),
		"warnings":             len(res.Warnings),
	}
}

var scenarioHeader = []string{
	"rank", "scenario", "estimated_irr", "estimated_roi", "units", "required_parking",
	"far_utilization", "height_utilization", "coverage_utilization", "net_impact", "classification",
}

// ScenariosCSV writes one row per scenario in ranked order.
func ScenariosCSV(w io.Writer, scenarios []optimizer.Scenario) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scenarioHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, s := range scenarios {
		row := []string{
			strconv.Itoa(i + 1),
			s.ScenarioName,
			num(s.EstimatedIRR),
			num(s.EstimatedROI),
			strconv.Itoa(s.EstimatedUnits),
			strconv.Itoa(s.RequiredParking),
			num(s.FARUtilization),
			num(s.HeightUtilization),
			num(s.CoverageUtilization),
			num(s.NetImpact),
			string(s.Classification),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing scenario %s: %w", s.ScenarioName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// PlanCSV writes a plan as metric,value rows followed by its findings.
func PlanCSV(w io.Writer, res *siteplan.Result) error {
	m := res.BuildingMassing
	ca := m.ConstraintAnalysis
	p := res.ParkingAnalysis
	im := res.FinancialImpact
	rows := [][]string{
		{"metric", "value"},
		{"parcel_ids", strings.Join(res.ParcelIDs, ",")},
		{"lot_area_sqft", num(res.LotAreaSqFt)},
		{"target_units", strconv.Itoa(res.Configuration.TargetUnits)},
		{"building_type", string(res.Configuration.BuildingType)},
		{"stories", strconv.Itoa(m.Stories)},
		{"total_gsf", num(m.TotalGSF)},
		{"far", num(m.FAR)},
		{"coverage_pct", num(m.Coverage)},
		{"far_utilization", num(ca.FARUtilization)},
		{"height_utilization", num(ca.HeightUtilization)},
		{"coverage_utilization", num(ca.CoverageUtilization)},
		{"required_parking", strconv.Itoa(p.RequiredSpaces)},
		{"cost_per_space", num(p.CostPerSpace)},
		{"total_parking_cost", num(p.TotalParkingCost)},
		{"parking_efficiency", num(p.ParkingEfficiency)},
		{"additional_cost", num(im.AdditionalCost)},
		{"additional_revenue", num(im.AdditionalRevenue)},
		{"net_impact", num(im.NetImpact)},
		{"cost_per_unit", num(im.CostPerUnit)},
		{"revenue_per_unit", num(im.RevenuePerUnit)},
		{"estimated_irr", num(res.Returns.IRR)},
		{"estimated_roi", num(res.Returns.ROI)},
		{"is_feasible", strconv.FormatBool(res.IsFeasible)},
		{"classification", string(res.Classification)},
	}
	for _, v := range res.Violations {
		rows = append(rows, []string{"violation", v})
	}
	for _, v := range res.Warnings {
		rows = append(rows, []string{"warning", v})
	}
	for _, v := range res.Recommendations {
		rows = append(rows, []string{"recommendation", v})
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing plan: %w", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
