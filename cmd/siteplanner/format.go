package main

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChicagoDave/siteplanner/pkg/assemblage"
	"github.com/ChicagoDave/siteplanner/pkg/cost"
	"github.com/ChicagoDave/siteplanner/pkg/massing"
	"github.com/ChicagoDave/siteplanner/pkg/optimizer"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/validation"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

func printValidationReport(r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Printf("ERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("  [%s] %s\n", e.Level, e.Message)
			if e.Field != "" && e.ActualValue != nil {
				fmt.Printf("    -> %s = %v\n", e.Field, e.ActualValue)
			}
			if e.Expected != "" {
				fmt.Printf("    expected: %s\n", e.Expected)
			}
			if e.ConflictWith != "" {
				fmt.Printf("    conflicts with: %s\n", e.ConflictWith)
			}
			for _, s := range e.Suggestions {
				fmt.Printf("    * %s\n", s)
			}
		}
		fmt.Println()
	}

	if len(r.Warnings) > 0 {
		fmt.Printf("WARNINGS (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  [%s] %s\n", w.Level, w.Message)
			if w.Field != "" && w.ActualValue != nil {
				fmt.Printf("    -> %s = %v\n", w.Field, w.ActualValue)
			}
			if w.Expected != "" {
				fmt.Printf("    expected: %s\n", w.Expected)
			}
			for _, s := range w.Suggestions {
				fmt.Printf("    * %s\n", s)
			}
		}
		fmt.Println()
	}

	if len(r.Info) > 0 {
		fmt.Printf("INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Printf("  [%s] %s\n", i.Level, i.Message)
		}
		fmt.Println()
	}

	if r.Valid {
		fmt.Printf("Result: VALID (%s)\n", r.Summary)
	} else {
		fmt.Printf("Result: INVALID (%s)\n", r.Summary)
	}
}

func printSiteHeader(site siteplan.Site) {
	shape := "contiguous"
	if !site.Contiguous {
		shape = "non-contiguous"
	}
	fmt.Printf("Site: %s (%.2f acres, %s sq ft, %s)\n",
		strings.Join(site.ParcelIDs, ", "), site.Acres, formatInt(site.LotAreaSqFt), shape)
	if site.Constraints != nil {
		fmt.Printf("Zoning: %s\n", describeConstraints(*site.Constraints))
	}
	fmt.Println()
}

func printPlan(site siteplan.Site, res *siteplan.Result) {
	printSiteHeader(site)

	m := res.BuildingMassing
	ca := m.ConstraintAnalysis
	fmt.Println("Massing")
	fmt.Println("-------")
	fmt.Printf("  Program:                %s\n", res.Configuration)
	fmt.Printf("  Stories:                %d (%.0f ft)\n", m.Stories, m.HeightFt)
	fmt.Printf("  Gross floor area:       %s sq ft\n", formatInt(m.TotalGSF))
	fmt.Printf("  Footprint:              %s sq ft\n", formatInt(m.FootprintSqFt))
	fmt.Printf("  FAR:                    %.2f  (%s of limit)\n", m.FAR, formatUtilization(ca.FARUtilization))
	fmt.Printf("  Height:                 %s of limit\n", formatUtilization(ca.HeightUtilization))
	fmt.Printf("  Coverage:               %.1f%%  (%s of limit)\n", m.Coverage, formatUtilization(ca.CoverageUtilization))
	fmt.Printf("  Density:                %.1f du/acre  (%s of limit)\n", m.DensityDUPerAcre, formatUtilization(ca.DensityUtilization))
	fmt.Println()

	pk := res.ParkingAnalysis
	fmt.Println("Parking")
	fmt.Println("-------")
	fmt.Printf("  Type:                   %s\n", pk.ParkingType)
	fmt.Printf("  Required spaces:        %d\n", pk.RequiredSpaces)
	fmt.Printf("  Cost per space:         $%s\n", formatMoney(pk.CostPerSpace))
	fmt.Printf("  Total parking cost:     $%s\n", formatMoney(pk.TotalParkingCost))
	fmt.Println()

	im := res.FinancialImpact
	fmt.Printf("Financials (%s)\n", im.Strategy)
	fmt.Println("----------")
	fmt.Printf("  Construction:           $%s\n", formatMoney(im.ConstructionCost))
	fmt.Printf("  Parking:                $%s\n", formatMoney(im.ParkingCost))
	fmt.Printf("  Site work:              $%s\n", formatMoney(im.SiteWorkCost))
	fmt.Printf("  Total cost:             $%s\n", formatMoney(im.AdditionalCost))
	fmt.Printf("  Revenue:                $%s\n", formatMoney(im.AdditionalRevenue))
	fmt.Printf("  Net impact:             $%s\n", formatMoney(im.NetImpact))
	fmt.Printf("  Cost per unit:          $%s\n", formatMoney(im.CostPerUnit))
	fmt.Printf("  Annual debt service:    $%s\n", formatMoney(im.AnnualDebtService))
	fmt.Printf("  Break-even rent/month:  $%s per unit\n", formatMoney(im.BreakEvenMonthlyRentPerUnit))
	fmt.Printf("  Estimated IRR:          %s\n", formatPct(res.Returns.IRR))
	fmt.Printf("  Estimated ROI:          %s\n", formatPct(res.Returns.ROI))
	fmt.Println()

	printFindings("VIOLATIONS", res.Violations)
	printFindings("WARNINGS", res.Warnings)
	printFindings("RECOMMENDATIONS", res.Recommendations)

	verdict := "FEASIBLE"
	if !res.IsFeasible {
		verdict = "NOT FEASIBLE"
	}
	fmt.Printf("Result: %s (%s)\n", verdict, res.Classification)
}

func printFindings(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", title, len(items))
	for _, s := range items {
		fmt.Printf("  - %s\n", s)
	}
	fmt.Println()
}

func printScenarios(site siteplan.Site, scenarios []optimizer.Scenario) {
	printSiteHeader(site)
	if len(scenarios) == 0 {
		fmt.Println("No feasible scenarios.")
		return
	}

	fmt.Printf("%-4s %-44s %6s %7s %8s %8s %6s %6s %6s %-10s\n",
		"#", "Scenario", "Units", "Spaces", "IRR", "ROI", "FAR", "Height", "Cover", "Class")
	fmt.Printf("%-4s %-44s %6s %7s %8s %8s %6s %6s %6s %-10s\n",
		"----", strings.Repeat("-", 44), "------", "-------", "--------", "--------", "------", "------", "------", "----------")
	for i, s := range scenarios {
		fmt.Printf("%-4d %-44s %6d %7d %8s %8s %6s %6s %6s %-10s\n",
			i+1, s.ScenarioName, s.EstimatedUnits, s.RequiredParking,
			formatPct(s.EstimatedIRR), formatPct(s.EstimatedROI),
			formatUtilization(s.FARUtilization), formatUtilization(s.HeightUtilization),
			formatUtilization(s.CoverageUtilization), s.Classification)
	}
}

func printAssemblage(a assemblage.Site) {
	fmt.Println("Assemblage")
	fmt.Println("==========")
	ids := append([]string(nil), a.MemberIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  %-20s %12s sq ft\n", id, formatInt(a.MemberAreas[id]))
	}
	fmt.Println()
	fmt.Printf("  Unified area:           %s sq ft (%.2f acres)\n", formatInt(a.AreaSqFt), a.Acres)
	fmt.Printf("  Perimeter:              %s ft\n", formatInt(a.PerimeterFt))
	if a.OverlapSqFt > 0 {
		fmt.Printf("  Overlap removed:        %s sq ft\n", formatInt(a.OverlapSqFt))
	}
	fmt.Printf("  Contiguous:             %t (%d footprint parts)\n", a.Contiguous, len(a.Footprint))
	fmt.Printf("  Combined zoning:        %s\n", describeConstraints(a.Constraints))
}

func printCostTable(t cost.Table) {
	fmt.Printf("Cost table: %s\n", t.Name())
	fmt.Println()
	fmt.Printf("%-28s %14s\n", "Item", "Unit cost")
	fmt.Printf("%-28s %14s\n", strings.Repeat("-", 28), strings.Repeat("-", 14))
	for _, it := range t.Items() {
		fmt.Printf("%-28s %14s\n", it.Code, "$"+formatMoney(it.UnitCost))
	}
}

func describeConstraints(c zoning.Constraints) string {
	limit := func(v float64, unit string) string {
		if math.IsInf(v, 1) {
			return "none"
		}
		return fmt.Sprintf("%g%s", v, unit)
	}
	uses := "any"
	if len(c.PermittedUses) > 0 {
		names := make([]string, len(c.PermittedUses))
		for i, u := range c.PermittedUses {
			names[i] = string(u)
		}
		uses = strings.Join(names, ", ")
	}
	return fmt.Sprintf("FAR %s, height %s, coverage %s, density %s, setbacks %g/%g/%g ft, uses %s",
		limit(c.MaxFAR, ""), limit(c.MaxHeightFt, " ft"), limit(c.MaxCoveragePct, "%"),
		limit(c.MaxDensityDUPerAcre, " du/ac"), c.Setbacks.Front, c.Setbacks.Side, c.Setbacks.Rear, uses)
}

func formatUtilization(pct float64) string {
	return fmt.Sprintf("%.0f%%", massing.CapForDisplay(pct))
}

func formatPct(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

func formatInt(v float64) string {
	s := fmt.Sprintf("%.0f", math.Abs(v))
	var b strings.Builder
	if v < 0 && s != "0" {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatMoney rounds before picking a unit so 999,600 reads 1.00M, not 1000K.
func formatMoney(v float64) string {
	if v < 0 {
		if s := formatMoney(-v); s != "0" {
			return "-" + s
		}
		return "0"
	}
	if b := math.Round(v/1e7) / 100; b >= 1 {
		return fmt.Sprintf("%.2fB", b)
	}
	if m := math.Round(v/1e4) / 100; m >= 1 {
		return fmt.Sprintf("%.2fM", m)
	}
	if math.Round(v) >= 1_000 {
		return fmt.Sprintf("%.0fK", math.Round(v/1e3))
	}
	return fmt.Sprintf("%.0f", math.Round(v))
}
