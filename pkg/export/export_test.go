package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/optimizer"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

func f(v float64) *float64 { return &v }

func plan(t *testing.T) (siteplan.Site, *siteplan.Result) {
	t.Helper()
	site, err := siteplan.Resolve([]siteplan.Parcel{{
		ID:       "lot-1",
		Geometry: orb.Polygon{{{0, 0}, {220, 0}, {220, 198}, {0, 198}, {0, 0}}},
		Zoning:   &spec.ZoningRecord{ZoneCode: "EX", MaxFAR: f(0.3), MaxHeightFt: f(60)},
	}}, geo.ProjectedFeet)
	require.NoError(t, err)
	cfg := spec.Configuration{
		TargetUnits:    20,
		UnitMix:        spec.UnitMix{spec.Studio: 0.2, spec.OneBedroom: 0.4, spec.TwoBedroom: 0.3, spec.ThreeBedroom: 0.1},
		BuildingType:   spec.Residential,
		ParkingType:    spec.Garage,
		OpenSpaceRatio: 0.2,
	}
	res, err := siteplan.Generate(site, cfg, siteplan.DefaultEnvironment())
	require.NoError(t, err)
	return site, res
}

func TestPlanGeoJSON(t *testing.T) {
	site, res := plan(t)
	fc := PlanGeoJSON(site, res)
	require.Len(t, fc.Features, 1)

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	back, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)

	props := back.Features[0].Properties
	assert.Equal(t, "lot-1", props.MustString("parcel_ids"))
	assert.InDelta(t, res.BuildingMassing.TotalGSF, props.MustFloat64("total_gsf"), 1e-9)
	assert.Equal(t, res.IsFeasible, props.MustBool("is_feasible"))
	// FAR is over the limit; exported utilization is capped for display.
	assert.Greater(t, res.BuildingMassing.ConstraintAnalysis.FARUtilization, 100.0)
	assert.Equal(t, 100.0, props.MustFloat64("far_utilization"))
	_, ok := back.Features[0].Geometry.(orb.Polygon)
	assert.True(t, ok)
}

func TestPlanGeoJSONWithoutResult(t *testing.T) {
	site, _ := plan(t)
	fc := PlanGeoJSON(site, nil)
	require.Len(t, fc.Features, 1)
	_, has := fc.Features[0].Properties["total_gsf"]
	assert.False(t, has)
}

func TestPlanCSV(t *testing.T) {
	_, res := plan(t)
	var buf bytes.Buffer
	require.NoError(t, PlanCSV(&buf, res))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "value"}, rows[0])

	values := make(map[string]string)
	violations := 0
	for _, r := range rows[1:] {
		if r[0] == "violation" {
			violations++
			continue
		}
		values[r[0]] = r[1]
	}
	assert.Equal(t, "false", values["is_feasible"])
	assert.Equal(t, "infeasible", values["classification"])
	assert.Equal(t, len(res.Violations), violations)
	assert.Equal(t, num(res.FinancialImpact.NetImpact), values["net_impact"])
}

func TestScenariosCSV(t *testing.T) {
	scenarios := []optimizer.Scenario{
		{ScenarioName: "family/80%-density/garage/open-20%", EstimatedIRR: 0.21, EstimatedROI: 0.4, EstimatedUnits: 64, RequiredParking: 100, Classification: "good"},
		{ScenarioName: "balanced/60%-density/surface/open-10%", EstimatedIRR: 0.18, EstimatedROI: 0.3, EstimatedUnits: 60, RequiredParking: 81, Classification: "excellent"},
	}
	var buf bytes.Buffer
	require.NoError(t, ScenariosCSV(&buf, scenarios))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "rank,scenario,estimated_irr"))
	assert.True(t, strings.HasPrefix(lines[1], "1,family/80%-density/garage/open-20%,0.21,0.4,64,100"))
	assert.True(t, strings.HasPrefix(lines[2], "2,balanced"))
}

func TestScenariosCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ScenariosCSV(&buf, nil))
	assert.Equal(t, strings.Join(scenarioHeader, ",")+"\n", buf.String())
}
