package optimizer

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/massing"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

func f(v float64) *float64 { return &v }

func rect(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func exampleZoning() *spec.ZoningRecord {
	return &spec.ZoningRecord{
		ZoneCode:       "EX",
		MaxFAR:         f(2.0),
		MaxHeightFt:    f(60),
		MaxCoveragePct: f(60),
	}
}

func oneAcre() []SelectedParcel {
	return []SelectedParcel{{ID: "lot-1", Geometry: rect(0, 0, 220, 198), Zoning: exampleZoning()}}
}

func quietOptions() Options {
	return Options{
		CRS:    geo.ProjectedFeet,
		Env:    siteplan.DefaultEnvironment(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func resolve(t *testing.T, parcels []SelectedParcel) siteplan.Site {
	t.Helper()
	site, err := siteplan.Resolve(parcels, geo.ProjectedFeet)
	require.NoError(t, err)
	return site
}

func TestGridSize(t *testing.T) {
	site := resolve(t, oneAcre())
	grid := Grid(site, spec.Configuration{}, massing.DefaultAssumptions())
	assert.Len(t, grid, len(MixSkews)*len(DensityTiers)*len(spec.ParkingTypes)*len(OpenSpaceRatios))

	names := make(map[string]bool)
	for _, c := range grid {
		assert.False(t, names[c.Name], "duplicate scenario name %s", c.Name)
		names[c.Name] = true
		assert.Equal(t, spec.Residential, c.Config.BuildingType)
		assert.Positive(t, c.Config.TargetUnits)
	}
}

func TestGridUsesBase(t *testing.T) {
	site := resolve(t, oneAcre())
	base := spec.Configuration{BuildingType: spec.MixedUse, AmenitySpaceSqFt: 1500}
	for _, c := range Grid(site, base, massing.DefaultAssumptions()) {
		assert.Equal(t, spec.MixedUse, c.Config.BuildingType)
		assert.Equal(t, 1500.0, c.Config.AmenitySpaceSqFt)
	}
}

func TestCapacityUnits(t *testing.T) {
	site := resolve(t, oneAcre())
	a := massing.DefaultAssumptions()
	mix := MixSkews[1].Mix // balanced, 855 sq ft average

	// FAR binds: 2 * 43560 / 855 = 101.9.
	assert.Equal(t, 101, CapacityUnits(site, mix, spec.Residential, 0.1, a))

	dense := []SelectedParcel{{ID: "lot-1", Geometry: rect(0, 0, 220, 198), Zoning: &spec.ZoningRecord{
		MaxFAR: f(2.0), MaxHeightFt: f(60), MaxCoveragePct: f(60), MaxDensityDUPerAcre: f(40),
	}}}
	assert.Equal(t, 40, CapacityUnits(resolve(t, dense), mix, spec.Residential, 0.1, a))

	var empty siteplan.Site
	assert.Zero(t, CapacityUnits(empty, mix, spec.Residential, 0.1, a))
}

func TestOptimizeReturnsFeasibleRanked(t *testing.T) {
	opts := quietOptions()
	scenarios, err := Optimize(oneAcre(), opts)
	require.NoError(t, err)
	require.Len(t, scenarios, DefaultTopN)

	site := resolve(t, oneAcre())
	for i, s := range scenarios {
		res, err := siteplan.Generate(site, s.Configuration, siteplan.DefaultEnvironment())
		require.NoError(t, err)
		assert.True(t, res.IsFeasible, "scenario %s is infeasible: %v", s.ScenarioName, res.Violations)
		assert.Equal(t, s.EstimatedUnits, s.Configuration.TargetUnits)
		if i > 0 {
			prev := scenarios[i-1]
			assert.GreaterOrEqual(t, prev.EstimatedIRR, s.EstimatedIRR)
			if prev.EstimatedIRR == s.EstimatedIRR {
				assert.GreaterOrEqual(t, prev.EstimatedROI, s.EstimatedROI)
			}
		}
	}
}

func TestOptimizeTopN(t *testing.T) {
	opts := quietOptions()
	opts.TopN = -1
	all, err := Optimize(oneAcre(), opts)
	require.NoError(t, err)
	assert.Greater(t, len(all), DefaultTopN)
	assert.LessOrEqual(t, len(all), 81)

	opts.TopN = 5
	five, err := Optimize(oneAcre(), opts)
	require.NoError(t, err)
	assert.Equal(t, all[:5], five)
}

func TestOptimizeDeterministicAcrossWorkers(t *testing.T) {
	serial := quietOptions()
	serial.TopN = -1
	serial.Workers = 1
	parallel := serial
	parallel.Workers = 16

	a, err := Optimize(oneAcre(), serial)
	require.NoError(t, err)
	b, err := Optimize(oneAcre(), parallel)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOptimizeExcludesInfeasible(t *testing.T) {
	parcels := oneAcre()
	parcels[0].Zoning.PermittedUses = []string{"commercial"}
	scenarios, err := Optimize(parcels, quietOptions())
	require.NoError(t, err)
	assert.Empty(t, scenarios, "residential candidates are not permitted")
}

func TestOptimizeAssemblage(t *testing.T) {
	parcels := []SelectedParcel{
		{ID: "a", Geometry: rect(0, 0, 220, 198), Zoning: &spec.ZoningRecord{ZoneCode: "A", MaxFAR: f(3.0), MaxHeightFt: f(75)}},
		{ID: "b", Geometry: rect(220, 0, 440, 198), Zoning: &spec.ZoningRecord{ZoneCode: "B", MaxFAR: f(1.5), MaxHeightFt: f(60)}},
	}
	scenarios, err := Optimize(parcels, quietOptions())
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)
	for _, s := range scenarios {
		assert.LessOrEqual(t, s.FARUtilization, 100.0)
		// Capacity is bounded by the combined FAR of 1.5 over two acres.
		assert.LessOrEqual(t, float64(s.EstimatedUnits)*550, 1.5*87120+1e-6)
	}
}

func TestOptimizeEngineUnavailable(t *testing.T) {
	parcels := oneAcre()
	parcels[0].Zoning = nil
	_, err := Optimize(parcels, quietOptions())
	assert.True(t, errors.Is(err, siteplan.ErrEngineUnavailable), "err = %v", err)
}

func TestRankTieBreakers(t *testing.T) {
	scenarios := []Scenario{
		{ScenarioName: "d", EstimatedIRR: 0.10, EstimatedROI: 0.2, RequiredParking: 30},
		{ScenarioName: "c", EstimatedIRR: 0.10, EstimatedROI: 0.2, RequiredParking: 20},
		{ScenarioName: "b", EstimatedIRR: 0.10, EstimatedROI: 0.3, RequiredParking: 40},
		{ScenarioName: "a", EstimatedIRR: 0.12, EstimatedROI: 0.1, RequiredParking: 50},
		{ScenarioName: "e", EstimatedIRR: 0.10, EstimatedROI: 0.2, RequiredParking: 20},
	}
	ranked := Rank(scenarios, -1)
	var names []string
	for _, s := range ranked {
		names = append(names, s.ScenarioName)
	}
	assert.Equal(t, []string{"a", "b", "c", "e", "d"}, names)
	assert.Len(t, Rank(ranked, 2), 2)
}
