package massing

import (
	"math"
	"testing"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

const acre = 43560.0

func f(v float64) *float64 { return &v }

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func exampleConstraints(t *testing.T) zoning.Constraints {
	t.Helper()
	c, err := zoning.Normalize(spec.ZoningRecord{
		ZoneCode:       "EX",
		MaxFAR:         f(2.0),
		MaxHeightFt:    f(60),
		MaxCoveragePct: f(60),
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return c
}

func exampleConfig() spec.Configuration {
	return spec.Configuration{
		TargetUnits: 20,
		UnitMix: spec.UnitMix{
			spec.Studio:       0.2,
			spec.OneBedroom:   0.4,
			spec.TwoBedroom:   0.3,
			spec.ThreeBedroom: 0.1,
		},
		BuildingType: spec.Residential,
		ParkingType:  spec.Surface,
	}
}

func TestAverageUnitSize(t *testing.T) {
	got := AverageUnitSize(exampleConfig().UnitMix, DefaultAssumptions())
	// 0.2*550 + 0.4*750 + 0.3*1050 + 0.1*1300
	if !approxEqual(got, 855, 1e-9) {
		t.Errorf("avg unit size = %v, want 855", got)
	}
	if got := AverageUnitSize(nil, DefaultAssumptions()); got != 0 {
		t.Errorf("avg unit size of empty mix = %v, want 0", got)
	}
}

func TestComputeOneAcreExample(t *testing.T) {
	m := Compute(acre, exampleConstraints(t), exampleConfig(), DefaultAssumptions())

	wantGSF := 20 * 855.0
	if !approxEqual(m.TotalGSF, wantGSF, 1e-6) {
		t.Errorf("total GSF = %v, want %v", m.TotalGSF, wantGSF)
	}
	wantFAR := wantGSF / acre / 2.0 * 100
	if !approxEqual(m.ConstraintAnalysis.FARUtilization, wantFAR, 1e-9) {
		t.Errorf("FAR utilization = %v, want %v", m.ConstraintAnalysis.FARUtilization, wantFAR)
	}
	if m.Stories != 1 {
		t.Errorf("stories = %d, want 1", m.Stories)
	}
	if !approxEqual(m.ConstraintAnalysis.HeightUtilization, 10.0/60*100, 1e-9) {
		t.Errorf("height utilization = %v", m.ConstraintAnalysis.HeightUtilization)
	}
	if !approxEqual(m.Coverage, wantGSF/acre*100, 1e-9) {
		t.Errorf("coverage = %v", m.Coverage)
	}
	if m.ConstraintAnalysis.DensityUtilization != 0 {
		t.Errorf("density utilization with no density limit = %v, want 0", m.ConstraintAnalysis.DensityUtilization)
	}
	if !approxEqual(m.DensityDUPerAcre, 20, 1e-9) {
		t.Errorf("density = %v, want 20", m.DensityDUPerAcre)
	}
}

func TestComputeStoriesSmallestFittingCoverage(t *testing.T) {
	cfg := exampleConfig()
	cfg.TargetUnits = 100 // 85,500 GSF
	m := Compute(acre, exampleConstraints(t), cfg, DefaultAssumptions())
	// 85500/n/43560*100 <= 60 first holds at n = 4 (49.07%); n = 3 gives 65.4%.
	if m.Stories != 4 {
		t.Errorf("stories = %d, want 4", m.Stories)
	}
	if m.Coverage > 60 {
		t.Errorf("coverage = %v, want <= 60", m.Coverage)
	}
	if m.HeightFt != 40 {
		t.Errorf("height = %v, want 40", m.HeightFt)
	}
}

func TestComputeOpenSpaceReservesGround(t *testing.T) {
	cfg := exampleConfig()
	cfg.TargetUnits = 100
	cfg.OpenSpaceRatio = 0.5 // footprint limited to 50% of the lot
	m := Compute(acre, exampleConstraints(t), cfg, DefaultAssumptions())
	if m.Coverage > 50 {
		t.Errorf("coverage = %v, want <= 50", m.Coverage)
	}
	if m.Stories != 4 {
		t.Errorf("stories = %d, want 4", m.Stories)
	}
}

func TestComputeNoFitUsesHeightCap(t *testing.T) {
	cfg := exampleConfig()
	cfg.TargetUnits = 1000 // 855,000 GSF on one acre
	m := Compute(acre, exampleConstraints(t), cfg, DefaultAssumptions())
	if m.Stories != 6 {
		t.Errorf("stories = %d, want 6 (60 ft / 10 ft)", m.Stories)
	}
	if m.ConstraintAnalysis.CoverageUtilization <= 100 {
		t.Errorf("coverage utilization = %v, want > 100", m.ConstraintAnalysis.CoverageUtilization)
	}
	if m.ConstraintAnalysis.FARUtilization <= 100 {
		t.Errorf("FAR utilization = %v, want > 100 (not clamped)", m.ConstraintAnalysis.FARUtilization)
	}
}

func TestComputeHeightBelowOneStory(t *testing.T) {
	c, _ := zoning.Normalize(spec.ZoningRecord{MaxHeightFt: f(8)})
	m := Compute(acre, c, exampleConfig(), DefaultAssumptions())
	if m.Stories != 1 {
		t.Errorf("stories = %d, want 1", m.Stories)
	}
	if m.ConstraintAnalysis.HeightUtilization <= 100 {
		t.Errorf("height utilization = %v, want > 100", m.ConstraintAnalysis.HeightUtilization)
	}
}

func TestComputeUnboundedZoning(t *testing.T) {
	c, _ := zoning.Normalize(spec.ZoningRecord{})
	cfg := exampleConfig()
	cfg.TargetUnits = 1000
	m := Compute(acre, c, cfg, DefaultAssumptions())
	if m.ConstraintAnalysis.FARUtilization != 0 || m.ConstraintAnalysis.HeightUtilization != 0 {
		t.Errorf("unbounded utilizations = %+v, want 0", m.ConstraintAnalysis)
	}
	if m.Coverage > 100 {
		t.Errorf("coverage = %v, want <= 100", m.Coverage)
	}
}

func TestComputeFloorHeightByType(t *testing.T) {
	c := exampleConstraints(t)
	for bt, want := range map[spec.BuildingType]float64{
		spec.Residential: 10,
		spec.MixedUse:    12,
		spec.Commercial:  14,
	} {
		cfg := exampleConfig()
		cfg.BuildingType = bt
		m := Compute(acre, c, cfg, DefaultAssumptions())
		if m.HeightFt != want*float64(m.Stories) {
			t.Errorf("%s: height = %v, want %v per story", bt, m.HeightFt, want)
		}
	}
}

func TestComputeAmenitySpace(t *testing.T) {
	cfg := exampleConfig()
	cfg.AmenitySpaceSqFt = 2000
	m := Compute(acre, exampleConstraints(t), cfg, DefaultAssumptions())
	if !approxEqual(m.TotalGSF, 17100+2000, 1e-6) {
		t.Errorf("total GSF = %v, want 19100", m.TotalGSF)
	}
}

func TestComputeZeroLot(t *testing.T) {
	m := Compute(0, exampleConstraints(t), exampleConfig(), DefaultAssumptions())
	if m.Stories != 1 || m.FAR != 0 {
		t.Errorf("zero lot massing = %+v", m)
	}
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		achieved, allowed, want float64
	}{
		{1, 2, 50},
		{3, 2, 150},
		{5, math.Inf(1), 0},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := Utilization(tt.achieved, tt.allowed); got != tt.want {
			t.Errorf("Utilization(%v, %v) = %v, want %v", tt.achieved, tt.allowed, got, tt.want)
		}
	}
}

func TestCapForDisplay(t *testing.T) {
	if got := CapForDisplay(135); got != 100 {
		t.Errorf("CapForDisplay(135) = %v, want 100", got)
	}
	if got := CapForDisplay(42.5); got != 42.5 {
		t.Errorf("CapForDisplay(42.5) = %v, want 42.5", got)
	}
}
