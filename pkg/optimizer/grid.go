package optimizer

import (
	"fmt"
	"math"

	"github.com/ChicagoDave/siteplanner/pkg/massing"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// MixSkew is a named unit-mix profile.
type MixSkew struct {
	Name string
	Mix  spec.UnitMix
}

// MixSkews are the unit-mix profiles the grid explores.
var MixSkews = []MixSkew{
	{"studio-heavy", spec.UnitMix{spec.Studio: 0.40, spec.OneBedroom: 0.40, spec.TwoBedroom: 0.15, spec.ThreeBedroom: 0.05}},
	{"balanced", spec.UnitMix{spec.Studio: 0.20, spec.OneBedroom: 0.40, spec.TwoBedroom: 0.30, spec.ThreeBedroom: 0.10}},
	{"family", spec.UnitMix{spec.Studio: 0.05, spec.OneBedroom: 0.25, spec.TwoBedroom: 0.45, spec.ThreeBedroom: 0.25}},
}

// DensityTiers are fractions of the site's unit capacity.
var DensityTiers = []float64{0.6, 0.8, 1.0}

// OpenSpaceRatios are the open-space reservations the grid explores.
var OpenSpaceRatios = []float64{0.10, 0.20, 0.30}

// Candidate is one configuration to evaluate.
type Candidate struct {
	Name   string
	Config spec.Configuration
}

// Grid enumerates every mix skew, density tier, parking type and
// open-space ratio for the site. The base configuration supplies the
// building type and amenity space. Candidates that would hold no units
// are left out.
func Grid(site siteplan.Site, base spec.Configuration, a massing.Assumptions) []Candidate {
	bt := base.BuildingType
	if !bt.Valid() {
		bt = spec.Residential
	}

	var out []Candidate
	for _, skew := range MixSkews {
		for _, open := range OpenSpaceRatios {
			capacity := CapacityUnits(site, skew.Mix, bt, open, a)
			for _, tier := range DensityTiers {
				units := int(math.Floor(float64(capacity)*tier + 1e-9))
				if units <= 0 {
					continue
				}
				for _, pt := range spec.ParkingTypes {
					cfg := spec.Configuration{
						TargetUnits:      units,
						UnitMix:          cloneMix(skew.Mix),
						BuildingType:     bt,
						ParkingType:      pt,
						AmenitySpaceSqFt: base.AmenitySpaceSqFt,
						OpenSpaceRatio:   open,
					}
					out = append(out, Candidate{
						Name:   fmt.Sprintf("%s/%d%%-density/%s/open-%d%%", skew.Name, int(math.Round(tier*100)), pt, int(math.Round(open*100))),
						Config: cfg,
					})
				}
			}
		}
	}
	return out
}

// CapacityUnits is the largest unit count the site's zoning allows for a
// mix: the least of the density cap, the FAR cap and the buildable
// envelope (height-limited stories over the coverage footprint), each
// divided by the average unit size where it bounds floor area.
func CapacityUnits(site siteplan.Site, mix spec.UnitMix, bt spec.BuildingType, openSpace float64, a massing.Assumptions) int {
	if site.Constraints == nil || site.LotAreaSqFt <= 0 {
		return 0
	}
	avg := massing.AverageUnitSize(mix, a)
	if avg <= 0 {
		return 0
	}
	c := site.Constraints

	capacity := math.Inf(1)
	if c.DensityBounded() {
		capacity = math.Min(capacity, c.MaxDensityDUPerAcre*site.Acres)
	}
	if c.FARBounded() {
		capacity = math.Min(capacity, c.MaxFAR*site.LotAreaSqFt/avg)
	}

	stories := a.MaxStories
	if stories <= 0 {
		stories = massing.DefaultMaxStories
	}
	if c.HeightBounded() {
		stories = max(1, int(math.Floor(c.MaxHeightFt/a.FloorHeight(bt)+1e-9)))
	}
	coverage := math.Min(c.MaxCoveragePct, 100*(1-openSpace))
	envelope := float64(stories) * site.LotAreaSqFt * coverage / 100
	capacity = math.Min(capacity, envelope/avg)

	return int(math.Floor(capacity + 1e-9))
}

func cloneMix(m spec.UnitMix) spec.UnitMix {
	out := make(spec.UnitMix, len(m))
	for u, f := range m {
		out[u] = f
	}
	return out
}
