package zoning

import (
	"math"
	"sort"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// Combine merges the constraint sets of assembled parcels. The tightest
// constraint wins on every dimension: the minimum of each maximum-type
// limit, the maximum of each setback, and the intersection of permitted
// uses. Combine of nothing is the unconstrained set.
func Combine(cs ...Constraints) Constraints {
	out := Constraints{
		ZoneCodes:           []string{},
		MaxFAR:              Unbounded,
		MaxHeightFt:         Unbounded,
		MaxCoveragePct:      FullCoverage,
		MaxDensityDUPerAcre: Unbounded,
		PermittedUses:       []spec.BuildingType{},
	}

	var uses map[spec.BuildingType]bool
	codes := make(map[string]bool)
	for _, c := range cs {
		out.MaxFAR = math.Min(out.MaxFAR, c.MaxFAR)
		out.MaxHeightFt = math.Min(out.MaxHeightFt, c.MaxHeightFt)
		out.MaxCoveragePct = math.Min(out.MaxCoveragePct, c.MaxCoveragePct)
		out.MaxDensityDUPerAcre = math.Min(out.MaxDensityDUPerAcre, c.MaxDensityDUPerAcre)

		out.Setbacks.Front = math.Max(out.Setbacks.Front, c.Setbacks.Front)
		out.Setbacks.Side = math.Max(out.Setbacks.Side, c.Setbacks.Side)
		out.Setbacks.Rear = math.Max(out.Setbacks.Rear, c.Setbacks.Rear)

		for _, code := range c.ZoneCodes {
			codes[code] = true
		}

		// Empty means every use, so it never narrows the intersection.
		if len(c.PermittedUses) == 0 {
			continue
		}
		next := make(map[spec.BuildingType]bool)
		for _, u := range c.PermittedUses {
			if uses == nil || uses[u] {
				next[u] = true
			}
		}
		uses = next
	}

	for code := range codes {
		out.ZoneCodes = append(out.ZoneCodes, code)
	}
	sort.Strings(out.ZoneCodes)

	if uses != nil && len(uses) == 0 {
		// No common use survives: nothing is buildable.
		out.PermittedUses = []spec.BuildingType{noUse}
		return out
	}
	for u := range uses {
		out.PermittedUses = append(out.PermittedUses, u)
	}
	out.PermittedUses = dedupeUses(out.PermittedUses)
	return out
}

// noUse stands in for an empty intersection of permitted uses, which would
// otherwise read as "every use permitted".
const noUse spec.BuildingType = "none"

// AtLeastAsRestrictive reports whether a is no looser than b on every
// dimension.
func AtLeastAsRestrictive(a, b Constraints) bool {
	if a.MaxFAR > b.MaxFAR || a.MaxHeightFt > b.MaxHeightFt ||
		a.MaxCoveragePct > b.MaxCoveragePct || a.MaxDensityDUPerAcre > b.MaxDensityDUPerAcre {
		return false
	}
	if a.Setbacks.Front < b.Setbacks.Front || a.Setbacks.Side < b.Setbacks.Side || a.Setbacks.Rear < b.Setbacks.Rear {
		return false
	}
	for _, bt := range spec.BuildingTypes {
		if a.Permits(bt) && !b.Permits(bt) {
			return false
		}
	}
	return true
}
