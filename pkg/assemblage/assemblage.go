// Package assemblage combines adjoining parcels into one buildable site.
package assemblage

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

// ErrNoMembers is returned when an assemblage has no parcels.
var ErrNoMembers = errors.New("assemblage has no parcels")

// Member is one parcel contributing to an assemblage.
type Member struct {
	ID       string
	Geometry orb.Geometry
	Zoning   zoning.Constraints
}

// Site is the unified envelope of an assemblage.
type Site struct {
	MemberIDs   []string           `json:"member_ids"`
	Footprint   orb.MultiPolygon   `json:"-"`
	AreaSqFt    float64            `json:"area_sqft"`
	Acres       float64            `json:"acres"`
	PerimeterFt float64            `json:"perimeter_ft"`
	MemberAreas map[string]float64 `json:"member_areas_sqft"`
	Constraints zoning.Constraints `json:"constraints"`
	Contiguous  bool               `json:"contiguous"`
	OverlapSqFt float64            `json:"overlap_sqft"`

	components []geo.Parcel
}

// Assemble normalizes each member's geometry, unions the footprints and
// combines the zoning so the tightest constraint wins. A member without a
// valid polygon fails the whole assemblage.
func Assemble(members []Member, crs geo.CRS) (Site, error) {
	if len(members) == 0 {
		return Site{}, ErrNoMembers
	}

	site := Site{
		MemberIDs:   make([]string, 0, len(members)),
		MemberAreas: make(map[string]float64, len(members)),
	}
	polys := make([]orb.Polygon, 0, len(members))
	constraints := make([]zoning.Constraints, 0, len(members))
	memberSum := 0.0
	for _, m := range members {
		p, ok := geo.Normalize(m.Geometry)
		if !ok {
			return Site{}, fmt.Errorf("parcel %s: %w", m.ID, geo.ErrNoGeometry)
		}
		area := geo.AreaSqFt(p, crs)
		site.MemberIDs = append(site.MemberIDs, m.ID)
		site.MemberAreas[m.ID] = area
		memberSum += area
		polys = append(polys, p)
		constraints = append(constraints, m.Zoning)
	}

	site.Footprint = geo.UnionAll(polys)
	if len(site.Footprint) == 0 {
		return Site{}, fmt.Errorf("assemblage union: %w", geo.ErrNoGeometry)
	}
	for _, poly := range site.Footprint {
		c, err := geo.NewParcel(poly, crs)
		if err != nil {
			return Site{}, fmt.Errorf("assemblage component: %w", err)
		}
		site.components = append(site.components, c)
		site.AreaSqFt += c.AreaSqFt
		site.PerimeterFt += c.PerimeterFt
	}
	site.AreaSqFt = math.Max(0, site.AreaSqFt-uncoveredHoleSqFt(polys, crs))
	// Clamp round-off so the union never reads larger than its members.
	site.AreaSqFt = math.Min(site.AreaSqFt, memberSum)
	site.Acres = site.AreaSqFt / geo.SqFtPerAcre
	site.OverlapSqFt = math.Max(0, memberSum-site.AreaSqFt)
	site.Contiguous = len(site.Footprint) == 1
	site.Constraints = zoning.Combine(constraints...)
	return site, nil
}

// uncoveredHoleSqFt is the area of member holes that no other member's
// shell fills. The footprint is a union of shells, so this is what the
// site area must give back.
func uncoveredHoleSqFt(polys []orb.Polygon, crs geo.CRS) float64 {
	total := 0.0
	for i, p := range polys {
		if len(p) < 2 {
			continue
		}
		others := make([]orb.Polygon, 0, len(polys)-1)
		for j, q := range polys {
			if j != i {
				others = append(others, orb.Polygon{q[0]})
			}
		}
		covered := geo.AreaSqFt(geo.UnionAll(others), crs)
		for _, h := range p[1:] {
			withHole := append(others[:len(others):len(others)], orb.Polygon{h})
			total += math.Max(0, geo.AreaSqFt(geo.UnionAll(withHole), crs)-covered)
		}
	}
	return total
}

// BuildableAreaSqFt sums the post-setback area of every footprint
// component.
func (s Site) BuildableAreaSqFt(setbackFt float64) float64 {
	total := 0.0
	for _, c := range s.components {
		total += c.BuildableAreaSqFt(setbackFt)
	}
	return math.Min(total, s.AreaSqFt)
}
