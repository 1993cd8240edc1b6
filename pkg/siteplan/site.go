package siteplan

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ChicagoDave/siteplanner/pkg/assemblage"
	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

// Site is the buildable envelope a plan is generated for. A nil
// Constraints means no zoning data is available.
type Site struct {
	ParcelIDs         []string            `json:"parcel_ids"`
	CRS               geo.CRS             `json:"crs"`
	LotAreaSqFt       float64             `json:"lot_area_sqft"`
	Acres             float64             `json:"acres"`
	BuildableAreaSqFt float64             `json:"buildable_area_sqft"`
	Contiguous        bool                `json:"contiguous"`
	Constraints       *zoning.Constraints `json:"constraints"`
	Footprint         orb.MultiPolygon    `json:"-"`
}

// Parcel is a parcel chosen for planning: its geometry and the raw zoning
// record of its district. A nil Zoning means the catalog has none.
type Parcel struct {
	ID       string             `json:"id"`
	Geometry orb.Geometry       `json:"-"`
	Zoning   *spec.ZoningRecord `json:"zoning,omitempty"`
}

// SiteFromParcel builds a single-parcel site.
func SiteFromParcel(id string, p geo.Parcel, c *zoning.Constraints) Site {
	s := Site{
		ParcelIDs:   []string{id},
		CRS:         p.CRS,
		LotAreaSqFt: p.AreaSqFt,
		Acres:       p.Acres,
		Contiguous:  true,
		Constraints: c,
		Footprint:   orb.MultiPolygon{p.Polygon},
	}
	if c != nil {
		s.BuildableAreaSqFt = p.BuildableAreaSqFt(c.Setbacks.Depth())
	}
	return s
}

// SiteFromAssemblage builds a site from an assembled set of parcels.
func SiteFromAssemblage(a assemblage.Site, crs geo.CRS) Site {
	c := a.Constraints
	return Site{
		ParcelIDs:         a.MemberIDs,
		CRS:               crs,
		LotAreaSqFt:       a.AreaSqFt,
		Acres:             a.Acres,
		BuildableAreaSqFt: a.BuildableAreaSqFt(c.Setbacks.Depth()),
		Contiguous:        a.Contiguous,
		Constraints:       &c,
		Footprint:         a.Footprint,
	}
}

// Resolve turns selected parcels into a site. One parcel is planned on
// its own; several are assembled. Missing zoning or geometry make the
// engine unavailable and the error wraps ErrEngineUnavailable.
func Resolve(parcels []Parcel, crs geo.CRS) (Site, error) {
	members, err := members(parcels)
	if err != nil {
		return Site{}, err
	}

	if len(members) == 1 {
		m := members[0]
		poly, ok := geo.Normalize(m.Geometry)
		if !ok {
			return Site{}, fmt.Errorf("%w: parcel %s: %w", ErrEngineUnavailable, m.ID, geo.ErrNoGeometry)
		}
		parcel, err := geo.NewParcel(poly, crs)
		if err != nil {
			return Site{}, fmt.Errorf("%w: parcel %s: %w", ErrEngineUnavailable, m.ID, err)
		}
		return SiteFromParcel(m.ID, parcel, &m.Zoning), nil
	}

	a, err := assemblage.Assemble(members, crs)
	if err != nil {
		return Site{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	return SiteFromAssemblage(a, crs), nil
}

// Assemble unions the parcels regardless of count and returns the
// assemblage detail alongside the site.
func Assemble(parcels []Parcel, crs geo.CRS) (assemblage.Site, Site, error) {
	members, err := members(parcels)
	if err != nil {
		return assemblage.Site{}, Site{}, err
	}
	a, err := assemblage.Assemble(members, crs)
	if err != nil {
		return assemblage.Site{}, Site{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	return a, SiteFromAssemblage(a, crs), nil
}

func members(parcels []Parcel) ([]assemblage.Member, error) {
	if len(parcels) == 0 {
		return nil, fmt.Errorf("%w: no parcels selected", ErrEngineUnavailable)
	}
	out := make([]assemblage.Member, 0, len(parcels))
	for _, p := range parcels {
		if p.Zoning == nil {
			return nil, fmt.Errorf("%w: parcel %s has no zoning record", ErrEngineUnavailable, p.ID)
		}
		c, err := zoning.Normalize(*p.Zoning)
		if err != nil {
			return nil, fmt.Errorf("%w: parcel %s: %w", ErrEngineUnavailable, p.ID, err)
		}
		out = append(out, assemblage.Member{ID: p.ID, Geometry: p.Geometry, Zoning: c})
	}
	return out, nil
}

// ParcelsFromProject decodes the project's selected parcels and attaches
// each one's zoning record. A parcel whose zone code has no record gets
// nil Zoning.
func ParcelsFromProject(p *spec.Project) ([]Parcel, error) {
	defs := p.SelectedParcels()
	out := make([]Parcel, 0, len(defs))
	for _, d := range defs {
		g, err := geo.Decode(d.Geometry)
		if err != nil {
			return nil, fmt.Errorf("parcel %s: %w", d.ID, err)
		}
		parcel := Parcel{ID: d.ID, Geometry: g}
		if rec, ok := p.Zoning[d.ZoneCode]; ok {
			rec.ZoneCode = d.ZoneCode
			parcel.Zoning = &rec
		}
		out = append(out, parcel)
	}
	return out, nil
}
