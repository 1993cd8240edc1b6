package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Parcel is a normalized parcel polygon and its measurements.
type Parcel struct {
	Polygon     orb.Polygon `json:"-"`
	CRS         CRS         `json:"crs"`
	AreaSqFt    float64     `json:"area_sqft"`
	Acres       float64     `json:"acres"`
	PerimeterFt float64     `json:"perimeter_ft"`

	// cornerFactor is Σ tan(θ/2) over the outer ring's turning angles; it
	// is 4 for any rectangle.
	cornerFactor float64
}

// Normalize reduces a Polygon or MultiPolygon to a single polygon. A
// MultiPolygon keeps only its largest valid member. It returns false when
// no valid ring exists, which callers must treat as missing geometry
// rather than a zero-area parcel.
func Normalize(g orb.Geometry) (orb.Polygon, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		return normalizePolygon(g)
	case orb.MultiPolygon:
		var best orb.Polygon
		bestArea := 0.0
		for _, p := range g {
			np, ok := normalizePolygon(p)
			if !ok {
				continue
			}
			if a := planar.Area(np); a > bestArea {
				best, bestArea = np, a
			}
		}
		return best, best != nil
	}
	return nil, false
}

// normalizePolygon cleans the outer ring to counterclockwise order and
// drops invalid holes.
func normalizePolygon(p orb.Polygon) (orb.Polygon, bool) {
	if len(p) == 0 {
		return nil, false
	}
	outer, ok := cleanRing(p[0])
	if !ok {
		return nil, false
	}
	out := orb.Polygon{closeRing(outer)}
	for _, hole := range p[1:] {
		h, ok := cleanRing(hole)
		if !ok {
			continue
		}
		h.Reverse()
		out = append(out, closeRing(h))
	}
	return out, true
}

// cleanRing returns the ring open (no repeated closing point), without
// consecutive duplicates, in counterclockwise order. It reports false for
// rings with fewer than three distinct vertices or no area.
func cleanRing(r orb.Ring) (orb.Ring, bool) {
	out := make(orb.Ring, 0, len(r))
	for _, pt := range r {
		if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			return nil, false
		}
		if len(out) > 0 && out[len(out)-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil, false
	}
	a := signedArea(out)
	if a == 0 || math.Abs(a) < 1e-18 {
		return nil, false
	}
	if a < 0 {
		out.Reverse()
	}
	return out, true
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	out := make(orb.Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}

// signedArea returns the shoelace area of an open or closed ring.
// Positive for counterclockwise winding.
func signedArea(r orb.Ring) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	area := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += r[i][0] * r[j][1]
		area -= r[j][0] * r[i][1]
	}
	return area / 2
}

// NewParcel measures a normalized polygon.
func NewParcel(p orb.Polygon, crs CRS) (Parcel, error) {
	if len(p) == 0 {
		return Parcel{}, ErrNoGeometry
	}
	area := AreaSqFt(p, crs)
	if area <= 0 {
		return Parcel{}, fmt.Errorf("%w: zero area", ErrNoGeometry)
	}
	return Parcel{
		Polygon:      p,
		CRS:          crs,
		AreaSqFt:     area,
		Acres:        area / SqFtPerAcre,
		PerimeterFt:  LengthFt(p[0], crs),
		cornerFactor: cornerFactor(localPlanar(p[0], crs)),
	}, nil
}

// AreaSqFt returns the area of a polygonal geometry in square feet.
func AreaSqFt(g orb.Geometry, crs CRS) float64 {
	if crs == Geographic {
		return math.Abs(orbgeo.Area(g)) * SqFtPerM2
	}
	return planar.Area(g)
}

// LengthFt returns the length of a linear geometry in feet.
func LengthFt(g orb.Geometry, crs CRS) float64 {
	if crs == Geographic {
		return orbgeo.Length(g) * FtPerM
	}
	return planar.Length(g)
}

// BuildableAreaSqFt estimates the area left after an inward offset of
// setbackFt on every side. It is exact for convex polygons and never
// negative.
func (p Parcel) BuildableAreaSqFt(setbackFt float64) float64 {
	if setbackFt <= 0 {
		return p.AreaSqFt
	}
	k := p.cornerFactor
	if k <= 0 {
		k = 4
	}
	// The offset polygon vanishes once the quadratic stops decreasing.
	if setbackFt >= p.PerimeterFt/(2*k) {
		return 0
	}
	a := p.AreaSqFt - p.PerimeterFt*setbackFt + k*setbackFt*setbackFt
	return math.Max(0, a)
}

// localPlanar scales longitude by cos(latitude) so angles are preserved at
// parcel scale.
func localPlanar(r orb.Ring, crs CRS) orb.Ring {
	if crs != Geographic || len(r) == 0 {
		return r
	}
	c := math.Cos(r.Bound().Center()[1] * math.Pi / 180)
	out := make(orb.Ring, len(r))
	for i, pt := range r {
		out[i] = orb.Point{pt[0] * c, pt[1]}
	}
	return out
}

func cornerFactor(r orb.Ring) float64 {
	open, ok := cleanRing(r)
	if !ok {
		return 0
	}
	n := len(open)
	k := 0.0
	for i := 0; i < n; i++ {
		prev := open[(i+n-1)%n]
		cur := open[i]
		next := open[(i+1)%n]
		e1 := sub(cur, prev)
		e2 := sub(next, cur)
		turn := math.Atan2(cross(e1, e2), dot(e1, e2))
		k += math.Tan(turn / 2)
	}
	return k
}
