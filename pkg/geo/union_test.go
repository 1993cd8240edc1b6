package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func unionArea(mp orb.MultiPolygon) float64 {
	return AreaSqFt(mp, ProjectedFeet)
}

func TestUnionAdjoiningParcels(t *testing.T) {
	a := rect(0, 0, 220, 198)
	b := rect(220, 0, 440, 198)
	u := UnionAll([]orb.Polygon{a, b})
	if len(u) != 1 {
		t.Fatalf("components = %d, want 1", len(u))
	}
	if got := unionArea(u); !approxEqual(got, 87120, areaTol) {
		t.Errorf("area = %v, want 87120", got)
	}
	// The shared edge vanishes: 4 distinct corners plus the two
	// collinear split points at most.
	if n := len(u[0][0]) - 1; n > 6 {
		t.Errorf("outer ring has %d vertices, want <= 6", n)
	}
	if math.Abs(LengthFt(u[0][0], ProjectedFeet)-2*(440+198)) > areaTol {
		t.Errorf("perimeter = %v, want %v", LengthFt(u[0][0], ProjectedFeet), 2*(440+198))
	}
}

func TestUnionPartialSharedEdge(t *testing.T) {
	// b shares only part of a's right edge.
	a := rect(0, 0, 100, 100)
	b := rect(100, 25, 150, 75)
	u := UnionAll([]orb.Polygon{a, b})
	if len(u) != 1 {
		t.Fatalf("components = %d, want 1", len(u))
	}
	if got := unionArea(u); !approxEqual(got, 12500, areaTol) {
		t.Errorf("area = %v, want 12500", got)
	}
}

func TestUnionOverlapNotDoubleCounted(t *testing.T) {
	a := rect(0, 0, 100, 100)
	b := rect(50, 50, 150, 150)
	u := UnionAll([]orb.Polygon{a, b})
	if len(u) != 1 {
		t.Fatalf("components = %d, want 1", len(u))
	}
	if got := unionArea(u); !approxEqual(got, 17500, areaTol) {
		t.Errorf("area = %v, want 17500", got)
	}
}

func TestUnionContained(t *testing.T) {
	outer := rect(0, 0, 100, 100)
	inner := rect(10, 10, 20, 20)
	u := UnionAll([]orb.Polygon{inner, outer})
	if got := unionArea(u); !approxEqual(got, 10000, areaTol) {
		t.Errorf("area = %v, want 10000", got)
	}
}

func TestUnionIdentical(t *testing.T) {
	a := rect(0, 0, 100, 100)
	u := UnionAll([]orb.Polygon{a, a, a})
	if len(u) != 1 {
		t.Fatalf("components = %d, want 1", len(u))
	}
	if got := unionArea(u); !approxEqual(got, 10000, areaTol) {
		t.Errorf("area = %v, want 10000", got)
	}
}

func TestUnionDisjoint(t *testing.T) {
	a := rect(0, 0, 10, 10)
	b := rect(100, 100, 130, 130)
	u := UnionAll([]orb.Polygon{a, b})
	if len(u) != 2 {
		t.Fatalf("components = %d, want 2", len(u))
	}
	if got := AreaSqFt(u[0], ProjectedFeet); !approxEqual(got, 900, areaTol) {
		t.Errorf("largest component area = %v, want 900 first", got)
	}
	if got := unionArea(u); !approxEqual(got, 1000, areaTol) {
		t.Errorf("area = %v, want 1000", got)
	}
}

func TestUnionCornerTouch(t *testing.T) {
	a := rect(0, 0, 10, 10)
	b := rect(10, 10, 20, 20)
	u := UnionAll([]orb.Polygon{a, b})
	if len(u) != 2 {
		t.Errorf("components = %d, want 2 for corner-touching parcels", len(u))
	}
	if got := unionArea(u); !approxEqual(got, 200, areaTol) {
		t.Errorf("area = %v, want 200", got)
	}
}

func TestUnionRingOfParcelsLeavesHole(t *testing.T) {
	// Four parcels around an unowned 10x10 lot in the middle.
	parcels := []orb.Polygon{
		rect(0, 0, 30, 10),
		rect(0, 20, 30, 30),
		rect(0, 10, 10, 20),
		rect(20, 10, 30, 20),
	}
	u := UnionAll(parcels)
	if len(u) != 1 {
		t.Fatalf("components = %d, want 1", len(u))
	}
	if len(u[0]) != 2 {
		t.Fatalf("rings = %d, want shell + hole", len(u[0]))
	}
	if got := unionArea(u); !approxEqual(got, 800, areaTol) {
		t.Errorf("area = %v, want 800", got)
	}
}

func TestUnionMonotone(t *testing.T) {
	sets := [][]orb.Polygon{
		{rect(0, 0, 100, 100), rect(50, 0, 150, 80)},
		{rect(0, 0, 10, 10), rect(5, 5, 15, 15), rect(12, 0, 20, 8)},
		{{{{0, 0}, {100, 0}, {50, 80}, {0, 0}}}, rect(40, 10, 120, 40)},
	}
	for i, set := range sets {
		u := UnionAll(set)
		ua := unionArea(u)
		maxA, sumA := 0.0, 0.0
		for _, p := range set {
			a := AreaSqFt(p, ProjectedFeet)
			maxA = math.Max(maxA, a)
			sumA += a
		}
		if ua < maxA-areaTol || ua > sumA+areaTol {
			t.Errorf("set %d: union area %v outside [%v, %v]", i, ua, maxA, sumA)
		}
	}
}

func TestUnionEmptyAndSingle(t *testing.T) {
	if u := UnionAll(nil); u != nil {
		t.Errorf("union of nothing = %v, want nil", u)
	}
	u := UnionAll([]orb.Polygon{rect(0, 0, 5, 5), {}})
	if len(u) != 1 || !approxEqual(unionArea(u), 25, areaTol) {
		t.Errorf("union of one = %v", u)
	}
}
