package geo

import (
	"math"

	"github.com/paulmach/orb"
)

func sub(p, q orb.Point) orb.Point { return orb.Point{p[0] - q[0], p[1] - q[1]} }

func dot(p, q orb.Point) float64 { return p[0]*q[0] + p[1]*q[1] }

// cross returns the z-component of the 3D cross product.
func cross(p, q orb.Point) float64 { return p[0]*q[1] - p[1]*q[0] }

func lerp(p, q orb.Point, t float64) orb.Point {
	return orb.Point{p[0] + (q[0]-p[0])*t, p[1] + (q[1]-p[1])*t}
}

func dist(p, q orb.Point) float64 { return math.Hypot(p[0]-q[0], p[1]-q[1]) }

// splitParams returns the parameters t in (0,1) at which segment a→b meets
// segment c→d, including collinear overlaps and touching endpoints.
func splitParams(a, b, c, d orb.Point, eps float64) []float64 {
	ab := sub(b, a)
	cd := sub(d, c)
	lenAB := math.Hypot(ab[0], ab[1])
	if lenAB == 0 {
		return nil
	}

	denom := cross(ab, cd)
	ac := sub(c, a)
	if math.Abs(denom) > eps*math.Hypot(cd[0], cd[1]) {
		t := cross(ac, cd) / denom
		u := cross(ac, ab) / denom
		tol := eps / lenAB
		uTol := eps / math.Hypot(cd[0], cd[1])
		if t > tol && t < 1-tol && u >= -uTol && u <= 1+uTol {
			return []float64{t}
		}
		return nil
	}

	// Parallel: only collinear segments split each other.
	if math.Abs(cross(ab, ac))/lenAB > eps {
		return nil
	}
	var ts []float64
	for _, p := range []orb.Point{c, d} {
		t := dot(sub(p, a), ab) / (lenAB * lenAB)
		if t*lenAB > eps && (1-t)*lenAB > eps {
			ts = append(ts, t)
		}
	}
	return ts
}

// pointSegmentDistance returns the distance from p to segment a→b.
func pointSegmentDistance(p, a, b orb.Point) float64 {
	ab := sub(b, a)
	l2 := dot(ab, ab)
	if l2 == 0 {
		return dist(p, a)
	}
	t := dot(sub(p, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	return dist(p, lerp(a, b, t))
}
