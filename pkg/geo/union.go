package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// UnionAll returns the union of the polygons' outer rings as a
// MultiPolygon, largest component first. Overlapping area is counted
// once and edges shared by adjoining parcels disappear from the boundary.
// Adjoining inputs produce a single polygon.
//
// The union is built by splitting every edge where it meets another ring,
// keeping the pieces that lie outside every other ring, and chaining the
// kept pieces back into rings.
func UnionAll(polys []orb.Polygon) orb.MultiPolygon {
	rings := make([]orb.Ring, 0, len(polys))
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		if r, ok := cleanRing(p[0]); ok {
			rings = append(rings, r)
		}
	}
	switch len(rings) {
	case 0:
		return nil
	case 1:
		return orb.MultiPolygon{{closeRing(rings[0])}}
	}

	eps := tolerance(rings)
	closed := make([]orb.Ring, len(rings))
	for i, r := range rings {
		closed[i] = closeRing(r)
	}

	var kept []piece
	for i := range rings {
		for _, pc := range splitRing(i, rings, eps) {
			if keepPiece(pc, i, rings, closed, eps) {
				kept = append(kept, pc)
			}
		}
	}
	return chain(kept, eps)
}

type piece struct {
	a, b orb.Point
}

// tolerance scales the snapping distance to the extent of the input.
func tolerance(rings []orb.Ring) float64 {
	b := rings[0].Bound()
	for _, r := range rings[1:] {
		b = b.Union(r.Bound())
	}
	extent := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	scale := math.Max(extent, math.Max(math.Abs(b.Max[0]), math.Abs(b.Max[1])))
	return math.Max(scale*1e-10, 1e-12)
}

// splitRing cuts each edge of ring i at every point where another ring
// crosses or touches it.
func splitRing(i int, rings []orb.Ring, eps float64) []piece {
	r := rings[i]
	n := len(r)
	var out []piece
	for e := 0; e < n; e++ {
		a, b := r[e], r[(e+1)%n]
		ts := []float64{0, 1}
		for j, other := range rings {
			if j == i {
				continue
			}
			m := len(other)
			for k := 0; k < m; k++ {
				ts = append(ts, splitParams(a, b, other[k], other[(k+1)%m], eps)...)
			}
		}
		sort.Float64s(ts)

		length := dist(a, b)
		prev := a
		prevT := 0.0
		for _, t := range ts[1:] {
			if (t-prevT)*length <= eps {
				continue
			}
			next := b
			if t < 1 {
				next = lerp(a, b, t)
			}
			out = append(out, piece{a: prev, b: next})
			prev, prevT = next, t
		}
	}
	return out
}

// keepPiece reports whether a piece of ring i lies on the union boundary.
// Pieces inside another ring are dropped. A piece running along another
// ring's edge is kept once when both run the same way and dropped when
// they run opposite ways, since it is then interior to the union.
func keepPiece(pc piece, i int, rings, closed []orb.Ring, eps float64) bool {
	mid := lerp(pc.a, pc.b, 0.5)
	dir := sub(pc.b, pc.a)
	for j, other := range rings {
		if j == i {
			continue
		}
		m := len(other)
		onBoundary := false
		for k := 0; k < m; k++ {
			c, d := other[k], other[(k+1)%m]
			if pointSegmentDistance(mid, c, d) > 2*eps {
				continue
			}
			onBoundary = true
			if dot(dir, sub(d, c)) < 0 || j < i {
				return false
			}
			break
		}
		if !onBoundary && planar.RingContains(closed[j], mid) {
			return false
		}
	}
	return true
}

// vertexIndex snaps nearby points to one vertex id.
type vertexIndex struct {
	cell  float64
	grid  map[[2]int64][]int
	verts []orb.Point
}

func newVertexIndex(eps float64) *vertexIndex {
	return &vertexIndex{cell: eps * 4, grid: make(map[[2]int64][]int)}
}

func (vi *vertexIndex) id(p orb.Point) int {
	cx := int64(math.Floor(p[0] / vi.cell))
	cy := int64(math.Floor(p[1] / vi.cell))
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, id := range vi.grid[[2]int64{cx + dx, cy + dy}] {
				if dist(vi.verts[id], p) <= vi.cell {
					return id
				}
			}
		}
	}
	id := len(vi.verts)
	vi.verts = append(vi.verts, p)
	key := [2]int64{cx, cy}
	vi.grid[key] = append(vi.grid[key], id)
	return id
}

// chain links kept pieces into closed rings and groups them into polygons:
// counterclockwise rings are shells, clockwise rings are holes. Where
// several pieces leave one vertex the leftmost turn is taken, so parcels
// touching only at a corner stay separate shells.
func chain(pieces []piece, eps float64) orb.MultiPolygon {
	vi := newVertexIndex(eps)
	type edge struct{ from, to int }
	edges := make([]edge, 0, len(pieces))
	outgoing := make(map[int][]int)
	for _, pc := range pieces {
		e := edge{from: vi.id(pc.a), to: vi.id(pc.b)}
		if e.from == e.to {
			continue
		}
		outgoing[e.from] = append(outgoing[e.from], len(edges))
		edges = append(edges, e)
	}

	used := make([]bool, len(edges))
	var shells, holes []orb.Ring
	for s := range edges {
		if used[s] {
			continue
		}
		start := edges[s].from
		ring := orb.Ring{vi.verts[start]}
		cur := s
		closedOK := false
		for {
			used[cur] = true
			to := edges[cur].to
			ring = append(ring, vi.verts[to])
			if to == start {
				closedOK = true
				break
			}
			next := -1
			bestTurn := math.Inf(-1)
			in := sub(vi.verts[to], vi.verts[edges[cur].from])
			for _, cand := range outgoing[to] {
				if used[cand] {
					continue
				}
				out := sub(vi.verts[edges[cand].to], vi.verts[to])
				turn := math.Atan2(cross(in, out), dot(in, out))
				if turn > bestTurn {
					next, bestTurn = cand, turn
				}
			}
			if next < 0 {
				break
			}
			cur = next
		}
		if !closedOK || len(ring) < 4 {
			continue
		}
		a := signedArea(ring)
		if math.Abs(a) <= eps*eps {
			continue
		}
		if a > 0 {
			shells = append(shells, ring)
		} else {
			holes = append(holes, ring)
		}
	}

	sort.SliceStable(shells, func(i, j int) bool {
		return signedArea(shells[i]) > signedArea(shells[j])
	})
	out := make(orb.MultiPolygon, len(shells))
	for i, sh := range shells {
		out[i] = orb.Polygon{sh}
	}
	for _, h := range holes {
		best := -1
		for i, sh := range shells {
			if planar.RingContains(sh, lerp(h[0], h[1], 0.5)) {
				if best < 0 || signedArea(sh) < signedArea(shells[best]) {
					best = i
				}
			}
		}
		if best >= 0 {
			out[best] = append(out[best], h)
		}
	}
	return out
}
