// Package tin implements the terrain mesh engine: the area-of-interest
// polygon, raster point selection, and the Delaunay-based mesh that is
// clipped, decimated, and sliced against that polygon.
package tin

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"cs2bim-go/internal/cserr"
)

// Area wraps the area-of-interest polygon: its exterior ring is
// normalized to counter-clockwise, its holes to clockwise (the
// convention the constrained triangulation and the IFC writer both
// assume), and its coordinates are shifted so that `origin` sits at
// (0, 0) for numerical stability during meshing.
type Area struct {
	polygon orb.Polygon
	origin  [2]float64
}

// NewAreaFromWKT parses a WKT polygon, normalizes ring orientation, and
// reduces coordinates by origin[0:2].
func NewAreaFromWKT(wktStr string, origin [2]float64) (*Area, error) {
	geom, err := wkt.Unmarshal(wktStr)
	if err != nil {
		return nil, cserr.Wrap(cserr.BadInput, "tin.NewAreaFromWKT", err)
	}
	poly, ok := geom.(orb.Polygon)
	if !ok {
		return nil, cserr.New(cserr.BadInput, "tin.NewAreaFromWKT", "WKT geometry is not a Polygon")
	}
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, cserr.New(cserr.BadGeometry, "tin.NewAreaFromWKT", "polygon has no usable exterior ring")
	}
	for _, ring := range poly {
		if !ringIsClosed(ring) {
			return nil, cserr.New(cserr.BadGeometry, "tin.NewAreaFromWKT", "ring is not closed (first and last point must match)")
		}
	}
	if selfIntersects(poly[0]) {
		return nil, cserr.New(cserr.BadGeometry, "tin.NewAreaFromWKT", "exterior ring self-intersects")
	}

	normalized := normalizeOrientation(poly)
	reduced := reduceByOrigin(normalized, origin)

	return &Area{polygon: reduced, origin: origin}, nil
}

// normalizeOrientation enforces CCW exterior / CW interior rings,
// reversing any ring that fails the check.
func normalizeOrientation(poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		ccw := signedArea(ring) > 0
		if i == 0 {
			if !ccw {
				ring = reverseRing(ring)
			}
		} else if ccw {
			ring = reverseRing(ring)
		}
		out[i] = ring
	}
	return out
}

func reduceByOrigin(poly orb.Polygon, origin [2]float64) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		r := make(orb.Ring, len(ring))
		for j, p := range ring {
			r[j] = orb.Point{p[0] - origin[0], p[1] - origin[1]}
		}
		out[i] = r
	}
	return out
}

// signedArea computes twice the signed area of a ring via the shoelace
// formula; positive means counter-clockwise.
func signedArea(ring orb.Ring) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		p0 := ring[i]
		p1 := ring[(i+1)%n]
		sum += p0[0]*p1[1] - p1[0]*p0[1]
	}
	return sum
}

// ringIsClosed reports whether a ring's first and last coordinates
// coincide. Valid WKT syntax alone is not enough: a ring missing its
// closing duplicate is rejected as BadGeometry.
func ringIsClosed(ring orb.Ring) bool {
	if len(ring) < 2 {
		return false
	}
	return ring[0] == ring[len(ring)-1]
}

// selfIntersects reports whether any two non-adjacent edges of ring
// cross, a coarse O(n^2) check adequate for the small polygons this
// system is given (footprints, not arbitrary GIS data).
func selfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1 // last point duplicates the first
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a0, a1 := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i || j == (i+1)%n || (j+1)%n == i {
				continue // shares an endpoint with edge i, not a crossing
			}
			b0, b1 := ring[j], ring[(j+1)%n]
			if _, ok := segmentPlaneCrossing(a0, a1, b0, b1); ok {
				return true
			}
		}
	}
	return false
}

func reverseRing(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// ExteriorPoints returns the (already origin-reduced) points of the
// outer ring, excluding the closing duplicate of the first point.
func (a *Area) ExteriorPoints() []orb.Point {
	return openRingPoints(a.polygon[0])
}

// InteriorPoints returns the points of hole ring i (0-based), excluding
// its closing duplicate.
func (a *Area) InteriorPoints(i int) []orb.Point {
	return openRingPoints(a.polygon[1+i])
}

// NumInteriors returns the number of holes in the polygon.
func (a *Area) NumInteriors() int {
	return len(a.polygon) - 1
}

func openRingPoints(ring orb.Ring) []orb.Point {
	if len(ring) == 0 {
		return nil
	}
	n := len(ring)
	if ring[0] == ring[n-1] {
		n--
	}
	out := make([]orb.Point, n)
	copy(out, ring[:n])
	return out
}

// Origin returns the origin this area was reduced by.
func (a *Area) Origin() [2]float64 { return a.origin }

// Geometry returns the normalized, origin-reduced polygon.
func (a *Area) Geometry() orb.Polygon { return a.polygon }

// Area2D returns the planar area of the polygon (exterior minus holes).
func (a *Area) Area2D() float64 {
	total := signedArea(a.polygon[0]) / 2
	for i := 1; i < len(a.polygon); i++ {
		total -= signedArea(a.polygon[i]) / 2
	}
	if total < 0 {
		total = -total
	}
	return total
}

// Contains reports whether p lies inside the exterior ring and outside
// every hole.
func (a *Area) Contains(p orb.Point) bool {
	if !pointInRing(p, a.polygon[0]) {
		return false
	}
	for i := 1; i < len(a.polygon); i++ {
		if pointInRing(p, a.polygon[i]) {
			return false
		}
	}
	return true
}

// DistanceToBoundary returns the minimum Euclidean distance from p to
// any ring of the polygon, the predicate backing WithinBuffer in place
// of a true Minkowski-sum polygon buffer.
func (a *Area) DistanceToBoundary(p orb.Point) float64 {
	best := -1.0
	for _, ring := range a.polygon {
		d := distanceToRing(p, ring)
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// WithinBuffer reports whether p lies within bufferDist of the
// polygon's area (inside, or outside but within bufferDist of a ring).
func (a *Area) WithinBuffer(p orb.Point, bufferDist float64) bool {
	if a.Contains(p) {
		return true
	}
	return a.DistanceToBoundary(p) <= bufferDist
}

func pointInRing(p orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi[1] > p[1]) != (pj[1] > p[1]) {
			xCross := (pj[0]-pi[0])*(p[1]-pi[1])/(pj[1]-pi[1]) + pi[0]
			if p[0] < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func distanceToRing(p orb.Point, ring orb.Ring) float64 {
	best := -1.0
	n := len(ring)
	for i := 0; i < n; i++ {
		d := distanceToSegment(p, ring[i], ring[(i+1)%n])
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

func distanceToSegment(p, a0, b0 orb.Point) float64 {
	dx, dy := b0[0]-a0[0], b0[1]-a0[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return dist2(p, a0)
	}
	t := ((p[0]-a0[0])*dx + (p[1]-a0[1])*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	proj := orb.Point{a0[0] + t*dx, a0[1] + t*dy}
	return dist2(p, proj)
}

func dist2(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return math.Sqrt(dx*dx + dy*dy)
}
