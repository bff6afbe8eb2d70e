package tin

import (
	"github.com/paulmach/orb"
)

// filterBufferDist is the tolerance used when deciding whether a
// candidate triangle belongs to the clipped mesh: the area is buffered
// outward by it, and centroids within it of the boundary are rejected.
const filterBufferDist = 0.0005

// SliceAlongBoundary intersects the mesh with the vertical planes
// raised over each segment of area's exterior and interior rings,
// returning, per segment, the boundary-conforming 3D points sorted by
// distance from the segment's start point.
func (m *Mesh) SliceAlongBoundary(area *Area) ([][]Point3, error) {
	var segmentsPoints [][]Point3

	processRing := func(ring []orb.Point) error {
		n := len(ring)
		for i := 0; i < n; i++ {
			start := ring[i]
			end := ring[(i+1)%n]
			pts, err := m.sliceSegment(start, end)
			if err != nil {
				return err
			}
			segmentsPoints = append(segmentsPoints, pts)
		}
		return nil
	}

	if err := processRing(area.ExteriorPoints()); err != nil {
		return nil, err
	}
	for i := 0; i < area.NumInteriors(); i++ {
		if err := processRing(area.InteriorPoints(i)); err != nil {
			return nil, err
		}
	}
	return segmentsPoints, nil
}

// sliceSegment finds every mesh-edge crossing of the vertical plane
// through (start, end), keeps the ones whose 2D projection falls
// within the segment's bounding span, and returns them sorted by
// distance from start plus the segment's own two endpoints.
func (m *Mesh) sliceSegment(start, end orb.Point) ([]Point3, error) {
	startZ, err := m.projectOne(start)
	if err != nil {
		return nil, err
	}
	endZ, err := m.projectOne(end)
	if err != nil {
		return nil, err
	}

	points := []orb.Point{start, end}
	for e := range m.buildEdgeAdjacency() {
		a, b := m.Vertices[e[0]], m.Vertices[e[1]]
		if hit, ok := segmentPlaneCrossing(start, end, orb.Point{a.X, a.Y}, orb.Point{b.X, b.Y}); ok {
			points = append(points, hit)
		}
	}

	sortByDistance(points, start)

	out := make([]Point3, 0, len(points)+2)
	out = append(out, Point3{start[0], start[1], startZ})
	for _, p := range points[1 : len(points)-1] {
		z, ok := m.rayTriangleVertical(p)
		if !ok {
			continue
		}
		out = append(out, Point3{p[0], p[1], z})
	}
	out = append(out, Point3{end[0], end[1], endZ})
	return out, nil
}

// segmentPlaneCrossing intersects line segment (p0, p1) of the mesh
// edge with the boundary segment (bStart, bEnd) in the 2D plane.
func segmentPlaneCrossing(bStart, bEnd, p0, p1 orb.Point) (orb.Point, bool) {
	d1x, d1y := bEnd[0]-bStart[0], bEnd[1]-bStart[1]
	d2x, d2y := p1[0]-p0[0], p1[1]-p0[1]

	denom := d1x*d2y - d1y*d2x
	if denom == 0 {
		return orb.Point{}, false
	}
	t := ((p0[0]-bStart[0])*d2y - (p0[1]-bStart[1])*d2x) / denom
	u := ((p0[0]-bStart[0])*d1y - (p0[1]-bStart[1])*d1x) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return orb.Point{}, false
	}
	return orb.Point{bStart[0] + t*d1x, bStart[1] + t*d1y}, true
}

// clipBoundaryBufferFactor is the multiple of grid_size the raster is
// buffered by when building the base surface a boundary is sliced
// against: enough margin past the polygon edge that SliceAlongBoundary
// always finds real mesh triangles to intersect, rather than running
// off the edge of the data.
const clipBoundaryBufferFactor = 3

// ClipMeshByArea builds the final terrain mesh for one area. A base
// surface is triangulated from raster points buffered out by
// 3*gridSize (wide enough that the boundary can always be sliced
// against real triangles); its boundary is sliced in; the clipped
// mesh's own vertex set starts from pointsWithinArea (the unbuffered
// in-polygon points) plus those sliced boundary points, re-triangulated
// with the boundary edges enforced as breaklines; triangles outside the
// area (or whose centroid falls on the boundary ring itself) are
// discarded.
func ClipMeshByArea(raster *RasterPoints, area *Area, gridSize float64) (*Mesh, error) {
	pointsWithinArea := raster.Within(area, 0)

	base, err := NewMeshFromPoints(raster.Within(area, clipBoundaryBufferFactor*gridSize))
	if err != nil {
		return nil, err
	}

	sliced, err := base.SliceAlongBoundary(area)
	if err != nil {
		return nil, err
	}

	var allPoints []Point3
	var breaklines [][2]int
	boundaryFlag := make([]bool, 0)

	addBoundaryPoints := func(pts []Point3) {
		start := len(allPoints)
		allPoints = append(allPoints, pts...)
		for range pts {
			boundaryFlag = append(boundaryFlag, true)
		}
		for i := 0; i < len(pts)-1; i++ {
			breaklines = append(breaklines, [2]int{start + i, start + i + 1})
		}
	}
	for _, seg := range sliced {
		addBoundaryPoints(seg)
	}

	interiorStart := len(allPoints)
	allPoints = append(allPoints, pointsWithinArea...)
	for i := interiorStart; i < len(allPoints); i++ {
		boundaryFlag = append(boundaryFlag, false)
	}

	merged, err := NewMeshFromPoints(allPoints)
	if err != nil {
		return nil, err
	}
	merged.BoundaryVertex = boundaryFlag
	merged.enforceBreaklines(breaklines)
	merged.filterToArea(area)

	return merged, nil
}

// enforceBreaklines recovers each boundary segment as an explicit mesh
// edge. Recovery is local, not a general constrained-Delaunay pass: any
// triangle that crosses a breakline edge without using it is split
// along that edge.
func (m *Mesh) enforceBreaklines(breaklines [][2]int) {
	for _, bl := range breaklines {
		if m.edgeExists(bl[0], bl[1]) {
			continue
		}
		m.recoverEdge(bl[0], bl[1])
	}
}

func (m *Mesh) edgeExists(a, b int) bool {
	_, ok := m.buildEdgeAdjacency()[newEdgeKey(a, b)]
	return ok
}

// recoverEdge retriangulates every triangle whose circumscribed area
// the segment (a, b) passes through, splitting it so the segment
// becomes an explicit edge. This is a local, non-optimal recovery
// pass — adequate for the thin boundary cavities this function is
// actually asked to fix, not a general CDT implementation.
func (m *Mesh) recoverEdge(a, b int) {
	pa, pb := m.Vertices[a], m.Vertices[b]
	kept := m.Triangles[:0]
	var toAdd []Triangle
	for _, t := range m.Triangles {
		if containsVertex(t, a) || containsVertex(t, b) {
			kept = append(kept, t)
			continue
		}
		p0, p1, p2 := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		if segmentCrossesTriangle(orb.Point{pa.X, pa.Y}, orb.Point{pb.X, pb.Y}, p0, p1, p2) {
			// Fan the crossed triangle against the recovered edge's
			// start vertex; degenerate slivers are dropped by the final
			// area filter.
			toAdd = append(toAdd,
				Triangle{t[0], t[1], a}, Triangle{t[1], t[2], a}, Triangle{t[2], t[0], a},
			)
			continue
		}
		kept = append(kept, t)
	}
	m.Triangles = append(kept, toAdd...)
}

func containsVertex(t Triangle, v int) bool {
	return t[0] == v || t[1] == v || t[2] == v
}

func segmentCrossesTriangle(s0, s1 orb.Point, a, b, c Point3) bool {
	edges := [3][2]orb.Point{
		{{a.X, a.Y}, {b.X, b.Y}},
		{{b.X, b.Y}, {c.X, c.Y}},
		{{c.X, c.Y}, {a.X, a.Y}},
	}
	for _, e := range edges {
		if _, ok := segmentPlaneCrossing(s0, s1, e[0], e[1]); ok {
			return true
		}
	}
	return false
}

// filterToArea keeps triangle t iff it lies within area (buffered by
// filterBufferDist) and its centroid does not itself fall on the
// boundary ring. The second test rejects thin faces left on the wrong
// side of a very close boundary.
func (m *Mesh) filterToArea(area *Area) {
	kept := m.Triangles[:0]
	for _, t := range m.Triangles {
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		if !area.WithinBuffer(orb.Point{a.X, a.Y}, filterBufferDist) ||
			!area.WithinBuffer(orb.Point{b.X, b.Y}, filterBufferDist) ||
			!area.WithinBuffer(orb.Point{c.X, c.Y}, filterBufferDist) {
			continue
		}
		centroid := orb.Point{(a.X + b.X + c.X) / 3, (a.Y + b.Y + c.Y) / 3}
		// The centroid test catches triangles whose vertices all sit on
		// (or near) a ring but whose interior spans a hole or a concave
		// notch outside the area.
		if !area.WithinBuffer(centroid, filterBufferDist) {
			continue
		}
		if area.DistanceToBoundary(centroid) <= filterBufferDist {
			continue
		}
		kept = append(kept, t)
	}
	m.Triangles = kept
}
