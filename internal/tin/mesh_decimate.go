package tin

import "math"

// reductionTarget caps the collapse pass: edges are collapsed until at
// most 1% of the original triangle count remains (subject to the
// feature-angle and boundary constraints below, which usually stop it
// long before that floor).
const reductionTarget = 0.99

// Decimate simplifies the mesh by collapsing edges whose adjoining
// triangles are nearly coplanar. The feature angle is derived from
// (maxHeightError, gridSize), clamped at 45 degrees, so flat regions
// decimate aggressively while steep regions keep detail.
//
// maxEdgeLen, if positive, additionally re-subdivides any surviving
// edge longer than maxEdgeLen by inserting its midpoint, keeping the
// decimated mesh from producing triangles coarser than the caller's
// resolution budget.
func (m *Mesh) Decimate(maxHeightError, gridSize, maxEdgeLen float64) {
	featureAngle := math.Min(2*math.Atan(maxHeightError/gridSize)*180/math.Pi, 45)

	targetCount := int(math.Ceil(float64(len(m.Triangles)) * (1 - reductionTarget)))
	if targetCount < 1 {
		targetCount = 1
	}

	for len(m.Triangles) > targetCount {
		collapsed := m.collapseOneEdge(featureAngle)
		if !collapsed {
			break
		}
	}

	if maxEdgeLen > 0 {
		m.subdivideLongEdges(maxEdgeLen)
	}
}

// collapseOneEdge finds an interior edge whose two adjoining triangles
// are within featureAngle of coplanar, collapses it by merging its
// first endpoint into its second (or the second into the first when the
// first is a boundary vertex), and reports whether it found one.
// Boundary vertices (BoundaryVertex[i] == true) are never removed, and
// no edge is ever split.
func (m *Mesh) collapseOneEdge(featureAngle float64) bool {
	adj := m.buildEdgeAdjacency()

	for e, tris := range adj {
		if len(tris) != 2 {
			continue // boundary or non-manifold edge: never collapsed
		}
		if m.BoundaryVertex[e[0]] && m.BoundaryVertex[e[1]] {
			continue
		}
		n0 := m.triangleNormal(m.Triangles[tris[0]])
		n1 := m.triangleNormal(m.Triangles[tris[1]])
		if angleBetween(n0, n1) > featureAngle {
			continue
		}

		from, to := e[0], e[1]
		if m.BoundaryVertex[from] {
			from, to = to, from
		}
		m.collapseEdge(from, to)
		return true
	}
	return false
}

// collapseEdge merges vertex `from` into vertex `to`: every triangle
// referencing `from` is rewritten to reference `to` instead, and any
// triangle that degenerates (two or more equal indices) is dropped.
func (m *Mesh) collapseEdge(from, to int) {
	kept := m.Triangles[:0]
	for _, t := range m.Triangles {
		nt := t
		for i := range nt {
			if nt[i] == from {
				nt[i] = to
			}
		}
		if nt[0] == nt[1] || nt[1] == nt[2] || nt[0] == nt[2] {
			continue
		}
		kept = append(kept, nt)
	}
	m.Triangles = kept
}

// subdivideLongEdges inserts a midpoint vertex (elevation averaged from
// its endpoints) into every edge longer than maxEdgeLen and
// re-triangulates the two triangles sharing it into four.
func (m *Mesh) subdivideLongEdges(maxEdgeLen float64) {
	changed := true
	for changed {
		changed = false
		adj := m.buildEdgeAdjacency()
		for e, tris := range adj {
			a, b := m.Vertices[e[0]], m.Vertices[e[1]]
			length := math.Hypot(b.X-a.X, b.Y-a.Y)
			if length <= maxEdgeLen {
				continue
			}
			mid := Point3{(a.X + b.X) / 2, (a.Y + b.Y) / 2, (a.Z + b.Z) / 2}
			midIdx := len(m.Vertices)
			m.Vertices = append(m.Vertices, mid)
			m.BoundaryVertex = append(m.BoundaryVertex, false)

			for _, ti := range tris {
				m.splitTriangleOnEdge(ti, e, midIdx)
			}
			changed = true
			break // adjacency invalidated; restart the scan
		}
	}
}

// splitTriangleOnEdge replaces triangle ti (which contains edge e) with
// two triangles sharing the new midpoint vertex midIdx.
func (m *Mesh) splitTriangleOnEdge(ti int, e edgeKey, midIdx int) {
	t := m.Triangles[ti]
	// Find the vertex opposite e.
	opp := -1
	for _, v := range t {
		if v != e[0] && v != e[1] {
			opp = v
			break
		}
	}
	if opp == -1 {
		return
	}
	m.Triangles[ti] = Triangle{e[0], midIdx, opp}
	m.Triangles = append(m.Triangles, Triangle{midIdx, e[1], opp})
}
