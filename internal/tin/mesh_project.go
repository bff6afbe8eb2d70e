package tin

import (
	"math"

	"github.com/paulmach/orb"

	"cs2bim-go/internal/cserr"
)

// offset ladder for ProjectPointsOnSurface: start at 1e-5, step by
// 1e-5, give up past 1e-4. Hitting exactly on an edge or vertex makes
// the ray-triangle intersection numerically unstable, so a query point
// that fails is nudged by a tiny amount and retried.
const (
	projectOffsetStart = 1e-5
	projectOffsetStep  = 1e-5
	projectOffsetCap   = 1e-4
)

// ProjectPointsOnSurface projects each 2D point vertically onto the
// mesh surface, returning the 3D point where a vertical ray through
// (x, y) first hits a triangle. Output order matches input order.
func (m *Mesh) ProjectPointsOnSurface(points []orb.Point) ([]Point3, error) {
	if hasDuplicates(points) {
		return nil, ErrDuplicatePoints
	}

	out := make([]Point3, len(points))
	for i, p := range points {
		z, err := m.projectOne(p)
		if err != nil {
			return nil, err
		}
		out[i] = Point3{p[0], p[1], z}
	}
	return out, nil
}

func hasDuplicates(points []orb.Point) bool {
	seen := make(map[orb.Point]struct{}, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			return true
		}
		seen[p] = struct{}{}
	}
	return false
}

func (m *Mesh) projectOne(p orb.Point) (float64, error) {
	if z, ok := m.rayTriangleVertical(p); ok {
		return z, nil
	}
	for offset := projectOffsetStart; offset <= projectOffsetCap; offset += projectOffsetStep {
		candidates := []orb.Point{
			{p[0] + offset, p[1]},
			{p[0] - offset, p[1]},
			{p[0], p[1] + offset},
			{p[0], p[1] - offset},
		}
		for _, q := range candidates {
			if z, ok := m.rayTriangleVertical(q); ok {
				return z, nil
			}
		}
	}
	return 0, cserr.New(cserr.NumericalIssue, "tin.Mesh.ProjectPointsOnSurface", "vertical ray did not hit the mesh within the offset retry ladder")
}

// rayTriangleVertical finds the triangle under (x, y), if any, and
// returns the mesh's elevation there via barycentric interpolation.
func (m *Mesh) rayTriangleVertical(p orb.Point) (float64, bool) {
	for _, t := range m.Triangles {
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		if u, v, w, ok := barycentric(p, a, b, c); ok {
			return u*a.Z + v*b.Z + w*c.Z, true
		}
	}
	return 0, false
}

// barycentric returns the barycentric coordinates of p with respect to
// triangle (a, b, c) projected onto the xy plane, and whether p lies
// inside (or on) that triangle.
func barycentric(p orb.Point, a, b, c Point3) (u, v, w float64, ok bool) {
	v0x, v0y := b.X-a.X, b.Y-a.Y
	v1x, v1y := c.X-a.X, c.Y-a.Y
	v2x, v2y := p[0]-a.X, p[1]-a.Y

	d00 := v0x*v0x + v0y*v0y
	d01 := v0x*v1x + v0y*v1y
	d11 := v1x*v1x + v1y*v1y
	d20 := v2x*v0x + v2y*v0y
	d21 := v2x*v1x + v2y*v1y

	denom := d00*d11 - d01*d01
	if math.Abs(denom) < 1e-15 {
		return 0, 0, 0, false
	}

	vv := (d11*d20 - d01*d21) / denom
	ww := (d00*d21 - d01*d20) / denom
	uu := 1 - vv - ww

	const eps = -1e-9
	if uu < eps || vv < eps || ww < eps {
		return 0, 0, 0, false
	}
	return uu, vv, ww, true
}
