package tin

import (
	"math"
	"sort"

	"github.com/fogleman/delaunay"
	"github.com/paulmach/orb"

	"cs2bim-go/internal/cserr"
)

// Triangle names the three mesh vertex indices of one face.
type Triangle [3]int

// Mesh is a 2.5D triangulated surface: planar (x, y) vertices each
// carrying an elevation, triangulated in the plane. All operations
// (clipping, slicing, decimation, ray projection) work on this one
// representation.
type Mesh struct {
	Vertices  []Point3
	Triangles []Triangle
	// BoundaryVertex marks vertices that must never be removed by
	// decimation or split by edge collapse — set by ClipMeshByArea for
	// vertices introduced from the area boundary.
	BoundaryVertex []bool
}

// ErrEmptyInput is returned when fewer than three non-collinear points
// are supplied to NewMeshFromPoints.
var ErrEmptyInput = cserr.New(cserr.BadGeometry, "tin.NewMeshFromPoints", "fewer than three non-collinear points")

// ErrDuplicatePoints is returned by ProjectPointsOnSurface when the
// input contains duplicate (x, y) pairs; callers must deduplicate
// before projecting.
var ErrDuplicatePoints = cserr.New(cserr.BadGeometry, "tin.ProjectPointsOnSurface", "duplicate 2D input points")

// NewMeshFromPoints triangulates points in the (x, y) plane via
// unconstrained 2D Delaunay triangulation, carrying z as a vertex
// attribute.
func NewMeshFromPoints(points []Point3) (*Mesh, error) {
	if len(points) < 3 {
		return nil, ErrEmptyInput
	}

	dpoints := make([]delaunay.Point, len(points))
	for i, p := range points {
		dpoints[i] = delaunay.Point{X: p.X, Y: p.Y}
	}

	tri, err := delaunay.Triangulate(dpoints)
	if err != nil {
		return nil, cserr.Wrap(cserr.BadGeometry, "tin.NewMeshFromPoints", err)
	}
	if len(tri.Triangles) == 0 {
		return nil, ErrEmptyInput
	}

	triangles := make([]Triangle, 0, len(tri.Triangles)/3)
	for i := 0; i+2 < len(tri.Triangles); i += 3 {
		triangles = append(triangles, Triangle{tri.Triangles[i], tri.Triangles[i+1], tri.Triangles[i+2]})
	}

	return &Mesh{
		Vertices:       append([]Point3(nil), points...),
		Triangles:      triangles,
		BoundaryVertex: make([]bool, len(points)),
	}, nil
}

// GetData returns the mesh's vertices and triangles.
func (m *Mesh) GetData() ([]Point3, []Triangle) {
	return m.Vertices, m.Triangles
}

// Area2D returns the total planar area covered by the mesh's
// triangles, used by CheckAreaConsistency.
func (m *Mesh) Area2D() float64 {
	var total float64
	for _, t := range m.Triangles {
		total += triangleArea2D(m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]])
	}
	return total
}

func triangleArea2D(a, b, c Point3) float64 {
	return math.Abs((b.X-a.X)*(c.Y-a.Y)-(c.X-a.X)*(b.Y-a.Y)) / 2
}

// CheckAreaConsistency compares the mesh's planar area against the
// polygon's and reports whether they agree within threshold. This is a
// diagnostic, not a hard invariant: sparse raster coverage at the edge
// of an area is expected and should not fail the whole job.
func (m *Mesh) CheckAreaConsistency(area *Area, threshold float64) (bool, float64) {
	diff := math.Abs(m.Area2D() - area.Area2D())
	return diff < threshold, diff
}

// edgeKey is an undirected vertex-index pair used as a map key.
type edgeKey [2]int

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// buildEdgeAdjacency maps each undirected edge to the triangles that
// share it and to its two endpoint vertex indices.
func (m *Mesh) buildEdgeAdjacency() map[edgeKey][]int {
	adj := make(map[edgeKey][]int)
	for ti, t := range m.Triangles {
		edges := [3]edgeKey{
			newEdgeKey(t[0], t[1]),
			newEdgeKey(t[1], t[2]),
			newEdgeKey(t[2], t[0]),
		}
		for _, e := range edges {
			adj[e] = append(adj[e], ti)
		}
	}
	return adj
}

// triangleNormal returns the (unnormalized) normal of a triangle in 3D,
// used by Decimate's feature-angle test.
func (m *Mesh) triangleNormal(t Triangle) [3]float64 {
	a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
	ux, uy, uz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	vx, vy, vz := c.X-a.X, c.Y-a.Y, c.Z-a.Z
	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx
	length := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if length == 0 {
		return [3]float64{0, 0, 1}
	}
	return [3]float64{nx / length, ny / length, nz / length}
}

func angleBetween(a, b [3]float64) float64 {
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot) * 180 / math.Pi
}

// sortByDistance sorts a slice of points by distance from start.
func sortByDistance(points []orb.Point, start orb.Point) {
	sort.Slice(points, func(i, j int) bool {
		return dist2(start, points[i]) < dist2(start, points[j])
	})
}
