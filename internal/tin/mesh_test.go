package tin

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatGrid(n int, z float64) []Point3 {
	pts := make([]Point3, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, Point3{float64(i), float64(j), z})
		}
	}
	return pts
}

func TestNewMeshFromPoints_RejectsTooFewPoints(t *testing.T) {
	_, err := NewMeshFromPoints([]Point3{{0, 0, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestNewMeshFromPoints_TriangulatesGrid(t *testing.T) {
	mesh, err := NewMeshFromPoints(flatGrid(4, 10))
	require.NoError(t, err)
	assert.NotEmpty(t, mesh.Triangles)
	verts, tris := mesh.GetData()
	assert.Len(t, verts, 16)
	assert.NotEmpty(t, tris)
}

func TestMesh_ProjectPointsOnSurface_FlatPlane(t *testing.T) {
	mesh, err := NewMeshFromPoints(flatGrid(4, 7.5))
	require.NoError(t, err)

	projected, err := mesh.ProjectPointsOnSurface([]orb.Point{{1.2, 1.3}, {2.0, 2.0}})
	require.NoError(t, err)
	require.Len(t, projected, 2)
	for _, p := range projected {
		assert.InDelta(t, 7.5, p.Z, 1e-6)
	}
}

func TestMesh_ProjectPointsOnSurface_RetriesWithOffsets(t *testing.T) {
	mesh, err := NewMeshFromPoints(flatGrid(4, 2))
	require.NoError(t, err)

	// Just outside the hull: the direct ray misses, the first +x offset
	// of the retry ladder lands back on the surface.
	projected, err := mesh.ProjectPointsOnSurface([]orb.Point{{-0.000005, 1.5}})
	require.NoError(t, err)
	require.Len(t, projected, 1)
	assert.InDelta(t, 2.0, projected[0].Z, 1e-9)
}

func TestMesh_ProjectPointsOnSurface_FailsBeyondOffsetCap(t *testing.T) {
	mesh, err := NewMeshFromPoints(flatGrid(4, 2))
	require.NoError(t, err)

	_, err = mesh.ProjectPointsOnSurface([]orb.Point{{-1, 1.5}})
	require.Error(t, err)
}

func TestMesh_ProjectPointsOnSurface_RejectsDuplicates(t *testing.T) {
	mesh, err := NewMeshFromPoints(flatGrid(4, 0))
	require.NoError(t, err)

	_, err = mesh.ProjectPointsOnSurface([]orb.Point{{1, 1}, {1, 1}})
	assert.ErrorIs(t, err, ErrDuplicatePoints)
}

func TestMesh_Decimate_ReducesFlatPlaneToFewTriangles(t *testing.T) {
	mesh, err := NewMeshFromPoints(flatGrid(6, 3))
	require.NoError(t, err)
	before := len(mesh.Triangles)

	mesh.Decimate(0.1, 1.0, 0)

	assert.Less(t, len(mesh.Triangles), before, "a perfectly flat surface should collapse to far fewer triangles")
	assert.NotEmpty(t, mesh.Triangles)
}

func TestMesh_CheckAreaConsistency(t *testing.T) {
	area, err := NewAreaFromWKT("POLYGON((0 0, 3 0, 3 3, 0 3, 0 0))", [2]float64{})
	require.NoError(t, err)

	mesh, err := NewMeshFromPoints(flatGrid(4, 1))
	require.NoError(t, err)

	ok, diff := mesh.CheckAreaConsistency(area, 0.5)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, diff, 0.0)
}

func TestClipMeshByArea_KeepsOnlyTrianglesInsideArea(t *testing.T) {
	area, err := NewAreaFromWKT("POLYGON((1 1, 4 1, 4 4, 1 4, 1 1))", [2]float64{})
	require.NoError(t, err)

	raster := NewRasterPoints(flatGrid(7, 2), [2]float64{})

	mesh, err := ClipMeshByArea(raster, area, 1.0)
	require.NoError(t, err)
	require.NotEmpty(t, mesh.Triangles)

	for _, tr := range mesh.Triangles {
		for _, idx := range tr {
			v := mesh.Vertices[idx]
			assert.True(t, area.WithinBuffer(orb.Point{v.X, v.Y}, filterBufferDist*2),
				"vertex (%v,%v) should lie within the clip area", v.X, v.Y)
		}
	}
}

func TestClipMeshByArea_NoCentroidInsideHole(t *testing.T) {
	wkt := "POLYGON((0 0,10 0,10 10,0 10,0 0),(2 2,8 2,8 8,2 8,2 2))"
	area, err := NewAreaFromWKT(wkt, [2]float64{})
	require.NoError(t, err)

	raster := NewRasterPoints(flatGrid(11, 5), [2]float64{})

	mesh, err := ClipMeshByArea(raster, area, 1.0)
	require.NoError(t, err)
	require.NotEmpty(t, mesh.Triangles)

	hole := area.Geometry()[1]
	for _, tr := range mesh.Triangles {
		a, b, c := mesh.Vertices[tr[0]], mesh.Vertices[tr[1]], mesh.Vertices[tr[2]]
		centroid := orb.Point{(a.X + b.X + c.X) / 3, (a.Y + b.Y + c.Y) / 3}
		assert.False(t, pointInRing(centroid, hole), "face centroid (%v,%v) lies inside the hole", centroid[0], centroid[1])
	}
}

func TestClipMeshByArea_AreaConserved(t *testing.T) {
	area, err := NewAreaFromWKT("POLYGON((0 0,10 0,10 10,0 10,0 0))", [2]float64{})
	require.NoError(t, err)

	raster := NewRasterPoints(flatGrid(14, 5), [2]float64{})

	mesh, err := ClipMeshByArea(raster, area, 1.0)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, mesh.Area2D(), 0.1)
	for _, v := range mesh.Vertices {
		assert.InDelta(t, 5.0, v.Z, 1e-9)
	}
}

func TestLoadXYZ_SkipsHeaderRow(t *testing.T) {
	data := "x y z\n0 0 1.5\n1 0 1.6\n0 1 1.7\n"
	raster, err := LoadXYZ(strings.NewReader(data), [2]float64{})
	require.NoError(t, err)
	assert.Equal(t, 3, raster.Len())
}
