package tin

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAreaFromWKT_NormalizesOrientationAndOrigin(t *testing.T) {
	// Exterior ring given clockwise on purpose; Area must flip it to CCW.
	square := "POLYGON((0 0, 0 10, 10 10, 10 0, 0 0))"

	area, err := NewAreaFromWKT(square, [2]float64{5, 5})
	require.NoError(t, err)

	ext := area.ExteriorPoints()
	require.Len(t, ext, 4)
	assert.Greater(t, signedArea(append(orb.Ring{}, ext...)), 0.0, "exterior ring must be CCW after normalization")

	for _, p := range ext {
		assert.InDelta(t, 5.0, math.Abs(p[0]), 1e-9)
		assert.InDelta(t, 5.0, math.Abs(p[1]), 1e-9)
	}
}

func TestNewAreaFromWKT_RejectsNonPolygon(t *testing.T) {
	_, err := NewAreaFromWKT("POINT(0 0)", [2]float64{})
	require.Error(t, err)
}

func TestNewAreaFromWKT_RejectsUnclosedRing(t *testing.T) {
	_, err := NewAreaFromWKT("POLYGON((0 0,10 0,10 10,0 10))", [2]float64{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "not closed")
}

func TestNewAreaFromWKT_RejectsSelfIntersection(t *testing.T) {
	// Bowtie: exterior ring crosses itself.
	_, err := NewAreaFromWKT("POLYGON((0 0, 10 10, 10 0, 0 10, 0 0))", [2]float64{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "self-intersect")
}

func TestArea_ContainsAndBuffer(t *testing.T) {
	area, err := NewAreaFromWKT("POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))", [2]float64{})
	require.NoError(t, err)

	assert.True(t, area.Contains(orb.Point{5, 5}))
	assert.False(t, area.Contains(orb.Point{15, 5}))

	assert.True(t, area.WithinBuffer(orb.Point{10.2, 5}, 0.5))
	assert.False(t, area.WithinBuffer(orb.Point{11, 5}, 0.5))
}

func TestArea_WithHole(t *testing.T) {
	// Hole given counter-clockwise on purpose; Area must flip it to CW.
	wkt := "POLYGON((0 0, 10 0, 10 10, 0 10, 0 0), (4 4, 4 6, 6 6, 6 4, 4 4))"
	area, err := NewAreaFromWKT(wkt, [2]float64{})
	require.NoError(t, err)

	assert.Equal(t, 1, area.NumInteriors())
	assert.False(t, area.Contains(orb.Point{5, 5}), "point inside the hole must not be contained")
	assert.True(t, area.Contains(orb.Point{1, 1}))
}

func TestArea_Area2D(t *testing.T) {
	area, err := NewAreaFromWKT("POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))", [2]float64{})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, area.Area2D(), 1e-9)
}
