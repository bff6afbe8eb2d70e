package tin

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"cs2bim-go/internal/cserr"
)

// Point3 is a 3D point (x, y, elevation), already origin-reduced.
type Point3 struct {
	X, Y, Z float64
}

// RasterPoints holds the DTM sample points read from one or more xyz
// files, origin-reduced the same way the Area they will be clipped
// against is.
type RasterPoints struct {
	points []Point3
	origin [2]float64
}

// NewRasterPoints wraps pre-loaded points, reducing them by origin.
func NewRasterPoints(points []Point3, origin [2]float64) *RasterPoints {
	out := make([]Point3, len(points))
	for i, p := range points {
		out[i] = Point3{p.X - origin[0], p.Y - origin[1], p.Z}
	}
	return &RasterPoints{points: out, origin: origin}
}

// LoadXYZ reads a whitespace-delimited xyz point cloud file. The first
// line is a header row and is skipped.
func LoadXYZ(r io.Reader, origin [2]float64) (*RasterPoints, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var points []Point3
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header row
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, cserr.New(cserr.DataError, "tin.LoadXYZ", "malformed xyz row: expected 3 columns")
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, cserr.Wrap(cserr.DataError, "tin.LoadXYZ", err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, cserr.Wrap(cserr.DataError, "tin.LoadXYZ", err)
		}
		z, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, cserr.Wrap(cserr.DataError, "tin.LoadXYZ", err)
		}
		points = append(points, Point3{x, y, z})
	}
	if err := scanner.Err(); err != nil {
		return nil, cserr.Wrap(cserr.DataError, "tin.LoadXYZ", err)
	}
	return NewRasterPoints(points, origin), nil
}

// Merge appends other's points (already reduced by the same origin)
// into this RasterPoints, the way the terrain processor accumulates
// points across multiple overlapping DTM tiles.
func (r *RasterPoints) Merge(other *RasterPoints) {
	r.points = append(r.points, other.points...)
}

// Len returns the number of loaded points.
func (r *RasterPoints) Len() int { return len(r.points) }

// Within returns the subset of points that fall inside area, expanded
// by bufferDist — a bbox pre-filter first, so most points never reach
// the exact within-buffer predicate.
func (r *RasterPoints) Within(area *Area, bufferDist float64) []Point3 {
	minX, minY, maxX, maxY := boundsOf(area.Geometry())
	minX -= bufferDist
	minY -= bufferDist
	maxX += bufferDist
	maxY += bufferDist

	out := make([]Point3, 0, len(r.points))
	for _, p := range r.points {
		if p.X < minX || p.X > maxX || p.Y < minY || p.Y > maxY {
			continue
		}
		if area.WithinBuffer(orb.Point{p.X, p.Y}, bufferDist) {
			out = append(out, p)
		}
	}
	return out
}

func boundsOf(poly orb.Polygon) (minX, minY, maxX, maxY float64) {
	first := true
	for _, ring := range poly {
		for _, p := range ring {
			if first {
				minX, maxX = p[0], p[0]
				minY, maxY = p[1], p[1]
				first = false
				continue
			}
			if p[0] < minX {
				minX = p[0]
			}
			if p[0] > maxX {
				maxX = p[0]
			}
			if p[1] < minY {
				minY = p[1]
			}
			if p[1] > maxY {
				maxY = p[1]
			}
		}
	}
	return
}
