// Package geo holds the small cross-cutting geometry helpers shared by
// multiple pipeline stages: the WGS84 bounding box the catalog client
// queries with, and its approximate LV95 (EPSG:2056) projected-plane
// conversion.
package geo

// BoundingBox is a 2D envelope in WGS84 degrees: south/west/north/east.
type BoundingBox struct {
	South, West, North, East float64
}

// The false origin and the polynomial coefficients below are the
// swisstopo "approximate formulas" for LV95 -> WGS84, adequate for
// bbox discovery queries but not for survey-grade geodesy.
const (
	lv95FalseEastingE  = 2600000.0
	lv95FalseNorthingN = 1200000.0
)

// FromLV95Envelope converts a projected-plane envelope expressed in
// LV95 (EPSG:2056) easting/northing into a WGS84 BoundingBox, the
// re-projection required before querying the STAC catalog.
func FromLV95Envelope(minE, minN, maxE, maxN float64) BoundingBox {
	swLat, swLon := lv95ToWGS84(minE, minN)
	neLat, neLon := lv95ToWGS84(maxE, maxN)
	return BoundingBox{South: swLat, West: swLon, North: neLat, East: neLon}
}

// lv95ToWGS84 applies Swisstopo's approximate formula (civilian
// precision, valid within Switzerland) for converting LV95 coordinates
// to WGS84 latitude/longitude degrees.
func lv95ToWGS84(e, n float64) (lat, lon float64) {
	y := (e - lv95FalseEastingE) / 1000000.0
	x := (n - lv95FalseNorthingN) / 1000000.0

	lonSec := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y

	latSec := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x

	lon = lonSec * 100.0 / 36.0
	lat = latSec * 100.0 / 36.0
	return lat, lon
}

// Array returns the box as [west, south, east, north], the ordering
// stac.Client.FetchAssets expects for its bbox parameter.
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.West, b.South, b.East, b.North}
}
