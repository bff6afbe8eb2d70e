// Package model holds the in-memory object graph a job accumulates
// between fetching sources and handing off to the assembler: elements,
// buildings, and the named, schema-versioned Model container that
// groups them by feature class.
package model

// Point3 mirrors tin.Point3 without importing the tin package, so the
// model graph stays independent of the mesh engine's internal types —
// only coordinates cross the package boundary, not triangulation state.
type Point3 struct {
	X, Y, Z float64
}

// Triangulation is an ordered list of 3D triangles, produced from
// Mesh.GetData() by the terrain processor.
type Triangulation struct {
	Triangles [][3]Point3
}

// Polygon is one planar face: an ordered list of 3D coordinates,
// implicitly closed.
type Polygon struct {
	Points []Point3
}

// GeometryKind tags which variant a Geometry value carries.
type GeometryKind string

const (
	GeometryTriangulation GeometryKind = "triangulation"
	GeometryPolygonSet    GeometryKind = "polygon_set"
)

// Geometry is a tagged variant: a Triangulation (terrain) or a set of
// oriented polygons (buildings). The assembler switches on Kind rather
// than dispatching through an interface, since the two variants share
// no behavior beyond being assembled.
type Geometry struct {
	Kind          GeometryKind
	Triangulation Triangulation
	Polygons      []Polygon
}

// TriangulationGeometry wraps a Triangulation as a Geometry.
func TriangulationGeometry(t Triangulation) Geometry {
	return Geometry{Kind: GeometryTriangulation, Triangulation: t}
}

// PolygonSetGeometry wraps a set of polygons as a Geometry.
func PolygonSetGeometry(polys []Polygon) Geometry {
	return Geometry{Kind: GeometryPolygonSet, Polygons: polys}
}

// Element is the semantic unit attached to the model's terrain
// feature-class lists: an entity kind, attributes, property sets,
// group paths, and geometry.
type Element struct {
	EntityKind string
	Attributes map[string]string
	Properties map[string]map[string]string
	Groups     []string
	Geometry   Geometry
}

// NewElement builds an Element with initialized maps.
func NewElement(entityKind string) *Element {
	return &Element{
		EntityKind: entityKind,
		Attributes: make(map[string]string),
		Properties: make(map[string]map[string]string),
	}
}

// SetProperty records value under propertySet[key], creating the
// property set if this is its first entry.
func (e *Element) SetProperty(propertySet, key, value string) {
	set, ok := e.Properties[propertySet]
	if !ok {
		set = make(map[string]string)
		e.Properties[propertySet] = set
	}
	set[key] = value
}

// BuildingPart is one decoded multi-surface member of a Building: an
// entity kind, a display color, attributes/properties, and its faces.
type BuildingPart struct {
	EntityKind string
	ColorRGB   [3]float64
	Attributes map[string]string
	Properties map[string]map[string]string
	Faces      []Polygon
}

// Building owns an ordered list of BuildingParts decoded from one
// CityGML <Building> element.
type Building struct {
	ID    string
	Parts []BuildingPart
}

// Origin is the local coordinate base (east, north, height) a Model is
// built against; every Area/RasterPoints reduction and every CityGML
// `pos` coordinate is subtracted by this same triple.
type Origin struct {
	East, North, Height float64
}

// Model is the named, schema-versioned container the job fills:
// feature-class name -> ordered Elements (terrain), and feature-class
// name -> ordered Buildings.
type Model struct {
	Name       string
	IfcVersion string
	Origin     Origin

	terrain   map[string][]*Element
	buildings map[string][]*Building
	order     []string // insertion order of feature-class keys, for deterministic assembly
}

// New builds an empty Model.
func New(name, ifcVersion string, origin Origin) *Model {
	return &Model{
		Name:       name,
		IfcVersion: ifcVersion,
		Origin:     origin,
		terrain:    make(map[string][]*Element),
		buildings:  make(map[string][]*Building),
	}
}

func (m *Model) touch(featureClass string) {
	if _, ok := m.terrain[featureClass]; ok {
		return
	}
	if _, ok := m.buildings[featureClass]; ok {
		return
	}
	m.order = append(m.order, featureClass)
}

// AddElement appends element to the terrain list for featureClass.
func (m *Model) AddElement(featureClass string, element *Element) {
	m.touch(featureClass)
	m.terrain[featureClass] = append(m.terrain[featureClass], element)
}

// AddBuilding appends building to the building list for featureClass.
func (m *Model) AddBuilding(featureClass string, building *Building) {
	m.touch(featureClass)
	m.buildings[featureClass] = append(m.buildings[featureClass], building)
}

// FeatureClasses returns every feature-class key touched, in the order
// it was first populated — the order ModelAssembler walks to produce
// deterministic spatial-structure and group output.
func (m *Model) FeatureClasses() []string {
	return append([]string(nil), m.order...)
}

// Elements returns the terrain elements for featureClass.
func (m *Model) Elements(featureClass string) []*Element {
	return m.terrain[featureClass]
}

// Buildings returns the buildings for featureClass.
func (m *Model) Buildings(featureClass string) []*Building {
	return m.buildings[featureClass]
}
