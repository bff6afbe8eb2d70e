package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cs2bim-go/internal/config"
	"cs2bim-go/internal/model"
)

func baseConfig() *config.IfcConfig {
	return &config.IfcConfig{
		Author:                      "cs2bim-go",
		ApplicationName:             "cs2bim-go",
		ApplicationVersion:          "0.1",
		ProjectName:                 "test-project",
		GeoReferencing:              config.GeoReferencingLocalOrigin,
		TriangulationRepresentation: config.RepresentationTessellation,
		FeatureClasses: []config.FeatureClassConfig{
			{Name: "terrain", EntityType: "geographic-element", ColorRGB: [3]float64{0.5, 0.5, 0.5}},
		},
	}
}

func flatTriangleElement() *model.Element {
	e := model.NewElement("geographic-element")
	e.Attributes["Name"] = "plot-1"
	e.Attributes["egid"] = "12345" // no Egid attribute on IfcGeographicElement: must be dropped
	e.SetProperty("Terrain", "source", "dtm")
	e.Groups = []string{"site.terrain"}
	e.Geometry = model.TriangulationGeometry(model.Triangulation{
		Triangles: [][3]model.Point3{
			{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		},
	})
	return e
}

func TestAssembler_Assemble_TessellationProducesValidSPF(t *testing.T) {
	cfg := baseConfig()
	a := New(cfg)

	m := model.New("test-model", "IFC4", model.Origin{East: 10, North: 20, Height: 0})
	m.AddElement("terrain", flatTriangleElement())

	out, err := a.Assemble(m)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ISO-10303-21;"))
	assert.Contains(t, out, "FILE_SCHEMA(('IFC4'));")
	assert.Contains(t, out, "IFCTRIANGULATEDFACESET")
	assert.Contains(t, out, "IFCGEOGRAPHICELEMENT")
	assert.Contains(t, out, "'plot-1'")
	assert.NotContains(t, out, "12345", "attributes with no matching entity attribute must be dropped")
	assert.Contains(t, out, "IFCPROPERTYSET")
	assert.Contains(t, out, "IFCGROUP")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "END-ISO-10303-21;"))
}

func TestAssembler_Assemble_BrepRepresentation(t *testing.T) {
	cfg := baseConfig()
	cfg.TriangulationRepresentation = config.RepresentationBrep
	a := New(cfg)

	m := model.New("test-model", "IFC4", model.Origin{})
	m.AddElement("terrain", flatTriangleElement())

	out, err := a.Assemble(m)
	require.NoError(t, err)
	assert.Contains(t, out, "IFCFACETEDBREP")
	assert.Contains(t, out, "IFCFACE(")
}

func TestAssembler_Assemble_UnknownEntityKindFails(t *testing.T) {
	cfg := baseConfig()
	cfg.FeatureClasses[0].EntityType = "not-a-real-kind"
	a := New(cfg)

	m := model.New("test-model", "IFC4", model.Origin{})
	m.AddElement("terrain", flatTriangleElement())

	_, err := a.Assemble(m)
	require.Error(t, err)
}

func TestAssembler_Assemble_MapConversionGeoReferencing(t *testing.T) {
	cfg := baseConfig()
	cfg.GeoReferencing = config.GeoReferencingMapConv
	cfg.ProjectedCRSName = "EPSG:2056"
	a := New(cfg)

	m := model.New("test-model", "IFC4", model.Origin{East: 2600000, North: 1200000})
	m.AddElement("terrain", flatTriangleElement())

	out, err := a.Assemble(m)
	require.NoError(t, err)
	assert.Contains(t, out, "IFCMAPCONVERSION")
	assert.Contains(t, out, "IFCPROJECTEDCRS")
}
