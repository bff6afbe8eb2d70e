package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validDocument(sqlPath string) string {
	return `stac:
  endpoint: https://catalog.example/search
ifc:
  author: tester
  application_name: cs2bim-go
  project_name: test
  geo_referencing: map_conversion
  projected_crs_name: EPSG:2056
  feature_classes:
    - name: terrain
      sql_file: ` + sqlPath + `
      entity_type: geographic-element
      attributes:
        - name: Name
          column: name
`
}

func TestLoad_ReadsDocumentAndStatement(t *testing.T) {
	dir := t.TempDir()
	sqlPath := filepath.Join(dir, "terrain.sql")
	require.NoError(t, os.WriteFile(sqlPath, []byte("select wkt from terrain where ST_Intersects(geom, ST_GeomFromText($1))"), 0o644))

	cfg, err := Load(writeConfigFile(t, dir, validDocument(sqlPath)))
	require.NoError(t, err)

	require.Len(t, cfg.Ifc.FeatureClasses, 1)
	fc := cfg.Ifc.FeatureClasses[0]
	assert.Equal(t, "terrain", fc.Name)
	assert.Contains(t, fc.SQL, "select wkt from terrain")
	assert.Equal(t, "Name", fc.Attributes[0].Name)

	// defaults fill everything the document left out
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 1.0, cfg.Tin.GridSize)
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	doc := validDocument("unused.sql") + "not_a_real_section:\n  foo: 1\n"

	_, err := Load(writeConfigFile(t, dir, doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_a_real_section")
}

func TestLoad_FailsOnMissingStatementFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeConfigFile(t, dir, validDocument(filepath.Join(dir, "missing.sql"))))
	require.Error(t, err)
}

func TestValidate_RequiresStacEndpointWithFeatureClasses(t *testing.T) {
	cfg := Config{
		Ifc: IfcConfig{
			GeoReferencing:              GeoReferencingLocalOrigin,
			TriangulationRepresentation: RepresentationTessellation,
			FeatureClasses: []FeatureClassConfig{
				{Name: "terrain", SQLFile: "terrain.sql", EntityType: "geographic-element"},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stac.endpoint")
}

func TestValidate_BuildingClassRequiresIdentifierPathAndParts(t *testing.T) {
	cfg := Config{
		Stac: StacConfig{Endpoint: "https://catalog.example"},
		Ifc: IfcConfig{
			GeoReferencing:              GeoReferencingLocalOrigin,
			TriangulationRepresentation: RepresentationTessellation,
			FeatureClasses: []FeatureClassConfig{
				{Name: "buildings", SQLFile: "buildings.sql", IsBuildingClass: true},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identifier_path")
}

func TestValidate_MapConversionRequiresCRSName(t *testing.T) {
	cfg := Config{
		Stac: StacConfig{Endpoint: "https://catalog.example"},
		Ifc: IfcConfig{
			GeoReferencing:              GeoReferencingMapConv,
			TriangulationRepresentation: RepresentationTessellation,
			FeatureClasses: []FeatureClassConfig{
				{Name: "terrain", SQLFile: "terrain.sql"},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "projected_crs_name")
}

func TestValidate_RejectsUnknownRepresentation(t *testing.T) {
	cfg := Config{
		Stac: StacConfig{Endpoint: "https://catalog.example"},
		Ifc: IfcConfig{
			GeoReferencing:              GeoReferencingLocalOrigin,
			TriangulationRepresentation: "point-cloud",
			FeatureClasses: []FeatureClassConfig{
				{Name: "terrain", SQLFile: "terrain.sql"},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "triangulation_representation_type")
}
