package citygml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cs2bim-go/internal/model"
)

const sampleDoc = `<?xml version="1.0"?>
<CityModel>
  <cityObjectMember>
    <Building>
      <id>B-1</id>
      <function>1010</function>
      <boundedBy>
        <WallSurface>
          <lod2MultiSurface>
            <MultiSurface>
              <surfaceMember>
                <Polygon>
                  <exterior>
                    <LinearRing>
                      <posList>0 0 0 10 0 0 10 0 5 0 0 5 0 0 0</posList>
                    </LinearRing>
                  </exterior>
                </Polygon>
              </surfaceMember>
            </MultiSurface>
          </lod2MultiSurface>
        </WallSurface>
      </boundedBy>
    </Building>
  </cityObjectMember>
</CityModel>`

func TestProcessor_ProcessDocument_MatchesAndDecodes(t *testing.T) {
	classes := []ClassConfig{
		{
			FeatureClass:   "buildings",
			IdentifierPath: "id",
			Attributes:     []AttributePath{{Name: "ObjectType", Path: "function"}},
			Parts: []PartConfig{
				{EntityKind: "wall", PosPath: "boundedBy.WallSurface.lod2MultiSurface.MultiSurface.surfaceMember.Polygon.exterior.LinearRing.posList"},
			},
		},
	}
	p := NewProcessor(classes, model.Origin{})

	m := model.New("test", "IFC4", model.Origin{})
	err := p.ProcessDocument(strings.NewReader(sampleDoc), m, map[string]bool{"B-1": true})
	require.NoError(t, err)

	buildings := m.Buildings("buildings")
	require.Len(t, buildings, 1)
	assert.Equal(t, "B-1", buildings[0].ID)
	require.Len(t, buildings[0].Parts, 1)
	assert.Len(t, buildings[0].Parts[0].Faces, 1)
	assert.Len(t, buildings[0].Parts[0].Faces[0].Points, 5)
	assert.Equal(t, "1010", buildings[0].Parts[0].Attributes["ObjectType"])
}

func TestProcessor_ProcessDocument_SkipsUnwantedID(t *testing.T) {
	classes := []ClassConfig{{FeatureClass: "buildings", IdentifierPath: "id"}}
	p := NewProcessor(classes, model.Origin{})

	m := model.New("test", "IFC4", model.Origin{})
	err := p.ProcessDocument(strings.NewReader(sampleDoc), m, map[string]bool{"other": true})
	require.NoError(t, err)
	assert.Empty(t, m.Buildings("buildings"))
}

func TestParsePos_RejectsNonTriple(t *testing.T) {
	_, err := ParsePos("1 2 3 4")
	assert.Error(t, err)
}
