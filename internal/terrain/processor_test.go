package terrain

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cs2bim-go/internal/geo"
	"cs2bim-go/internal/geodb"
	"cs2bim-go/internal/model"
)

type fakeDB struct {
	rows     []geodb.Row
	envelope geodb.BoundingBox
	bboxWKTs [][]string
}

func (f *fakeDB) Query(ctx context.Context, sqlText, polygonWKT string) ([]geodb.Row, error) {
	return f.rows, nil
}

func (f *fakeDB) CollectBoundingBox(ctx context.Context, wkts []string) (geodb.BoundingBox, error) {
	f.bboxWKTs = append(f.bboxWKTs, wkts)
	return f.envelope, nil
}

const flatXYZ = "x y z\n0 0 5\n1 0 5\n0 1 5\n1 1 5\n"

func TestProcessor_ProcessClass_FlatSquare(t *testing.T) {
	db := &fakeDB{
		rows: []geodb.Row{
			{WKT: "POLYGON((0 0,1 0,1 1,0 1,0 0))", Columns: map[string]string{"name": "plot-1"}},
		},
		envelope: geodb.BoundingBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
	}
	fetch := func(ctx context.Context, bbox geo.BoundingBox, gridSize float64) ([]io.Reader, error) {
		return []io.Reader{strings.NewReader(flatXYZ)}, nil
	}

	log := logrus.NewEntry(logrus.New())
	p := NewProcessor(db, fetch, log, [2]float64{})

	cfg := ClassConfig{
		FeatureClass:   "terrain",
		SQL:            "select",
		EntityKind:     "geographic-element",
		Attributes:     []AttributeMapping{{Name: "Name", Column: "name"}},
		GridSize:       0.5,
		MaxHeightError: 0.1,
	}

	m := model.New("test", "IFC4", model.Origin{})
	err := p.ProcessClass(context.Background(), cfg, "POLYGON((0 0,1 0,1 1,0 1,0 0))", m)
	require.NoError(t, err)

	elements := m.Elements("terrain")
	require.Len(t, elements, 1)
	assert.Equal(t, "plot-1", elements[0].Attributes["Name"])
	require.Len(t, db.bboxWKTs, 1)
	assert.Equal(t, []string{"POLYGON((0 0,1 0,1 1,0 1,0 0))"}, db.bboxWKTs[0])
}

func TestProcessor_ProcessClass_EmptyCoverageSucceeds(t *testing.T) {
	db := &fakeDB{rows: nil}
	fetch := func(ctx context.Context, bbox geo.BoundingBox, gridSize float64) ([]io.Reader, error) {
		return nil, nil
	}
	log := logrus.NewEntry(logrus.New())
	p := NewProcessor(db, fetch, log, [2]float64{})

	cfg := ClassConfig{FeatureClass: "terrain", SQL: "select", GridSize: 1, MaxHeightError: 0.1}
	m := model.New("test", "IFC4", model.Origin{})
	err := p.ProcessClass(context.Background(), cfg, "POLYGON((0 0,1 0,1 1,0 1,0 0))", m)
	require.NoError(t, err)
	assert.Empty(t, m.Elements("terrain"))
}
