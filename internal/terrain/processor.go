// Package terrain composes Area x RasterPoints x Mesh per configured
// feature class, turning spatial-database rows and fetched DTM assets
// into model.Elements.
package terrain

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"cs2bim-go/internal/cserr"
	"cs2bim-go/internal/geo"
	"cs2bim-go/internal/geodb"
	"cs2bim-go/internal/model"
	"cs2bim-go/internal/tin"
)

// AttributeMapping names one result column and the IFC attribute it
// feeds.
type AttributeMapping struct {
	Name   string
	Column string
}

// PropertyMapping names one result column and the property-set slot it
// feeds.
type PropertyMapping struct {
	Name   string
	Set    string
	Column string
}

// ClassConfig configures one terrain feature class: the query used to
// fetch candidate elements, the entity kind/attributes/properties
// every resulting Element carries, and the TIN quality parameters.
type ClassConfig struct {
	FeatureClass   string
	SQL            string
	EntityKind     string
	Attributes     []AttributeMapping
	Properties     []PropertyMapping
	GroupCols      []string
	GridSize       float64
	MaxHeightError float64
	MaxEdgeLen     float64
}

// AssetFetcher resolves the DTM assets covering a bounding box; it is
// supplied by the caller so this package never imports stac directly,
// matching the layering the queue runner already uses for GenerateFunc.
type AssetFetcher func(ctx context.Context, bbox geo.BoundingBox, gridSize float64) ([]io.Reader, error)

// SpatialDB is the subset of geodb.Client this processor depends on,
// kept as an interface so tests can supply a fake instead of a live
// connection.
type SpatialDB interface {
	Query(ctx context.Context, sqlText, polygonWKT string) ([]geodb.Row, error)
	CollectBoundingBox(ctx context.Context, wkts []string) (geodb.BoundingBox, error)
}

// Processor runs the terrain pipeline for every configured feature
// class against one job's spatial database rows and DTM assets.
type Processor struct {
	db     SpatialDB
	fetch  AssetFetcher
	log    *logrus.Entry
	origin [2]float64
}

// NewProcessor builds a terrain Processor.
func NewProcessor(db SpatialDB, fetch AssetFetcher, log *logrus.Entry, origin [2]float64) *Processor {
	return &Processor{db: db, fetch: fetch, log: log, origin: origin}
}

// ProcessClass runs the full terrain pipeline for one feature class —
// query elements, compute coverage, fetch DTM tiles, mesh each element
// — and appends the results to m. Individual element failures (an Area
// that fails to construct, raster too sparse to mesh) are logged and
// skipped rather than aborting the feature class; a class with zero
// matched rows or zero DTM coverage still succeeds with zero elements.
func (p *Processor) ProcessClass(ctx context.Context, cfg ClassConfig, inputPolygonWKT string, m *model.Model) error {
	rows, err := p.db.Query(ctx, cfg.SQL, inputPolygonWKT)
	if err != nil {
		return err
	}

	bbox, err := p.computeBBox(ctx, inputPolygonWKT, rows)
	if err != nil {
		return err
	}

	readers, err := p.fetch(ctx, bbox, cfg.GridSize)
	if err != nil {
		return err
	}

	raster, err := loadAndMergeRasters(readers, p.origin)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := p.processRow(row, cfg, raster, m); err != nil {
			p.log.WithError(err).WithField("feature_class", cfg.FeatureClass).Warn("skipping terrain element")
		}
	}
	return nil
}

func (p *Processor) processRow(row geodb.Row, cfg ClassConfig, raster *tin.RasterPoints, m *model.Model) error {
	area, err := tin.NewAreaFromWKT(row.WKT, p.origin)
	if err != nil {
		// Non-polygon WKT skips this element with a warning, not the
		// whole class.
		return cserr.Wrap(cserr.BadGeometry, "terrain.Processor.processRow", err)
	}

	// ClipMeshByArea internally accumulates two point sets: the raster
	// buffered by 3*gridSize builds the base surface a boundary is
	// sliced against, and the unbuffered in-polygon set seeds the
	// clipped mesh's interior vertices.
	mesh, err := tin.ClipMeshByArea(raster, area, cfg.GridSize)
	if err != nil {
		return err
	}

	mesh.Decimate(cfg.MaxHeightError, cfg.GridSize, cfg.MaxEdgeLen)

	consistent, diff := mesh.CheckAreaConsistency(area, 0.1)
	if !consistent {
		p.log.WithFields(logrus.Fields{
			"feature_class": cfg.FeatureClass,
			"diff":          diff,
		}).Debug("area consistency diagnostic below threshold")
	}

	element := model.NewElement(cfg.EntityKind)
	for _, attr := range cfg.Attributes {
		if v, ok := row.Columns[attr.Column]; ok {
			element.Attributes[attr.Name] = v
		}
	}
	for _, prop := range cfg.Properties {
		if v, ok := row.Columns[prop.Column]; ok {
			element.SetProperty(prop.Set, prop.Name, v)
		}
	}
	for _, col := range cfg.GroupCols {
		if v, ok := row.Columns[col]; ok && v != "" {
			element.Groups = append(element.Groups, v)
		}
	}

	verts, tris := mesh.GetData()
	triangulation := model.Triangulation{Triangles: make([][3]model.Point3, 0, len(tris))}
	for _, t := range tris {
		triangulation.Triangles = append(triangulation.Triangles, [3]model.Point3{
			{X: verts[t[0]].X, Y: verts[t[0]].Y, Z: verts[t[0]].Z},
			{X: verts[t[1]].X, Y: verts[t[1]].Y, Z: verts[t[1]].Z},
			{X: verts[t[2]].X, Y: verts[t[2]].Y, Z: verts[t[2]].Z},
		})
	}
	element.Geometry = model.TriangulationGeometry(triangulation)

	m.AddElement(cfg.FeatureClass, element)
	return nil
}

// computeBBox covers step (2): a bounding box over every matched row's
// geometry, or the input polygon itself when no rows matched, both via
// the spatial database's ST_Collect envelope aggregate.
func (p *Processor) computeBBox(ctx context.Context, inputPolygonWKT string, rows []geodb.Row) (geo.BoundingBox, error) {
	wkts := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.WKT != "" {
			wkts = append(wkts, row.WKT)
		}
	}
	if len(wkts) == 0 {
		p.log.Warn("no content found for this polygon")
		wkts = []string{inputPolygonWKT}
	}
	envelope, err := p.db.CollectBoundingBox(ctx, wkts)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	return geo.FromLV95Envelope(envelope.MinX, envelope.MinY, envelope.MaxX, envelope.MaxY), nil
}

func loadAndMergeRasters(readers []io.Reader, origin [2]float64) (*tin.RasterPoints, error) {
	merged := tin.NewRasterPoints(nil, [2]float64{})
	for _, r := range readers {
		rp, err := tin.LoadXYZ(r, origin)
		if err != nil {
			return nil, err
		}
		merged.Merge(rp)
	}
	return merged, nil
}

