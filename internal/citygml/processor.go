package citygml

import (
	"io"

	"cs2bim-go/internal/cserr"
	"cs2bim-go/internal/model"
)

// AttributePath maps a dotted element path within a building subtree
// onto a named attribute of the emitted part.
type AttributePath struct {
	Name string
	Path string
}

// PropertyPath maps a dotted element path onto a property-set slot.
type PropertyPath struct {
	Name string
	Set  string
	Path string
}

// PartConfig configures one building-part geometry path to decode
// within a matched building, and the entity kind its decoded faces are
// attached under.
type PartConfig struct {
	EntityKind string
	ColorRGB   [3]float64
	PosPath    string // dotted path to descend to, resolved with FindAll
	Attributes []AttributePath
	Properties []PropertyPath
}

// ClassConfig configures one building feature class: the path that
// yields its identifier, the parts to decode when a building matches
// one of its identifiers, and the building-level attributes/properties
// stamped onto every decoded part.
type ClassConfig struct {
	FeatureClass   string
	IdentifierPath string
	Parts          []PartConfig
	Attributes     []AttributePath
	Properties     []PropertyPath
}

// Processor streams one or more CityGML documents and dispatches each
// matched <Building> to the configured feature class it belongs to. A
// building is streamed and decoded exactly once, then dispatched by
// identifier match, never re-entering the streaming iterator per
// feature class.
type Processor struct {
	classes []ClassConfig
	origin  model.Origin
}

// NewProcessor builds a Processor for the given class configurations.
func NewProcessor(classes []ClassConfig, origin model.Origin) *Processor {
	return &Processor{classes: classes, origin: origin}
}

// ProcessDocument streams r (one fetched CityGML asset) and, for every
// decoded <Building> whose identifier matches a configured class,
// appends a model.Building with one BuildingPart per configured part
// XPath that produced at least one face.
func (p *Processor) ProcessDocument(r io.Reader, m *model.Model, wantedIDs map[string]bool) error {
	return StreamBuildings(r, "Building", func(node *Node) error {
		return p.dispatch(node, m, wantedIDs)
	})
}

func (p *Processor) dispatch(node *Node, m *model.Model, wantedIDs map[string]bool) error {
	for _, class := range p.classes {
		id, ok := node.Find(class.IdentifierPath)
		if !ok || id == "" {
			continue
		}
		if wantedIDs != nil && !wantedIDs[id] {
			continue
		}

		building := &model.Building{ID: id}
		for _, partCfg := range class.Parts {
			faces, err := p.decodeParts(node, partCfg)
			if err != nil {
				// A part failing to decode stops the stream of this
				// document; the caller logs it and skips the rest of the
				// document rather than failing the job.
				return cserr.Wrap(cserr.DataError, "citygml.Processor.dispatch", err)
			}
			if len(faces) == 0 {
				continue
			}
			part := model.BuildingPart{
				EntityKind: partCfg.EntityKind,
				ColorRGB:   partCfg.ColorRGB,
				Attributes: make(map[string]string),
				Properties: make(map[string]map[string]string),
				Faces:      faces,
			}
			decodeAttributesAndProperties(node, class.Attributes, class.Properties, &part)
			decodeAttributesAndProperties(node, partCfg.Attributes, partCfg.Properties, &part)
			building.Parts = append(building.Parts, part)
		}
		if len(building.Parts) > 0 {
			m.AddBuilding(class.FeatureClass, building)
		}
		return nil
	}
	return nil
}

// decodeParts resolves partCfg.PosPath to every matching <pos>-bearing
// node and forms one closed planar face per pos list found, origin-
// reduced coordinate-wise.
func (p *Processor) decodeParts(building *Node, partCfg PartConfig) ([]model.Polygon, error) {
	var faces []model.Polygon
	for _, posNode := range building.FindAll(partCfg.PosPath) {
		triples, err := ParsePos(posNode.Content)
		if err != nil {
			return nil, err
		}
		pts := make([]model.Point3, 0, len(triples))
		for _, t := range triples {
			pts = append(pts, model.Point3{
				X: t.X - p.origin.East,
				Y: t.Y - p.origin.North,
				Z: t.Z - p.origin.Height,
			})
		}
		if len(pts) < 3 {
			continue
		}
		faces = append(faces, model.Polygon{Points: pts})
	}
	return faces, nil
}

// decodeAttributesAndProperties resolves each configured path against
// the building subtree and stamps the values it finds onto part; paths
// with no matching element are skipped.
func decodeAttributesAndProperties(building *Node, attrs []AttributePath, props []PropertyPath, part *model.BuildingPart) {
	for _, a := range attrs {
		if v, ok := building.Find(a.Path); ok && v != "" {
			part.Attributes[a.Name] = v
		}
	}
	for _, pr := range props {
		if v, ok := building.Find(pr.Path); ok && v != "" {
			set, ok := part.Properties[pr.Set]
			if !ok {
				set = make(map[string]string)
				part.Properties[pr.Set] = set
			}
			set[pr.Name] = v
		}
	}
}
