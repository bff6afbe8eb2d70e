// Package assembler walks the accumulated model.Model and emits
// IFC-SPF entities through bimwriter: units, contexts, project, spatial
// structure, per-element geometry, styles, property sets, and the
// nested group hierarchy.
package assembler

import (
	"sort"
	"strings"

	"cs2bim-go/internal/bimwriter"
	"cs2bim-go/internal/config"
	"cs2bim-go/internal/cserr"
	"cs2bim-go/internal/model"
)

// GeoReferencingMode mirrors config.GeoReferencingMode, re-exported so
// callers don't need to import config just to read Assemble's contract.
type GeoReferencingMode = config.GeoReferencingMode

// Assembler translates a model.Model into an IFC-SPF file using the
// project-wide settings and per-feature-class mapping from config.
type Assembler struct {
	cfg *config.IfcConfig
}

// New builds an Assembler bound to the IFC assembly settings.
func New(cfg *config.IfcConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble walks m and returns the serialized IFC-SPF text. Unknown
// entity kinds, geometry kinds, or representation modes are fatal
// (UnsupportedConfiguration).
func (a *Assembler) Assemble(m *model.Model) (string, error) {
	// FILE_SCHEMA names are upper-case ("IFC4X3") even though the
	// exchange version is conventionally written IFC4x3.
	f := bimwriter.New(strings.ToUpper(m.IfcVersion), m.Name+".ifc")

	ownerHistory := bimwriter.AddOwnerHistory(f, a.cfg.Author, a.cfg.ApplicationVersion, a.cfg.ApplicationName)
	lengthUnit := bimwriter.AddSIUnit(f, "LENGTHUNIT", "METRE")
	areaUnit := bimwriter.AddSIUnit(f, "AREAUNIT", "SQUARE_METRE")
	volumeUnit := bimwriter.AddSIUnit(f, "VOLUMEUNIT", "CUBIC_METRE")
	degreeUnit := bimwriter.AddSIUnit(f, "PLANEANGLEUNIT", "RADIAN")
	unitAssignment := bimwriter.AddUnitAssignment(f, lengthUnit, areaUnit, volumeUnit, degreeUnit)

	origin := [3]float64{m.Origin.East, m.Origin.North, m.Origin.Height}

	contextLocation := [3]float64{}
	if a.cfg.GeoReferencing == config.GeoReferencingWorldOrigin {
		contextLocation = origin
	}
	representationContext := bimwriter.AddGeometricRepresentationContext(f, contextLocation)
	representationSubContext := bimwriter.AddGeometricRepresentationSubContext(f, representationContext)

	if a.cfg.GeoReferencing == config.GeoReferencingMapConv {
		bimwriter.AddMapConversion(f, lengthUnit, representationContext, origin, a.cfg.ProjectedCRSName)
	}

	project := bimwriter.AddProject(f, a.cfg.ProjectName, ownerHistory, representationContext, unitAssignment)

	placementLocation := [3]float64{}
	if a.cfg.GeoReferencing == config.GeoReferencingLocalOrigin {
		placementLocation = origin
	}
	localPlacement := bimwriter.AddLocalPlacement(f, placementLocation)
	site := bimwriter.AddSite(f, localPlacement, project)

	for _, featureClassKey := range m.FeatureClasses() {
		fcCfg, err := a.featureClassConfig(featureClassKey)
		if err != nil {
			return "", err
		}

		style := bimwriter.AddSurfaceStyle(f, fcCfg.ColorRGB[0], fcCfg.ColorRGB[1], fcCfg.ColorRGB[2], 0)

		var ifcElements []bimwriter.Ref
		groups := make(map[string][]bimwriter.Ref)

		for _, element := range m.Elements(featureClassKey) {
			ifcElement, err := a.assembleElement(f, fcCfg, element, style, representationSubContext)
			if err != nil {
				return "", err
			}
			ifcElements = append(ifcElements, ifcElement)
			for _, group := range element.Groups {
				groups[group] = append(groups[group], ifcElement)
			}
		}

		for _, building := range m.Buildings(featureClassKey) {
			for _, part := range building.Parts {
				ifcElement, err := a.assembleBuildingPart(f, fcCfg, part, style, representationSubContext)
				if err != nil {
					return "", err
				}
				ifcElements = append(ifcElements, ifcElement)
			}
		}

		if len(ifcElements) > 0 {
			bimwriter.AddRelContainedInSpatialStructure(f, ifcElements, site)
		}

		if err := a.assembleGroups(f, groups); err != nil {
			return "", err
		}
	}

	return f.Write(), nil
}

func (a *Assembler) featureClassConfig(key string) (*config.FeatureClassConfig, error) {
	for i := range a.cfg.FeatureClasses {
		if a.cfg.FeatureClasses[i].Name == key {
			return &a.cfg.FeatureClasses[i], nil
		}
	}
	return nil, cserr.New(cserr.UnsupportedConfiguration, "assembler.Assembler.featureClassConfig", "no feature class configured for "+key)
}

// assembleElement emits the geometry, entity, attributes, and property
// sets for one terrain Element.
func (a *Assembler) assembleElement(f *bimwriter.File, fcCfg *config.FeatureClassConfig, element *model.Element, style bimwriter.Ref, ctx bimwriter.Ref) (bimwriter.Ref, error) {
	faceSet, representationType, err := a.emitGeometry(f, element.Geometry)
	if err != nil {
		return 0, err
	}
	bimwriter.AddStyledItem(f, faceSet, style)
	shape := bimwriter.AddProductDefinitionShape(f, ctx, representationType, faceSet)
	placement := bimwriter.AddLocalPlacement(f, [3]float64{})

	ifcElement, err := entityForKind(f, fcCfg.EntityType, rootAttrs(element.Attributes), placement, shape)
	if err != nil {
		return 0, err
	}

	applyPropertySets(f, ifcElement, element.Properties)

	return ifcElement, nil
}

// assembleBuildingPart mirrors assembleElement for a BuildingPart,
// whose geometry is always a polygon set rather than a Triangulation.
func (a *Assembler) assembleBuildingPart(f *bimwriter.File, fcCfg *config.FeatureClassConfig, part model.BuildingPart, style bimwriter.Ref, ctx bimwriter.Ref) (bimwriter.Ref, error) {
	faceSet, representationType, err := a.emitGeometry(f, model.PolygonSetGeometry(part.Faces))
	if err != nil {
		return 0, err
	}
	partStyle := style
	if part.ColorRGB != ([3]float64{}) {
		partStyle = bimwriter.AddSurfaceStyle(f, part.ColorRGB[0], part.ColorRGB[1], part.ColorRGB[2], 0)
	}
	bimwriter.AddStyledItem(f, faceSet, partStyle)
	shape := bimwriter.AddProductDefinitionShape(f, ctx, representationType, faceSet)
	placement := bimwriter.AddLocalPlacement(f, [3]float64{})

	ifcElement, err := entityForKind(f, part.EntityKind, rootAttrs(part.Attributes), placement, shape)
	if err != nil {
		return 0, err
	}
	applyPropertySets(f, ifcElement, part.Properties)
	return ifcElement, nil
}

// emitGeometry switches on the Geometry tagged variant and emits
// either a Tessellation (IfcTriangulatedFaceSet) or B-Rep
// (IfcFacetedBrep) per a.cfg.TriangulationRepresentation.
func (a *Assembler) emitGeometry(f *bimwriter.File, geom model.Geometry) (bimwriter.Ref, string, error) {
	triangles, err := geometryTriangles(geom)
	if err != nil {
		return 0, "", err
	}

	switch a.cfg.TriangulationRepresentation {
	case config.RepresentationTessellation:
		return emitTessellation(f, triangles)
	case config.RepresentationBrep:
		return emitBrep(f, triangles)
	default:
		return 0, "", cserr.New(cserr.UnsupportedConfiguration, "assembler.emitGeometry", "unknown representation mode "+string(a.cfg.TriangulationRepresentation))
	}
}

// geometryTriangles normalizes either Geometry variant into a flat
// triangle list: a Triangulation is already triangles; a PolygonSet is
// fan-triangulated face by face (every BuildingPart face is planar and
// convex by construction, from one CityGML `pos` ring).
func geometryTriangles(geom model.Geometry) ([][3]model.Point3, error) {
	switch geom.Kind {
	case model.GeometryTriangulation:
		return geom.Triangulation.Triangles, nil
	case model.GeometryPolygonSet:
		var out [][3]model.Point3
		for _, poly := range geom.Polygons {
			if len(poly.Points) < 3 {
				continue
			}
			for i := 1; i+1 < len(poly.Points); i++ {
				out = append(out, [3]model.Point3{poly.Points[0], poly.Points[i], poly.Points[i+1]})
			}
		}
		return out, nil
	default:
		return nil, cserr.New(cserr.UnsupportedConfiguration, "assembler.geometryTriangles", "unknown geometry kind")
	}
}

func emitTessellation(f *bimwriter.File, triangles [][3]model.Point3) (bimwriter.Ref, string, error) {
	type key = [3]float64
	index := make(map[key]int)
	var coordList [][3]float64
	var coordIndex [][3]int
	for _, tri := range triangles {
		var idx [3]int
		for i, v := range tri {
			k := key{v.X, v.Y, v.Z}
			if existing, ok := index[k]; ok {
				idx[i] = existing
			} else {
				coordList = append(coordList, k)
				index[k] = len(coordList)
				idx[i] = len(coordList)
			}
		}
		coordIndex = append(coordIndex, idx)
	}
	return bimwriter.AddTriangulatedFaceSet(f, coordList, coordIndex), "Tessellation", nil
}

func emitBrep(f *bimwriter.File, triangles [][3]model.Point3) (bimwriter.Ref, string, error) {
	type key = [3]float64
	cache := make(map[key]bimwriter.Ref)
	var faces []bimwriter.Ref
	for _, tri := range triangles {
		var pts []bimwriter.Ref
		for _, v := range tri {
			k := key{v.X, v.Y, v.Z}
			if ref, ok := cache[k]; ok {
				pts = append(pts, ref)
			} else {
				ref := bimwriter.AddCartesianPoint(f, k)
				cache[k] = ref
				pts = append(pts, ref)
			}
		}
		faces = append(faces, bimwriter.AddFace(f, pts))
	}
	return bimwriter.AddFacetedBrep(f, faces), "Brep", nil
}

// entityForKind maps a configured entity-kind string
// (geographic-element, wall, slab, roof, space) onto the IFC entity
// type it builds.
func entityForKind(f *bimwriter.File, entityKind string, attrs bimwriter.RootAttrs, placement, representation bimwriter.Ref) (bimwriter.Ref, error) {
	switch entityKind {
	case "geographic-element":
		return bimwriter.AddGeographicElement(f, attrs, placement, representation), nil
	case "wall":
		return bimwriter.AddRootProduct(f, "IFCWALLSTANDARDCASE", attrs, placement, representation, 1), nil
	case "slab":
		return bimwriter.AddRootProduct(f, "IFCSLAB", attrs, placement, representation, 1), nil
	case "roof":
		return bimwriter.AddRootProduct(f, "IFCROOF", attrs, placement, representation, 1), nil
	case "space":
		// IfcSpace carries LongName in the Tag slot's position; Tag does
		// not exist on spatial elements, so it is dropped here.
		return bimwriter.AddRootProduct(f, "IFCSPACE", bimwriter.RootAttrs{Name: attrs.Name, Description: attrs.Description, ObjectType: attrs.ObjectType}, placement, representation, 3), nil
	default:
		return 0, cserr.New(cserr.UnsupportedConfiguration, "assembler.entityForKind", "unknown entity kind "+entityKind)
	}
}

// rootAttrs picks out the attribute values whose names match an
// attribute the target product entity actually has (Name, Description,
// ObjectType, Tag); anything else in the map is dropped.
func rootAttrs(attributes map[string]string) bimwriter.RootAttrs {
	pick := func(key string) interface{} {
		if v, ok := attributes[key]; ok {
			return v
		}
		return nil
	}
	return bimwriter.RootAttrs{
		Name:        pick("Name"),
		Description: pick("Description"),
		ObjectType:  pick("ObjectType"),
		Tag:         pick("Tag"),
	}
}

func applyPropertySets(f *bimwriter.File, entity bimwriter.Ref, propertySets map[string]map[string]string) {
	for _, setName := range sortedKeys(propertySets) {
		set := propertySets[setName]
		var props []bimwriter.Ref
		for _, key := range sortedKeys(set) {
			props = append(props, bimwriter.AddPropertySingleValue(f, key, set[key]))
		}
		bimwriter.AddPropertySet(f, setName, props, entity)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// assembleGroups creates and nests groups along their dotted-path
// hierarchy; path prefixes with a configured group definition get
// their configured entity type, the rest become plain IfcGroups.
func (a *Assembler) assembleGroups(f *bimwriter.File, groups map[string][]bimwriter.Ref) error {
	ifcGroups := make(map[string]bimwriter.Ref)

	groupKeys := sortedKeys(groups)
	for _, groupDefinition := range groupKeys {
		elements := groups[groupDefinition]
		segments := strings.Split(groupDefinition, ".")
		var path []string
		for _, segment := range segments {
			parentPath := strings.Join(path, ".")
			path = append(path, segment)
			groupPath := strings.Join(path, ".")

			if _, ok := ifcGroups[groupPath]; !ok {
				ref, err := a.createGroupEntity(f, groupPath, segment)
				if err != nil {
					return err
				}
				ifcGroups[groupPath] = ref
				if parentPath != "" {
					bimwriter.AddRelAssignsToGroup(f, []bimwriter.Ref{ref}, ifcGroups[parentPath])
				}
			}
		}
		bimwriter.AddRelAssignsToGroup(f, elements, ifcGroups[groupDefinition])
	}
	return nil
}

func (a *Assembler) createGroupEntity(f *bimwriter.File, groupPath, displayName string) (bimwriter.Ref, error) {
	for _, g := range a.cfg.Groups {
		if g.Name != groupPath {
			continue
		}
		switch g.GroupEntityType {
		case "distribution_system":
			return bimwriter.AddDistributionSystem(f, displayName), nil
		case "distribution_circuit":
			return bimwriter.AddDistributionCircuit(f, displayName), nil
		case "building_system":
			return bimwriter.AddBuildingSystem(f, displayName), nil
		case "structural_analysis_model":
			return bimwriter.AddStructuralAnalysisModel(f, displayName), nil
		case "zone":
			return bimwriter.AddZone(f, displayName), nil
		default:
			return 0, cserr.New(cserr.UnsupportedConfiguration, "assembler.createGroupEntity", "unknown group entity type "+g.GroupEntityType)
		}
	}
	// No configured GroupConfig for this path prefix: a plain IfcGroup.
	return bimwriter.AddGroup(f, displayName), nil
}
