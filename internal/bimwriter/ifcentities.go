package bimwriter

// Each function in this file wraps one or a small, fixed handful of
// File.CreateEntity calls behind a typed signature. No assembly
// decisions are made here; see package assembler for which entities
// get created, related, and when.

// Point3 is a plain (x, y, z) triple, used only to keep this file's
// signatures readable; it is not the mesh engine's tin.Point3.
type Point3 = [3]float64

func AddCartesianPoint(f *File, coords Point3) Ref {
	return f.CreateEntity("IFCCARTESIANPOINT", toList(coords[:]))
}

func AddOwnerHistory(f *File, name, version, applicationFullName string) Ref {
	person := f.CreateEntity("IFCPERSON", nil, nil, name, nil, nil, nil, nil, nil)
	org := f.CreateEntity("IFCORGANIZATION", nil, name, nil, nil, nil)
	owningUser := f.CreateEntity("IFCPERSONANDORGANIZATION", person, org, nil)
	owningApp := f.CreateEntity("IFCAPPLICATION", org, version, applicationFullName, applicationFullName)
	ts := Timestamp()
	return f.CreateEntity("IFCOWNERHISTORY", owningUser, owningApp, nil, Enum("ADDED"), nil, nil, nil, ts)
}

func AddSIUnit(f *File, unitType, name string) Ref {
	return f.CreateEntity("IFCSIUNIT", nil, Enum(unitType), nil, Enum(name))
}

func AddUnitAssignment(f *File, length, area, volume, degree Ref) Ref {
	planeAngleMeasure := 0.017453292519943295
	conversionFactor := f.CreateEntity("IFCMEASUREWITHUNIT", planeAngleMeasure, degree)
	dims := f.CreateEntity("IFCDIMENSIONALEXPONENTS", 0, 0, 0, 0, 0, 0, 0)
	degreeUnit := f.CreateEntity("IFCCONVERSIONBASEDUNIT", dims, Enum("PLANEANGLEUNIT"), "DEGREE", conversionFactor)
	return f.CreateEntity("IFCUNITASSIGNMENT", []interface{}{length, area, volume, degreeUnit})
}

func AddGeometricRepresentationContext(f *File, location Point3) Ref {
	loc := AddCartesianPoint(f, location)
	wcs := f.CreateEntity("IFCAXIS2PLACEMENT3D", loc, nil, nil)
	return f.CreateEntity("IFCGEOMETRICREPRESENTATIONCONTEXT", nil, "Model", 3, 1e-05, wcs, nil)
}

func AddGeometricRepresentationSubContext(f *File, parent Ref) Ref {
	return f.CreateEntity("IFCGEOMETRICREPRESENTATIONSUBCONTEXT", "Body", "Model", nil, nil, nil, nil, parent, nil, Enum("MODEL_VIEW"), nil)
}

// AddMapConversion emits IfcProjectedCRS + IfcMapConversion, the
// map-conversion geo-referencing output for the named projected CRS.
func AddMapConversion(f *File, mapUnit, sourceCRS Ref, origin Point3, crsName string) Ref {
	targetCRS := f.CreateEntity("IFCPROJECTEDCRS", crsName, "CH1903+ / LV95 -- Swiss CH1903+ / LV95", "CH1903+", "LN02", nil, nil, mapUnit)
	return f.CreateEntity("IFCMAPCONVERSION", sourceCRS, targetCRS, origin[0], origin[1], origin[2], 1.0, 0.0, 1.0)
}

func AddProject(f *File, name string, ownerHistory, representationContext, unitsInContext Ref) Ref {
	return f.CreateEntity("IFCPROJECT", NewGUID(), ownerHistory, name, nil, nil, nil, nil, []interface{}{representationContext}, unitsInContext)
}

func AddLocalPlacement(f *File, location Point3) Ref {
	loc := AddCartesianPoint(f, location)
	relPlacement := f.CreateEntity("IFCAXIS2PLACEMENT3D", loc, nil, nil)
	return f.CreateEntity("IFCLOCALPLACEMENT", nil, relPlacement)
}

func AddSite(f *File, objectPlacement, project Ref) Ref {
	site := f.CreateEntity("IFCSITE", NewGUID(), nil, nil, nil, nil, objectPlacement, nil, nil, Enum("ELEMENT"), nil, nil, nil, nil, nil)
	AddRelAggregates(f, project, []Ref{site})
	return site
}

func AddRelAggregates(f *File, relatingObject Ref, relatedObjects []Ref) Ref {
	return f.CreateEntity("IFCRELAGGREGATES", NewGUID(), nil, nil, nil, relatingObject, toRefList(relatedObjects))
}

func AddRelContainedInSpatialStructure(f *File, relatedElements []Ref, relatingStructure Ref) Ref {
	return f.CreateEntity("IFCRELCONTAINEDINSPATIALSTRUCTURE", NewGUID(), nil, nil, nil, toRefList(relatedElements), relatingStructure)
}

func AddGroup(f *File, name string) Ref {
	return f.CreateEntity("IFCGROUP", NewGUID(), nil, name, nil, nil)
}

func AddDistributionSystem(f *File, name string) Ref {
	return f.CreateEntity("IFCDISTRIBUTIONSYSTEM", NewGUID(), nil, name, nil, nil, nil, nil)
}

func AddDistributionCircuit(f *File, name string) Ref {
	return f.CreateEntity("IFCDISTRIBUTIONCIRCUIT", NewGUID(), nil, name, nil, nil, nil, nil)
}

func AddBuildingSystem(f *File, name string) Ref {
	return f.CreateEntity("IFCBUILDINGSYSTEM", NewGUID(), nil, name, nil, nil, nil, nil)
}

func AddStructuralAnalysisModel(f *File, name string) Ref {
	return f.CreateEntity("IFCSTRUCTURALANALYSISMODEL", NewGUID(), nil, name, nil, nil, Enum("LOADING_3D"), nil, nil, nil, nil)
}

func AddZone(f *File, name string) Ref {
	return f.CreateEntity("IFCZONE", NewGUID(), nil, name, nil, nil, nil)
}

func AddRelAssignsToGroup(f *File, relatedObjects []Ref, group Ref) Ref {
	return f.CreateEntity("IFCRELASSIGNSTOGROUP", NewGUID(), nil, nil, nil, toRefList(relatedObjects), nil, group)
}

func AddFace(f *File, polygon []Ref) Ref {
	polyLoop := f.CreateEntity("IFCPOLYLOOP", toRefList(polygon))
	bound := f.CreateEntity("IFCFACEOUTERBOUND", polyLoop, true)
	return f.CreateEntity("IFCFACE", toRefList([]Ref{bound}))
}

func AddFacetedBrep(f *File, cfsFaces []Ref) Ref {
	outer := f.CreateEntity("IFCCLOSEDSHELL", toRefList(cfsFaces))
	return f.CreateEntity("IFCFACETEDBREP", outer)
}

func AddProductDefinitionShape(f *File, contextOfItems Ref, representationType string, item Ref) Ref {
	representation := f.CreateEntity("IFCSHAPEREPRESENTATION", contextOfItems, "Body", representationType, toRefList([]Ref{item}))
	return f.CreateEntity("IFCPRODUCTDEFINITIONSHAPE", nil, nil, toRefList([]Ref{representation}))
}

func AddTriangulatedFaceSet(f *File, coordList [][3]float64, coordIndex [][3]int) Ref {
	coords := make([]interface{}, len(coordList))
	for i, p := range coordList {
		coords[i] = toList(p[:])
	}
	idx := make([]interface{}, len(coordIndex))
	for i, t := range coordIndex {
		idx[i] = []interface{}{t[0], t[1], t[2]}
	}
	coordinates := f.CreateEntity("IFCCARTESIANPOINTLIST3D", coords)
	return f.CreateEntity("IFCTRIANGULATEDFACESET", coordinates, nil, nil, idx, nil)
}

// RootAttrs carries the optional IfcRoot/IfcProduct attribute values a
// product entity accepts by name; each field is either a string or nil
// (serialized as `$`).
type RootAttrs struct {
	Name        interface{}
	Description interface{}
	ObjectType  interface{}
	Tag         interface{}
}

func AddGeographicElement(f *File, attrs RootAttrs, objectPlacement, representation Ref) Ref {
	return f.CreateEntity("IFCGEOGRAPHICELEMENT", NewGUID(), nil, attrs.Name, attrs.Description, attrs.ObjectType, objectPlacement, representation, attrs.Tag, nil)
}

// AddRootProduct builds the given target IFC product kind
// (IfcWallStandardCase / IfcSlab / IfcRoof / ...) with the shared
// Root/Product attribute positions filled; trailingAttrs pads the
// entity's type-specific tail attributes (PredefinedType and friends)
// with `$`.
func AddRootProduct(f *File, typeName string, attrs RootAttrs, objectPlacement, representation Ref, trailingAttrs int) Ref {
	vals := []interface{}{NewGUID(), nil, attrs.Name, attrs.Description, attrs.ObjectType, objectPlacement, representation, attrs.Tag}
	for i := 0; i < trailingAttrs; i++ {
		vals = append(vals, nil)
	}
	return f.CreateEntity(typeName, vals...)
}

func AddSurfaceStyle(f *File, r, g, b, transparency float64) Ref {
	colour := f.CreateEntity("IFCCOLOURRGB", nil, r, g, b)
	style := f.CreateEntity("IFCSURFACESTYLESHADING", colour, transparency)
	return f.CreateEntity("IFCSURFACESTYLE", nil, Enum("BOTH"), []interface{}{style})
}

func AddStyledItem(f *File, item, style Ref) Ref {
	return f.CreateEntity("IFCSTYLEDITEM", item, []interface{}{style}, nil)
}

func AddPropertySingleValue(f *File, name, text string) Ref {
	return f.CreateEntity("IFCPROPERTYSINGLEVALUE", name, nil, Typed{Type: "IFCTEXT", Value: text}, nil)
}

func AddPropertySet(f *File, name string, hasProperties []Ref, relatedObject Ref) Ref {
	propertySet := f.CreateEntity("IFCPROPERTYSET", NewGUID(), nil, name, nil, toRefList(hasProperties))
	f.CreateEntity("IFCRELDEFINESBYPROPERTIES", NewGUID(), nil, nil, nil, toRefList([]Ref{relatedObject}), propertySet)
	return propertySet
}

func toList(vals []float64) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func toRefList(refs []Ref) []interface{} {
	out := make([]interface{}, len(refs))
	for i, r := range refs {
		out[i] = r
	}
	return out
}
