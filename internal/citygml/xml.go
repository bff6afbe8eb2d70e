// Package citygml stream-decodes CityGML-like XML sources and matches
// buildings by identifier. Documents are pull-parsed with xml.Decoder
// one building subtree at a time, so a multi-gigabyte city model never
// lives in memory whole.
package citygml

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"cs2bim-go/internal/cserr"
)

// Node is a minimal recursive XML element tree decoded from one
// <Building> subtree, resolved against with dotted element paths in
// place of a full XPath engine.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// Find resolves a minimal dotted path ("bldg:boundedBy.bldg:WallSurface")
// against n, returning the text content of the first matching
// descendant, depth first. Each path segment matches an element local
// name (a "prefix:" in a segment is ignored, matching only the
// local part of the XML name, since CityGML documents vary in which
// prefix they bind to which namespace).
func (n *Node) Find(path string) (string, bool) {
	segments := strings.Split(path, ".")
	return findPath(n, segments)
}

func findPath(n *Node, segments []string) (string, bool) {
	if len(segments) == 0 {
		return strings.TrimSpace(n.Content), true
	}
	head, rest := localName(segments[0]), segments[1:]
	for i := range n.Children {
		child := &n.Children[i]
		if child.XMLName.Local != head {
			continue
		}
		if len(rest) == 0 {
			return strings.TrimSpace(child.Content), true
		}
		if val, ok := findPath(child, rest); ok {
			return val, true
		}
	}
	return "", false
}

// FindAll resolves path like Find but returns every matching
// descendant node, the way BuildingProcessor walks every configured
// building-part XPath to collect one <pos> list per part.
func (n *Node) FindAll(path string) []*Node {
	segments := strings.Split(path, ".")
	return findAllPath(n, segments)
}

func findAllPath(n *Node, segments []string) []*Node {
	if len(segments) == 0 {
		return []*Node{n}
	}
	head, rest := localName(segments[0]), segments[1:]
	var out []*Node
	for i := range n.Children {
		child := &n.Children[i]
		if child.XMLName.Local != head {
			continue
		}
		if len(rest) == 0 {
			out = append(out, child)
			continue
		}
		out = append(out, findAllPath(child, rest)...)
	}
	return out
}

func localName(segment string) string {
	if idx := strings.LastIndex(segment, ":"); idx >= 0 {
		return segment[idx+1:]
	}
	return segment
}

// Pos3 is one (x, y, z) triple parsed from a gml:pos text node.
type Pos3 struct {
	X, Y, Z float64
}

// ParsePos splits a whitespace-delimited `pos` text into (x, y, z)
// triples, rejecting any count not a multiple of three.
func ParsePos(text string) ([]Pos3, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields)%3 != 0 {
		return nil, cserr.New(cserr.DataError, "citygml.ParsePos", "pos text is not a multiple of 3 values")
	}
	out := make([]Pos3, 0, len(fields)/3)
	for i := 0; i+2 < len(fields); i += 3 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, cserr.Wrap(cserr.DataError, "citygml.ParsePos", err)
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, cserr.Wrap(cserr.DataError, "citygml.ParsePos", err)
		}
		z, err := strconv.ParseFloat(fields[i+2], 64)
		if err != nil {
			return nil, cserr.Wrap(cserr.DataError, "citygml.ParsePos", err)
		}
		out = append(out, Pos3{x, y, z})
	}
	return out, nil
}

// BuildingHandler is invoked once per top-level <Building> element
// decoded from the stream; the subtree is released immediately after
// the call returns, bounding peak memory.
type BuildingHandler func(building *Node) error

// StreamBuildings pull-parses r for top-level <Building> elements
// (matched by local name, any namespace), decoding and handing each
// one to handler in turn. Ownership of each element is released as
// soon as handler returns; the whole document tree is never held in
// memory.
func StreamBuildings(r io.Reader, elementName string, handler BuildingHandler) error {
	decoder := xml.NewDecoder(r)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return cserr.Wrap(cserr.DataError, "citygml.StreamBuildings", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != elementName {
			continue
		}

		var node Node
		if err := decoder.DecodeElement(&node, &start); err != nil {
			return cserr.Wrap(cserr.DataError, "citygml.StreamBuildings", err)
		}
		if err := handler(&node); err != nil {
			return err
		}
		// node falls out of scope here; nothing it referenced survives
		// past this iteration.
	}
}
