// Package bimwriter is a thin IFC-SPF (ISO 10303-21) physical-file
// serializer. Every exported Add* function allocates one (or a small
// fixed handful of) STEP entity instance and returns a Ref to it; all
// of the assembly decision logic (which entities, which relationships,
// when) lives in package assembler.
package bimwriter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ref is a STEP entity instance reference (`#N`).
type Ref int

func (r Ref) String() string { return fmt.Sprintf("#%d", int(r)) }

// Enum wraps an unquoted STEP enumeration token (e.g. `.ADDED.`).
type Enum string

// Typed wraps a defined-type select value serialized inline, e.g.
// IFCTEXT('...') inside an IfcPropertySingleValue — defined types are
// not entity instances and never get their own #id.
type Typed struct {
	Type  string
	Value interface{}
}

// Omitted represents a STEP `$` (not provided) attribute value.
var Omitted = struct{}{}

// File accumulates STEP entity instances and serializes them as an
// IFC-SPF physical file. Schema selects the IFC4/IFC4x3 EXCHANGE_FILE
// schema name written into the FILE_SCHEMA header record.
type File struct {
	Schema   string
	FileName string
	entities []string
	next     int
}

// New creates an empty File for the given schema ("IFC4" or "IFC4X3")
// and header file name.
func New(schema, fileName string) *File {
	return &File{Schema: schema, FileName: fileName, next: 1}
}

// CreateEntity allocates a new STEP entity instance of typeName with
// the given attribute values (in declaration order) and returns its
// Ref. This is the one generic primitive every Add* wrapper in this
// package is built on.
func (f *File) CreateEntity(typeName string, attrs ...interface{}) Ref {
	ref := Ref(f.next)
	f.next++
	line := fmt.Sprintf("#%d=%s(%s);", int(ref), typeName, joinAttrs(attrs))
	f.entities = append(f.entities, line)
	return ref
}

// NewGUID returns a fresh IFC-compressed GUID (a base-64-like 22
// character compression of a raw UUID), used for every root entity's
// GlobalId attribute.
func NewGUID() string {
	return compressGUID(uuid.New())
}

const guidChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_$"

// compressGUID implements the IFC GlobalId compression algorithm:
// 128 bits packed into 22 base-64-alphabet characters, 2 bits short per
// group so the first character only carries 2 bits of entropy.
func compressGUID(id uuid.UUID) string {
	raw := id[:]
	bitstr := make([]byte, 0, 130)
	for _, b := range raw {
		for i := 7; i >= 0; i-- {
			bitstr = append(bitstr, (b>>uint(i))&1)
		}
	}
	var out strings.Builder
	groupSizes := []int{2, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6}
	pos := 0
	for _, size := range groupSizes {
		if pos+size > len(bitstr) {
			size = len(bitstr) - pos
		}
		var val int
		for i := 0; i < size; i++ {
			val = (val << 1) | int(bitstr[pos+i])
		}
		pos += size
		out.WriteByte(guidChars[val%64])
	}
	return out.String()
}

// Timestamp returns the IFC IfcTimeStamp (POSIX seconds) for "now".
func Timestamp() int64 {
	return time.Now().Unix()
}

func joinAttrs(attrs []interface{}) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = formatValue(a)
	}
	return strings.Join(parts, ",")
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "$"
	case Ref:
		return val.String()
	case Enum:
		return "." + string(val) + "."
	case Typed:
		return val.Type + "(" + formatValue(val.Value) + ")"
	case string:
		return quoteString(val)
	case bool:
		if val {
			return ".T."
		}
		return ".F."
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case []interface{}:
		items := make([]string, len(val))
		for i, e := range val {
			items[i] = formatValue(e)
		}
		return "(" + strings.Join(items, ",") + ")"
	case [3]float64:
		return formatValue([]interface{}{val[0], val[1], val[2]})
	default:
		if val == Omitted {
			return "$"
		}
		return fmt.Sprintf("%v", val)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'G', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += "."
	}
	return s
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Write serializes the accumulated entities as a complete IFC-SPF
// text, HEADER section first, then the DATA section in allocation
// order.
func (f *File) Write() string {
	var b strings.Builder
	b.WriteString("ISO-10303-21;\n")
	b.WriteString("HEADER;\n")
	fmt.Fprintf(&b, "FILE_DESCRIPTION((''),'2;1');\n")
	fmt.Fprintf(&b, "FILE_NAME(%s,'%s',(''),(''),'cs2bim-go','cs2bim-go','');\n",
		quoteString(f.FileName), time.Now().UTC().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, "FILE_SCHEMA(('%s'));\n", f.Schema)
	b.WriteString("ENDSEC;\n")
	b.WriteString("DATA;\n")
	for _, line := range f.entities {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("ENDSEC;\n")
	b.WriteString("END-ISO-10303-21;\n")
	return b.String()
}
