package bimwriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_WriteProducesWellFormedSPF(t *testing.T) {
	f := New("IFC4", "test.ifc")
	p := AddCartesianPoint(f, Point3{1, 2, 3})
	f.CreateEntity("IFCAXIS2PLACEMENT3D", p, nil, nil)

	out := f.Write()
	assert.True(t, strings.HasPrefix(out, "ISO-10303-21;"))
	assert.Contains(t, out, "FILE_SCHEMA(('IFC4'));")
	assert.Contains(t, out, "#1=IFCCARTESIANPOINT((1.,2.,3.));")
	assert.Contains(t, out, "#2=IFCAXIS2PLACEMENT3D(#1,$,$);")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "END-ISO-10303-21;"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "$", formatValue(nil))
	assert.Equal(t, ".T.", formatValue(true))
	assert.Equal(t, ".ELEMENT.", formatValue(Enum("ELEMENT")))
	assert.Equal(t, "'it''s'", formatValue("it's"))
	assert.Equal(t, "0.5", formatValue(0.5))
	assert.Equal(t, "2.", formatValue(2.0))
	assert.Equal(t, "IFCTEXT('v')", formatValue(Typed{Type: "IFCTEXT", Value: "v"}))
	assert.Equal(t, "(#1,#2)", formatValue([]interface{}{Ref(1), Ref(2)}))
}

func TestNewGUID_Produces22CharCompressedIds(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewGUID()
		require.Len(t, id, 22)
		for _, c := range id {
			assert.Contains(t, guidChars, string(c))
		}
		assert.False(t, seen[id], "GUIDs must not repeat")
		seen[id] = true
	}
}
