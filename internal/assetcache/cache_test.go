package assetcache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_RoundTripsThroughJSON(t *testing.T) {
	e := entry{FilePath: "/var/cache/cs2bim/abc.zip", ExpireAt: time.Now().Add(time.Hour).Truncate(time.Second)}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got entry
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, e.FilePath, got.FilePath)
	assert.True(t, e.ExpireAt.Equal(got.ExpireAt))
}

func TestCache_Key_NamespacesByPrefix(t *testing.T) {
	c := New(nil, "cs2bim:assets")
	assert.Equal(t, "cs2bim:assets:abc-123", c.key("abc-123"))
}
