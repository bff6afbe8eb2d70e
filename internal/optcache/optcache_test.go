package optcache

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cs2bim-go/internal/geodb"
)

func TestQueryCache_WrapHitsOnSecondCall(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	calls := 0
	query := func(sqlText, polygonWKT string) ([]geodb.Row, error) {
		calls++
		return []geodb.Row{{WKT: polygonWKT}}, nil
	}
	wrapped := c.Wrap(logrus.NewEntry(logrus.New()), query)

	rows1, err := wrapped("select 1", "POLYGON((0 0,1 0,1 1,0 0))")
	require.NoError(t, err)
	rows2, err := wrapped("select 1", "POLYGON((0 0,1 0,1 1,0 0))")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, rows1, rows2)
	assert.Equal(t, int64(1), c.Stats().Hits)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestQueryCache_DisabledAlwaysMisses(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)

	calls := 0
	query := func(sqlText, polygonWKT string) ([]geodb.Row, error) {
		calls++
		return nil, nil
	}
	wrapped := c.Wrap(logrus.NewEntry(logrus.New()), query)

	_, _ = wrapped("select 1", "a")
	_, _ = wrapped("select 1", "a")

	assert.Equal(t, 2, calls)
}
