// Package optcache provides a small in-process LRU used to avoid
// re-running identical spatial-database queries across jobs; entries
// are keyed by the exact SQL text and area-of-interest WKT.
package optcache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"cs2bim-go/internal/geodb"
)

// QueryCache caches geodb.Query results keyed by (sqlText, polygonWKT).
type QueryCache struct {
	cache   *lru.Cache[string, []geodb.Row]
	enabled bool

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// New builds a QueryCache holding up to maxItems entries. maxItems <= 0
// disables caching (every Get is a miss).
func New(maxItems int) (*QueryCache, error) {
	if maxItems <= 0 {
		return &QueryCache{enabled: false}, nil
	}
	c, err := lru.New[string, []geodb.Row](maxItems)
	if err != nil {
		return nil, err
	}
	return &QueryCache{cache: c, enabled: true}, nil
}

func key(sqlText, polygonWKT string) string {
	return sqlText + "\x00" + polygonWKT
}

// Get returns a cached result for (sqlText, polygonWKT), if present.
func (c *QueryCache) Get(sqlText, polygonWKT string) ([]geodb.Row, bool) {
	if !c.enabled {
		return nil, false
	}
	rows, ok := c.cache.Get(key(sqlText, polygonWKT))
	if ok {
		c.hits.Add(1)
		return rows, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set records rows under (sqlText, polygonWKT).
func (c *QueryCache) Set(sqlText, polygonWKT string, rows []geodb.Row) {
	if !c.enabled {
		return
	}
	c.cache.Add(key(sqlText, polygonWKT), rows)
}

// Stats reports hit/miss counters and current size.
func (c *QueryCache) Stats() Stats {
	if !c.enabled {
		return Stats{}
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.cache.Len()}
}

// Wrap returns a query function that checks cache before delegating,
// for use as the Query half of terrain.SpatialDB; the bounding-box
// aggregate is left uncached since it only runs once per job per
// feature class.
func (c *QueryCache) Wrap(log *logrus.Entry, query func(sqlText, polygonWKT string) ([]geodb.Row, error)) func(sqlText, polygonWKT string) ([]geodb.Row, error) {
	return func(sqlText, polygonWKT string) ([]geodb.Row, error) {
		if rows, ok := c.Get(sqlText, polygonWKT); ok {
			log.Debug("query cache hit")
			return rows, nil
		}
		rows, err := query(sqlText, polygonWKT)
		if err != nil {
			return nil, err
		}
		c.Set(sqlText, polygonWKT, rows)
		return rows, nil
	}
}
