// Package assetcache implements the two-tier TTL-bounded file cache
// that shields the STAC client from re-downloading assets it already
// holds on disk: a Redis entry per asset id, a file per entry.
package assetcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"cs2bim-go/internal/cserr"
)

// entry is the JSON payload stored per asset id.
type entry struct {
	FilePath string    `json:"file_path"`
	ExpireAt time.Time `json:"expire_at"`
}

// Cache is a Redis-backed registry of cached file paths with
// independent TTL and on-disk-existence validation on every lookup: a
// cache hit requires both the TTL to be unexpired and the file to
// still be present, since either can go stale independently (an
// operator can prune the cache directory without touching Redis).
type Cache struct {
	rdb       *redis.Client
	keyPrefix string
}

// New builds a Cache over the given Redis client. keyPrefix namespaces
// cache keys from other uses of the same Redis instance (the job
// broker shares it, on its own database index).
func New(rdb *redis.Client, keyPrefix string) *Cache {
	return &Cache{rdb: rdb, keyPrefix: keyPrefix}
}

func (c *Cache) key(assetID string) string {
	return fmt.Sprintf("%s:%s", c.keyPrefix, assetID)
}

// Add registers filePath for assetID, expiring after ttl.
func (c *Cache) Add(ctx context.Context, assetID, filePath string, ttl time.Duration) error {
	e := entry{FilePath: filePath, ExpireAt: time.Now().Add(ttl)}
	data, err := json.Marshal(e)
	if err != nil {
		return cserr.Wrap(cserr.DataError, "assetcache.Cache.Add", err)
	}
	if err := c.rdb.Set(ctx, c.key(assetID), data, ttl).Err(); err != nil {
		return cserr.Wrap(cserr.UpstreamError, "assetcache.Cache.Add", err)
	}
	return nil
}

// Get returns the cached file path for assetID if, and only if, the
// Redis entry has not expired and the file still exists on disk. A
// miss of either kind returns a CacheMiss error rather than a stale
// path; callers recover by re-fetching, never by surfacing the miss.
func (c *Cache) Get(ctx context.Context, assetID string) (string, error) {
	data, err := c.rdb.Get(ctx, c.key(assetID)).Bytes()
	if err == redis.Nil {
		return "", cserr.New(cserr.CacheMiss, "assetcache.Cache.Get", "no cache entry")
	}
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "assetcache.Cache.Get", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return "", cserr.Wrap(cserr.DataError, "assetcache.Cache.Get", err)
	}
	if time.Now().After(e.ExpireAt) {
		return "", cserr.New(cserr.CacheMiss, "assetcache.Cache.Get", "entry expired")
	}
	if _, err := os.Stat(e.FilePath); err != nil {
		return "", cserr.New(cserr.CacheMiss, "assetcache.Cache.Get", "cached file missing on disk")
	}
	return e.FilePath, nil
}

// Delete removes the cache entry for assetID. It does not remove the
// underlying file; callers that relocate or purge files manage their
// own lifecycle.
func (c *Cache) Delete(ctx context.Context, assetID string) error {
	if err := c.rdb.Del(ctx, c.key(assetID)).Err(); err != nil {
		return cserr.Wrap(cserr.UpstreamError, "assetcache.Cache.Delete", err)
	}
	return nil
}

// Purge removes the cache entry for assetID and, if the entry still
// names a file present on disk, removes that file too — the stale-entry
// cleanup a re-download performs after an expired hit.
func (c *Cache) Purge(ctx context.Context, assetID string) error {
	data, err := c.rdb.Get(ctx, c.key(assetID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return cserr.Wrap(cserr.UpstreamError, "assetcache.Cache.Purge", err)
	}

	var e entry
	if jsonErr := json.Unmarshal(data, &e); jsonErr == nil && e.FilePath != "" {
		if rmErr := os.Remove(e.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
			return cserr.Wrap(cserr.UpstreamError, "assetcache.Cache.Purge", rmErr)
		}
	}
	return c.Delete(ctx, assetID)
}
