package stac

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cs2bim-go/internal/assetcache"
	"cs2bim-go/internal/cserr"
)

// cacheTTL is the cache lifetime recorded for a freshly extracted
// asset.
const cacheTTL = 24 * time.Hour

// Extractor downloads and unzips STAC assets through an AssetCache:
// check the cache first (re-validating both TTL and file existence),
// and only hit the network on a miss.
type Extractor struct {
	httpClient   *http.Client
	fetchTimeout time.Duration
	cache        *assetcache.Cache
	cacheDir     string
}

// NewExtractor builds an Extractor backed by cache, writing extracted
// members under cacheDir.
func NewExtractor(fetchTimeout time.Duration, cache *assetcache.Cache, cacheDir string) *Extractor {
	return &Extractor{
		httpClient:   &http.Client{},
		fetchTimeout: fetchTimeout,
		cache:        cache,
		cacheDir:     cacheDir,
	}
}

// FetchAndExtractZip returns the local path of href's single zip
// member, using the cache when possible. On a cache hit whose TTL or
// backing file is invalid, the stale entry (and file, if present) is
// purged before re-downloading.
func (e *Extractor) FetchAndExtractZip(ctx context.Context, href string) (string, error) {
	assetID := assetIDFor(href)

	if path, err := e.cache.Get(ctx, assetID); err == nil {
		return path, nil
	} else if !cserr.Is(err, cserr.CacheMiss) {
		return "", err
	}
	// CacheMiss: either no entry, an expired one, or one whose file
	// vanished. Purge both tiers (the entry, and the expired-but-present
	// file if any) before re-downloading.
	if err := e.cache.Purge(ctx, assetID); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.Extractor.FetchAndExtractZip", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.Extractor.FetchAndExtractZip", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", cserr.New(cserr.UpstreamError, "stac.Extractor.FetchAndExtractZip", fmt.Sprintf("asset fetch returned status %d", resp.StatusCode))
	}

	tmpZip, err := os.CreateTemp("", "cs2bim-asset-*.zip")
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.Extractor.FetchAndExtractZip", err)
	}
	defer os.Remove(tmpZip.Name())
	defer tmpZip.Close()

	if _, err := io.Copy(tmpZip, resp.Body); err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.Extractor.FetchAndExtractZip", err)
	}

	extractedPath, err := extractFirstMember(tmpZip.Name(), e.cacheDir)
	if err != nil {
		return "", err
	}

	if err := e.cache.Add(ctx, assetID, extractedPath, cacheTTL); err != nil {
		return "", err
	}
	return extractedPath, nil
}

// extractFirstMember unzips the single member of zipPath into destDir,
// named after its original archive member name, so concurrent
// downloads of the same asset write to the same path and the last
// writer wins with identical content.
func extractFirstMember(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.extractFirstMember", err)
	}
	defer r.Close()

	if len(r.File) == 0 {
		return "", cserr.New(cserr.UpstreamError, "stac.extractFirstMember", "zip archive has no members")
	}
	member := r.File[0]

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.extractFirstMember", err)
	}
	destPath := filepath.Join(destDir, filepath.Base(member.Name))

	src, err := member.Open()
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.extractFirstMember", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.extractFirstMember", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "stac.extractFirstMember", err)
	}
	return destPath, nil
}

// assetIDFor derives a stable cache key from an asset href.
func assetIDFor(href string) string {
	sum := sha1.Sum([]byte(href))
	return hex.EncodeToString(sum[:])
}
