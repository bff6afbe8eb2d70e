// Package stac discovers the latest DTM and CityGML assets covering a
// bounding box from a STAC-like catalog endpoint, and delegates the
// actual download/extract/cache cycle to assetcache.
package stac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"cs2bim-go/internal/cserr"
)

// Feature is one STAC-like catalog feature: its bbox (SW/NE corners in
// WGS84 degrees), its available assets keyed by role name, and the
// ISO-8601 acquisition timestamp used to pick the most recent one.
type Feature struct {
	BBox       [4]float64        `json:"bbox"`
	Assets     map[string]Asset  `json:"assets"`
	Properties FeatureProperties `json:"properties"`
}

// FeatureProperties carries the fields fetch_assets reads off a
// feature beyond its assets.
type FeatureProperties struct {
	Datetime string `json:"datetime"`
}

// Asset is one downloadable member of a feature's `assets` map.
type Asset struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

type catalogResponse struct {
	Features []Feature `json:"features"`
}

// Client queries a STAC-like catalog over HTTP and filters the results
// down to one asset per distinct feature bbox.
type Client struct {
	httpClient     *http.Client
	requestTimeout time.Duration
}

// New builds a Client with the given per-request timeout.
func New(requestTimeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{},
		requestTimeout: requestTimeout,
	}
}

// Predicate decides whether an asset should be considered for a
// feature (e.g. "asset.Type == application/zip && role == dtm").
type Predicate func(assetKey string, asset Asset) bool

// FetchAssets queries endpoint for features intersecting bbox
// (expressed in WGS84 latitude/longitude), filters each feature's
// assets through predicate, and keeps only the most recent asset per
// distinct feature bbox (by Properties.Datetime).
// Fails with UpstreamError if the catalog responds with a non-success
// status, or if predicate matches more than one asset within a single
// feature.
func (c *Client) FetchAssets(ctx context.Context, endpoint string, bbox [4]float64, predicate Predicate) ([]Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?bbox=%g,%g,%g,%g", endpoint, bbox[0], bbox[1], bbox[2], bbox[3])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cserr.Wrap(cserr.UpstreamError, "stac.Client.FetchAssets", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cserr.Wrap(cserr.UpstreamError, "stac.Client.FetchAssets", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cserr.New(cserr.UpstreamError, "stac.Client.FetchAssets", fmt.Sprintf("catalog returned status %d", resp.StatusCode))
	}

	var parsed catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, cserr.Wrap(cserr.UpstreamError, "stac.Client.FetchAssets", err)
	}

	type picked struct {
		bbox     [4]float64
		asset    Asset
		datetime string
	}
	byBBox := make(map[[4]float64]picked)

	for _, feature := range parsed.Features {
		var matched []Asset
		for key, asset := range feature.Assets {
			if predicate(key, asset) {
				matched = append(matched, asset)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if len(matched) > 1 {
			return nil, cserr.New(cserr.UpstreamError, "stac.Client.FetchAssets", "predicate matched more than one asset for a single feature")
		}

		existing, ok := byBBox[feature.BBox]
		if !ok || feature.Properties.Datetime > existing.datetime {
			byBBox[feature.BBox] = picked{bbox: feature.BBox, asset: matched[0], datetime: feature.Properties.Datetime}
		}
	}

	out := make([]Asset, 0, len(byBBox))
	keys := make([][4]float64, 0, len(byBBox))
	for k := range byBBox {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i][0] < keys[j][0] || (keys[i][0] == keys[j][0] && keys[i][1] < keys[j][1])
	})
	for _, k := range keys {
		out = append(out, byBBox[k].asset)
	}
	return out, nil
}
