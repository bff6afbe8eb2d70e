package stac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogServer(t *testing.T, resp catalogResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestFetchAssets_KeepsMostRecentPerBBox(t *testing.T) {
	srv := catalogServer(t, catalogResponse{
		Features: []Feature{
			{
				BBox:       [4]float64{0, 0, 1, 1},
				Assets:     map[string]Asset{"dtm": {Href: "http://example/old.zip"}},
				Properties: FeatureProperties{Datetime: "2020-01-01T00:00:00Z"},
			},
			{
				BBox:       [4]float64{0, 0, 1, 1},
				Assets:     map[string]Asset{"dtm": {Href: "http://example/new.zip"}},
				Properties: FeatureProperties{Datetime: "2024-01-01T00:00:00Z"},
			},
		},
	})
	defer srv.Close()

	c := New(5 * time.Second)
	assets, err := c.FetchAssets(context.Background(), srv.URL, [4]float64{-1, -1, 2, 2}, func(key string, _ Asset) bool {
		return key == "dtm"
	})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "http://example/new.zip", assets[0].Href)
}

func TestFetchAssets_RejectsAmbiguousPredicateMatch(t *testing.T) {
	srv := catalogServer(t, catalogResponse{
		Features: []Feature{
			{
				BBox: [4]float64{0, 0, 1, 1},
				Assets: map[string]Asset{
					"dtm":  {Href: "http://example/a.zip"},
					"dtm2": {Href: "http://example/b.zip"},
				},
			},
		},
	})
	defer srv.Close()

	c := New(5 * time.Second)
	_, err := c.FetchAssets(context.Background(), srv.URL, [4]float64{-1, -1, 2, 2}, func(key string, _ Asset) bool {
		return true
	})
	assert.Error(t, err)
}

func TestFetchAssets_FailsOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	_, err := c.FetchAssets(context.Background(), srv.URL, [4]float64{0, 0, 1, 1}, func(string, Asset) bool { return true })
	assert.Error(t, err)
}
