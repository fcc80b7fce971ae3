package ogc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsBody = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[-3, 4], [5, -6]]}, "properties": {}},
    {"type": "Feature", "geometry": null, "properties": {}}
  ]
}`

func TestClient_FetchesEndpointsAndEncodesQueries(t *testing.T) {
	t.Parallel()

	var gotCollectionsQuery string
	var gotItemsQuery url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/collections":
			gotCollectionsQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"collections":[{"id":"obs","itemType":"feature"},{"id":"dem","links":[{"rel":"coverage"}]}]}`))
		case "/collections/obs":
			_, _ = w.Write([]byte(`{"id":"obs","title":"Observations"}`))
		case "/collections/obs/items":
			gotItemsQuery = r.URL.Query()
			_, _ = w.Write([]byte(itemsBody))
		case "/collections/obs/queryables":
			_, _ = w.Write([]byte(`{"type":"object","properties":{"name":{"type":"string"}}}`))
		case "/collections/obs/tiles":
			_, _ = w.Write([]byte(`{"tilesets":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c := NewClient(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	cols, err := c.FetchCollections(ctx, server.URL+"/", "lang=fr")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "lang=fr", gotCollectionsQuery)
	assert.Equal(t, RenderFeature, Classify(&cols[0]))
	assert.Equal(t, RenderCoverage, Classify(&cols[1]))

	col, err := c.FetchCollection(ctx, server.URL, "obs", "")
	require.NoError(t, err)
	assert.Equal(t, "Observations", col.Title)

	skip := true
	fc, err := c.FetchItems(ctx, server.URL, "obs", ItemsQuery{
		BBox:         []float64{-10, -10, 10, 10.5},
		Properties:   []string{"name", "value"},
		SkipGeometry: &skip,
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", gotItemsQuery.Get("limit"))
	assert.Equal(t, "-10,-10,10,10.5", gotItemsQuery.Get("bbox"))
	assert.Equal(t, "name,value", gotItemsQuery.Get("properties"))
	assert.Equal(t, "true", gotItemsQuery.Get("skipGeometry"))
	assert.Empty(t, gotItemsQuery.Get("datetime"))

	summary := Summarize(fc)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, [4]float64{-3, -6, 5, 4}, summary.BBox)
	assert.Equal(t, []string{"LineString", "Point"}, summary.GeometryTypes)

	q, err := c.FetchQueryables(ctx, server.URL, "obs")
	require.NoError(t, err)
	assert.Equal(t, "object", q["type"])

	ts, err := c.FetchTileSet(ctx, server.URL, "obs")
	require.NoError(t, err)
	assert.Contains(t, ts, "tilesets")
}

func TestClient_EmptyCollectionList(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	cols, err := NewClient(nil, nil).FetchCollections(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.NotNil(t, cols)
	assert.Empty(t, cols)
}

func TestClient_StatusErrorWrapsSentinel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(nil, nil).FetchCollections(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollectionFetchFailed)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestClient_MalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"collections": [`))
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(nil, nil).FetchCollections(context.Background(), server.URL, "")
	assert.ErrorIs(t, err, ErrCollectionFetchFailed)
}

func TestClient_OversizedBodyRejected(t *testing.T) {
	t.Parallel()

	body := `{"collections": [{"id": "a"}, {"id": "b"}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	c := NewClient(nil, nil)
	assert.EqualValues(t, maxResponseBytes, c.maxBody)

	c.maxBody = int64(len(body))
	cols, err := c.FetchCollections(context.Background(), server.URL, "")
	require.NoError(t, err, "a body of exactly the limit is accepted")
	assert.Len(t, cols, 2)

	c.maxBody = int64(len(body)) - 1
	_, err = c.FetchCollections(context.Background(), server.URL, "")
	require.ErrorIs(t, err, ErrCollectionFetchFailed)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestURLHelpers(t *testing.T) {
	assert.Equal(t, "https://h/collections/dem/coverage/wms", WMSURL("https://h/", "dem"))
	assert.Equal(t, "https://h/collections/roads/tiles/WebMercatorQuad/{z}/{x}/{y}", TileURLTemplate("https://h", "roads", "mvt"))
	assert.Equal(t, "https://h/collections/roads/tiles/{z}/{x}/{y}", TileURLTemplate("https://h", "roads", "png"))
	assert.Equal(t,
		"https://h/collections/roads/tiles/WebMercatorQuad/3/5/2",
		TileURL("https://h", "roads", "mvt", maptile.New(5, 2, 3)),
	)
}

func TestSummarize_Nil(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Count)
	assert.Empty(t, s.GeometryTypes)
}
