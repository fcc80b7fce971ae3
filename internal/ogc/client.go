package ogc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

// ErrCollectionFetchFailed wraps every failed upstream request.
var ErrCollectionFetchFailed = errors.New("collection fetch failed")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Fetcher is the subset of Client the orchestrator depends on.
type Fetcher interface {
	FetchCollections(ctx context.Context, serverURL, localeQuery string) ([]Collection, error)
}

var _ Fetcher = (*Client)(nil)

const (
	defaultUserAgent  = "plat-geo-browser/0.1"
	defaultItemsLimit = 1000
	requestTimeout    = 30 * time.Second

	// maxResponseBytes caps any upstream body, including item pages at the
	// maximum limit and vector tiles.
	maxResponseBytes = 32 << 20
)

// Client is a read-only OGC API client. The server URL is passed per call
// because the browser can switch servers at run time.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
	logger    *slog.Logger
}

// NewClient creates a client. A nil httpClient gets a default with a timeout.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, userAgent: defaultUserAgent, maxBody: maxResponseBytes, logger: logger}
}

// FetchCollections lists the collections of a server. localeQuery is
// appended verbatim (e.g. "lang=fr").
func (c *Client) FetchCollections(ctx context.Context, serverURL, localeQuery string) ([]Collection, error) {
	var payload CollectionsResponse
	if err := c.get(ctx, endpoint(serverURL, "/collections", localeQuery), &payload); err != nil {
		return nil, err
	}
	if payload.Collections == nil {
		return []Collection{}, nil
	}
	return payload.Collections, nil
}

// FetchCollection retrieves one collection's metadata.
func (c *Client) FetchCollection(ctx context.Context, serverURL, id, localeQuery string) (*Collection, error) {
	var payload Collection
	if err := c.get(ctx, endpoint(serverURL, "/collections/"+url.PathEscape(id), localeQuery), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchItems retrieves features from a collection.
func (c *Client) FetchItems(ctx context.Context, serverURL, id string, q ItemsQuery) (*geojson.FeatureCollection, error) {
	values := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultItemsLimit
	}
	values.Set("limit", strconv.Itoa(limit))
	if len(q.BBox) == 4 || len(q.BBox) == 6 {
		parts := make([]string, len(q.BBox))
		for i, v := range q.BBox {
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		values.Set("bbox", strings.Join(parts, ","))
	}
	if dt := strings.TrimSpace(q.Datetime); dt != "" {
		values.Set("datetime", dt)
	}
	if len(q.Properties) > 0 {
		values.Set("properties", strings.Join(q.Properties, ","))
	}
	if q.SkipGeometry != nil {
		values.Set("skipGeometry", strconv.FormatBool(*q.SkipGeometry))
	}

	target := endpoint(serverURL, "/collections/"+url.PathEscape(id)+"/items", values.Encode())
	body, err := c.getRaw(ctx, target, "application/geo+json")
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode items: %w", ErrCollectionFetchFailed, err)
	}
	return fc, nil
}

// FetchQueryables retrieves the queryables document of a collection.
func (c *Client) FetchQueryables(ctx context.Context, serverURL, id string) (map[string]any, error) {
	var payload map[string]any
	if err := c.get(ctx, endpoint(serverURL, "/collections/"+url.PathEscape(id)+"/queryables", ""), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchTileSet retrieves the tile set list of a collection.
func (c *Client) FetchTileSet(ctx context.Context, serverURL, id string) (map[string]any, error) {
	var payload map[string]any
	if err := c.get(ctx, endpoint(serverURL, "/collections/"+url.PathEscape(id)+"/tiles", ""), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WMSURL returns the coverage WMS endpoint of a collection.
func WMSURL(serverURL, id string) string {
	return strings.TrimRight(serverURL, "/") + "/collections/" + url.PathEscape(id) + "/coverage/wms"
}

// TileURLTemplate returns a {z}/{x}/{y} template. "mvt" uses the
// WebMercatorQuad tile matrix set.
func TileURLTemplate(serverURL, id, format string) string {
	base := strings.TrimRight(serverURL, "/") + "/collections/" + url.PathEscape(id)
	if format == "" || format == "mvt" {
		return base + "/tiles/WebMercatorQuad/{z}/{x}/{y}"
	}
	return base + "/tiles/{z}/{x}/{y}"
}

// TileURL fills a tile template for a concrete tile.
func TileURL(serverURL, id, format string, t maptile.Tile) string {
	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(t.Z), 10),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
	)
	return r.Replace(TileURLTemplate(serverURL, id, format))
}

// Summarize computes the count, bounds and geometry types of a feature collection.
func Summarize(fc *geojson.FeatureCollection) ItemsSummary {
	summary := ItemsSummary{GeometryTypes: []string{}}
	if fc == nil {
		return summary
	}
	summary.Count = len(fc.Features)

	var bound orb.Bound
	seen := map[string]bool{}
	first := true
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if first {
			bound = b
			first = false
		} else {
			bound = bound.Union(b)
		}
		seen[f.Geometry.GeoJSONType()] = true
	}
	if !first {
		summary.BBox = [4]float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}
	}
	for t := range seen {
		summary.GeometryTypes = append(summary.GeometryTypes, t)
	}
	sort.Strings(summary.GeometryTypes)
	return summary
}

// endpoint joins a server URL, a path and a raw query string.
func endpoint(serverURL, path, rawQuery string) string {
	u := strings.TrimRight(serverURL, "/") + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	body, err := c.getRaw(ctx, target, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrCollectionFetchFailed, target, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, target, accept string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrCollectionFetchFailed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrCollectionFetchFailed, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("ogc request", "url", target)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ogc request failed", "url", target, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCollectionFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Warn("ogc request failed", "url", target, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %w", ErrCollectionFetchFailed, &StatusError{URL: target, Code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrCollectionFetchFailed, err)
	}
	if int64(len(body)) > c.maxBody {
		c.logger.Warn("ogc response too large", "url", target, "limit", c.maxBody)
		return nil, fmt.Errorf("%w: %s: response exceeds %d bytes", ErrCollectionFetchFailed, target, c.maxBody)
	}
	c.logger.Debug("ogc response", "url", target, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}
