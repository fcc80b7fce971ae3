package ogc

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
)

const mvtMediaType = "application/vnd.mapbox-vector-tile"

// TileLayerSummary describes one layer of a decoded vector tile.
type TileLayerSummary struct {
	Name          string   `json:"name" doc:"Layer name"`
	Features      int      `json:"features" doc:"Number of features in the layer"`
	GeometryTypes []string `json:"geometryTypes" doc:"Distinct geometry types"`
}

// TileSummary describes a decoded vector tile.
type TileSummary struct {
	Z      uint32             `json:"z"`
	X      uint32             `json:"x"`
	Y      uint32             `json:"y"`
	BBox   [4]float64         `json:"bbox" doc:"WGS84 bounds of the tile"`
	Layers []TileLayerSummary `json:"layers"`
}

// FetchTile downloads one WebMercatorQuad vector tile of a collection and
// decodes it, projected to WGS84. Gzipped bodies are detected by magic.
func (c *Client) FetchTile(ctx context.Context, serverURL, id string, t maptile.Tile) (mvt.Layers, error) {
	target := TileURL(serverURL, id, "mvt", t) + "?f=mvt"
	body, err := c.getRaw(ctx, target, mvtMediaType)
	if err != nil {
		return nil, err
	}

	var layers mvt.Layers
	if bytes.HasPrefix(body, []byte{0x1f, 0x8b}) {
		layers, err = mvt.UnmarshalGzipped(body)
	} else {
		layers, err = mvt.Unmarshal(body)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode tile %d/%d/%d: %w", ErrCollectionFetchFailed, t.Z, t.X, t.Y, err)
	}
	layers.ProjectToWGS84(t)
	return layers, nil
}

// SummarizeTile reports per-layer feature counts and geometry types.
func SummarizeTile(t maptile.Tile, layers mvt.Layers) TileSummary {
	b := t.Bound()
	s := TileSummary{
		Z: uint32(t.Z), X: t.X, Y: t.Y,
		BBox:   [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()},
		Layers: make([]TileLayerSummary, 0, len(layers)),
	}
	for _, l := range layers {
		seen := map[string]bool{}
		for _, f := range l.Features {
			if f != nil && f.Geometry != nil {
				seen[f.Geometry.GeoJSONType()] = true
			}
		}
		types := make([]string, 0, len(seen))
		for gt := range seen {
			types = append(types, gt)
		}
		sort.Strings(types)
		s.Layers = append(s.Layers, TileLayerSummary{Name: l.Name, Features: len(l.Features), GeometryTypes: types})
	}
	return s
}
