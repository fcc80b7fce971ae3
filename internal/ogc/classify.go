package ogc

import "strings"

// RenderType tells the view how a collection should be presented.
type RenderType string

const (
	RenderFeature  RenderType = "feature"
	RenderCoverage RenderType = "coverage"
	RenderTile     RenderType = "tile"
	RenderRecord   RenderType = "record"
	RenderUnknown  RenderType = "unknown"
)

// Media types that mark a link as serving vector or map tiles.
var tileTypeMarkers = []string{
	"vnd.mapbox-vector-tile",
	"vnd.mapbox.vector-tile",
	"application/x-protobuf",
	"tilejson",
}

// Classify maps a collection to its render type. First match wins:
// coverage, then tile, then record, then feature.
func Classify(c *Collection) RenderType {
	if c == nil {
		return RenderUnknown
	}

	itemType := strings.ToLower(strings.TrimSpace(c.ItemType))

	if itemType == "coverage" || c.anyLink(isCoverageLink) {
		return RenderCoverage
	}
	if c.anyLink(isTileLink) {
		return RenderTile
	}
	if itemType == "record" {
		return RenderRecord
	}
	if itemType == "feature" || c.anyLink(isFeatureItemsLink) {
		return RenderFeature
	}
	return RenderUnknown
}

func (c *Collection) anyLink(match func(Link) bool) bool {
	for _, l := range c.Links {
		if match(l) {
			return true
		}
	}
	return false
}

func isCoverageLink(l Link) bool {
	if l.Rel == "coverage" || l.Rel == "wms" {
		return true
	}
	return strings.Contains(strings.ToLower(l.Type), "coverage")
}

func isTileLink(l Link) bool {
	if l.Rel == "tiles" || strings.HasSuffix(l.Rel, "/tilesets-vector") || strings.HasSuffix(l.Rel, "/tilesets-map") {
		return true
	}
	t := strings.ToLower(l.Type)
	for _, marker := range tileTypeMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

func isFeatureItemsLink(l Link) bool {
	if l.Rel != "items" {
		return false
	}
	// Drop parameters such as "; charset=utf-8".
	mediaType, _, _ := strings.Cut(strings.ToLower(l.Type), ";")
	switch strings.TrimSpace(mediaType) {
	case "application/geo+json", "application/json":
		return true
	}
	return false
}
