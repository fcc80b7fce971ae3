// Package ogc talks to OGC API (pygeoapi) servers and classifies the
// collections they expose.
package ogc

// Link is an OGC API link relation as published in collection metadata.
type Link struct {
	Rel   string `json:"rel" yaml:"rel" doc:"Link relation" example:"items"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty" doc:"Media type" example:"application/geo+json"`
	Href  string `json:"href" yaml:"href" doc:"Target URL"`
	Title string `json:"title,omitempty" yaml:"title,omitempty" doc:"Human-readable title"`
}

// Collection is an immutable snapshot of one upstream collection.
// Only the fields the browser reads are decoded.
type Collection struct {
	ID          string `json:"id" doc:"Collection identifier" example:"obs"`
	Title       string `json:"title,omitempty" doc:"Display title"`
	Description string `json:"description,omitempty" doc:"Collection description"`
	ItemType    string `json:"itemType,omitempty" doc:"Declared item type" example:"feature"`
	Links       []Link `json:"links,omitempty" doc:"Link relations"`
}

// CollectionsResponse is the body of GET /collections.
type CollectionsResponse struct {
	Collections []Collection `json:"collections"`
	Links       []Link       `json:"links,omitempty"`
}

// ItemsQuery configures /collections/{id}/items requests.
type ItemsQuery struct {
	Limit        int
	BBox         []float64
	Datetime     string
	Properties   []string
	SkipGeometry *bool
}

// ItemsSummary describes a fetched FeatureCollection without the features.
type ItemsSummary struct {
	Count         int        `json:"count" doc:"Number of features returned"`
	BBox          [4]float64 `json:"bbox" doc:"Bounding box (minx, miny, maxx, maxy)"`
	GeometryTypes []string   `json:"geometryTypes" doc:"Distinct geometry types"`
}
