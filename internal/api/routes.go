// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-geo-browser/internal/app"
	"github.com/joeblew999/plat-geo-browser/internal/i18n"
	"github.com/joeblew999/plat-geo-browser/internal/ogc"
	"github.com/joeblew999/plat-geo-browser/internal/settings"
)

// Browser is the orchestrator surface the handlers drive.
type Browser interface {
	Snapshot() app.Snapshot
	ToggleCollection(id string) error
	ChangeLocale(ctx context.Context, code string) error
	UpdateServerURL(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	ServerURL() string
	LocaleQuery() string
}

// Upstream proxies per-collection reads to the current OGC API server.
type Upstream interface {
	FetchCollection(ctx context.Context, serverURL, id, localeQuery string) (*ogc.Collection, error)
	FetchItems(ctx context.Context, serverURL, id string, q ogc.ItemsQuery) (*geojson.FeatureCollection, error)
	FetchQueryables(ctx context.Context, serverURL, id string) (map[string]any, error)
	FetchTileSet(ctx context.Context, serverURL, id string) (map[string]any, error)
	FetchTile(ctx context.Context, serverURL, id string, t maptile.Tile) (mvt.Layers, error)
}

// Negotiator maps a loose language tag to a supported locale code.
type Negotiator interface {
	Negotiate(accept string) string
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Collection ID" example:"obs"`
}

type StateOutput struct {
	Body app.Snapshot
}

type HealthBody struct {
	Status  string    `json:"status" doc:"Health status" enum:"ok,degraded" example:"ok"`
	Version string    `json:"version" doc:"API version" example:"1.0.0"`
	Phase   app.Phase `json:"phase" doc:"Orchestrator lifecycle state"`
}

type LocaleInput struct {
	Body struct {
		Locale string `json:"locale" minLength:"1" doc:"Locale code or language tag" example:"fr"`
	}
}

type ServerInput struct {
	Body struct {
		URL string `json:"url" minLength:"1" doc:"OGC API server root" example:"https://demo.pygeoapi.io/master"`
	}
}

type CollectionDetail struct {
	ogc.Collection
	RenderType      ogc.RenderType `json:"renderType" doc:"How the collection is presented"`
	WMSURL          string         `json:"wmsUrl,omitempty" doc:"Coverage WMS endpoint"`
	TileURLTemplate string         `json:"tileUrlTemplate,omitempty" doc:"Vector tile URL template"`
}

type ItemsInput struct {
	IDInput
	Limit        int    `query:"limit" default:"1000" minimum:"1" maximum:"10000" doc:"Maximum number of features"`
	BBox         string `query:"bbox" doc:"minx,miny,maxx,maxy" example:"-10,40,5,55"`
	Datetime     string `query:"datetime" doc:"RFC 3339 instant or interval"`
	Properties   string `query:"properties" doc:"Comma-separated property names"`
	SkipGeometry bool   `query:"skipGeometry" doc:"Omit geometries upstream"`
}

type TileInput struct {
	IDInput
	Z uint32 `path:"z" maximum:"24" doc:"Zoom level"`
	X uint32 `path:"x" doc:"Tile column"`
	Y uint32 `path:"y" doc:"Tile row"`
}

type DocumentOutput struct {
	Body map[string]any
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	browser  Browser
	upstream Upstream
	locales  Negotiator
	version  string
}

func NewAPIHandler(b Browser, up Upstream, locales Negotiator, version string) *APIHandler {
	return &APIHandler{browser: b, upstream: up, locales: locales, version: version}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterState registers the read model and the orchestrator mutators.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("state"))
	huma.Put(api, "/api/v1/locale", h.PutLocale, huma.OperationTags("state"))
	huma.Put(api, "/api/v1/server", h.PutServer, huma.OperationTags("state"))
	huma.Post(api, "/api/v1/refresh", h.PostRefresh, huma.OperationTags("state"))
}

// RegisterCollections registers selection and upstream proxy routes.
func (h *APIHandler) RegisterCollections(api huma.API) {
	huma.Post(api, "/api/v1/collections/{id}/toggle", h.ToggleCollection, huma.OperationTags("collections"))
	huma.Get(api, "/api/v1/collections/{id}", h.GetCollection, huma.OperationTags("collections"))
	huma.Get(api, "/api/v1/collections/{id}/items", h.GetItems, huma.OperationTags("collections"))
	huma.Get(api, "/api/v1/collections/{id}/queryables", h.GetQueryables, huma.OperationTags("collections"))
	huma.Get(api, "/api/v1/collections/{id}/tiles", h.GetTiles, huma.OperationTags("collections"))
	huma.Get(api, "/api/v1/collections/{id}/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("collections"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	s := h.browser.Snapshot()
	status := "ok"
	if s.Degraded() {
		status = "degraded"
	}
	return &struct{ Body HealthBody }{Body: HealthBody{Status: status, Version: h.version, Phase: s.Phase}}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*StateOutput, error) {
	return &StateOutput{Body: h.browser.Snapshot()}, nil
}

func (h *APIHandler) ToggleCollection(ctx context.Context, input *IDInput) (*StateOutput, error) {
	if err := h.browser.ToggleCollection(input.ID); err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: h.browser.Snapshot()}, nil
}

func (h *APIHandler) PutLocale(ctx context.Context, input *LocaleInput) (*StateOutput, error) {
	code := input.Body.Locale
	if h.locales != nil {
		if negotiated := h.locales.Negotiate(code); negotiated != "" {
			code = negotiated
		} else {
			return nil, huma.Error422UnprocessableEntity("unsupported locale " + strconv.Quote(input.Body.Locale))
		}
	}
	if err := h.browser.ChangeLocale(ctx, code); err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: h.browser.Snapshot()}, nil
}

func (h *APIHandler) PutServer(ctx context.Context, input *ServerInput) (*StateOutput, error) {
	if err := h.browser.UpdateServerURL(ctx, input.Body.URL); err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: h.browser.Snapshot()}, nil
}

func (h *APIHandler) PostRefresh(ctx context.Context, input *struct{}) (*StateOutput, error) {
	if err := h.browser.Refresh(ctx); err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: h.browser.Snapshot()}, nil
}

func (h *APIHandler) GetCollection(ctx context.Context, input *IDInput) (*struct{ Body CollectionDetail }, error) {
	server := h.browser.ServerURL()
	c, err := h.upstream.FetchCollection(ctx, server, input.ID, h.browser.LocaleQuery())
	if err != nil {
		return nil, toHumaError(err)
	}
	detail := CollectionDetail{Collection: *c, RenderType: ogc.Classify(c)}
	switch detail.RenderType {
	case ogc.RenderCoverage:
		detail.WMSURL = ogc.WMSURL(server, c.ID)
	case ogc.RenderTile:
		detail.TileURLTemplate = ogc.TileURLTemplate(server, c.ID, "mvt")
	}
	return &struct{ Body CollectionDetail }{Body: detail}, nil
}

func (h *APIHandler) GetItems(ctx context.Context, input *ItemsInput) (*struct{ Body ogc.ItemsSummary }, error) {
	q := ogc.ItemsQuery{Limit: input.Limit, Datetime: input.Datetime}
	if input.BBox != "" {
		bbox, err := parseBBox(input.BBox)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		q.BBox = bbox
	}
	if input.Properties != "" {
		q.Properties = strings.Split(input.Properties, ",")
	}
	if input.SkipGeometry {
		skip := true
		q.SkipGeometry = &skip
	}

	fc, err := h.upstream.FetchItems(ctx, h.browser.ServerURL(), input.ID, q)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body ogc.ItemsSummary }{Body: ogc.Summarize(fc)}, nil
}

func (h *APIHandler) GetQueryables(ctx context.Context, input *IDInput) (*DocumentOutput, error) {
	doc, err := h.upstream.FetchQueryables(ctx, h.browser.ServerURL(), input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &DocumentOutput{Body: doc}, nil
}

func (h *APIHandler) GetTiles(ctx context.Context, input *IDInput) (*DocumentOutput, error) {
	doc, err := h.upstream.FetchTileSet(ctx, h.browser.ServerURL(), input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &DocumentOutput{Body: doc}, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*struct{ Body ogc.TileSummary }, error) {
	if limit := uint32(1) << input.Z; input.X >= limit || input.Y >= limit {
		return nil, huma.Error400BadRequest("tile out of range for zoom " + strconv.Itoa(int(input.Z)))
	}
	t := maptile.New(input.X, input.Y, maptile.Zoom(input.Z))
	layers, err := h.upstream.FetchTile(ctx, h.browser.ServerURL(), input.ID, t)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body ogc.TileSummary }{Body: ogc.SummarizeTile(t, layers)}, nil
}

func parseBBox(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return nil, errors.New("bbox needs 4 or 6 comma-separated numbers")
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("bbox: " + err.Error())
		}
		out[i] = v
	}
	return out, nil
}

// toHumaError maps orchestrator and upstream errors to HTTP statuses.
func toHumaError(err error) error {
	var status *ogc.StatusError
	switch {
	case errors.Is(err, app.ErrUnknownCollection):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, app.ErrSuperseded):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, app.ErrNotReady), errors.Is(err, app.ErrClosed),
		errors.Is(err, settings.ErrConfigUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.As(err, &status) && status.Code == 404:
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, i18n.ErrLocaleLoadFailed), errors.Is(err, ogc.ErrCollectionFetchFailed):
		return huma.Error502BadGateway(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
