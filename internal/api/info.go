package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	version    string
	prefsStore string
	configURL  string
}

func NewInfoHandler(version, prefsStore, configURL string) *InfoHandler {
	return &InfoHandler{version: version, prefsStore: prefsStore, configURL: configURL}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	PrefsStore string   `json:"prefs_store" doc:"Preference store backend" enum:"file,duckdb,memory"`
	Config     string   `json:"config" doc:"Static configuration source, empty for the built-in document"`
	Features   []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "plat-geo-browser",
		Version:    h.version,
		PrefsStore: h.prefsStore,
		Config:     h.configURL,
		Features:   []string{"ogcapi-features", "ogcapi-coverages", "ogcapi-tiles", "i18n", "datastar"},
	}}, nil
}
