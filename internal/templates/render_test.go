package templates

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geo-browser/internal/app"
	"github.com/joeblew999/plat-geo-browser/internal/ogc"
	"github.com/joeblew999/plat-geo-browser/internal/settings"
)

func identity(key string) string { return key }

func TestPage_LangAndDir(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	html, err := r.Page(PageData{
		Lang:      "ar",
		Dir:       settings.RTL,
		T:         identity,
		State:     app.Snapshot{Config: settings.EffectiveConfig{ServerURL: "https://demo.example"}},
		Locales:   []settings.Locale{{Code: "en"}, {Code: "ar", Direction: settings.RTL}},
		EventsURL: "/api/v1/viewer/events",
	})
	require.NoError(t, err)
	assert.Contains(t, html, `<html lang="ar" dir="rtl">`)
	assert.Contains(t, html, `<option value="ar" selected>`)
	assert.Contains(t, html, "/api/v1/viewer/events")
}

func TestCollectionList(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	empty, err := r.CollectionList(app.Snapshot{}, identity)
	require.NoError(t, err)
	assert.Contains(t, empty, "noCollections")

	s := app.Snapshot{Collections: []app.ClassifiedCollection{
		{Collection: ogc.Collection{ID: "lakes", Title: "Lakes"}, RenderType: ogc.RenderFeature, Active: true, Color: "#4e79a7"},
		{Collection: ogc.Collection{ID: "dem"}, RenderType: ogc.RenderCoverage},
	}}
	html, err := r.CollectionList(s, identity)
	require.NoError(t, err)
	assert.Contains(t, html, `id="collection-lakes"`)
	assert.Contains(t, html, "render-feature active")
	assert.Contains(t, html, "#4e79a7")
	assert.Contains(t, html, "render.coverage")
	assert.Equal(t, 2, strings.Count(html, "<article"))
}

func TestStatus(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	html, err := r.Status(app.Snapshot{Loading: true, Error: "boom"}, identity)
	require.NoError(t, err)
	assert.Contains(t, html, "loading")
	assert.Contains(t, html, "boom")
}

func TestReload(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	require.NoError(t, r.Reload(fstest.MapFS{
		"fragments/x.html": {Data: []byte(`{{define "x"}}hello {{.}}{{end}}`)},
	}))
	out, err := r.Render("x", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, err = r.Render("page", nil)
	assert.Error(t, err, "old templates are gone after reload")
}
