package templates

import (
	"bytes"

	"github.com/joeblew999/plat-geo-browser/internal/app"
	"github.com/joeblew999/plat-geo-browser/internal/settings"
)

// Translator looks up a UI string in the active catalog.
type Translator func(key string) string

// PageData is the input of the "page" template.
type PageData struct {
	Lang      string
	Dir       settings.Direction
	T         Translator
	State     app.Snapshot
	Locales   []settings.Locale
	EventsURL string
}

// CardData is the input of the "collection-card" template.
type CardData struct {
	app.ClassifiedCollection
	T Translator
}

// Page renders the full viewer page.
func (r *Renderer) Page(d PageData) (string, error) {
	return r.Render("page", d)
}

// CollectionList renders one card per collection, or the empty state.
func (r *Renderer) CollectionList(s app.Snapshot, t Translator) (string, error) {
	var buf bytes.Buffer
	if len(s.Collections) == 0 {
		err := r.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": t("noCollections"), "Message": s.Config.ServerURL,
		})
		return buf.String(), err
	}
	for _, c := range s.Collections {
		if err := r.RenderToBuffer(&buf, "collection-card", CardData{ClassifiedCollection: c, T: t}); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Status renders the phase and error banner.
func (r *Renderer) Status(s app.Snapshot, t Translator) (string, error) {
	return r.Render("status", map[string]any{"State": s, "T": t})
}
