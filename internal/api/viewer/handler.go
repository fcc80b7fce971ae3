package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geo-browser/internal/app"
	"github.com/joeblew999/plat-geo-browser/internal/templates"
)

const eventsPath = "/api/v1/viewer/events"

// Browser is the orchestrator surface the viewer drives.
type Browser interface {
	Snapshot() app.Snapshot
	ToggleCollection(id string) error
	ChangeLocale(ctx context.Context, code string) error
	UpdateServerURL(ctx context.Context, url string) error
	Subscribe() chan app.Event
	Unsubscribe(ch chan app.Event)
}

// Translator looks up UI strings in the active catalog.
type Translator interface {
	T(key string) string
}

type Handler struct {
	browser  Browser
	tr       Translator
	renderer *templates.Renderer
	logger   *slog.Logger
}

func NewHandler(b Browser, tr Translator, renderer *templates.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{browser: b, tr: tr, renderer: renderer, logger: logger}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, eventsPath, h.Events, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/toggle", h.Toggle, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/locale", h.Locale, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/server", h.Server, huma.OperationTags("viewer"))
}

// Page serves the viewer HTML. Its lang and dir follow the active locale.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s := h.browser.Snapshot()
	html, err := h.renderer.Page(templates.PageData{
		Lang:      s.Locale.Active,
		Dir:       s.Locale.Direction,
		T:         h.tr.T,
		State:     s,
		Locales:   s.Config.SupportedLocales,
		EventsURL: eventsPath,
	})
	if err != nil {
		h.logger.Error("render page", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// Events streams the collection list and signals on every orchestrator change.
func (h *Handler) Events(ctx context.Context, input *EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)
			ch := h.browser.Subscribe()
			defer h.browser.Unsubscribe(ch)

			lang := ""
			if err := h.push(sse, &lang); err != nil {
				return
			}
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if err := h.push(sse, &lang); err != nil {
						h.logger.Debug("viewer stream closed", "error", err)
						return
					}
					sse.DispatchCustomEvent("browser-changed", map[string]any{
						"kind": ev.Kind, "id": ev.ID, "generation": ev.Generation,
					})
				}
			}
		},
	}, nil
}

// push renders the current snapshot. lang tracks the locale last sent so the
// document attributes are only rewritten when it changes.
func (h *Handler) push(sse SSE, lang *string) error {
	s := h.browser.Snapshot()

	list, err := h.renderer.CollectionList(s, h.tr.T)
	if err != nil {
		return err
	}
	if err := sse.Patch(list, "#collection-list"); err != nil {
		return err
	}
	status, err := h.renderer.Status(s, h.tr.T)
	if err != nil {
		return err
	}
	if err := sse.Patch(status, "#status"); err != nil {
		return err
	}

	if s.Locale.Active != *lang {
		*lang = s.Locale.Active
		script := fmt.Sprintf("document.documentElement.lang=%s;document.documentElement.dir=%s",
			strconv.Quote(s.Locale.Active), strconv.Quote(string(s.Locale.Direction)))
		if err := sse.ExecuteScript(script); err != nil {
			return err
		}
	}
	return sse.Signals(map[string]any{
		"server":  s.Config.ServerURL,
		"locale":  s.Locale.Active,
		"loading": s.Loading,
		"error":   s.Error,
	})
}

func (h *Handler) Toggle(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	id := signals.String("id")
	if id == "" {
		return nil, huma.Error400BadRequest("Collection id is required")
	}
	return h.respond(func() error { return h.browser.ToggleCollection(id) }), nil
}

func (h *Handler) Locale(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	code := signals.String("locale")
	if code == "" {
		return nil, huma.Error400BadRequest("Locale is required")
	}
	return h.respond(func() error { return h.browser.ChangeLocale(ctx, code) }), nil
}

func (h *Handler) Server(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	url := signals.String("server")
	if url == "" {
		return nil, huma.Error400BadRequest("Server URL is required")
	}
	return h.respond(func() error { return h.browser.UpdateServerURL(ctx, url) }), nil
}

// respond runs a mutator and reports its outcome as signals. The list
// itself is re-rendered by the events stream.
func (h *Handler) respond(mutate func() error) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)
			if err := mutate(); err != nil {
				h.logger.Warn("viewer action failed", "error", err)
				sse.Error(err.Error())
				return
			}
			sse.Signals(map[string]any{"error": "", "id": ""})
		},
	}
}
