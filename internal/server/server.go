package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-geo-browser/internal/api"
	"github.com/joeblew999/plat-geo-browser/internal/api/viewer"
	"github.com/joeblew999/plat-geo-browser/internal/app"
	"github.com/joeblew999/plat-geo-browser/internal/i18n"
	"github.com/joeblew999/plat-geo-browser/internal/ogc"
	"github.com/joeblew999/plat-geo-browser/internal/prefs"
	"github.com/joeblew999/plat-geo-browser/internal/settings"
	"github.com/joeblew999/plat-geo-browser/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	Version    string
	ServerURL  string // environment override for the OGC API server
	ConfigDoc  string // path or URL of the static config document, empty for built-in
	PrefsStore string // file, duckdb or memory
	PrefsPath  string
	DataDir    string
	CatalogDir string // directory of <code>.json catalogs, empty for built-in
	Logger     *slog.Logger
}

// Server is the geo browser HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	store    prefs.Store
	locales  *i18n.Manager
	client   *ogc.Client
	orch     *app.Orchestrator
	renderer *templates.Renderer
	logger   *slog.Logger
}

// New wires the browser components and registers the routes. The
// orchestrator is not initialised until Initialize is called.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := prefs.Open(cfg.PrefsStore, cfg.PrefsPath, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open prefs: %w", err)
	}

	resolver := settings.NewResolver(cfg.ServerURL, store, settings.Source{Location: cfg.ConfigDoc}, logger)

	var loader i18n.Loader = i18n.EmbeddedLoader()
	if cfg.CatalogDir != "" {
		loader = i18n.FSLoader{FS: os.DirFS(cfg.CatalogDir)}
	}
	locales := i18n.NewManager(loader, func(code string) error {
		_, err := resolver.Persist(settings.FieldLocale, code)
		return err
	}, logger)

	client := ogc.NewClient(nil, logger)
	orch, err := app.New(app.Deps{
		Resolver: resolver,
		Locales:  locales,
		Fetcher:  client,
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	renderer, err := templates.New()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-geo-browser API", cfg.Version)
	humaConfig.Info.Description = "Browse OGC API collections: selection, colours, locale and server switching."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		store:    store,
		locales:  locales,
		client:   client,
		orch:     orch,
		renderer: renderer,
		logger:   logger,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Initialize resolves configuration and fetches the first collection list.
// The server keeps serving after a failure; /health reports it degraded.
func (s *Server) Initialize(ctx context.Context) error {
	return s.orch.Initialize(ctx)
}

// Orchestrator exposes the browser state for the CLI.
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orch
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	return errors.Join(s.orch.Close(), s.store.Close())
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.orch, s.client, s.locales, s.config.Version))
	api.NewInfoHandler(s.config.Version, storeKind(s.config.PrefsStore), s.config.ConfigDoc).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	v := viewer.NewHandler(s.orch, s.locales, s.renderer, s.logger)
	v.RegisterRoutes(s.humaAPI)

	// Page routes
	s.mux.HandleFunc("/", v.Page)
}

func storeKind(kind string) string {
	if kind == "" {
		return "file"
	}
	return kind
}
