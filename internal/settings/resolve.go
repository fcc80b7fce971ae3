package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joeblew999/plat-geo-browser/internal/prefs"
)

// Inputs are the three sources resolution reads from.
type Inputs struct {
	EnvServerURL       string
	PersistedServerURL string
	PersistedLocale    string
	Document           Document
}

var fallbackLocales = []Locale{{Code: FallbackLocale, QueryParam: "lang=" + FallbackLocale, Direction: LTR}}

// Resolve applies the precedence rules. It performs no I/O.
//
// Server URL: environment > persisted > document > FallbackServerURL.
// Locale: persisted (if supported) > document default > FallbackLocale.
func Resolve(in Inputs) EffectiveConfig {
	cfg := EffectiveConfig{
		SupportedLocales: append([]Locale(nil), in.Document.I18n.SupportedLocales...),
		DefaultLocale:    in.Document.I18n.DefaultLocale,
		FallbackLocale:   in.Document.I18n.FallbackLocale,
	}
	if len(cfg.SupportedLocales) == 0 {
		cfg.SupportedLocales = append([]Locale(nil), fallbackLocales...)
	}
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = FallbackLocale
	}
	if cfg.FallbackLocale == "" {
		cfg.FallbackLocale = cfg.DefaultLocale
	}

	for _, candidate := range []string{in.EnvServerURL, in.PersistedServerURL, in.Document.Server.URL, FallbackServerURL} {
		if u := CanonicalServerURL(candidate); u != "" {
			cfg.ServerURL = u
			break
		}
	}

	switch {
	case in.PersistedLocale != "" && cfg.Supports(in.PersistedLocale):
		cfg.Locale = in.PersistedLocale
	case in.Document.I18n.DefaultLocale != "":
		cfg.Locale = in.Document.I18n.DefaultLocale
	default:
		cfg.Locale = FallbackLocale
	}
	return cfg
}

// Field names a persisted setting.
type Field string

const (
	FieldServerURL Field = prefs.KeyServerURL
	FieldLocale    Field = prefs.KeyLocale
)

// Resolver reads the inputs of Resolve from their real sources and writes
// user choices back to the store.
type Resolver struct {
	env    string
	store  prefs.Store
	loader DocumentLoader
	logger *slog.Logger
}

// NewResolver creates a resolver. env is the environment override for the
// server URL ("" when unset).
func NewResolver(env string, store prefs.Store, loader DocumentLoader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{env: env, store: store, loader: loader, logger: logger}
}

// Resolve loads the document and persisted values and applies precedence.
func (r *Resolver) Resolve(ctx context.Context) (EffectiveConfig, error) {
	if r.loader == nil {
		return EffectiveConfig{}, fmt.Errorf("%w: no document loader", ErrConfigUnavailable)
	}
	doc, err := r.loader.LoadDocument(ctx)
	if err != nil {
		return EffectiveConfig{}, err
	}

	in := Inputs{
		EnvServerURL:       r.env,
		PersistedServerURL: r.read(prefs.KeyServerURL),
		PersistedLocale:    r.read(prefs.KeyLocale),
		Document:           doc,
	}
	cfg := Resolve(in)
	r.logger.Info("configuration resolved", "server", cfg.ServerURL, "locale", cfg.Locale,
		"env_override", in.EnvServerURL != "", "persisted_server", in.PersistedServerURL != "")
	return cfg, nil
}

// Persist writes a setting through to the store and returns the stored
// value. Server URLs are canonicalised first.
func (r *Resolver) Persist(field Field, value string) (string, error) {
	switch field {
	case FieldServerURL:
		canonical, err := ParseServerURL(value)
		if err != nil {
			return "", err
		}
		value = canonical
	case FieldLocale:
		if value == "" {
			return "", fmt.Errorf("persist locale: empty value")
		}
	default:
		return "", fmt.Errorf("unknown setting %q", field)
	}

	if r.store == nil {
		return value, nil
	}
	if err := r.store.Set(string(field), value); err != nil {
		return "", fmt.Errorf("persist %s: %w", field, err)
	}
	return value, nil
}

func (r *Resolver) read(key string) string {
	if r.store == nil {
		return ""
	}
	v, ok, err := r.store.Get(key)
	if err != nil {
		r.logger.Warn("failed to read persisted setting", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}
