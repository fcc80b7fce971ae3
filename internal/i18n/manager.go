package i18n

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/joeblew999/plat-geo-browser/internal/settings"
)

// ErrLocaleLoadFailed means a catalog could not be loaded; the active
// locale is left unchanged.
var ErrLocaleLoadFailed = errors.New("locale load failed")

// State is a copy of the manager's locale facts.
type State struct {
	Active    string             `json:"active" doc:"Active locale code"`
	Loaded    []string           `json:"loaded" doc:"Locales whose catalogs are cached"`
	Direction settings.Direction `json:"direction" enum:"ltr,rtl" doc:"Text direction of the active locale"`
}

// Manager caches catalogs per locale for the lifetime of the process.
// Concurrent loads of the same locale share one fetch.
type Manager struct {
	loader  Loader
	persist func(code string) error
	logger  *slog.Logger
	group   singleflight.Group

	mu        sync.RWMutex
	catalogs  map[string]Catalog
	locales   []settings.Locale
	fallback  string
	active    string
	direction settings.Direction
}

// NewManager creates a manager. persist is called with the locale after
// every successful activation; it may be nil.
func NewManager(loader Loader, persist func(code string) error, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:    loader,
		persist:   persist,
		logger:    logger,
		catalogs:  make(map[string]Catalog),
		direction: settings.LTR,
	}
}

// Configure sets the supported locale metadata and the fallback locale.
func (m *Manager) Configure(locales []settings.Locale, fallback string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locales = append([]settings.Locale(nil), locales...)
	m.fallback = fallback
	if m.active != "" {
		m.direction = m.directionLocked(m.active)
	}
}

// Load fetches and caches the catalog for code unless it is already cached.
func (m *Manager) Load(ctx context.Context, code string) error {
	if m.IsLoaded(code) {
		return nil
	}

	_, err, shared := m.group.Do(code, func() (any, error) {
		if m.IsLoaded(code) {
			return nil, nil
		}
		cat, err := m.loader.LoadCatalog(ctx, code)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if _, ok := m.catalogs[code]; !ok {
			m.catalogs[code] = cat
		}
		m.mu.Unlock()
		m.logger.Debug("catalog loaded", "locale", code, "keys", len(cat))
		return nil, nil
	})
	if err != nil {
		m.logger.Warn("catalog load failed", "locale", code, "shared", shared, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrLocaleLoadFailed, code, err)
	}
	return nil
}

// Activate loads the catalog for code if needed, makes it the active
// locale and persists the choice. On load failure nothing changes.
func (m *Manager) Activate(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty locale", ErrLocaleLoadFailed)
	}
	if err := m.Load(ctx, code); err != nil {
		return err
	}

	m.mu.Lock()
	m.active = code
	m.direction = m.directionLocked(code)
	dir := m.direction
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist(code); err != nil {
			m.logger.Warn("failed to persist locale", "locale", code, "error", err)
		}
	}
	m.logger.Info("locale activated", "locale", code, "direction", dir)
	return nil
}

// IsLoaded reports whether the catalog for code is cached.
func (m *Manager) IsLoaded(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.catalogs[code]
	return ok
}

// DirectionOf returns the text direction of code, ltr when unknown.
func (m *Manager) DirectionOf(code string) settings.Direction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.directionLocked(code)
}

func (m *Manager) directionLocked(code string) settings.Direction {
	for _, l := range m.locales {
		if l.Code == code && l.Direction == settings.RTL {
			return settings.RTL
		}
	}
	return settings.LTR
}

// Active returns the active locale code.
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// State returns a copy of the locale state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loaded := make([]string, 0, len(m.catalogs))
	for code := range m.catalogs {
		loaded = append(loaded, code)
	}
	sort.Strings(loaded)
	return State{Active: m.active, Loaded: loaded, Direction: m.direction}
}

// T translates key in the active locale, then the fallback locale, and
// returns key itself when neither has it.
func (m *Manager) T(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, code := range []string{m.active, m.fallback} {
		if cat, ok := m.catalogs[code]; ok {
			if s, ok := cat[key]; ok {
				return s
			}
		}
	}
	return key
}

// Negotiate picks the supported locale that best matches an
// Accept-Language style string. It returns "" when nothing matches.
func (m *Manager) Negotiate(accept string) string {
	m.mu.RLock()
	codes := make([]string, len(m.locales))
	tags := make([]language.Tag, len(m.locales))
	for i, l := range m.locales {
		codes[i] = l.Code
		tags[i] = language.Make(l.Code)
	}
	m.mu.RUnlock()

	for _, c := range codes {
		if c == accept {
			return c
		}
	}
	if len(tags) == 0 {
		return ""
	}
	wanted, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(wanted) == 0 {
		return ""
	}
	_, idx, conf := language.NewMatcher(tags).Match(wanted...)
	if conf == language.No {
		return ""
	}
	return codes[idx]
}
