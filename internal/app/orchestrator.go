// Package app coordinates configuration, locale, the collection list and
// the user's selection, and exposes a read model to the view layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joeblew999/plat-geo-browser/internal/i18n"
	"github.com/joeblew999/plat-geo-browser/internal/ogc"
	"github.com/joeblew999/plat-geo-browser/internal/selection"
	"github.com/joeblew999/plat-geo-browser/internal/settings"
)

// Resolver resolves and persists configuration.
type Resolver interface {
	Resolve(ctx context.Context) (settings.EffectiveConfig, error)
	Persist(field settings.Field, value string) (string, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Resolver Resolver
	Locales  *i18n.Manager
	Fetcher  ogc.Fetcher
	Palette  selection.Palette // DefaultPalette when empty
	Clock    clockwork.Clock   // real clock when nil
	Logger   *slog.Logger
}

// Orchestrator owns the effective configuration, the collection list, the
// active set and the colour assignments. It is safe for concurrent use;
// network calls run outside the lock and every reconfigure takes a new
// generation so late results of older requests are discarded.
type Orchestrator struct {
	resolver Resolver
	locales  *i18n.Manager
	fetcher  ogc.Fetcher
	clock    clockwork.Clock
	logger   *slog.Logger
	bus      *EventBus

	// localeMu orders locale activation between overlapping changes.
	localeMu sync.Mutex

	mu          sync.Mutex
	phase       Phase
	cfg         settings.EffectiveConfig
	haveConfig  bool
	collections []ogc.Collection
	active      *selection.ActiveSet
	colors      *selection.ColorAssigner
	loading     bool
	lastErr     error
	generation  uint64
	goodServer  string
	updatedAt   time.Time
	closed      bool
}

// New creates an uninitialised orchestrator.
func New(d Deps) (*Orchestrator, error) {
	if d.Resolver == nil || d.Locales == nil || d.Fetcher == nil {
		return nil, errors.New("app: resolver, locales and fetcher are required")
	}
	palette := d.Palette
	if len(palette) == 0 {
		palette = selection.DefaultPalette
	}
	colors, err := selection.NewColorAssigner(palette)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Orchestrator{
		resolver:    d.Resolver,
		locales:     d.Locales,
		fetcher:     d.Fetcher,
		clock:       d.Clock,
		logger:      d.Logger,
		bus:         NewEventBus(),
		phase:       Uninitialized,
		collections: []ogc.Collection{},
		active:      selection.NewActiveSet(colors),
		colors:      colors,
	}, nil
}

// Initialize resolves configuration, activates the locale and fetches the
// collection list. A configuration failure is terminal.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.phase != Uninitialized {
		o.mu.Unlock()
		return fmt.Errorf("app: already initialized (phase %s)", o.phase)
	}
	o.phase = Initializing
	gen := o.beginLocked()
	o.mu.Unlock()
	o.publish(Event{Kind: "initializing", Generation: gen})

	cfg, err := o.resolver.Resolve(ctx)
	if err != nil {
		o.logger.Error("configuration unavailable", "error", err)
		return o.fail(gen, err)
	}

	o.locales.Configure(cfg.SupportedLocales, cfg.FallbackLocale)
	if err := o.locales.Activate(ctx, cfg.Locale); err != nil {
		if cfg.FallbackLocale == "" || cfg.FallbackLocale == cfg.Locale {
			return o.fail(gen, err)
		}
		o.logger.Warn("locale unavailable, using fallback", "locale", cfg.Locale, "fallback", cfg.FallbackLocale, "error", err)
		if ferr := o.locales.Activate(ctx, cfg.FallbackLocale); ferr != nil {
			return o.fail(gen, errors.Join(err, ferr))
		}
		cfg.Locale = cfg.FallbackLocale
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrSuperseded
	}
	o.cfg = cfg
	o.haveConfig = true
	o.goodServer = cfg.ServerURL
	o.mu.Unlock()

	return o.fetch(ctx, gen, cfg.ServerURL, cfg.QueryFor(cfg.Locale))
}

// ToggleCollection flips the active state of a collection of the current list.
func (o *Orchestrator) ToggleCollection(id string) error {
	o.mu.Lock()
	if err := o.readyLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	if !o.hasCollectionLocked(id) {
		o.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownCollection, id)
	}
	_, nowActive := o.active.Toggle(id)
	gen := o.generation
	o.mu.Unlock()

	o.logger.Debug("collection toggled", "id", id, "active", nowActive)
	o.publish(Event{Kind: "toggled", ID: id, Generation: gen})
	return nil
}

// ChangeLocale activates a locale and refetches collections for it. If the
// catalog fails to load the previous locale stays active and nothing is
// invalidated. A failed refetch does not roll the locale back.
func (o *Orchestrator) ChangeLocale(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: empty locale", ErrInvalidInput)
	}

	o.mu.Lock()
	if err := o.readyLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	gen := o.beginLocked()
	o.mu.Unlock()
	o.publish(Event{Kind: "reconfigure", Generation: gen})

	if err := o.locales.Load(ctx, code); err != nil {
		return o.fail(gen, err)
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.logger.Info("discarding superseded locale change", "locale", code, "generation", gen)
		return ErrSuperseded
	}
	o.cfg.Locale = code
	o.phase = Initializing
	o.invalidateLocked()
	server, query := o.cfg.ServerURL, o.cfg.QueryFor(code)
	o.mu.Unlock()

	if err := o.activateLocale(ctx, gen, code); err != nil {
		return err
	}
	o.publish(Event{Kind: "reconfigure", Generation: gen})

	o.logger.Info("locale changed", "locale", code, "server", server, "generation", gen)
	return o.fetch(ctx, gen, server, query)
}

// UpdateServerURL switches to another server and refetches collections.
// If the fetch fails the server URL rolls back to the last one that served
// a collection list.
func (o *Orchestrator) UpdateServerURL(ctx context.Context, raw string) error {
	canonical, err := settings.ParseServerURL(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	o.mu.Lock()
	if err := o.readyLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	gen := o.beginLocked()
	previous := o.goodServer
	o.cfg.ServerURL = canonical
	o.phase = Initializing
	o.invalidateLocked()
	query := o.cfg.QueryFor(o.cfg.Locale)
	o.mu.Unlock()
	o.publish(Event{Kind: "reconfigure", Generation: gen})

	o.logger.Info("server changed", "server", canonical, "previous", previous, "generation", gen)
	if err := o.fetch(ctx, gen, canonical, query); err != nil {
		return err
	}

	if _, perr := o.resolver.Persist(settings.FieldServerURL, canonical); perr != nil {
		o.logger.Warn("failed to persist server URL", "server", canonical, "error", perr)
	}
	return nil
}

// Refresh refetches the collection list for the current settings without
// resetting the selection. Ids missing from the new list are deactivated.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	if err := o.readyLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	gen := o.beginLocked()
	server, query := o.cfg.ServerURL, o.cfg.QueryFor(o.cfg.Locale)
	o.mu.Unlock()
	o.publish(Event{Kind: "initializing", Generation: gen})

	return o.fetch(ctx, gen, server, query)
}

// Snapshot returns a copy of the read model. Render types are derived on
// every call.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	colors := o.colors.Assignments()
	active := o.active.IDs()
	isActive := make(map[string]bool, len(active))
	for _, id := range active {
		isActive[id] = true
	}

	cols := make([]ClassifiedCollection, len(o.collections))
	for i := range o.collections {
		c := o.collections[i]
		cols[i] = ClassifiedCollection{
			Collection: c,
			RenderType: ogc.Classify(&c),
			Active:     isActive[c.ID],
			Color:      colors[c.ID],
		}
	}

	s := Snapshot{
		Phase:       o.phase,
		Config:      o.cfg.Clone(),
		Locale:      o.locales.State(),
		Collections: cols,
		Active:      active,
		Colors:      colors,
		Loading:     o.loading,
		Generation:  o.generation,
		UpdatedAt:   o.updatedAt,
	}
	if o.lastErr != nil {
		s.Error = o.lastErr.Error()
		s.ErrorKind = errorKind(o.lastErr)
	}
	return s
}

// ServerURL returns the current server URL.
func (o *Orchestrator) ServerURL() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.ServerURL
}

// LocaleQuery returns the upstream locale query of the active locale.
func (o *Orchestrator) LocaleQuery() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.QueryFor(o.cfg.Locale)
}

// Subscribe returns a channel of state-change events.
func (o *Orchestrator) Subscribe() chan Event {
	return o.bus.Subscribe()
}

// Unsubscribe releases a channel returned by Subscribe.
func (o *Orchestrator) Unsubscribe(ch chan Event) {
	o.bus.Unsubscribe(ch)
}

// Close tears the orchestrator down. Subscribers' channels are closed and
// later mutators return ErrClosed.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.generation++
	o.mu.Unlock()
	o.bus.Close()
	return nil
}

// beginLocked starts a new attempt: it takes a new generation, clears the
// error slot and raises the loading flag.
func (o *Orchestrator) beginLocked() uint64 {
	o.generation++
	o.lastErr = nil
	o.loading = true
	return o.generation
}

// invalidateLocked drops everything derived from the previous settings.
func (o *Orchestrator) invalidateLocked() {
	o.active.Reset()
	o.colors.Reset()
	o.collections = []ogc.Collection{}
}

func (o *Orchestrator) readyLocked() error {
	if o.closed {
		return ErrClosed
	}
	if !o.haveConfig {
		return ErrNotReady
	}
	return nil
}

func (o *Orchestrator) hasCollectionLocked(id string) bool {
	for _, c := range o.collections {
		if c.ID == id {
			return true
		}
	}
	return false
}

// activateLocale switches the active catalog to code unless gen has been
// superseded. The catalog is cached by the time this runs; activation
// persists the choice, so it runs outside o.mu.
func (o *Orchestrator) activateLocale(ctx context.Context, gen uint64, code string) error {
	o.localeMu.Lock()
	defer o.localeMu.Unlock()

	o.mu.Lock()
	current := gen == o.generation
	o.mu.Unlock()
	if !current {
		o.logger.Info("discarding superseded locale change", "locale", code, "generation", gen)
		return ErrSuperseded
	}
	if err := o.locales.Activate(ctx, code); err != nil {
		return o.fail(gen, err)
	}
	return nil
}

// fetch loads the collection list and applies it if gen is still current.
// A failed fetch against a server that never answered restores the last
// server that did, whichever operation switched to it.
func (o *Orchestrator) fetch(ctx context.Context, gen uint64, server, query string) error {
	cols, err := o.fetcher.FetchCollections(ctx, server, query)
	if err != nil && !errors.Is(err, ogc.ErrCollectionFetchFailed) {
		err = fmt.Errorf("%w: %w", ogc.ErrCollectionFetchFailed, err)
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.logger.Info("discarding stale collection fetch", "server", server, "generation", gen)
		return ErrSuperseded
	}
	o.loading = false
	if err != nil {
		o.lastErr = err
		o.phase = Failed
		if o.goodServer != "" && server != o.goodServer {
			o.logger.Warn("rolling back server URL", "server", server, "restored", o.goodServer)
			o.cfg.ServerURL = o.goodServer
		}
		o.mu.Unlock()
		o.logger.Error("collection fetch failed", "server", server, "generation", gen, "error", err)
		o.publish(Event{Kind: "error", Generation: gen})
		return err
	}

	if cols == nil {
		cols = []ogc.Collection{}
	}
	o.collections = cols
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c.ID] = true
	}
	if dropped := o.active.Retain(func(id string) bool { return present[id] }); len(dropped) > 0 {
		o.logger.Debug("deactivated vanished collections", "ids", dropped)
	}
	o.phase = Ready
	o.goodServer = server
	o.updatedAt = o.clock.Now()
	o.mu.Unlock()

	o.logger.Info("collections loaded", "server", server, "count", len(cols), "generation", gen)
	o.publish(Event{Kind: "ready", Generation: gen})
	return nil
}

// fail records err for gen unless a newer attempt has started.
func (o *Orchestrator) fail(gen uint64, err error) error {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrSuperseded
	}
	o.loading = false
	o.lastErr = err
	o.phase = Failed
	o.mu.Unlock()
	o.publish(Event{Kind: "error", Generation: gen})
	return err
}

func (o *Orchestrator) publish(e Event) {
	o.bus.Publish(e)
}
