package i18n

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geo-browser/internal/settings"
)

var testLocales = []settings.Locale{
	{Code: "en", QueryParam: "lang=en", Direction: settings.LTR},
	{Code: "ar", QueryParam: "lang=ar", Direction: settings.RTL},
	{Code: "fr", QueryParam: "lang=fr", Direction: settings.LTR},
}

// gatedLoader counts loads and blocks each one until release is closed.
type gatedLoader struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	fail    map[string]bool
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{started: make(chan struct{}), release: make(chan struct{}), fail: map[string]bool{}}
}

func (l *gatedLoader) LoadCatalog(ctx context.Context, code string) (Catalog, error) {
	l.calls.Add(1)
	l.once.Do(func() { close(l.started) })
	<-l.release
	if l.fail[code] {
		return nil, errors.New("catalog missing")
	}
	return Catalog{"collections": "[" + code + "] collections"}, nil
}

func newTestManager(loader Loader, persisted *[]string) *Manager {
	var mu sync.Mutex
	m := NewManager(loader, func(code string) error {
		mu.Lock()
		defer mu.Unlock()
		if persisted != nil {
			*persisted = append(*persisted, code)
		}
		return nil
	}, nil)
	m.Configure(testLocales, "en")
	return m
}

func TestManager_ConcurrentActivateLoadsOnce(t *testing.T) {
	loader := newGatedLoader()
	m := newTestManager(loader, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Activate(context.Background(), "ar")
		}()
	}

	<-loader.started
	close(loader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.True(t, m.IsLoaded("ar"))
	assert.Equal(t, "ar", m.Active())
	assert.Equal(t, settings.RTL, m.State().Direction)
}

func TestManager_ActivateCachedDoesNotRefetch(t *testing.T) {
	loader := newGatedLoader()
	close(loader.release)
	m := newTestManager(loader, nil)

	require.NoError(t, m.Activate(context.Background(), "en"))
	require.NoError(t, m.Activate(context.Background(), "fr"))
	require.NoError(t, m.Activate(context.Background(), "en"))

	assert.Equal(t, int32(2), loader.calls.Load())
	assert.Equal(t, []string{"en", "fr"}, m.State().Loaded)
}

func TestManager_FailedLoadLeavesActiveLocale(t *testing.T) {
	loader := newGatedLoader()
	close(loader.release)
	loader.fail["ar"] = true

	var persisted []string
	m := newTestManager(loader, &persisted)

	require.NoError(t, m.Activate(context.Background(), "en"))
	err := m.Activate(context.Background(), "ar")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocaleLoadFailed)

	assert.Equal(t, "en", m.Active())
	assert.Equal(t, settings.LTR, m.State().Direction)
	assert.False(t, m.IsLoaded("ar"))
	assert.Equal(t, []string{"en"}, persisted)
}

func TestManager_PersistsOnSuccess(t *testing.T) {
	loader := newGatedLoader()
	close(loader.release)

	var persisted []string
	m := newTestManager(loader, &persisted)

	require.NoError(t, m.Activate(context.Background(), "fr"))
	require.NoError(t, m.Activate(context.Background(), "ar"))
	assert.Equal(t, []string{"fr", "ar"}, persisted)
}

func TestManager_PersistFailureDoesNotAbortActivation(t *testing.T) {
	loader := newGatedLoader()
	close(loader.release)
	m := NewManager(loader, func(string) error { return errors.New("disk full") }, nil)
	m.Configure(testLocales, "en")

	require.NoError(t, m.Activate(context.Background(), "ar"))
	assert.Equal(t, "ar", m.Active())
}

func TestManager_DirectionOf(t *testing.T) {
	m := newTestManager(newGatedLoader(), nil)
	assert.Equal(t, settings.RTL, m.DirectionOf("ar"))
	assert.Equal(t, settings.LTR, m.DirectionOf("en"))
	assert.Equal(t, settings.LTR, m.DirectionOf("he"), "unrecognised locale defaults to ltr")
}

func TestManager_TranslateFallsBack(t *testing.T) {
	loader := FSLoader{FS: fstest.MapFS{
		"en.json": {Data: []byte(`{"collections":"Collections","layers":"Layers"}`)},
		"ar.json": {Data: []byte(`{"collections":"المجموعات"}`)},
	}}
	m := newTestManager(loader, nil)

	require.NoError(t, m.Load(context.Background(), "en"))
	require.NoError(t, m.Activate(context.Background(), "ar"))

	assert.Equal(t, "المجموعات", m.T("collections"))
	assert.Equal(t, "Layers", m.T("layers"))
	assert.Equal(t, "missing.key", m.T("missing.key"))
}

func TestManager_Negotiate(t *testing.T) {
	m := newTestManager(newGatedLoader(), nil)

	assert.Equal(t, "fr", m.Negotiate("fr"))
	assert.Equal(t, "fr", m.Negotiate("fr-CA,fr;q=0.9,en;q=0.5"))
	assert.Equal(t, "ar", m.Negotiate("ar-EG"))
	assert.Equal(t, "", m.Negotiate("ja"))
	assert.Equal(t, "", m.Negotiate(""))
}

func TestEmbeddedLoader(t *testing.T) {
	loader := EmbeddedLoader()
	for _, code := range []string{"en", "fr", "ar"} {
		cat, err := loader.LoadCatalog(context.Background(), code)
		require.NoError(t, err, code)
		assert.NotEmpty(t, cat["noCollections"], code)
	}

	_, err := loader.LoadCatalog(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	_, err = loader.LoadCatalog(context.Background(), "xx")
	assert.Error(t, err)
}
