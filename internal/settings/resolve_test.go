package settings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geo-browser/internal/prefs"
)

func testDocument(t *testing.T) Document {
	t.Helper()
	doc, err := ParseDocument([]byte(`
server:
  url: https://static.example/
i18n:
  defaultLocale: fr
  fallbackLocale: en
  supportedLocales:
    - {code: en, queryParam: lang=en}
    - {code: fr, queryParam: lang=fr, direction: ltr}
    - {code: ar, queryParam: lang=ar, direction: RTL}
`))
	require.NoError(t, err)
	return doc
}

func TestResolve_ServerURLPrecedence(t *testing.T) {
	doc := testDocument(t)

	tests := []struct {
		name string
		in   Inputs
		want string
	}{
		{"environment wins over all", Inputs{EnvServerURL: "https://env/", PersistedServerURL: "https://persisted", Document: doc}, "https://env"},
		{"persisted without environment", Inputs{PersistedServerURL: "https://persisted//", Document: doc}, "https://persisted"},
		{"static default", Inputs{Document: doc}, "https://static.example"},
		{"hardcoded fallback", Inputs{}, FallbackServerURL},
		{"blank environment ignored", Inputs{EnvServerURL: "  ", Document: doc}, "https://static.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.in).ServerURL)
		})
	}
}

func TestResolve_LocalePrecedence(t *testing.T) {
	doc := testDocument(t)

	assert.Equal(t, "ar", Resolve(Inputs{PersistedLocale: "ar", Document: doc}).Locale)
	assert.Equal(t, "fr", Resolve(Inputs{PersistedLocale: "de", Document: doc}).Locale, "unsupported persisted locale is ignored")
	assert.Equal(t, "fr", Resolve(Inputs{Document: doc}).Locale)
	assert.Equal(t, FallbackLocale, Resolve(Inputs{}).Locale)
}

func TestResolve_DocumentMetadata(t *testing.T) {
	cfg := Resolve(Inputs{Document: testDocument(t)})

	require.Len(t, cfg.SupportedLocales, 3)
	assert.Equal(t, "en", cfg.FallbackLocale)
	assert.Equal(t, "fr", cfg.DefaultLocale)

	ar, ok := cfg.Lookup("ar")
	require.True(t, ok)
	assert.Equal(t, RTL, ar.Direction)
	en, _ := cfg.Lookup("en")
	assert.Equal(t, LTR, en.Direction, "missing direction defaults to ltr")
	assert.Equal(t, "lang=fr", cfg.QueryFor("fr"))
	assert.Equal(t, "", cfg.QueryFor("de"))
}

func TestResolve_EmptyDocumentGetsFallbackLocale(t *testing.T) {
	cfg := Resolve(Inputs{})
	assert.True(t, cfg.Supports(FallbackLocale))
	assert.Equal(t, FallbackLocale, cfg.DefaultLocale)
	assert.Equal(t, FallbackLocale, cfg.FallbackLocale)
}

func TestParseDocument_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed yaml":      "server: [",
		"bad locale code":     "i18n:\n  supportedLocales:\n    - {code: 'not a tag!'}\n",
		"duplicate code":      "i18n:\n  supportedLocales:\n    - {code: en}\n    - {code: en}\n",
		"bad direction":       "i18n:\n  supportedLocales:\n    - {code: en, direction: up}\n",
		"unsupported default": "i18n:\n  defaultLocale: de\n  supportedLocales:\n    - {code: en}\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument([]byte(body))
			assert.ErrorIs(t, err, ErrConfigUnavailable)
		})
	}
}

func TestParseDocument_JSON(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"server":{"url":"https://json.example"},"i18n":{"defaultLocale":"en","supportedLocales":[{"code":"en","queryParam":"lang=en","direction":"ltr"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "https://json.example", doc.Server.URL)
}

func TestSource_Embedded(t *testing.T) {
	doc, err := Source{}.LoadDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FallbackServerURL, doc.Server.URL)
	assert.NotEmpty(t, doc.I18n.SupportedLocales)
}

func TestSource_FileAndHTTP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  url: https://file.example\n"), 0o644))

	doc, err := Source{Location: path}.LoadDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://file.example", doc.Server.URL)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"server":{"url":"https://http.example"}}`))
	}))
	t.Cleanup(srv.Close)

	doc, err = Source{Location: srv.URL + "/config.json"}.LoadDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://http.example", doc.Server.URL)

	_, err = Source{Location: srv.URL + "/missing"}.LoadDocument(context.Background())
	assert.ErrorIs(t, err, ErrConfigUnavailable)

	_, err = Source{Location: filepath.Join(t.TempDir(), "nope.yaml")}.LoadDocument(context.Background())
	assert.ErrorIs(t, err, ErrConfigUnavailable)
}

type failingLoader struct{}

func (failingLoader) LoadDocument(context.Context) (Document, error) {
	return Document{}, errors.Join(ErrConfigUnavailable, errors.New("unreachable"))
}

func TestResolver_ReadsStoreAndEnv(t *testing.T) {
	store := prefs.NewMemory()
	require.NoError(t, store.Set(prefs.KeyServerURL, "https://persisted.example"))
	require.NoError(t, store.Set(prefs.KeyLocale, "ar"))

	r := NewResolver("", store, Source{}, nil)
	cfg, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://persisted.example", cfg.ServerURL)
	assert.Equal(t, "ar", cfg.Locale)

	r = NewResolver("https://env.example/", store, Source{}, nil)
	cfg, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.ServerURL)
}

func TestResolver_ConfigUnavailable(t *testing.T) {
	_, err := NewResolver("", prefs.NewMemory(), failingLoader{}, nil).Resolve(context.Background())
	assert.ErrorIs(t, err, ErrConfigUnavailable)

	_, err = NewResolver("", prefs.NewMemory(), nil, nil).Resolve(context.Background())
	assert.ErrorIs(t, err, ErrConfigUnavailable)
}

func TestResolver_PersistCanonicalisesServerURL(t *testing.T) {
	store := prefs.NewMemory()
	r := NewResolver("", store, Source{}, nil)

	got, err := r.Persist(FieldServerURL, " https://new.example/path/ ")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example/path", got)

	stored, ok, _ := store.Get(prefs.KeyServerURL)
	assert.True(t, ok)
	assert.Equal(t, "https://new.example/path", stored)

	_, err = r.Persist(FieldServerURL, "ftp://nope")
	assert.ErrorIs(t, err, ErrInvalidServerURL)

	_, err = r.Persist(FieldLocale, "ar")
	require.NoError(t, err)
	stored, _, _ = store.Get(prefs.KeyLocale)
	assert.Equal(t, "ar", stored)

	_, err = r.Persist(Field("theme"), "dark")
	assert.Error(t, err)
}

func TestParseServerURL(t *testing.T) {
	for _, bad := range []string{"", "   ", "/", "not a url", "ftp://host", "https://"} {
		_, err := ParseServerURL(bad)
		assert.ErrorIs(t, err, ErrInvalidServerURL, bad)
	}
	got, err := ParseServerURL("http://localhost:5000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", got)
}
