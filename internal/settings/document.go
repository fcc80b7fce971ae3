package settings

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// Document is the static configuration document. JSON documents decode
// too since YAML is a superset.
type Document struct {
	Server struct {
		URL string `yaml:"url"`
	} `yaml:"server"`
	I18n struct {
		DefaultLocale    string   `yaml:"defaultLocale"`
		FallbackLocale   string   `yaml:"fallbackLocale"`
		SupportedLocales []Locale `yaml:"supportedLocales"`
	} `yaml:"i18n"`
}

// DocumentLoader fetches the static configuration document.
type DocumentLoader interface {
	LoadDocument(ctx context.Context) (Document, error)
}

// Source loads the document from a file path or an http(s) URL. An empty
// Location uses the embedded default document.
type Source struct {
	Location string
	HTTP     *http.Client
}

// LoadDocument implements DocumentLoader.
func (s Source) LoadDocument(ctx context.Context) (Document, error) {
	data, err := s.read(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	return ParseDocument(data)
}

func (s Source) read(ctx context.Context) ([]byte, error) {
	loc := strings.TrimSpace(s.Location)
	switch {
	case loc == "":
		return defaultDocument, nil
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		client := s.HTTP
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: status %d", loc, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	default:
		return os.ReadFile(loc)
	}
}

// ParseDocument decodes and validates a configuration document.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: parse: %w", ErrConfigUnavailable, err)
	}
	if err := doc.validate(); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	return doc, nil
}

func (d *Document) validate() error {
	seen := make(map[string]bool, len(d.I18n.SupportedLocales))
	for i := range d.I18n.SupportedLocales {
		l := &d.I18n.SupportedLocales[i]
		l.Code = strings.TrimSpace(l.Code)
		if _, err := language.Parse(l.Code); err != nil {
			return fmt.Errorf("supportedLocales[%d]: invalid code %q: %w", i, l.Code, err)
		}
		if seen[l.Code] {
			return fmt.Errorf("supportedLocales[%d]: duplicate code %q", i, l.Code)
		}
		seen[l.Code] = true

		switch Direction(strings.ToLower(string(l.Direction))) {
		case "", LTR:
			l.Direction = LTR
		case RTL:
			l.Direction = RTL
		default:
			return fmt.Errorf("supportedLocales[%d]: invalid direction %q", i, l.Direction)
		}
	}
	if len(seen) > 0 {
		if c := d.I18n.DefaultLocale; c != "" && !seen[c] {
			return fmt.Errorf("defaultLocale %q is not a supported locale", c)
		}
		if c := d.I18n.FallbackLocale; c != "" && !seen[c] {
			return fmt.Errorf("fallbackLocale %q is not a supported locale", c)
		}
	}
	return nil
}
