// Package settings resolves the browser's effective run-time configuration
// (server URL and locale) from the environment, persisted preferences and the
// static configuration document.
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Hardcoded fallbacks used when no other source provides a value.
const (
	FallbackServerURL = "https://demo.pygeoapi.io/master"
	FallbackLocale    = "en"
)

var (
	// ErrConfigUnavailable means the static configuration document could
	// not be loaded or is malformed.
	ErrConfigUnavailable = errors.New("configuration unavailable")
	// ErrInvalidServerURL rejects empty or non-http(s) server URLs.
	ErrInvalidServerURL = errors.New("invalid server URL")
)

// Direction is the text direction of a locale.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Locale describes one supported locale.
type Locale struct {
	Code       string    `json:"code" yaml:"code" doc:"Locale code" example:"en"`
	QueryParam string    `json:"queryParam" yaml:"queryParam" doc:"Query string appended to upstream requests" example:"lang=en"`
	Direction  Direction `json:"direction" yaml:"direction" enum:"ltr,rtl" doc:"Text direction"`
}

// EffectiveConfig is the resolved configuration the orchestrator owns.
type EffectiveConfig struct {
	ServerURL        string   `json:"serverUrl" doc:"Upstream OGC API server URL (no trailing slash)"`
	Locale           string   `json:"locale" doc:"Active locale code"`
	SupportedLocales []Locale `json:"supportedLocales" doc:"Supported locales in display order"`
	DefaultLocale    string   `json:"defaultLocale" doc:"Locale used when nothing is persisted"`
	FallbackLocale   string   `json:"fallbackLocale" doc:"Locale used for missing translations"`
}

// Lookup returns the metadata of a supported locale.
func (c EffectiveConfig) Lookup(code string) (Locale, bool) {
	for _, l := range c.SupportedLocales {
		if l.Code == code {
			return l, true
		}
	}
	return Locale{}, false
}

// Supports reports whether code is one of the supported locales.
func (c EffectiveConfig) Supports(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

// QueryFor returns the upstream locale query string for code, or "".
func (c EffectiveConfig) QueryFor(code string) string {
	l, _ := c.Lookup(code)
	return l.QueryParam
}

// Clone returns a deep copy.
func (c EffectiveConfig) Clone() EffectiveConfig {
	c.SupportedLocales = append([]Locale(nil), c.SupportedLocales...)
	return c
}

// CanonicalServerURL trims whitespace and trailing slashes.
func CanonicalServerURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// ParseServerURL canonicalises a user-supplied server URL and rejects
// anything that is not an absolute http(s) URL.
func ParseServerURL(raw string) (string, error) {
	canonical := CanonicalServerURL(raw)
	if canonical == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidServerURL)
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidServerURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidServerURL)
	}
	return canonical, nil
}
