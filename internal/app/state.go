package app

import (
	"errors"
	"time"

	"github.com/joeblew999/plat-geo-browser/internal/i18n"
	"github.com/joeblew999/plat-geo-browser/internal/ogc"
	"github.com/joeblew999/plat-geo-browser/internal/settings"
)

// Phase is the orchestrator lifecycle state.
type Phase string

const (
	Uninitialized Phase = "uninitialized"
	Initializing  Phase = "initializing"
	Ready         Phase = "ready"
	Failed        Phase = "error"
)

var (
	// ErrInvalidInput rejects malformed user input before any state changes.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownCollection is returned when toggling an id that is not in
	// the current collection list.
	ErrUnknownCollection = errors.Join(ErrInvalidInput, errors.New("unknown collection"))
	// ErrNotReady is returned by mutators before a configuration exists.
	ErrNotReady = errors.New("orchestrator not initialized")
	// ErrSuperseded is returned by an operation whose result was discarded
	// because a newer reconfigure started.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// ClassifiedCollection is a collection with its derived view facts.
type ClassifiedCollection struct {
	ogc.Collection
	RenderType ogc.RenderType `json:"renderType" enum:"feature,coverage,tile,record,unknown" doc:"How the collection is presented"`
	Active     bool           `json:"active" doc:"Whether the collection is selected for display"`
	Color      string         `json:"color,omitempty" doc:"Display colour (hex RGB)"`
}

// Snapshot is the read-only model handed to the view layer.
type Snapshot struct {
	Phase       Phase                    `json:"phase" enum:"uninitialized,initializing,ready,error" doc:"Lifecycle state"`
	Config      settings.EffectiveConfig `json:"config" doc:"Effective configuration"`
	Locale      i18n.State               `json:"locale" doc:"Locale state"`
	Collections []ClassifiedCollection   `json:"collections" doc:"Classified collections of the last fetch"`
	Active      []string                 `json:"active" doc:"Active collection ids"`
	Colors      map[string]string        `json:"colors" doc:"Colour per collection id"`
	Loading     bool                     `json:"loading" doc:"Whether a fetch is in flight"`
	Error       string                   `json:"error,omitempty" doc:"Most recent failure"`
	ErrorKind   string                   `json:"errorKind,omitempty" doc:"Failure category"`
	Generation  uint64                   `json:"generation" doc:"Reconfigure generation"`
	UpdatedAt   time.Time                `json:"updatedAt" doc:"Time of the last successful fetch"`
}

// Degraded reports whether the last operation failed.
func (s Snapshot) Degraded() bool {
	return s.Phase == Failed
}

// errorKind maps an error to its category name.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, settings.ErrConfigUnavailable):
		return "config_unavailable"
	case errors.Is(err, i18n.ErrLocaleLoadFailed):
		return "locale_load_failed"
	case errors.Is(err, ogc.ErrCollectionFetchFailed):
		return "collection_fetch_failed"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
