// Package selection tracks which collections are shown on the map and the
// colour each one is drawn with.
package selection

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette is an ordered list of hex RGB colours.
type Palette []string

// DefaultPalette holds ten visually distinct colours.
var DefaultPalette = Palette{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Validate checks that every entry is a #rrggbb colour.
func (p Palette) Validate() error {
	if len(p) == 0 {
		return errors.New("palette is empty")
	}
	for i, hex := range p {
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("palette[%d] %q: %w", i, hex, err)
		}
	}
	return nil
}

// Pick chooses a palette colour. inUse holds the colours of the other
// active collections, reserved the colours kept by inactive ones. Entries
// in neither list come first, then entries only reserved, then the
// least-held entry. Within a tier the colour perceptually farthest from
// those in use wins; ties go to palette order.
func Pick(p Palette, inUse, reserved []string) string {
	if len(p) == 0 {
		return ""
	}

	held := make(map[string]int, len(inUse))
	var used []colorful.Color
	for _, hex := range inUse {
		held[hex]++
		if c, err := colorful.Hex(hex); err == nil {
			used = append(used, c)
		}
	}
	kept := make(map[string]bool, len(reserved))
	for _, hex := range reserved {
		kept[hex] = true
	}

	if best := farthest(p, used, func(hex string) bool { return held[hex] == 0 && !kept[hex] }); best != "" {
		return best
	}
	if best := farthest(p, used, func(hex string) bool { return held[hex] == 0 }); best != "" {
		return best
	}

	best := p[0]
	for _, hex := range p[1:] {
		if held[hex] < held[best] {
			best = hex
		}
	}
	return best
}

// farthest returns the eligible entry with the largest minimum distance to
// used, or "" when none is eligible.
func farthest(p Palette, used []colorful.Color, eligible func(string) bool) string {
	best, bestDist := "", -1.0
	for _, hex := range p {
		if !eligible(hex) {
			continue
		}
		c, err := colorful.Hex(hex)
		if err != nil {
			continue
		}
		d := math.Inf(1)
		for _, u := range used {
			d = math.Min(d, c.DistanceCIEDE2000(u))
		}
		if d > bestDist {
			best, bestDist = hex, d
		}
	}
	return best
}

// ColorAssigner remembers the colour given to each collection for the
// session. Deactivating a collection keeps its colour.
type ColorAssigner struct {
	mu       sync.Mutex
	palette  Palette
	assigned map[string]string
}

// NewColorAssigner creates an assigner over a validated palette.
func NewColorAssigner(p Palette) (*ColorAssigner, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &ColorAssigner{
		palette:  append(Palette(nil), p...),
		assigned: make(map[string]string),
	}, nil
}

// ColorFor returns the colour of id, assigning one if needed. active lists
// the currently active ids. New colours avoid those of active ids, and
// those kept by inactive ids while unassigned entries remain, so a
// reactivated id never collides before the palette runs out.
func (a *ColorAssigner) ColorFor(id string, active []string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.assigned[id]; ok {
		return c
	}

	isActive := make(map[string]bool, len(active))
	for _, other := range active {
		isActive[other] = true
	}
	var inUse, reserved []string
	for other, c := range a.assigned {
		switch {
		case other == id:
		case isActive[other]:
			inUse = append(inUse, c)
		default:
			reserved = append(reserved, c)
		}
	}

	c := Pick(a.palette, inUse, reserved)
	a.assigned[id] = c
	return c
}

// Color returns the colour of id if it has one.
func (a *ColorAssigner) Color(id string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.assigned[id]
	return c, ok
}

// Assignments returns a copy of all assignments.
func (a *ColorAssigner) Assignments() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.assigned))
	for k, v := range a.assigned {
		out[k] = v
	}
	return out
}

// Reset forgets every assignment.
func (a *ColorAssigner) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assigned = make(map[string]string)
}
