package selection

import "sync"

// ActiveSet is the set of collection ids selected for display. Order is
// kept for display only; membership is what matters.
type ActiveSet struct {
	mu     sync.Mutex
	ids    []string
	colors *ColorAssigner
}

// NewActiveSet creates an empty set. colors may be nil.
func NewActiveSet(colors *ColorAssigner) *ActiveSet {
	return &ActiveSet{colors: colors}
}

// Toggle removes id if present and adds it otherwise. Newly active ids are
// given a colour. It returns the resulting set and whether id is now active.
func (s *ActiveSet) Toggle(id string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
		return s.copyLocked(), false
	}

	s.ids = append(s.ids, id)
	if s.colors != nil {
		s.colors.ColorFor(id, s.ids)
	}
	return s.copyLocked(), true
}

// IsActive reports whether id is in the set.
func (s *ActiveSet) IsActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// IDs returns a copy of the set in display order.
func (s *ActiveSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Len returns the number of active ids.
func (s *ActiveSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Reset empties the set.
func (s *ActiveSet) Reset() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	return []string{}
}

// Retain drops every id for which keep returns false and returns the
// dropped ids.
func (s *ActiveSet) Retain(keep func(id string) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []string
	kept := s.ids[:0]
	for _, id := range s.ids {
		if keep(id) {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	s.ids = kept
	return dropped
}

func (s *ActiveSet) indexLocked(id string) int {
	for i, existing := range s.ids {
		if existing == id {
			return i
		}
	}
	return -1
}

func (s *ActiveSet) copyLocked() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}
