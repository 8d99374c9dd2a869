// Package filter holds the set of calendars the user has opted to display.
//
// Set is an immutable snapshot handed to the layout builders. Store owns the
// current snapshot, swaps it on every toggle and asks its Saver to persist the
// new selection straight away.
package filter

import (
	"fmt"
	"slices"
	"sync"

	appLog "minkal/internal/log"
)

// DefaultCalendar is selected when no saved selection exists, so the week
// grid is not empty on first run.
const DefaultCalendar = "Home"

// Set is an immutable set of calendar names. The zero value is empty.
type Set struct {
	names map[string]struct{}
}

// NewSet builds a Set from names, ignoring empty strings and duplicates.
func NewSet(names ...string) Set {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		m[n] = struct{}{}
	}
	return Set{names: m}
}

// Contains reports whether name is selected.
func (s Set) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of selected calendars.
func (s Set) Len() int {
	return len(s.names)
}

// All returns the selected names in sorted order.
func (s Set) All() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Toggle returns a new Set with name added if absent or removed if present.
// s itself is left untouched.
func (s Set) Toggle(name string) Set {
	m := make(map[string]struct{}, len(s.names)+1)
	for n := range s.names {
		m[n] = struct{}{}
	}
	if _, ok := m[name]; ok {
		delete(m, name)
	} else {
		m[name] = struct{}{}
	}
	return Set{names: m}
}

// Saver persists a calendar selection.
type Saver interface {
	SaveSelection(names []string) error
}

// Store holds the current selection. Readers get snapshots; a built grid is
// never updated in place, so callers rebuild after every change.
type Store struct {
	// saveMu orders toggles with their saves, so the last applied
	// selection is also the last one saved. Readers only take mu.
	saveMu sync.Mutex

	mu       sync.RWMutex
	current  Set
	saver    Saver
	onChange func(Set)
}

// NewStore starts from saved, or from {DefaultCalendar} when saved is nil.
// An explicitly saved empty selection stays empty. saver may be nil.
func NewStore(saved []string, saver Saver) *Store {
	initial := NewSet(DefaultCalendar)
	if saved != nil {
		initial = NewSet(saved...)
	}
	return &Store{current: initial, saver: saver}
}

// Snapshot returns the current selection.
func (s *Store) Snapshot() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Contains checks the current selection.
func (s *Store) Contains(name string) bool {
	return s.Snapshot().Contains(name)
}

// All lists the current selection.
func (s *Store) All() []string {
	return s.Snapshot().All()
}

// OnChange registers the single subscriber notified after each toggle.
// A later call replaces the earlier subscriber.
func (s *Store) OnChange(fn func(Set)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Toggle flips name in the selection and requests a save. The new snapshot
// is kept even when saving fails; the save error is returned.
func (s *Store) Toggle(name string) (Set, error) {
	if name == "" {
		return s.Snapshot(), fmt.Errorf("filter: empty calendar name")
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	next := s.current.Toggle(name)
	s.current = next
	saver := s.saver
	notify := s.onChange
	s.mu.Unlock()

	appLog.Info("calendar selection toggled", "calendar", name, "selected", next.Contains(name), "count", next.Len())

	var err error
	if saver != nil {
		if err = saver.SaveSelection(next.All()); err != nil {
			appLog.Error("calendar selection save failed", err, "calendar", name)
			err = fmt.Errorf("filter: save selection: %w", err)
		}
	}
	if notify != nil {
		notify(next)
	}
	return next, err
}
