package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"minkal/internal/fileutil"
	"minkal/internal/filter"
	appLog "minkal/internal/log"
)

const (
	DefaultShowEventTime = false
	DefaultDimOpacity    = 0.6
)

// Settings are the user preferences the layout consumes.
type Settings struct {
	// SelectedCalendars is nil when the user never saved a selection.
	SelectedCalendars []string `yaml:"selected_calendars" json:"selected_calendars"`

	// ShowEventTime prefixes timed events in the week grid with HH:MM.
	ShowEventTime bool `yaml:"show_event_time" json:"show_event_time"`

	// DimOpacity is applied by the renderer to past days, in [0,1].
	DimOpacity float64 `yaml:"dim_opacity" json:"dim_opacity"`

	// TimelineCalendar, when set, limits the day timeline to one calendar.
	TimelineCalendar string `yaml:"timeline_calendar,omitempty" json:"timeline_calendar,omitempty"`
}

// Default returns first-run settings.
func Default() Settings {
	return Settings{
		SelectedCalendars: []string{filter.DefaultCalendar},
		ShowEventTime:     DefaultShowEventTime,
		DimOpacity:        DefaultDimOpacity,
	}
}

// Normalize clamps DimOpacity into [0,1].
func (s *Settings) Normalize() {
	if s.DimOpacity < 0 {
		s.DimOpacity = 0
	}
	if s.DimOpacity > 1 {
		s.DimOpacity = 1
	}
}

// Load reads settings from path. A missing file yields Default() with
// SelectedCalendars left nil so callers can tell "never saved" apart from
// "saved empty".
func Load(path string) (Settings, error) {
	if path == "" {
		return Settings{}, errors.New("settings: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s := Default()
			s.SelectedCalendars = nil
			return s, nil
		}
		return Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	// Fields absent from the file keep their defaults.
	s := Default()
	s.SelectedCalendars = nil
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	s.Normalize()
	return s, nil
}

// Save writes s atomically with 0600 permissions. A nil selection is written
// as the default selection.
func Save(path string, s Settings) error {
	if path == "" {
		return errors.New("settings: path is empty")
	}
	s.Normalize()
	if s.SelectedCalendars == nil {
		s.SelectedCalendars = []string{filter.DefaultCalendar}
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o600)
}

// FileStore keeps Settings in memory and writes them back to a YAML file on
// every change. It is the filter.Saver for the calendar selection.
type FileStore struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// Open loads the settings at path into a FileStore.
func Open(path string) (*FileStore, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, current: s}, nil
}

// Get returns a copy of the current settings.
func (f *FileStore) Get() Settings {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := f.current
	s.SelectedCalendars = slices.Clone(s.SelectedCalendars)
	return s
}

// Update applies fn to the settings and saves the result.
func (f *FileStore) Update(fn func(*Settings)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.current
	next.SelectedCalendars = slices.Clone(f.current.SelectedCalendars)
	fn(&next)
	next.Normalize()

	if err := Save(f.path, next); err != nil {
		return fmt.Errorf("settings: save %s: %w", f.path, err)
	}
	f.current = next
	appLog.Debug("settings saved", "path", f.path)
	return nil
}

// SaveSelection implements filter.Saver.
func (f *FileStore) SaveSelection(names []string) error {
	return f.Update(func(s *Settings) {
		s.SelectedCalendars = append([]string{}, names...)
	})
}
