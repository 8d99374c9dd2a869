package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"minkal/internal/fileutil"
	"minkal/internal/layout"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is the calendar name events from this source carry. Calendar
	// filtering matches on it.
	Name string `yaml:"name" json:"name"`
}

// CalendarName returns Name, falling back to ID.
func (c ICSConfig) CalendarName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// WindowConfig is the visible range of hours on the day timeline.
type WindowConfig struct {
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone days are computed in (e.g. "Europe/Stockholm").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Window      WindowConfig `yaml:"window" json:"window"`
	TrackHeight float64      `yaml:"track_height" json:"track_height"`
	StackOffset float64      `yaml:"stack_offset" json:"stack_offset"`

	// TimelineCalendar limits the day timeline to a single calendar when the
	// user has not picked one in settings. Empty means "use the week grid
	// selection".
	TimelineCalendar string `yaml:"timeline_calendar" json:"timeline_calendar"`

	// SettingsPath is where user preferences (selected calendars etc.) live.
	SettingsPath string `yaml:"settings_path" json:"settings_path"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Cron specs (robfig/cron syntax, descriptors like "@every 30s" allowed).
	TickCron     string `yaml:"tick" json:"tick"`
	RolloverCron string `yaml:"rollover" json:"rollover"`
	RefreshCron  string `yaml:"refresh" json:"refresh"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Europe/Stockholm"
	defaultLogLevel     = "info"
	defaultTickCron     = "@every 30s"
	defaultRolloverCron = "0 * * * *"
	defaultRefreshCron  = "*/15 * * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	dw := layout.DefaultWindow()
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		LogLevel:     defaultLogLevel,
		Window:       WindowConfig{StartHour: dw.StartHour(), EndHour: dw.EndHour()},
		TrackHeight:  layout.DefaultTrackHeight,
		StackOffset:  layout.DefaultStackOffset,
		SettingsPath: defaultDataPath("settings.yaml"),
		CacheDir:     defaultDataPath("ics-cache"),
		TickCron:     defaultTickCron,
		RolloverCron: defaultRolloverCron,
		RefreshCron:  defaultRefreshCron,
		ICS:          []ICSConfig{},
	}
}

// DefaultPath is $HOME/.config/minkal/config.yaml, or a relative path when
// the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "minkal", "config.yaml")
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "var", name)
	}
	return filepath.Join(home, ".local", "share", "minkal", name)
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly. It does not fix invalid
// values; Validate reports those.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Window == (WindowConfig{}) {
		c.Window = d.Window
	}
	if c.TrackHeight == 0 {
		c.TrackHeight = d.TrackHeight
	}
	if c.SettingsPath == "" {
		c.SettingsPath = d.SettingsPath
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.TickCron == "" {
		c.TickCron = d.TickCron
	}
	if c.RolloverCron == "" {
		c.RolloverCron = d.RolloverCron
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Timeline builds the validated day timeline geometry. A degenerate window
// or track comes back as a *layout.ConfigurationError.
func (c *Config) Timeline() (layout.Timeline, error) {
	w, err := layout.NewTimeWindow(c.Window.StartHour, c.Window.EndHour)
	if err != nil {
		return layout.Timeline{}, err
	}
	return layout.NewTimeline(w, c.TrackHeight, c.StackOffset)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks everything that can be checked without I/O, so that
// configuration mistakes surface at startup rather than per request.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Timeline(); err != nil {
		errs = append(errs, err)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{"tick": c.TickCron, "rollover": c.RolloverCron, "refresh": c.RefreshCron} {
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid %s schedule %q: %w", name, spec, err))
		}
	}
	seen := make(map[string]bool)
	for i, src := range c.ICS {
		if src.URL == "" {
			errs = append(errs, fmt.Errorf("config: ics[%d]: url is empty", i))
		}
		if src.CalendarName() == "" {
			errs = append(errs, fmt.Errorf("config: ics[%d]: needs a name or id", i))
		}
		if src.ID != "" && seen[src.ID] {
			errs = append(errs, fmt.Errorf("config: ics[%d]: duplicate id %q", i, src.ID))
		}
		seen[src.ID] = true
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := Config{StackOffset: layout.DefaultStackOffset}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save normalizes cfg and writes it as YAML with 0600 permissions, replacing
// the file atomically.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o600)
}
