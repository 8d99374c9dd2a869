package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"minkal/internal/config"
	"minkal/internal/filter"
	"minkal/internal/ics"
	appLog "minkal/internal/log"
	"minkal/internal/settings"
	"minkal/internal/state"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "minkal",
	Short: "Personal week grid and day timeline from ICS calendars",
	Long: `minkal lays out your calendars as a four week grid and a single day
timeline, and serves both as JSON for a display client.

  serve    run the scheduler and HTTP API
  week     print the four week grid
  day      print one day's timeline
  toggle   show or hide a calendar`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(toggleCmd)
}

// app bundles everything a command needs, wired from the config file.
type app struct {
	cfg       *config.Config
	loc       *time.Location
	prefs     *settings.FileStore
	selection *filter.Store
	state     *state.State
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeline, err := cfg.Timeline()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "timezone", cfg.Timezone)
	}

	prefs, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	selection := filter.NewStore(prefs.Get().SelectedCalendars, prefs)

	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		id := c.ID
		if id == "" {
			id = c.CalendarName()
		}
		sources = append(sources, ics.Source{ID: id, Calendar: c.CalendarName(), URL: c.URL})
	}
	fetcher := ics.NewFetcher(cfg.CacheDir, &http.Client{Timeout: 15 * time.Second})

	st := state.New(state.Options{
		Source:           ics.NewProvider(fetcher, sources, loc),
		Timeline:         timeline,
		Selection:        selection,
		Preferences:      prefs,
		TimelineCalendar: cfg.TimelineCalendar,
		Location:         loc,
	})

	appLog.Info("effective config",
		"config", configPath,
		"timezone", loc.String(),
		"window", timeline.Window.String(),
		"track_height", timeline.TrackHeight,
		"stack_offset", timeline.StackOffset,
		"ics_count", len(sources),
		"selected", len(selection.All()),
	)

	return &app{cfg: cfg, loc: loc, prefs: prefs, selection: selection, state: st}, nil
}

func (a *app) calendarNames() []string {
	names := make([]string, 0, len(a.cfg.ICS))
	for _, c := range a.cfg.ICS {
		names = append(names, c.CalendarName())
	}
	return names
}

// parseDateFlag reads a YYYY-MM-DD flag value; empty means today.
func parseDateFlag(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", v)
	}
	return t, nil
}
