// Package state keeps the single "current layout state" value shared by the
// scheduler (writer) and the HTTP layer (reader). Layout itself stays in the
// pure functions of package layout; State only owns the latest event
// snapshot and the live clock offset, and rebuilds views on demand.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"minkal/internal/filter"
	"minkal/internal/layout"
	appLog "minkal/internal/log"
	"minkal/internal/model"
	"minkal/internal/settings"
)

// EventSource supplies events starting within [from, to]. It may block on
// I/O and is never called from the layout functions.
type EventSource interface {
	Events(ctx context.Context, from, to time.Time) ([]model.Event, error)
}

// Preferences exposes the user settings. settings.FileStore implements it.
type Preferences interface {
	Get() settings.Settings
}

// Options configure a State.
type Options struct {
	Source    EventSource
	Timeline  layout.Timeline
	Selection *filter.Store

	// Preferences may be nil, in which case settings.Default() applies.
	Preferences Preferences

	// TimelineCalendar is the configured fallback single calendar for the
	// day view.
	TimelineCalendar string

	Location *time.Location
	Now      func() time.Time
}

// State is safe for concurrent use.
type State struct {
	source           EventSource
	timeline         layout.Timeline
	selection        *filter.Store
	prefs            Preferences
	timelineCalendar string
	loc              *time.Location
	now              func() time.Time
	clock            *layout.Clock

	mu          sync.RWMutex
	events      []model.Event
	fetchedFor  time.Time
	coveredFrom time.Time
	coveredTo   time.Time
	refreshedAt time.Time
	nowY        float64
}

// New builds a State with no events yet; call Refresh to load them.
func New(opts Options) *State {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	selection := opts.Selection
	if selection == nil {
		selection = filter.NewStore(nil, nil)
	}
	localNow := func() time.Time { return now().In(loc) }

	s := &State{
		source:           opts.Source,
		timeline:         opts.Timeline,
		selection:        selection,
		prefs:            opts.Preferences,
		timelineCalendar: opts.TimelineCalendar,
		loc:              loc,
		now:              localNow,
		clock:            layout.NewClock(opts.Timeline, localNow),
		events:           []model.Event{},
	}
	s.nowY = s.clock.Tick()
	return s
}

// Snapshot is a read-only copy of the state.
type Snapshot struct {
	Events       []model.Event
	FetchedFor   time.Time
	RefreshedAt  time.Time
	CurrentTimeY float64
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Events:       s.events,
		FetchedFor:   s.fetchedFor,
		RefreshedAt:  s.refreshedAt,
		CurrentTimeY: s.nowY,
	}
}

// Selection returns the calendar filter store.
func (s *State) Selection() *filter.Store {
	return s.selection
}

// Timeline returns the day view geometry.
func (s *State) Timeline() layout.Timeline {
	return s.timeline
}

// Location is the zone days are computed in.
func (s *State) Location() *time.Location {
	return s.loc
}

// Now returns the current time in the state's location.
func (s *State) Now() time.Time {
	return s.now()
}

func (s *State) preferences() settings.Settings {
	if s.prefs == nil {
		return settings.Default()
	}
	return s.prefs.Get()
}

// Refresh fetches the events for the grid around today. A failing source
// leaves the state with an empty event list; the error is returned for
// logging only.
func (s *State) Refresh(ctx context.Context) error {
	return s.RefreshFor(ctx, s.now())
}

// RefreshFor replaces the snapshot with the events for the grid anchored at
// anchor. The scheduler keeps the snapshot on today; one-shot callers use
// this to load the week they are about to show.
func (s *State) RefreshFor(ctx context.Context, anchor time.Time) error {
	day := layout.StartOfDay(anchor.In(s.loc))
	from, to := layout.FetchRange(day)

	events, fetchErr := s.fetch(ctx, from, to)

	s.mu.Lock()
	s.events = events
	s.fetchedFor = day
	s.coveredFrom, s.coveredTo = from, to
	s.refreshedAt = s.now()
	s.mu.Unlock()

	appLog.Debug("events refreshed", "count", len(events), "day", day.Format(time.DateOnly))
	if fetchErr != nil {
		return fmt.Errorf("state: refresh: %w", fetchErr)
	}
	return nil
}

// fetch asks the source for [from, to). A failure yields an empty list plus
// the error.
func (s *State) fetch(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	var events []model.Event
	var err error
	if s.source != nil {
		events, err = s.source.Events(ctx, from, to)
	}
	if err != nil {
		appLog.Error("event fetch failed; showing no events", err, "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))
		events = nil
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, err
}

// eventsFor returns events covering [from, to): the snapshot when it spans
// the interval, otherwise a one-off fetch that leaves the snapshot alone.
func (s *State) eventsFor(ctx context.Context, from, to time.Time) []model.Event {
	s.mu.RLock()
	events := s.events
	covered := !s.coveredFrom.IsZero() && !from.Before(s.coveredFrom) && !to.After(s.coveredTo)
	s.mu.RUnlock()
	if covered {
		return events
	}

	appLog.Debug("date outside snapshot; fetching", "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))
	events, _ = s.fetch(ctx, from, to)
	return events
}

// CheckRollover refetches when the wall-clock day differs from the day the
// current snapshot was fetched for. It reports whether a refetch happened.
func (s *State) CheckRollover(ctx context.Context) (bool, error) {
	today := layout.StartOfDay(s.now())
	s.mu.RLock()
	fetchedFor := s.fetchedFor
	s.mu.RUnlock()

	if !fetchedFor.IsZero() && fetchedFor.Equal(today) {
		return false, nil
	}
	appLog.Info("day rolled over; refetching events", "previous", fetchedFor.Format(time.DateOnly), "today", today.Format(time.DateOnly))
	return true, s.Refresh(ctx)
}

// Tick recomputes the live clock offset and returns it.
func (s *State) Tick() float64 {
	y := s.clock.Tick()
	s.mu.Lock()
	s.nowY = y
	s.mu.Unlock()
	return y
}

// WeekView is a built grid plus the display preferences the renderer needs.
type WeekView struct {
	Grid          layout.WeekGrid
	Selected      []string
	ShowEventTime bool
	DimOpacity    float64
}

// Week builds the grid anchored at anchor (today when zero) with the current
// selection. Events come from the snapshot, or from the source when the grid
// lies outside it.
func (s *State) Week(ctx context.Context, anchor time.Time) WeekView {
	now := s.now()
	if anchor.IsZero() {
		anchor = now
	}
	anchor = anchor.In(s.loc)
	selected := s.selection.Snapshot()
	prefs := s.preferences()

	from := layout.ComputeWeekStart(anchor)
	events := s.eventsFor(ctx, from, layout.AddDays(from, layout.GridDays))

	return WeekView{
		Grid:          layout.BuildGrid(anchor, events, selected, now),
		Selected:      selected.All(),
		ShowEventTime: prefs.ShowEventTime,
		DimOpacity:    prefs.DimOpacity,
	}
}

// DayView is the positioned timeline for one date.
type DayView struct {
	Date         time.Time
	Calendar     string // empty when the week grid's selection is used
	Entries      []layout.TimelineEntry
	HourMarks    []layout.HourMark
	CurrentTimeY float64
	IsToday      bool
}

// Day builds the timeline for date (today when zero). calendar, when not
// empty, restricts the view to that calendar; otherwise the user's timeline
// calendar, then the configured one, then the week grid selection apply.
func (s *State) Day(ctx context.Context, date time.Time, calendar string) DayView {
	now := s.now()
	if date.IsZero() {
		date = now
	}
	date = layout.StartOfDay(date.In(s.loc))

	if calendar == "" {
		calendar = s.preferences().TimelineCalendar
	}
	if calendar == "" {
		calendar = s.timelineCalendar
	}
	var selector layout.CalendarSelector = s.selection.Snapshot()
	if calendar != "" {
		selector = layout.SingleCalendar(calendar)
	}

	events := s.eventsFor(ctx, date, layout.AddDays(date, 1))
	return DayView{
		Date:         date,
		Calendar:     calendar,
		Entries:      s.timeline.Build(events, date, selector),
		HourMarks:    s.timeline.HourMarks(),
		CurrentTimeY: s.Snapshot().CurrentTimeY,
		IsToday:      layout.SameDay(date, now),
	}
}
