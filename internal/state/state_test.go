package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"minkal/internal/filter"
	"minkal/internal/layout"
	"minkal/internal/model"
	"minkal/internal/settings"
)

type fakeSource struct {
	mu     sync.Mutex
	events []model.Event
	err    error
	calls  []time.Time
}

func (f *fakeSource) Events(_ context.Context, from, _ time.Time) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, from)
	return f.events, f.err
}

type fakePrefs struct{ s settings.Settings }

func (f fakePrefs) Get() settings.Settings { return f.s }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func at(d, hh, mm int) time.Time {
	return time.Date(2024, time.March, d, hh, mm, 0, 0, time.UTC)
}

func sampleEvents() []model.Event {
	return []model.Event{
		{ID: "h1", Start: at(13, 9, 0), Title: "Dentist", CalendarName: "Home"},
		{ID: "w1", Start: at(13, 9, 0), Title: "Standup", CalendarName: "Work"},
		{ID: "h2", Start: at(13, 10, 0), Title: "Laundry", CalendarName: "Home"},
		{ID: "h3", Start: at(14, 8, 0), Title: "Gym", CalendarName: "Home"},
	}
}

func newTestState(t *testing.T, src EventSource, clock *fakeClock, prefs Preferences, timelineCalendar string) *State {
	t.Helper()
	tl, err := layout.NewTimeline(layout.DefaultWindow(), 900, 20)
	if err != nil {
		t.Fatal(err)
	}
	return New(Options{
		Source:           src,
		Timeline:         tl,
		Selection:        filter.NewStore([]string{"Home"}, nil),
		Preferences:      prefs,
		TimelineCalendar: timelineCalendar,
		Location:         time.UTC,
		Now:              clock.Now,
	})
}

func TestRefreshUsesFetchRange(t *testing.T) {
	src := &fakeSource{events: sampleEvents()}
	clock := &fakeClock{t: at(13, 14, 30)}
	st := newTestState(t, src, clock, nil, "")

	if err := st.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(src.calls) != 1 || !src.calls[0].Equal(at(4, 0, 0)) {
		t.Errorf("fetch from = %v, want 2024-03-04", src.calls)
	}
	snap := st.Snapshot()
	if len(snap.Events) != 4 || !snap.FetchedFor.Equal(at(13, 0, 0)) {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRefreshFailureYieldsEmptyEvents(t *testing.T) {
	src := &fakeSource{events: sampleEvents()}
	clock := &fakeClock{t: at(13, 14, 30)}
	st := newTestState(t, src, clock, nil, "")
	_ = st.Refresh(context.Background())

	src.err = errors.New("calendar access denied")
	if err := st.Refresh(context.Background()); err == nil {
		t.Error("expected refresh error")
	}
	if n := len(st.Snapshot().Events); n != 0 {
		t.Errorf("events after failed refresh = %d, want 0", n)
	}
	if cells := st.Week(context.Background(), time.Time{}).Grid.Cells(); len(cells) != layout.GridDays {
		t.Errorf("grid still needs %d cells, got %d", layout.GridDays, len(cells))
	}
}

func TestCheckRollover(t *testing.T) {
	src := &fakeSource{}
	clock := &fakeClock{t: at(13, 23, 0)}
	st := newTestState(t, src, clock, nil, "")

	refetched, err := st.CheckRollover(context.Background())
	if err != nil || !refetched {
		t.Fatalf("first check = %v, %v; want refetch", refetched, err)
	}

	clock.Set(at(13, 23, 59))
	if refetched, _ := st.CheckRollover(context.Background()); refetched {
		t.Error("refetched within the same day")
	}

	clock.Set(at(14, 0, 1))
	if refetched, _ := st.CheckRollover(context.Background()); !refetched {
		t.Error("no refetch after midnight")
	}
	if len(src.calls) != 2 {
		t.Errorf("fetches = %d, want 2", len(src.calls))
	}
}

func TestTick(t *testing.T) {
	clock := &fakeClock{t: at(13, 14, 30)}
	st := newTestState(t, &fakeSource{}, clock, nil, "")

	if y := st.Snapshot().CurrentTimeY; y != 450 {
		t.Errorf("initial offset = %g, want 450", y)
	}
	clock.Set(at(13, 23, 0))
	if y := st.Tick(); y != 900 {
		t.Errorf("Tick() = %g, want 900", y)
	}
	if y := st.Snapshot().CurrentTimeY; y != 900 {
		t.Errorf("stored offset = %g, want 900", y)
	}
}

func TestWeekFollowsSelection(t *testing.T) {
	clock := &fakeClock{t: at(13, 14, 30)}
	prefs := fakePrefs{s: settings.Settings{ShowEventTime: true, DimOpacity: 0.4}}
	st := newTestState(t, &fakeSource{events: sampleEvents()}, clock, prefs, "")
	_ = st.Refresh(context.Background())

	view := st.Week(context.Background(), time.Time{})
	cell, _ := view.Grid.Cell(at(13, 0, 0))
	if len(cell.Events) != 2 || cell.Tense != layout.Present {
		t.Errorf("cell = %+v", cell)
	}
	if !view.ShowEventTime || view.DimOpacity != 0.4 {
		t.Errorf("prefs not passed through: %+v", view)
	}

	if _, err := st.Selection().Toggle("Work"); err != nil {
		t.Fatal(err)
	}
	cell, _ = st.Week(context.Background(), time.Time{}).Grid.Cell(at(13, 0, 0))
	if len(cell.Events) != 3 {
		t.Errorf("after selecting Work, cell has %d events, want 3", len(cell.Events))
	}
}

func TestDayCalendarResolution(t *testing.T) {
	tests := []struct {
		name     string
		prefs    Preferences
		config   string
		override string
		wantCal  string
		wantIDs  []string
	}{
		{"selection set", nil, "", "", "", []string{"h1", "h2"}},
		{"config calendar", nil, "Work", "", "Work", []string{"w1"}},
		{"user calendar wins over config", fakePrefs{s: settings.Settings{TimelineCalendar: "Home"}}, "Work", "", "Home", []string{"h1", "h2"}},
		{"explicit override", fakePrefs{s: settings.Settings{TimelineCalendar: "Home"}}, "", "Work", "Work", []string{"w1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{t: at(13, 14, 30)}
			st := newTestState(t, &fakeSource{events: sampleEvents()}, clock, tt.prefs, tt.config)
			_ = st.Refresh(context.Background())

			view := st.Day(context.Background(), time.Time{}, tt.override)
			if view.Calendar != tt.wantCal {
				t.Errorf("Calendar = %q, want %q", view.Calendar, tt.wantCal)
			}
			if len(view.Entries) != len(tt.wantIDs) {
				t.Fatalf("entries = %d, want %v", len(view.Entries), tt.wantIDs)
			}
			for i, e := range view.Entries {
				if e.Event.ID != tt.wantIDs[i] || e.StackIndex != i {
					t.Errorf("entry %d = %s/%d", i, e.Event.ID, e.StackIndex)
				}
			}
			if !view.IsToday || len(view.HourMarks) != 16 {
				t.Errorf("IsToday = %v, marks = %d", view.IsToday, len(view.HourMarks))
			}
		})
	}
}

func TestDayOtherDate(t *testing.T) {
	clock := &fakeClock{t: at(13, 14, 30)}
	st := newTestState(t, &fakeSource{events: sampleEvents()}, clock, nil, "")
	_ = st.Refresh(context.Background())

	view := st.Day(context.Background(), at(14, 12, 0), "")
	if view.IsToday || len(view.Entries) != 1 || view.Entries[0].Event.ID != "h3" {
		t.Errorf("view = %+v", view)
	}
	if view.Entries[0].YPixel != 60 {
		t.Errorf("y = %g, want 60", view.Entries[0].YPixel)
	}
}

// rangeSource only returns events starting inside the requested interval.
type rangeSource struct {
	mu     sync.Mutex
	events []model.Event
	calls  int
}

func (r *rangeSource) Events(_ context.Context, from, to time.Time) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var out []model.Event
	for _, ev := range r.events {
		if !ev.Start.Before(from) && ev.Start.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func TestViewsOutsideSnapshotFetchTheirRange(t *testing.T) {
	may := time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC)
	src := &rangeSource{events: append(sampleEvents(), model.Event{ID: "may", Start: may, Title: "Dentist", CalendarName: "Home"})}
	clock := &fakeClock{t: at(13, 14, 30)}
	st := newTestState(t, src, clock, nil, "")
	ctx := context.Background()

	if err := st.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(st.Snapshot().Events); n != 4 {
		t.Fatalf("snapshot has %d events, want the 4 March events", n)
	}

	week := st.Week(ctx, time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC))
	cell, ok := week.Grid.Cell(time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC))
	if !ok || len(cell.Events) != 1 || cell.Events[0].Event.ID != "may" {
		t.Errorf("May 6 cell = %+v (found %v)", cell, ok)
	}

	day := st.Day(ctx, may, "")
	if len(day.Entries) != 1 || day.Entries[0].YPixel != 120 {
		t.Errorf("May 6 timeline = %+v", day.Entries)
	}

	snap := st.Snapshot()
	if !snap.FetchedFor.Equal(at(13, 0, 0)) || len(snap.Events) != 4 {
		t.Errorf("one-off fetch replaced the snapshot: %+v", snap)
	}

	// Views inside the snapshot do not hit the source again.
	calls := src.calls
	st.Week(ctx, time.Time{})
	st.Day(ctx, at(20, 0, 0), "")
	if src.calls != calls {
		t.Errorf("source called %d more times for covered dates", src.calls-calls)
	}
}

func TestRefreshForAnchor(t *testing.T) {
	src := &rangeSource{events: []model.Event{
		{ID: "may", Start: time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC), CalendarName: "Home"},
	}}
	clock := &fakeClock{t: at(13, 14, 30)}
	st := newTestState(t, src, clock, nil, "")
	ctx := context.Background()

	anchor := time.Date(2024, time.May, 15, 18, 0, 0, 0, time.UTC)
	if err := st.RefreshFor(ctx, anchor); err != nil {
		t.Fatal(err)
	}
	snap := st.Snapshot()
	if len(snap.Events) != 1 || !snap.FetchedFor.Equal(time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("snapshot = %+v", snap)
	}

	cell, _ := st.Week(ctx, anchor).Grid.Cell(time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC))
	if len(cell.Events) != 1 || src.calls != 1 {
		t.Errorf("cell events = %d, source calls = %d; want 1, 1", len(cell.Events), src.calls)
	}
}
