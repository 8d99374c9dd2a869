package layout

import (
	"errors"
	"testing"
	"time"

	"minkal/internal/model"
)

func testTimeline(t *testing.T) Timeline {
	t.Helper()
	w, err := NewTimeWindow(7, 22)
	if err != nil {
		t.Fatalf("NewTimeWindow: %v", err)
	}
	tl, err := NewTimeline(w, 900, DefaultStackOffset)
	if err != nil {
		t.Fatalf("NewTimeline: %v", err)
	}
	return tl
}

func TestNewTimeWindowRejectsDegenerate(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
	}{
		{"inverted", 22, 7},
		{"empty", 9, 9},
		{"negative start", -1, 10},
		{"end past midnight", 7, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTimeWindow(tt.start, tt.end)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("NewTimeWindow(%d, %d) error = %v, want ErrConfiguration", tt.start, tt.end, err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %T is not a *ConfigurationError", err)
			}
		})
	}

	if _, err := NewTimeWindow(0, 24); err != nil {
		t.Errorf("NewTimeWindow(0, 24) = %v, want nil", err)
	}
}

func TestNewTimelineRejectsBadGeometry(t *testing.T) {
	w := DefaultWindow()
	if _, err := NewTimeline(w, 0, 20); !errors.Is(err, ErrConfiguration) {
		t.Errorf("zero height: err = %v", err)
	}
	if _, err := NewTimeline(w, 900, -1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative offset: err = %v", err)
	}
	if _, err := NewTimeline(TimeWindow{}, 900, 20); !errors.Is(err, ErrConfiguration) {
		t.Errorf("zero window: err = %v", err)
	}
}

func TestTimeToPixel(t *testing.T) {
	start := date(2024, 3, 4, 7, 0)
	end := date(2024, 3, 4, 22, 0)

	nine, _ := TimeToPixel(date(2024, 3, 4, 9, 0), start, end, 900)
	noon, _ := TimeToPixel(date(2024, 3, 4, 12, 0), start, end, 900)
	eight, _ := TimeToPixel(date(2024, 3, 4, 20, 0), start, end, 900)
	if !(nine < noon && noon < eight) {
		t.Errorf("not monotonic: 09:00=%g 12:00=%g 20:00=%g", nine, noon, eight)
	}
	if nine != 120 || noon != 300 || eight != 780 {
		t.Errorf("got %g %g %g, want 120 300 780", nine, noon, eight)
	}

	if _, err := TimeToPixel(start, end, start, 900); !errors.Is(err, ErrConfiguration) {
		t.Errorf("inverted bounds: err = %v", err)
	}
	if _, err := TimeToPixel(start, start, start, 900); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty bounds: err = %v", err)
	}
}

func TestWindowPixelClamping(t *testing.T) {
	w := DefaultWindow()
	tests := []struct {
		name string
		at   time.Time
		raw  float64
		want float64
	}{
		{"before window", date(2024, 3, 4, 6, 0), -60, 0},
		{"window start", date(2024, 3, 4, 7, 0), 0, 0},
		{"half past two", date(2024, 3, 4, 14, 30), 450, 450},
		{"window end", date(2024, 3, 4, 22, 0), 900, 900},
		{"after window", date(2024, 3, 4, 23, 0), 960, 900},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Pixel(tt.at, 900); got != tt.raw {
				t.Errorf("Pixel() = %g, want %g", got, tt.raw)
			}
			if got := w.ClampedPixel(tt.at, 900); got != tt.want {
				t.Errorf("ClampedPixel() = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestFilterForDay(t *testing.T) {
	day := date(2024, 3, 4, 0, 0)
	events := []model.Event{
		{ID: "home", Start: date(2024, 3, 4, 9, 0), CalendarName: "Home"},
		{ID: "work", Start: date(2024, 3, 4, 10, 0), CalendarName: "Work"},
		{ID: "tomorrow", Start: date(2024, 3, 5, 9, 0), CalendarName: "Home"},
		{ID: "gym", Start: date(2024, 3, 4, 18, 0), CalendarName: "Gym"},
	}

	tests := []struct {
		name     string
		selected CalendarSelector
		want     []string
	}{
		{"single calendar", SingleCalendar("Home"), []string{"home"}},
		{"filter set", nameSet{"Home": true, "Gym": true}, []string{"home", "gym"}},
		{"nothing selected", nameSet{}, nil},
		{"nil selector", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterForDay(events, day, tt.selected)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %v", len(got), tt.want)
			}
			for i, ev := range got {
				if ev.ID != tt.want[i] {
					t.Errorf("got[%d] = %s, want %s", i, ev.ID, tt.want[i])
				}
			}
		})
	}
}

func TestStackOverlaps(t *testing.T) {
	tl := testTimeline(t)
	events := []model.Event{
		{ID: "E1", Start: date(2024, 3, 4, 9, 0), CalendarName: "Home"},
		{ID: "E2", Start: date(2024, 3, 4, 9, 0), CalendarName: "Home"},
		{ID: "E3", Start: date(2024, 3, 4, 10, 0), CalendarName: "Home"},
	}

	entries := tl.StackOverlaps(events)
	want := []struct {
		id    string
		index int
		y     float64
	}{
		{"E1", 0, 120},
		{"E2", 1, 140},
		{"E3", 2, 220},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		e := entries[i]
		if e.Event.ID != w.id || e.StackIndex != w.index || e.YPixel != w.y {
			t.Errorf("entry %d = {%s %d %g}, want {%s %d %g}", i, e.Event.ID, e.StackIndex, e.YPixel, w.id, w.index, w.y)
		}
	}
}

func TestStackOverlapsSortsAndGroups(t *testing.T) {
	tl := testTimeline(t)
	events := []model.Event{
		{ID: "home-late", Start: date(2024, 3, 4, 15, 0), CalendarName: "Home"},
		{ID: "work", Start: date(2024, 3, 4, 9, 0), CalendarName: "Work"},
		{ID: "home-early", Start: date(2024, 3, 4, 8, 0), CalendarName: "Home"},
	}
	original := append([]model.Event(nil), events...)

	entries := tl.StackOverlaps(events)
	got := make(map[string]TimelineEntry)
	for _, e := range entries {
		got[e.Event.ID] = e
	}

	if got["home-early"].StackIndex != 0 || got["home-late"].StackIndex != 1 {
		t.Errorf("home stack = %d, %d", got["home-early"].StackIndex, got["home-late"].StackIndex)
	}
	if got["work"].StackIndex != 0 {
		t.Errorf("work stack = %d, want 0", got["work"].StackIndex)
	}
	if got["home-late"].YPixel != 480+DefaultStackOffset {
		t.Errorf("home-late y = %g", got["home-late"].YPixel)
	}
	for i := range events {
		if events[i].ID != original[i].ID {
			t.Fatalf("input slice was reordered")
		}
	}
}

func TestStackOverlapsMixedZones(t *testing.T) {
	tl := testTimeline(t)
	cet := time.FixedZone("CET", 60*60)

	// 23:30 UTC on the 4th is 00:30 on the 5th in CET.
	late := model.Event{ID: "late", Start: date(2024, 3, 4, 23, 30), CalendarName: "Home"}
	morning := model.Event{ID: "morning", Start: time.Date(2024, 3, 5, 8, 0, 0, 0, cet), CalendarName: "Home"}

	check := func(t *testing.T, entries []TimelineEntry) {
		t.Helper()
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		got := map[string]TimelineEntry{entries[0].Event.ID: entries[0], entries[1].Event.ID: entries[1]}
		if got["late"].StackIndex != 0 || got["morning"].StackIndex != 1 {
			t.Errorf("stack = late %d, morning %d; want one stack", got["late"].StackIndex, got["morning"].StackIndex)
		}
		if got["late"].YPixel != 0 || got["morning"].YPixel != 60+DefaultStackOffset {
			t.Errorf("y = late %g, morning %g", got["late"].YPixel, got["morning"].YPixel)
		}
	}

	t.Run("explicit location", func(t *testing.T) {
		check(t, tl.StackOverlapsIn([]model.Event{late, morning}, cet))
	})
	t.Run("first event location", func(t *testing.T) {
		check(t, tl.StackOverlaps([]model.Event{morning, late}))
	})
	t.Run("build uses the day's location", func(t *testing.T) {
		day := time.Date(2024, 3, 5, 0, 0, 0, 0, cet)
		check(t, tl.Build([]model.Event{late, morning}, day, SingleCalendar("Home")))
	})
}

func TestStackOverlapsClampsToTrack(t *testing.T) {
	tl := testTimeline(t)
	events := []model.Event{
		{ID: "dawn", Start: date(2024, 3, 4, 5, 0), CalendarName: "Home"},
		{ID: "night1", Start: date(2024, 3, 4, 23, 0), CalendarName: "Home"},
		{ID: "night2", Start: date(2024, 3, 4, 23, 30), CalendarName: "Home"},
	}

	for _, e := range tl.StackOverlaps(events) {
		if e.YPixel < 0 || e.YPixel > tl.TrackHeight {
			t.Errorf("%s y = %g outside [0, %g]", e.Event.ID, e.YPixel, tl.TrackHeight)
		}
	}
}

func TestTimelineBuild(t *testing.T) {
	tl := testTimeline(t)
	events := []model.Event{
		{ID: "a", Start: date(2024, 3, 4, 9, 0), CalendarName: "Home"},
		{ID: "b", Start: date(2024, 3, 5, 9, 0), CalendarName: "Home"},
	}
	entries := tl.Build(events, date(2024, 3, 4, 12, 0), SingleCalendar("Home"))
	if len(entries) != 1 || entries[0].Event.ID != "a" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestHourMarks(t *testing.T) {
	tl := testTimeline(t)
	marks := tl.HourMarks()
	if len(marks) != 16 {
		t.Fatalf("len = %d, want 16", len(marks))
	}
	if marks[0].Label != "07:00" || marks[0].YPixel != 0 {
		t.Errorf("first mark = %+v", marks[0])
	}
	if marks[15].Label != "22:00" || marks[15].YPixel != 900 {
		t.Errorf("last mark = %+v", marks[15])
	}
}

func TestClockTick(t *testing.T) {
	tl := testTimeline(t)
	now := date(2024, 3, 4, 14, 30)
	c := NewClock(tl, func() time.Time { return now })

	if got := c.Tick(); got != 450 {
		t.Errorf("Tick() = %g, want 450", got)
	}
	now = date(2024, 3, 4, 6, 0)
	if got := c.Tick(); got != 0 {
		t.Errorf("Tick() before window = %g, want 0", got)
	}
	now = date(2024, 3, 4, 23, 59)
	if got := c.Tick(); got != 900 {
		t.Errorf("Tick() after window = %g, want 900", got)
	}
}
