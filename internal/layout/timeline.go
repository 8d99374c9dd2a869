package layout

import (
	"fmt"
	"slices"
	"time"

	"minkal/internal/model"
)

const (
	// DefaultStackOffset is the vertical step between cascaded entries that
	// share a day and a calendar.
	DefaultStackOffset = 20.0

	// DefaultTrackHeight is the timeline height used when none is configured.
	DefaultTrackHeight = 900.0
)

// TimelineEntry is an event positioned on the day track.
type TimelineEntry struct {
	Event      model.Event
	YPixel     float64
	StackIndex int
}

// Timeline holds the validated parameters of the day view.
type Timeline struct {
	Window      TimeWindow
	TrackHeight float64
	StackOffset float64
}

// NewTimeline validates the track geometry. The window is assumed to come
// from NewTimeWindow.
func NewTimeline(window TimeWindow, trackHeight, stackOffset float64) (Timeline, error) {
	if window.endHour <= window.startHour {
		return Timeline{}, &ConfigurationError{Field: "window", Reason: "window is not configured"}
	}
	if trackHeight <= 0 {
		return Timeline{}, &ConfigurationError{Field: "track_height", Reason: fmt.Sprintf("%g must be positive", trackHeight)}
	}
	if stackOffset < 0 {
		return Timeline{}, &ConfigurationError{Field: "stack_offset", Reason: fmt.Sprintf("%g must not be negative", stackOffset)}
	}
	return Timeline{Window: window, TrackHeight: trackHeight, StackOffset: stackOffset}, nil
}

// FilterForDay keeps the events starting on day's calendar day (in day's
// location) whose calendar is selected. Input order is preserved.
func FilterForDay(events []model.Event, day time.Time, selected CalendarSelector) []model.Event {
	if selected == nil {
		return nil
	}
	var out []model.Event
	for _, ev := range events {
		if SameDay(day, ev.Start) && selected.Contains(ev.CalendarName) {
			out = append(out, ev)
		}
	}
	return out
}

// StackOverlaps positions events on the track. Events sharing a calendar and
// a day are cascaded: sorted by start (ties keep input order) and pushed
// down by StackOffset per rank. Groups appear in the order their first event
// appears in the input. Days and window positions are taken in the location
// of the first event.
func (tl Timeline) StackOverlaps(events []model.Event) []TimelineEntry {
	if len(events) == 0 {
		return []TimelineEntry{}
	}
	return tl.StackOverlapsIn(events, events[0].Start.Location())
}

// StackOverlapsIn is StackOverlaps with days and window positions taken in
// loc, so events stored in different zones still share a stack when they
// fall on the same local day.
func (tl Timeline) StackOverlapsIn(events []model.Event, loc *time.Location) []TimelineEntry {
	type groupKey struct {
		calendar string
		day      string
	}

	var order []groupKey
	groups := make(map[groupKey][]model.Event)
	for _, ev := range events {
		k := groupKey{calendar: ev.CalendarName, day: dayKey(ev.Start.In(loc))}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ev)
	}

	out := make([]TimelineEntry, 0, len(events))
	for _, k := range order {
		group := groups[k]
		slices.SortStableFunc(group, func(a, b model.Event) int {
			return a.Start.Compare(b.Start)
		})
		for i, ev := range group {
			base := tl.Window.ClampedPixel(ev.Start.In(loc), tl.TrackHeight)
			out = append(out, TimelineEntry{
				Event:      ev,
				YPixel:     Clamp(base+float64(i)*tl.StackOffset, tl.TrackHeight),
				StackIndex: i,
			})
		}
	}
	return out
}

// Build filters events to day and stacks them.
func (tl Timeline) Build(events []model.Event, day time.Time, selected CalendarSelector) []TimelineEntry {
	return tl.StackOverlapsIn(FilterForDay(events, day, selected), day.Location())
}

// HourMarks returns the hour ticks for this track.
func (tl Timeline) HourMarks() []HourMark {
	return tl.Window.HourMarks(tl.TrackHeight)
}
