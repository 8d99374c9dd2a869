package layout

import (
	"time"

	"minkal/internal/model"
)

// CalendarSelector decides which calendars a view shows. filter.Set and
// SingleCalendar both satisfy it.
type CalendarSelector interface {
	Contains(name string) bool
}

// SingleCalendar selects exactly one calendar by name.
type SingleCalendar string

func (s SingleCalendar) Contains(name string) bool {
	return string(s) == name
}

// Tense classifies a day relative to today.
type Tense int

const (
	Past Tense = iota
	Present
	Future
)

func (t Tense) String() string {
	switch t {
	case Past:
		return "past"
	case Present:
		return "present"
	default:
		return "future"
	}
}

// MarshalText lets renderers receive "past"/"present"/"future" in JSON.
func (t Tense) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Classify compares day and today by calendar day only.
func Classify(day, today time.Time) Tense {
	day = StartOfDay(day)
	today = StartOfDay(today.In(day.Location()))
	switch {
	case day.Equal(today):
		return Present
	case day.Before(today):
		return Past
	default:
		return Future
	}
}

// EventKind separates all-day entries from timed ones so the renderer can
// style them differently.
type EventKind int

const (
	Timed EventKind = iota
	AllDay
)

func (k EventKind) String() string {
	if k == AllDay {
		return "all_day"
	}
	return "timed"
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// CellEvent is an event placed in a week grid cell.
type CellEvent struct {
	Event model.Event
	Kind  EventKind
}

// Label is the text shown in a cell. Timed events get an "HH:MM " prefix when
// showTime is set.
func (c CellEvent) Label(showTime bool) string {
	if showTime && c.Kind == Timed {
		return c.Event.Start.Format("15:04") + " " + c.Event.Title
	}
	return c.Event.Title
}

// DayCell is one day of the week grid.
type DayCell struct {
	Date   time.Time
	Tense  Tense
	Events []CellEvent
}

// WeekGrid is four Monday-start weeks. Rows[0][0] is Start.
type WeekGrid struct {
	Start time.Time
	Rows  [GridRows][GridColumns]DayCell
}

// Cells returns the 28 cells in date order.
func (g WeekGrid) Cells() []DayCell {
	out := make([]DayCell, 0, GridDays)
	for r := range g.Rows {
		out = append(out, g.Rows[r][:]...)
	}
	return out
}

// Cell finds the cell for the calendar day of date.
func (g WeekGrid) Cell(date time.Time) (DayCell, bool) {
	key := dayKey(date.In(g.Start.Location()))
	for r := range g.Rows {
		for c := range g.Rows[r] {
			if dayKey(g.Rows[r][c].Date) == key {
				return g.Rows[r][c], true
			}
		}
	}
	return DayCell{}, false
}

// End is the last day covered by the grid.
func (g WeekGrid) End() time.Time {
	return AddDays(g.Start, GridDays-1)
}

// BuildGrid lays out events into the 4x7 grid anchored at anchor. An event
// lands in a cell when its start falls on the cell's day (in anchor's
// location) and selected contains its calendar. Events keep their input
// order within a cell. A nil selector selects nothing.
func BuildGrid(anchor time.Time, events []model.Event, selected CalendarSelector, today time.Time) WeekGrid {
	start := ComputeWeekStart(anchor)
	loc := start.Location()

	byDay := make(map[string][]CellEvent)
	if selected != nil {
		for _, ev := range events {
			if !selected.Contains(ev.CalendarName) {
				continue
			}
			key := dayKey(ev.Start.In(loc))
			byDay[key] = append(byDay[key], CellEvent{Event: ev, Kind: kindOf(ev)})
		}
	}

	grid := WeekGrid{Start: start}
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridColumns; col++ {
			day := AddDays(start, row*GridColumns+col)
			grid.Rows[row][col] = DayCell{
				Date:   day,
				Tense:  Classify(day, today),
				Events: byDay[dayKey(day)],
			}
		}
	}
	return grid
}

func kindOf(ev model.Event) EventKind {
	if ev.AllDay {
		return AllDay
	}
	return Timed
}
