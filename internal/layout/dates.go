package layout

import "time"

// Grid geometry. The week grid always covers four Monday-start weeks.
const (
	GridRows    = 4
	GridColumns = 7
	GridDays    = GridRows * GridColumns

	// FetchDays is how far past the week start an event source must cover
	// so that every grid cell has data.
	FetchDays = 35
)

// StartOfDay strips the time-of-day from t in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves a calendar day forward or backward by n days. It goes through
// time.Date rather than Add(24h) so DST transitions never shift the result off
// midnight.
func AddDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}

// SameDay reports whether a and b fall on the same calendar day, comparing
// in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// weekdayIndex numbers days 1=Sunday .. 7=Saturday.
func weekdayIndex(t time.Time) int {
	return int(t.Weekday()) + 1
}

// mondayOnOrBefore returns the Monday of the week containing day.
func mondayOnOrBefore(day time.Time) time.Time {
	offset := (weekdayIndex(day) - 2 + 7) % 7
	return AddDays(day, -offset)
}

// ComputeWeekStart returns the first day of the grid for ref: the Monday of
// the week one week before ref's week. The result is always a Monday at
// midnight in ref's location and lies between 7 and 13 days before ref.
func ComputeWeekStart(ref time.Time) time.Time {
	lastWeek := AddDays(StartOfDay(ref), -7)
	return mondayOnOrBefore(lastWeek)
}

// FetchRange is the [from, to) interval an event source has to cover for a
// grid anchored at ref.
func FetchRange(ref time.Time) (from, to time.Time) {
	from = ComputeWeekStart(ref)
	return from, AddDays(from, FetchDays)
}
