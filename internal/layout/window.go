package layout

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfiguration is matched by every ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("layout: invalid configuration")

// ConfigurationError reports a layout parameter that can never produce a
// usable layout. It is only returned while building configuration values,
// never from the per-frame layout functions.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("layout: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// TimeWindow is the visible range of hours of a day, [StartHour, EndHour).
// Use NewTimeWindow; the zero value maps every time to pixel 0.
type TimeWindow struct {
	startHour int
	endHour   int
}

// NewTimeWindow validates the hours once so that pixel conversion never has
// to. EndHour may be 24 to mean midnight of the following day.
func NewTimeWindow(startHour, endHour int) (TimeWindow, error) {
	if startHour < 0 || startHour > 23 {
		return TimeWindow{}, &ConfigurationError{Field: "window.start_hour", Reason: fmt.Sprintf("%d is not in 0..23", startHour)}
	}
	if endHour < 1 || endHour > 24 {
		return TimeWindow{}, &ConfigurationError{Field: "window.end_hour", Reason: fmt.Sprintf("%d is not in 1..24", endHour)}
	}
	if endHour <= startHour {
		return TimeWindow{}, &ConfigurationError{
			Field:  "window",
			Reason: fmt.Sprintf("end hour %d must be after start hour %d", endHour, startHour),
		}
	}
	return TimeWindow{startHour: startHour, endHour: endHour}, nil
}

// DefaultWindow is 07:00-22:00.
func DefaultWindow() TimeWindow {
	return TimeWindow{startHour: 7, endHour: 22}
}

func (w TimeWindow) StartHour() int { return w.startHour }
func (w TimeWindow) EndHour() int   { return w.endHour }

func (w TimeWindow) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", w.startHour, w.endHour)
}

// Bounds returns the window's start and end on the calendar day of t, in t's
// location.
func (w TimeWindow) Bounds(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	loc := t.Location()
	return time.Date(y, m, d, w.startHour, 0, 0, 0, loc), time.Date(y, m, d, w.endHour, 0, 0, 0, loc)
}

// Pixel maps t linearly onto a track of the given height. The result is not
// clamped; times outside the window land below 0 or above height.
func (w TimeWindow) Pixel(t time.Time, height float64) float64 {
	start, end := w.Bounds(t)
	if !end.After(start) {
		return 0
	}
	return interpolate(t, start, end, height)
}

// ClampedPixel is Pixel limited to [0, height].
func (w TimeWindow) ClampedPixel(t time.Time, height float64) float64 {
	return Clamp(w.Pixel(t, height), height)
}

// TimeToPixel maps t onto [0, height] given explicit window bounds. It fails
// with a ConfigurationError when windowEnd is not after windowStart. Out of
// window times are returned unclamped.
func TimeToPixel(t, windowStart, windowEnd time.Time, height float64) (float64, error) {
	if !windowEnd.After(windowStart) {
		return 0, &ConfigurationError{Field: "window", Reason: "end must be after start"}
	}
	return interpolate(t, windowStart, windowEnd, height), nil
}

func interpolate(t, start, end time.Time, height float64) float64 {
	return float64(t.Sub(start)) / float64(end.Sub(start)) * height
}

// Clamp limits y to [0, height].
func Clamp(y, height float64) float64 {
	if y < 0 {
		return 0
	}
	if y > height {
		return height
	}
	return y
}

// HourMark is one labelled tick on the timeline track.
type HourMark struct {
	Label  string  `json:"label"`
	YPixel float64 `json:"y"`
}

// HourMarks returns a mark for every whole hour from the window start to the
// window end, inclusive.
func (w TimeWindow) HourMarks(height float64) []HourMark {
	if w.endHour <= w.startHour {
		return nil
	}
	marks := make([]HourMark, 0, w.endHour-w.startHour+1)
	span := float64(w.endHour - w.startHour)
	for h := w.startHour; h <= w.endHour; h++ {
		marks = append(marks, HourMark{
			Label:  fmt.Sprintf("%02d:00", h),
			YPixel: float64(h-w.startHour) / span * height,
		})
	}
	return marks
}
