package layout

import "time"

// TickInterval is how often the live clock indicator should be recomputed.
const TickInterval = 30 * time.Second

// CurrentTimeOffset is the indicator position for now, clamped to the track.
func CurrentTimeOffset(now time.Time, window TimeWindow, trackHeight float64) float64 {
	return window.ClampedPixel(now, trackHeight)
}

// Clock produces the live "now" offset for a timeline. It holds no state
// besides its time source; the caller owns the timer.
type Clock struct {
	timeline Timeline
	now      func() time.Time
}

// NewClock returns a Clock reading time from now, or time.Now when nil.
func NewClock(tl Timeline, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{timeline: tl, now: now}
}

// Tick returns the current indicator offset.
func (c *Clock) Tick() float64 {
	return CurrentTimeOffset(c.now(), c.timeline.Window, c.timeline.TrackHeight)
}
