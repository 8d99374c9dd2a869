package model

import "time"

// Event is a single calendar entry as handed to the layout engine by an
// event source. Values are immutable snapshots; the layout code only reads
// them.
type Event struct {
	// ID is unique and stable across fetches of the same occurrence.
	ID string

	Start        time.Time
	Title        string
	CalendarName string
	AllDay       bool
}
