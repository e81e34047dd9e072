package model

import "time"

// Event is a single concrete calendar entry as stored in Postgres.
// Recurring events are expanded before insertion, so every row is one
// occurrence on one date.
type Event struct {
	ID int64 `json:"-"`

	// Date is the event's calendar date at midnight UTC; only the
	// year/month/day components are meaningful.
	Date time.Time `json:"date"`

	// Clock is the wall-clock time of day as "HH:MM" (24h), or nil for
	// untimed events.
	Clock *string `json:"time"`

	Title  string `json:"title"`
	Author string `json:"author"`
}

// ISODate returns the event date as YYYY-MM-DD, the grouping key used by
// the API and the UI.
func (e Event) ISODate() string {
	return e.Date.Format("2006-01-02")
}
