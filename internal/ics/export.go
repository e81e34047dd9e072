// Package ics renders stored events as an iCalendar feed so the
// dashboard's calendar can be subscribed to from phone and desktop
// calendar apps.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"caldash/internal/model"
)

// timedEventDuration is the block length shown for events that only have
// a start time; the source data has no explicit end.
const timedEventDuration = time.Hour

// BuildFeed serializes events into a VCALENDAR payload. Timed events are
// placed in loc; untimed events become all-day entries.
func BuildFeed(events []model.Event, loc *time.Location, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//caldash//calendar//EN")

	for _, ev := range events {
		ve := cal.AddEvent(uidFor(ev))
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(ev.Title)
		if ev.Author != "" {
			ve.SetDescription(ev.Author)
		}

		y, m, d := ev.Date.Date()
		if ev.Clock != nil {
			if t, err := time.Parse("15:04", *ev.Clock); err == nil {
				start := time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
				ve.SetStartAt(start)
				ve.SetEndAt(start.Add(timedEventDuration))
				continue
			}
			// A clock the store should never hold; render as all-day
			// rather than a bogus midnight slot.
		}
		start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
	}

	return cal.Serialize()
}

// uidFor derives a stable per-row UID. Row IDs are unique and never
// reused, so subscribing clients see consistent identities across
// refreshes.
func uidFor(ev model.Event) string {
	return fmt.Sprintf("caldash-%d@caldash", ev.ID)
}
