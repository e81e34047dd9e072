package cal

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the recurrence step for a repeating event.
type Frequency string

const (
	FreqNone    Frequency = ""
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// MaxOccurrences caps a single recurrence expansion. A daily event over a
// multi-decade range would otherwise flood the events table.
const MaxOccurrences = 2000

// ParseFrequency validates a frequency string from the API. "none" and ""
// both mean a non-recurring event.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FreqNone, FreqDaily, FreqWeekly, FreqMonthly:
		return Frequency(s), nil
	}
	if s == "none" {
		return FreqNone, nil
	}
	return FreqNone, fmt.Errorf("unknown recurrence frequency %q", s)
}

// ExpandRecurrence turns (start, end, freq) into the concrete dates to
// insert, one per occurrence, both endpoints inclusive. It returns the
// dates and whether the expansion was truncated at MaxOccurrences.
//
// A nil end, an end on or before start, or FreqNone all collapse to a
// single occurrence at start. Monthly recurrence follows RRULE
// FREQ=MONTHLY semantics: an event starting on the 31st skips months
// without that day.
func ExpandRecurrence(start time.Time, end *time.Time, freq Frequency) ([]time.Time, bool, error) {
	start = midnightUTC(start)
	if freq == FreqNone || end == nil || !midnightUTC(*end).After(start) {
		return []time.Time{start}, false, nil
	}

	var f rrule.Frequency
	switch freq {
	case FreqDaily:
		f = rrule.DAILY
	case FreqWeekly:
		f = rrule.WEEKLY
	case FreqMonthly:
		f = rrule.MONTHLY
	default:
		return nil, false, fmt.Errorf("unknown recurrence frequency %q", freq)
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    f,
		Dtstart: start,
		Until:   midnightUTC(*end),
	})
	if err != nil {
		return nil, false, fmt.Errorf("build recurrence rule: %w", err)
	}

	// Pull occurrences lazily so a huge end date costs at most
	// MaxOccurrences+1 steps instead of materializing the whole rule.
	next := r.Iterator()
	dates := make([]time.Time, 0, 64)
	for {
		d, ok := next()
		if !ok {
			return dates, false, nil
		}
		if len(dates) == MaxOccurrences {
			return dates, true, nil
		}
		dates = append(dates, d)
	}
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
