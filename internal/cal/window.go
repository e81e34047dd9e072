package cal

import "time"

// Window is a half-open date range [Start, End) at date granularity.
// The fetch window for a displayed month spans the previous, current,
// and next month so that adjacent navigation stays cache-hot.
type Window struct {
	Start time.Time
	End   time.Time
}

// AddMonths shifts (year, month) by delta months with year carry.
func AddMonths(year int, month time.Month, delta int) (int, time.Month) {
	i := year*12 + int(month) - 1 + delta
	y, m := i/12, i%12
	// Go's integer division truncates toward zero; floor it so the carry
	// also holds below year zero.
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// FirstOfMonth returns midnight UTC on the 1st of (year, month).
func FirstOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// WindowForMonth returns the 3-month window centered on (year, month):
// [first of previous month, first of month after next).
func WindowForMonth(year int, month time.Month) Window {
	py, pm := AddMonths(year, month, -1)
	ny, nm := AddMonths(year, month, 2)
	return Window{
		Start: FirstOfMonth(py, pm),
		End:   FirstOfMonth(ny, nm),
	}
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.Start) && d.Before(w.End)
}

// Covers reports whether the displayed month (year, month) is served by
// this window, i.e. whether its first day is inside the range.
func (w Window) Covers(year int, month time.Month) bool {
	return w.Contains(FirstOfMonth(year, month))
}

// Equal reports whether two windows span the same range.
func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}
