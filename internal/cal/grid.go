// Package cal holds the calendar date arithmetic: the 6x7 month grid,
// the 3-month fetch window, and recurrence expansion.
package cal

import "time"

// GridRows and GridCols fix the month grid shape. Six rows of seven days
// always cover a month regardless of where its first day falls.
const (
	GridRows = 6
	GridCols = 7
)

// Cell is a single day slot in the month grid.
type Cell struct {
	Date    time.Time `json:"-"`
	ISODate string    `json:"date"`
	Day     int       `json:"day"`
	InMonth bool      `json:"in_month"`
	Today   bool      `json:"today"`
}

// MonthGrid builds the 6x7 grid for (year, month). The first column is
// weekStart; the grid is anchored at the weekStart day on or before the
// 1st of the month, so it contains 42 consecutive dates with the whole
// displayed month inside. today marks the matching cell, if present.
func MonthGrid(year int, month time.Month, weekStart time.Weekday, today time.Time) [GridRows][GridCols]Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	start := first.AddDate(0, 0, -offset)

	ty, tm, td := today.Date()

	var grid [GridRows][GridCols]Cell
	for i := 0; i < GridRows*GridCols; i++ {
		d := start.AddDate(0, 0, i)
		y, m, day := d.Date()
		grid[i/GridCols][i%GridCols] = Cell{
			Date:    d,
			ISODate: d.Format("2006-01-02"),
			Day:     day,
			InMonth: m == month && y == year,
			Today:   y == ty && m == tm && day == td,
		}
	}
	return grid
}

// Weekdays returns the column headers for the given week start, e.g.
// ["Sun", "Mon", ...] or ["Mon", ..., "Sun"].
func Weekdays(weekStart time.Weekday) [GridCols]string {
	names := [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	var out [GridCols]string
	for i := 0; i < GridCols; i++ {
		out[i] = names[(int(weekStart)+i)%7]
	}
	return out
}

// ParseWeekStart maps the config week_start value to a weekday.
// Unknown values fall back to Sunday.
func ParseWeekStart(s string) time.Weekday {
	if s == "monday" {
		return time.Monday
	}
	return time.Sunday
}
