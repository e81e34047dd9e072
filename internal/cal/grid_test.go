package cal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthGridAnchorsOnWeekStart(t *testing.T) {
	today := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)

	// September 1, 2026 is a Tuesday.
	grid := MonthGrid(2026, time.September, time.Sunday, today)
	assert.Equal(t, "2026-08-30", grid[0][0].ISODate)
	assert.Equal(t, time.Sunday, grid[0][0].Date.Weekday())

	grid = MonthGrid(2026, time.September, time.Monday, today)
	assert.Equal(t, "2026-08-31", grid[0][0].ISODate)
	assert.Equal(t, time.Monday, grid[0][0].Date.Weekday())
}

func TestMonthGridIsConsecutive(t *testing.T) {
	today := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
	grid := MonthGrid(2026, time.September, time.Sunday, today)

	prev := grid[0][0].Date
	for i := 1; i < GridRows*GridCols; i++ {
		cell := grid[i/GridCols][i%GridCols]
		require.Equal(t, prev.AddDate(0, 0, 1), cell.Date, "cell %d not consecutive", i)
		prev = cell.Date
	}
}

func TestMonthGridInMonthFlags(t *testing.T) {
	today := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)

	// February 1, 2026 is a Sunday, so the month starts in the first cell.
	grid := MonthGrid(2026, time.February, time.Sunday, today)
	assert.Equal(t, "2026-02-01", grid[0][0].ISODate)
	assert.True(t, grid[0][0].InMonth)

	inMonth := 0
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if grid[r][c].InMonth {
				inMonth++
			}
		}
	}
	assert.Equal(t, 28, inMonth)
}

func TestMonthGridLeapFebruary(t *testing.T) {
	today := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	grid := MonthGrid(2024, time.February, time.Sunday, today)

	inMonth := 0
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if grid[r][c].InMonth {
				inMonth++
			}
		}
	}
	assert.Equal(t, 29, inMonth)
}

func TestMonthGridTodayFlag(t *testing.T) {
	today := time.Date(2026, time.September, 15, 9, 30, 0, 0, time.UTC)
	grid := MonthGrid(2026, time.September, time.Sunday, today)

	var marked []string
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if grid[r][c].Today {
				marked = append(marked, grid[r][c].ISODate)
			}
		}
	}
	require.Equal(t, []string{"2026-09-15"}, marked)

	// A reference date outside the grid marks nothing.
	grid = MonthGrid(2026, time.September, time.Sunday, today.AddDate(1, 0, 0))
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			assert.False(t, grid[r][c].Today)
		}
	}
}

func TestWeekdays(t *testing.T) {
	assert.Equal(t,
		[GridCols]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		Weekdays(time.Sunday))
	assert.Equal(t,
		[GridCols]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
		Weekdays(time.Monday))
}

func TestParseWeekStart(t *testing.T) {
	assert.Equal(t, time.Monday, ParseWeekStart("monday"))
	assert.Equal(t, time.Sunday, ParseWeekStart("sunday"))
	assert.Equal(t, time.Sunday, ParseWeekStart("whenever"))
}
