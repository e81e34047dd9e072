package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caldash/internal/model"
)

func TestBuildFeed(t *testing.T) {
	clock := "09:00"
	events := []model.Event{
		{ID: 1, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Clock: &clock, Title: "Standup", Author: "Amanda"},
		{ID: 2, Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Title: "Road trip", Author: "Daniel"},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	feed := BuildFeed(events, time.UTC, now)

	assert.True(t, strings.HasPrefix(feed, "BEGIN:VCALENDAR"))
	assert.Contains(t, feed, "END:VCALENDAR")
	assert.Contains(t, feed, "SUMMARY:Standup")
	assert.Contains(t, feed, "SUMMARY:Road trip")
	assert.Contains(t, feed, "UID:caldash-1@caldash")
	assert.Contains(t, feed, "UID:caldash-2@caldash")

	// Timed event carries its start time; untimed becomes all-day.
	assert.Contains(t, feed, "20260301T090000Z")
	assert.Contains(t, feed, "VALUE=DATE:20260302")
}

func TestBuildFeedEmpty(t *testing.T) {
	feed := BuildFeed(nil, time.UTC, time.Now())
	require.Contains(t, feed, "BEGIN:VCALENDAR")
	assert.NotContains(t, feed, "BEGIN:VEVENT")
}

func TestBuildFeedMalformedClockFallsBackToAllDay(t *testing.T) {
	bad := "25:99"
	events := []model.Event{
		{ID: 3, Date: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), Clock: &bad, Title: "Glitch", Author: "Amanda"},
	}

	feed := BuildFeed(events, time.UTC, time.Now())

	// An unparseable stored clock renders all-day, never a midnight slot.
	assert.Contains(t, feed, "VALUE=DATE:20260305")
	assert.NotContains(t, feed, "20260305T000000Z")
}

func TestBuildFeedUsesLocationForTimedEvents(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	clock := "14:30"
	events := []model.Event{
		{ID: 7, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Clock: &clock, Title: "Call", Author: ""},
	}

	feed := BuildFeed(events, loc, time.Now())

	// 14:30 EST is 19:30 UTC.
	assert.Contains(t, feed, "20260301T193000Z")
}
