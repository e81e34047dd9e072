package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"caldash/internal/cal"
	"caldash/internal/ics"
	appLog "caldash/internal/log"
)

// eventDTO is the JSON view of one event inside a day bucket.
type eventDTO struct {
	Title  string  `json:"title"`
	Clock  *string `json:"time"`
	Author string  `json:"author"`
}

// eventsResponse is the payload of GET /api/events. The range lets the
// client run the same window hit/miss test locally and skip round trips
// while navigating inside the cached 3 months.
type eventsResponse struct {
	Year       int                   `json:"year"`
	Month      int                   `json:"month"`
	RangeStart string                `json:"range_start"`
	RangeEnd   string                `json:"range_end"`
	Events     map[string][]eventDTO `json:"events"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.st.Ping(r.Context()); err != nil {
		appLog.Error("health check: database ping failed", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// handleGetEvents returns events for the 3-month window around the
// requested month, grouped by ISO date.
//
// GET /api/events?year=2026&month=9
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.yearMonthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.windowEvents(r.Context(), year, month)
	if err != nil {
		appLog.Error("api events: query failed", err, "year", year, "month", int(month))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// windowEvents serves (year, month) from the cached window when the month
// is covered and the cache is fresh, otherwise fetches a new window.
func (s *Server) windowEvents(ctx context.Context, year int, month time.Month) (eventsResponse, error) {
	now := s.now()

	s.cacheMu.RLock()
	c := s.cache
	s.cacheMu.RUnlock()
	if c != nil && c.win.Covers(year, month) && now.Sub(c.updatedAt) < windowCacheTTL {
		return responseFromCache(c, year, month), nil
	}

	win := cal.WindowForMonth(year, month)
	events, err := s.st.EventsInRange(ctx, win.Start, win.End)
	if err != nil {
		return eventsResponse{}, err
	}

	byDay := make(map[string][]eventDTO)
	for _, ev := range events {
		iso := ev.ISODate()
		byDay[iso] = append(byDay[iso], eventDTO{
			Title:  ev.Title,
			Clock:  ev.Clock,
			Author: ev.Author,
		})
	}

	c = &windowCache{win: win, events: byDay, updatedAt: now}
	s.cacheMu.Lock()
	s.cache = c
	s.cacheMu.Unlock()

	appLog.Debug("window fetched",
		"range_start", win.Start.Format("2006-01-02"),
		"range_end", win.End.Format("2006-01-02"),
		"days_with_events", len(byDay),
	)
	return responseFromCache(c, year, month), nil
}

func responseFromCache(c *windowCache, year int, month time.Month) eventsResponse {
	return eventsResponse{
		Year:       year,
		Month:      int(month),
		RangeStart: c.win.Start.Format("2006-01-02"),
		RangeEnd:   c.win.End.Format("2006-01-02"),
		Events:     c.events,
	}
}

// RefreshWindow re-fetches the window around the current month, replacing
// the cache. The cron job calls this so interactive requests stay warm.
func (s *Server) RefreshWindow(ctx context.Context) error {
	now := s.now()

	s.cacheMu.Lock()
	s.cache = nil
	s.cacheMu.Unlock()

	_, err := s.windowEvents(ctx, now.Year(), now.Month())
	return err
}

// createEventRequest is the body of POST /api/events.
type createEventRequest struct {
	Date     string `json:"date"`      // YYYY-MM-DD, required
	Title    string `json:"title"`     // required
	Time     string `json:"time"`      // "HH:MM" 24h or "h:MM AM/PM", optional
	Author   string `json:"author"`    // optional
	Recur    string `json:"recur"`     // none|daily|weekly|monthly
	RecurEnd string `json:"recur_end"` // YYYY-MM-DD, required when recurring
}

type createEventResponse struct {
	RequestID string         `json:"request_id"`
	Inserted  int64          `json:"inserted"`
	Truncated bool           `json:"truncated,omitempty"`
	Window    eventsResponse `json:"window"`
}

// handleCreateEvent validates the submission, expands the recurrence,
// bulk-inserts one row per occurrence, and returns the refreshed window
// for the start date's month.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	start, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	clock, err := parseClock(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	freq, err := cal.ParseFrequency(req.Recur)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var end *time.Time
	if freq != cal.FreqNone {
		if req.RecurEnd == "" {
			writeError(w, http.StatusBadRequest, "recur_end is required for recurring events")
			return
		}
		e, err := time.Parse("2006-01-02", req.RecurEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "recur_end must be YYYY-MM-DD")
			return
		}
		if e.Before(start) {
			writeError(w, http.StatusBadRequest, "recur_end must be on or after the start date")
			return
		}
		end = &e
	}

	dates, truncated, err := cal.ExpandRecurrence(start, end, freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if truncated {
		appLog.Info("recurrence expansion truncated",
			"title", req.Title,
			"start", req.Date,
			"cap", cal.MaxOccurrences,
		)
	}

	author := strings.TrimSpace(req.Author)
	inserted, err := s.st.BulkInsertEvents(r.Context(), dates, clock, req.Title, author)
	if err != nil {
		appLog.Error("api events: insert failed", err, "title", req.Title, "occurrences", len(dates))
		writeError(w, http.StatusInternalServerError, "failed to save event")
		return
	}

	appLog.Info("event saved",
		"title", req.Title,
		"author", author,
		"recur", string(freq),
		"occurrences", len(dates),
		"inserted", inserted,
	)

	// Drop the cache and hand back a fresh window so the UI can render
	// the new events without another round trip.
	s.cacheMu.Lock()
	s.cache = nil
	s.cacheMu.Unlock()

	winResp, err := s.windowEvents(r.Context(), start.Year(), start.Month())
	if err != nil {
		appLog.Error("api events: refetch after insert failed", err)
		writeError(w, http.StatusInternalServerError, "event saved but reload failed")
		return
	}

	writeJSON(w, http.StatusCreated, createEventResponse{
		RequestID: uuid.NewString(),
		Inserted:  inserted,
		Truncated: truncated,
		Window:    winResp,
	})
}

// gridResponse is the payload of GET /api/grid: the 6x7 matrix plus
// header labels, for clients that do not want to do date math.
type gridResponse struct {
	Year     int                                  `json:"year"`
	Month    int                                  `json:"month"`
	Label    string                               `json:"label"`
	Weekdays [cal.GridCols]string                 `json:"weekdays"`
	Weeks    [cal.GridRows][cal.GridCols]cal.Cell `json:"weeks"`
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.yearMonthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, gridResponse{
		Year:     year,
		Month:    int(month),
		Label:    fmt.Sprintf("%s %d", month, year),
		Weekdays: cal.Weekdays(s.weekStart),
		Weeks:    cal.MonthGrid(year, month, s.weekStart, s.now()),
	})
}

// handleConfig exposes the UI-relevant configuration.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"authors":    s.cfg.Authors,
		"week_start": s.cfg.WeekStart,
		"timezone":   s.loc.String(),
	})
}

// handleICSFeed serves the requested month's 3-month window as an
// iCalendar feed.
//
// GET /calendar.ics?year=2026&month=9
func (s *Server) handleICSFeed(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.yearMonthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	win := cal.WindowForMonth(year, month)
	events, err := s.st.EventsInRange(r.Context(), win.Start, win.End)
	if err != nil {
		appLog.Error("ics feed: query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="caldash.ics"`)
	_, _ = w.Write([]byte(ics.BuildFeed(events, s.loc, s.now())))
}

// yearMonthParams reads ?year=&month=, defaulting to the current month in
// the display zone.
func (s *Server) yearMonthParams(r *http.Request) (int, time.Month, error) {
	now := s.now()
	q := r.URL.Query()

	year := parseIntDefault(q.Get("year"), now.Year())
	m := parseIntDefault(q.Get("month"), int(now.Month()))
	if m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("month must be 1..12, got %d", m)
	}
	if year < 1 || year > 9999 {
		return 0, 0, fmt.Errorf("year out of range: %d", year)
	}
	return year, time.Month(m), nil
}

// parseClock normalizes a user-entered time of day to "HH:MM" 24h form.
// Empty input means an untimed event.
func parseClock(s string) (*string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	layouts := []string{"15:04", "15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			c := t.Format("15:04")
			return &c, nil
		}
	}
	// 12h form; Go's parser wants the meridiem upper-case.
	upper := strings.ToUpper(s)
	for _, layout := range []string{"3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, upper); err == nil {
			c := t.Format("15:04")
			return &c, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q: use HH:MM or h:MM AM/PM", s)
}
