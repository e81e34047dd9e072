// Package store is the Postgres data access layer for calendar events.
// Every operation is parameterized and retried exactly once when the
// connection to the database breaks mid-flight.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	appLog "caldash/internal/log"
	"caldash/internal/model"
)

const (
	// bulkPageSize limits how many rows go into one insert batch.
	bulkPageSize = 1000

	// retryBackoff is the pause before the single retry of a failed
	// operation, giving the pool time to establish a fresh connection.
	retryBackoff = 500 * time.Millisecond
)

// Store wraps a pgx connection pool with the retry and bulk-insert
// behavior the dashboard needs.
type Store struct {
	pool    *pgxpool.Pool
	backoff time.Duration
}

// Connect opens a connection pool for the given DSN and verifies it with
// a ping. Fields missing from the DSN fall back to PG* env vars.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	// Keepalives prevent idle proxies (managed Postgres front-ends) from
	// silently dropping pooled connections.
	cfg.ConnConfig.DialFunc = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, backoff: retryBackoff}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database health. Like every other operation it gets one
// retry, so a single dropped connection does not fail a health probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.withRetry(ctx, "ping", func(ctx context.Context) error {
		var one int
		return s.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
	})
}

// EventsInRange returns all events with event_date in [start, end),
// ordered by date, then time (untimed last), then insertion order.
func (s *Store) EventsInRange(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	const q = `
		SELECT id, event_date, event_time, title, author
		FROM calendar_events
		WHERE event_date >= $1 AND event_date < $2
		ORDER BY event_date, event_time NULLS LAST, id`

	var events []model.Event
	err := s.withRetry(ctx, "events_in_range", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, q, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		events = events[:0]
		for rows.Next() {
			var (
				ev model.Event
				t  pgtype.Time
			)
			if err := rows.Scan(&ev.ID, &ev.Date, &t, &ev.Title, &ev.Author); err != nil {
				return err
			}
			if t.Valid {
				clock := clockFromMicroseconds(t.Microseconds)
				ev.Clock = &clock
			}
			events = append(events, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// InsertEvent inserts a single event row.
func (s *Store) InsertEvent(ctx context.Context, ev model.Event) error {
	const q = `
		INSERT INTO calendar_events (event_date, event_time, title, author)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_date, event_time, title, author) DO NOTHING`

	return s.withRetry(ctx, "insert_event", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, q, ev.Date, clockParam(ev.Clock), ev.Title, ev.Author)
		return err
	})
}

// BulkInsertEvents inserts one row per date, all sharing the same time,
// title, and author, in pages of bulkPageSize. Rows that collide with the
// natural key (event_date, event_time, title, author) are skipped, which
// also makes a retried page harmless. Returns the number of rows actually
// inserted.
func (s *Store) BulkInsertEvents(ctx context.Context, dates []time.Time, clock *string, title, author string) (int64, error) {
	if len(dates) == 0 {
		return 0, nil
	}

	const q = `
		INSERT INTO calendar_events (event_date, event_time, title, author)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_date, event_time, title, author) DO NOTHING`

	tParam := clockParam(clock)
	var total int64

	for offset := 0; offset < len(dates); offset += bulkPageSize {
		page := dates[offset:min(offset+bulkPageSize, len(dates))]

		var inserted int64
		err := s.withRetry(ctx, "bulk_insert_events", func(ctx context.Context) error {
			b := &pgx.Batch{}
			for _, d := range page {
				b.Queue(q, d, tParam, title, author)
			}
			br := s.pool.SendBatch(ctx, b)
			defer br.Close()

			inserted = 0
			for range page {
				ct, err := br.Exec()
				if err != nil {
					return err
				}
				inserted += ct.RowsAffected()
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("bulk insert page at offset %d: %w", offset, err)
		}
		total += inserted
	}

	appLog.Debug("bulk insert completed", "dates", len(dates), "inserted", total)
	return total, nil
}

// PurgeBefore deletes events older than the cutoff date and returns the
// number of rows removed. Used by the retention job.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.withRetry(ctx, "purge_before", func(ctx context.Context) error {
		ct, err := s.pool.Exec(ctx, "DELETE FROM calendar_events WHERE event_date < $1", cutoff)
		if err != nil {
			return err
		}
		removed = ct.RowsAffected()
		return nil
	})
	return removed, err
}

// withRetry runs fn and, if it fails with a transient connection error,
// waits briefly and runs it once more. Non-transient errors and context
// cancellation surface immediately.
func (s *Store) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isTransient(err) {
		return err
	}

	appLog.Info("retrying after transient database error", "op", op, "err", err)
	select {
	case <-time.After(s.backoff):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn(ctx)
}

// isTransient reports whether err looks like a broken-connection class
// failure worth a single retry. Query errors (bad SQL, constraint
// violations) are never transient, and neither is context cancellation.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P0x: server shutdown or
		// connection cut by the administrator / failover.
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		switch pgErr.Code {
		case "57P01", "57P02", "57P03":
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return false
}

// clockParam converts an optional "HH:MM" string to the value bound to a
// Postgres time column.
func clockParam(clock *string) any {
	if clock == nil {
		return nil
	}
	micros, err := microsecondsFromClock(*clock)
	if err != nil {
		// Callers validate clock strings; treat a bad one as untimed
		// rather than corrupting the insert.
		appLog.Error("invalid clock value, storing as untimed", err, "clock", *clock)
		return nil
	}
	return pgtype.Time{Microseconds: micros, Valid: true}
}

func microsecondsFromClock(clock string) (int64, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, err
	}
	return int64(t.Hour()*3600+t.Minute()*60) * 1_000_000, nil
}

func clockFromMicroseconds(micros int64) string {
	secs := micros / 1_000_000
	return fmt.Sprintf("%02d:%02d", secs/3600, secs%3600/60)
}
