package store

import (
	"context"
	"fmt"
)

// schemaStatements bootstrap the events table. The unique index is the
// ON CONFLICT target for de-duplicating recurring inserts; NULLS NOT
// DISTINCT makes untimed duplicates collide too (requires Postgres 15+).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS calendar_events (
		id         BIGSERIAL PRIMARY KEY,
		event_date DATE NOT NULL,
		event_time TIME,
		title      TEXT NOT NULL,
		author     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS calendar_events_natural_key
		ON calendar_events (event_date, event_time, title, author)
		NULLS NOT DISTINCT`,
	`CREATE INDEX IF NOT EXISTS calendar_events_date_idx
		ON calendar_events (event_date)`,
}

// EnsureSchema creates the calendar_events table and its indexes if they
// do not exist yet. Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		err := s.withRetry(ctx, "ensure_schema", func(ctx context.Context) error {
			_, err := s.pool.Exec(ctx, stmt)
			return err
		})
		if err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
