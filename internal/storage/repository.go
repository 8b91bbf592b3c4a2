package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS trigger_events (
        id            BIGSERIAL PRIMARY KEY,
        triggered_at  TIMESTAMPTZ NOT NULL,
        currency      TEXT NOT NULL,
        delta         NUMERIC NOT NULL,
        bound         NUMERIC NOT NULL,
        held_seconds  BIGINT NOT NULL,
        process       TEXT NOT NULL,
        killed_pids   BIGINT[] NOT NULL DEFAULT '{}',
        failed_pids   BIGINT[] NOT NULL DEFAULT '{}',
        notified      BOOLEAN NOT NULL DEFAULT FALSE,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	insertTriggerEventSQL = `INSERT INTO trigger_events (
        triggered_at,
        currency,
        delta,
        bound,
        held_seconds,
        process,
        killed_pids,
        failed_pids,
        notified
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING id;`

	listRecentEventsSQL = `SELECT
        id,
        triggered_at,
        currency,
        delta,
        bound,
        held_seconds,
        process,
        killed_pids,
        failed_pids,
        notified,
        created_at
    FROM trigger_events
    ORDER BY triggered_at DESC
    LIMIT $1;`
)

// TriggerEventStore persists and queries remediation events.
type TriggerEventStore interface {
	InsertTriggerEvent(ctx context.Context, event TriggerEvent) (int64, error)
	ListRecentEvents(ctx context.Context, limit int) ([]TriggerEvent, error)
}

// EnsureSchema creates the trigger_events table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	if _, err := s.pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertTriggerEvent records one remediation event and returns its id.
func (s *Store) InsertTriggerEvent(ctx context.Context, event TriggerEvent) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrNotConfigured
	}

	killed := event.KilledPIDs
	if killed == nil {
		killed = []int64{}
	}
	failed := event.FailedPIDs
	if failed == nil {
		failed = []int64{}
	}

	var id int64
	err := s.pool.QueryRow(ctx, insertTriggerEventSQL,
		event.TriggeredAt,
		event.Currency,
		event.Delta,
		event.Bound,
		event.HeldSeconds,
		event.Process,
		killed,
		failed,
		event.Notified,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert trigger event: %w", err)
	}
	return id, nil
}

// ListRecentEvents returns up to limit events, newest first.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]TriggerEvent, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.pool.Query(ctx, listRecentEventsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list trigger events: %w", err)
	}
	defer rows.Close()

	var events []TriggerEvent
	for rows.Next() {
		var ev TriggerEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.TriggeredAt,
			&ev.Currency,
			&ev.Delta,
			&ev.Bound,
			&ev.HeldSeconds,
			&ev.Process,
			&ev.KilledPIDs,
			&ev.FailedPIDs,
			&ev.Notified,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trigger event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

var _ TriggerEventStore = (*Store)(nil)
