package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateEvent inserts a new event
func (r *Repository) CreateEvent(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var start sql.NullInt64
	if e.StartTime != nil {
		start = sql.NullInt64{Int64: toMillis(*e.StartTime), Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO events (title, description, creator_id, start_time, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.CreatorID, start, toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// GetEvent finds an event by ID
func (r *Repository) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, creator_id, start_time, created_at FROM events WHERE id = ?`, id,
	)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListUpcomingEvents returns events without a start time or starting at or after now,
// soonest first
func (r *Repository) ListUpcomingEvents(ctx context.Context, now time.Time) ([]*Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, creator_id, start_time, created_at
		 FROM events
		 WHERE start_time IS NULL OR start_time >= ?
		 ORDER BY start_time IS NULL, start_time ASC, id ASC`,
		toMillis(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	e := &Event{}
	var start sql.NullInt64
	var created int64
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.CreatorID, &start, &created); err != nil {
		return nil, err
	}
	if start.Valid {
		t := fromMillis(start.Int64)
		e.StartTime = &t
	}
	e.CreatedAt = fromMillis(created)
	return e, nil
}

// UpsertRSVP records a member's answer to an event. Returns ErrNotFound if the event does not exist.
func (r *Repository) UpsertRSVP(ctx context.Context, rsvp *RSVP) error {
	if !rsvp.Status.Valid() {
		return fmt.Errorf("invalid rsvp status %q", rsvp.Status)
	}
	if rsvp.UpdatedAt.IsZero() {
		rsvp.UpdatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rsvp: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, rsvp.EventID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_rsvps (event_id, user_id, status, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(event_id, user_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		rsvp.EventID, rsvp.UserID, string(rsvp.Status), toMillis(rsvp.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert rsvp: %w", err)
	}

	return tx.Commit()
}

// ListRSVPs returns every answer to an event
func (r *Repository) ListRSVPs(ctx context.Context, eventID int64) ([]*RSVP, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, user_id, status, updated_at FROM event_rsvps WHERE event_id = ? ORDER BY updated_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rsvps []*RSVP
	for rows.Next() {
		rsvp := &RSVP{}
		var status string
		var updated int64
		if err := rows.Scan(&rsvp.EventID, &rsvp.UserID, &status, &updated); err != nil {
			return nil, err
		}
		rsvp.Status = RSVPStatus(status)
		rsvp.UpdatedAt = fromMillis(updated)
		rsvps = append(rsvps, rsvp)
	}
	return rsvps, rows.Err()
}
