package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jw6ventures/crmcal/internal/calendar"
)

const eventColumns = `id::text, workspace_id, start_time, end_time, title, event_type, status,
location, assigned_to, lead_ref, cancel_reason, created_at, updated_at`

// FetchEvents returns the workspace's events starting in [start, end),
// optionally narrowed to one assignee.
func (s *Store) FetchEvents(ctx context.Context, workspaceID string, start, end time.Time, filter calendar.Filter) ([]calendar.Event, error) {
	defer observeDB(ctx, "db.events.fetch")()

	q := `SELECT ` + eventColumns + `
FROM calendar_events
WHERE workspace_id = $1 AND start_time >= $2 AND start_time < $3`
	args := []any{workspaceID, start, end}
	if filter.AssignedTo != nil {
		q += ` AND assigned_to = $4`
		args = append(args, *filter.AssignedTo)
	}
	q += ` ORDER BY start_time ASC, id ASC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return events, rows.Err()
}

// GetEvent loads a single event.
func (s *Store) GetEvent(ctx context.Context, workspaceID, id string) (*calendar.Event, error) {
	defer observeDB(ctx, "db.events.get")()

	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+`
FROM calendar_events WHERE workspace_id = $1 AND id::text = $2`, workspaceID, id)
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

// CreateEvent inserts a new event with a generated id.
func (s *Store) CreateEvent(ctx context.Context, workspaceID string, d calendar.Draft) (*calendar.Event, error) {
	defer observeDB(ctx, "db.events.create")()

	ev := calendar.Event{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		Title:       d.Title,
		Type:        d.Type,
		Status:      d.Status,
		Location:    d.Location,
		AssignedTo:  nonEmpty(d.AssignedTo),
		LeadRef:     nonEmpty(d.LeadRef),
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO calendar_events
    (id, workspace_id, start_time, end_time, title, event_type, status, location, assigned_to, lead_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at, updated_at`,
		ev.ID, workspaceID, ev.StartTime, ev.EndTime, ev.Title, string(ev.Type), string(ev.Status),
		ev.Location, ev.AssignedTo, ev.LeadRef,
	).Scan(&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &ev, nil
}

// UpdateEvent writes the non-nil fields of p. Empty AssignedTo or LeadRef
// clear the column.
func (s *Store) UpdateEvent(ctx context.Context, workspaceID, id string, p calendar.Patch) error {
	defer observeDB(ctx, "db.events.update")()

	set, args := patchAssignments(p)
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, workspaceID, id)
	q := fmt.Sprintf(`UPDATE calendar_events SET %s WHERE workspace_id = $%d AND id::text = $%d`,
		strings.Join(set, ", "), len(args)-1, len(args))
	guarded := p.TimesOnly()
	if guarded {
		q += ` AND status NOT IN ('cancelled', 'completed')`
	}

	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if !guarded {
		return ErrNotFound
	}
	return s.readOnlyOrMissing(ctx, workspaceID, id)
}

// readOnlyOrMissing explains why a guarded time update matched no row.
func (s *Store) readOnlyOrMissing(ctx context.Context, workspaceID, id string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM calendar_events WHERE workspace_id = $1 AND id::text = $2`,
		workspaceID, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load event status: %w", err)
	}
	return fmt.Errorf("%w: %s is %s", calendar.ErrReadOnly, id, status)
}

func patchAssignments(p calendar.Patch) ([]string, []any) {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.StartTime != nil {
		add("start_time", *p.StartTime)
	}
	if p.EndTime != nil {
		add("end_time", *p.EndTime)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Type != nil {
		add("event_type", string(*p.Type))
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.AssignedTo != nil {
		add("assigned_to", nonEmpty(p.AssignedTo))
	}
	if p.LeadRef != nil {
		add("lead_ref", nonEmpty(p.LeadRef))
	}
	if p.CancelReason != nil {
		add("cancel_reason", *p.CancelReason)
	}
	return set, args
}

// CancelEvent marks the event cancelled and records why.
func (s *Store) CancelEvent(ctx context.Context, workspaceID, id, reason string) error {
	defer observeDB(ctx, "db.events.cancel")()

	tag, err := s.pool.Exec(ctx, `UPDATE calendar_events
SET status = 'cancelled', cancel_reason = $1, updated_at = NOW()
WHERE workspace_id = $2 AND id::text = $3`, reason, workspaceID, id)
	if err != nil {
		return fmt.Errorf("cancel event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes the event permanently.
func (s *Store) DeleteEvent(ctx context.Context, workspaceID, id string) error {
	defer observeDB(ctx, "db.events.delete")()

	tag, err := s.pool.Exec(ctx, `DELETE FROM calendar_events WHERE workspace_id = $1 AND id::text = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEvents(rows pgx.Rows) ([]calendar.Event, error) {
	var events []calendar.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (calendar.Event, error) {
	var ev calendar.Event
	var eventType, status string
	err := row.Scan(&ev.ID, &ev.WorkspaceID, &ev.StartTime, &ev.EndTime, &ev.Title, &eventType, &status,
		&ev.Location, &ev.AssignedTo, &ev.LeadRef, &ev.CancelReason, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return calendar.Event{}, err
	}
	ev.Type = calendar.EventType(eventType)
	ev.Status = calendar.Status(status)
	return ev, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
