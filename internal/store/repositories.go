package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jw6ventures/crmcal/internal/calendar"
)

// ListMembers returns the workspace members ordered by name.
func (s *Store) ListMembers(ctx context.Context, workspaceID string) ([]calendar.Member, error) {
	defer observeDB(ctx, "db.members.list")()

	rows, err := s.pool.Query(ctx, `SELECT id, name, avatar_url FROM members
WHERE workspace_id = $1 ORDER BY name ASC, id ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []calendar.Member
	for rows.Next() {
		var m calendar.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpsertMember creates or renames a member.
func (s *Store) UpsertMember(ctx context.Context, workspaceID string, m calendar.Member) error {
	defer observeDB(ctx, "db.members.upsert")()

	_, err := s.pool.Exec(ctx, `INSERT INTO members (workspace_id, id, name, avatar_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (workspace_id, id) DO UPDATE SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url`,
		workspaceID, m.ID, m.Name, m.AvatarURL)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// GetSettings returns the stored preferences, or nil when the workspace
// has none yet.
func (s *Store) GetSettings(ctx context.Context, workspaceID string) (*calendar.Settings, error) {
	defer observeDB(ctx, "db.settings.get")()

	var st calendar.Settings
	var eventType string
	err := s.pool.QueryRow(ctx, `SELECT workday_start_hour, workday_end_hour, default_event_type
FROM calendar_settings WHERE workspace_id = $1`, workspaceID).Scan(&st.WorkdayStartHour, &st.WorkdayEndHour, &eventType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	st.DefaultEventType = calendar.EventType(eventType)
	return &st, nil
}

// SaveSettings stores the workspace preferences.
func (s *Store) SaveSettings(ctx context.Context, workspaceID string, st calendar.Settings) error {
	defer observeDB(ctx, "db.settings.save")()

	_, err := s.pool.Exec(ctx, `INSERT INTO calendar_settings (workspace_id, workday_start_hour, workday_end_hour, default_event_type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (workspace_id) DO UPDATE SET
    workday_start_hour = EXCLUDED.workday_start_hour,
    workday_end_hour = EXCLUDED.workday_end_hour,
    default_event_type = EXCLUDED.default_event_type,
    updated_at = NOW()`,
		workspaceID, st.WorkdayStartHour, st.WorkdayEndHour, string(st.DefaultEventType))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// EnsureWorkspace seeds default settings the first time a workspace is
// seen. Concurrent callers serialize on an advisory lock keyed by the
// workspace id.
func (s *Store) EnsureWorkspace(ctx context.Context, workspaceID string) error {
	defer observeDB(ctx, "db.workspace.ensure")()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ensure workspace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, workspaceID); err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM calendar_settings WHERE workspace_id = $1)`, workspaceID).Scan(&exists); err != nil {
		return fmt.Errorf("check settings: %w", err)
	}
	if !exists {
		d := calendar.DefaultSettings()
		if _, err := tx.Exec(ctx, `INSERT INTO calendar_settings (workspace_id, workday_start_hour, workday_end_hour, default_event_type)
VALUES ($1, $2, $3, $4)`, workspaceID, d.WorkdayStartHour, d.WorkdayEndHour, string(d.DefaultEventType)); err != nil {
			return fmt.Errorf("insert default settings: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ensure workspace: %w", err)
	}
	return nil
}
