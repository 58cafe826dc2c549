package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/simplechores/internal/model"
)

// PrivilegeStateStore persists privilege state and temporary-disable timers.
type PrivilegeStateStore struct {
	db *sql.DB
}

func NewPrivilegeStateStore(db *sql.DB) *PrivilegeStateStore {
	return &PrivilegeStateStore{db: db}
}

func scanPrivilegeRecord(scanner interface{ Scan(...any) error }) (*model.PrivilegeRecord, error) {
	var r model.PrivilegeRecord
	var state string
	var until sql.NullString
	if err := scanner.Scan(&r.Key.Assignee, &r.Key.Slug, &state, &until); err != nil {
		return nil, err
	}
	r.State = model.PrivilegeState(state)
	if until.Valid && until.String != "" {
		t, err := parseTime(until.String)
		if err != nil {
			return nil, err
		}
		r.DisableUntil = &t
	}
	return &r, nil
}

func (s *PrivilegeStateStore) LoadPrivilegeStates(ctx context.Context) ([]model.PrivilegeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT assignee, slug, state, disable_until FROM privilege_states ORDER BY assignee, slug`)
	if err != nil {
		return nil, fmt.Errorf("list privilege states: %w", err)
	}
	defer rows.Close()

	var records []model.PrivilegeRecord
	for rows.Next() {
		r, err := scanPrivilegeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan privilege state: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *PrivilegeStateStore) SavePrivilegeState(ctx context.Context, r model.PrivilegeRecord) error {
	var until any
	if r.DisableUntil != nil {
		until = formatTime(*r.DisableUntil)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO privilege_states (assignee, slug, state, disable_until, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(assignee, slug) DO UPDATE SET
		   state = excluded.state, disable_until = excluded.disable_until, updated_at = excluded.updated_at`,
		r.Key.Assignee, r.Key.Slug, string(r.State), until, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save privilege state %s: %w", r.Key, err)
	}
	return nil
}

func (s *PrivilegeStateStore) DeletePrivilegeState(ctx context.Context, key model.Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM privilege_states WHERE assignee = ? AND slug = ?`, key.Assignee, key.Slug)
	if err != nil {
		return fmt.Errorf("delete privilege state %s: %w", key, err)
	}
	return nil
}
