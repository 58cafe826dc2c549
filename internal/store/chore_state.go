package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/simplechores/internal/model"
)

// ChoreStateStore persists chore entity state so progress survives restarts
// and reloads.
type ChoreStateStore struct {
	db *sql.DB
}

func NewChoreStateStore(db *sql.DB) *ChoreStateStore {
	return &ChoreStateStore{db: db}
}

func scanChoreRecord(scanner interface{ Scan(...any) error }) (*model.ChoreRecord, error) {
	var r model.ChoreRecord
	var state string
	var accrued int
	if err := scanner.Scan(&r.Key.Assignee, &r.Key.Slug, &state, &accrued); err != nil {
		return nil, err
	}
	r.State = model.ChoreState(state)
	r.MissAccrued = accrued != 0
	return &r, nil
}

func (s *ChoreStateStore) LoadChoreStates(ctx context.Context) ([]model.ChoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT assignee, slug, state, miss_accrued FROM chore_states ORDER BY assignee, slug`)
	if err != nil {
		return nil, fmt.Errorf("list chore states: %w", err)
	}
	defer rows.Close()

	var records []model.ChoreRecord
	for rows.Next() {
		r, err := scanChoreRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore state: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *ChoreStateStore) SaveChoreState(ctx context.Context, r model.ChoreRecord) error {
	var accrued int
	if r.MissAccrued {
		accrued = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_states (assignee, slug, state, miss_accrued, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(assignee, slug) DO UPDATE SET
		   state = excluded.state, miss_accrued = excluded.miss_accrued, updated_at = excluded.updated_at`,
		r.Key.Assignee, r.Key.Slug, string(r.State), accrued, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save chore state %s: %w", r.Key, err)
	}
	return nil
}

// SaveChoreStates writes records concurrently and waits for all of them.
// The first error is returned after every write has finished.
func (s *ChoreStateStore) SaveChoreStates(ctx context.Context, records []model.ChoreRecord) error {
	var g errgroup.Group
	for _, r := range records {
		g.Go(func() error { return s.SaveChoreState(ctx, r) })
	}
	return g.Wait()
}

func (s *ChoreStateStore) DeleteChoreState(ctx context.Context, key model.Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chore_states WHERE assignee = ? AND slug = ?`, key.Assignee, key.Slug)
	if err != nil {
		return fmt.Errorf("delete chore state %s: %w", key, err)
	}
	return nil
}
