package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dukerupert/simplechores/internal/model"
)

// LedgerStore persists point balances and their append-only audit trail.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

const balanceCols = `assignee, total, earned, missed`

func scanBalance(scanner interface{ Scan(...any) error }) (*model.Balance, error) {
	var b model.Balance
	if err := scanner.Scan(&b.Assignee, &b.Total, &b.Earned, &b.Missed); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadBalances returns every stored balance ordered by assignee.
func (s *LedgerStore) LoadBalances(ctx context.Context) ([]model.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+balanceCols+` FROM ledger_balances ORDER BY assignee`)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []model.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, *b)
	}
	return balances, rows.Err()
}

func (s *LedgerStore) GetBalance(ctx context.Context, assignee string) (*model.Balance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+balanceCols+` FROM ledger_balances WHERE assignee = ?`, assignee)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// SaveBalance upserts one assignee's counters.
func (s *LedgerStore) SaveBalance(ctx context.Context, b model.Balance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_balances (assignee, total, earned, missed, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(assignee) DO UPDATE SET
		   total = excluded.total, earned = excluded.earned, missed = excluded.missed, updated_at = excluded.updated_at`,
		b.Assignee, b.Total, b.Earned, b.Missed, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save balance %s: %w", b.Assignee, err)
	}
	return nil
}

// AppendEvent records a counter mutation. ID and CreatedAt are filled in
// when empty.
func (s *LedgerStore) AppendEvent(ctx context.Context, e *model.LedgerEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_events (id, assignee, counter, delta, value, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Assignee, string(e.Counter), e.Delta, e.Value, e.Reason, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append ledger event: %w", err)
	}
	return nil
}

// EventQuery selects ledger events. An empty Counter matches every counter;
// Limit <= 0 returns all matches.
type EventQuery struct {
	Assignee string
	Counter  model.Counter
	Limit    int
}

// ListEvents returns matching events, newest first.
func (s *LedgerStore) ListEvents(ctx context.Context, q EventQuery) ([]model.LedgerEvent, error) {
	sel := squirrel.Select("id", "assignee", "counter", "delta", "value", "reason", "created_at").
		From("ledger_events").
		Where(squirrel.Eq{"assignee": q.Assignee}).
		OrderBy("rowid DESC")
	if q.Counter != "" {
		sel = sel.Where(squirrel.Eq{"counter": string(q.Counter)})
	}
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	defer rows.Close()

	var events []model.LedgerEvent
	for rows.Next() {
		var e model.LedgerEvent
		var counter, created string
		if err := rows.Scan(&e.ID, &e.Assignee, &counter, &e.Delta, &e.Value, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		e.Counter = model.Counter(counter)
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
