package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casa/internal/core"
)

// Settlement is an archived record of a fully paid shared expense.
// Settled unique expenses are deleted from the ledger, so this archive
// is their only durable trace. Rows are written by the worker from
// settlement events.
type Settlement struct {
	ID          string
	ExpenseID   string
	HouseholdID string
	Title       string
	Total       core.Money
	Type        core.ExpenseType
	SettledAt   time.Time
}

func (s *Store) RecordSettlement(ctx context.Context, st *Settlement) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.SettledAt.IsZero() {
		st.SettledAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settlements (id, expense_id, household_id, title, total_cents, expense_type, settled_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		st.ID, st.ExpenseID, st.HouseholdID, st.Title, st.Total.Cents, string(st.Type), st.SettledAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

func (s *Store) ListSettlements(ctx context.Context, householdID string) ([]Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expense_id, household_id, title, total_cents, expense_type, settled_at
		 FROM settlements WHERE household_id = ? ORDER BY settled_at DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []Settlement
	for rows.Next() {
		var (
			st          Settlement
			expenseType string
			settledAt   int64
		)
		if err := rows.Scan(&st.ID, &st.ExpenseID, &st.HouseholdID, &st.Title,
			&st.Total.Cents, &expenseType, &settledAt); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		st.Type = core.ExpenseType(expenseType)
		st.SettledAt = time.Unix(settledAt, 0).UTC()
		settlements = append(settlements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}
	return settlements, nil
}
