package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"casa/internal/core"
)

func (s *Store) CreatePersonalExpense(ctx context.Context, p *core.PersonalExpense) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO personal_expenses (id, user_id, household_id, title, description, cost_cents, source, shared_payment_id, month, year, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.HouseholdID, p.Title, p.Description,
		p.Cost.Cents, string(p.Source), nullString(p.SharedPaymentID),
		p.Month, p.Year, p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert personal expense: %w", err)
	}
	return nil
}

func (s *Store) GetPersonalExpense(ctx context.Context, id string) (*core.PersonalExpense, error) {
	var (
		p         core.PersonalExpense
		source    string
		shared    sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, household_id, title, description, cost_cents, source, shared_payment_id, month, year, created_at
		 FROM personal_expenses WHERE id = ?`, id,
	).Scan(&p.ID, &p.UserID, &p.HouseholdID, &p.Title, &p.Description,
		&p.Cost.Cents, &source, &shared, &p.Month, &p.Year, &createdAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get personal expense: %w", err)
	}
	p.Source = core.Source(source)
	p.SharedPaymentID = shared.String
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// ListPersonalExpenses returns one user's ledger entries for a month,
// scoped to a household.
func (s *Store) ListPersonalExpenses(ctx context.Context, userID, householdID string, year, month int) ([]core.PersonalExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, household_id, title, description, cost_cents, source, shared_payment_id, month, year, created_at
		 FROM personal_expenses
		 WHERE user_id = ? AND household_id = ? AND year = ? AND month = ?
		 ORDER BY created_at DESC`,
		userID, householdID, year, month,
	)
	if err != nil {
		return nil, fmt.Errorf("list personal expenses: %w", err)
	}
	defer rows.Close()

	var entries []core.PersonalExpense
	for rows.Next() {
		var (
			p         core.PersonalExpense
			source    string
			shared    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.HouseholdID, &p.Title, &p.Description,
			&p.Cost.Cents, &source, &shared, &p.Month, &p.Year, &createdAt); err != nil {
			return nil, fmt.Errorf("scan personal expense: %w", err)
		}
		p.Source = core.Source(source)
		p.SharedPaymentID = shared.String
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personal expenses: %w", err)
	}
	return entries, nil
}

// MonthlyTotal returns the sum of one user's ledger for a month within
// a household.
func (s *Store) MonthlyTotal(ctx context.Context, userID, householdID string, year, month int) (core.Money, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM personal_expenses
		 WHERE user_id = ? AND household_id = ? AND year = ? AND month = ?`,
		userID, householdID, year, month,
	).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("monthly total: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (s *Store) DeletePersonalExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM personal_expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete personal expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteMonth removes every personal ledger entry for the given
// calendar month, across all users and households. It backs the
// monthly rollover sweep.
func (s *Store) DeleteMonth(ctx context.Context, year, month int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM personal_expenses WHERE year = ? AND month = ?",
		year, month,
	)
	if err != nil {
		return 0, fmt.Errorf("delete month: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Personal ledger month purged", "year", year, "month", month, "deleted", n)
	return n, nil
}
