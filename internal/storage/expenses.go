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

func (s *Store) CreateExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, household_id, created_by, title, description, total_cents, unit_cents, expense_type, remaining_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.HouseholdID, e.CreatedBy, e.Title, e.Description,
		e.Total.Cents, e.Unit.Cents, string(e.Type), e.Remaining.Cents,
		e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"household_id", e.HouseholdID,
		"title", e.Title,
		"total_cents", e.Total.Cents,
		"unit_cents", e.Unit.Cents,
		"type", string(e.Type))
	return nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*core.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, household_id, created_by, title, description, total_cents, unit_cents, expense_type, remaining_cents, created_at, updated_at
		 FROM expenses WHERE id = ?`, id)
	return scanExpense(row)
}

func scanExpense(row *sql.Row) (*core.Expense, error) {
	var (
		e                    core.Expense
		expenseType          string
		createdAt, updatedAt int64
	)
	err := row.Scan(&e.ID, &e.HouseholdID, &e.CreatedBy, &e.Title, &e.Description,
		&e.Total.Cents, &e.Unit.Cents, &expenseType, &e.Remaining.Cents, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	e.Type = core.ExpenseType(expenseType)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &e, nil
}

func (s *Store) ListExpenses(ctx context.Context, householdID string) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, household_id, created_by, title, description, total_cents, unit_cents, expense_type, remaining_cents, created_at, updated_at
		 FROM expenses WHERE household_id = ? ORDER BY created_at DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e                    core.Expense
			expenseType          string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&e.ID, &e.HouseholdID, &e.CreatedBy, &e.Title, &e.Description,
			&e.Total.Cents, &e.Unit.Cents, &expenseType, &e.Remaining.Cents, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Type = core.ExpenseType(expenseType)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (s *Store) ListPayments(ctx context.Context, expenseID string) ([]core.ExpensePayment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, expense_id, user_id, amount_cents, paid_at FROM expense_payments WHERE expense_id = ? ORDER BY paid_at",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []core.ExpensePayment
	for rows.Next() {
		var (
			p      core.ExpensePayment
			paidAt int64
		)
		if err := rows.Scan(&p.ID, &p.ExpenseID, &p.UserID, &p.Amount.Cents, &paidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.PaidAt = time.Unix(paidAt, 0).UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func (s *Store) HasPaid(ctx context.Context, expenseID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM expense_payments WHERE expense_id = ? AND user_id = ?",
		expenseID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	return true, nil
}

// ResetExpense applies an edit: new total, unit, and remaining amounts,
// with every recorded payment discarded in the same transaction.
func (s *Store) ResetExpense(ctx context.Context, id string, total, unit core.Money) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "DELETE FROM expense_payments WHERE expense_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE expenses SET total_cents = ?, unit_cents = ?, remaining_cents = ?, updated_at = ? WHERE id = ?",
		total.Cents, unit.Cents, total.Cents, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Expense reset",
		"id", id,
		"total_cents", total.Cents,
		"unit_cents", unit.Cents)
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
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

// PayParams carries the per-request inputs of a payment: who pays what
// expense, and the title, description, and period stamped onto the
// personal ledger mirror entry.
type PayParams struct {
	ExpenseID         string
	UserID            string
	MirrorTitle       string
	MirrorDescription string
	Month             int
	Year              int
	Now               time.Time
}

// PayResult reports what a payment did: the recorded payment, the
// mirror ledger entry, and whether the expense settled (and, for
// unique expenses, was removed from the ledger).
type PayResult struct {
	Payment core.ExpensePayment
	Mirror  core.PersonalExpense
	Settled bool
	Deleted bool
}

// PayExpense records one member's share payment atomically: the payment
// row, the remaining-amount debit, and the personal ledger mirror all
// commit or roll back together. When the payment settles a unique
// expense, the expense row is removed in the same transaction.
//
// The UNIQUE(expense_id, user_id) constraint is the authoritative
// double-payment guard; a violation surfaces as core.ErrAlreadyPaid.
func (s *Store) PayExpense(ctx context.Context, p PayParams) (*PayResult, error) {
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		e           core.Expense
		expenseType string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT id, household_id, unit_cents, expense_type, remaining_cents FROM expenses WHERE id = ?",
		p.ExpenseID,
	).Scan(&e.ID, &e.HouseholdID, &e.Unit.Cents, &expenseType, &e.Remaining.Cents)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	e.Type = core.ExpenseType(expenseType)

	payment := core.ExpensePayment{
		ID:        uuid.New().String(),
		ExpenseID: e.ID,
		UserID:    p.UserID,
		Amount:    e.Unit,
		PaidAt:    p.Now,
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO expense_payments (id, expense_id, user_id, amount_cents, paid_at) VALUES (?, ?, ?, ?, ?)",
		payment.ID, payment.ExpenseID, payment.UserID, payment.Amount.Cents, payment.PaidAt.Unix(),
	)
	if isUniqueViolation(err) {
		return nil, core.ErrAlreadyPaid
	}
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	// Checked after the insert so a repeat payer is reported as already
	// paid, not already settled.
	if e.Remaining.Cents <= 0 {
		return nil, core.ErrAlreadySettled
	}

	remaining := e.Remaining.Cents - e.Unit.Cents
	_, err = tx.ExecContext(ctx,
		"UPDATE expenses SET remaining_cents = ?, updated_at = ? WHERE id = ?",
		remaining, p.Now.Unix(), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("debit remaining: %w", err)
	}

	mirror := core.PersonalExpense{
		ID:              uuid.New().String(),
		UserID:          p.UserID,
		HouseholdID:     e.HouseholdID,
		Title:           p.MirrorTitle,
		Description:     p.MirrorDescription,
		Cost:            payment.Amount,
		Source:          core.SourceSharedPayment,
		SharedPaymentID: payment.ID,
		Month:           p.Month,
		Year:            p.Year,
		CreatedAt:       p.Now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO personal_expenses (id, user_id, household_id, title, description, cost_cents, source, shared_payment_id, month, year, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mirror.ID, mirror.UserID, mirror.HouseholdID, mirror.Title, mirror.Description,
		mirror.Cost.Cents, string(mirror.Source), mirror.SharedPaymentID,
		mirror.Month, mirror.Year, mirror.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert mirror entry: %w", err)
	}

	result := &PayResult{
		Payment: payment,
		Mirror:  mirror,
		Settled: remaining <= 0,
	}

	// A settled unique expense leaves the ledger. Its payments go with
	// it; the mirror entries keep only a dangling weak reference.
	if result.Settled && e.Type == core.Unique {
		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", e.ID); err != nil {
			return nil, fmt.Errorf("delete settled expense: %w", err)
		}
		result.Deleted = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Payment recorded",
		"expense_id", e.ID,
		"user_id", p.UserID,
		"amount_cents", payment.Amount.Cents,
		"settled", result.Settled,
		"deleted", result.Deleted)
	return result, nil
}
