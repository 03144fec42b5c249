package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"casa/internal/core"
)

var ErrCodeTaken = errors.New("join code already in use")

func (s *Store) CreateHousehold(ctx context.Context, h *core.Household) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO households (id, name, code, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		h.ID, h.Name, h.Code, h.CreatedBy, h.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert household: %w", err)
	}

	// The creator is always the first member
	_, err = tx.ExecContext(ctx,
		"INSERT INTO household_members (household_id, user_id, joined_at) VALUES (?, ?, ?)",
		h.ID, h.CreatedBy, h.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET current_household_id = ? WHERE id = ?",
		h.ID, h.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("set creator current household: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Household created", "id", h.ID, "name", h.Name, "created_by", h.CreatedBy)
	return nil
}

func (s *Store) GetHousehold(ctx context.Context, id string) (*core.Household, error) {
	return s.getHousehold(ctx, "id", id)
}

func (s *Store) GetHouseholdByCode(ctx context.Context, code string) (*core.Household, error) {
	return s.getHousehold(ctx, "code", code)
}

func (s *Store) getHousehold(ctx context.Context, column, value string) (*core.Household, error) {
	var (
		h         core.Household
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, code, created_by, created_at FROM households WHERE "+column+" = ?",
		value,
	).Scan(&h.ID, &h.Name, &h.Code, &h.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get household by %s: %w", column, err)
	}
	h.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &h, nil
}

func (s *Store) ListMembers(ctx context.Context, householdID string) ([]core.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, u.created_at
		 FROM household_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.household_id = ?
		 ORDER BY m.joined_at`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.User
	for rows.Next() {
		var (
			u         core.User
			createdAt int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		u.HouseholdID = householdID
		u.CreatedAt = time.Unix(createdAt, 0).UTC()
		members = append(members, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (s *Store) CountMembers(ctx context.Context, householdID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM household_members WHERE household_id = ?",
		householdID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

func (s *Store) IsMember(ctx context.Context, householdID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM household_members WHERE household_id = ? AND user_id = ?",
		householdID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// AddMember joins a user to a household and points their current
// household at it.
func (s *Store) AddMember(ctx context.Context, householdID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO household_members (household_id, user_id, joined_at) VALUES (?, ?, ?)",
		householdID, userID, time.Now().UTC().Unix(),
	)
	if isUniqueViolation(err) {
		return core.ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET current_household_id = ? WHERE id = ?",
		householdID, userID,
	)
	if err != nil {
		return fmt.Errorf("set current household: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RemoveMember takes a user out of a household and clears their
// current-household pointer if it still points at it.
func (s *Store) RemoveMember(ctx context.Context, householdID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM household_members WHERE household_id = ? AND user_id = ?",
		householdID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET current_household_id = NULL WHERE id = ? AND current_household_id = ?",
		userID, householdID,
	)
	if err != nil {
		return fmt.Errorf("clear current household: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteHousehold removes a household and everything scoped to it. The
// members' current-household pointers are cleared first, in the same
// transaction, so no user is left pointing at a dead household.
func (s *Store) DeleteHousehold(ctx context.Context, householdID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET current_household_id = NULL WHERE current_household_id = ?",
		householdID,
	)
	if err != nil {
		return fmt.Errorf("clear member pointers: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM households WHERE id = ?", householdID)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
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

	slog.InfoContext(ctx, "Household deleted", "id", householdID)
	return nil
}
