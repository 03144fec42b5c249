package services

import (
	"context"
	"fmt"
	"time"

	"casa/internal/core"
	"casa/internal/log"
	"casa/internal/storage"
)

// LedgerService manages the personal monthly ledgers: manual entries,
// the household summary, and the monthly rollover sweep. Mirrored
// entries are written by the pay transaction, never here.
type LedgerService struct {
	store  *storage.Store
	logger *log.Logger
	nowFn  func() time.Time
}

func NewLedgerService(store *storage.Store) *LedgerService {
	return &LedgerService{
		store:  store,
		logger: log.ForComponent(log.ComponentLedger),
		nowFn:  time.Now,
	}
}

// CreateManualInput carries the request fields for a manual ledger entry.
type CreateManualInput struct {
	Title       string
	Description string
	Cost        core.Money
}

func (s *LedgerService) householdScope(ctx context.Context, userID string) (*core.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.HouseholdID == "" {
		return nil, core.ErrNoHousehold
	}
	return user, nil
}

// CreateManual records a manual personal expense stamped with the
// current month and year.
func (s *LedgerService) CreateManual(ctx context.Context, userID string, in CreateManualInput) (*core.PersonalExpense, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	entry := core.PersonalExpense{
		UserID:      userID,
		HouseholdID: user.HouseholdID,
		Title:       in.Title,
		Description: in.Description,
		Cost:        in.Cost,
		Source:      core.SourceManual,
		Month:       int(now.Month()),
		Year:        now.Year(),
		CreatedAt:   now,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreatePersonalExpense(ctx, &entry); err != nil {
		return nil, fmt.Errorf("save personal expense: %w", err)
	}
	return &entry, nil
}

// ListCurrentMonth returns the caller's ledger entries for the current
// month.
func (s *LedgerService) ListCurrentMonth(ctx context.Context, userID string) ([]core.PersonalExpense, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.nowFn().UTC()
	return s.store.ListPersonalExpenses(ctx, userID, user.HouseholdID, now.Year(), int(now.Month()))
}

// MonthlyTotal sums the caller's ledger for the given month. Zero
// year or month defaults to the current one.
func (s *LedgerService) MonthlyTotal(ctx context.Context, userID string, year, month int) (core.Money, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	now := s.nowFn().UTC()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return core.Money{}, core.ErrInvalidMonth
	}
	return s.store.MonthlyTotal(ctx, userID, user.HouseholdID, year, month)
}

// Summary builds the household-wide view of the current month: every
// member's entries and totals plus the household total.
func (s *LedgerService) Summary(ctx context.Context, userID string) (*core.MonthlySummary, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, user.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	now := s.nowFn().UTC()
	summary := &core.MonthlySummary{
		Year:  now.Year(),
		Month: int(now.Month()),
	}
	for _, m := range members {
		entries, err := s.store.ListPersonalExpenses(ctx, m.ID, user.HouseholdID, summary.Year, summary.Month)
		if err != nil {
			return nil, fmt.Errorf("list entries for %s: %w", m.Username, err)
		}
		var total core.Money
		for _, e := range entries {
			total.Cents += e.Cost.Cents
		}
		summary.Members = append(summary.Members, core.MemberSummary{
			UserID:   m.ID,
			Username: m.Username,
			Entries:  entries,
			Total:    total,
		})
		summary.Total.Cents += total.Cents
	}
	return summary, nil
}

// Delete removes a manual ledger entry. Owner-only; mirrored entries
// are immutable until the rollover sweep purges them.
func (s *LedgerService) Delete(ctx context.Context, userID, entryID string) error {
	entry, err := s.store.GetPersonalExpense(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return core.ErrForbidden
	}
	if entry.Source != core.SourceManual {
		return core.ErrForbidden
	}
	return s.store.DeletePersonalExpense(ctx, entryID)
}

// Rollover purges every ledger entry of the previous calendar month,
// across all users and households. December wraps to the prior year.
// It is driven by external scheduling, never by request flow.
func (s *LedgerService) Rollover(ctx context.Context, now time.Time) (int64, error) {
	year, month := core.PreviousMonth(now)
	n, err := s.store.DeleteMonth(ctx, year, month)
	if err != nil {
		return 0, fmt.Errorf("rollover sweep: %w", err)
	}
	s.logger.InfoContext(ctx, "Monthly rollover complete", log.NewFields().
		WithOperation(log.OpRollover).
		WithMonth(year, month).
		ToSlice()...)
	return n, nil
}
