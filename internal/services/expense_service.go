package services

import (
	"context"
	"fmt"
	"time"

	"casa/internal/amqp"
	"casa/internal/core"
	"casa/internal/log"
	"casa/internal/storage"
)

// ExpenseService orchestrates shared expense operations: creation with
// even splitting, payments with ledger mirroring, edits, and deletion.
// Events go out over AMQP after the storage transaction commits; a
// publish failure never fails the request.
type ExpenseService struct {
	store      *storage.Store
	amqpClient *amqp.Client
	logger     *log.Logger
	nowFn      func() time.Time
}

func NewExpenseService(store *storage.Store, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{
		store:      store,
		amqpClient: amqpClient,
		logger:     log.ForComponent(log.ComponentExpense),
		nowFn:      time.Now,
	}
}

// CreateExpenseInput carries the request fields for a new shared expense.
type CreateExpenseInput struct {
	Title       string
	Description string
	Total       core.Money
	Type        core.ExpenseType
}

// ExpenseDetails bundles an expense with its payments and the member
// count its unit cost was derived from.
type ExpenseDetails struct {
	Expense      core.Expense
	Payments     []core.ExpensePayment
	MembersCount int
}

// PaymentOutcome reports what a pay operation did.
type PaymentOutcome struct {
	Payment core.ExpensePayment
	Mirror  core.PersonalExpense
	Settled bool
	Deleted bool
}

// householdScope resolves the caller and their current household,
// rejecting users that belong to none.
func (s *ExpenseService) householdScope(ctx context.Context, userID string) (*core.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.HouseholdID == "" {
		return nil, core.ErrNoHousehold
	}
	return user, nil
}

// Create registers a shared expense in the caller's household. The
// per-member unit cost is fixed here from the current member count,
// which the returned details carry.
func (s *ExpenseService) Create(ctx context.Context, userID string, in CreateExpenseInput) (*ExpenseDetails, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}

	expense := core.Expense{
		HouseholdID: user.HouseholdID,
		CreatedBy:   userID,
		Title:       in.Title,
		Description: in.Description,
		Total:       in.Total,
		Type:        in.Type,
		Remaining:   in.Total,
	}
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	members, err := s.store.CountMembers(ctx, user.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	unit, err := core.UnitCost(in.Total, members)
	if err != nil {
		return nil, err
	}
	expense.Unit = unit

	if err := s.store.CreateExpense(ctx, &expense); err != nil {
		return nil, fmt.Errorf("save expense: %w", err)
	}
	return &ExpenseDetails{
		Expense:      expense,
		Payments:     []core.ExpensePayment{},
		MembersCount: members,
	}, nil
}

// List returns every shared expense of the caller's household, with
// payments and member count for derived views.
func (s *ExpenseService) List(ctx context.Context, userID string) ([]ExpenseDetails, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpenses(ctx, user.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	members, err := s.store.CountMembers(ctx, user.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	details := make([]ExpenseDetails, 0, len(expenses))
	for _, e := range expenses {
		payments, err := s.store.ListPayments(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		details = append(details, ExpenseDetails{
			Expense:      e,
			Payments:     payments,
			MembersCount: members,
		})
	}
	return details, nil
}

// Get returns one expense of the caller's household with its payments.
func (s *ExpenseService) Get(ctx context.Context, userID, expenseID string) (*ExpenseDetails, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.HouseholdID != user.HouseholdID {
		return nil, core.ErrNotFound
	}
	payments, err := s.store.ListPayments(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	members, err := s.store.CountMembers(ctx, user.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	return &ExpenseDetails{Expense: *expense, Payments: payments, MembersCount: members}, nil
}

// Pay records the caller's share payment. Preconditions are checked in
// order: household scope, not already paid, not fully settled. The
// payment, the remaining debit, and the personal ledger mirror commit
// atomically; settling a unique expense removes it from the ledger.
func (s *ExpenseService) Pay(ctx context.Context, userID, expenseID string) (*PaymentOutcome, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	// An expense of another household is indistinguishable from a
	// nonexistent one
	if expense.HouseholdID != user.HouseholdID {
		return nil, core.ErrNotFound
	}

	now := s.nowFn().UTC()
	res, err := s.store.PayExpense(ctx, storage.PayParams{
		ExpenseID:         expenseID,
		UserID:            userID,
		MirrorTitle:       "Payment: " + expense.Title,
		MirrorDescription: "Shared expense payment: " + expense.Description,
		Month:             int(now.Month()),
		Year:              now.Year(),
		Now:               now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Payment recorded", log.NewFields().
		WithOperation(log.OpPay).
		WithUser(userID).
		WithExpense(expense.ID, expense.Title, res.Payment.Amount.Cents).
		ToSlice()...)

	s.publishEvent(ctx, amqp.NewPaymentRecordedEvent(
		expense.ID, expense.HouseholdID, userID, expense.Title,
		res.Payment.Amount.Cents, string(expense.Type)))
	if res.Settled {
		s.publishEvent(ctx, amqp.NewExpenseSettledEvent(
			expense.ID, expense.HouseholdID, expense.Title,
			expense.Total.Cents, string(expense.Type)))
	}

	return &PaymentOutcome{
		Payment: res.Payment,
		Mirror:  res.Mirror,
		Settled: res.Settled,
		Deleted: res.Deleted,
	}, nil
}

// Update edits a permanent expense's total cost. Creator-only. All
// recorded payments are discarded and the remaining amount resets to
// the new total; the unit cost is recomputed from the current member
// count.
func (s *ExpenseService) Update(ctx context.Context, userID, expenseID string, newTotal core.Money) (*core.Expense, error) {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.HouseholdID != user.HouseholdID {
		return nil, core.ErrNotFound
	}
	if expense.CreatedBy != userID {
		return nil, core.ErrForbidden
	}
	if expense.Type != core.Permanent {
		return nil, core.ErrNotEditable
	}
	if err := newTotal.Validate(); err != nil {
		return nil, err
	}

	members, err := s.store.CountMembers(ctx, user.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	unit, err := core.UnitCost(newTotal, members)
	if err != nil {
		return nil, err
	}

	if err := s.store.ResetExpense(ctx, expenseID, newTotal, unit); err != nil {
		return nil, fmt.Errorf("reset expense: %w", err)
	}

	return s.store.GetExpense(ctx, expenseID)
}

// Delete removes a shared expense. Creator-only. Mirrored personal
// ledger entries stay behind with dangling payment references.
func (s *ExpenseService) Delete(ctx context.Context, userID, expenseID string) error {
	user, err := s.householdScope(ctx, userID)
	if err != nil {
		return err
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense.HouseholdID != user.HouseholdID {
		return core.ErrNotFound
	}
	if expense.CreatedBy != userID {
		return core.ErrForbidden
	}
	return s.store.DeleteExpense(ctx, expenseID)
}

func (s *ExpenseService) publishEvent(ctx context.Context, event *amqp.ExpenseEvent) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishEvent(ctx, event); err != nil {
		// Best-effort fan-out: the payment is already committed
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			"kind", event.Kind,
			"expense_id", event.ExpenseID,
			"error", err)
	}
}
