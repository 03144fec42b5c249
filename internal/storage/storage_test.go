package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"casa/internal/core"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "casa-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, name string) *core.User {
	t.Helper()
	u := &core.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func seedHousehold(t *testing.T, s *Store, creator *core.User, members ...*core.User) *core.Household {
	t.Helper()
	h := &core.Household{
		Name:      "Test House",
		Code:      fmt.Sprintf("C%05d", time.Now().UnixNano()%100000),
		CreatedBy: creator.ID,
	}
	if err := s.CreateHousehold(context.Background(), h); err != nil {
		t.Fatalf("create household: %v", err)
	}
	for _, m := range members {
		if err := s.AddMember(context.Background(), h.ID, m.ID); err != nil {
			t.Fatalf("add member %s: %v", m.Username, err)
		}
	}
	return h
}

func seedExpense(t *testing.T, s *Store, h *core.Household, creator *core.User, totalCents int64, members int, typ core.ExpenseType) *core.Expense {
	t.Helper()
	unit, err := core.UnitCost(core.Money{Cents: totalCents}, members)
	if err != nil {
		t.Fatalf("unit cost: %v", err)
	}
	e := &core.Expense{
		HouseholdID: h.ID,
		CreatedBy:   creator.ID,
		Title:       "Rent",
		Description: "Monthly rent",
		Total:       core.Money{Cents: totalCents},
		Unit:        unit,
		Type:        typ,
		Remaining:   core.Money{Cents: totalCents},
	}
	if err := s.CreateExpense(context.Background(), e); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

func pay(s *Store, e *core.Expense, u *core.User) (*PayResult, error) {
	now := time.Now().UTC()
	return s.PayExpense(context.Background(), PayParams{
		ExpenseID:         e.ID,
		UserID:            u.ID,
		MirrorTitle:       "Payment: " + e.Title,
		MirrorDescription: "Shared expense payment: " + e.Description,
		Month:             int(now.Month()),
		Year:              now.Year(),
		Now:               now,
	})
}

func TestCreateUserDuplicate(t *testing.T) {
	s := testStore(t)
	seedUser(t, s, "ana")

	dup := &core.User{Username: "ana", Email: "other@example.com", PasswordHash: "x"}
	if err := s.CreateUser(context.Background(), dup); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestCreateHouseholdSetsCreatorMembership(t *testing.T) {
	s := testStore(t)
	ana := seedUser(t, s, "ana")
	h := seedHousehold(t, s, ana)

	n, err := s.CountMembers(context.Background(), h.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 member, got %d (err=%v)", n, err)
	}

	got, err := s.GetUserByID(context.Background(), ana.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.HouseholdID != h.ID {
		t.Fatalf("expected current household %s, got %q", h.ID, got.HouseholdID)
	}
}

func TestAddMemberTwice(t *testing.T) {
	s := testStore(t)
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	h := seedHousehold(t, s, ana, bob)

	if err := s.AddMember(context.Background(), h.ID, bob.ID); !errors.Is(err, core.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestPayExpenseFullScenario(t *testing.T) {
	// Four members, 400.00 total: four payments of 100.00 settle and
	// delete the unique expense, leaving four mirror entries.
	s := testStore(t)
	ctx := context.Background()

	users := make([]*core.User, 4)
	users[0] = seedUser(t, s, "ana")
	users[1] = seedUser(t, s, "bob")
	users[2] = seedUser(t, s, "cleo")
	users[3] = seedUser(t, s, "dan")
	h := seedHousehold(t, s, users[0], users[1], users[2], users[3])

	e := seedExpense(t, s, h, users[0], 40000, 4, core.Unique)
	if e.Unit.Cents != 10000 {
		t.Fatalf("expected unit 10000, got %d", e.Unit.Cents)
	}

	for i, u := range users {
		res, err := pay(s, e, u)
		if err != nil {
			t.Fatalf("payment %d: %v", i, err)
		}
		if res.Payment.Amount.Cents != 10000 {
			t.Fatalf("payment %d amount = %d, want 10000", i, res.Payment.Amount.Cents)
		}
		if i < 3 {
			if res.Settled || res.Deleted {
				t.Fatalf("payment %d should not settle", i)
			}
			got, err := s.GetExpense(ctx, e.ID)
			if err != nil {
				t.Fatalf("get expense after payment %d: %v", i, err)
			}
			want := int64(40000 - (i+1)*10000)
			if got.Remaining.Cents != want {
				t.Fatalf("remaining after payment %d = %d, want %d", i, got.Remaining.Cents, want)
			}
		} else {
			if !res.Settled || !res.Deleted {
				t.Fatalf("final payment should settle and delete, got %+v", res)
			}
		}
	}

	// Unique expense is gone from the ledger
	if _, err := s.GetExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after settlement, got %v", err)
	}

	// Each member has exactly one mirror entry for this month
	now := time.Now().UTC()
	for _, u := range users {
		entries, err := s.ListPersonalExpenses(ctx, u.ID, h.ID, now.Year(), int(now.Month()))
		if err != nil {
			t.Fatalf("list personal: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 mirror entry for %s, got %d", u.Username, len(entries))
		}
		m := entries[0]
		if m.Source != core.SourceSharedPayment {
			t.Fatalf("mirror source = %q", m.Source)
		}
		if m.Cost.Cents != 10000 {
			t.Fatalf("mirror cost = %d", m.Cost.Cents)
		}
		if m.Title != "Payment: Rent" {
			t.Fatalf("mirror title = %q", m.Title)
		}
		if m.SharedPaymentID == "" {
			t.Fatalf("mirror missing payment reference")
		}
	}
}

func TestPayExpenseIndivisibleTotal(t *testing.T) {
	// 0.50 across three members rounds half-up to a 0.17 unit, so the
	// three payments collect 0.51 and the final debit drives remaining
	// below zero. Settlement triggers on remaining <= 0; the one-cent
	// overshoot is accepted rounding residue.
	s := testStore(t)
	ctx := context.Background()

	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	cleo := seedUser(t, s, "cleo")
	h := seedHousehold(t, s, ana, bob, cleo)

	e := seedExpense(t, s, h, ana, 50, 3, core.Unique)
	if e.Unit.Cents != 17 {
		t.Fatalf("unit = %d, want 17", e.Unit.Cents)
	}

	for i, u := range []*core.User{ana, bob} {
		res, err := pay(s, e, u)
		if err != nil {
			t.Fatalf("payment %d: %v", i, err)
		}
		if res.Settled {
			t.Fatalf("payment %d should not settle", i)
		}
	}
	got, err := s.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.Remaining.Cents != 16 {
		t.Fatalf("remaining after two payments = %d, want 16", got.Remaining.Cents)
	}

	last, err := pay(s, e, cleo)
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if !last.Settled || !last.Deleted {
		t.Fatalf("final payment should settle and delete, got %+v", last)
	}
	if _, err := s.GetExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after settlement, got %v", err)
	}

	// All three mirror entries carry the full rounded unit
	now := time.Now().UTC()
	var collected int64
	for _, u := range []*core.User{ana, bob, cleo} {
		entries, err := s.ListPersonalExpenses(ctx, u.ID, h.ID, now.Year(), int(now.Month()))
		if err != nil {
			t.Fatalf("list personal: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 mirror entry for %s, got %d", u.Username, len(entries))
		}
		collected += entries[0].Cost.Cents
	}
	if collected != 51 {
		t.Fatalf("collected = %d, want 51 (total 50 plus rounding residue)", collected)
	}
}

func TestPayExpenseTwice(t *testing.T) {
	s := testStore(t)
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	h := seedHousehold(t, s, ana, bob)
	e := seedExpense(t, s, h, ana, 20000, 2, core.Unique)

	if _, err := pay(s, e, ana); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if _, err := pay(s, e, ana); !errors.Is(err, core.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}

	// The failed attempt must not debit or mirror anything
	got, err := s.GetExpense(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.Remaining.Cents != 10000 {
		t.Fatalf("remaining = %d, want 10000", got.Remaining.Cents)
	}
	now := time.Now().UTC()
	entries, err := s.ListPersonalExpenses(context.Background(), ana.ID, h.ID, now.Year(), int(now.Month()))
	if err != nil {
		t.Fatalf("list personal: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 mirror entry, got %d", len(entries))
	}
}

func TestPaySettledPermanentExpense(t *testing.T) {
	// A permanent expense survives settlement; a non-payer arriving
	// afterwards is told it is settled, not that they paid.
	s := testStore(t)
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	cleo := seedUser(t, s, "cleo")
	h := seedHousehold(t, s, ana, bob)
	e := seedExpense(t, s, h, ana, 20000, 2, core.Permanent)

	if _, err := pay(s, e, ana); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	res, err := pay(s, e, bob)
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if !res.Settled || res.Deleted {
		t.Fatalf("permanent expense should settle but not delete, got %+v", res)
	}

	if err := s.AddMember(context.Background(), h.ID, cleo.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := pay(s, e, cleo); !errors.Is(err, core.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
}

func TestResetExpenseDiscardsPayments(t *testing.T) {
	s := testStore(t)
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	h := seedHousehold(t, s, ana, bob)
	e := seedExpense(t, s, h, ana, 20000, 2, core.Permanent)

	if _, err := pay(s, e, ana); err != nil {
		t.Fatalf("payment: %v", err)
	}

	unit, _ := core.UnitCost(core.Money{Cents: 30000}, 2)
	if err := s.ResetExpense(context.Background(), e.ID, core.Money{Cents: 30000}, unit); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got, err := s.GetExpense(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.Total.Cents != 30000 || got.Remaining.Cents != 30000 || got.Unit.Cents != 15000 {
		t.Fatalf("unexpected amounts after reset: %+v", got)
	}

	payments, err := s.ListPayments(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("expected payments discarded, got %d", len(payments))
	}

	// Everyone can pay again after a reset
	if _, err := pay(s, e, ana); err != nil {
		t.Fatalf("payment after reset: %v", err)
	}
}

func TestDeleteExpenseKeepsMirrorEntries(t *testing.T) {
	s := testStore(t)
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	h := seedHousehold(t, s, ana, bob)
	e := seedExpense(t, s, h, ana, 20000, 2, core.Permanent)

	res, err := pay(s, e, ana)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}

	if err := s.DeleteExpense(context.Background(), e.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}

	// The mirror entry survives with its weak reference dangling
	m, err := s.GetPersonalExpense(context.Background(), res.Mirror.ID)
	if err != nil {
		t.Fatalf("get mirror entry: %v", err)
	}
	if m.SharedPaymentID != res.Payment.ID {
		t.Fatalf("mirror reference changed: %q", m.SharedPaymentID)
	}
}

func TestDeleteHouseholdClearsPointers(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")
	h := seedHousehold(t, s, ana, bob)
	e := seedExpense(t, s, h, ana, 20000, 2, core.Unique)
	if _, err := pay(s, e, ana); err != nil {
		t.Fatalf("payment: %v", err)
	}

	if err := s.DeleteHousehold(ctx, h.ID); err != nil {
		t.Fatalf("delete household: %v", err)
	}

	for _, u := range []*core.User{ana, bob} {
		got, err := s.GetUserByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if got.HouseholdID != "" {
			t.Fatalf("expected cleared household pointer for %s, got %q", u.Username, got.HouseholdID)
		}
	}

	if _, err := s.GetExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected cascaded expense delete, got %v", err)
	}
}

func TestDeleteMonth(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ana := seedUser(t, s, "ana")
	h := seedHousehold(t, s, ana)

	mk := func(year, month int) {
		p := &core.PersonalExpense{
			UserID:      ana.ID,
			HouseholdID: h.ID,
			Title:       "Groceries",
			Cost:        core.Money{Cents: 1000},
			Source:      core.SourceManual,
			Month:       month,
			Year:        year,
		}
		if err := s.CreatePersonalExpense(ctx, p); err != nil {
			t.Fatalf("create personal expense: %v", err)
		}
	}
	mk(2025, 12)
	mk(2025, 12)
	mk(2026, 1)

	n, err := s.DeleteMonth(ctx, 2025, 12)
	if err != nil {
		t.Fatalf("delete month: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	left, err := s.ListPersonalExpenses(ctx, ana.ID, h.ID, 2026, 1)
	if err != nil {
		t.Fatalf("list personal: %v", err)
	}
	if len(left) != 1 {
		t.Fatalf("expected january entry kept, got %d", len(left))
	}
}

func TestMonthlyTotal(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ana := seedUser(t, s, "ana")
	h := seedHousehold(t, s, ana)

	for _, cents := range []int64{1000, 2500} {
		p := &core.PersonalExpense{
			UserID:      ana.ID,
			HouseholdID: h.ID,
			Title:       "Entry",
			Cost:        core.Money{Cents: cents},
			Source:      core.SourceManual,
			Month:       6,
			Year:        2026,
		}
		if err := s.CreatePersonalExpense(ctx, p); err != nil {
			t.Fatalf("create personal expense: %v", err)
		}
	}

	total, err := s.MonthlyTotal(ctx, ana.ID, h.ID, 2026, 6)
	if err != nil {
		t.Fatalf("monthly total: %v", err)
	}
	if total.Cents != 3500 {
		t.Fatalf("total = %d, want 3500", total.Cents)
	}
}

func TestRecordSettlement(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	st := &Settlement{
		ExpenseID:   "exp-1",
		HouseholdID: "hh-1",
		Title:       "Rent",
		Total:       core.Money{Cents: 40000},
		Type:        core.Unique,
	}
	if err := s.RecordSettlement(ctx, st); err != nil {
		t.Fatalf("record settlement: %v", err)
	}

	list, err := s.ListSettlements(ctx, "hh-1")
	if err != nil {
		t.Fatalf("list settlements: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Rent" || list[0].Total.Cents != 40000 {
		t.Fatalf("unexpected settlements: %+v", list)
	}
}
