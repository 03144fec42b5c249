package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"casa/internal/amqp"
	"casa/internal/core"
	"casa/internal/services"
	"casa/internal/storage"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "worker-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSweepPurgesPreviousMonth(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	user := &core.User{Username: "ana", Email: "ana@example.com", PasswordHash: "x"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	h := &core.Household{Name: "Flat", Code: "AAAA22", CreatedBy: user.ID}
	if err := store.CreateHousehold(ctx, h); err != nil {
		t.Fatalf("create household: %v", err)
	}

	for _, e := range []core.PersonalExpense{
		{UserID: user.ID, HouseholdID: h.ID, Title: "Old", Cost: core.Money{Cents: 100}, Source: core.SourceManual, Month: 2, Year: 2026},
		{UserID: user.ID, HouseholdID: h.ID, Title: "Current", Cost: core.Money{Cents: 200}, Source: core.SourceManual, Month: 3, Year: 2026},
	} {
		entry := e
		if err := store.CreatePersonalExpense(ctx, &entry); err != nil {
			t.Fatalf("create entry: %v", err)
		}
	}

	w := NewRolloverWorker(store, services.NewLedgerService(store), time.Hour)
	w.nowFn = func() time.Time { return time.Date(2026, time.March, 1, 0, 5, 0, 0, time.UTC) }

	if err := w.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	entries, err := store.ListPersonalExpenses(ctx, user.ID, h.ID, 2026, 3)
	if err != nil {
		t.Fatalf("list current: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Current" {
		t.Fatalf("unexpected current entries: %+v", entries)
	}
	old, err := store.ListPersonalExpenses(ctx, user.ID, h.ID, 2026, 2)
	if err != nil {
		t.Fatalf("list old: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("previous month should be purged, got %+v", old)
	}
}

func TestHandleEventArchivesSettlement(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	user := &core.User{Username: "ana", Email: "ana@example.com", PasswordHash: "x"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	h := &core.Household{Name: "Flat", Code: "BBBB33", CreatedBy: user.ID}
	if err := store.CreateHousehold(ctx, h); err != nil {
		t.Fatalf("create household: %v", err)
	}

	w := NewRolloverWorker(store, services.NewLedgerService(store), time.Hour)

	event := amqp.NewExpenseSettledEvent("exp-1", h.ID, "Sofa", 50000, "unique")
	if err := w.HandleEvent(event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	settlements, err := store.ListSettlements(ctx, h.ID)
	if err != nil {
		t.Fatalf("list settlements: %v", err)
	}
	if len(settlements) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(settlements))
	}
	if settlements[0].Total.Cents != 50000 || settlements[0].Title != "Sofa" {
		t.Fatalf("unexpected settlement: %+v", settlements[0])
	}
}

func TestHandleEventIgnoresUnknownKinds(t *testing.T) {
	store := testStore(t)
	w := NewRolloverWorker(store, services.NewLedgerService(store), time.Hour)

	if err := w.HandleEvent(&amqp.ExpenseEvent{Kind: "something.else"}); err != nil {
		t.Fatalf("unknown kind should be dropped without error, got %v", err)
	}
}
